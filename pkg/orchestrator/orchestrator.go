// Package orchestrator implements the reboot orchestrator (C6): it
// sequences warm-up, spawns the watcher and neighbor observers, triggers
// the DUT reboot, enforces deadlines, and assembles the final verdict.
package orchestrator

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/aristanetworks/dataplane-harness/pkg/config"
	"github.com/aristanetworks/dataplane-harness/pkg/framework"
	"github.com/aristanetworks/dataplane-harness/pkg/fsm"
	"github.com/aristanetworks/dataplane-harness/pkg/neighbor"
	"github.com/aristanetworks/dataplane-harness/pkg/probe"
	"github.com/aristanetworks/dataplane-harness/pkg/report"
	"github.com/aristanetworks/dataplane-harness/pkg/sniff"
	"github.com/aristanetworks/dataplane-harness/pkg/watcher"
	"github.com/google/uuid"
	probing "github.com/prometheus-community/pro-bing"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrWarmUpTimeout is returned when the DUT does not reach a stable,
// non-flooding up state within cfg.Limits.WarmUpTimeout.
var ErrWarmUpTimeout = fmt.Errorf("dut did not reach a stable state before warm_up_timeout")

// Orchestrator sequences one full reboot-disruption run.
type Orchestrator struct {
	cfg  *config.Config
	topo *config.PortTopology
	fw   framework.Framework
	log  zerolog.Logger

	testID      string
	verdict     *report.Verdict
	interrupter *Interrupter
	teardown    *TeardownCoordinator

	// numVlanPkts is nr_vl_pkts: the number of FromT1 probes setup actually
	// generated, not Limits.NumVlanPkts. Set once in setup, read thereafter.
	numVlanPkts int

	stateMu sync.Mutex
	state   TestState
}

// New constructs an Orchestrator ready to Execute a single run.
func New(cfg *config.Config, topo *config.PortTopology, fw framework.Framework, log zerolog.Logger) *Orchestrator {
	testID := uuid.NewString()
	runLog := log.With().Str("test_id", testID).Logger()
	return &Orchestrator{
		cfg:         cfg,
		topo:        topo,
		fw:          fw,
		log:         runLog,
		testID:      testID,
		verdict:     report.NewVerdict(),
		interrupter: NewInterrupter(runLog),
		teardown:    NewTeardownCoordinator(runLog),
	}
}

func (o *Orchestrator) transition(next TestState) {
	o.stateMu.Lock()
	prev := o.state
	o.state = next
	o.stateMu.Unlock()
	o.log.Info().Str("from", prev.String()).Str("to", next.String()).Msg("state transition")
}

// State returns the orchestrator's current stage.
func (o *Orchestrator) State() TestState {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	return o.state
}

// Execute runs the full setup/warmup/reboot/recover/verdict sequence and
// returns the final report regardless of pass/fail; a non-nil error means
// the run could not complete (as opposed to completing and failing its
// verdicts).
func (o *Orchestrator) Execute(ctx context.Context) (*report.TestReport, error) {
	start := time.Now()
	o.interrupter.Start(ctx)
	defer o.interrupter.Interrupt("run complete")

	o.transition(StateSetup)
	probes, w, observerSessions, err := o.setup(ctx)
	if err != nil {
		o.transition(StateFailed)
		return nil, fmt.Errorf("setup: %w", err)
	}
	defer func() {
		for _, s := range observerSessions {
			_ = s.Close()
		}
	}()

	watchCtx, cancelWatch := context.WithCancel(ctx)
	go w.Run(watchCtx)
	select {
	case <-w.Running():
	case <-ctx.Done():
		cancelWatch()
		o.transition(StateFailed)
		return nil, ctx.Err()
	}

	quitCh := make(chan struct{})
	var obsGroup errgroup.Group
	obsResults := make([]*neighbor.Report, len(o.cfg.Neighbors))
	for i, nc := range o.cfg.Neighbors {
		obs := neighbor.NewObserver(nc.Name, nc.Host, observerSessions[nc.Name], neighborLimits(o.cfg, o.topo), o.log)
		idx := i
		obsGroup.Go(func() error {
			obsResults[idx] = obs.Run(ctx)
			return nil
		})
		go driveObserver(ctx, obs, 2*time.Second, quitCh)
	}

	o.transition(StateWarmup)
	if err := o.warmUp(ctx, w); err != nil {
		cancelWatch()
		close(quitCh)
		obsGroup.Wait()
		o.transition(StateFailed)
		return nil, err
	}

	o.transition(StateReboot)
	rebootStart := time.Now()
	rebootDeadline, cancelReboot := o.interrupter.Bound(ctx, 300*time.Second, "reboot")
	rebootErrCh := make(chan error, 1)
	go func() {
		time.Sleep(10 * time.Second)
		rebootErrCh <- triggerReboot(rebootDeadline, o.cfg.DUT)
	}()

	var sniffResult *sniff.Result
	if o.cfg.DUT.RebootType == config.RebootFast {
		sniffResult, err = o.handleFastReboot(rebootDeadline, w, rebootStart)
	} else {
		cancelWatch()
		sniffResult, err = o.handleWarmReboot(rebootDeadline, probes, rebootStart)
	}
	cancelReboot()

	if rebootErr := <-rebootErrCh; rebootErr != nil {
		o.verdict.Fail(o.cfg.DUT.Host, fmt.Sprintf("reboot command failed: %v", rebootErr))
	}
	if err != nil {
		o.transition(StateFailed)
		close(quitCh)
		obsGroup.Wait()
		return nil, fmt.Errorf("reboot handling: %w", err)
	}

	o.transition(StateRecover)
	close(quitCh)
	joinCtx, cancelJoin := context.WithTimeout(ctx, 300*time.Second)
	joined := make(chan struct{})
	go func() {
		obsGroup.Wait()
		close(joined)
	}()
	select {
	case <-joined:
		for _, nc := range o.cfg.Neighbors {
			o.teardown.Record("observer-join", nc.Name, nil)
		}
	case <-joinCtx.Done():
		for _, nc := range o.cfg.Neighbors {
			o.teardown.Record("observer-join", nc.Name, fmt.Errorf("timed out waiting for neighbor observer to finish"))
		}
	}
	cancelJoin()

	for i, nc := range o.cfg.Neighbors {
		nr := obsResults[i]
		if nr == nil {
			continue
		}
		for _, msg := range nr.Failures {
			o.verdict.Fail(nc.Host, msg)
		}
		for _, msg := range nr.RouteTimeouts {
			o.verdict.Fail(nc.Host, msg)
		}
		for _, msg := range nr.Info {
			o.verdict.Info(nc.Host, msg)
		}
	}

	o.transition(StateVerdict)
	o.applyVerdicts(sniffResult, rebootStart)

	result := &report.TestReport{
		TestID:         o.testID,
		DUTHost:        o.cfg.DUT.Host,
		RebootKind:     o.cfg.DUT.RebootType,
		StartTime:      start,
		EndTime:        time.Now(),
		NoRoutingStart: sniffResult.NoRoutingStart,
		NoRoutingStop:  sniffResult.NoRoutingStop,
		Disruptions:    sniffResult.Disruptions,
		Neighbors:      obsResults,
		Fails:          o.verdict.Fails(),
		Info:           o.verdict.Infos(),
		Success:        o.verdict.Passed(),
	}
	result.Duration = result.EndTime.Sub(result.StartTime)

	o.transition(StateTeardown)
	o.log.Info().Str("teardown_summary", o.teardown.Summary()).Msg("teardown complete")
	o.transition(StateCompleted)

	return result, nil
}

func (o *Orchestrator) setup(ctx context.Context) (*probe.Set, *watcher.Watcher, map[string]*neighbor.Session, error) {
	if o.cfg.DUT.ManagementIP != "" {
		if err := pingSanityCheck(ctx, o.cfg.DUT.ManagementIP); err != nil {
			return nil, nil, nil, fmt.Errorf("dut management plane unreachable: %w", err)
		}
	}

	vlanRange, defaultRange, loPrefix, dutMAC, err := parseNetworkConfig(o.cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	probes, err := probe.Build(probe.Params{
		Builder:          o.fw.Builder,
		DefaultIPRange:   defaultRange,
		VlanIPRange:      vlanRange,
		LoPrefix:         loPrefix,
		DUTMAC:           dutMAC,
		VlanIfaceName:    o.topo.VlanName,
		PortChannelPorts: o.topo.PortChannelIndices,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("building probes: %w", err)
	}

	if err := o.fw.Responder.Start(ctx, probes.ARPSeed); err != nil {
		return nil, nil, nil, fmt.Errorf("starting arp responder: %w", err)
	}

	// nr_vl_pkts is the number of FromT1 probes actually generated
	// (N = min(usable vlan hosts, maxT1Packets)), not a config default: the
	// vlan subnet rarely yields exactly Limits.NumVlanPkts usable hosts.
	o.numVlanPkts = len(probes.FromT1)

	w := watcher.New(watcher.Config{
		Interval:           2 * time.Second,
		CountTimeout:       500 * time.Millisecond,
		PortChannelPorts:   o.topo.PortChannelIndices,
		VlanPorts:          o.topo.VlanIndices,
		NumPortChannelPkts: o.cfg.Limits.NumPortChannelPkts,
		NumVlanPkts:        o.numVlanPkts,
		PingDUTPkts:        o.cfg.Limits.PingDUTPkts,
		ArpPingPkts:        o.cfg.Limits.ArpPingPkts,
		LightProbe:         o.cfg.Limits.LightProbe,
	}, probes, o.fw, o.log)

	sessions := make(map[string]*neighbor.Session, len(o.cfg.Neighbors))
	for _, nc := range o.cfg.Neighbors {
		if o.cfg.DUT.ManagementIP != "" {
			if err := pingSanityCheck(ctx, nc.Host); err != nil {
				return nil, nil, nil, fmt.Errorf("neighbor %s unreachable: %w", nc.Name, err)
			}
		}
		session, err := neighbor.Dial(nc.Host, nc.SSHUser, nc.SSHKeyPath, 15*time.Second)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connecting to neighbor %s: %w", nc.Name, err)
		}
		sessions[nc.Name] = session
	}

	return probes, w, sessions, nil
}

func pingSanityCheck(ctx context.Context, host string) error {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return fmt.Errorf("creating pinger for %s: %w", host, err)
	}
	pinger.Count = 3
	pinger.Timeout = 5 * time.Second
	if err := pinger.RunWithContext(ctx); err != nil {
		return fmt.Errorf("pinging %s: %w", host, err)
	}
	if pinger.Statistics().PacketsRecv == 0 {
		return fmt.Errorf("%s did not answer any ICMP echo", host)
	}
	return nil
}

// warmUp polls every second until both planes are up and non-flooding,
// sustained past cfg.Limits.Stabilize, or fails after WarmUpTimeout.
func (o *Orchestrator) warmUp(ctx context.Context, w *watcher.Watcher) error {
	deadline := time.Now().Add(o.cfg.Limits.WarmUpTimeout)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		if time.Now().After(deadline) {
			return ErrWarmUpTimeout
		}

		asicUpSince, asicHasUp := w.ASIC.StateTime(fsm.StateUp)
		cpuUpSince, cpuHasUp := w.CPU.StateTime(fsm.StateUp)
		if w.ASIC.Get() == fsm.StateUp && w.CPU.Get() == fsm.StateUp && !w.ASIC.IsFlooding() &&
			asicHasUp && cpuHasUp &&
			time.Since(asicUpSince) >= o.cfg.Limits.Stabilize && time.Since(cpuUpSince) >= o.cfg.Limits.Stabilize {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) handleFastReboot(ctx context.Context, w *watcher.Watcher, rebootStart time.Time) (*sniff.Result, error) {
	if _, ok := w.CPU.WaitFor(ctx, 200*time.Millisecond, fsm.StateDown); !ok {
		return nil, fmt.Errorf("timed out waiting for cpu_state=down")
	}

	w.StartRecording()

	var asicDownAt, asicUpAt time.Time
	if _, ok := w.ASIC.WaitFor(ctx, 200*time.Millisecond, fsm.StateDown); ok {
		asicDownAt, _ = w.ASIC.StateTime(fsm.StateDown)
		if _, ok := w.ASIC.WaitFor(ctx, 200*time.Millisecond, fsm.StateUp, fsm.StatePartial); ok {
			asicUpAt = time.Now()
		}
	}
	w.CPU.WaitFor(ctx, 200*time.Millisecond, fsm.StateUp)

	if asicDownAt.IsZero() {
		asicDownAt = rebootStart
	}
	if asicUpAt.IsZero() {
		asicUpAt = time.Now()
	}

	trace := w.Trace()
	noCPReplies := watcher.ExtractNoCPReplies(trace)
	if float64(noCPReplies) < 0.95*float64(o.numVlanPkts) {
		o.verdict.Fail(o.cfg.DUT.Host, fmt.Sprintf("control-plane reply count %d fell below 95%% of %d during recovery", noCPReplies, o.numVlanPkts))
	}

	return &sniff.Result{NoRoutingStart: asicDownAt, NoRoutingStop: asicUpAt}, nil
}

func (o *Orchestrator) handleWarmReboot(ctx context.Context, probes *probe.Set, rebootStart time.Time) (*sniff.Result, error) {
	t1Dst := net.ParseIP(o.cfg.Network.LoPrefix)
	if t1Dst == nil {
		return nil, fmt.Errorf("lo_prefix %q is not a valid IP", o.cfg.Network.LoPrefix)
	}
	stream, err := probe.BuildStream(o.fw.Builder, probes.CanonicalVlan, t1Dst, mustCIDR(o.cfg.Network.VlanIPRange), o.cfg.Limits.SendInterval, o.cfg.Limits.TimeToListen)
	if err != nil {
		return nil, fmt.Errorf("building bidirectional stream: %w", err)
	}

	dutMAC, err := parseMAC(o.cfg.DUT.MAC)
	if err != nil {
		return nil, err
	}

	return sniff.Run(ctx, o.fw, sniff.Config{
		SendInterval: o.cfg.Limits.SendInterval,
		TimeToListen: o.cfg.Limits.TimeToListen,
		VlanPorts:    o.topo.VlanIndices,
		PrimeDelay:   2 * time.Second,
		DUTMAC:       dutMAC,
	}, stream, rebootStart, o.log)
}

func (o *Orchestrator) applyVerdicts(result *sniff.Result, rebootStart time.Time) {
	outage := result.NoRoutingStop.Sub(result.NoRoutingStart)
	if outage > o.cfg.Limits.RebootLimit {
		o.verdict.Fail(o.cfg.DUT.Host, fmt.Sprintf("dataplane outage %s exceeded reboot_limit %s", outage, o.cfg.Limits.RebootLimit))
	}
	graceful := result.NoRoutingStop.Sub(rebootStart)
	if graceful > o.cfg.Limits.GracefulLimit {
		o.verdict.Fail(o.cfg.DUT.Host, fmt.Sprintf("time to dataplane recovery %s exceeded graceful_limit %s", graceful, o.cfg.Limits.GracefulLimit))
	}
}
