// Package watcher implements the reachability watcher (C3): it runs probe
// bursts on its own goroutine, classifies the ASIC, CPU and VLAN-ARP
// planes, and keeps their fsm.StateMachine instances up to date.
package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/aristanetworks/dataplane-harness/pkg/framework"
	"github.com/aristanetworks/dataplane-harness/pkg/fsm"
	"github.com/aristanetworks/dataplane-harness/pkg/probe"
	"github.com/rs/zerolog"
)

// Config bundles the watcher's tunables, mirroring config.LimitsConfig.
type Config struct {
	Interval      time.Duration
	CountTimeout  time.Duration
	PortChannelPorts []int
	VlanPorts        []int
	NumPortChannelPkts int
	NumVlanPkts        int
	PingDUTPkts        int
	ArpPingPkts        int
	// LightProbe skips the more expensive T1->VLAN sweep when the cheaper
	// VLAN->T1 probe has already returned zero. Kept as a knob per
	// DESIGN.md's Open Question decision, not a bug.
	LightProbe bool
}

// Watcher owns the three reachability state machines and runs the
// classification loop.
type Watcher struct {
	cfg     Config
	probes  *probe.Set
	fw      framework.Framework
	log     zerolog.Logger

	ASIC *fsm.StateMachine
	CPU  *fsm.StateMachine
	Vlan *fsm.StateMachine

	mu       sync.Mutex
	trace    []int
	recording bool

	running chan struct{}
	runOnce sync.Once
	stopped chan struct{}
}

// New creates a Watcher with fresh state machines, all in fsm.StateInit.
func New(cfg Config, probes *probe.Set, fw framework.Framework, log zerolog.Logger) *Watcher {
	return &Watcher{
		cfg:     cfg,
		probes:  probes,
		fw:      fw,
		log:     log.With().Str("component", "watcher").Logger(),
		ASIC:    fsm.New("asic"),
		CPU:     fsm.New("cpu"),
		Vlan:    fsm.New("vlan"),
		running: make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Running is closed once the first iteration completes.
func (w *Watcher) Running() <-chan struct{} { return w.running }

// Stopped is closed once Run returns after ctx is cancelled.
func (w *Watcher) Stopped() <-chan struct{} { return w.stopped }

// StartRecording enables capture of the T1->VLAN hit count every
// iteration; used by the orchestrator during fast-reboot ASIC-down
// detection to extract the no-CP-replies metric at teardown.
func (w *Watcher) StartRecording() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.recording = true
	w.trace = nil
}

// Trace returns a snapshot of the recorded T1->VLAN hit-count series.
func (w *Watcher) Trace() []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]int, len(w.trace))
	copy(out, w.trace)
	return out
}

// Run executes the classification loop until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.stopped)
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		w.iterate(ctx)
		w.runOnce.Do(func() { close(w.running) })

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Watcher) iterate(ctx context.Context) {
	for i := 0; i < w.cfg.NumPortChannelPkts && len(w.cfg.VlanPorts) > 0; i++ {
		if err := w.fw.Sender.SendPacket(ctx, w.cfg.VlanPorts[0], w.probes.FromVlan); err != nil {
			w.log.Warn().Err(err).Msg("vlan->t1 send failed")
			break
		}
	}
	vlanToT1, err := w.countMatched(ctx, w.probes.FromVlanMatch, w.cfg.PortChannelPorts)
	if err != nil {
		w.log.Warn().Err(err).Msg("vlan->t1 probe failed")
	}

	t1ToVlan := 0
	if !(w.cfg.LightProbe && vlanToT1 == 0) {
		if err := w.sendFromT1(ctx); err != nil {
			w.log.Warn().Err(err).Msg("t1->vlan send failed")
		}
		t1ToVlan, err = w.countMatched(ctx, w.probes.FromT1Match, w.cfg.VlanPorts)
		if err != nil {
			w.log.Warn().Err(err).Msg("t1->vlan count failed")
		}
	}

	w.mu.Lock()
	if w.recording {
		w.trace = append(w.trace, t1ToVlan)
	}
	w.mu.Unlock()

	w.classifyASIC(t1ToVlan, vlanToT1)
	w.classifyCPU(ctx)
	w.classifyVlan(ctx)
}

func (w *Watcher) classifyASIC(t1ToVlan, vlanToT1 int) {
	reachable := float64(t1ToVlan) > 0.7*float64(w.cfg.NumVlanPkts) && float64(vlanToT1) > 0.7*float64(w.cfg.NumPortChannelPkts)
	flooding := reachable && (t1ToVlan > w.cfg.NumVlanPkts || vlanToT1 > w.cfg.NumPortChannelPkts)

	next := fsm.StateDown
	if reachable {
		next = fsm.StateUp
		if t1ToVlan < w.cfg.NumVlanPkts || vlanToT1 < w.cfg.NumPortChannelPkts {
			next = fsm.StatePartial
		}
	}

	prev := w.ASIC.Get()
	w.ASIC.SetFlooding(flooding)
	if prev != next {
		w.ASIC.Set(next)
		w.log.Info().Str("plane", "asic").Str("from", prev.String()).Str("to", next.String()).Msg("state transition")
	}
}

func (w *Watcher) classifyCPU(ctx context.Context) {
	for i := 0; i < w.cfg.PingDUTPkts && len(w.cfg.VlanPorts) > 0; i++ {
		port := w.cfg.VlanPorts[i%len(w.cfg.VlanPorts)]
		if err := w.fw.Sender.SendPacket(ctx, port, w.probes.PingDUT); err != nil {
			w.log.Warn().Err(err).Msg("ping-dut send failed")
			break
		}
	}
	replies, err := w.countMatched(ctx, w.probes.PingDUTMatch, w.cfg.VlanPorts)
	if err != nil {
		w.log.Warn().Err(err).Msg("ping-dut probe failed")
	}
	reachable := float64(replies) > 0.7*float64(w.cfg.PingDUTPkts)
	flooding := reachable && replies > w.cfg.PingDUTPkts

	next := fsm.StateDown
	if reachable {
		next = fsm.StateUp
		if replies < w.cfg.PingDUTPkts {
			next = fsm.StatePartial
		}
	}

	prev := w.CPU.Get()
	w.CPU.SetFlooding(flooding)
	if prev != next {
		w.CPU.Set(next)
		w.log.Info().Str("plane", "cpu").Str("from", prev.String()).Str("to", next.String()).Msg("state transition")
	}
}

func (w *Watcher) classifyVlan(ctx context.Context) {
	replies, err := w.countMatched(ctx, w.probes.ARPMatch, w.cfg.VlanPorts)
	if err != nil {
		w.log.Warn().Err(err).Msg("arp probe failed")
	}
	next := fsm.StateDown
	if replies >= w.cfg.ArpPingPkts {
		next = fsm.StateUp
	}
	prev := w.Vlan.Get()
	if prev != next {
		w.Vlan.Set(next)
		w.log.Info().Str("plane", "vlan").Str("from", prev.String()).Str("to", next.String()).Msg("state transition")
	}
}

func (w *Watcher) sendFromT1(ctx context.Context) error {
	for _, pkt := range w.probes.FromT1 {
		if err := w.fw.Sender.SendPacket(ctx, pkt.IngressPort, pkt.Frame); err != nil {
			return err
		}
	}
	return nil
}

func (w *Watcher) countMatched(ctx context.Context, tmpl framework.MatchTemplate, ports []int) (int, error) {
	cctx, cancel := context.WithTimeout(ctx, w.cfg.CountTimeout)
	defer cancel()
	return w.fw.Counter.CountMatchedPackets(cctx, tmpl, ports, w.cfg.CountTimeout)
}
