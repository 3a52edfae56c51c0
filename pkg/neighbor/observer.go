package neighbor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Command is sent on an Observer's command channel to drive one poll turn.
type Command int

const (
	CmdSample Command = iota
	CmdQuit
)

// Limits bundles the thresholds the observer checks against.
type Limits struct {
	MinBGPGRTimeout   time.Duration
	ExpectedV4Routes  []string
	ExpectedV6Routes  []string
	PortChannelIface  string
}

// timelineSample is one poll turn's boolean series snapshot, persisted to
// disk so a failed run can be replayed without re-connecting to the
// neighbor.
type timelineSample struct {
	At    time.Time `json:"at"`
	LACP  bool      `json:"lacp_up"`
	BGPv4 bool      `json:"bgpv4_up"`
	BGPv6 bool      `json:"bgpv6_up"`
}

// Observer drives one neighbor's interactive session through repeated
// poll turns until it is told to quit and route recovery is observed.
type Observer struct {
	name    string
	host    string
	session *Session
	limits  Limits
	log     zerolog.Logger
	cmdCh   chan Command

	lacp  seriesTracker
	bgpv4 seriesTracker
	bgpv6 seriesTracker

	grCapsLatched    bool
	grCaps           bgpGRCapabilities
	sessionBeginUnix int64
	poLastChangeTS   float64
	poChanges        int

	timeline []timelineSample
}

// NewObserver creates an Observer bound to an already-established session.
// host is used only to name the per-neighbor timeline dump left under
// /tmp for post-mortem inspection.
func NewObserver(name, host string, session *Session, limits Limits, log zerolog.Logger) *Observer {
	return &Observer{
		name:    name,
		host:    host,
		session: session,
		limits:  limits,
		log:     log.With().Str("component", "neighbor").Str("neighbor", name).Logger(),
		cmdCh:   make(chan Command, 4),
	}
}

// Commands returns the channel the orchestrator uses to drive poll turns
// and request a final quit.
func (o *Observer) Commands() chan<- Command { return o.cmdCh }

// Run executes the poll loop until a CmdQuit has been seen and both v4 and
// v6 routing are confirmed restored, or ctx is cancelled.
func (o *Observer) Run(ctx context.Context) *Report {
	report := newReport(o.name)
	quitRequested := false

	for {
		var cmd Command
		select {
		case cmd = <-o.cmdCh:
		case <-ctx.Done():
			report.Err = fmt.Errorf("neighbor observer %s cancelled: %w", o.name, ctx.Err())
			return report
		}
		if cmd == CmdQuit {
			quitRequested = true
		}

		v4ok, v6ok, err := o.sampleOnce(report)
		if err != nil {
			o.log.Warn().Err(err).Msg("sample turn failed")
		}

		if quitRequested && v4ok && v6ok {
			break
		}
	}

	o.finalizeSeries(report)
	if err := o.scrapeLogs(ctx, report); err != nil {
		o.log.Warn().Err(err).Msg("log scrape failed")
		report.addInfo(fmt.Sprintf("log scrape incomplete: %v", err))
	}
	o.applyVerdictChecks(report)
	if err := o.dumpTimeline(); err != nil {
		o.log.Warn().Err(err).Msg("failed to persist neighbor timeline")
	}
	return report
}

// dumpTimeline writes the observer's sampled boolean series to
// /tmp/<host>.data.json so a failed run can be inspected without
// reconnecting to the neighbor.
func (o *Observer) dumpTimeline() error {
	if o.host == "" {
		return nil
	}
	data, err := json.MarshalIndent(o.timeline, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling timeline: %w", err)
	}
	path := fmt.Sprintf("/tmp/%s.data.json", o.host)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (o *Observer) sampleOnce(report *Report) (v4ok, v6ok bool, err error) {
	now := time.Now()

	if out, e := o.session.Command("show lacp neighbor", 10*time.Second); e != nil {
		err = fmt.Errorf("lacp sample: %w", e)
	} else {
		o.lacp.update(lacpUp(out), now)
	}

	if bgpOut, e := o.session.Command("show ip bgp neighbors", 15*time.Second); e != nil {
		if err == nil {
			err = fmt.Errorf("bgp sample: %w", e)
		}
	} else {
		o.applyBGPSample(report, bgpOut, now)
	}

	if out, e := o.session.Command("show ip route bgp | json", 10*time.Second); e == nil {
		v4ok, _ = routesOK(out, o.limits.ExpectedV4Routes)
	}
	if out, e := o.session.Command("show ipv6 route bgp | json", 10*time.Second); e == nil {
		v6ok, _ = routesOK(out, o.limits.ExpectedV6Routes)
	}
	o.bgpv4.update(v4ok, now)
	o.bgpv6.update(v6ok, now)

	if out, e := o.session.Command(fmt.Sprintf("show interfaces %s | json", o.limits.PortChannelIface), 10*time.Second); e == nil {
		if ts, perr := portChannelChangeTimestamp(out, o.limits.PortChannelIface); perr == nil {
			if o.poLastChangeTS != 0 && ts != o.poLastChangeTS {
				o.poChanges++
			}
			o.poLastChangeTS = ts
		}
	}

	o.timeline = append(o.timeline, timelineSample{
		At:    now,
		LACP:  o.lacp.up,
		BGPv4: o.bgpv4.up,
		BGPv6: o.bgpv6.up,
	})

	return v4ok, v6ok, err
}

// applyBGPSample splits the two semantically distinct things a "show ip bgp
// neighbors" transcript carries: the static enabled/restart-time
// capabilities, latched once (the first sample that actually carries a
// restart-time line, mirroring the moment the syslog sentinel is anchored),
// and the live restart-timer state, which is checked on every turn.
func (o *Observer) applyBGPSample(report *Report, bgpOut string, now time.Time) {
	if !o.grCapsLatched {
		caps := parseBGPGRCapabilitiesOnce(bgpOut)
		if caps.RestartTime >= 0 {
			o.grCaps = caps
			o.grCapsLatched = true
			o.sessionBeginUnix = now.Unix()
			sentinel := fmt.Sprintf("send log message session_begins_%d", o.sessionBeginUnix)
			if _, e := o.session.Command(sentinel, 5*time.Second); e != nil {
				o.log.Warn().Err(e).Msg("failed to anchor syslog sentinel")
			}

			if !caps.Ipv4Enabled {
				report.addFailure("bgp ipv4 graceful restart is not enabled")
			}
			// IPv6 GR absence is not a failure; see DESIGN.md Open Question 1.
			if caps.RestartTime < 120 {
				report.addFailure(fmt.Sprintf("bgp graceful restart timeout %ds is below the 120s minimum", caps.RestartTime))
			}
		}
	}

	timer := parseBGPGRTimer(bgpOut)
	if !timer.Active {
		return
	}
	remaining, perr := parseHHMMSS(timer.Remaining)
	if perr == nil && remaining < o.limits.MinBGPGRTimeout {
		report.addFailure(fmt.Sprintf("graceful restart timer is almost finished (%s remaining)", remaining))
	}
}

func (o *Observer) finalizeSeries(report *Report) {
	now := time.Now()
	report.LACP = o.lacp.finalize(now)
	report.BGPv4 = o.bgpv4.finalize(now)
	report.BGPv6 = o.bgpv6.finalize(now)
	report.PortChannelChanges = o.poChanges
}

func (o *Observer) applyVerdictChecks(report *Report) {
	if report.LACP.DownCount > 1 {
		report.addInfo("LACP flapped more than once during the test")
	}
	if report.BGPv4.DownCount > 1 {
		report.addInfo("BGPv4 flapped more than once during the test")
	}
	if report.BGPv6.DownCount > 1 {
		report.addInfo("BGPv6 flapped more than once during the test")
	}
}
