package neighbor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	bgpAdjChangeRe = regexp.MustCompile(`%BGP-5-ADJCHANGE: peer (\S+) \S+ (\w+)`)
	lineProtoRe    = regexp.MustCompile(`%LINEPROTO-5-UPDOWN: Line protocol on Interface (\S+), changed state to (\w+)`)
	grTimeoutRe    = regexp.MustCompile(`%BGP-5-BGP_GRACEFUL_RESTART_TIMEOUT: Deleting stale routes from peer (\S+) \S+ (\d+)`)
	logTimestampRe = regexp.MustCompile(`^(\w{3}\s+\d+\s+\d\d:\d\d:\d\d)`)
)

const (
	logScrapeRetries = 60
	logScrapeDelay   = time.Second
)

// scrapeLogs retries "show log | begin session_begins_<ts>" until the
// window is non-empty, then parses the BGP adjacency, interface
// line-protocol, and GR-timeout events out of it.
func (o *Observer) scrapeLogs(ctx context.Context, report *Report) error {
	sentinel := fmt.Sprintf("session_begins_%d", o.sessionBeginUnix)
	cmd := fmt.Sprintf("show log | begin %s", sentinel)

	var out string
	for attempt := 0; attempt < logScrapeRetries; attempt++ {
		lines, err := o.session.Command(cmd, 10*time.Second)
		if err == nil && strings.TrimSpace(lines) != "" {
			out = lines
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(logScrapeDelay):
		}
	}
	if strings.TrimSpace(out) == "" {
		return fmt.Errorf("log window for %s never populated", sentinel)
	}

	return parseLogWindow(out, report)
}

type logEvent struct {
	at    time.Time
	peer  string
	state string
}

func parseLogWindow(out string, report *Report) error {
	var bgpEvents, ifaceEvents []logEvent

	for _, line := range strings.Split(out, "\n") {
		ts := parseLogLineTime(line)

		if m := bgpAdjChangeRe.FindStringSubmatch(line); m != nil {
			bgpEvents = append(bgpEvents, logEvent{at: ts, peer: m[1], state: m[2]})
			continue
		}
		if m := lineProtoRe.FindStringSubmatch(line); m != nil {
			ifaceEvents = append(ifaceEvents, logEvent{at: ts, peer: m[1], state: m[2]})
			continue
		}
		if m := grTimeoutRe.FindStringSubmatch(line); m != nil {
			report.RouteTimeouts = append(report.RouteTimeouts, fmt.Sprintf("graceful restart timed out for peer %s (asn %s)", m[1], m[2]))
		}
	}

	if len(bgpEvents) > 0 {
		if bgpEvents[0].state == "Established" {
			return fmt.Errorf("first BGP log event for peer %s was already Established", bgpEvents[0].peer)
		}
		if bgpEvents[len(bgpEvents)-1].state != "Established" {
			return fmt.Errorf("last BGP log event for peer %s did not end Established", bgpEvents[len(bgpEvents)-1].peer)
		}

		// A neighbor device carries at most one v4 and one v6 session to
		// the DUT; split on whether the logged peer address is IPv6.
		v4Events, v6Events := splitByFamily(bgpEvents)
		if len(v4Events) > 0 {
			down, occ := summarizeDowntime(v4Events, "Established")
			report.LogBGPv4DownSeconds = down
			report.LogBGPv4Occurrences = occ
		}
		if len(v6Events) > 0 {
			down, occ := summarizeDowntime(v6Events, "Established")
			report.LogBGPv6DownSeconds = down
			report.LogBGPv6Occurrences = occ
		}
	}

	if len(ifaceEvents) > 0 {
		if ifaceEvents[0].state != "down" {
			return fmt.Errorf("first interface log event for %s was not down", ifaceEvents[0].peer)
		}
		if ifaceEvents[len(ifaceEvents)-1].state != "up" {
			return fmt.Errorf("last interface log event for %s did not end up", ifaceEvents[len(ifaceEvents)-1].peer)
		}
		for _, ev := range ifaceEvents {
			if ev.state == "down" {
				report.LogInterfaceDownCounts[ev.peer]++
			}
		}
		down, _ := summarizeDowntime(ifaceEvents, "up")
		report.LogPortChannelDownSecs = down
	}

	if len(bgpEvents) > 0 && len(ifaceEvents) > 0 {
		report.BGPPortChannelDownOffsetSecs = ifaceEvents[0].at.Sub(bgpEvents[0].at).Seconds()
		report.BGPRecoveryAfterPortChannelUpSecs = bgpEvents[len(bgpEvents)-1].at.Sub(ifaceEvents[len(ifaceEvents)-1].at).Seconds()
	}

	return nil
}

// splitByFamily partitions BGP adjacency events by whether the logged peer
// address is IPv6 (contains ':') or IPv4.
func splitByFamily(events []logEvent) (v4, v6 []logEvent) {
	for _, ev := range events {
		if strings.Contains(ev.peer, ":") {
			v6 = append(v6, ev)
			continue
		}
		v4 = append(v4, ev)
	}
	return v4, v6
}

// summarizeDowntime pairs consecutive transitions into the up state with
// the preceding down transition and sums the elapsed seconds, relative to
// the first event in the slice.
func summarizeDowntime(events []logEvent, upState string) (totalSeconds float64, occurrences int) {
	var downSince time.Time
	down := false
	for _, ev := range events {
		if ev.state == upState {
			if down {
				totalSeconds += ev.at.Sub(downSince).Seconds()
				down = false
			}
		} else {
			if !down {
				downSince = ev.at
				down = true
				occurrences++
			}
		}
	}
	return totalSeconds, occurrences
}

func parseLogLineTime(line string) time.Time {
	m := logTimestampRe.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}
	}
	t, err := time.Parse("Jan 2 15:04:05", m[1])
	if err != nil {
		return time.Time{}
	}
	return t
}
