package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// WriteJSON serializes r to w as indented JSON.
func WriteJSON(w io.Writer, r *TestReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// FormatText renders a human-readable summary; this harness's output is
// consumed by CI logs as often as by a terminal.
func FormatText(r *TestReport) string {
	var b strings.Builder

	status := "FAIL"
	if r.Success {
		status = "PASS"
	}
	fmt.Fprintf(&b, "=== dataplane-disruption test %s: %s ===\n", r.TestID, status)
	fmt.Fprintf(&b, "dut:          %s (%s reboot)\n", r.DUTHost, r.RebootKind)
	fmt.Fprintf(&b, "duration:     %s\n", r.Duration)
	fmt.Fprintf(&b, "outage:       %s (start=%s stop=%s)\n", r.OutageDuration(), r.NoRoutingStart.Format("15:04:05.000"), r.NoRoutingStop.Format("15:04:05.000"))
	if len(r.Disruptions) > 0 {
		fmt.Fprintf(&b, "disruptions:  %d recorded\n", len(r.Disruptions))
	}

	for target, msgs := range r.Fails {
		for _, m := range msgs {
			fmt.Fprintf(&b, "  FAIL [%s] %s\n", target, m)
		}
	}
	for target, msgs := range r.Info {
		for _, m := range msgs {
			fmt.Fprintf(&b, "  info [%s] %s\n", target, m)
		}
	}

	for _, n := range r.Neighbors {
		fmt.Fprintf(&b, "--- neighbor %s ---\n", n.Name)
		fmt.Fprintf(&b, "  lacp down=%d total=%s  bgpv4 down=%d total=%s  bgpv6 down=%d total=%s  po changes=%d\n",
			n.LACP.DownCount, n.LACP.TotalDown, n.BGPv4.DownCount, n.BGPv4.TotalDown, n.BGPv6.DownCount, n.BGPv6.TotalDown, n.PortChannelChanges)
		if n.Err != nil {
			fmt.Fprintf(&b, "  error: %v\n", n.Err)
		}
	}

	return b.String()
}
