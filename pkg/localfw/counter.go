package localfw

import (
	"context"
	"fmt"
	"time"

	"github.com/aristanetworks/dataplane-harness/pkg/framework"
	"github.com/google/gopacket/pcap"
)

// counter implements framework.Counter by opening a short-lived capture on
// each requested port's interface and counting packets that match a BPF
// filter derived from the template name. A real multi-port test framework
// matches replies against the exact probe it sent; this stand-in only has
// the template's name and ignore-flags to go on, so it approximates with a
// filter keyed by template name. That is a known simplification of the
// boundary — see DESIGN.md.
type counter struct {
	h *handles
}

func (c *counter) CountMatchedPackets(ctx context.Context, tmpl framework.MatchTemplate, ports []int, timeout time.Duration) (int, error) {
	filter, err := bpfForTemplate(tmpl)
	if err != nil {
		return 0, err
	}

	ifaces := map[string]bool{}
	for _, port := range ports {
		iface, err := c.h.ifaceFor(port)
		if err != nil {
			return 0, err
		}
		ifaces[iface] = true
	}

	total := 0
	for iface := range ifaces {
		n, err := countOn(iface, filter, timeout)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func countOn(iface, filter string, timeout time.Duration) (int, error) {
	hd, err := pcap.OpenLive(iface, 65535, true, 50*time.Millisecond)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", iface, err)
	}
	defer hd.Close()
	if filter != "" {
		if err := hd.SetBPFFilter(filter); err != nil {
			return 0, fmt.Errorf("setting bpf filter on %s: %w", iface, err)
		}
	}

	count := 0
	deadline := time.After(timeout)
	for {
		select {
		case <-deadline:
			return count, nil
		default:
		}
		_, _, err := hd.ZeroCopyReadPacketData()
		if err == pcap.NextErrorTimeoutExpired {
			continue
		}
		if err != nil {
			continue
		}
		count++
	}
}

func bpfForTemplate(tmpl framework.MatchTemplate) (string, error) {
	switch tmpl.Name {
	case "from_t1_reply":
		return "tcp and dst port 5000", nil
	case "from_vlan_reply":
		return "tcp and src port 5000", nil
	case "ping_dut_reply":
		return "icmp", nil
	case "arp_reply":
		return "arp", nil
	default:
		return "", fmt.Errorf("localfw: no bpf filter known for match template %q", tmpl.Name)
	}
}
