package neighbor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// lacpUp reports whether a "show lacp neighbor" transcript shows a bundled
// port-channel member.
func lacpUp(output string) bool {
	return strings.Contains(output, "Bundled")
}

// bgpGRCapabilities is the static "what did the peer negotiate" snapshot of
// a "show ip bgp neighbors" transcript: whether graceful restart is enabled
// for each address family, and the advertised restart-time. This is
// captured once per test, on the first sample that carries a restart-time
// line -- it does not change as the session flaps.
type bgpGRCapabilities struct {
	Ipv4Enabled bool
	Ipv6Enabled bool
	RestartTime int // seconds; -1 if the transcript carried no restart-time line
}

// parseBGPGRCapabilitiesOnce text-scans a "show ip bgp neighbors" transcript
// for the graceful-restart capability lines. "enabled" here means the
// session negotiated GR support, not that a restart is in progress --
// conflating the two spuriously fails every steady-state poll.
func parseBGPGRCapabilitiesOnce(output string) bgpGRCapabilities {
	caps := bgpGRCapabilities{RestartTime: -1}
	for _, line := range strings.Split(output, "\n") {
		switch {
		case strings.Contains(line, "Restart-time is"):
			fields := strings.Fields(line)
			if len(fields) > 0 {
				if v, err := strconv.Atoi(fields[len(fields)-1]); err == nil {
					caps.RestartTime = v
				}
			}
		case strings.Contains(line, "is enabled, Forwarding State is"):
			switch {
			case strings.Contains(line, "IPv6"):
				caps.Ipv6Enabled = true
			case strings.Contains(line, "IPv4"):
				caps.Ipv4Enabled = true
			}
		}
	}
	return caps
}

// bgpGRTimer is the live "is a graceful restart running right now" state,
// sampled on every poll turn. Distinct from bgpGRCapabilities: a peer can
// have GR enabled for months without its restart timer ever being active.
type bgpGRTimer struct {
	Active    bool
	Remaining string // HH:MM:SS, as printed by the CLI
}

// parseBGPGRTimer text-scans a "show ip bgp neighbors" transcript for the
// restart-timer line. Absent or "inactive" is the steady-state case and is
// not by itself a failure.
func parseBGPGRTimer(output string) bgpGRTimer {
	var timer bgpGRTimer
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "Restart timer is") {
			continue
		}
		timer.Active = strings.Contains(line, "is active")
		if len(line) >= 8 {
			timer.Remaining = strings.TrimSpace(line[len(line)-8:])
		}
	}
	return timer
}

func parseHHMMSS(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed HH:MM:SS value %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	sec, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, err
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}

type routeShowJSON struct {
	VRFs map[string]struct {
		Routes map[string]struct {
			RouteAction string `json:"routeAction"`
			Vias        []struct {
				Interface string `json:"interface"`
			} `json:"vias"`
		} `json:"routes"`
	} `json:"vrfs"`
}

// routesOK reports whether every prefix in expected is present in output
// with routeAction=forward and at least one port-channel next hop.
func routesOK(output string, expected []string) (bool, error) {
	start := strings.IndexByte(output, '{')
	if start < 0 {
		return false, fmt.Errorf("no JSON object found in route output")
	}
	var parsed routeShowJSON
	if err := json.Unmarshal([]byte(output[start:]), &parsed); err != nil {
		return false, fmt.Errorf("parsing route JSON: %w", err)
	}

	routes := make(map[string]bool)
	for _, vrf := range parsed.VRFs {
		for prefix, r := range vrf.Routes {
			if r.RouteAction != "forward" {
				continue
			}
			for _, via := range r.Vias {
				if strings.HasPrefix(via.Interface, "Port-Channel") {
					routes[prefix] = true
				}
			}
		}
	}

	for _, prefix := range expected {
		if !routes[prefix] {
			return false, nil
		}
	}
	return true, nil
}

type poShowJSON struct {
	Interfaces map[string]struct {
		LastStatusChangeTimestamp float64 `json:"lastStatusChangeTimestamp"`
	} `json:"interfaces"`
}

// portChannelChangeTimestamp extracts the last status-change timestamp of
// the named port-channel interface.
func portChannelChangeTimestamp(output, ifaceName string) (float64, error) {
	start := strings.IndexByte(output, '{')
	if start < 0 {
		return 0, fmt.Errorf("no JSON object found in port-channel output")
	}
	var parsed poShowJSON
	if err := json.Unmarshal([]byte(output[start:]), &parsed); err != nil {
		return 0, fmt.Errorf("parsing port-channel JSON: %w", err)
	}
	iface, ok := parsed.Interfaces[ifaceName]
	if !ok {
		return 0, fmt.Errorf("interface %q not present in port-channel output", ifaceName)
	}
	return iface.LastStatusChangeTimestamp, nil
}
