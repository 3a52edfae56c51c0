package orchestrator

import (
	"fmt"
	"net"

	"github.com/aristanetworks/dataplane-harness/pkg/config"
	"github.com/aristanetworks/dataplane-harness/pkg/neighbor"
)

func parseNetworkConfig(cfg *config.Config) (vlanRange, defaultRange *net.IPNet, loPrefix net.IP, dutMAC net.HardwareAddr, err error) {
	_, vlanRange, err = net.ParseCIDR(cfg.Network.VlanIPRange)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("parsing vlan_ip_range: %w", err)
	}
	_, defaultRange, err = net.ParseCIDR(cfg.Network.DefaultIPRange)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("parsing default_ip_range: %w", err)
	}
	loPrefix = net.ParseIP(cfg.Network.LoPrefix)
	if loPrefix == nil {
		return nil, nil, nil, nil, fmt.Errorf("lo_prefix %q is not a valid IP", cfg.Network.LoPrefix)
	}
	dutMAC, err = parseMAC(cfg.DUT.MAC)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return vlanRange, defaultRange, loPrefix, dutMAC, nil
}

func parseMAC(s string) (net.HardwareAddr, error) {
	mac, err := net.ParseMAC(s)
	if err != nil {
		return nil, fmt.Errorf("parsing dut mac %q: %w", s, err)
	}
	return mac, nil
}

func mustCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		return &net.IPNet{IP: net.IPv4zero, Mask: net.CIDRMask(32, 32)}
	}
	return n
}

func neighborLimits(cfg *config.Config, topo *config.PortTopology) neighbor.Limits {
	var pcName string
	for name := range topo.PortChannels {
		pcName = name
		break
	}
	return neighbor.Limits{
		MinBGPGRTimeout:  cfg.Limits.MinBGPGRTimeout,
		ExpectedV4Routes: []string{cfg.Network.VlanIPRange, cfg.Network.LoPrefix},
		ExpectedV6Routes: []string{cfg.Network.LoV6Prefix},
		PortChannelIface: pcName,
	}
}
