package orchestrator

import (
	"net"
	"testing"

	"github.com/aristanetworks/dataplane-harness/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNetworkConfig_ValidInputs(t *testing.T) {
	cfg := &config.Config{}
	cfg.Network.VlanIPRange = "10.0.1.0/24"
	cfg.Network.DefaultIPRange = "10.0.2.0/24"
	cfg.Network.LoPrefix = "10.255.0.1"
	cfg.DUT.MAC = "aa:bb:cc:dd:ee:ff"

	vlanRange, defaultRange, loPrefix, dutMAC, err := parseNetworkConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "10.0.1.0/24", vlanRange.String())
	assert.Equal(t, "10.0.2.0/24", defaultRange.String())
	assert.True(t, loPrefix.Equal(net.ParseIP("10.255.0.1")))
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", dutMAC.String())
}

func TestParseNetworkConfig_RejectsBadVlanRange(t *testing.T) {
	cfg := &config.Config{}
	cfg.Network.VlanIPRange = "garbage"
	cfg.Network.DefaultIPRange = "10.0.2.0/24"
	cfg.Network.LoPrefix = "10.255.0.1"
	cfg.DUT.MAC = "aa:bb:cc:dd:ee:ff"

	_, _, _, _, err := parseNetworkConfig(cfg)
	assert.Error(t, err)
}

func TestParseNetworkConfig_RejectsBadMAC(t *testing.T) {
	cfg := &config.Config{}
	cfg.Network.VlanIPRange = "10.0.1.0/24"
	cfg.Network.DefaultIPRange = "10.0.2.0/24"
	cfg.Network.LoPrefix = "10.255.0.1"
	cfg.DUT.MAC = "not-a-mac"

	_, _, _, _, err := parseNetworkConfig(cfg)
	assert.Error(t, err)
}

func TestMustCIDR_FallsBackOnParseFailure(t *testing.T) {
	n := mustCIDR("not-a-cidr")
	require.NotNil(t, n)
	assert.Equal(t, "0.0.0.0/32", n.String())
}

func TestNeighborLimits_DerivesExpectedRoutesAndPortChannelIface(t *testing.T) {
	cfg := &config.Config{}
	cfg.Limits.MinBGPGRTimeout = 0
	cfg.Network.VlanIPRange = "10.0.1.0/24"
	cfg.Network.LoPrefix = "10.255.0.1/32"
	cfg.Network.LoV6Prefix = "2001:db8::1/128"

	topo := &config.PortTopology{
		PortChannels: map[string]config.PortChannel{
			"Port-Channel1": {Members: []string{"Ethernet1", "Ethernet2"}},
		},
	}

	limits := neighborLimits(cfg, topo)
	assert.Equal(t, "Port-Channel1", limits.PortChannelIface)
	assert.Equal(t, []string{"10.0.1.0/24", "10.255.0.1/32"}, limits.ExpectedV4Routes)
	assert.Equal(t, []string{"2001:db8::1/128"}, limits.ExpectedV6Routes)
}
