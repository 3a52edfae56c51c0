package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.DUT.Host = "dut1"
	cfg.DUT.RebootType = RebootFast
	cfg.Neighbors = []NeighborConfig{{Name: "n1", Host: "10.0.0.2"}}
	cfg.Network.VlanIPRange = "10.0.1.0/24"
	cfg.Network.DefaultIPRange = "10.0.2.0/24"
	cfg.Ports.PortsFile = "ports.json"
	cfg.Ports.PortChannelPortsFile = "pc.json"
	cfg.Ports.VlanPortsFile = "vlan.json"
	return cfg
}

func TestValidate_AcceptsWellFormedConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_RequiresDUTHost(t *testing.T) {
	cfg := validConfig()
	cfg.DUT.Host = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownRebootType(t *testing.T) {
	cfg := validConfig()
	cfg.DUT.RebootType = "slow"
	assert.Error(t, cfg.Validate())
}

func TestValidate_WarmRebootServiceIsOptional(t *testing.T) {
	cfg := validConfig()
	cfg.DUT.RebootType = RebootWarm
	cfg.DUT.RebootService = ""
	assert.NoError(t, cfg.Validate())

	cfg.DUT.RebootService = "systemd-reboot"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RequiresAtLeastOneNeighbor(t *testing.T) {
	cfg := validConfig()
	cfg.Neighbors = nil
	assert.Error(t, cfg.Validate())
}

func TestValidate_RequiresNeighborHost(t *testing.T) {
	cfg := validConfig()
	cfg.Neighbors = []NeighborConfig{{Name: "n1"}}
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsMalformedCIDRs(t *testing.T) {
	cfg := validConfig()
	cfg.Network.VlanIPRange = "not-a-cidr"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RequiresAllThreePortFiles(t *testing.T) {
	cfg := validConfig()
	cfg.Ports.VlanPortsFile = ""
	assert.Error(t, cfg.Validate())
}

func TestSaveAndLoad_RoundTripsConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	want := validConfig()
	require.NoError(t, Save(want, path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want.DUT.Host, got.DUT.Host)
	assert.Equal(t, want.Network.VlanIPRange, got.Network.VlanIPRange)
	assert.Equal(t, want.Limits.RebootLimit, got.Limits.RebootLimit)
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
