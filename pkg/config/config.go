// Package config loads and validates the TestConfig parameter bag that
// drives a dataplane-disruption run, plus the three JSON port-map files the
// external test framework publishes.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full parameter bag for one run. It is immutable once
// loaded; every field the orchestrator reads is read-only thereafter.
type Config struct {
	DUT       DUTConfig        `yaml:"dut"`
	Limits    LimitsConfig     `yaml:"limits"`
	Network   NetworkConfig    `yaml:"network"`
	Neighbors []NeighborConfig `yaml:"neighbors"`
	Ports     PortsConfig      `yaml:"ports"`
	Framework FrameworkConfig  `yaml:"framework"`
	Metrics   MetricsConfig    `yaml:"metrics"`
}

// RebootKind is one of the two reboot styles this harness validates.
type RebootKind string

const (
	RebootFast RebootKind = "fast"
	RebootWarm RebootKind = "warm"
)

// DUTConfig describes how to reach and reboot the device under test.
type DUTConfig struct {
	Host          string     `yaml:"host"`
	ManagementIP  string     `yaml:"management_ip"`
	SSHUser       string     `yaml:"ssh_user"`
	SSHKeyPath    string     `yaml:"ssh_key_path"`
	MAC           string     `yaml:"mac"`
	RebootType    RebootKind `yaml:"reboot_type"`
	RebootService string     `yaml:"reboot_service"`
}

// LimitsConfig carries every tunable threshold and probe count.
type LimitsConfig struct {
	RebootLimit      time.Duration `yaml:"reboot_limit"`
	GracefulLimit    time.Duration `yaml:"graceful_limit"`
	MinBGPGRTimeout  time.Duration `yaml:"min_bgp_gr_timeout"`
	WarmUpTimeout    time.Duration `yaml:"warm_up_timeout"`
	Stabilize        time.Duration `yaml:"stabilize"`
	NumPortChannelPkts int         `yaml:"nr_pc_pkts"`
	NumVlanPkts        int         `yaml:"nr_vl_pkts"`
	PingDUTPkts        int         `yaml:"ping_dut_pkts"`
	ArpPingPkts        int         `yaml:"arp_ping_pkts"`
	SendInterval       time.Duration `yaml:"send_interval"`
	TimeToListen       time.Duration `yaml:"time_to_listen"`
	LightProbe         bool          `yaml:"light_probe"`
}

// NetworkConfig carries the IP ranges used to synthesize probe addresses.
type NetworkConfig struct {
	DefaultIPRange string `yaml:"default_ip_range"`
	VlanIPRange    string `yaml:"vlan_ip_range"`
	LoPrefix       string `yaml:"lo_prefix"`
	LoV6Prefix     string `yaml:"lo_v6_prefix"`
}

// NeighborConfig describes one upstream VM to observe over SSH.
type NeighborConfig struct {
	Name       string `yaml:"name"`
	Host       string `yaml:"host"`
	SSHUser    string `yaml:"ssh_user"`
	SSHKeyPath string `yaml:"ssh_key_path"`
}

// PortsConfig points at the three JSON files the test framework publishes.
type PortsConfig struct {
	PortsFile            string `yaml:"ports_file"`
	PortChannelPortsFile string `yaml:"portchannel_ports_file"`
	VlanPortsFile        string `yaml:"vlan_ports_file"`
}

// FrameworkConfig carries ambient logging settings.
type FrameworkConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// MetricsConfig controls the optional live-metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// DefaultConfig returns a configuration with the harness's default
// thresholds filled in; callers overlay a loaded file on top of this.
func DefaultConfig() *Config {
	return &Config{
		Limits: LimitsConfig{
			RebootLimit:        30 * time.Second,
			GracefulLimit:      90 * time.Second,
			MinBGPGRTimeout:    15 * time.Second,
			WarmUpTimeout:      120 * time.Second,
			Stabilize:          10 * time.Second,
			NumPortChannelPkts: 100,
			NumVlanPkts:        500,
			PingDUTPkts:        10,
			ArpPingPkts:        1,
			SendInterval:       3500 * time.Microsecond,
			TimeToListen:       180 * time.Second,
			LightProbe:         true,
		},
		Framework: FrameworkConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Listen:  "127.0.0.1:9464",
		},
	}
}

// Load reads path as YAML after expanding ${VAR}/$VAR references against
// the process environment, overlaying it on top of DefaultConfig.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	expanded := os.ExpandEnv(string(raw))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if v := os.Getenv("DUT_HOST"); v != "" {
		cfg.DUT.Host = v
	}

	return cfg, nil
}

// Save writes cfg as YAML to path.
func Save(cfg *Config, path string) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// Validate checks the fields the orchestrator cannot safely default.
func (c *Config) Validate() error {
	if c.DUT.Host == "" {
		return fmt.Errorf("dut.host is required")
	}
	if c.DUT.RebootType != RebootFast && c.DUT.RebootType != RebootWarm {
		return fmt.Errorf("dut.reboot_type must be %q or %q, got %q", RebootFast, RebootWarm, c.DUT.RebootType)
	}
	// dut.reboot_service is optional for warm reboots: an empty value
	// reboots the whole DUT with "sudo warm-reboot" instead of restarting a
	// single service.
	if len(c.Neighbors) == 0 {
		return fmt.Errorf("at least one neighbor is required")
	}
	for _, n := range c.Neighbors {
		if n.Host == "" {
			return fmt.Errorf("neighbor %q: host is required", n.Name)
		}
	}
	if _, _, err := net.ParseCIDR(c.Network.VlanIPRange); err != nil {
		return fmt.Errorf("network.vlan_ip_range: %w", err)
	}
	if _, _, err := net.ParseCIDR(c.Network.DefaultIPRange); err != nil {
		return fmt.Errorf("network.default_ip_range: %w", err)
	}
	if c.Ports.PortsFile == "" || c.Ports.PortChannelPortsFile == "" || c.Ports.VlanPortsFile == "" {
		return fmt.Errorf("ports.ports_file, portchannel_ports_file and vlan_ports_file are all required")
	}
	return nil
}
