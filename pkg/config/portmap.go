package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// PortMap resolves logical port names to the integer indices the test
// framework's Sender/Counter primitives address ports by.
type PortMap map[string]int

// PortChannel is one port-channel's member port names.
type PortChannel struct {
	Members []string `json:"members"`
}

// VlanGroup is one VLAN's member port names. Exactly one VLAN entry is
// permitted per run; more than one is a configuration error.
type VlanGroup struct {
	Members []string `json:"members"`
}

// PortTopology is the fully loaded, cross-referenced view of the three
// boundary JSON files.
type PortTopology struct {
	Ports              PortMap
	PortChannels       map[string]PortChannel
	VlanName           string
	Vlan               VlanGroup
	PortChannelIndices []int
	VlanIndices        []int
}

// LoadPortTopology reads and cross-references the three JSON port-map files
// named in cfg.Ports.
func LoadPortTopology(cfg *Config) (*PortTopology, error) {
	ports, err := loadPortMap(cfg.Ports.PortsFile)
	if err != nil {
		return nil, err
	}

	var pcs map[string]PortChannel
	if err := loadJSON(cfg.Ports.PortChannelPortsFile, &pcs); err != nil {
		return nil, err
	}

	var vlans map[string]VlanGroup
	if err := loadJSON(cfg.Ports.VlanPortsFile, &vlans); err != nil {
		return nil, err
	}
	if len(vlans) != 1 {
		return nil, fmt.Errorf("vlan_ports_file must declare exactly one VLAN, found %d", len(vlans))
	}

	topo := &PortTopology{
		Ports:        ports,
		PortChannels: pcs,
	}
	for name, grp := range vlans {
		topo.VlanName = name
		topo.Vlan = grp
	}
	for _, name := range topo.Vlan.Members {
		idx, ok := ports[name]
		if !ok {
			return nil, fmt.Errorf("vlan member %q has no entry in ports_file", name)
		}
		topo.VlanIndices = append(topo.VlanIndices, idx)
	}
	for _, pc := range pcs {
		for _, name := range pc.Members {
			idx, ok := ports[name]
			if !ok {
				return nil, fmt.Errorf("portchannel member %q has no entry in ports_file", name)
			}
			topo.PortChannelIndices = append(topo.PortChannelIndices, idx)
		}
	}

	return topo, nil
}

func loadPortMap(path string) (PortMap, error) {
	var m PortMap
	if err := loadJSON(path, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func loadJSON(path string, v interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
