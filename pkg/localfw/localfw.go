// Package localfw is a local-interface stand-in for the external
// packet-testing framework pkg/framework declares interfaces for. It is not
// part of the harness core: production runs plug in a real multi-port test
// framework, but a single developer machine with a handful of tagged
// interfaces can run the same orchestrator logic end to end against this
// package instead.
//
// Each logical "port" the harness addresses by integer index is mapped to
// one host network interface. Send, capture and the ARP responder use
// github.com/google/gopacket/pcap live handles against that interface;
// packet construction uses github.com/google/gopacket/layers directly.
package localfw

import (
	"fmt"

	"github.com/aristanetworks/dataplane-harness/pkg/framework"
	"github.com/google/gopacket/pcap"
)

// Config maps the harness's logical port indices to host interface names.
type Config struct {
	Interfaces map[int]string
	SnapLen    int32
}

// New constructs a framework.Framework backed by live pcap handles on the
// configured interfaces.
func New(cfg Config) framework.Framework {
	if cfg.SnapLen == 0 {
		cfg.SnapLen = 65535
	}
	h := &handles{cfg: cfg, open: map[string]*pcap.Handle{}}
	return framework.Framework{
		Builder:   builder{},
		Sender:    &sender{h: h},
		Counter:   &counter{h: h},
		Capture:   &capture{h: h},
		Responder: &responder{h: h},
	}
}

// handles lazily opens and caches one live pcap.Handle per interface name.
type handles struct {
	cfg  Config
	open map[string]*pcap.Handle
}

func (h *handles) ifaceFor(port int) (string, error) {
	iface, ok := h.cfg.Interfaces[port]
	if !ok {
		return "", fmt.Errorf("no interface configured for logical port %d", port)
	}
	return iface, nil
}

func (h *handles) handleFor(iface string) (*pcap.Handle, error) {
	if hd, ok := h.open[iface]; ok {
		return hd, nil
	}
	hd, err := pcap.OpenLive(iface, h.cfg.SnapLen, true, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", iface, err)
	}
	h.open[iface] = hd
	return hd, nil
}

func (h *handles) closeAll() {
	for _, hd := range h.open {
		hd.Close()
	}
	h.open = map[string]*pcap.Handle{}
}
