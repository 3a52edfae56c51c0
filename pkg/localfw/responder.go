package localfw

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// responder implements framework.ARPResponder: it answers ARP requests for
// the seeded VLAN addresses on the capture interface, the way the ARP
// responder the DUT's peers expect to see answering on its behalf.
type responder struct {
	h *handles

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (r *responder) Start(ctx context.Context, seed map[string]map[string]string) error {
	iface, err := r.h.ifaceFor(captureIfacePort)
	if err != nil {
		return err
	}
	hd, err := pcap.OpenLive(iface, 65535, true, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("opening arp responder on %s: %w", iface, err)
	}
	if err := hd.SetBPFFilter("arp"); err != nil {
		hd.Close()
		return fmt.Errorf("setting arp bpf filter: %w", err)
	}

	entries := map[string]string{}
	for _, byIP := range seed {
		for ip, mac := range byIP {
			entries[ip] = mac
		}
	}

	rctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	r.mu.Lock()
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	go r.run(rctx, hd, entries, done)
	return nil
}

func (r *responder) run(ctx context.Context, hd *pcap.Handle, entries map[string]string, done chan struct{}) {
	defer close(done)
	defer hd.Close()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		data, _, err := hd.ZeroCopyReadPacketData()
		if err != nil {
			continue
		}
		pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.NoCopy)
		arpLayer := pkt.Layer(layers.LayerTypeARP)
		if arpLayer == nil {
			continue
		}
		req, ok := arpLayer.(*layers.ARP)
		if !ok || req.Operation != layers.ARPRequest {
			continue
		}
		target := ipString(req.DstProtAddress)
		macStr, known := entries[target]
		if !known {
			continue
		}
		reply, err := buildARPReply(req, macStr)
		if err != nil {
			continue
		}
		_ = hd.WritePacketData(reply)
	}
}

func (r *responder) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func ipString(b []byte) string {
	if len(b) != 4 {
		return ""
	}
	return fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3])
}

func buildARPReply(req *layers.ARP, macStr string) ([]byte, error) {
	mac, err := net.ParseMAC(macStr)
	if err != nil {
		return nil, fmt.Errorf("parsing seeded mac %q: %w", macStr, err)
	}
	eth := &layers.Ethernet{SrcMAC: mac, DstMAC: req.SourceHwAddress, EthernetType: layers.EthernetTypeARP}
	reply := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPReply,
		SourceHwAddress:   []byte(mac),
		SourceProtAddress: req.DstProtAddress,
		DstHwAddress:      req.SourceHwAddress,
		DstProtAddress:    req.SourceProtAddress,
	}
	return serialize(eth, reply)
}
