// Package probe builds the fixed probe packets once at setup (the FromT1
// set, the FromVlan and PingDUT packets, and, in stream.go, the
// bidirectional UDP stream) plus the reply match templates, against the
// external framework's pkg/framework.PacketBuilder interface. It builds a
// match template for ARP replies but no ARP request packet.
package probe

import (
	"crypto/rand"
	"fmt"
	"net"

	"github.com/aristanetworks/dataplane-harness/pkg/framework"
)

// T1Packet is one ingress-port, pre-built packet pair in the FromT1 set.
type T1Packet struct {
	IngressPort int
	Frame       []byte
	SrcMAC      net.HardwareAddr
	DstIP       net.IP
}

// Set is the full collection of pre-materialized probes plus their match
// templates, built once at setup and reused for the life of the run.
type Set struct {
	FromT1         []T1Packet
	FromVlan       []byte
	PingDUT        []byte
	CanonicalVlan  net.IP
	ARPSeed        map[string]map[string]string

	FromT1Match   framework.MatchTemplate
	FromVlanMatch framework.MatchTemplate
	PingDUTMatch  framework.MatchTemplate
	ARPMatch      framework.MatchTemplate
}

// Params bundles the addressing and topology inputs the builder needs.
type Params struct {
	Builder           framework.PacketBuilder
	DefaultIPRange    *net.IPNet
	VlanIPRange       *net.IPNet
	LoPrefix          net.IP
	DUTMAC            net.HardwareAddr
	VlanIfaceName     string
	PortChannelPorts  []int
}

const maxT1Packets = 500

// Build constructs the probe Set: the T1-sourced, VLAN-sourced and ping
// probe packets, plus the match templates for their replies and for ARP
// replies. No ARP request packet is built.
func Build(p Params) (*Set, error) {
	n := usableHosts(p.VlanIPRange) - 3
	if n > maxT1Packets {
		n = maxT1Packets
	}
	if n < 1 {
		return nil, fmt.Errorf("vlan_ip_range %s is too small for probe synthesis", p.VlanIPRange)
	}

	s := &Set{
		ARPSeed: map[string]map[string]string{p.VlanIfaceName: {}},
		FromT1Match: framework.MatchTemplate{
			Name:              "from_t1_reply",
			IgnoreEthernet:    true,
			IgnoreIPSrc:       true,
			IgnoreIPDst:       true,
			IgnoreIPTTL:       true,
			IgnoreIPChecksum:  true,
			IgnoreTCPChecksum: true,
		},
		FromVlanMatch: framework.MatchTemplate{
			Name:           "from_vlan_reply",
			IgnoreEthernet: true,
		},
		PingDUTMatch: framework.MatchTemplate{
			Name:             "ping_dut_reply",
			IgnoreEthernetSrc: true,
			IgnoreIPID:        true,
			IgnoreIPChecksum:  true,
		},
		ARPMatch: framework.MatchTemplate{
			Name:              "arp_reply",
			IgnoreEthernetSrc: true,
			IgnoreARPHwSrc:    true,
			IgnoreARPHwType:   true,
		},
	}

	for i := 2; i < n+2; i++ {
		srcIP, err := randomHostIn(p.DefaultIPRange)
		if err != nil {
			return nil, fmt.Errorf("synthesizing FromT1 source: %w", err)
		}
		dstIP := offsetIP(p.VlanIPRange.IP, i)
		srcMAC := synthMAC(i)

		frame, err := p.Builder.BuildTCP(framework.TCPOpts{
			SrcMAC:  srcMAC,
			DstMAC:  p.DUTMAC,
			SrcIP:   srcIP,
			DstIP:   dstIP,
			DstPort: 5000,
			TTL:     255,
		})
		if err != nil {
			return nil, fmt.Errorf("building FromT1 packet %d: %w", i, err)
		}

		s.FromT1 = append(s.FromT1, T1Packet{
			IngressPort: p.PortChannelPorts[i%len(p.PortChannelPorts)],
			Frame:       frame,
			SrcMAC:      srcMAC,
			DstIP:       dstIP,
		})
		s.ARPSeed[p.VlanIfaceName][dstIP.String()] = srcMAC.String()
	}

	s.CanonicalVlan = s.FromT1[0].DstIP

	fromVlan, err := p.Builder.BuildTCP(framework.TCPOpts{
		DstMAC:  p.DUTMAC,
		SrcIP:   s.CanonicalVlan,
		DstIP:   p.LoPrefix,
		DstPort: 5000,
		TTL:     64,
	})
	if err != nil {
		return nil, fmt.Errorf("building FromVlan packet: %w", err)
	}
	s.FromVlan = fromVlan

	ping, err := p.Builder.BuildICMPEcho(framework.ICMPOpts{
		DstMAC: p.DUTMAC,
		SrcIP:  s.CanonicalVlan,
		DstIP:  p.LoPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("building ping-DUT packet: %w", err)
	}
	s.PingDUT = ping

	return s, nil
}

// synthMAC produces a deterministic, collision-free source MAC for FromT1
// probe index i: 5c:01:02:03:<counter:04x>.
func synthMAC(i int) net.HardwareAddr {
	return net.HardwareAddr{0x5c, 0x01, 0x02, 0x03, byte(i >> 8), byte(i)}
}

func usableHosts(n *net.IPNet) int {
	ones, bits := n.Mask.Size()
	if bits-ones >= 31 {
		return 1 << 30
	}
	return 1 << (bits - ones)
}

func offsetIP(base net.IP, offset int) net.IP {
	ip4 := base.To4()
	out := make(net.IP, len(ip4))
	copy(out, ip4)
	v := uint32(out[0])<<24 | uint32(out[1])<<16 | uint32(out[2])<<8 | uint32(out[3])
	v += uint32(offset)
	out[0], out[1], out[2], out[3] = byte(v>>24), byte(v>>16), byte(v>>8), byte(v)
	return out
}

func randomHostIn(n *net.IPNet) (net.IP, error) {
	ones, bits := n.Mask.Size()
	hostBits := bits - ones
	if hostBits <= 0 || hostBits > 24 {
		return nil, fmt.Errorf("unsupported host range width /%d", ones)
	}
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	offset := int(buf[3]) % ((1 << hostBits) - 2)
	return offsetIP(n.IP, offset+1), nil
}
