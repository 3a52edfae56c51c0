package localfw

import (
	"fmt"
	"net"

	"github.com/aristanetworks/dataplane-harness/pkg/framework"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// builder implements framework.PacketBuilder with github.com/google/gopacket/layers.
type builder struct{}

var serializeOpts = gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}

func (builder) BuildTCP(o framework.TCPOpts) ([]byte, error) {
	eth := ethLayer(o.SrcMAC, o.DstMAC, layers.EthernetTypeIPv4)
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      ttlOr64(o.TTL),
		Protocol: layers.IPProtocolTCP,
		SrcIP:    mustIP4(o.SrcIP),
		DstIP:    mustIP4(o.DstIP),
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(orEphemeral(o.SrcPort)),
		DstPort: layers.TCPPort(o.DstPort),
		SYN:     true,
		Window:  8192,
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}
	return serialize(eth, ip, tcp, gopacket.Payload(o.Payload))
}

func (builder) BuildUDP(o framework.UDPOpts) ([]byte, error) {
	eth := ethLayer(o.SrcMAC, o.DstMAC, layers.EthernetTypeIPv4)
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    mustIP4(o.SrcIP),
		DstIP:    mustIP4(o.DstIP),
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(orEphemeral(o.SrcPort)),
		DstPort: layers.UDPPort(o.DstPort),
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}
	return serialize(eth, ip, udp, gopacket.Payload(o.Payload))
}

func (builder) BuildICMPEcho(o framework.ICMPOpts) ([]byte, error) {
	eth := ethLayer(o.SrcMAC, o.DstMAC, layers.EthernetTypeIPv4)
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    mustIP4(o.SrcIP),
		DstIP:    mustIP4(o.DstIP),
	}
	icmp := &layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
		Id:       o.Identifier,
		Seq:      o.Sequence,
	}
	return serialize(eth, ip, icmp)
}

func (builder) BuildARPRequest(o framework.ARPOpts) ([]byte, error) {
	eth := ethLayer(o.SrcMAC, net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, layers.EthernetTypeARP)
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte(o.SrcMAC),
		SourceProtAddress: mustIP4(o.SrcIP).To4(),
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    mustIP4(o.DstIP).To4(),
	}
	return serialize(eth, arp)
}

func ethLayer(src, dst net.HardwareAddr, ethType layers.EthernetType) *layers.Ethernet {
	return &layers.Ethernet{SrcMAC: src, DstMAC: dst, EthernetType: ethType}
}

func serialize(layerList ...gopacket.SerializableLayer) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, serializeOpts, layerList...); err != nil {
		return nil, fmt.Errorf("serializing packet: %w", err)
	}
	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	return out, nil
}

func mustIP4(ip net.IP) net.IP {
	if ip == nil {
		return net.IPv4zero
	}
	return ip
}

func ttlOr64(ttl uint8) uint8 {
	if ttl == 0 {
		return 64
	}
	return ttl
}

func orEphemeral(p uint16) uint16 {
	if p == 0 {
		return 40000
	}
	return p
}
