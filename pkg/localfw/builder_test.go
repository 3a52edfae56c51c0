package localfw

import (
	"net"
	"testing"

	"github.com/aristanetworks/dataplane-harness/pkg/framework"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	srcMAC = net.HardwareAddr{0x5c, 0x01, 0x02, 0x03, 0x00, 0x01}
	dstMAC = net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	srcIP  = net.ParseIP("10.0.2.5")
	dstIP  = net.ParseIP("10.0.1.5")
)

func decode(t *testing.T, frame []byte) gopacket.Packet {
	t.Helper()
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.NoCopy)
	require.Nil(t, pkt.ErrorLayer())
	return pkt
}

func TestBuildTCP_ProducesWellFormedFrame(t *testing.T) {
	var b builder
	frame, err := b.BuildTCP(framework.TCPOpts{
		SrcMAC: srcMAC, DstMAC: dstMAC, SrcIP: srcIP, DstIP: dstIP, DstPort: 5000, TTL: 255,
	})
	require.NoError(t, err)

	pkt := decode(t, frame)
	eth := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	assert.Equal(t, srcMAC, eth.SrcMAC)
	assert.Equal(t, dstMAC, eth.DstMAC)

	ip := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	assert.Equal(t, uint8(255), ip.TTL)
	assert.True(t, ip.SrcIP.Equal(srcIP))

	tcp := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP)
	assert.Equal(t, layers.TCPPort(5000), tcp.DstPort)
	assert.True(t, tcp.SYN)
}

func TestBuildTCP_DefaultsZeroTTLTo64(t *testing.T) {
	var b builder
	frame, err := b.BuildTCP(framework.TCPOpts{SrcMAC: srcMAC, DstMAC: dstMAC, SrcIP: srcIP, DstIP: dstIP, DstPort: 80})
	require.NoError(t, err)
	ip := decode(t, frame).Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	assert.Equal(t, uint8(64), ip.TTL)
}

func TestBuildICMPEcho_SetsIdentifierAndSequence(t *testing.T) {
	var b builder
	frame, err := b.BuildICMPEcho(framework.ICMPOpts{
		SrcMAC: srcMAC, DstMAC: dstMAC, SrcIP: srcIP, DstIP: dstIP, Identifier: 7, Sequence: 3,
	})
	require.NoError(t, err)
	icmp := decode(t, frame).Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4)
	assert.Equal(t, uint16(7), icmp.Id)
	assert.Equal(t, uint16(3), icmp.Seq)
	assert.Equal(t, layers.ICMPv4TypeEchoRequest, icmp.TypeCode.Type())
}

func TestBuildARPRequest_BroadcastsToFFFF(t *testing.T) {
	var b builder
	frame, err := b.BuildARPRequest(framework.ARPOpts{SrcMAC: srcMAC, SrcIP: srcIP, DstIP: dstIP})
	require.NoError(t, err)

	pkt := decode(t, frame)
	eth := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	assert.Equal(t, net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, eth.DstMAC)

	arp := pkt.Layer(layers.LayerTypeARP).(*layers.ARP)
	assert.Equal(t, uint16(layers.ARPRequest), arp.Operation)
}

func TestOrEphemeral_FillsZeroPort(t *testing.T) {
	assert.Equal(t, uint16(40000), orEphemeral(0))
	assert.Equal(t, uint16(1234), orEphemeral(1234))
}

func TestTTLOr64(t *testing.T) {
	assert.Equal(t, uint8(64), ttlOr64(0))
	assert.Equal(t, uint8(200), ttlOr64(200))
}
