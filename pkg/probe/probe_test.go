package probe

import (
	"net"
	"testing"

	"github.com/aristanetworks/dataplane-harness/pkg/framework"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBuilder returns fixed, distinguishable payloads so tests can assert on
// call counts and argument plumbing without caring about wire bytes.
type fakeBuilder struct {
	tcpCalls  []framework.TCPOpts
	icmpCalls []framework.ICMPOpts
}

func (f *fakeBuilder) BuildTCP(o framework.TCPOpts) ([]byte, error) {
	f.tcpCalls = append(f.tcpCalls, o)
	return []byte("tcp"), nil
}

func (f *fakeBuilder) BuildUDP(framework.UDPOpts) ([]byte, error) {
	return []byte("udp"), nil
}

func (f *fakeBuilder) BuildICMPEcho(o framework.ICMPOpts) ([]byte, error) {
	f.icmpCalls = append(f.icmpCalls, o)
	return []byte("icmp"), nil
}

func (f *fakeBuilder) BuildARPRequest(framework.ARPOpts) ([]byte, error) {
	return []byte("arp"), nil
}

func testParams(b *fakeBuilder) Params {
	_, vlanRange, _ := net.ParseCIDR("10.0.1.0/24")
	_, defRange, _ := net.ParseCIDR("10.0.2.0/24")
	return Params{
		Builder:          b,
		DefaultIPRange:   defRange,
		VlanIPRange:      vlanRange,
		LoPrefix:         net.ParseIP("10.255.0.1"),
		DUTMAC:           net.HardwareAddr{0, 1, 2, 3, 4, 5},
		VlanIfaceName:    "Vlan100",
		PortChannelPorts: []int{1, 2},
	}
}

func TestBuild_PopulatesFromT1AndARPSeed(t *testing.T) {
	b := &fakeBuilder{}
	set, err := Build(testParams(b))
	require.NoError(t, err)

	assert.NotEmpty(t, set.FromT1)
	assert.Len(t, set.ARPSeed["Vlan100"], len(set.FromT1))

	for _, p := range set.FromT1 {
		assert.Contains(t, []int{1, 2}, p.IngressPort)
		assert.Equal(t, []byte("tcp"), p.Frame)
	}
}

func TestBuild_CanonicalVlanMatchesFirstFromT1Dst(t *testing.T) {
	b := &fakeBuilder{}
	set, err := Build(testParams(b))
	require.NoError(t, err)
	assert.True(t, set.CanonicalVlan.Equal(set.FromT1[0].DstIP))
}

func TestBuild_FromVlanAndPingUseCanonicalVlanAsSource(t *testing.T) {
	b := &fakeBuilder{}
	set, err := Build(testParams(b))
	require.NoError(t, err)

	require.NotEmpty(t, b.tcpCalls)
	require.NotEmpty(t, b.icmpCalls)

	lastTCP := b.tcpCalls[len(b.tcpCalls)-1]
	assert.True(t, lastTCP.SrcIP.Equal(set.CanonicalVlan))
	assert.True(t, lastTCP.DstIP.Equal(net.ParseIP("10.255.0.1")))

	ping := b.icmpCalls[0]
	assert.True(t, ping.SrcIP.Equal(set.CanonicalVlan))
}

func TestBuild_MatchTemplatesCarryFixedNames(t *testing.T) {
	b := &fakeBuilder{}
	set, err := Build(testParams(b))
	require.NoError(t, err)

	assert.Equal(t, "from_t1_reply", set.FromT1Match.Name)
	assert.Equal(t, "from_vlan_reply", set.FromVlanMatch.Name)
	assert.Equal(t, "ping_dut_reply", set.PingDUTMatch.Name)
	assert.Equal(t, "arp_reply", set.ARPMatch.Name)
}

func TestBuild_RejectsTooSmallVlanRange(t *testing.T) {
	b := &fakeBuilder{}
	p := testParams(b)
	_, tiny, _ := net.ParseCIDR("10.0.1.0/31")
	p.VlanIPRange = tiny

	_, err := Build(p)
	assert.Error(t, err)
}

func TestSynthMAC_IsDeterministicAndDistinctPerIndex(t *testing.T) {
	a := synthMAC(2)
	b := synthMAC(3)
	assert.Equal(t, synthMAC(2), a)
	assert.NotEqual(t, a, b)
}

func TestOffsetIP_AddsToLastOctet(t *testing.T) {
	base := net.ParseIP("10.0.1.0").To4()
	got := offsetIP(base, 5)
	assert.True(t, got.Equal(net.ParseIP("10.0.1.5")))
}
