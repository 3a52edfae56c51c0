package probe

import (
	"fmt"
	"net"
	"time"

	"github.com/aristanetworks/dataplane-harness/pkg/framework"
)

// StreamDirection marks which way one packet in a BidirectionalUDP stream
// travels.
type StreamDirection int

const (
	DirVlanToT1 StreamDirection = iota
	DirT1ToVlan
)

// StreamPacket is one pre-built packet of the bidirectional UDP stream,
// tagged with its sequence ID (the UDP payload) and direction.
type StreamPacket struct {
	ID        int
	Direction StreamDirection
	Frame     []byte
}

const maxStreamPackets = 45000

// BuildStream constructs the mixed VLAN->T1 / T1->VLAN UDP stream: one
// VLAN->T1 packet per five T1->VLAN packets, at sendInterval spacing,
// capped by timeToListen. vlanSrc is the canonical
// VLAN host used as the source of every VLAN->T1 packet and t1Dst is the
// T1-side destination (a loopback or T1-reachable prefix) those packets are
// aimed at; vlanRange supplies both the synthetic T1->VLAN sources and the
// rotating VLAN destinations.
func BuildStream(builder framework.PacketBuilder, vlanSrc, t1Dst net.IP, vlanRange *net.IPNet, sendInterval, timeToListen time.Duration) ([]StreamPacket, error) {
	n := int(timeToListen / (sendInterval + 1500*time.Microsecond))
	if n > maxStreamPackets {
		n = maxStreamPackets
	}
	if n < 1 {
		return nil, fmt.Errorf("time_to_listen too short to fit any stream packets")
	}

	n2 := usableHosts(vlanRange) - 2
	if n2 < 1 {
		return nil, fmt.Errorf("vlan_ip_range %s is too small for stream synthesis", vlanRange)
	}

	packets := make([]StreamPacket, 0, n)
	for i := 0; i < n; i++ {
		payload := []byte(fmt.Sprintf("%060d%d", 0, i))

		if i%5 == 0 {
			frame, err := builder.BuildUDP(framework.UDPOpts{
				SrcIP:   vlanSrc,
				DstIP:   t1Dst,
				SrcPort: 1234,
				DstPort: 5000,
				Payload: payload,
			})
			if err != nil {
				return nil, fmt.Errorf("building stream packet %d: %w", i, err)
			}
			packets = append(packets, StreamPacket{ID: i, Direction: DirVlanToT1, Frame: frame})
			continue
		}

		srcIP, err := randomHostIn(vlanRange)
		if err != nil {
			return nil, fmt.Errorf("synthesizing stream source %d: %w", i, err)
		}
		dstHost := 2 + (i % n2)
		dstIP := offsetIP(vlanRange.IP, dstHost)
		frame, err := builder.BuildUDP(framework.UDPOpts{
			SrcIP:   srcIP,
			DstIP:   dstIP,
			SrcPort: 1234,
			DstPort: 5000,
			Payload: payload,
		})
		if err != nil {
			return nil, fmt.Errorf("building stream packet %d: %w", i, err)
		}
		packets = append(packets, StreamPacket{ID: i, Direction: DirT1ToVlan, Frame: frame})
	}

	return packets, nil
}
