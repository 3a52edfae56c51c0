package sniff

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// decode reads the pcap file the external framework's capture wrote and
// extracts every UDP packet matching the stream's sport/dport pair, keeping
// only those whose payload parses as an integer sequence ID below maxID.
func decode(pcapPath string, maxID int) ([]capturedPacket, error) {
	f, err := os.Open(pcapPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", pcapPath, err)
	}
	defer f.Close()

	reader, err := pcapgo.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("reading pcap header: %w", err)
	}

	var out []capturedPacket
	for {
		data, ci, err := reader.ReadPacketData()
		if err != nil {
			break
		}

		pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		eth, ok := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
		if !ok {
			continue
		}
		udpLayer := pkt.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || udp.SrcPort != 1234 || udp.DstPort != 5000 {
			continue
		}

		payload := bytes.TrimRight(udp.Payload, "\x00")
		id, err := strconv.Atoi(string(payload))
		if err != nil || id < 0 || id >= maxID {
			continue
		}

		out = append(out, capturedPacket{
			srcMAC:     cloneMAC(eth.SrcMAC),
			dstMAC:     cloneMAC(eth.DstMAC),
			payloadID:  id,
			capturedAt: ci.Timestamp,
		})
	}

	return out, nil
}

func cloneMAC(m net.HardwareAddr) net.HardwareAddr {
	out := make(net.HardwareAddr, len(m))
	copy(out, m)
	return out
}
