package sniff

import (
	"fmt"
	"net"
	"sort"
	"time"
)

// analyze filters, sorts, and walks the captured packets to reconstruct
// every disruption interval.
func analyze(captured []capturedPacket, dutMAC net.HardwareAddr, rebootStart time.Time) (*Result, error) {
	survivors := filterSurvivors(captured, dutMAC)
	if len(survivors) == 0 {
		return nil, fmt.Errorf("sniffer failed to capture any traffic")
	}

	sort.Slice(survivors, func(i, j int) bool {
		if survivors[i].payloadID != survivors[j].payloadID {
			return survivors[i].payloadID < survivors[j].payloadID
		}
		return survivors[i].capturedAt.Before(survivors[j].capturedAt)
	})

	sentTime := make(map[int]time.Time)
	var disruptions []DisruptionRecord
	prevPayload := -1
	prevTime := rebootStart
	sawReceived := false

	for _, pkt := range survivors {
		if isSent(pkt, dutMAC) {
			sentTime[pkt.payloadID] = pkt.capturedAt
			continue
		}

		sawReceived = true
		gap := pkt.payloadID - prevPayload
		if gap > 1 {
			firstLost := prevPayload + 1
			sentAt, ok := sentTime[firstLost]
			if !ok {
				sentAt = prevTime
			}
			disruptions = append(disruptions, DisruptionRecord{
				FirstLostID: firstLost,
				LostCount:   gap - 1,
				Duration:    pkt.capturedAt.Sub(sentAt),
				SentAt:      sentAt,
				ResumedAt:   pkt.capturedAt,
			})
		}
		prevPayload = pkt.payloadID
		prevTime = pkt.capturedAt
	}

	if !sawReceived {
		return nil, fmt.Errorf("sniffer failed to filter any traffic from DUT")
	}

	result := &Result{Disruptions: disruptions}
	if len(disruptions) == 0 {
		result.NoRoutingStart = rebootStart
		result.NoRoutingStop = rebootStart
		return result, nil
	}

	// Ranked by (LostCount, Duration) lexicographically: the gap with the
	// most lost packets wins, duration only breaks ties.
	worst := disruptions[0]
	for _, d := range disruptions[1:] {
		if d.LostCount > worst.LostCount || (d.LostCount == worst.LostCount && d.Duration > worst.Duration) {
			worst = d
		}
	}
	result.NoRoutingStart = worst.SentAt
	result.NoRoutingStop = worst.ResumedAt
	return result, nil
}

func isSent(pkt capturedPacket, dutMAC net.HardwareAddr) bool {
	return macEqual(pkt.dstMAC, dutMAC)
}

func isReceived(pkt capturedPacket, dutMAC net.HardwareAddr) bool {
	return macEqual(pkt.srcMAC, dutMAC)
}

func macEqual(a, b net.HardwareAddr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// filterSurvivors applies the no-flood rule: a received packet (src MAC =
// DUT) is kept only the first time its payload ID is seen; a sent packet
// (dst MAC = DUT) is always kept.
func filterSurvivors(captured []capturedPacket, dutMAC net.HardwareAddr) []capturedPacket {
	seenReceived := make(map[int]bool)
	var out []capturedPacket
	for _, pkt := range captured {
		switch {
		case isReceived(pkt, dutMAC):
			if seenReceived[pkt.payloadID] {
				continue
			}
			seenReceived[pkt.payloadID] = true
			out = append(out, pkt)
		case isSent(pkt, dutMAC):
			out = append(out, pkt)
		}
	}
	return out
}
