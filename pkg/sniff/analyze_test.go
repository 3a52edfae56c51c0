package sniff

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	dutMAC  = net.HardwareAddr{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}
	peerMAC = net.HardwareAddr{0xde, 0xad, 0xbe, 0xef, 0x00, 0x02}
)

func sentPkt(id int, at time.Time) capturedPacket {
	return capturedPacket{srcMAC: peerMAC, dstMAC: dutMAC, payloadID: id, capturedAt: at}
}

func recvPkt(id int, at time.Time) capturedPacket {
	return capturedPacket{srcMAC: dutMAC, dstMAC: peerMAC, payloadID: id, capturedAt: at}
}

func TestAnalyze_NoDisruptionWhenEveryPacketIsEchoed(t *testing.T) {
	base := time.Now()
	var captured []capturedPacket
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Millisecond)
		captured = append(captured, sentPkt(i, at), recvPkt(i, at.Add(time.Microsecond)))
	}

	result, err := analyze(captured, dutMAC, base)
	require.NoError(t, err)
	assert.Empty(t, result.Disruptions)
	assert.Equal(t, base, result.NoRoutingStart)
	assert.Equal(t, base, result.NoRoutingStop)
}

func TestAnalyze_ReconstructsSingleGap(t *testing.T) {
	base := time.Now()
	var captured []capturedPacket
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Millisecond)
		captured = append(captured, sentPkt(i, at))
	}
	captured = append(captured, recvPkt(0, base.Add(time.Microsecond)))
	resumeAt := base.Add(10 * time.Millisecond)
	captured = append(captured, recvPkt(2, resumeAt))

	result, err := analyze(captured, dutMAC, base)
	require.NoError(t, err)
	require.Len(t, result.Disruptions, 1)

	d := result.Disruptions[0]
	assert.Equal(t, 1, d.FirstLostID)
	assert.Equal(t, 1, d.LostCount)
	assert.Equal(t, resumeAt, d.ResumedAt)
}

func TestAnalyze_RanksWorstGapByLostCountNotDuration(t *testing.T) {
	base := time.Now()
	var captured []capturedPacket
	for i := 0; i < 10; i++ {
		at := base.Add(time.Duration(i) * time.Millisecond)
		captured = append(captured, sentPkt(i, at))
	}

	// Gap A: ids 1-2 lost (2 packets), but sits open a long time before id 3
	// resumes it -> long duration, small loss count.
	longResume := base.Add(time.Second)
	captured = append(captured, recvPkt(0, base.Add(time.Microsecond)))
	captured = append(captured, recvPkt(3, longResume))

	// Gap B: ids 4-8 lost (5 packets), resumed 6ms after id 4 was sent ->
	// short duration, large loss count. This is the one that should be
	// reported.
	shortResume := base.Add(10 * time.Millisecond)
	captured = append(captured, recvPkt(9, shortResume))

	result, err := analyze(captured, dutMAC, base)
	require.NoError(t, err)
	require.Len(t, result.Disruptions, 2)

	assert.Equal(t, 5, result.Disruptions[1].LostCount)
	assert.Equal(t, shortResume, result.NoRoutingStop)
}

func TestAnalyze_ErrorsWhenCaptureIsEmpty(t *testing.T) {
	_, err := analyze(nil, dutMAC, time.Now())
	assert.Error(t, err)
}

func TestAnalyze_ErrorsWhenNoReceivedTraffic(t *testing.T) {
	base := time.Now()
	captured := []capturedPacket{sentPkt(0, base), sentPkt(1, base)}
	_, err := analyze(captured, dutMAC, base)
	assert.Error(t, err)
}

func TestFilterSurvivors_DropsDuplicateReceivedFloodsButKeepsEverySent(t *testing.T) {
	base := time.Now()
	captured := []capturedPacket{
		sentPkt(0, base),
		recvPkt(0, base.Add(time.Millisecond)),
		recvPkt(0, base.Add(2*time.Millisecond)),
		sentPkt(1, base.Add(3*time.Millisecond)),
	}

	out := filterSurvivors(captured, dutMAC)
	assert.Len(t, out, 3)
}

func TestMacEqual(t *testing.T) {
	assert.True(t, macEqual(dutMAC, append(net.HardwareAddr{}, dutMAC...)))
	assert.False(t, macEqual(dutMAC, peerMAC))
	assert.False(t, macEqual(dutMAC, dutMAC[:4]))
}
