// Package sniff implements the send-and-sniff pipeline (C4) used to verify
// a warm-reboot: a paced bidirectional UDP stream is emitted while a
// background capture records matching packets, then the capture is decoded
// and walked to reconstruct every disruption interval.
package sniff

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/aristanetworks/dataplane-harness/pkg/framework"
	"github.com/aristanetworks/dataplane-harness/pkg/probe"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Config bundles the pipeline's tunables.
type Config struct {
	SendInterval time.Duration
	TimeToListen time.Duration
	VlanPorts    []int
	PrimeDelay   time.Duration
	DUTMAC       net.HardwareAddr
}

// DisruptionRecord is one reconstructed outage interval.
type DisruptionRecord struct {
	FirstLostID int
	LostCount   int
	Duration    time.Duration
	SentAt      time.Time
	ResumedAt   time.Time
}

// Result is the outcome of one send-and-sniff run.
type Result struct {
	Disruptions    []DisruptionRecord
	NoRoutingStart time.Time
	NoRoutingStop  time.Time
}

// Run emits packets across the stream described by "packets" while capturing
// matching traffic, then reconstructs the disruption timeline. rebootStart
// anchors the zero-disruption case.
func Run(ctx context.Context, fw framework.Framework, cfg Config, packets []probe.StreamPacket, rebootStart time.Time, log zerolog.Logger) (*Result, error) {
	log = log.With().Str("component", "sniff").Logger()

	cctx, cancel := context.WithTimeout(ctx, cfg.TimeToListen+30*time.Second)
	defer cancel()

	handle, err := fw.Capture.StartCapture(cctx, "udp and udp dst port 5000 and udp src port 1234 and not icmp", cfg.TimeToListen+30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("starting capture: %w", err)
	}

	started := make(chan struct{})
	time.AfterFunc(cfg.PrimeDelay, func() { close(started) })

	sendErrCh := make(chan error, 1)
	go func() {
		select {
		case <-started:
		case <-cctx.Done():
			sendErrCh <- cctx.Err()
			return
		}
		sendErrCh <- send(cctx, fw, cfg, packets, log)
	}()

	select {
	case err := <-sendErrCh:
		if err != nil {
			log.Warn().Err(err).Msg("sender reported an error")
		}
	case <-cctx.Done():
	}

	pcapPath, err := handle.Stop(ctx)
	if err != nil {
		return nil, fmt.Errorf("stopping capture: %w", err)
	}

	captured, err := decode(pcapPath, maxStreamID(packets))
	if err != nil {
		return nil, fmt.Errorf("decoding capture: %w", err)
	}

	return analyze(captured, cfg.DUTMAC, rebootStart)
}

func maxStreamID(packets []probe.StreamPacket) int {
	max := 0
	for _, p := range packets {
		if p.ID > max {
			max = p.ID
		}
	}
	return max + 1
}

func send(ctx context.Context, fw framework.Framework, cfg Config, packets []probe.StreamPacket, log zerolog.Logger) error {
	limiter := rate.NewLimiter(rate.Every(cfg.SendInterval), 1)
	port := cfg.VlanPorts[0]
	for _, pkt := range packets {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("stream sender interrupted at packet %d: %w", pkt.ID, err)
		}
		if err := fw.Sender.SendPacket(ctx, port, pkt.Frame); err != nil {
			return fmt.Errorf("sending packet %d: %w", pkt.ID, err)
		}
	}
	log.Debug().Int("count", len(packets)).Msg("bidirectional UDP stream fully emitted")
	return nil
}

// capturedPacket is the decoded view of one frame pulled off the wire,
// independent of the capture library's own packet type.
type capturedPacket struct {
	srcMAC    net.HardwareAddr
	dstMAC    net.HardwareAddr
	payloadID int
	capturedAt time.Time
}
