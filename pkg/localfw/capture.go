package localfw

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aristanetworks/dataplane-harness/pkg/framework"
	"github.com/google/gopacket/pcap"
	"github.com/google/gopacket/pcapgo"
)

// capture implements framework.Capture against the configured capture
// interface (cfg.Interfaces[captureIfacePort] by convention; localfw treats
// port -1 as "the capture/ARP-responder interface" since a live multi-port
// capture has no single-interface equivalent on a development machine).
type capture struct {
	h *handles
}

const captureIfacePort = -1

func (c *capture) StartCapture(ctx context.Context, bpfFilter string, timeout time.Duration) (framework.CaptureHandle, error) {
	iface, err := c.h.ifaceFor(captureIfacePort)
	if err != nil {
		return nil, err
	}

	hd, err := pcap.OpenLive(iface, 65535, true, 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("opening capture on %s: %w", iface, err)
	}
	if bpfFilter != "" {
		if err := hd.SetBPFFilter(bpfFilter); err != nil {
			hd.Close()
			return nil, fmt.Errorf("setting bpf filter: %w", err)
		}
	}

	f, err := os.CreateTemp("", "dataplane-harness-*.pcap")
	if err != nil {
		hd.Close()
		return nil, fmt.Errorf("creating capture file: %w", err)
	}
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65535, hd.LinkType()); err != nil {
		hd.Close()
		f.Close()
		return nil, fmt.Errorf("writing pcap header: %w", err)
	}

	ch := &captureHandle{file: f, writer: w, done: make(chan struct{}), stop: make(chan struct{})}
	go ch.drain(hd, timeout)
	return ch, nil
}

type captureHandle struct {
	file   *os.File
	writer *pcapgo.Writer
	done   chan struct{}
	stop   chan struct{}
}

func (ch *captureHandle) drain(hd *pcap.Handle, timeout time.Duration) {
	defer close(ch.done)
	defer hd.Close()
	deadline := time.After(timeout)
	for {
		select {
		case <-ch.stop:
			return
		case <-deadline:
			return
		default:
		}
		data, ci, err := hd.ZeroCopyReadPacketData()
		if err != nil {
			continue
		}
		_ = ch.writer.WritePacket(ci, data)
	}
}

func (ch *captureHandle) Stop(ctx context.Context) (string, error) {
	close(ch.stop)
	<-ch.done
	name := ch.file.Name()
	if err := ch.file.Close(); err != nil {
		return "", fmt.Errorf("closing capture file: %w", err)
	}
	return name, nil
}
