package localfw

import (
	"context"
	"fmt"
)

type sender struct {
	h *handles
}

func (s *sender) SendPacket(ctx context.Context, port int, frame []byte) error {
	iface, err := s.h.ifaceFor(port)
	if err != nil {
		return err
	}
	hd, err := s.h.handleFor(iface)
	if err != nil {
		return err
	}
	if err := hd.WritePacketData(frame); err != nil {
		return fmt.Errorf("writing packet to %s: %w", iface, err)
	}
	return nil
}
