package orchestrator

import (
	"context"
	"time"

	"github.com/aristanetworks/dataplane-harness/pkg/neighbor"
)

// driveObserver pumps CmdSample tokens to obs at sampleInterval until quit
// is closed, then sends a final CmdQuit.
func driveObserver(ctx context.Context, obs *neighbor.Observer, sampleInterval time.Duration, quit <-chan struct{}) {
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-quit:
			select {
			case obs.Commands() <- neighbor.CmdQuit:
			case <-ctx.Done():
			}
			return
		case <-ticker.C:
			select {
			case obs.Commands() <- neighbor.CmdSample:
			case <-ctx.Done():
				return
			}
		}
	}
}
