package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AuditEntry records one teardown action.
type AuditEntry struct {
	Timestamp time.Time
	Action    string
	Target    string
	Success   bool
	Error     string
}

// TeardownCoordinator records the outcome of signaling and joining each
// neighbor observer at the end of a run.
type TeardownCoordinator struct {
	mu      sync.Mutex
	entries []AuditEntry
	log     zerolog.Logger
}

// NewTeardownCoordinator returns an empty coordinator.
func NewTeardownCoordinator(log zerolog.Logger) *TeardownCoordinator {
	return &TeardownCoordinator{log: log.With().Str("component", "teardown").Logger()}
}

// Record appends one audit entry and logs it.
func (c *TeardownCoordinator) Record(action, target string, err error) {
	entry := AuditEntry{Timestamp: time.Now(), Action: action, Target: target, Success: err == nil}
	if err != nil {
		entry.Error = err.Error()
	}

	c.mu.Lock()
	c.entries = append(c.entries, entry)
	c.mu.Unlock()

	if err != nil {
		c.log.Warn().Str("action", action).Str("target", target).Err(err).Msg("teardown step failed")
	} else {
		c.log.Debug().Str("action", action).Str("target", target).Msg("teardown step completed")
	}
}

// Entries returns a copy of the recorded audit trail.
func (c *TeardownCoordinator) Entries() []AuditEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]AuditEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Summary renders a one-line count of succeeded vs failed teardown steps.
func (c *TeardownCoordinator) Summary() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ok, failed int
	for _, e := range c.entries {
		if e.Success {
			ok++
		} else {
			failed++
		}
	}
	return fmt.Sprintf("%d succeeded, %d failed", ok, failed)
}
