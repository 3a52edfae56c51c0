package orchestrator

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// Interrupter is the run's single emergency-stop mechanism: SIGINT/SIGTERM
// triggers it, and any code can register a callback to run on interrupt.
type Interrupter struct {
	mu        sync.Mutex
	stopped   bool
	stopCh    chan struct{}
	callbacks []func(reason string)
	log       zerolog.Logger
}

// NewInterrupter creates an armed-but-not-yet-watching Interrupter.
func NewInterrupter(log zerolog.Logger) *Interrupter {
	return &Interrupter{
		stopCh: make(chan struct{}),
		log:    log.With().Str("component", "interrupter").Logger(),
	}
}

// Start spawns the signal watcher and returns immediately; the watcher
// goroutine exits once ctx is done or a signal arrives.
func (i *Interrupter) Start(ctx context.Context) {
	go i.watchSignals(ctx)
}

func (i *Interrupter) watchSignals(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
	case s := <-sigCh:
		i.Interrupt(s.String())
	}
}

// Interrupt triggers the stop condition exactly once, running every
// registered callback synchronously with the trigger reason.
func (i *Interrupter) Interrupt(reason string) {
	i.mu.Lock()
	if i.stopped {
		i.mu.Unlock()
		return
	}
	i.stopped = true
	close(i.stopCh)
	cbs := append([]func(string){}, i.callbacks...)
	i.mu.Unlock()

	i.log.Warn().Str("reason", reason).Msg("run interrupted")
	for _, cb := range cbs {
		cb(reason)
	}
}

// OnStop registers a callback invoked (once) when the run is interrupted.
// If the run has already been interrupted, cb runs immediately.
func (i *Interrupter) OnStop(cb func(reason string)) {
	i.mu.Lock()
	if i.stopped {
		i.mu.Unlock()
		cb("already stopped")
		return
	}
	i.callbacks = append(i.callbacks, cb)
	i.mu.Unlock()
}

// Stopped is closed once Interrupt has fired.
func (i *Interrupter) Stopped() <-chan struct{} { return i.stopCh }

// IsStopped reports whether Interrupt has fired.
func (i *Interrupter) IsStopped() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stopped
}

// Bound derives a deadline-bounded child of ctx and logs+interrupts on
// expiry. Only one such deadline is meant to be live at a time, per
// this run.
func (i *Interrupter) Bound(ctx context.Context, dur time.Duration, reason string) (context.Context, context.CancelFunc) {
	cctx, cancel := context.WithTimeout(ctx, dur)
	go func() {
		<-cctx.Done()
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			i.log.Error().Str("reason", reason).Dur("after", dur).Msg("deadline exceeded")
			i.Interrupt(reason)
		}
	}()
	return cctx, cancel
}
