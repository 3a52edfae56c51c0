// Package fsm implements the thread-safe reachability state machines used
// by the watcher: one each for the ASIC (dataplane), the CPU
// (control-plane), and the VLAN ARP path.
package fsm

import (
	"context"
	"sync"
	"time"
)

// State is one of the four reachability states a plane can be in.
type State int

const (
	// StateInit is the zero value, held before the first classification.
	StateInit State = iota
	StateUp
	StatePartial
	StateDown
)

func (s State) String() string {
	switch s {
	case StateUp:
		return "up"
	case StatePartial:
		return "partial"
	case StateDown:
		return "down"
	default:
		return "init"
	}
}

// StateMachine tracks the current reachability state of one plane plus a
// flooding flag and the wall-clock time the machine last entered each
// state. All operations are serialized by mu; Set never clears another
// state's recorded timestamp.
type StateMachine struct {
	mu        sync.Mutex
	name      string
	state     State
	flooding  bool
	enteredAt map[State]time.Time
}

// New creates a state machine in StateInit.
func New(name string) *StateMachine {
	return &StateMachine{
		name:      name,
		state:     StateInit,
		enteredAt: make(map[State]time.Time, 4),
	}
}

// Name returns the plane name this machine tracks ("asic", "cpu", "vlan").
func (m *StateMachine) Name() string {
	return m.name
}

// Set transitions to the given state, recording the current time against
// it, and returns the previous state so callers can log the transition.
func (m *StateMachine) Set(s State) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.state
	m.state = s
	m.enteredAt[s] = time.Now()
	return prev
}

// Get returns the current state.
func (m *StateMachine) Get() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// StateTime returns the wall-clock time the machine last entered s, and
// whether it has ever entered s at all.
func (m *StateMachine) StateTime(s State) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.enteredAt[s]
	return t, ok
}

// SetFlooding records the flooding flag.
func (m *StateMachine) SetFlooding(f bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flooding = f
}

// IsFlooding reports whether the plane is currently considered flooding.
func (m *StateMachine) IsFlooding() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flooding
}

func (m *StateMachine) snapshot() (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.flooding
}

// WaitFor blocks, polling every pollInterval, until the machine's state is
// one of want or ctx is done. It returns the matched state, or StateInit
// with ok=false if the context expired first.
func (m *StateMachine) WaitFor(ctx context.Context, pollInterval time.Duration, want ...State) (State, bool) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		s, _ := m.snapshot()
		for _, w := range want {
			if s == w {
				return s, true
			}
		}
		select {
		case <-ctx.Done():
			return StateInit, false
		case <-ticker.C:
		}
	}
}
