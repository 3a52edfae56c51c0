// Package report carries the harness's mutable verdict accumulator plus the
// final TestReport data model and its text/JSON formatters.
package report

import "sync"

// Verdict is the process-wide pass/fail accumulator: the run passes iff
// every target's fail set is empty at teardown.
type Verdict struct {
	mu    sync.Mutex
	fails map[string][]string
	info  map[string][]string
}

// NewVerdict returns an empty accumulator.
func NewVerdict() *Verdict {
	return &Verdict{
		fails: make(map[string][]string),
		info:  make(map[string][]string),
	}
}

// Fail records a failure message against target (the DUT or a neighbor IP).
func (v *Verdict) Fail(target, msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fails[target] = append(v.fails[target], msg)
}

// Info records a non-fatal observation against target.
func (v *Verdict) Info(target, msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.info[target] = append(v.info[target], msg)
}

// Passed reports whether every target's fail set is empty.
func (v *Verdict) Passed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, msgs := range v.fails {
		if len(msgs) > 0 {
			return false
		}
	}
	return true
}

// Fails returns a copy of the accumulated failures, keyed by target.
func (v *Verdict) Fails() map[string][]string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return cloneMap(v.fails)
}

// Infos returns a copy of the accumulated info notes, keyed by target.
func (v *Verdict) Infos() map[string][]string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return cloneMap(v.info)
}

func cloneMap(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		cp := make([]string, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}
