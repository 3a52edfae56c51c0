package fsm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateMachine_SetRecordsTransitionAndTimestamp(t *testing.T) {
	sm := New("asic")
	assert.Equal(t, StateInit, sm.Get())

	prev := sm.Set(StateUp)
	assert.Equal(t, StateInit, prev)
	assert.Equal(t, StateUp, sm.Get())

	ts, ok := sm.StateTime(StateUp)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), ts, time.Second)

	_, ok = sm.StateTime(StateDown)
	assert.False(t, ok)
}

func TestStateMachine_Flooding(t *testing.T) {
	sm := New("asic")
	assert.False(t, sm.IsFlooding())
	sm.SetFlooding(true)
	assert.True(t, sm.IsFlooding())
}

func TestStateMachine_WaitForReturnsOnMatch(t *testing.T) {
	sm := New("cpu")
	go func() {
		time.Sleep(20 * time.Millisecond)
		sm.Set(StateUp)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	state, ok := sm.WaitFor(ctx, 5*time.Millisecond, StateUp, StatePartial)
	require.True(t, ok)
	assert.Equal(t, StateUp, state)
}

func TestStateMachine_WaitForTimesOutOnCancelledContext(t *testing.T) {
	sm := New("vlan")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := sm.WaitFor(ctx, 5*time.Millisecond, StateUp)
	assert.False(t, ok)
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateInit:    "init",
		StateUp:      "up",
		StatePartial: "partial",
		StateDown:    "down",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}
