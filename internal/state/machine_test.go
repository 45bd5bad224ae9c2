package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gva-control/gvc/internal/clock"
)

func newTestMachine(opts ...Option) (*Machine, *clock.Manual) {
	clk := clock.NewManualAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	opts = append([]Option{WithClock(clk), WithSettleDelay(300 * time.Millisecond)}, opts...)
	return NewMachine(opts...), clk
}

func TestInitialState(t *testing.T) {
	m, _ := newTestMachine()

	assert.Equal(t, Normal, m.Current())
	assert.False(t, m.IsEmergency())

	history := m.History()
	require.Len(t, history, 1)
	assert.Equal(t, Normal, history[0].State)
}

func TestInitialStateCustom(t *testing.T) {
	m, _ := newTestMachine(WithInitialState(EmergencyStop))

	assert.Equal(t, EmergencyStop, m.Current())
	assert.True(t, m.IsEmergency())
	require.Len(t, m.History(), 1)
	assert.Equal(t, EmergencyStop, m.History()[0].State)
}

func TestTransitionCycle(t *testing.T) {
	m, _ := newTestMachine()
	ctx := context.Background()

	result, err := m.Transition(ctx, EmergencyStop)
	require.NoError(t, err)
	assert.Equal(t, "OK", result.Status)
	assert.Equal(t, EmergencyStop, result.State)
	assert.Equal(t, Normal, result.Previous)
	assert.True(t, m.IsEmergency())

	_, err = m.Transition(ctx, Restoring)
	require.NoError(t, err)

	_, err = m.Transition(ctx, Normal)
	require.NoError(t, err)

	assert.Equal(t, Normal, m.Current())
	assert.Len(t, m.History(), 4) // initial + 3 transitions
}

func TestInvalidTransitionsLeaveStateUntouched(t *testing.T) {
	cases := []struct {
		name    string
		initial State
		target  State
	}{
		{"normal to restoring", Normal, Restoring},
		{"normal to normal", Normal, Normal},
		{"emergency to normal shortcut", EmergencyStop, Normal},
		{"emergency to emergency", EmergencyStop, EmergencyStop},
		{"restoring to emergency", Restoring, EmergencyStop},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, _ := newTestMachine(WithInitialState(tc.initial))

			_, err := m.Transition(context.Background(), tc.target)

			var invalid *InvalidTransitionError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tc.initial, invalid.From)
			assert.Equal(t, tc.target, invalid.To)
			assert.Equal(t, Transitions[tc.initial], invalid.Allowed)

			assert.Equal(t, tc.initial, m.Current())
			assert.Len(t, m.History(), 1)
		})
	}
}

func TestSettleDelayBeforeCommit(t *testing.T) {
	m, clk := newTestMachine()

	_, err := m.Transition(context.Background(), EmergencyStop)
	require.NoError(t, err)

	slept := clk.Slept()
	require.Len(t, slept, 1)
	assert.Equal(t, 300*time.Millisecond, slept[0])
}

func TestInvalidTransitionSkipsSettleDelay(t *testing.T) {
	m, clk := newTestMachine()

	_, err := m.Transition(context.Background(), Restoring)
	require.Error(t, err)
	assert.Empty(t, clk.Slept())
}

func TestHistoryReturnsCopy(t *testing.T) {
	m, _ := newTestMachine()
	_, err := m.Transition(context.Background(), EmergencyStop)
	require.NoError(t, err)

	history := m.History()
	history[0].State = Restoring

	assert.Equal(t, Normal, m.History()[0].State)
}

func TestObserverInvokedPostCommit(t *testing.T) {
	var gotPrev, gotNext State
	calls := 0

	m, _ := newTestMachine(WithObserver(func(previous, next State) {
		calls++
		gotPrev, gotNext = previous, next
	}))

	_, err := m.Transition(context.Background(), EmergencyStop)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, Normal, gotPrev)
	assert.Equal(t, EmergencyStop, gotNext)
}

func TestObserverNotInvokedOnRejection(t *testing.T) {
	calls := 0
	m, _ := newTestMachine(WithObserver(func(previous, next State) { calls++ }))

	_, err := m.Transition(context.Background(), Restoring)
	require.Error(t, err)
	assert.Zero(t, calls)
}

func TestNoObserverDoesNotFail(t *testing.T) {
	m, _ := newTestMachine()
	_, err := m.Transition(context.Background(), EmergencyStop)
	assert.NoError(t, err)
}

func TestForceReset(t *testing.T) {
	m, _ := newTestMachine(WithInitialState(EmergencyStop))

	m.ForceReset()

	assert.Equal(t, Normal, m.Current())
	assert.Len(t, m.History(), 2)

	// After a forced reset the normal cycle is available again.
	_, err := m.Transition(context.Background(), EmergencyStop)
	assert.NoError(t, err)
}

func TestTransitionCancelledContext(t *testing.T) {
	m, _ := newTestMachine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Transition(ctx, EmergencyStop)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Normal, m.Current())
	assert.Len(t, m.History(), 1)
}

func TestTransitionTableShape(t *testing.T) {
	assert.Len(t, Transitions, 3)
	for _, s := range States {
		assert.NotEmpty(t, Transitions[s], "state %s has no outgoing transitions", s)
	}
	assert.Equal(t, []State{EmergencyStop}, Transitions[Normal])
	assert.Equal(t, []State{Restoring}, Transitions[EmergencyStop])
	assert.Equal(t, []State{Normal}, Transitions[Restoring])
}

func TestStateValid(t *testing.T) {
	for _, s := range States {
		assert.True(t, s.Valid())
	}
	assert.False(t, State("HALTED").Valid())
}
