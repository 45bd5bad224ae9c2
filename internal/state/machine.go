package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gva-control/gvc/internal/clock"
)

// DefaultSettleDelay is the reference latency of a state commit on the
// embedded controller.
const DefaultSettleDelay = 300 * time.Millisecond

// Machine holds the current operational state and the append-only history
// of committed transitions. Safe for concurrent use.
type Machine struct {
	mu       sync.Mutex
	current  State
	history  []TransitionRecord
	observer Observer

	clk    clock.Clock
	settle time.Duration
	logger *slog.Logger
}

// Option configures a Machine.
type Option func(*Machine)

// WithInitialState sets the starting state. Default is Normal.
func WithInitialState(s State) Option {
	return func(m *Machine) { m.current = s }
}

// WithObserver registers the single optional state change observer.
func WithObserver(fn Observer) Option {
	return func(m *Machine) { m.observer = fn }
}

// WithClock injects the timing source used for the settle delay.
func WithClock(c clock.Clock) Option {
	return func(m *Machine) { m.clk = c }
}

// WithSettleDelay overrides the commit settle delay.
func WithSettleDelay(d time.Duration) Option {
	return func(m *Machine) { m.settle = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// NewMachine creates a state machine. The first history record always equals
// the initial state.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		current: Normal,
		clk:     clock.NewReal(),
		settle:  DefaultSettleDelay,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.history = []TransitionRecord{{State: m.current, Timestamp: m.clk.Now()}}
	m.logger.Info("state machine initialized", "state", m.current)
	return m
}

// Current returns the current operational state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// IsEmergency reports whether the unit is in EMERGENCY_STOP.
func (m *Machine) IsEmergency() bool {
	return m.Current() == EmergencyStop
}

// History returns a copy of the committed transition records, oldest first.
func (m *Machine) History() []TransitionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TransitionRecord, len(m.history))
	copy(out, m.history)
	return out
}

// Transition moves the machine to target after validating against the
// adjacency table. The settle delay elapses between validation and commit;
// the machine is never observable in an intermediate state. A validation
// failure returns *InvalidTransitionError and mutates nothing.
func (m *Machine) Transition(ctx context.Context, target State) (*TransitionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := Transitions[m.current]
	if !contains(allowed, target) {
		err := &InvalidTransitionError{From: m.current, To: target, Allowed: allowed}
		m.logger.Warn("transition rejected", "from", m.current, "to", target)
		return nil, err
	}

	previous := m.current
	m.logger.Info("transition", "from", previous, "to", target)

	// Settle delay emulates embedded controller latency. It runs inside the
	// lock: the new state must not be observable until the commit.
	if err := m.clk.Sleep(ctx, m.settle); err != nil {
		return nil, err
	}

	ts := m.clk.Now()
	m.current = target
	m.history = append(m.history, TransitionRecord{State: target, Timestamp: ts})

	if m.observer != nil {
		m.observer(previous, target)
	}

	if target == EmergencyStop {
		m.logger.Error("critical state active", "state", target)
	} else {
		m.logger.Info("state committed", "state", target)
	}

	return &TransitionResult{
		Status:    "OK",
		State:     target,
		Previous:  previous,
		Timestamp: ts,
	}, nil
}

// ForceReset sets the state to Normal unconditionally, bypassing the table.
// Administrative escape hatch; the forced commit is still recorded so the
// history stays truthful to observed states.
func (m *Machine) ForceReset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = Normal
	m.history = append(m.history, TransitionRecord{State: Normal, Timestamp: m.clk.Now()})
	m.logger.Warn("forced reset to NORMAL")
}

func contains(set []State, s State) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
