package hal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gva-control/gvc/internal/clock"
)

// DefaultActuationDelay is the reference opening time of the
// electromechanical power relay.
const DefaultActuationDelay = 350 * time.Millisecond

// SimRelay is a simulated relay driver. It owns the relay position and
// reproduces actuation timing. Safe for concurrent use.
type SimRelay struct {
	mu    sync.Mutex
	relay RelayPosition

	unitID string
	clk    clock.Clock
	delay  time.Duration
	logger *slog.Logger

	// FailCut and FailRestore, when set, force the corresponding command to
	// fail with the returned error. Test hook.
	FailCut     func() error
	FailRestore func() error
}

// SimOption configures a SimRelay.
type SimOption func(*SimRelay)

// WithClock injects the timing source for actuation delays.
func WithClock(c clock.Clock) SimOption {
	return func(s *SimRelay) { s.clk = c }
}

// WithActuationDelay overrides the relay actuation delay.
func WithActuationDelay(d time.Duration) SimOption {
	return func(s *SimRelay) { s.delay = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) SimOption {
	return func(s *SimRelay) { s.logger = l }
}

// NewSimRelay creates a simulated relay driver for the given unit.
// The relay starts CLOSED (motor energized).
func NewSimRelay(unitID string, opts ...SimOption) *SimRelay {
	s := &SimRelay{
		relay:  RelayClosed,
		unitID: unitID,
		clk:    clock.NewReal(),
		delay:  DefaultActuationDelay,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger.Info("power HAL initialized", "unit", unitID, "relay", s.relay)
	return s
}

// Relay returns the current relay position.
func (s *SimRelay) Relay() RelayPosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.relay
}

// CutPower opens the power relay and cuts motor power.
func (s *SimRelay) CutPower(ctx context.Context) (*PowerResult, error) {
	if s.FailCut != nil {
		if err := s.FailCut(); err != nil {
			return nil, &ActuationError{Command: "cutPower", Original: err}
		}
	}
	s.logger.Info("sending CUT signal to power controller", "unit", s.unitID)
	return s.actuate(ctx, RelayOpen)
}

// RestorePower closes the power relay and restores motor power.
func (s *SimRelay) RestorePower(ctx context.Context) (*PowerResult, error) {
	if s.FailRestore != nil {
		if err := s.FailRestore(); err != nil {
			return nil, &ActuationError{Command: "restorePower", Original: err}
		}
	}
	s.logger.Info("restoring motor power", "unit", s.unitID)
	return s.actuate(ctx, RelayClosed)
}

func (s *SimRelay) actuate(ctx context.Context, target RelayPosition) (*PowerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.clk.Sleep(ctx, s.delay); err != nil {
		return nil, &ActuationError{Command: "actuate", Original: err}
	}

	s.relay = target
	s.logger.Info("relay actuated", "unit", s.unitID, "relay", target)

	return &PowerResult{
		Status:    "OK",
		Relay:     target,
		UnitID:    s.unitID,
		Timestamp: s.clk.Now(),
	}, nil
}
