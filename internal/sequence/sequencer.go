package sequence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gva-control/gvc/internal/clock"
	"github.com/gva-control/gvc/internal/hal"
	"github.com/gva-control/gvc/internal/metrics"
	"github.com/gva-control/gvc/internal/notify"
	"github.com/gva-control/gvc/internal/state"
)

// StopResult is the immutable snapshot of one completed emergency stop
// sequence.
type StopResult struct {
	Status    string                  `json:"status"`
	HAL       *hal.PowerResult        `json:"hal"`
	State     *state.TransitionResult `json:"state"`
	Publish   *notify.PublishResult   `json:"mqtt"`
	Duration  time.Duration           `json:"durationMs"`
	Timestamp time.Time               `json:"ts"`
}

// ResetResult is the snapshot of one completed recovery sequence.
type ResetResult struct {
	Status    string        `json:"status"`
	Duration  time.Duration `json:"durationMs"`
	Timestamp time.Time     `json:"ts"`
}

// Sequencer coordinates the power HAL, the state machine and the
// notification channel in guaranteed order. One instance per unit; all
// shared mutable state (busy guard, last result) is instance-owned.
type Sequencer struct {
	machine *state.Machine
	power   hal.PowerControl
	channel notify.Channel

	// mu guards running and lastResult. The guard check-and-set in Trigger
	// is atomic with respect to other Trigger calls.
	mu         sync.Mutex
	running    bool
	lastResult *StopResult

	unitID         string
	emergencyTopic string
	restoreTopic   string

	clk     clock.Clock
	auditor AuditLogger
	hub     EventPublisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

var _ SequencerPort = (*Sequencer)(nil)

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithTopics overrides the emergency and restore topics.
func WithTopics(emergency, restore string) Option {
	return func(s *Sequencer) {
		s.emergencyTopic = emergency
		s.restoreTopic = restore
	}
}

// WithClock injects the timing source.
func WithClock(c clock.Clock) Option {
	return func(s *Sequencer) { s.clk = c }
}

// WithAuditLogger attaches the audit log.
func WithAuditLogger(a AuditLogger) Option {
	return func(s *Sequencer) { s.auditor = a }
}

// WithEventPublisher attaches the safety event hub.
func WithEventPublisher(p EventPublisher) Option {
	return func(s *Sequencer) { s.hub = p }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sequencer) { s.metrics = m }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sequencer) { s.logger = l }
}

// NewSequencer creates the sequencer for one unit.
func NewSequencer(unitID string, machine *state.Machine, power hal.PowerControl, channel notify.Channel, opts ...Option) *Sequencer {
	s := &Sequencer{
		machine:        machine,
		power:          power,
		channel:        channel,
		unitID:         unitID,
		emergencyTopic: "gva/07/safety/emergency",
		restoreTopic:   "gva/07/safety/restore",
		clk:            clock.NewReal(),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsRunning reports whether the busy guard is set.
func (s *Sequencer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastResult returns the most recent stop result, or nil.
func (s *Sequencer) LastResult() *StopResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResult
}

// Machine exposes the owned state machine for read-side queries.
func (s *Sequencer) Machine() *state.Machine {
	return s.machine
}

// Trigger executes the emergency stop sequence: power cut, then state
// transition, then broker notification. Each step starts only after the
// previous fully completed.
//
// Returns ErrBusy without invoking any step when a sequence is in flight or
// unresolved. On any step failure the sequence aborts and the failure is
// wrapped in *StopFailedError. The busy guard stays set on success AND on
// failure: only an operator Reset clears it.
func (s *Sequencer) Trigger(ctx context.Context) (*StopResult, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("trigger rejected, sequence already in flight", "unit", s.unitID)
		s.logAudit(ctx, "trigger", "BUSY", 0)
		if s.metrics != nil {
			s.metrics.BusyRejected.Inc()
		}
		return nil, ErrBusy
	}
	// Guard set before any suspension point so a concurrent trigger
	// deterministically observes busy.
	s.running = true
	s.mu.Unlock()

	start := s.clk.Now()
	s.logger.Error("== EMERGENCY STOP SEQUENCE STARTED ==", "unit", s.unitID)

	// Step 1/3: cut motor power.
	s.logger.Info("step 1/3: cutting power via HAL")
	halResult, err := s.power.CutPower(ctx)
	if err != nil {
		return nil, s.failTrigger(ctx, "cutPower", err, start)
	}

	// Step 2/3: commit the domain state transition.
	s.logger.Info("step 2/3: committing state transition")
	stateResult, err := s.machine.Transition(ctx, state.EmergencyStop)
	if err != nil {
		return nil, s.failTrigger(ctx, "transition", err, start)
	}

	// Step 3/3: notify the broker.
	s.logger.Info("step 3/3: notifying broker", "topic", s.emergencyTopic)
	payload := map[string]any{
		"event":      "EMERGENCY_STOP",
		"trigger":    "MANUAL_BUTTON",
		"hal_status": string(halResult.Relay),
		"state":      string(stateResult.State),
	}
	publishResult, err := s.channel.Publish(ctx, s.emergencyTopic, payload)
	if err != nil {
		return nil, s.failTrigger(ctx, "publish", err, start)
	}

	duration := s.clk.Now().Sub(start)
	result := &StopResult{
		Status:    "OK",
		HAL:       halResult,
		State:     stateResult,
		Publish:   publishResult,
		Duration:  duration,
		Timestamp: s.clk.Now(),
	}

	s.mu.Lock()
	s.lastResult = result
	// running stays true: a real emergency stop always requires an explicit
	// operator reset, even on the happy path.
	s.mu.Unlock()

	s.logger.Error("== EMERGENCY STOP COMPLETED ==", "unit", s.unitID, "duration", duration)
	s.logger.Info("unit in safe mode, awaiting operator action")

	s.logAudit(ctx, "trigger", "SUCCESS", duration)
	s.publishEvent("emergencyTriggered", map[string]any{
		"unit":  s.unitID,
		"relay": string(halResult.Relay),
		"state": string(stateResult.State),
	})
	if s.metrics != nil {
		s.metrics.TriggersTotal.WithLabelValues("ok").Inc()
		s.metrics.SequenceDuration.Observe(duration.Seconds())
	}

	return result, nil
}

// failTrigger records a failed step and wraps its cause. The guard is left
// set: a failed emergency attempt must not silently allow a retry.
func (s *Sequencer) failTrigger(ctx context.Context, step string, cause error, start time.Time) error {
	duration := s.clk.Now().Sub(start)
	s.logger.Error("emergency stop sequence failed",
		"unit", s.unitID, "step", step, "duration", duration, "error", cause)

	s.logAudit(ctx, "trigger", "ERROR", duration)
	s.publishEvent("fault", map[string]any{
		"unit":    s.unitID,
		"step":    step,
		"message": cause.Error(),
	})
	if s.metrics != nil {
		s.metrics.TriggersTotal.WithLabelValues("error").Inc()
		s.metrics.SequenceDuration.Observe(duration.Seconds())
	}

	return &StopFailedError{Step: step, Cause: cause}
}

// Reset recovers the unit to NORMAL after an emergency stop. Callable
// regardless of the busy guard; it is the only way to clear it. The guard is
// cleared only after both state transitions and the restore notification
// succeed; a failure at any earlier point leaves the guard set.
func (s *Sequencer) Reset(ctx context.Context) (*ResetResult, error) {
	start := s.clk.Now()
	s.logger.Warn("-- recovery sequence started --", "unit", s.unitID)

	if _, err := s.machine.Transition(ctx, state.Restoring); err != nil {
		s.logAudit(ctx, "reset", "ERROR", s.clk.Now().Sub(start))
		if s.metrics != nil {
			s.metrics.ResetsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}
	if _, err := s.machine.Transition(ctx, state.Normal); err != nil {
		s.logAudit(ctx, "reset", "ERROR", s.clk.Now().Sub(start))
		if s.metrics != nil {
			s.metrics.ResetsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	payload := map[string]any{
		"event":   "SYSTEM_RESTORED",
		"trigger": "OPERATOR_MANUAL",
	}
	if _, err := s.channel.Publish(ctx, s.restoreTopic, payload); err != nil {
		// State is already NORMAL but the guard stays set until the restore
		// notification goes through.
		s.logAudit(ctx, "reset", "ERROR", s.clk.Now().Sub(start))
		if s.metrics != nil {
			s.metrics.ResetsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	duration := s.clk.Now().Sub(start)
	s.logger.Info("-- unit restored --", "unit", s.unitID, "duration", duration)

	s.logAudit(ctx, "reset", "SUCCESS", duration)
	s.publishEvent("systemRestored", map[string]any{"unit": s.unitID})
	if s.metrics != nil {
		s.metrics.ResetsTotal.WithLabelValues("ok").Inc()
		s.metrics.SequenceDuration.Observe(duration.Seconds())
	}

	return &ResetResult{
		Status:    "OK",
		Duration:  duration,
		Timestamp: s.clk.Now(),
	}, nil
}

func (s *Sequencer) logAudit(ctx context.Context, action, outcome string, latency time.Duration) {
	if s.auditor != nil {
		s.auditor.LogAction(ctx, action, s.unitID, outcome, latency)
	}
}

func (s *Sequencer) publishEvent(eventType string, data map[string]any) {
	if s.hub != nil {
		data["ts"] = s.clk.Now().UTC().Format(time.RFC3339)
		s.hub.Emit(eventType, data)
	}
}
