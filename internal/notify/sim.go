package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gva-control/gvc/internal/clock"
)

// DefaultConnectDelay is the reference broker connect/publish latency.
const DefaultConnectDelay = 400 * time.Millisecond

// SimChannel is an in-process notification channel. It records every packet
// it "publishes" and reproduces broker latency. Safe for concurrent use.
type SimChannel struct {
	mu        sync.Mutex
	published []PublishResult

	id     Identity
	clk    clock.Clock
	delay  time.Duration
	logger *slog.Logger

	// FailPublish, when set, forces Publish to fail with the returned error.
	// Test hook.
	FailPublish func(topic string) error
}

// SimOption configures a SimChannel.
type SimOption func(*SimChannel)

// WithClock injects the timing source for the connect delay.
func WithClock(c clock.Clock) SimOption {
	return func(s *SimChannel) { s.clk = c }
}

// WithConnectDelay overrides the simulated connect/publish delay.
func WithConnectDelay(d time.Duration) SimOption {
	return func(s *SimChannel) { s.delay = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) SimOption {
	return func(s *SimChannel) { s.logger = l }
}

// NewSimChannel creates a simulated notification channel for the given
// unit identity.
func NewSimChannel(id Identity, opts ...SimOption) *SimChannel {
	s := &SimChannel{
		id:     id,
		clk:    clock.NewReal(),
		delay:  DefaultConnectDelay,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish enriches, serializes and records the payload after the simulated
// connect delay.
func (s *SimChannel) Publish(ctx context.Context, topic string, payload map[string]any) (*PublishResult, error) {
	if s.FailPublish != nil {
		if err := s.FailPublish(topic); err != nil {
			return nil, &PublishError{Topic: topic, Original: err}
		}
	}

	if err := s.clk.Sleep(ctx, s.delay); err != nil {
		return nil, &PublishError{Topic: topic, Original: err}
	}

	ts := s.clk.Now()
	packet, err := encodePacket(payload, s.id, ts)
	if err != nil {
		return nil, &PublishError{Topic: topic, Original: err}
	}

	result := PublishResult{
		Status:    "OK",
		Topic:     topic,
		Packet:    packet,
		Timestamp: ts,
	}

	s.mu.Lock()
	s.published = append(s.published, result)
	s.mu.Unlock()

	s.logger.Info("publish acknowledged", "topic", topic, "bytes", len(packet))
	return &result, nil
}

// Published returns a copy of every result recorded so far.
func (s *SimChannel) Published() []PublishResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PublishResult, len(s.published))
	copy(out, s.published)
	return out
}
