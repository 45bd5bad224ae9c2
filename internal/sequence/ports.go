package sequence

import (
	"context"
	"time"
)

// SequencerPort is the minimal interface the API layer needs.
type SequencerPort interface {
	Trigger(ctx context.Context) (*StopResult, error)
	Reset(ctx context.Context) (*ResetResult, error)
	IsRunning() bool
	LastResult() *StopResult
}

// AuditLogger records safety actions with their outcome and latency.
type AuditLogger interface {
	LogAction(ctx context.Context, action, unitID, outcome string, latency time.Duration)
}

// EventPublisher fans safety events out to observers (SSE hub).
type EventPublisher interface {
	Emit(eventType string, data map[string]any)
}
