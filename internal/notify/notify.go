package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PublishResult is the broker acknowledgment for one published message.
type PublishResult struct {
	Status    string    `json:"status"`
	Topic     string    `json:"topic"`
	Packet    string    `json:"packet"`
	Timestamp time.Time `json:"ts"`
}

// Channel is the northbound port for broker notifications. Failures surface
// to the caller; implementations do not retry.
type Channel interface {
	Publish(ctx context.Context, topic string, payload map[string]any) (*PublishResult, error)
}

// ErrPublish indicates the broker rejected or never acknowledged a message.
var ErrPublish = errors.New("NOTIFY_PUBLISH")

// PublishError wraps a channel failure with the topic it was addressed to,
// preserving the original cause.
type PublishError struct {
	Topic    string
	Original error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("%v: topic %s: %v", ErrPublish, e.Topic, e.Original)
}

func (e *PublishError) Unwrap() error {
	return ErrPublish
}

// Identity is the unit identity stamped on every outgoing payload.
type Identity struct {
	UnitID string
	Sector string
}

// encodePacket enriches payload with ts/unit/sector and serializes it.
// The input map is not mutated.
func encodePacket(payload map[string]any, id Identity, ts time.Time) (string, error) {
	full := make(map[string]any, len(payload)+3)
	for k, v := range payload {
		full[k] = v
	}
	full["ts"] = ts.Format(time.RFC3339Nano)
	full["unit"] = id.UnitID
	full["sector"] = id.Sector

	raw, err := json.Marshal(full)
	if err != nil {
		return "", fmt.Errorf("encode packet: %w", err)
	}
	return string(raw), nil
}
