package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gva-control/gvc/internal/clock"
)

func newTestChannel() (*SimChannel, *clock.Manual) {
	clk := clock.NewManualAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ch := NewSimChannel(Identity{UnitID: "GVA-07", Sector: "ALMACEN-3"},
		WithClock(clk), WithConnectDelay(400*time.Millisecond))
	return ch, clk
}

func TestPublishEnrichesPayload(t *testing.T) {
	ch, _ := newTestChannel()

	result, err := ch.Publish(context.Background(), "gva/07/safety/emergency", map[string]any{
		"event":   "EMERGENCY_STOP",
		"trigger": "MANUAL_BUTTON",
	})
	require.NoError(t, err)

	assert.Equal(t, "OK", result.Status)
	assert.Equal(t, "gva/07/safety/emergency", result.Topic)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Packet), &decoded))
	assert.Equal(t, "EMERGENCY_STOP", decoded["event"])
	assert.Equal(t, "MANUAL_BUTTON", decoded["trigger"])
	assert.Equal(t, "GVA-07", decoded["unit"])
	assert.Equal(t, "ALMACEN-3", decoded["sector"])
	assert.NotEmpty(t, decoded["ts"])
}

func TestPublishDoesNotMutateInput(t *testing.T) {
	ch, _ := newTestChannel()
	payload := map[string]any{"event": "EMERGENCY_STOP"}

	_, err := ch.Publish(context.Background(), "t", payload)
	require.NoError(t, err)

	assert.Len(t, payload, 1)
}

func TestPublishIncursConnectDelay(t *testing.T) {
	ch, clk := newTestChannel()

	_, err := ch.Publish(context.Background(), "t", map[string]any{})
	require.NoError(t, err)

	require.Len(t, clk.Slept(), 1)
	assert.Equal(t, 400*time.Millisecond, clk.Slept()[0])
}

func TestPublishFailureWrapsCause(t *testing.T) {
	ch, _ := newTestChannel()
	cause := errors.New("connection refused")
	ch.FailPublish = func(topic string) error { return cause }

	_, err := ch.Publish(context.Background(), "gva/07/safety/restore", map[string]any{})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPublish)

	var pubErr *PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, "gva/07/safety/restore", pubErr.Topic)
	assert.Equal(t, cause, pubErr.Original)
	assert.Empty(t, ch.Published())
}

func TestPublishedReturnsCopy(t *testing.T) {
	ch, _ := newTestChannel()

	_, err := ch.Publish(context.Background(), "a", map[string]any{})
	require.NoError(t, err)

	published := ch.Published()
	require.Len(t, published, 1)
	published[0].Topic = "tampered"

	assert.Equal(t, "a", ch.Published()[0].Topic)
}
