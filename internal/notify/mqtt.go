package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/gva-control/gvc/internal/clock"
)

// MQTTChannel publishes safety events to an MQTT broker through the Eclipse
// Paho client. Messages use QoS 1; a failed or unacknowledged publish
// surfaces to the caller without retry.
type MQTTChannel struct {
	client mqtt.Client
	id     Identity
	clk    clock.Clock
	logger *slog.Logger

	connectTimeout time.Duration
}

// MQTTOption configures an MQTTChannel.
type MQTTOption func(*MQTTChannel)

// WithMQTTClock injects the time source used for result timestamps.
func WithMQTTClock(c clock.Clock) MQTTOption {
	return func(m *MQTTChannel) { m.clk = c }
}

// WithMQTTLogger sets the structured logger.
func WithMQTTLogger(l *slog.Logger) MQTTOption {
	return func(m *MQTTChannel) { m.logger = l }
}

// WithConnectTimeout bounds the initial broker connect.
func WithConnectTimeout(d time.Duration) MQTTOption {
	return func(m *MQTTChannel) { m.connectTimeout = d }
}

// NewMQTTChannel connects to the broker and returns a ready channel.
// brokerURL uses Paho notation, e.g. "tcp://broker.gva-local:1883".
func NewMQTTChannel(brokerURL, username, password string, id Identity, opts ...MQTTOption) (*MQTTChannel, error) {
	m := &MQTTChannel{
		id:             id,
		clk:            clock.NewReal(),
		logger:         slog.Default(),
		connectTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}

	copts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(fmt.Sprintf("gvc-%s", id.UnitID)).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(m.connectTimeout)
	if username != "" {
		copts.SetUsername(username)
		copts.SetPassword(password)
	}

	m.client = mqtt.NewClient(copts)

	m.logger.Info("connecting to broker", "broker", brokerURL, "unit", id.UnitID)
	token := m.client.Connect()
	if !token.WaitTimeout(m.connectTimeout) {
		return nil, &PublishError{Topic: "", Original: fmt.Errorf("broker connect timed out after %s", m.connectTimeout)}
	}
	if err := token.Error(); err != nil {
		return nil, &PublishError{Topic: "", Original: fmt.Errorf("broker connect: %w", err)}
	}

	return m, nil
}

// Publish enriches, serializes and publishes the payload, waiting for the
// broker acknowledgment or context cancellation.
func (m *MQTTChannel) Publish(ctx context.Context, topic string, payload map[string]any) (*PublishResult, error) {
	if !m.client.IsConnected() {
		return nil, &PublishError{Topic: topic, Original: fmt.Errorf("broker connection unavailable")}
	}

	ts := m.clk.Now()
	packet, err := encodePacket(payload, m.id, ts)
	if err != nil {
		return nil, &PublishError{Topic: topic, Original: err}
	}

	token := m.client.Publish(topic, 1, false, packet)

	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return nil, &PublishError{Topic: topic, Original: ctx.Err()}
	}
	if err := token.Error(); err != nil {
		return nil, &PublishError{Topic: topic, Original: err}
	}

	m.logger.Info("publish acknowledged", "topic", topic, "bytes", len(packet))

	return &PublishResult{
		Status:    "OK",
		Topic:     topic,
		Packet:    packet,
		Timestamp: ts,
	}, nil
}

// Close disconnects from the broker, allowing in-flight work to drain.
func (m *MQTTChannel) Close() {
	m.client.Disconnect(250)
}
