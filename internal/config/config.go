package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the full controller configuration.
type Config struct {
	// Unit identity
	UnitID    string `yaml:"unit_id" env:"GVC_UNIT_ID"`
	Sector    string `yaml:"sector" env:"GVC_SECTOR"`
	Namespace string `yaml:"namespace" env:"GVC_NAMESPACE"`

	// Broker connection. Empty BrokerURL selects the simulated channel.
	BrokerURL      string `yaml:"broker_url" env:"GVC_BROKER_URL"`
	BrokerUsername string `yaml:"broker_username" env:"GVC_BROKER_USERNAME"`
	BrokerPassword string `yaml:"broker_password" env:"GVC_BROKER_PASSWORD"`

	// HTTP surface
	HTTPAddr string `yaml:"http_addr" env:"GVC_HTTP_ADDR"`

	// Operator token verification. Empty secret disables auth (bench mode).
	AuthSecret string `yaml:"auth_secret" env:"GVC_AUTH_SECRET"`

	// Audit log directory
	LogDir string `yaml:"log_dir" env:"GVC_LOG_DIR"`

	// Settle delays modelling embedded latencies
	RelayActuationDelay time.Duration `yaml:"relay_actuation_delay" env:"GVC_RELAY_ACTUATION_DELAY"`
	StateSettleDelay    time.Duration `yaml:"state_settle_delay" env:"GVC_STATE_SETTLE_DELAY"`
	PublishConnectDelay time.Duration `yaml:"publish_connect_delay" env:"GVC_PUBLISH_CONNECT_DELAY"`

	// Event hub
	EventBufferSize   int           `yaml:"event_buffer_size" env:"GVC_EVENT_BUFFER_SIZE"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" env:"GVC_HEARTBEAT_INTERVAL"`
}

// Baseline returns the reference configuration for a GVA-07 class unit.
func Baseline() *Config {
	return &Config{
		UnitID:    "GVA-07",
		Sector:    "ALMACEN-3",
		Namespace: "gva",

		HTTPAddr: ":8000",
		LogDir:   "logs",

		// Reference latencies: relay 350ms, state commit 300ms, broker 400ms
		RelayActuationDelay: 350 * time.Millisecond,
		StateSettleDelay:    300 * time.Millisecond,
		PublishConnectDelay: 400 * time.Millisecond,

		EventBufferSize:   50,
		HeartbeatInterval: 15 * time.Second,
	}
}

// Load merges Baseline + optional gvc.yaml + GVC_* env overrides, then
// validates the result.
func Load() (*Config, error) {
	cfg := Baseline()

	if _, err := os.Stat("gvc.yaml"); err == nil {
		raw, err := os.ReadFile("gvc.yaml")
		if err != nil {
			return nil, fmt.Errorf("read gvc.yaml: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse gvc.yaml: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the controller cannot run with.
func (c *Config) Validate() error {
	if c.UnitID == "" {
		return fmt.Errorf("unit_id must not be empty")
	}
	if c.Namespace == "" {
		return fmt.Errorf("namespace must not be empty")
	}
	if c.RelayActuationDelay <= 0 {
		return fmt.Errorf("relay_actuation_delay must be positive: %s", c.RelayActuationDelay)
	}
	if c.StateSettleDelay <= 0 {
		return fmt.Errorf("state_settle_delay must be positive: %s", c.StateSettleDelay)
	}
	if c.PublishConnectDelay <= 0 {
		return fmt.Errorf("publish_connect_delay must be positive: %s", c.PublishConnectDelay)
	}
	if c.EventBufferSize <= 0 {
		return fmt.Errorf("event_buffer_size must be positive: %d", c.EventBufferSize)
	}
	return nil
}

// EmergencyTopic returns the topic for emergency stop notifications.
func (c *Config) EmergencyTopic() string {
	return fmt.Sprintf("%s/%s/safety/emergency", c.Namespace, c.unitSegment())
}

// RestoreTopic returns the topic for recovery notifications.
func (c *Config) RestoreTopic() string {
	return fmt.Sprintf("%s/%s/safety/restore", c.Namespace, c.unitSegment())
}

// unitSegment derives the topic segment from the unit ID: "GVA-07" → "07".
func (c *Config) unitSegment() string {
	for i := len(c.UnitID) - 1; i >= 0; i-- {
		if c.UnitID[i] == '-' {
			return c.UnitID[i+1:]
		}
	}
	return c.UnitID
}
