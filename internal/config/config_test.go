package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaselineIsValid(t *testing.T) {
	cfg := Baseline()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "GVA-07", cfg.UnitID)
	assert.Equal(t, 350*time.Millisecond, cfg.RelayActuationDelay)
	assert.Equal(t, 300*time.Millisecond, cfg.StateSettleDelay)
	assert.Equal(t, 400*time.Millisecond, cfg.PublishConnectDelay)
}

func TestTopics(t *testing.T) {
	cfg := Baseline()
	assert.Equal(t, "gva/07/safety/emergency", cfg.EmergencyTopic())
	assert.Equal(t, "gva/07/safety/restore", cfg.RestoreTopic())

	cfg.UnitID = "GVA-12"
	cfg.Namespace = "fleet"
	assert.Equal(t, "fleet/12/safety/emergency", cfg.EmergencyTopic())

	// Unit IDs without a dash are used verbatim.
	cfg.UnitID = "unit9"
	assert.Equal(t, "fleet/unit9/safety/restore", cfg.RestoreTopic())
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty unit", func(c *Config) { c.UnitID = "" }},
		{"empty namespace", func(c *Config) { c.Namespace = "" }},
		{"negative relay delay", func(c *Config) { c.RelayActuationDelay = -time.Second }},
		{"negative settle delay", func(c *Config) { c.StateSettleDelay = -time.Second }},
		{"negative publish delay", func(c *Config) { c.PublishConnectDelay = -time.Second }},
		{"zero relay delay", func(c *Config) { c.RelayActuationDelay = 0 }},
		{"zero settle delay", func(c *Config) { c.StateSettleDelay = 0 }},
		{"zero publish delay", func(c *Config) { c.PublishConnectDelay = 0 }},
		{"zero event buffer", func(c *Config) { c.EventBufferSize = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Baseline()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("GVC_UNIT_ID", "GVA-21")
	t.Setenv("GVC_STATE_SETTLE_DELAY", "10ms")
	t.Setenv("GVC_BROKER_URL", "tcp://broker.gva-local:1883")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "GVA-21", cfg.UnitID)
	assert.Equal(t, 10*time.Millisecond, cfg.StateSettleDelay)
	assert.Equal(t, "tcp://broker.gva-local:1883", cfg.BrokerURL)
	// Untouched fields keep baseline values.
	assert.Equal(t, "ALMACEN-3", cfg.Sector)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("unit_id: GVA-30\nsector: MUELLE-1\nevent_buffer_size: 100\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gvc.yaml"), yaml, 0o644))
	chdir(t, dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "GVA-30", cfg.UnitID)
	assert.Equal(t, "MUELLE-1", cfg.Sector)
	assert.Equal(t, 100, cfg.EventBufferSize)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gvc.yaml"), []byte("unit_id: GVA-30\n"), 0o644))
	chdir(t, dir)
	t.Setenv("GVC_UNIT_ID", "GVA-31")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "GVA-31", cfg.UnitID)
}

func TestLoadRejectsInvalid(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("GVC_UNIT_ID", "")
	// caarlos0/env leaves the baseline value for empty strings, so force a
	// bad duration instead.
	t.Setenv("GVC_EVENT_BUFFER_SIZE", "-1")

	_, err := Load()
	assert.Error(t, err)
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
