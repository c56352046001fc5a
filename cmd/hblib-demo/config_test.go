package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
name: Test Bridge
log_level: 2
heartbeat: 250ms
ui_port: 8581
mqtt:
  broker: tcp://localhost:1883
  prefix: hb
devices:
  - id: lamp-1
    name: Kitchen
    adaptive_lighting: true
    latency: 100ms
  - id: lamp-2
    name: Hall
`)
	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "Test Bridge", cfg.Name)
	assert.Equal(t, 2, cfg.LogLevel)
	assert.Equal(t, 250*time.Millisecond, cfg.Heartbeat)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	require.Len(t, cfg.Devices, 2)
	assert.True(t, cfg.Devices[0].AdaptiveLighting)
	assert.Equal(t, 100*time.Millisecond, cfg.Devices[0].Latency)
	assert.False(t, cfg.Devices[1].AdaptiveLighting)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "hblib-demo", cfg.Name)
	assert.Len(t, cfg.Devices, 1)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "name: [unclosed"},
		{"log level", "log_level: 5"},
		{"device without id", "devices:\n  - name: Lamp\n"},
		{"duplicate id", "devices:\n  - {id: a, name: A}\n  - {id: a, name: B}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
