package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 16, cfg.Engine.Databases)
	assert.Equal(t, "7.2.0", cfg.Engine.Version)
	assert.Equal(t, 1024, cfg.Engine.PubSubBuffer)
	assert.True(t, cfg.GC.Enabled)
	assert.Equal(t, 100*time.Millisecond, cfg.GC.Interval)
	assert.Equal(t, 20, cfg.GC.SamplesPerCheck)
	assert.Equal(t, "6380", cfg.Server.Port)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  port: "7000"
engine:
  databases: 4
  version: "6.2.0"
gc:
  interval: 50ms
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	t.Setenv("MOONMOCK_ENGINE_NOTIFY_KEYSPACE_EVENTS", "KEA")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, 4, cfg.Engine.Databases)
	assert.Equal(t, "6.2.0", cfg.Engine.Version)
	assert.Equal(t, "KEA", cfg.Engine.NotifyKeyspaceEvents)
	assert.Equal(t, 50*time.Millisecond, cfg.GC.Interval)
	// untouched values keep their defaults
	assert.Equal(t, 20, cfg.GC.SamplesPerCheck)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Engine.Databases)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero databases", func(c *Config) { c.Engine.Databases = 0 }},
		{"zero pubsub buffer", func(c *Config) { c.Engine.PubSubBuffer = 0 }},
		{"gc without interval", func(c *Config) { c.GC.Interval = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadWithFlags(t *testing.T) {
	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.String("port", "", "")
	flags.Int("databases", 0, "")
	flags.String("unrelated", "", "")
	require.NoError(t, flags.Parse([]string{"--port", "7100"}))

	cfg, err := LoadWithFlags(t.TempDir(), flags)
	require.NoError(t, err)

	assert.Equal(t, "7100", cfg.Server.Port)
	// an unset flag keeps the default rather than its own zero value
	assert.Equal(t, 16, cfg.Engine.Databases)
}
