package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.HTTP.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "keys.env", cfg.Credentials.KeysFile)
	assert.Equal(t, 15*time.Second, cfg.Agent.Timeout)
	assert.Equal(t, 2, cfg.Agent.MaxAttempts)
	assert.Equal(t, BodyShapeFlat, cfg.Agent.BodyShape)
	assert.Equal(t, 5, cfg.Agent.Breaker.FailThreshold)
	assert.Equal(t, 30*time.Second, cfg.Agent.Breaker.OpenFor)
	assert.Equal(t, "W:", cfg.Routing.Winston)
	assert.Equal(t, "G:", cfg.Routing.Gates)
	assert.Equal(t, "L:", cfg.Routing.Lexia)
	assert.Equal(t, DedupeMemory, cfg.Dedupe.Backend)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, 3, cfg.Bootstrap.Attempts)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.HTTP.Addr)
}

func TestLoad_FileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
http:
  addr: ":8080"
agent:
  body_shape: "nested"
  timeout: 3s
kafka:
  brokers: ["kafka-1:9092", "kafka-2:9092"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, BodyShapeNested, cfg.Agent.BodyShape)
	assert.Equal(t, 3*time.Second, cfg.Agent.Timeout)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	// untouched keys keep their defaults
	assert.Equal(t, 2, cfg.Agent.MaxAttempts)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APIHUB_HTTP_ADDR", ":9999")
	t.Setenv("APIHUB_AGENT_MAX_ATTEMPTS", "1")
	t.Setenv("APIHUB_DEDUPE_BACKEND", "redis")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, 1, cfg.Agent.MaxAttempts)
	assert.Equal(t, DedupeRedis, cfg.Dedupe.Backend)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.HTTP.Addr = "" }},
		{"endpoint without placeholder", func(c *Config) { c.Agent.Endpoint = "https://api.example.com/message" }},
		{"zero timeout", func(c *Config) { c.Agent.Timeout = 0 }},
		{"zero attempts", func(c *Config) { c.Agent.MaxAttempts = 0 }},
		{"unknown body shape", func(c *Config) { c.Agent.BodyShape = "xml" }},
		{"unknown dedupe backend", func(c *Config) { c.Dedupe.Backend = "memcached" }},
		{"kafka without topic", func(c *Config) {
			c.Kafka.Brokers = []string{"k:9092"}
			c.Kafka.CommandsTopic = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}

	assert.NoError(t, base.Validate())
}
