package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/config"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, ProtocolGRPC, cfg.Protocol)
	assert.Equal(t, "mcp-server-qdrant", cfg.ServiceName)
	assert.Equal(t, 1.0, cfg.SamplingRate)
	assert.Equal(t, 15*time.Second, cfg.MetricsExportInterval)
	assert.NoError(t, cfg.Validate())
}

func TestFromObservability(t *testing.T) {
	cfg := FromObservability(config.ObservabilityConfig{
		Enabled:     true,
		Endpoint:    "collector.internal:4318",
		Protocol:    ProtocolHTTP,
		ServiceName: "memory",
	}, "v1.2.3")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "collector.internal:4318", cfg.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Protocol)
	assert.Equal(t, "memory", cfg.ServiceName)
	assert.Equal(t, "v1.2.3", cfg.ServiceVersion)
	assert.False(t, cfg.Insecure)
	assert.NoError(t, cfg.Validate())

	def := FromObservability(config.ObservabilityConfig{}, "")
	assert.Equal(t, "localhost:4317", def.Endpoint)
	assert.Equal(t, "dev", def.ServiceVersion)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "disabled skips checks", mutate: func(c *Config) { c.Enabled = false; c.Endpoint = "" }},
		{name: "valid enabled", mutate: func(c *Config) {}},
		{name: "missing endpoint", mutate: func(c *Config) { c.Endpoint = "" }, wantErr: "endpoint is required"},
		{name: "missing service name", mutate: func(c *Config) { c.ServiceName = "" }, wantErr: "service_name is required"},
		{name: "bad protocol", mutate: func(c *Config) { c.Protocol = "udp" }, wantErr: "unsupported OTLP protocol"},
		{name: "insecure remote", mutate: func(c *Config) { c.Endpoint = "otel.example.com:4317" }, wantErr: "insecure connections"},
		{name: "secure remote", mutate: func(c *Config) { c.Endpoint = "otel.example.com:4317"; c.Insecure = false }},
		{name: "sampling too high", mutate: func(c *Config) { c.SamplingRate = 1.5 }, wantErr: "sampling rate"},
		{name: "sampling negative", mutate: func(c *Config) { c.SamplingRate = -0.1 }, wantErr: "sampling rate"},
		{name: "zero export interval", mutate: func(c *Config) { c.MetricsExportInterval = 0 }, wantErr: "export interval"},
		{name: "metrics disabled ignores interval", mutate: func(c *Config) { c.MetricsEnabled = false; c.MetricsExportInterval = 0 }},
		{name: "zero shutdown timeout", mutate: func(c *Config) { c.ShutdownTimeout = 0 }, wantErr: "shutdown timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			cfg.Enabled = true
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_IsLocalEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		want     bool
	}{
		{"localhost:4317", true},
		{"localhost", true},
		{"127.0.0.1:4317", true},
		{"127.0.0.2:4317", true},
		{"[::1]:4317", true},
		{"::1", true},
		{"http://localhost:4318", true},
		{"otel.example.com:4317", false},
		{"10.0.0.5:4317", false},
		{"https://collector:4318", false},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			cfg := &Config{Endpoint: tt.endpoint}
			assert.Equal(t, tt.want, cfg.isLocalEndpoint())
		})
	}
}
