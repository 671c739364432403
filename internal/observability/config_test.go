package observability

import (
	"testing"

	"github.com/smallbiznis/licensehub/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(config.Config{Environment: "production", AppVersion: "1.2.3"})

	assert.Equal(t, "licensehub", cfg.ServiceName)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "grpc", cfg.OtelExporterProtocol)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigTelemetryOverrides(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppName:      "licensehub-api",
		Environment:  "production",
		OTLPEndpoint: " collector:4318 ",
		Telemetry: config.TelemetryConfig{
			DeploymentEnv:     "staging",
			ServiceVersion:    "abc123",
			OtelProtocol:      "http/protobuf",
			OtelSamplingRatio: 7,
		},
	})

	assert.Equal(t, "licensehub-api", cfg.ServiceName)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "abc123", cfg.Version)
	assert.Equal(t, "collector:4318", cfg.OtelExporterEndpoint)
	assert.Equal(t, "http/protobuf", cfg.OtelExporterProtocol)
	assert.Equal(t, 0.1, cfg.OtelSamplingRatio)
}

func TestDebug(t *testing.T) {
	assert.True(t, Config{LogLevel: "DEBUG", Environment: "production"}.Debug())
	assert.True(t, Config{LogLevel: "info", Environment: "local"}.Debug())
	assert.False(t, Config{LogLevel: "warn", Environment: "staging"}.Debug())
}
