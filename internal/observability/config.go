package observability

import (
	"strings"

	"github.com/smallbiznis/licensehub/internal/config"
)

// Config is the resolved telemetry view shared by the logger, tracer and
// meter providers.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	t := cfg.Telemetry
	out := Config{
		ServiceName:          firstNonEmpty(cfg.AppName, "licensehub"),
		Environment:          firstNonEmpty(t.DeploymentEnv, cfg.Environment),
		Version:              firstNonEmpty(t.ServiceVersion, cfg.AppVersion),
		LogLevel:             firstNonEmpty(t.LogLevel, "info"),
		LogFormat:            firstNonEmpty(t.LogFormat, "json"),
		OtelEnabled:          t.OtelEnabled,
		OtelExporterEndpoint: strings.TrimSpace(cfg.OTLPEndpoint),
		OtelExporterProtocol: firstNonEmpty(t.OtelProtocol, "grpc"),
		OtelSamplingRatio:    t.OtelSamplingRatio,
	}
	if out.OtelSamplingRatio < 0 || out.OtelSamplingRatio > 1 {
		out.OtelSamplingRatio = 0.1
	}
	return out
}

// Debug enables gin debug mode, caller stacks and verbose request logs.
func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
