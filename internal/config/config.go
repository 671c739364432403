package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName       string
	AppVersion    string
	Environment   string
	HTTPAddr      string
	DefaultTeamID int64
	AuthJWTSecret string
	NodeID        int64

	OTLPEndpoint string
	Telemetry    TelemetryConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Crypto      CryptoConfig
	Redis       RedisConfig
	RateLimit   RateLimitConfig
	Cache       CacheConfig
	MetricsPush MetricsPushConfig
}

// CryptoConfig carries the raw key material for the license key codec.
// Keys are encoded as "id:base64key" pairs separated by commas.
type CryptoConfig struct {
	EncryptionKeys string
	ActiveKeyID    string
	HMACSecret     string
}

// RedisConfig is shared by the rate limiter, activation locks and policy
// cache invalidation. An empty Addr disables redis. Addr may also be a
// redis:// URL.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled bool

	VerifyTeamRate  float64
	VerifyTeamBurst int
	ActivationTTL   int
}

type CacheConfig struct {
	PolicyMaxCost     int64
	PolicyTTLSeconds  int
	PolicyNumCounters int64
}

// TelemetryConfig carries logger and OpenTelemetry settings. The OTEL_*
// names follow the OpenTelemetry SDK environment conventions.
type TelemetryConfig struct {
	LogLevel       string
	LogFormat      string
	DeploymentEnv  string
	ServiceVersion string

	OtelEnabled       bool
	OtelProtocol      string
	OtelSamplingRatio float64
}

// MetricsPushConfig configures periodic export of the license metrics to a
// Prometheus remote_write endpoint or Pushgateway.
type MetricsPushConfig struct {
	Enabled         bool
	Exporter        string
	Endpoint        string
	AuthToken       string
	IntervalSeconds int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:       getenv("APP_SERVICE", "licensehub"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   getenv("ENVIRONMENT", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		DefaultTeamID: getenvInt64("DEFAULT_TEAM", 0),
		AuthJWTSecret: strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		NodeID:        getenvInt64("NODE_ID", 1),
		OTLPEndpoint:  getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317")),
		Telemetry: TelemetryConfig{
			LogLevel:          strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:         strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			DeploymentEnv:     strings.TrimSpace(getenv("DEPLOYMENT_ENV", "")),
			ServiceVersion:    strings.TrimSpace(getenv("SERVICE_VERSION", "")),
			OtelEnabled:       getenvBool("OTEL_ENABLED", true),
			OtelProtocol:      strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")))),
			OtelSamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Crypto: CryptoConfig{
			EncryptionKeys: strings.TrimSpace(getenv("LICENSE_ENCRYPTION_KEYS", "")),
			ActiveKeyID:    strings.TrimSpace(getenv("LICENSE_ACTIVE_KEY_ID", "")),
			HMACSecret:     strings.TrimSpace(getenv("LICENSE_HMAC_SECRET", "")),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", getenv("RATE_LIMIT_REDIS_ADDR", ""))),
			Password: getenv("REDIS_PASSWORD", getenv("RATE_LIMIT_REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", getenvInt("RATE_LIMIT_REDIS_DB", 0)),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getenvBool("RATE_LIMIT_ENABLED", false),
			VerifyTeamRate:  getenvFloat("RATE_LIMIT_VERIFY_TEAM_RATE", 50),
			VerifyTeamBurst: getenvInt("RATE_LIMIT_VERIFY_TEAM_BURST", 100),
			ActivationTTL:   getenvInt("RATE_LIMIT_ACTIVATION_LOCK_TTL_SECONDS", 5),
		},
		Cache: CacheConfig{
			PolicyMaxCost:     getenvInt64("CACHE_POLICY_MAX_COST", 10_000),
			PolicyTTLSeconds:  getenvInt("CACHE_POLICY_TTL_SECONDS", 30),
			PolicyNumCounters: getenvInt64("CACHE_POLICY_NUM_COUNTERS", 100_000),
		},
		MetricsPush: MetricsPushConfig{
			Enabled:         getenvBool("METRICS_PUSH_ENABLED", false),
			Exporter:        strings.TrimSpace(getenv("METRICS_PUSH_EXPORTER", "prometheus_remote_write")),
			Endpoint:        strings.TrimSpace(getenv("METRICS_PUSH_ENDPOINT", "")),
			AuthToken:       getenv("METRICS_PUSH_AUTH_TOKEN", ""),
			IntervalSeconds: getenvInt("METRICS_PUSH_INTERVAL_SECONDS", 300),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
