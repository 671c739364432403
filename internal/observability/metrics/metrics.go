package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const exportInterval = 10 * time.Second

type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics holds the OTLP counters for license lifecycle events. All methods
// are safe on a nil receiver.
type Metrics struct {
	issued      metric.Int64Counter
	verified    metric.Int64Counter
	revealed    metric.Int64Counter
	rateAllowed metric.Int64Counter
	rateDenied  metric.Int64Counter
}

// NewProvider installs the global meter provider. Disabled telemetry yields a
// noop provider so instruments can always be created.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		noopProvider := noop.NewMeterProvider()
		otel.SetMeterProvider(noopProvider)
		return noopProvider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{OnStop: provider.Shutdown})
	}
	if log != nil {
		log.Info("otlp metrics enabled",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}
	return provider, nil
}

func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "licensehub"
	}
	meter := provider.Meter(name + "/license")

	m := &Metrics{}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.issued, "licensehub_license_issued_total", "Licenses issued."},
		{&m.verified, "licensehub_license_verifications_total", "License verifications by result code."},
		{&m.revealed, "licensehub_license_reveals_total", "Dashboard plaintext key reveals."},
		{&m.rateAllowed, "licensehub_rate_limit_allowed_total", "Verification calls admitted by the rate limiter."},
		{&m.rateDenied, "licensehub_rate_limit_denied_total", "Verification calls rejected by the rate limiter."},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", c.name, err)
		}
		*c.dst = counter
	}
	return m, nil
}

func (m *Metrics) RecordLicenseIssued(ctx context.Context, teamID string) {
	if m != nil {
		inc(ctx, m.issued, attribute.String("team_id", teamID))
	}
}

func (m *Metrics) RecordVerification(ctx context.Context, teamID, code string) {
	if m != nil {
		inc(ctx, m.verified, attribute.String("team_id", teamID), attribute.String("code", code))
	}
}

func (m *Metrics) RecordReveal(ctx context.Context, teamID string) {
	if m != nil {
		inc(ctx, m.revealed, attribute.String("team_id", teamID))
	}
}

func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, teamID, endpoint string) {
	if m != nil {
		inc(ctx, m.rateAllowed, attribute.String("team_id", teamID), attribute.String("endpoint", endpoint))
	}
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, teamID, endpoint, reason string) {
	if m != nil {
		inc(ctx, m.rateDenied,
			attribute.String("team_id", teamID),
			attribute.String("endpoint", endpoint),
			attribute.String("reason", reason),
		)
	}
}

func inc(ctx context.Context, counter metric.Int64Counter, attrs ...attribute.KeyValue) {
	for i, a := range attrs {
		attrs[i] = attribute.String(string(a.Key), strings.TrimSpace(a.Value.AsString()))
	}
	counter.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attrs...)...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx := context.Background()
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc", "grpc/protobuf":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case "http", "http/protobuf":
		var opts []otlpmetrichttp.Option
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(ctx, opts...)
	}
	return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
}

// Label keys outside this set are dropped. License keys, customer ids and
// other high-cardinality or sensitive values never become metric labels.
var allowedLabelKeys = map[attribute.Key]bool{
	"team_id":     true,
	"endpoint":    true,
	"status_code": true,
	"code":        true,
	"reason":      true,
}

func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	kept := attrs[:0:0]
	for _, attr := range attrs {
		if allowedLabelKeys[attr.Key] {
			kept = append(kept, attr)
		}
	}
	return kept
}
