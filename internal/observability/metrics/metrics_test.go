package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("team_id", "123"),
		attribute.String("license_key", "ABCDE-FGHIJ"),
		attribute.String("customer_id", "456"),
		attribute.String("code", "VALID"),
	)

	keys := make([]attribute.Key, 0, len(attrs))
	for _, attr := range attrs {
		keys = append(keys, attr.Key)
	}
	assert.ElementsMatch(t, []attribute.Key{"team_id", "code"}, keys)
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordLicenseIssued(ctx, "1")
	m.RecordVerification(ctx, "1", "VALID")
	m.RecordReveal(ctx, "1")
	m.RecordRateLimitAllowed(ctx, "1", "/verify")
	m.RecordRateLimitDenied(ctx, "1", "/verify", "rate_limited")

	var nilMetrics *Metrics
	nilMetrics.RecordVerification(ctx, "1", "VALID")
}

func TestVerificationCounterLabels(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := New(Config{ServiceName: "licensehub"}, provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordVerification(ctx, " 7 ", "VALID")
	m.RecordVerification(ctx, "7", "VALID")
	m.RecordVerification(ctx, "7", "EXPIRED")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	assert.Equal(t, "licensehub/license", rm.ScopeMetrics[0].Scope.Name)

	var sum metricdata.Sum[int64]
	for _, md := range rm.ScopeMetrics[0].Metrics {
		if md.Name == "licensehub_license_verifications_total" {
			sum = md.Data.(metricdata.Sum[int64])
		}
	}
	counts := map[string]int64{}
	for _, dp := range sum.DataPoints {
		team, _ := dp.Attributes.Value("team_id")
		assert.Equal(t, "7", team.AsString())
		code, _ := dp.Attributes.Value("code")
		counts[code.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"VALID": 2, "EXPIRED": 1}, counts)
}
