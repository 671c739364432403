package tracing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsSecrets(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/v1/licenses"),
		attribute.String("license_key", "ABCDE-FGHIJ"),
		attribute.String("license_key_lookup", "deadbeef"),
		attribute.String("Authorization", "Bearer x"),
	)

	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeError(t *testing.T) {
	assert.Nil(t, SafeError(nil))
	assert.EqualError(t, SafeError(errors.New("insert license: key ABCDE")), "insert license")
	assert.EqualError(t, SafeError(errors.New("boom")), "boom")
}
