package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	got, err := Normalize([]Entry{{Key: " plan ", Value: "pro"}, {Key: "region", Value: ""}})
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Key: "plan", Value: "pro"}, {Key: "region", Value: ""}}, got)

	got, err = Normalize(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNormalizeRejects(t *testing.T) {
	_, err := Normalize([]Entry{{Key: "  "}})
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = Normalize([]Entry{{Key: "a"}, {Key: " a"}})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	_, err = Normalize([]Entry{{Key: "a", Value: strings.Repeat("v", MaxValueLength+1)}})
	assert.ErrorIs(t, err, ErrValueTooLong)

	many := make([]Entry, MaxEntries+1)
	_, err = Normalize(many)
	assert.ErrorIs(t, err, ErrTooManyEntries)
}
