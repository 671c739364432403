package pagination

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", CreatedAt: "2025-01-02T03:04:05Z"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "42", cursor.ID)
	assert.Equal(t, "2025-01-02T03:04:05Z", cursor.CreatedAt)

	_, err = DecodeCursor("%%%")
	assert.Error(t, err)
}

func TestBuildCursorPageInfo(t *testing.T) {
	type row struct{ id string }
	rows := []*row{{"a"}, {"b"}, {"c"}}

	info := BuildCursorPageInfo(rows, 2, func(r *row) string { return r.id })
	assert.True(t, info.HasMore)
	assert.Equal(t, "b", info.NextPageToken)

	info = BuildCursorPageInfo(rows, 3, func(r *row) string { return r.id })
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)

	info = BuildCursorPageInfo([]*row{}, 3, func(r *row) string { return r.id })
	assert.False(t, info.HasMore)
}

func TestLimit(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Limit())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 10_000}.Limit())
	assert.Equal(t, 5, Pagination{PageSize: 5}.Limit())
}

func TestKeysetRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 8, time.FixedZone("WIB", 7*3600))
	token := KeysetToken(snowflake.ID(99), at)
	assert.NotContains(t, token, "=")

	ks, err := ParseKeyset(" " + token + " ")
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(99), ks.ID)
	assert.True(t, at.Equal(ks.CreatedAt))

	ks, err = ParseKeyset("")
	assert.NoError(t, err)
	assert.Nil(t, ks)

	bad, err := EncodeCursor(Cursor{ID: "0", CreatedAt: at.Format(time.RFC3339Nano)})
	require.NoError(t, err)
	_, err = ParseKeyset(bad)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseKeyset("%%%")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
