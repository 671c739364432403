// Package pagination implements keyset paging over (created_at, id), newest
// first, with opaque base64 page tokens.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 250
)

var ErrInvalidToken = errors.New("invalid page token")

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

// Limit clamps the requested page size into [1, MaxPageSize].
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	return min(p.PageSize, MaxPageSize)
}

// Cursor is the wire form of a page token.
type Cursor struct {
	ID        string `json:"id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token"`
	HasMore       bool   `json:"has_more"`
}

func EncodeCursor(c Cursor) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func DecodeCursor(token string) (*Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return nil, err
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Keyset is a decoded position: rows strictly older than it come next.
type Keyset struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

// KeysetToken encodes the position of the last row on a page.
func KeysetToken(id snowflake.ID, createdAt time.Time) string {
	token, err := EncodeCursor(Cursor{ID: id.String(), CreatedAt: createdAt.UTC().Format(time.RFC3339Nano)})
	if err != nil {
		return ""
	}
	return token
}

// ParseKeyset returns nil for a blank token and ErrInvalidToken for one
// that does not decode to a (created_at, id) pair.
func ParseKeyset(token string) (*Keyset, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	c, err := DecodeCursor(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	createdAt, err := time.Parse(time.RFC3339Nano, c.CreatedAt)
	if err != nil {
		return nil, ErrInvalidToken
	}
	id, err := snowflake.ParseString(strings.TrimSpace(c.ID))
	if err != nil || id == 0 {
		return nil, ErrInvalidToken
	}
	return &Keyset{ID: id, CreatedAt: createdAt}, nil
}

// BuildCursorPageInfo expects at most limit+1 rows. The extra row only
// signals that another page exists; the token points at row limit.
func BuildCursorPageInfo[T any](rows []*T, limit int, token func(*T) string) *PageInfo {
	if len(rows) <= limit {
		return &PageInfo{}
	}
	return &PageInfo{HasMore: true, NextPageToken: token(rows[limit-1])}
}
