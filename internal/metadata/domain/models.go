package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type OwnerType string

const (
	OwnerLicense  OwnerType = "license"
	OwnerCustomer OwnerType = "customer"
	OwnerProduct  OwnerType = "product"
)

const (
	MaxEntries     = 50
	MaxKeyLength   = 255
	MaxValueLength = 4096
)

var (
	ErrInvalidKey     = errors.New("invalid_metadata_key")
	ErrDuplicateKey   = errors.New("duplicate_metadata_key")
	ErrTooManyEntries = errors.New("too_many_metadata_entries")
	ErrValueTooLong   = errors.New("metadata_value_too_long")
)

// Entry is a free-form key/value pair attached to a license, customer or product.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Row is the stored form of an Entry.
type Row struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	TeamID    snowflake.ID `gorm:"not null;index"`
	OwnerType OwnerType    `gorm:"not null"`
	OwnerID   snowflake.ID `gorm:"not null"`
	Key       string       `gorm:"column:meta_key;not null"`
	Value     string       `gorm:"column:meta_value;not null"`
	CreatedAt time.Time    `gorm:"not null"`
}

func (Row) TableName() string { return "metadata" }

// Normalize trims keys and rejects empty, duplicate or oversized entries.
// Order is preserved.
func Normalize(entries []Entry) ([]Entry, error) {
	if len(entries) > MaxEntries {
		return nil, ErrTooManyEntries
	}
	out := make([]Entry, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		key := strings.TrimSpace(entry.Key)
		if key == "" || len(key) > MaxKeyLength {
			return nil, ErrInvalidKey
		}
		if len(entry.Value) > MaxValueLength {
			return nil, fmt.Errorf("%w: %s", ErrValueTooLong, key)
		}
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, key)
		}
		seen[key] = struct{}{}
		out = append(out, Entry{Key: key, Value: entry.Value})
	}
	return out, nil
}
