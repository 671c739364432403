package server

import (
	"strconv"
	"strings"
	"time"
)

// optionalQuery parses a query value, treating blank input as absent.
func optionalQuery[T any](raw string, parse func(string) (T, error)) (*T, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := parse(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseOptionalBool(raw string) (*bool, error) {
	return optionalQuery(raw, strconv.ParseBool)
}

func parseOptionalRFC3339(raw string) (*time.Time, error) {
	return optionalQuery(raw, func(s string) (time.Time, error) {
		return time.Parse(time.RFC3339, s)
	})
}
