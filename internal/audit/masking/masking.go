// Package masking redacts credentials before they reach the audit log.
package masking

import (
	"regexp"
	"strings"
)

const maskToken = "****"

// Key fragments that mark a metadata value as a credential.
var sensitiveKeyParts = []string{"secret", "token", "password", "license_key", "api_key", "authorization"}

// Fallback key shape when no key matcher is configured: groups of
// alphanumerics joined by dashes.
var licenseKeyShape = regexp.MustCompile(`^[A-Za-z0-9]{4,}(-[A-Za-z0-9]{4,}){2,}$`)

func looksLikeKey(value string) bool {
	return licenseKeyShape.MatchString(value)
}

// MaskSecret keeps any "prefix_" and the last four characters.
//
//	lh_live_7F3K_9a8b...c0d1 -> lh_live_7F3K_****c0d1
func MaskSecret(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	prefix, body := "", value
	if i := strings.LastIndex(value, "_"); i >= 0 && i < len(value)-1 {
		prefix, body = value[:i+1], value[i+1:]
	}
	if len(body) <= 4 {
		return prefix + maskToken
	}
	return prefix + maskToken + body[len(body)-4:]
}

// MaskJSON masks every string in input, at any depth.
func MaskJSON(input map[string]any) map[string]any {
	return walk(input, func(string) bool { return true }, looksLikeKey)
}

// MaskSensitive masks values under credential-looking keys and any string
// shaped like a license key. Everything else is copied as is.
func MaskSensitive(input map[string]any) map[string]any {
	return MaskSensitiveWith(input, nil)
}

// MaskSensitiveWith is MaskSensitive with isKey deciding which strings are
// license keys. A nil isKey falls back to the dash-grouped shape.
func MaskSensitiveWith(input map[string]any, isKey func(string) bool) map[string]any {
	if isKey == nil {
		isKey = looksLikeKey
	}
	return walk(input, isSensitiveKey, isKey)
}

// walk copies input, dropping blank keys. Subtrees under a key accepted by
// sensitive are masked in full; other subtrees are walked again.
func walk(input map[string]any, sensitive, isKey func(string) bool) map[string]any {
	out := make(map[string]any, len(input))
	for key, value := range input {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if sensitive(key) {
			out[key] = maskAll(value)
			continue
		}
		out[key] = maskKeys(value, sensitive, isKey)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// maskKeys masks license keys found in value outside credential keys.
func maskKeys(value any, sensitive, isKey func(string) bool) any {
	switch v := value.(type) {
	case map[string]any:
		return walk(v, sensitive, isKey)
	case []any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = maskKeys(v[i], sensitive, isKey)
		}
		return out
	case []string:
		out := make([]string, len(v))
		for i := range v {
			out[i] = maskKeys(v[i], sensitive, isKey).(string)
		}
		return out
	case string:
		if isKey(strings.TrimSpace(v)) {
			return maskLicenseKey(v)
		}
		return v
	}
	return value
}

// maskLicenseKey keeps only the last four characters. Separators are not
// treated as a prefix boundary, unlike MaskSecret.
func maskLicenseKey(value string) string {
	value = strings.TrimSpace(value)
	if len(value) <= 4 {
		return maskToken
	}
	return maskToken + value[len(value)-4:]
}

func maskAll(value any) any {
	switch v := value.(type) {
	case string:
		return MaskSecret(v)
	case map[string]any:
		return MaskJSON(v)
	case []any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = maskAll(v[i])
		}
		return out
	}
	return value
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}
