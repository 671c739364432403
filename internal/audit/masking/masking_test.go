package masking

import (
	"testing"

	"github.com/smallbiznis/licensehub/internal/licensekey"
	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret("  "))
	assert.Equal(t, "****", MaskSecret("abc"))
	assert.Equal(t, "****6789", MaskSecret("123456789"))
	assert.Equal(t, "lh_live_****wxyz", MaskSecret("lh_live_abcdefwxyz"))
}

func TestMaskJSON(t *testing.T) {
	out := MaskJSON(map[string]any{
		"key":    "secretvalue",
		"count":  3,
		"nested": map[string]any{"inner": "abcdefgh"},
		" ":      "dropped",
	})

	assert.Equal(t, "****alue", out["key"])
	assert.Equal(t, 3, out["count"])
	assert.Equal(t, map[string]any{"inner": "****efgh"}, out["nested"])
	assert.NotContains(t, out, " ")
	assert.Nil(t, MaskJSON(nil))
}

func TestMaskSensitive(t *testing.T) {
	out := MaskSensitive(map[string]any{
		"api_key":        "lh_live_abcdefwxyz",
		"name":           "ci",
		"signing_secret": "0123456789",
		"details":        map[string]any{"token": "tok_12345678", "scope": "verify"},
	})

	assert.Equal(t, "lh_live_****wxyz", out["api_key"])
	assert.Equal(t, "ci", out["name"])
	assert.Equal(t, "****6789", out["signing_secret"])
	assert.Equal(t, map[string]any{"token": "tok_****5678", "scope": "verify"}, out["details"])
	assert.Nil(t, MaskSensitive(map[string]any{}))
}

func TestMaskSensitiveCatchesLicenseKeyValues(t *testing.T) {
	out := MaskSensitive(map[string]any{
		"value":   "ABCDE-FGHIJ-KLMNO-PQRST-UVWXY",
		"note":    "renewal-due-soon",
		"version": "1.2.3",
	})

	assert.Equal(t, "****VWXY", out["value"])
	assert.Equal(t, "renewal-due-soon", out["note"])
	assert.Equal(t, "1.2.3", out["version"])
}

func TestMaskSensitiveWithConfiguredKeyFormat(t *testing.T) {
	underscored := licensekey.Format{Alphabet: licensekey.DefaultAlphabet, Groups: 4, GroupSize: 4, Separator: "_"}
	compact := licensekey.Format{Alphabet: licensekey.DefaultAlphabet, Groups: 4, GroupSize: 4}
	matcher := licensekey.NewMatcher(underscored, compact)

	out := MaskSensitiveWith(map[string]any{
		"value":  "ABCD_1234_EFGH_5678",
		"old":    "abcd1234efgh5678",
		"keys":   []any{"WXYZ_9876_ABCD_4321", "plain"},
		"nested": map[string]any{"issued": []string{"ABCD1234EFGH5678"}},
		"label":  "ABCD_1234",
	}, matcher.Matches)

	assert.Equal(t, "****5678", out["value"])
	assert.Equal(t, "****5678", out["old"])
	assert.Equal(t, []any{"****4321", "plain"}, out["keys"])
	assert.Equal(t, map[string]any{"issued": []string{"****5678"}}, out["nested"])
	assert.Equal(t, "ABCD_1234", out["label"])

	fallback := MaskSensitiveWith(map[string]any{"value": "ABCDE-FGHIJ-KLMNO-PQRST-UVWXY"}, nil)
	assert.Equal(t, "****VWXY", fallback["value"])
}
