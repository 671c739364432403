package licensekey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultFormatValidate(t *testing.T) {
	f := DefaultFormat()

	assert.NoError(t, f.Check())
	assert.Equal(t, 29, f.Length())

	assert.True(t, f.Validate("ABCDE-FGHIJ-KLMNO-PQRST-UVW01"))
	assert.False(t, f.Validate("ABCDE-FGHIJ-KLMNO-PQRST"))
	assert.False(t, f.Validate("abcde-fghij-klmno-pqrst-uvw01"))
	assert.False(t, f.Validate("ABCDE_FGHIJ_KLMNO_PQRST_UVW01"))
	assert.False(t, f.Validate("ABCDE-FGHIJ-KLMNO-PQRST-UVW01 "))
	assert.False(t, f.Validate(""))
}

func TestFormatWithPrefix(t *testing.T) {
	f := Format{Prefix: "lic", Alphabet: "0123456789abcdef", Groups: 2, GroupSize: 4, Separator: "_"}

	assert.NoError(t, f.Check())
	assert.True(t, f.Validate("lic_00ff_a1b2"))
	assert.False(t, f.Validate("00ff_a1b2"))
	assert.Equal(t, "lic_00ff_a1b2", f.Normalize(" lic_00ff_a1b2 "))
}

func TestFormatNormalize(t *testing.T) {
	f := DefaultFormat()
	assert.Equal(t, "ABCDE-FGHIJ-KLMNO-PQRST-UVW01", f.Normalize("  abcde-fghij-klmno-pqrst-uvw01\n"))
}

func TestFormatPatternEscapesDash(t *testing.T) {
	f := Format{Alphabet: "A-Z", Groups: 1, GroupSize: 3, Separator: "."}

	assert.NoError(t, f.Check())
	assert.True(t, f.Validate("A-Z"))
	assert.False(t, f.Validate("BCD"))
}

func TestFormatCheck(t *testing.T) {
	cases := []struct {
		name   string
		format Format
	}{
		{name: "no groups", format: Format{Alphabet: "AB", Groups: 0, GroupSize: 5}},
		{name: "no group size", format: Format{Alphabet: "AB", Groups: 5, GroupSize: 0}},
		{name: "short alphabet", format: Format{Alphabet: "A", Groups: 5, GroupSize: 5}},
		{name: "duplicate", format: Format{Alphabet: "ABA", Groups: 5, GroupSize: 5}},
		{name: "separator overlap", format: Format{Alphabet: "AB-", Groups: 5, GroupSize: 5, Separator: "-"}},
		{name: "non ascii", format: Format{Alphabet: "AÉ", Groups: 5, GroupSize: 5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.format.Check(), ErrInvalidFormat)
		})
	}
}
