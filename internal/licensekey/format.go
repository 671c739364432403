package licensekey

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	DefaultAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	DefaultGroups    = 5
	DefaultGroupSize = 5
	DefaultSeparator = "-"
)

var (
	ErrInvalidFormat = errors.New("invalid_license_key_format")
)

// Format describes the shape of a plaintext license key. The same value drives
// generation and the boundary validation regexp so both always agree.
type Format struct {
	Prefix    string `mapstructure:"prefix" json:"prefix"`
	Alphabet  string `mapstructure:"alphabet" json:"alphabet"`
	Groups    int    `mapstructure:"groups" json:"groups"`
	GroupSize int    `mapstructure:"groupSize" json:"group_size"`
	Separator string `mapstructure:"separator" json:"separator"`
}

// DefaultFormat returns 5 groups of 5 uppercase alphanumerics joined by dashes.
func DefaultFormat() Format {
	return Format{
		Alphabet:  DefaultAlphabet,
		Groups:    DefaultGroups,
		GroupSize: DefaultGroupSize,
		Separator: DefaultSeparator,
	}
}

// Check reports whether the format itself is usable.
func (f Format) Check() error {
	if f.Groups <= 0 || f.GroupSize <= 0 {
		return fmt.Errorf("%w: groups and group size must be positive", ErrInvalidFormat)
	}
	if len(f.Alphabet) < 2 {
		return fmt.Errorf("%w: alphabet needs at least two characters", ErrInvalidFormat)
	}
	if len(f.Alphabet) > 256 {
		return fmt.Errorf("%w: alphabet longer than 256 characters", ErrInvalidFormat)
	}
	seen := make(map[byte]struct{}, len(f.Alphabet))
	for i := 0; i < len(f.Alphabet); i++ {
		ch := f.Alphabet[i]
		if ch > 0x7f {
			return fmt.Errorf("%w: alphabet must be ASCII", ErrInvalidFormat)
		}
		if _, ok := seen[ch]; ok {
			return fmt.Errorf("%w: duplicate alphabet character %q", ErrInvalidFormat, ch)
		}
		if f.Separator != "" && strings.IndexByte(f.Separator, ch) >= 0 {
			return fmt.Errorf("%w: separator overlaps alphabet", ErrInvalidFormat)
		}
		seen[ch] = struct{}{}
	}
	return nil
}

// Length is the total length of a key in this format, prefix included.
func (f Format) Length() int {
	n := f.Groups*f.GroupSize + (f.Groups-1)*len(f.Separator)
	if f.Prefix != "" {
		n += len(f.Prefix) + len(f.Separator)
	}
	return n
}

// Pattern returns the anchored expression that matches keys in this format.
func (f Format) Pattern() *regexp.Regexp {
	class := "[" + strings.ReplaceAll(regexp.QuoteMeta(f.Alphabet), "-", `\-`) + "]"
	group := fmt.Sprintf("%s{%d}", class, f.GroupSize)
	sep := regexp.QuoteMeta(f.Separator)

	var b strings.Builder
	b.WriteString("^")
	if f.Prefix != "" {
		b.WriteString(regexp.QuoteMeta(f.Prefix))
		b.WriteString(sep)
	}
	b.WriteString(group)
	if f.Groups > 1 {
		fmt.Fprintf(&b, "(?:%s%s){%d}", sep, group, f.Groups-1)
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

// Validate reports whether key matches the format. It compiles the pattern
// on every call; use a Matcher for repeated checks.
func (f Format) Validate(key string) bool {
	if len(key) != f.Length() {
		return false
	}
	return f.Pattern().MatchString(key)
}

// Normalize trims whitespace and upper-cases keys when the alphabet has no
// lowercase letters, so user-typed keys still match.
func (f Format) Normalize(key string) string {
	key = strings.TrimSpace(key)
	if upper := f.Prefix + f.Alphabet; strings.ToUpper(upper) == upper {
		key = strings.ToUpper(key)
	}
	return key
}

// join lays out raw alphabet characters into groups.
func (f Format) join(raw []byte) string {
	var b strings.Builder
	b.Grow(f.Length())
	if f.Prefix != "" {
		b.WriteString(f.Prefix)
		b.WriteString(f.Separator)
	}
	for i := 0; i < f.Groups; i++ {
		if i > 0 {
			b.WriteString(f.Separator)
		}
		b.Write(raw[i*f.GroupSize : (i+1)*f.GroupSize])
	}
	return b.String()
}
