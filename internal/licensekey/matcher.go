package licensekey

import (
	"regexp"
	"slices"
)

// Matcher recognises keys in the active format and in every format keys
// were issued under before it. Patterns are compiled once, when the matcher
// is built.
type Matcher struct {
	formats  []Format
	patterns []*regexp.Regexp
}

// NewMatcher builds a matcher whose first format is active. Duplicates are
// dropped. Every format must already pass Check.
func NewMatcher(active Format, accepted ...Format) *Matcher {
	m := &Matcher{}
	for _, f := range append([]Format{active}, accepted...) {
		if slices.Contains(m.formats, f) {
			continue
		}
		m.formats = append(m.formats, f)
		m.patterns = append(m.patterns, f.Pattern())
	}
	return m
}

// Active is the format new keys are generated in.
func (m *Matcher) Active() Format {
	return m.formats[0]
}

// Formats lists the accepted formats, active first.
func (m *Matcher) Formats() []Format {
	return slices.Clone(m.formats)
}

// Match normalizes key for each accepted format in turn and returns the
// first normalized form that fits.
func (m *Matcher) Match(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	for i, f := range m.formats {
		candidate := f.Normalize(key)
		if len(candidate) == f.Length() && m.patterns[i].MatchString(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// Matches reports whether value is a key in any accepted format.
func (m *Matcher) Matches(value string) bool {
	_, ok := m.Match(value)
	return ok
}
