package licensekey

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/licensehub/internal/teamcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type staticFormat struct {
	format Format
}

func (s staticFormat) Format() Format { return s.format }

func (s staticFormat) Matcher() *Matcher { return NewMatcher(s.format) }

type plainHasher struct{}

func (plainHasher) LicenseLookup(key, teamID string) string { return key + ":" + teamID }

type memoryChecker struct {
	taken map[string]struct{}
	calls int
	err   error
}

func newMemoryChecker() *memoryChecker {
	return &memoryChecker{taken: map[string]struct{}{}}
}

func (m *memoryChecker) ExistsByLookup(ctx context.Context, teamID snowflake.ID, lookup string) (bool, error) {
	m.calls++
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.taken[lookup]
	return ok, nil
}

type alwaysTaken struct {
	calls int
}

func (a *alwaysTaken) ExistsByLookup(ctx context.Context, teamID snowflake.ID, lookup string) (bool, error) {
	a.calls++
	return true, nil
}

func seededGenerator(t *testing.T, seed int64, checker LookupChecker) *Generator {
	return NewGenerator(GeneratorConfig{
		Formats: staticFormat{format: DefaultFormat()},
		Hasher:  plainHasher{},
		Checker: checker,
		Random:  rand.New(rand.NewSource(seed)),
		Log:     zaptest.NewLogger(t),
	})
}

func TestGenerateMatchesFormat(t *testing.T) {
	gen := seededGenerator(t, 1, newMemoryChecker())
	team := teamcontext.Team{ID: 42}

	for i := 0; i < 50; i++ {
		key, err := gen.Generate(context.Background(), team)
		require.NoError(t, err)
		assert.True(t, DefaultFormat().Validate(key), "key %q", key)
	}
}

func TestGenerateSkipsExistingLookups(t *testing.T) {
	team := teamcontext.Team{ID: 7}

	for n := 1; n < DefaultMaxAttempts; n++ {
		seedChecker := newMemoryChecker()
		seeder := seededGenerator(t, 99, seedChecker)

		existing := map[string]struct{}{}
		for i := 0; i < n; i++ {
			key, err := seeder.Generate(context.Background(), team)
			require.NoError(t, err)
			existing[plainHasher{}.LicenseLookup(key, team.String())] = struct{}{}
		}

		// Same seed, so the first n candidates replay the existing keys.
		checker := newMemoryChecker()
		checker.taken = existing
		gen := seededGenerator(t, 99, checker)

		key, err := gen.Generate(context.Background(), team)
		require.NoError(t, err)
		_, collides := existing[plainHasher{}.LicenseLookup(key, team.String())]
		assert.False(t, collides)
		assert.Equal(t, n+1, checker.calls)
	}
}

func TestGenerateExhausted(t *testing.T) {
	checker := &alwaysTaken{}
	gen := NewGenerator(GeneratorConfig{
		Formats:     staticFormat{format: DefaultFormat()},
		Hasher:      plainHasher{},
		Checker:     checker,
		MaxAttempts: 5,
		Log:         zaptest.NewLogger(t),
	})

	_, err := gen.Generate(context.Background(), teamcontext.Team{ID: 1})
	assert.ErrorIs(t, err, ErrKeyGenerationExhausted)
	assert.Equal(t, 5, checker.calls)
}

func TestGeneratePropagatesCheckerError(t *testing.T) {
	checker := newMemoryChecker()
	checker.err = errors.New("db down")
	gen := seededGenerator(t, 3, checker)

	_, err := gen.Generate(context.Background(), teamcontext.Team{ID: 1})
	assert.EqualError(t, err, "db down")
}

func TestGenerateRejectsInvalidTeam(t *testing.T) {
	gen := seededGenerator(t, 3, newMemoryChecker())

	_, err := gen.Generate(context.Background(), teamcontext.Team{})
	assert.ErrorIs(t, err, ErrInvalidTeam)
}

func TestGenerateUsesWholeAlphabet(t *testing.T) {
	format := Format{Alphabet: "AB", Groups: 4, GroupSize: 8, Separator: "-"}
	gen := NewGenerator(GeneratorConfig{
		Formats: staticFormat{format: format},
		Hasher:  plainHasher{},
		Checker: newMemoryChecker(),
		Random:  rand.New(rand.NewSource(5)),
	})

	seen := map[rune]int{}
	for i := 0; i < 20; i++ {
		key, err := gen.Generate(context.Background(), teamcontext.Team{ID: 1})
		require.NoError(t, err)
		require.True(t, format.Validate(key))
		for _, r := range key {
			seen[r]++
		}
	}
	assert.Greater(t, seen['A'], 0)
	assert.Greater(t, seen['B'], 0)
}
