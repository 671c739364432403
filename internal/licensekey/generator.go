package licensekey

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/licensehub/internal/teamcontext"
	"go.uber.org/zap"
)

const DefaultMaxAttempts = 10

var (
	ErrKeyGenerationExhausted = errors.New("license key generation exhausted")
	ErrInvalidTeam            = errors.New("invalid_team")
)

// LookupChecker reports whether a lookup token is already taken by a team.
type LookupChecker interface {
	ExistsByLookup(ctx context.Context, teamID snowflake.ID, lookup string) (bool, error)
}

// LookupHasher derives the lookup token for a plaintext key in a team.
type LookupHasher interface {
	LicenseLookup(plaintextKey, teamID string) string
}

// FormatSource supplies the active key format and the matcher for every
// format keys are still accepted in.
type FormatSource interface {
	Format() Format
	Matcher() *Matcher
}

type GeneratorConfig struct {
	Formats     FormatSource
	Hasher      LookupHasher
	Checker     LookupChecker
	MaxAttempts int
	Random      io.Reader
	Log         *zap.Logger
}

// Generator produces plaintext keys that do not collide with existing keys of
// the same team at the time of the check. It never writes anything; the unique
// index on (team_id, license_key_lookup) stays the source of truth.
type Generator struct {
	formats     FormatSource
	hasher      LookupHasher
	checker     LookupChecker
	maxAttempts int
	random      io.Reader
	log         *zap.Logger
}

func NewGenerator(cfg GeneratorConfig) *Generator {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	random := cfg.Random
	if random == nil {
		random = rand.Reader
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{
		formats:     cfg.Formats,
		hasher:      cfg.Hasher,
		checker:     cfg.Checker,
		maxAttempts: maxAttempts,
		random:      random,
		log:         log.Named("licensekey.generator"),
	}
}

// Generate returns a fresh key for team.
func (g *Generator) Generate(ctx context.Context, team teamcontext.Team) (string, error) {
	if !team.Valid() {
		return "", ErrInvalidTeam
	}

	format := g.formats.Format()
	teamID := team.String()

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		candidate, err := g.candidate(format)
		if err != nil {
			return "", err
		}

		exists, err := g.checker.ExistsByLookup(ctx, team.ID, g.hasher.LicenseLookup(candidate, teamID))
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}

		g.log.Debug("license key collision, retrying",
			zap.String("team_id", teamID),
			zap.Int("attempt", attempt),
		)
	}

	g.log.Error("license key generation exhausted",
		zap.String("team_id", teamID),
		zap.Int("attempts", g.maxAttempts),
	)
	return "", fmt.Errorf("%w after %d attempts", ErrKeyGenerationExhausted, g.maxAttempts)
}

// candidate draws Groups*GroupSize characters uniformly from the alphabet.
// Bytes at or above the largest multiple of the alphabet size are rejected
// so every character is equally likely.
func (g *Generator) candidate(format Format) (string, error) {
	size := len(format.Alphabet)
	limit := 256 - 256%size
	need := format.Groups * format.GroupSize

	out := make([]byte, 0, need)
	buf := make([]byte, need)
	for len(out) < need {
		if _, err := io.ReadFull(g.random, buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, format.Alphabet[int(b)%size])
			if len(out) == need {
				break
			}
		}
	}
	return format.join(out), nil
}
