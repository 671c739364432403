package teamcontext

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Team is the already-validated team scope a request operates in. Handlers
// resolve it once (API key, dashboard token or path lookup) and downstream
// code trusts it instead of re-checking existence.
type Team struct {
	ID snowflake.ID
}

func (t Team) Valid() bool {
	return t.ID != 0
}

// String returns the decimal team id used in lookup composites.
func (t Team) String() string {
	return t.ID.String()
}

type teamContextKey struct{}

// WithTeam stores the team in the context.
func WithTeam(ctx context.Context, team Team) context.Context {
	return context.WithValue(ctx, teamContextKey{}, team)
}

// WithTeamID is a shorthand for WithTeam(ctx, Team{ID: id}).
func WithTeamID(ctx context.Context, id snowflake.ID) context.Context {
	return WithTeam(ctx, Team{ID: id})
}

// FromContext returns the team from context, if set.
func FromContext(ctx context.Context) (Team, bool) {
	if ctx == nil {
		return Team{}, false
	}
	team, ok := ctx.Value(teamContextKey{}).(Team)
	if !ok || !team.Valid() {
		return Team{}, false
	}
	return team, true
}
