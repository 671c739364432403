package seed

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	teamdomain "github.com/smallbiznis/licensehub/internal/team/domain"
	"github.com/smallbiznis/licensehub/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMainTeamIsIdempotent(t *testing.T) {
	conn := dbtest.New(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := MainTeam(ctx, conn, node, 0)
	require.NoError(t, err)
	second, err := MainTeam(ctx, conn, node, 0)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var teams []teamdomain.Team
	require.NoError(t, conn.Find(&teams).Error)
	require.Len(t, teams, 1)
	assert.Equal(t, MainTeamSlug, teams[0].Slug)
}

func TestMainTeamWithFixedID(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()

	team, err := MainTeam(ctx, conn, nil, 4242)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(4242), team.ID)
	assert.Equal(t, MainTeamName, team.Name)

	again, err := MainTeam(ctx, conn, nil, 4242)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(4242), again.ID)

	_, err = MainTeam(ctx, conn, nil, 0)
	assert.Error(t, err)
}
