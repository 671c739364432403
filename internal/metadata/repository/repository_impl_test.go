package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/licensehub/internal/metadata/domain"
	"github.com/smallbiznis/licensehub/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceAndList(t *testing.T) {
	conn, err := db.NewTest(t.Name())
	require.NoError(t, err)
	require.NoError(t, conn.Exec(`CREATE TABLE metadata (
		id INTEGER PRIMARY KEY,
		team_id INTEGER NOT NULL,
		owner_type TEXT NOT NULL,
		owner_id INTEGER NOT NULL,
		meta_key TEXT NOT NULL,
		meta_value TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	ctx := context.Background()
	r := Provide()
	teamID := snowflake.ID(10)
	now := time.Now().UTC()

	row := func(key, value string) domain.Row {
		return domain.Row{ID: node.Generate(), Key: key, Value: value, CreatedAt: now}
	}

	require.NoError(t, r.Replace(ctx, conn, []domain.Row{row("a", "1"), row("b", "2")}, teamID, domain.OwnerLicense, 1))
	require.NoError(t, r.Replace(ctx, conn, []domain.Row{row("c", "3")}, teamID, domain.OwnerLicense, 2))
	require.NoError(t, r.Replace(ctx, conn, []domain.Row{row("x", "9")}, 99, domain.OwnerLicense, 1))

	got, err := r.ListByOwners(ctx, conn, teamID, domain.OwnerLicense, []snowflake.ID{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []domain.Entry{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}, got[1])
	assert.Equal(t, []domain.Entry{{Key: "c", Value: "3"}}, got[2])
	assert.Empty(t, got[3])

	require.NoError(t, r.Replace(ctx, conn, []domain.Row{row("b", "20")}, teamID, domain.OwnerLicense, 1))
	got, err = r.ListByOwners(ctx, conn, teamID, domain.OwnerLicense, []snowflake.ID{1})
	require.NoError(t, err)
	assert.Equal(t, []domain.Entry{{Key: "b", Value: "20"}}, got[1])

	empty, err := r.ListByOwners(ctx, conn, teamID, domain.OwnerCustomer, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
