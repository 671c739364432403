package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/smallbiznis/licensehub/internal/apikey/domain"
	"github.com/smallbiznis/licensehub/internal/apikey/repository"
	"github.com/smallbiznis/licensehub/internal/clock"
	"github.com/smallbiznis/licensehub/internal/teamcontext"
	"github.com/smallbiznis/licensehub/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type prefixHasher struct{}

func (prefixHasher) LookupHash(input string) string { return "h:" + input }

func newTestService(t *testing.T) apikeydomain.Service {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return New(Params{
		DB:     dbtest.New(t),
		Log:    zaptest.NewLogger(t),
		GenID:  node,
		Clock:  clock.NewFakeClock(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)),
		Repo:   repository.Provide(),
		Hasher: prefixHasher{},
	})
}

func TestCreateAndAuthenticate(t *testing.T) {
	svc := newTestService(t)
	ctx := teamcontext.WithTeamID(context.Background(), 7)

	secret, err := svc.Create(ctx, apikeydomain.CreateRequest{Name: " ci "})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(secret.APIKey, apiKeyPrefix))
	assert.True(t, strings.HasPrefix(secret.KeyID, "key_"))

	key, err := svc.Authenticate(context.Background(), secret.APIKey)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(7), key.TeamID)
	assert.True(t, key.HasScope(apikeydomain.ScopeLicensesWrite))
	assert.Equal(t, "h:api-key:"+secret.APIKey, key.KeyHash)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ci", list[0].Name)
	assert.ElementsMatch(t, apikeydomain.AllScopes, list[0].Scopes)
	assert.NotNil(t, list[0].LastUsedAt)
}

func TestAuthenticateRejectsUnknownKeys(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Authenticate(context.Background(), "not-a-key")
	assert.ErrorIs(t, err, apikeydomain.ErrUnauthorized)

	_, err = svc.Authenticate(context.Background(), apiKeyPrefix+"ABC_deadbeef")
	assert.ErrorIs(t, err, apikeydomain.ErrUnauthorized)
}

func TestRevokeDisablesKey(t *testing.T) {
	svc := newTestService(t)
	ctx := teamcontext.WithTeamID(context.Background(), 7)

	secret, err := svc.Create(ctx, apikeydomain.CreateRequest{Name: "ci", Scopes: []string{apikeydomain.ScopeLicensesRead}})
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, secret.KeyID))
	assert.ErrorIs(t, svc.Revoke(ctx, secret.KeyID), apikeydomain.ErrNotFound)

	_, err = svc.Authenticate(context.Background(), secret.APIKey)
	assert.ErrorIs(t, err, apikeydomain.ErrUnauthorized)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].IsActive)
	assert.NotNil(t, list[0].RevokedAt)
	assert.Equal(t, []string{apikeydomain.ScopeLicensesRead}, list[0].Scopes)
}

func TestRevokeIsTeamScoped(t *testing.T) {
	svc := newTestService(t)

	secret, err := svc.Create(teamcontext.WithTeamID(context.Background(), 7), apikeydomain.CreateRequest{Name: "ci"})
	require.NoError(t, err)

	err = svc.Revoke(teamcontext.WithTeamID(context.Background(), 8), secret.KeyID)
	assert.ErrorIs(t, err, apikeydomain.ErrNotFound)
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := teamcontext.WithTeamID(context.Background(), 7)

	_, err := svc.Create(ctx, apikeydomain.CreateRequest{Name: " "})
	assert.ErrorIs(t, err, apikeydomain.ErrInvalidName)

	_, err = svc.Create(ctx, apikeydomain.CreateRequest{Name: "ci", Scopes: []string{"admin"}})
	assert.ErrorIs(t, err, apikeydomain.ErrInvalidScope)

	_, err = svc.Create(context.Background(), apikeydomain.CreateRequest{Name: "ci"})
	assert.ErrorIs(t, err, apikeydomain.ErrInvalidTeam)
}

func TestRevokeRejectsMalformedKeyID(t *testing.T) {
	svc := newTestService(t)
	ctx := teamcontext.WithTeamID(context.Background(), 7)

	assert.ErrorIs(t, svc.Revoke(ctx, " "), apikeydomain.ErrInvalidKeyID)
	assert.ErrorIs(t, svc.Revoke(ctx, "key_"), apikeydomain.ErrInvalidKeyID)
	assert.ErrorIs(t, svc.Revoke(ctx, "12345"), apikeydomain.ErrInvalidKeyID)
	assert.ErrorIs(t, svc.Revoke(ctx, "key_NOPE"), apikeydomain.ErrNotFound)
}

func TestNormalizeScopesDedupes(t *testing.T) {
	scopes, err := normalizeScopes([]string{" licenses:read", "licenses:read", "licenses:write"})
	require.NoError(t, err)
	assert.Equal(t, []string{apikeydomain.ScopeLicensesRead, apikeydomain.ScopeLicensesWrite}, scopes)
}
