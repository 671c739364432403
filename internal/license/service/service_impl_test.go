package service

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/licensehub/internal/clock"
	"github.com/smallbiznis/licensehub/internal/config"
	customerdomain "github.com/smallbiznis/licensehub/internal/customer/domain"
	customerrepo "github.com/smallbiznis/licensehub/internal/customer/repository"
	"github.com/smallbiznis/licensehub/internal/license/domain"
	"github.com/smallbiznis/licensehub/internal/license/repository"
	"github.com/smallbiznis/licensehub/internal/licensecrypto"
	"github.com/smallbiznis/licensehub/internal/licensekey"
	metadatadomain "github.com/smallbiznis/licensehub/internal/metadata/domain"
	metadatarepo "github.com/smallbiznis/licensehub/internal/metadata/repository"
	productdomain "github.com/smallbiznis/licensehub/internal/product/domain"
	productrepo "github.com/smallbiznis/licensehub/internal/product/repository"
	returnedfieldsdomain "github.com/smallbiznis/licensehub/internal/returnedfields/domain"
	returnedfieldsrepo "github.com/smallbiznis/licensehub/internal/returnedfields/repository"
	returnedfieldssvc "github.com/smallbiznis/licensehub/internal/returnedfields/service"
	"github.com/smallbiznis/licensehub/internal/teamcontext"
	"github.com/smallbiznis/licensehub/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

const testTeam = snowflake.ID(7)

type fixture struct {
	t        *testing.T
	repo     domain.Repository
	db       *gorm.DB
	svc      domain.Service
	codec    *licensecrypto.Codec
	clock    *clock.FakeClock
	node     *snowflake.Node
	policies returnedfieldsdomain.Service
	ctx      context.Context
}

// duplicateOnce fails the first n inserts with a unique violation.
type duplicateOnce struct {
	domain.Repository
	failures int
}

func (d *duplicateOnce) Insert(ctx context.Context, db *gorm.DB, license *domain.License) error {
	if d.failures > 0 {
		d.failures--
		return errors.New("UNIQUE constraint failed: licenses.team_id, licenses.license_key_lookup")
	}
	return d.Repository.Insert(ctx, db, license)
}

func newFixture(t *testing.T, repo domain.Repository) *fixture {
	t.Helper()

	db := dbtest.New(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))

	codec, err := licensecrypto.New(licensecrypto.Config{
		Keys:        map[string][]byte{"k1": bytes.Repeat([]byte{1}, 32)},
		ActiveKeyID: "k1",
		HMACSecret:  []byte(strings.Repeat("s", 32)),
	})
	require.NoError(t, err)

	policies, err := returnedfieldssvc.New(returnedfieldssvc.Params{
		DB:    db,
		Log:   zaptest.NewLogger(t),
		Clock: clk,
		Repo:  returnedfieldsrepo.Provide(),
	})
	require.NoError(t, err)

	if repo == nil {
		repo = repository.Provide()
	}

	f := &fixture{
		t:        t,
		repo:     repo,
		db:       db,
		codec:    codec,
		clock:    clk,
		node:     node,
		policies: policies,
		ctx:      teamcontext.WithTeamID(context.Background(), testTeam),
	}
	f.svc = f.service(config.NewStaticKeyFormatHolder(licensekey.DefaultFormat()))
	return f
}

// service builds another service over the fixture's database.
func (f *fixture) service(formats licensekey.FormatSource) domain.Service {
	return New(Params{
		DB:           f.db,
		Log:          zaptest.NewLogger(f.t),
		GenID:        f.node,
		Clock:        f.clock,
		Repo:         f.repo,
		CustomerRepo: customerrepo.Provide(),
		ProductRepo:  productrepo.Provide(),
		MetadataRepo: metadatarepo.Provide(),
		Codec:        f.codec,
		Formats:      formats,
		Policies:     f.policies,
	})
}

func (f *fixture) customer(t *testing.T, email string, meta ...metadatadomain.Entry) string {
	t.Helper()
	c := &customerdomain.Customer{ID: f.node.Generate(), TeamID: testTeam, Email: &email, CreatedAt: f.clock.Now(), UpdatedAt: f.clock.Now()}
	require.NoError(t, customerrepo.Provide().Insert(f.ctx, f.db, c))
	f.metadata(t, metadatadomain.OwnerCustomer, c.ID, meta)
	return c.ID.String()
}

func (f *fixture) product(t *testing.T, name string) string {
	t.Helper()
	p := &productdomain.Product{ID: f.node.Generate(), TeamID: testTeam, Name: name, CreatedAt: f.clock.Now(), UpdatedAt: f.clock.Now()}
	require.NoError(t, productrepo.Provide().Create(f.ctx, f.db, p))
	release := &productdomain.Release{ID: f.node.Generate(), TeamID: testTeam, ProductID: p.ID, Version: "2.0.0", Latest: true, CreatedAt: f.clock.Now()}
	require.NoError(t, productrepo.Provide().InsertRelease(f.ctx, f.db, release))
	return p.ID.String()
}

func (f *fixture) metadata(t *testing.T, owner metadatadomain.OwnerType, ownerID snowflake.ID, entries []metadatadomain.Entry) {
	t.Helper()
	rows := make([]metadatadomain.Row, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, metadatadomain.Row{ID: f.node.Generate(), Key: entry.Key, Value: entry.Value, CreatedAt: f.clock.Now()})
	}
	require.NoError(t, metadatarepo.Provide().Replace(f.ctx, f.db, rows, testTeam, owner, ownerID))
}

func intPtr(v int) *int { return &v }

func TestCreateReturnsPlaintextOnce(t *testing.T) {
	f := newFixture(t, nil)

	created, err := f.svc.Create(f.ctx, domain.CreateRequest{Seats: intPtr(5)})
	require.NoError(t, err)
	assert.True(t, licensekey.DefaultFormat().Validate(created.LicenseKey))

	id, err := snowflake.ParseString(created.ID)
	require.NoError(t, err)
	stored, err := repository.Provide().FindByID(f.ctx, f.db, testTeam, id)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotContains(t, stored.LicenseKey, created.LicenseKey)
	assert.Equal(t, f.codec.LicenseLookup(created.LicenseKey, testTeam.String()), stored.LicenseKeyLookup)
	assert.Equal(t, domain.ExpirationNever, stored.ExpirationType)

	plain, err := f.codec.Decrypt(stored.LicenseKey)
	require.NoError(t, err)
	assert.Equal(t, created.LicenseKey, plain)

	got, err := f.svc.Get(f.ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, *got.Seats)

	revealed, err := f.svc.Reveal(f.ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.LicenseKey, revealed.LicenseKey)
}

func TestCreateRetriesOnceOnDuplicate(t *testing.T) {
	repo := &duplicateOnce{Repository: repository.Provide(), failures: 1}
	f := newFixture(t, repo)

	created, err := f.svc.Create(f.ctx, domain.CreateRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, created.LicenseKey)
	assert.Equal(t, 0, repo.failures)
}

func TestCreateConflictAfterRetry(t *testing.T) {
	repo := &duplicateOnce{Repository: repository.Provide(), failures: 2}
	f := newFixture(t, repo)

	_, err := f.svc.Create(f.ctx, domain.CreateRequest{})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, nil)
	other := teamcontext.WithTeamID(context.Background(), 8)
	foreign := &customerdomain.Customer{ID: f.node.Generate(), TeamID: 8, CreatedAt: f.clock.Now(), UpdatedAt: f.clock.Now()}
	require.NoError(t, customerrepo.Provide().Insert(other, f.db, foreign))

	cases := []struct {
		name string
		req  domain.CreateRequest
		err  error
	}{
		{name: "zero seats", req: domain.CreateRequest{Seats: intPtr(0)}, err: domain.ErrInvalidLimit},
		{name: "unknown type", req: domain.CreateRequest{ExpirationType: "FOREVER"}, err: domain.ErrInvalidExpiration},
		{name: "date without date", req: domain.CreateRequest{ExpirationType: "DATE"}, err: domain.ErrInvalidExpiration},
		{name: "duration without days", req: domain.CreateRequest{ExpirationType: "DURATION"}, err: domain.ErrInvalidExpiration},
		{name: "bad start", req: domain.CreateRequest{ExpirationType: "DURATION", ExpirationDays: intPtr(3), ExpirationStart: "LATER"}, err: domain.ErrInvalidExpiration},
		{name: "bad customer id", req: domain.CreateRequest{CustomerIDs: []string{"abc"}}, err: domain.ErrInvalidCustomer},
		{name: "foreign customer", req: domain.CreateRequest{CustomerIDs: []string{foreign.ID.String()}}, err: domain.ErrInvalidCustomer},
		{name: "unknown product", req: domain.CreateRequest{ProductIDs: []string{"12345"}}, err: domain.ErrInvalidProduct},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(f.ctx, tc.req)
			assert.ErrorIs(t, err, tc.err)
		})
	}

	_, err := f.svc.Create(context.Background(), domain.CreateRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidTeam)
}

func TestVerifyResultCodes(t *testing.T) {
	f := newFixture(t, nil)
	customerID := f.customer(t, "a@x.com")
	productID := f.product(t, "Widget")

	created, err := f.svc.Create(f.ctx, domain.CreateRequest{
		CustomerIDs: []string{customerID, customerID},
		ProductIDs:  []string{productID},
	})
	require.NoError(t, err)

	resp, err := f.svc.Verify(f.ctx, domain.VerifyRequest{LicenseKey: strings.ToLower(created.LicenseKey)})
	require.NoError(t, err)
	assert.True(t, resp.Result.Valid)
	assert.Equal(t, domain.CodeValid, resp.Result.Code)
	assert.Nil(t, resp.Data)
	assert.Empty(t, resp.Result.ChallengeResponse)

	resp, err = f.svc.Verify(f.ctx, domain.VerifyRequest{LicenseKey: created.LicenseKey, CustomerID: customerID, ProductID: productID})
	require.NoError(t, err)
	assert.Equal(t, domain.CodeValid, resp.Result.Code)

	resp, err = f.svc.Verify(f.ctx, domain.VerifyRequest{LicenseKey: created.LicenseKey, CustomerID: "999"})
	require.NoError(t, err)
	assert.Equal(t, domain.CodeCustomerNotFound, resp.Result.Code)
	assert.False(t, resp.Result.Valid)

	resp, err = f.svc.Verify(f.ctx, domain.VerifyRequest{LicenseKey: created.LicenseKey, ProductID: "999"})
	require.NoError(t, err)
	assert.Equal(t, domain.CodeProductNotFound, resp.Result.Code)

	resp, err = f.svc.Verify(f.ctx, domain.VerifyRequest{LicenseKey: "AAAAA-AAAAA-AAAAA-AAAAA-AAAAA"})
	require.NoError(t, err)
	assert.Equal(t, domain.CodeLicenseNotFound, resp.Result.Code)

	otherTeam := teamcontext.WithTeamID(context.Background(), 8)
	resp, err = f.svc.Verify(otherTeam, domain.VerifyRequest{LicenseKey: created.LicenseKey})
	require.NoError(t, err)
	assert.Equal(t, domain.CodeLicenseNotFound, resp.Result.Code)

	_, err = f.svc.SetSuspended(f.ctx, created.ID, true)
	require.NoError(t, err)
	resp, err = f.svc.Verify(f.ctx, domain.VerifyRequest{LicenseKey: created.LicenseKey})
	require.NoError(t, err)
	assert.Equal(t, domain.CodeLicenseSuspended, resp.Result.Code)
	assert.Nil(t, resp.Data)
}

func TestVerifyRejectsMalformedKey(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Verify(f.ctx, domain.VerifyRequest{LicenseKey: "not-a-key"})
	assert.ErrorIs(t, err, domain.ErrInvalidLicenseKey)

	_, err = f.svc.Verify(f.ctx, domain.VerifyRequest{
		LicenseKey: "AAAAA-AAAAA-AAAAA-AAAAA-AAAAA",
		Challenge:  strings.Repeat("c", domain.MaxChallengeLength+1),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidChallenge)
}

func TestVerifyAfterFormatChange(t *testing.T) {
	f := newFixture(t, nil)
	before, err := f.svc.Create(f.ctx, domain.CreateRequest{})
	require.NoError(t, err)

	holder := config.NewStaticKeyFormatHolder(licensekey.DefaultFormat())
	holder.Activate(licensekey.Format{Prefix: "LIC", Alphabet: licensekey.DefaultAlphabet, Groups: 4, GroupSize: 4, Separator: "-"})
	svc := f.service(holder)

	resp, err := svc.Verify(f.ctx, domain.VerifyRequest{LicenseKey: before.LicenseKey})
	require.NoError(t, err)
	assert.Equal(t, domain.CodeValid, resp.Result.Code)

	after, err := svc.Create(f.ctx, domain.CreateRequest{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(after.LicenseKey, "LIC-"))
	assert.Len(t, after.LicenseKey, 23)

	resp, err = svc.Verify(f.ctx, domain.VerifyRequest{LicenseKey: strings.ToLower(after.LicenseKey)})
	require.NoError(t, err)
	assert.Equal(t, domain.CodeValid, resp.Result.Code)

	_, err = svc.Verify(f.ctx, domain.VerifyRequest{LicenseKey: "LIC-ABCD-EFGH"})
	assert.ErrorIs(t, err, domain.ErrInvalidLicenseKey)
}

func TestVerifyDateExpiration(t *testing.T) {
	f := newFixture(t, nil)
	expires := f.clock.Now().Add(48 * time.Hour)

	created, err := f.svc.Create(f.ctx, domain.CreateRequest{ExpirationType: "date", ExpirationDate: &expires})
	require.NoError(t, err)

	resp, err := f.svc.Verify(f.ctx, domain.VerifyRequest{LicenseKey: created.LicenseKey})
	require.NoError(t, err)
	assert.Equal(t, domain.CodeValid, resp.Result.Code)

	f.clock.Advance(49 * time.Hour)
	resp, err = f.svc.Verify(f.ctx, domain.VerifyRequest{LicenseKey: created.LicenseKey})
	require.NoError(t, err)
	assert.Equal(t, domain.CodeLicenseExpired, resp.Result.Code)
}

func TestVerifyStartsActivationClock(t *testing.T) {
	f := newFixture(t, nil)

	created, err := f.svc.Create(f.ctx, domain.CreateRequest{
		ExpirationType:  "DURATION",
		ExpirationStart: "ACTIVATION",
		ExpirationDays:  intPtr(10),
	})
	require.NoError(t, err)

	before, err := f.svc.Get(f.ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, before.ExpirationDate)
	assert.Nil(t, before.ActivatedAt)

	f.clock.Advance(30 * 24 * time.Hour)
	activatedAt := f.clock.Now()

	resp, err := f.svc.Verify(f.ctx, domain.VerifyRequest{LicenseKey: created.LicenseKey})
	require.NoError(t, err)
	assert.Equal(t, domain.CodeValid, resp.Result.Code)

	after, err := f.svc.Get(f.ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, after.ActivatedAt)
	require.NotNil(t, after.ExpirationDate)
	assert.True(t, after.ExpirationDate.Equal(activatedAt.AddDate(0, 0, 10)))

	f.clock.Advance(5 * 24 * time.Hour)
	resp, err = f.svc.Verify(f.ctx, domain.VerifyRequest{LicenseKey: created.LicenseKey})
	require.NoError(t, err)
	assert.Equal(t, domain.CodeValid, resp.Result.Code)

	again, err := f.svc.Get(f.ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, again.ExpirationDate.Equal(*after.ExpirationDate))

	f.clock.Advance(6 * 24 * time.Hour)
	resp, err = f.svc.Verify(f.ctx, domain.VerifyRequest{LicenseKey: created.LicenseKey})
	require.NoError(t, err)
	assert.Equal(t, domain.CodeLicenseExpired, resp.Result.Code)
}

func TestVerifyProjectsPolicyAndAnswersChallenge(t *testing.T) {
	f := newFixture(t, nil)
	customerID := f.customer(t, "a@x.com", metadatadomain.Entry{Key: "tier", Value: "gold"})

	created, err := f.svc.Create(f.ctx, domain.CreateRequest{
		Seats:       intPtr(3),
		IPLimit:     intPtr(1),
		CustomerIDs: []string{customerID},
		Metadata:    []metadatadomain.Entry{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}},
	})
	require.NoError(t, err)

	_, err = f.policies.Upsert(f.ctx, returnedfieldsdomain.UpsertRequest{
		LicenseSeats:        true,
		CustomerEmail:       true,
		LicenseMetadataKeys: []string{"a"},
	})
	require.NoError(t, err)

	resp, err := f.svc.Verify(f.ctx, domain.VerifyRequest{LicenseKey: created.LicenseKey, Challenge: "nonce-1"})
	require.NoError(t, err)
	require.NotNil(t, resp.Data)
	require.NotNil(t, resp.Data.License)
	assert.Equal(t, 3, *resp.Data.License.Seats)
	assert.Nil(t, resp.Data.License.IPLimit)
	assert.Equal(t, []metadatadomain.Entry{{Key: "a", Value: "1"}}, resp.Data.License.Metadata)
	require.Len(t, resp.Data.Customers, 1)
	assert.Equal(t, "a@x.com", *resp.Data.Customers[0].Email)
	assert.Nil(t, resp.Data.Customers[0].Metadata)
	assert.Nil(t, resp.Data.Products)

	secret, err := f.svc.SigningSecret(f.ctx)
	require.NoError(t, err)
	key, err := hex.DecodeString(secret)
	require.NoError(t, err)
	assert.True(t, licensecrypto.VerifySignature(key, "nonce-1", resp.Result.ChallengeResponse))

	otherSecret, err := f.svc.SigningSecret(teamcontext.WithTeamID(context.Background(), 8))
	require.NoError(t, err)
	assert.NotEqual(t, secret, otherSecret)
}

func TestListFiltersAndPaginates(t *testing.T) {
	f := newFixture(t, nil)
	customerID := f.customer(t, "a@x.com")

	for i := 0; i < 3; i++ {
		f.clock.Advance(time.Minute)
		_, err := f.svc.Create(f.ctx, domain.CreateRequest{})
		require.NoError(t, err)
	}
	f.clock.Advance(time.Minute)
	bound, err := f.svc.Create(f.ctx, domain.CreateRequest{CustomerIDs: []string{customerID}})
	require.NoError(t, err)

	first, err := f.svc.List(f.ctx, domain.ListRequest{PageSize: 3})
	require.NoError(t, err)
	assert.Len(t, first.Licenses, 3)
	assert.True(t, first.HasMore)
	assert.Equal(t, bound.ID, first.Licenses[0].ID)
	assert.Equal(t, []string{customerID}, first.Licenses[0].CustomerIDs)

	second, err := f.svc.List(f.ctx, domain.ListRequest{PageSize: 3, PageToken: first.NextPageToken})
	require.NoError(t, err)
	assert.Len(t, second.Licenses, 1)
	assert.False(t, second.HasMore)

	filtered, err := f.svc.List(f.ctx, domain.ListRequest{CustomerID: customerID})
	require.NoError(t, err)
	require.Len(t, filtered.Licenses, 1)
	assert.Equal(t, bound.ID, filtered.Licenses[0].ID)

	suspended := true
	none, err := f.svc.List(f.ctx, domain.ListRequest{Suspended: &suspended})
	require.NoError(t, err)
	assert.Empty(t, none.Licenses)
}

func TestDeleteRemovesLicense(t *testing.T) {
	f := newFixture(t, nil)

	created, err := f.svc.Create(f.ctx, domain.CreateRequest{Metadata: []metadatadomain.Entry{{Key: "a", Value: "1"}}})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(f.ctx, created.ID))
	assert.ErrorIs(t, f.svc.Delete(f.ctx, created.ID), domain.ErrNotFound)

	_, err = f.svc.Get(f.ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	resp, err := f.svc.Verify(f.ctx, domain.VerifyRequest{LicenseKey: created.LicenseKey})
	require.NoError(t, err)
	assert.Equal(t, domain.CodeLicenseNotFound, resp.Result.Code)

	_, err = f.svc.Get(f.ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}
