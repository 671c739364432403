package returnedfields

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/lib/pq"
	customerdomain "github.com/smallbiznis/licensehub/internal/customer/domain"
	licensedomain "github.com/smallbiznis/licensehub/internal/license/domain"
	metadatadomain "github.com/smallbiznis/licensehub/internal/metadata/domain"
	productdomain "github.com/smallbiznis/licensehub/internal/product/domain"
	"github.com/smallbiznis/licensehub/internal/returnedfields/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int               { return &v }
func strPtr(v string) *string         { return &v }
func timePtr(v time.Time) *time.Time { return &v }

func fullAggregate() *licensedomain.Aggregate {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &licensedomain.Aggregate{
		License: licensedomain.License{
			ID:              1,
			TeamID:          7,
			IPLimit:         intPtr(2),
			Seats:           intPtr(5),
			ExpirationType:  licensedomain.ExpirationDuration,
			ExpirationStart: licensedomain.StartCreation,
			ExpirationDate:  timePtr(created.AddDate(0, 0, 30)),
			ExpirationDays:  intPtr(30),
		},
		Metadata: []metadatadomain.Entry{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}},
		Customers: []customerdomain.Customer{
			{ID: 10, Email: strPtr("a@x.com"), FullName: strPtr("A"), Username: strPtr("alice"),
				Metadata: []metadatadomain.Entry{{Key: "tier", Value: "gold"}}},
		},
		Products: []licensedomain.AggregateProduct{
			{
				Product: productdomain.Product{ID: 20, Name: "Widget", URL: strPtr("https://widget.example.com"),
					Metadata: []metadatadomain.Entry{{Key: "sku", Value: "W-1"}}},
				LatestRelease: &productdomain.Release{ID: 30, Version: "1.2.0", Latest: true, CreatedAt: created},
			},
		},
	}
}

func TestProjectNilPolicyDisclosesNothing(t *testing.T) {
	assert.Nil(t, Project(nil, fullAggregate()))
	assert.Nil(t, Project(&domain.Policy{LicenseSeats: true}, nil))
}

func TestProjectAllFlagsOffIsNil(t *testing.T) {
	policy := &domain.Policy{
		LicenseMetadataKeys:  pq.StringArray{},
		CustomerMetadataKeys: pq.StringArray{},
		ProductMetadataKeys:  pq.StringArray{},
	}
	assert.Nil(t, Project(policy, fullAggregate()))
}

func TestProjectFieldGating(t *testing.T) {
	policy := &domain.Policy{LicenseSeats: false, LicenseIPLimit: true}

	out := Project(policy, fullAggregate())
	require.NotNil(t, out)
	require.NotNil(t, out.License)
	assert.Nil(t, out.License.Seats)
	assert.Equal(t, 2, *out.License.IPLimit)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"license":{"ipLimit":2}}`, string(raw))
}

func TestProjectSkipsAbsentLicenseValues(t *testing.T) {
	agg := fullAggregate()
	agg.License.Seats = nil

	out := Project(&domain.Policy{LicenseSeats: true}, agg)
	assert.Nil(t, out)
}

func TestProjectLicenseMetadataAllowList(t *testing.T) {
	policy := &domain.Policy{LicenseMetadataKeys: pq.StringArray{"a"}}

	out := Project(policy, fullAggregate())
	require.NotNil(t, out)
	require.NotNil(t, out.License)
	assert.Equal(t, []metadatadomain.Entry{{Key: "a", Value: "1"}}, out.License.Metadata)

	policy.LicenseMetadataKeys = pq.StringArray{"missing"}
	assert.Nil(t, Project(policy, fullAggregate()))
}

func TestProjectCustomerScenario(t *testing.T) {
	policy := &domain.Policy{CustomerEmail: true, LicenseSeats: true}
	agg := &licensedomain.Aggregate{
		License: licensedomain.License{Seats: intPtr(3), ExpirationType: licensedomain.ExpirationNever},
		Customers: []customerdomain.Customer{
			{Email: strPtr("a@x.com"), FullName: strPtr("A")},
		},
	}

	out := Project(policy, agg)
	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"license":{"seats":3},"customers":[{"email":"a@x.com"}]}`, string(raw))
}

func TestProjectOmitsEmptyCustomers(t *testing.T) {
	policy := &domain.Policy{CustomerEmail: true, LicenseSeats: true}
	agg := fullAggregate()
	agg.Customers = []customerdomain.Customer{
		{ID: 1, FullName: strPtr("No Email")},
		{ID: 2, Email: strPtr("")},
	}

	out := Project(policy, agg)
	require.NotNil(t, out)
	assert.Nil(t, out.Customers)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "customers")
}

func TestProjectProducts(t *testing.T) {
	policy := &domain.Policy{
		ProductName:          true,
		ProductLatestRelease: true,
		ProductMetadataKeys:  pq.StringArray{"sku"},
	}

	out := Project(policy, fullAggregate())
	require.NotNil(t, out)
	require.Len(t, out.Products, 1)
	product := out.Products[0]
	assert.Equal(t, "Widget", *product.Name)
	assert.Nil(t, product.URL)
	require.NotNil(t, product.LatestRelease)
	assert.Equal(t, "1.2.0", product.LatestRelease.Version)
	assert.Equal(t, []metadatadomain.Entry{{Key: "sku", Value: "W-1"}}, product.Metadata)
	assert.Nil(t, out.License)
}

func TestProjectIgnoresReleaseNotMarkedLatest(t *testing.T) {
	agg := fullAggregate()
	agg.Products[0].LatestRelease.Latest = false

	assert.Nil(t, Project(&domain.Policy{ProductLatestRelease: true}, agg))
}

func TestProjectIsIdempotentAndDoesNotAlias(t *testing.T) {
	policy := &domain.Policy{
		LicenseSeats:          true,
		LicenseExpirationDate: true,
		CustomerEmail:         true,
		LicenseMetadataKeys:   pq.StringArray{"a", "b"},
	}
	agg := fullAggregate()

	first := Project(policy, agg)
	second := Project(policy, agg)
	assert.Equal(t, first, second)

	*agg.License.Seats = 99
	*agg.Customers[0].Email = "changed@x.com"
	assert.Equal(t, 5, *first.License.Seats)
	assert.Equal(t, "a@x.com", *first.Customers[0].Email)
}

func TestProjectExpirationFields(t *testing.T) {
	policy := &domain.Policy{
		LicenseExpirationType:  true,
		LicenseExpirationStart: true,
		LicenseExpirationDays:  true,
	}

	raw, err := json.Marshal(Project(policy, fullAggregate()))
	require.NoError(t, err)
	assert.JSONEq(t, `{"license":{"expirationType":"DURATION","expirationStart":"CREATION","expirationDays":30}}`, string(raw))
}
