package returnedfields

import (
	licensedomain "github.com/smallbiznis/licensehub/internal/license/domain"
	metadatadomain "github.com/smallbiznis/licensehub/internal/metadata/domain"
	"github.com/smallbiznis/licensehub/internal/returnedfields/domain"
)

// Project builds the verification payload a team allows third parties to see.
// It returns nil when there is no policy or when nothing qualifies. The result
// never aliases agg.
func Project(policy *domain.Policy, agg *licensedomain.Aggregate) *domain.Projection {
	if policy == nil || agg == nil {
		return nil
	}

	out := &domain.Projection{}

	if license := projectLicense(policy, agg); !license.IsEmpty() {
		out.License = &license
	}

	for _, customer := range agg.Customers {
		fields := domain.CustomerFields{}
		if policy.CustomerEmail {
			fields.Email = nonEmpty(customer.Email)
		}
		if policy.CustomerFullName {
			fields.FullName = nonEmpty(customer.FullName)
		}
		if policy.CustomerUsername {
			fields.Username = nonEmpty(customer.Username)
		}
		fields.Metadata = filterMetadata(customer.Metadata, policy.CustomerMetadataKeys)
		if !fields.IsEmpty() {
			out.Customers = append(out.Customers, fields)
		}
	}

	for _, item := range agg.Products {
		fields := domain.ProductFields{}
		if policy.ProductName {
			fields.Name = nonEmpty(&item.Product.Name)
		}
		if policy.ProductURL {
			fields.URL = nonEmpty(item.Product.URL)
		}
		if policy.ProductLatestRelease && item.LatestRelease != nil && item.LatestRelease.Latest {
			fields.LatestRelease = &domain.ReleaseFields{
				Version:   item.LatestRelease.Version,
				CreatedAt: item.LatestRelease.CreatedAt,
			}
		}
		fields.Metadata = filterMetadata(item.Product.Metadata, policy.ProductMetadataKeys)
		if !fields.IsEmpty() {
			out.Products = append(out.Products, fields)
		}
	}

	if out.Empty() {
		return nil
	}
	return out
}

func projectLicense(policy *domain.Policy, agg *licensedomain.Aggregate) domain.LicenseFields {
	lic := agg.License
	fields := domain.LicenseFields{}

	if policy.LicenseIPLimit {
		fields.IPLimit = copyInt(lic.IPLimit)
	}
	if policy.LicenseSeats {
		fields.Seats = copyInt(lic.Seats)
	}
	if policy.LicenseExpirationType && lic.ExpirationType != "" {
		value := string(lic.ExpirationType)
		fields.ExpirationType = &value
	}
	if policy.LicenseExpirationStart && lic.ExpirationStart != "" {
		value := string(lic.ExpirationStart)
		fields.ExpirationStart = &value
	}
	if policy.LicenseExpirationDate && lic.ExpirationDate != nil {
		value := *lic.ExpirationDate
		fields.ExpirationDate = &value
	}
	if policy.LicenseExpirationDays {
		fields.ExpirationDays = copyInt(lic.ExpirationDays)
	}
	fields.Metadata = filterMetadata(agg.Metadata, policy.LicenseMetadataKeys)

	return fields
}

// filterMetadata keeps entries whose key is allow-listed, in source order.
func filterMetadata(entries []metadatadomain.Entry, allowed []string) []metadatadomain.Entry {
	if len(allowed) == 0 || len(entries) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, key := range allowed {
		set[key] = struct{}{}
	}

	var out []metadatadomain.Entry
	for _, entry := range entries {
		if _, ok := set[entry.Key]; ok {
			out = append(out, entry)
		}
	}
	return out
}

func nonEmpty(value *string) *string {
	if value == nil || *value == "" {
		return nil
	}
	v := *value
	return &v
}

func copyInt(value *int) *int {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
