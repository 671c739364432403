package service

import (
	"context"
	"encoding/hex"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/licensehub/internal/license/domain"
	"github.com/smallbiznis/licensehub/internal/licensecrypto"
	metadatadomain "github.com/smallbiznis/licensehub/internal/metadata/domain"
	"github.com/smallbiznis/licensehub/internal/returnedfields"
	"github.com/smallbiznis/licensehub/internal/teamcontext"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Verify checks a plaintext key on behalf of a third-party integrator. Only
// malformed input is an error; every other outcome is a result code.
func (s *Service) Verify(ctx context.Context, req domain.VerifyRequest) (*domain.VerifyResponse, error) {
	started := time.Now()
	team, ok := teamcontext.FromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidTeam
	}

	key, ok := s.formats.Matcher().Match(req.LicenseKey)
	if !ok {
		return nil, domain.ErrInvalidLicenseKey
	}
	if len(req.Challenge) > domain.MaxChallengeLength {
		return nil, domain.ErrInvalidChallenge
	}

	resp, err := s.verify(ctx, team, key, req)
	if err != nil {
		s.licenseMetrics.IncError("verify", err)
		return nil, err
	}

	s.licenseMetrics.IncVerification(string(resp.Result.Code))
	s.licenseMetrics.ObserveVerifyDuration(time.Since(started))
	s.metrics.RecordVerification(ctx, team.String(), string(resp.Result.Code))
	return resp, nil
}

func (s *Service) verify(ctx context.Context, team teamcontext.Team, key string, req domain.VerifyRequest) (*domain.VerifyResponse, error) {
	license, err := s.repo.FindByLookup(ctx, s.db, team.ID, s.codec.LicenseLookup(key, team.String()))
	if err != nil {
		return nil, err
	}
	if license == nil {
		return s.result(domain.CodeLicenseNotFound), nil
	}
	if license.Suspended {
		return s.result(domain.CodeLicenseSuspended), nil
	}

	if value := strings.TrimSpace(req.CustomerID); value != "" {
		bound, err := s.boundTo(ctx, team.ID, license.ID, value, s.repo.CustomerIDs)
		if err != nil {
			return nil, err
		}
		if !bound {
			return s.result(domain.CodeCustomerNotFound), nil
		}
	}
	if value := strings.TrimSpace(req.ProductID); value != "" {
		bound, err := s.boundTo(ctx, team.ID, license.ID, value, s.repo.ProductIDs)
		if err != nil {
			return nil, err
		}
		if !bound {
			return s.result(domain.CodeProductNotFound), nil
		}
	}

	now := s.clock.Now()
	if license.PendingActivation() {
		if err := s.activate(ctx, team, license, now); err != nil {
			return nil, err
		}
	}
	if license.Expired(now) {
		return s.result(domain.CodeLicenseExpired), nil
	}

	resp := s.result(domain.CodeValid)

	agg, err := s.aggregate(ctx, license)
	if err != nil {
		return nil, err
	}
	policy, err := s.policies.Policy(ctx, team.ID)
	if err != nil {
		return nil, err
	}
	resp.Data = returnedfields.Project(policy, agg)

	if req.Challenge != "" {
		signingKey, err := s.signingKey(team)
		if err != nil {
			return nil, err
		}
		resp.Result.ChallengeResponse = licensecrypto.Sign(signingKey, req.Challenge)
	}

	return resp, nil
}

func (s *Service) result(code domain.VerificationCode) *domain.VerifyResponse {
	return &domain.VerifyResponse{
		Result: domain.VerifyResult{
			Valid:     code == domain.CodeValid,
			Code:      code,
			Timestamp: s.clock.Now(),
		},
	}
}

type linkLoader func(ctx context.Context, db *gorm.DB, teamID snowflake.ID, licenseIDs []snowflake.ID) (map[snowflake.ID][]snowflake.ID, error)

func (s *Service) boundTo(ctx context.Context, teamID, licenseID snowflake.ID, raw string, load linkLoader) (bool, error) {
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return false, nil
	}
	links, err := load(ctx, s.db, teamID, []snowflake.ID{licenseID})
	if err != nil {
		return false, err
	}
	return slices.Contains(links[licenseID], id), nil
}

// activate starts the expiration clock of a license whose duration counts from
// its first verification. The conditional update lets exactly one caller win;
// losers re-read the winner's dates.
func (s *Service) activate(ctx context.Context, team teamcontext.Team, license *domain.License, now time.Time) error {
	licenseID := license.ID.String()

	acquired := true
	if s.locker != nil {
		token, ok, err := s.locker.TryLockActivation(ctx, team.String(), licenseID)
		if err != nil {
			s.log.Warn("activation lock unavailable", zap.String("license_id", licenseID), zap.Error(err))
		} else {
			acquired = ok
			if ok && token != "" {
				defer func() {
					if err := s.locker.ReleaseActivation(context.WithoutCancel(ctx), team.String(), licenseID, token); err != nil {
						s.log.Warn("failed to release activation lock", zap.String("license_id", licenseID), zap.Error(err))
					}
				}()
			}
		}
	}

	if acquired {
		expiration := expiresAt(now, *license.ExpirationDays)
		won, err := s.repo.Activate(ctx, s.db, team.ID, license.ID, now, &expiration)
		if err != nil {
			return err
		}
		if won {
			license.ActivatedAt = &now
			license.ExpirationDate = &expiration
			s.log.Info("license activated",
				zap.String("team_id", team.String()),
				zap.String("license_id", licenseID),
				zap.Time("expires_at", expiration),
			)
			return nil
		}
	}

	current, err := s.repo.FindByID(ctx, s.db, team.ID, license.ID)
	if err != nil {
		return err
	}
	if current != nil && current.ExpirationDate != nil {
		license.ActivatedAt = current.ActivatedAt
		license.ExpirationDate = current.ExpirationDate
		return nil
	}

	// Another instance holds the lock and has not committed yet.
	expiration := expiresAt(now, *license.ExpirationDays)
	license.ExpirationDate = &expiration
	return nil
}

func (s *Service) aggregate(ctx context.Context, license *domain.License) (*domain.Aggregate, error) {
	teamID := license.TeamID
	ids := []snowflake.ID{license.ID}

	agg := &domain.Aggregate{License: *license}

	entries, err := s.metadataRepo.ListByOwners(ctx, s.db, teamID, metadatadomain.OwnerLicense, ids)
	if err != nil {
		return nil, err
	}
	agg.Metadata = entries[license.ID]

	customerLinks, err := s.repo.CustomerIDs(ctx, s.db, teamID, ids)
	if err != nil {
		return nil, err
	}
	if customerIDs := customerLinks[license.ID]; len(customerIDs) > 0 {
		customers, err := s.customerRepo.FindByIDs(ctx, s.db, teamID, customerIDs)
		if err != nil {
			return nil, err
		}
		customerMeta, err := s.metadataRepo.ListByOwners(ctx, s.db, teamID, metadatadomain.OwnerCustomer, customerIDs)
		if err != nil {
			return nil, err
		}
		for _, customer := range customers {
			customer.Metadata = customerMeta[customer.ID]
			agg.Customers = append(agg.Customers, *customer)
		}
	}

	productLinks, err := s.repo.ProductIDs(ctx, s.db, teamID, ids)
	if err != nil {
		return nil, err
	}
	if productIDs := productLinks[license.ID]; len(productIDs) > 0 {
		products, err := s.productRepo.FindByIDs(ctx, s.db, teamID, productIDs)
		if err != nil {
			return nil, err
		}
		productMeta, err := s.metadataRepo.ListByOwners(ctx, s.db, teamID, metadatadomain.OwnerProduct, productIDs)
		if err != nil {
			return nil, err
		}
		latest, err := s.productRepo.LatestReleases(ctx, s.db, teamID, productIDs)
		if err != nil {
			return nil, err
		}
		for _, product := range products {
			product.Metadata = productMeta[product.ID]
			agg.Products = append(agg.Products, domain.AggregateProduct{
				Product:       *product,
				LatestRelease: latest[product.ID],
			})
		}
	}

	return agg, nil
}

func encodeSecret(key []byte) string {
	return hex.EncodeToString(key)
}
