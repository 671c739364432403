package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	licensedomain "github.com/smallbiznis/licensehub/internal/license/domain"
	"github.com/smallbiznis/licensehub/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/licensehub/internal/observability/metrics"
	"github.com/smallbiznis/licensehub/internal/teamcontext"
	"go.uber.org/zap"
)

const rateLimitReasonTeamRate = "team-rate"

type verifyLicenseRequest struct {
	LicenseKey string `json:"licenseKey"`
	CustomerID string `json:"customerId"`
	ProductID  string `json:"productId"`
	Challenge  string `json:"challenge"`
}

// TeamFromPath resolves the team of a public client route. Unknown teams are
// reported as not found before any license lookup happens.
func (s *Server) TeamFromPath() gin.HandlerFunc {
	return func(c *gin.Context) {
		team, err := s.teamSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("teamId")))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := teamcontext.WithTeamID(c.Request.Context(), team.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// VerifyRateLimit applies the per-team verification token bucket. Redis
// failures are logged and the request proceeds.
func (s *Server) VerifyRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.verifyLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		team, ok := teamcontext.FromContext(ctx)
		if !ok {
			AbortWithError(c, ErrNotFound)
			return
		}
		endpoint := normalizeRateLimitEndpoint(c)

		result, err := s.verifyLimiter.AllowTeam(ctx, team.String())
		if err != nil {
			logger.FromContext(ctx).Warn("verification rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !result.Allowed {
			denyVerifyRateLimit(c, endpoint, team.String(), result.RetryAfter, s.obsMetrics)
			return
		}

		recordRateLimitAllowed(ctx, endpoint, team.String(), s.obsMetrics)
		c.Next()
	}
}

func (s *Server) VerifyLicense(c *gin.Context) {
	var req verifyLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.LicenseKey) == "" {
		AbortWithError(c, newValidationError("licenseKey", "required", "licenseKey is required"))
		return
	}

	resp, err := s.licenseSvc.Verify(c.Request.Context(), licensedomain.VerifyRequest{
		LicenseKey: req.LicenseKey,
		CustomerID: strings.TrimSpace(req.CustomerID),
		ProductID:  strings.TrimSpace(req.ProductID),
		Challenge:  req.Challenge,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("verification_code", string(resp.Result.Code))
	c.JSON(http.StatusOK, resp)
}

func denyVerifyRateLimit(c *gin.Context, endpoint, teamID string, retryAfter time.Duration, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("verification rate limit exceeded",
		zap.String("reason", rateLimitReasonTeamRate),
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(ctx, endpoint, teamID, rateLimitReasonTeamRate, metrics)

	seconds := int(retryAfter.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
	AbortWithError(c, ErrRateLimited)
}

func recordRateLimitAllowed(ctx context.Context, endpoint, teamID string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitAllowed(ctx, teamID, endpoint)
}

func recordRateLimitDenied(ctx context.Context, endpoint, teamID, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, teamID, endpoint, reason)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
