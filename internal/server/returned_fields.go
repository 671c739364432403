package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/licensehub/internal/audit/domain"
	"github.com/smallbiznis/licensehub/internal/observability/logger"
	returnedfieldsdomain "github.com/smallbiznis/licensehub/internal/returnedfields/domain"
	"go.uber.org/zap"
)

// GetReturnedFields returns the team policy, or null when none is stored.
func (s *Server) GetReturnedFields(c *gin.Context) {
	policy, err := s.returnedFieldsSvc.Get(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": policy})
}

func (s *Server) UpsertReturnedFields(c *gin.Context) {
	var req returnedfieldsdomain.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	policy, err := s.returnedFieldsSvc.Upsert(ctx, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil && policy != nil {
		targetID := policy.TeamID.String()
		if err := s.auditSvc.AuditLog(ctx, &policy.TeamID, "", nil, auditdomain.ActionReturnedFieldsUpdate, "returned_fields", &targetID, map[string]any{
			"license_metadata_keys":  len(policy.LicenseMetadataKeys),
			"customer_metadata_keys": len(policy.CustomerMetadataKeys),
			"product_metadata_keys":  len(policy.ProductMetadataKeys),
		}); err != nil {
			logger.FromContext(ctx).Warn("failed to audit returned fields update", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": policy})
}
