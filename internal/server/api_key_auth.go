package server

import (
	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/licensehub/internal/apikey/domain"
	auditdomain "github.com/smallbiznis/licensehub/internal/audit/domain"
	"github.com/smallbiznis/licensehub/internal/auditcontext"
	"github.com/smallbiznis/licensehub/internal/teamcontext"
)

const contextAPIKeyKey = "api_key"

// APIKeyRequired authenticates requests using an API key only.
// Team identity is derived solely from the key record.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		key, err := s.apiKeySvc.Authenticate(c.Request.Context(), raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextAPIKeyKey, key)

		ctx := c.Request.Context()
		ctx = teamcontext.WithTeamID(ctx, key.TeamID)
		ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeAPIKey), key.KeyID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) requireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, ok := c.Get(contextAPIKeyKey)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		key, ok := value.(*apikeydomain.APIKey)
		if !ok || !key.HasScope(scope) {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}
