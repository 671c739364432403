package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/licensehub/internal/apikey/domain"
)

type apiKeyScope struct {
	Scope       string `json:"scope"`
	Description string `json:"description"`
}

func (s *Server) ListAPIKeys(c *gin.Context) {
	keys, err := s.apiKeySvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": keys})
}

// CreateAPIKey answers with the raw key exactly once. It is not retrievable
// afterwards.
func (s *Server) CreateAPIKey(c *gin.Context) {
	var body apikeydomain.CreateRequest
	if c.ShouldBindJSON(&body) != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	created, err := s.apiKeySvc.Create(c.Request.Context(), body)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	noStore(c)
	c.JSON(http.StatusCreated, gin.H{"data": created})
}

func (s *Server) ListAPIKeyScopes(c *gin.Context) {
	scopes := make([]apiKeyScope, 0, len(apikeydomain.AllScopes))
	for _, scope := range apikeydomain.AllScopes {
		scopes = append(scopes, apiKeyScope{Scope: scope, Description: apikeydomain.ScopeDescriptions[scope]})
	}
	c.JSON(http.StatusOK, gin.H{"data": scopes})
}

func (s *Server) RevokeAPIKey(c *gin.Context) {
	if err := s.apiKeySvc.Revoke(c.Request.Context(), strings.TrimSpace(c.Param("key_id"))); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
