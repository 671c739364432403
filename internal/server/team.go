package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetTeam(c *gin.Context) {
	team, err := s.teamSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("teamId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": team})
}

// GetSigningSecret exposes the key clients use to check challenge responses.
func (s *Server) GetSigningSecret(c *gin.Context) {
	secret, err := s.licenseSvc.SigningSecret(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	noStore(c)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"signingSecret": secret, "algorithm": "HMAC-SHA256"}})
}
