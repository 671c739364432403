package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	licensedomain "github.com/smallbiznis/licensehub/internal/license/domain"
)

func (s *Server) CreateLicense(c *gin.Context) {
	var req licensedomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.licenseSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListLicenses(c *gin.Context) {
	var query struct {
		PageToken  string `form:"page_token"`
		PageSize   int    `form:"page_size"`
		CustomerID string `form:"customer_id"`
		ProductID  string `form:"product_id"`
		Suspended  string `form:"suspended"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	suspended, err := parseOptionalBool(query.Suspended)
	if err != nil {
		AbortWithError(c, newValidationError("suspended", "invalid_suspended", "invalid suspended"))
		return
	}

	resp, err := s.licenseSvc.List(c.Request.Context(), licensedomain.ListRequest{
		PageToken:  strings.TrimSpace(query.PageToken),
		PageSize:   query.PageSize,
		CustomerID: strings.TrimSpace(query.CustomerID),
		ProductID:  strings.TrimSpace(query.ProductID),
		Suspended:  suspended,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Licenses, "page_info": resp.PageInfo})
}

func (s *Server) GetLicense(c *gin.Context) {
	resp, err := s.licenseSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RevealLicense(c *gin.Context) {
	resp, err := s.licenseSvc.Reveal(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	noStore(c)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SuspendLicense(c *gin.Context) {
	s.setSuspended(c, true)
}

func (s *Server) UnsuspendLicense(c *gin.Context) {
	s.setSuspended(c, false)
}

func (s *Server) setSuspended(c *gin.Context, suspended bool) {
	resp, err := s.licenseSvc.SetSuspended(c.Request.Context(), strings.TrimSpace(c.Param("id")), suspended)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteLicense(c *gin.Context) {
	if err := s.licenseSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
