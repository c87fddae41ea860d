package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	auditdomain "github.com/paygrid/disburse/internal/audit/domain"
	taxdomain "github.com/paygrid/disburse/internal/tax/domain"
)

func (s *Server) ListTaxTables(c *gin.Context) {
	resp, err := s.taxSvc.ListTables(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateTaxTable(c *gin.Context) {
	var req taxdomain.CreateTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.taxSvc.CreateTable(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	targetID := resp.ID.String()
	_ = s.auditSvc.Record(c.Request.Context(), auditdomain.Entry{
		Action:     "tax_table.created",
		TargetType: "tax_table",
		TargetID:   &targetID,
		Metadata: map[string]any{
			"version":   resp.Version,
			"is_active": resp.IsActive,
		},
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ActivateTaxTable(c *gin.Context) {
	version := strings.TrimSpace(c.Param("version"))
	if version == "" {
		AbortWithError(c, taxdomain.ErrInvalidVersion)
		return
	}

	resp, err := s.taxSvc.ActivateTable(c.Request.Context(), version)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	targetID := resp.ID.String()
	_ = s.auditSvc.Record(c.Request.Context(), auditdomain.Entry{
		Action:     "tax_table.activated",
		TargetType: "tax_table",
		TargetID:   &targetID,
		Metadata:   map[string]any{"version": resp.Version},
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isTaxValidationError(err error) bool {
	switch {
	case errors.Is(err, taxdomain.ErrInvalidVersion),
		errors.Is(err, taxdomain.ErrInvalidBrackets),
		errors.Is(err, taxdomain.ErrInvalidRate),
		errors.Is(err, taxdomain.ErrInvalidGrossSalary):
		return true
	default:
		return false
	}
}
