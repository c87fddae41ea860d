package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	escrowdomain "github.com/paygrid/disburse/internal/escrow/domain"
)

type createDepositRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

func (s *Server) CreateDeposit(c *gin.Context) {
	var req createDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.escrowSvc.CreateDeposit(c.Request.Context(), escrowdomain.CreateDepositRequest{
		AmountCents: req.AmountCents,
		Currency:    strings.TrimSpace(req.Currency),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListDeposits(c *gin.Context) {
	resp, err := s.escrowSvc.ListDeposits(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ConfirmDeposit stands in for the bank transfer confirmation webhook:
// the deposit's authorized portion becomes spendable.
func (s *Server) ConfirmDeposit(c *gin.Context) {
	s.transitionDeposit(c, s.escrowSvc.ConfirmDeposit)
}

func (s *Server) RejectDeposit(c *gin.Context) {
	s.transitionDeposit(c, s.escrowSvc.RejectDeposit)
}

func (s *Server) transitionDeposit(c *gin.Context, transition func(ctx context.Context, id snowflake.ID) (*escrowdomain.EscrowDeposit, error)) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := transition(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AvailableBalance(c *gin.Context) {
	balance, err := s.escrowSvc.AvailableBalance(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"available_cents": balance}})
}

func isDepositValidationError(err error) bool {
	switch {
	case errors.Is(err, escrowdomain.ErrInvalidAmount),
		errors.Is(err, escrowdomain.ErrInvalidCurrency):
		return true
	default:
		return false
	}
}
