package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	adjustmentdomain "github.com/paygrid/disburse/internal/adjustment/domain"
)

type createAdjustmentRequest struct {
	EmployeeID  string `json:"employee_id"`
	ScheduleID  string `json:"schedule_id"`
	Name        string `json:"name"`
	ValueType   string `json:"value_type"`
	Amount      int64  `json:"amount"`
	Direction   string `json:"direction"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
}

type updateAdjustmentRequest struct {
	Name     *string `json:"name"`
	Amount   *int64  `json:"amount"`
	IsActive *bool   `json:"is_active"`
}

type temporarilyChangeRequest struct {
	Amount      int64  `json:"amount"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
}

func (s *Server) CreateAdjustment(c *gin.Context) {
	var req createAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	employeeID, err := parseOptionalSnowflakeID(req.EmployeeID)
	if err != nil {
		AbortWithError(c, adjustmentdomain.ErrInvalidScope)
		return
	}
	scheduleID, err := parseOptionalSnowflakeID(req.ScheduleID)
	if err != nil {
		AbortWithError(c, adjustmentdomain.ErrInvalidScope)
		return
	}
	periodStart, err := parseOptionalTime(req.PeriodStart, false)
	if err != nil {
		AbortWithError(c, adjustmentdomain.ErrInvalidPeriod)
		return
	}
	periodEnd, err := parseOptionalTime(req.PeriodEnd, true)
	if err != nil {
		AbortWithError(c, adjustmentdomain.ErrInvalidPeriod)
		return
	}

	resp, err := s.adjustmentSvc.Create(c.Request.Context(), adjustmentdomain.CreateAdjustmentRequest{
		EmployeeID:  employeeID,
		ScheduleID:  scheduleID,
		Name:        strings.TrimSpace(req.Name),
		ValueType:   adjustmentdomain.ValueType(strings.TrimSpace(req.ValueType)),
		Amount:      req.Amount,
		Direction:   adjustmentdomain.Direction(strings.TrimSpace(req.Direction)),
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListAdjustments(c *gin.Context) {
	resp, err := s.adjustmentSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetAdjustmentByID(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.adjustmentSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateAdjustment(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updateAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.adjustmentSvc.Update(c.Request.Context(), id, adjustmentdomain.UpdateAdjustmentRequest{
		Name:     req.Name,
		Amount:   req.Amount,
		IsActive: req.IsActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteAdjustment(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.adjustmentSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}

// TemporarilyChangeAdjustment creates a once-off override for one pay
// period; the recurring adjustment itself is untouched.
func (s *Server) TemporarilyChangeAdjustment(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req temporarilyChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	periodStart, err := time.Parse(time.RFC3339, strings.TrimSpace(req.PeriodStart))
	if err != nil {
		AbortWithError(c, adjustmentdomain.ErrInvalidPeriod)
		return
	}
	periodEnd, err := time.Parse(time.RFC3339, strings.TrimSpace(req.PeriodEnd))
	if err != nil {
		AbortWithError(c, adjustmentdomain.ErrInvalidPeriod)
		return
	}

	resp, err := s.adjustmentSvc.TemporarilyChange(c.Request.Context(), id, adjustmentdomain.TemporarilyChangeRequest{
		Amount:      req.Amount,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isAdjustmentValidationError(err error) bool {
	switch {
	case errors.Is(err, adjustmentdomain.ErrInvalidAdjustmentName),
		errors.Is(err, adjustmentdomain.ErrInvalidValueType),
		errors.Is(err, adjustmentdomain.ErrInvalidDirection),
		errors.Is(err, adjustmentdomain.ErrInvalidAmount),
		errors.Is(err, adjustmentdomain.ErrInvalidPercentage),
		errors.Is(err, adjustmentdomain.ErrInvalidPeriod),
		errors.Is(err, adjustmentdomain.ErrInvalidScope),
		errors.Is(err, adjustmentdomain.ErrNotRecurring):
		return true
	default:
		return false
	}
}
