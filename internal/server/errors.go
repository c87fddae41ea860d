package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	adjustmentdomain "github.com/paygrid/disburse/internal/adjustment/domain"
	auditdomain "github.com/paygrid/disburse/internal/audit/domain"
	"github.com/paygrid/disburse/internal/authorization"
	businessdomain "github.com/paygrid/disburse/internal/business/domain"
	employeedomain "github.com/paygrid/disburse/internal/employee/domain"
	escrowdomain "github.com/paygrid/disburse/internal/escrow/domain"
	jobdomain "github.com/paygrid/disburse/internal/job/domain"
	scheduledomain "github.com/paygrid/disburse/internal/schedule/domain"
	taxdomain "github.com/paygrid/disburse/internal/tax/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrNotFound       = errors.New("not_found")
)

// ErrorHandlingMiddleware maps domain sentinel errors pushed through
// AbortWithError onto HTTP responses. Handlers never write error
// bodies themselves.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    err.Error(),
			Message: "validation error",
		}
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    err.Error(),
			Message: "conflict",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func invalidRequestError() error {
	return ErrInvalidRequest
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isScheduleValidationError(err),
		isAdjustmentValidationError(err),
		isDepositValidationError(err),
		isEmployeeValidationError(err),
		isBusinessValidationError(err),
		isTaxValidationError(err),
		isAuditValidationError(err):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, scheduledomain.ErrScheduleNotFound),
		errors.Is(err, adjustmentdomain.ErrAdjustmentNotFound),
		errors.Is(err, escrowdomain.ErrDepositNotFound),
		errors.Is(err, employeedomain.ErrEmployeeNotFound),
		errors.Is(err, businessdomain.ErrBusinessNotFound),
		errors.Is(err, jobdomain.ErrJobNotFound),
		errors.Is(err, taxdomain.ErrTableNotFound),
		errors.Is(err, taxdomain.ErrNoActiveTable),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// Conflicts are well-formed requests the current state refuses: wrong
// status for the transition, duplicate rows, not enough escrow.
func isConflictError(err error) bool {
	switch {
	case errors.Is(err, businessdomain.ErrBusinessInactive),
		errors.Is(err, businessdomain.ErrSlugAlreadyExists),
		errors.Is(err, scheduledomain.ErrInvalidTransition),
		errors.Is(err, scheduledomain.ErrScheduleExhausted),
		errors.Is(err, adjustmentdomain.ErrDuplicateAdjustment),
		errors.Is(err, employeedomain.ErrEmployeeTerminated),
		errors.Is(err, escrowdomain.ErrDepositNotPending),
		errors.Is(err, escrowdomain.ErrInsufficientFunds),
		errors.Is(err, jobdomain.ErrDuplicateExecution),
		errors.Is(err, taxdomain.ErrVersionAlreadyExists):
		return true
	default:
		return false
	}
}

func isAuditValidationError(err error) bool {
	switch {
	case errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, auditdomain.ErrInvalidAction):
		return true
	default:
		return false
	}
}
