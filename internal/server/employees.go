package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	auditdomain "github.com/paygrid/disburse/internal/audit/domain"
	employeedomain "github.com/paygrid/disburse/internal/employee/domain"
)

type createEmployeeRequest struct {
	FirstName        string  `json:"first_name"`
	LastName         string  `json:"last_name"`
	Email            string  `json:"email"`
	GrossSalaryCents int64   `json:"gross_salary_cents"`
	EmploymentType   string  `json:"employment_type"`
	WeeklyHours      float64 `json:"weekly_hours"`
	BankAccount      string  `json:"bank_account"`
	BankCode         string  `json:"bank_code"`
}

func (s *Server) CreateEmployee(c *gin.Context) {
	var req createEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.employeeSvc.Create(c.Request.Context(), employeedomain.CreateEmployeeRequest{
		FirstName:        strings.TrimSpace(req.FirstName),
		LastName:         strings.TrimSpace(req.LastName),
		Email:            strings.TrimSpace(req.Email),
		GrossSalaryCents: req.GrossSalaryCents,
		EmploymentType:   employeedomain.EmploymentType(strings.TrimSpace(req.EmploymentType)),
		WeeklyHours:      req.WeeklyHours,
		BankAccount:      strings.TrimSpace(req.BankAccount),
		BankCode:         strings.TrimSpace(req.BankCode),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	targetID := resp.ID.String()
	_ = s.auditSvc.Record(c.Request.Context(), auditdomain.Entry{
		Action:     "employee.created",
		TargetType: "employee",
		TargetID:   &targetID,
		After: map[string]any{
			"name":               resp.FullName(),
			"gross_salary_cents": resp.GrossSalaryCents,
			"employment_type":    string(resp.EmploymentType),
		},
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListEmployees(c *gin.Context) {
	resp, err := s.employeeSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetEmployeeByID(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.employeeSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateEmployee(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req employeedomain.UpdateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	before, err := s.employeeSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.employeeSvc.Update(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	targetID := resp.ID.String()
	_ = s.auditSvc.Record(c.Request.Context(), auditdomain.Entry{
		Action:     "employee.updated",
		TargetType: "employee",
		TargetID:   &targetID,
		Before: map[string]any{
			"gross_salary_cents": before.GrossSalaryCents,
			"weekly_hours":       before.WeeklyHours,
		},
		After: map[string]any{
			"gross_salary_cents": resp.GrossSalaryCents,
			"weekly_hours":       resp.WeeklyHours,
		},
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) TerminateEmployee(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.employeeSvc.Terminate(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	targetID := id.String()
	_ = s.auditSvc.Record(c.Request.Context(), auditdomain.Entry{
		Action:     "employee.terminated",
		TargetType: "employee",
		TargetID:   &targetID,
	})

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"terminated": true}})
}

func isEmployeeValidationError(err error) bool {
	switch {
	case errors.Is(err, employeedomain.ErrInvalidName),
		errors.Is(err, employeedomain.ErrInvalidEmail),
		errors.Is(err, employeedomain.ErrInvalidGrossSalary),
		errors.Is(err, employeedomain.ErrInvalidBankDetails):
		return true
	default:
		return false
	}
}
