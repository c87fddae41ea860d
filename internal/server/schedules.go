package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	"github.com/paygrid/disburse/internal/recurrence"
	scheduledomain "github.com/paygrid/disburse/internal/schedule/domain"
)

type createScheduleRequest struct {
	Kind        string   `json:"kind"`
	Name        string   `json:"name"`
	AmountCents *int64   `json:"amount_cents"`
	Currency    string   `json:"currency"`
	RunAt       string   `json:"run_at"`
	Frequency   string   `json:"frequency"`
	Recipients  []string `json:"recipients"`
}

type updateScheduleRequest struct {
	Name        *string  `json:"name"`
	AmountCents *int64   `json:"amount_cents"`
	RunAt       *string  `json:"run_at"`
	Frequency   *string  `json:"frequency"`
	Recipients  []string `json:"recipients"`
}

func (s *Server) CreateSchedule(c *gin.Context) {
	var req createScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	runAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.RunAt))
	if err != nil {
		AbortWithError(c, recurrence.ErrInvalidDescriptor)
		return
	}

	recipients, err := parseIDList(req.Recipients)
	if err != nil {
		AbortWithError(c, scheduledomain.ErrInvalidRecipient)
		return
	}

	resp, err := s.scheduleSvc.Create(c.Request.Context(), scheduledomain.CreateScheduleRequest{
		Kind:        scheduledomain.ScheduleKind(strings.TrimSpace(req.Kind)),
		Name:        strings.TrimSpace(req.Name),
		AmountCents: req.AmountCents,
		Currency:    strings.TrimSpace(req.Currency),
		RunAt:       runAt,
		Frequency:   recurrence.Frequency(strings.TrimSpace(req.Frequency)),
		Recipients:  recipients,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListSchedules(c *gin.Context) {
	resp, err := s.scheduleSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetScheduleByID(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.scheduleSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payload := gin.H{"data": resp}
	// Editable cadence form for schedule edit screens; omitted when the
	// stored descriptor cannot be split cleanly.
	if descriptor, err := resp.Schedule.Descriptor(); err == nil {
		if decomposed, ok := recurrence.Decompose(descriptor); ok {
			payload["cadence"] = gin.H{
				"date":      decomposed.Date,
				"time":      decomposed.Time,
				"frequency": string(decomposed.Frequency),
			}
		}
	}

	c.JSON(http.StatusOK, payload)
}

func (s *Server) UpdateSchedule(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var runAt *time.Time
	if req.RunAt != nil {
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.RunAt))
		if err != nil {
			AbortWithError(c, recurrence.ErrInvalidDescriptor)
			return
		}
		runAt = &parsed
	}

	var frequency *recurrence.Frequency
	if req.Frequency != nil {
		parsed := recurrence.Frequency(strings.TrimSpace(*req.Frequency))
		frequency = &parsed
	}

	var recipients []snowflake.ID
	if req.Recipients != nil {
		recipients, err = parseIDList(req.Recipients)
		if err != nil {
			AbortWithError(c, scheduledomain.ErrInvalidRecipient)
			return
		}
	}

	resp, err := s.scheduleSvc.Update(c.Request.Context(), id, scheduledomain.UpdateScheduleRequest{
		Name:        req.Name,
		AmountCents: req.AmountCents,
		RunAt:       runAt,
		Frequency:   frequency,
		Recipients:  recipients,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) PauseSchedule(c *gin.Context) {
	s.transitionSchedule(c, s.scheduleSvc.Pause)
}

func (s *Server) ResumeSchedule(c *gin.Context) {
	s.transitionSchedule(c, s.scheduleSvc.Resume)
}

func (s *Server) CancelSchedule(c *gin.Context) {
	s.transitionSchedule(c, s.scheduleSvc.Cancel)
}

func (s *Server) transitionSchedule(c *gin.Context, transition func(ctx context.Context, id snowflake.ID) (*scheduledomain.Schedule, error)) {
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

func (s *Server) PreviewPayPeriod(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	period, err := s.scheduleSvc.PreviewPayPeriod(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"period_start": period.Start,
		"period_end":   period.End,
	}})
}

func parseIDList(values []string) ([]snowflake.ID, error) {
	ids := make([]snowflake.ID, 0, len(values))
	for _, value := range values {
		id, err := snowflake.ParseString(strings.TrimSpace(value))
		if err != nil || id == 0 {
			return nil, errors.New("invalid_id")
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func isScheduleValidationError(err error) bool {
	switch {
	case errors.Is(err, scheduledomain.ErrInvalidName),
		errors.Is(err, scheduledomain.ErrInvalidKind),
		errors.Is(err, scheduledomain.ErrInvalidAmount),
		errors.Is(err, scheduledomain.ErrInvalidRecipient),
		errors.Is(err, scheduledomain.ErrNoRecipients),
		errors.Is(err, recurrence.ErrInvalidDescriptor):
		return true
	default:
		return false
	}
}
