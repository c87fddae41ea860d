package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/paygrid/disburse/internal/recurrence"
)

type CreateScheduleRequest struct {
	Kind        ScheduleKind         `json:"kind"`
	Name        string               `json:"name"`
	AmountCents *int64               `json:"amount_cents"`
	Currency    string               `json:"currency"`
	RunAt       time.Time            `json:"run_at"`
	Frequency   recurrence.Frequency `json:"frequency"`
	Recipients  []snowflake.ID       `json:"recipients"`
}

type UpdateScheduleRequest struct {
	Name        *string               `json:"name"`
	AmountCents *int64                `json:"amount_cents"`
	RunAt       *time.Time            `json:"run_at"`
	Frequency   *recurrence.Frequency `json:"frequency"`
	Recipients  []snowflake.ID        `json:"recipients"`
}

type ScheduleWithRecipients struct {
	Schedule   Schedule       `json:"schedule"`
	Recipients []snowflake.ID `json:"recipients"`
}

type Service interface {
	Create(ctx context.Context, req CreateScheduleRequest) (*ScheduleWithRecipients, error)
	GetByID(ctx context.Context, id snowflake.ID) (*ScheduleWithRecipients, error)
	List(ctx context.Context) ([]*Schedule, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateScheduleRequest) (*ScheduleWithRecipients, error)
	Pause(ctx context.Context, id snowflake.ID) (*Schedule, error)
	// Resume recomputes next_run_at from now; occurrences missed while
	// paused are discarded, never backfilled.
	Resume(ctx context.Context, id snowflake.ID) (*Schedule, error)
	Cancel(ctx context.Context, id snowflake.ID) (*Schedule, error)
	// PreviewPayPeriod returns the period the next occurrence will
	// cover, for pre-filling once-off adjustment windows.
	PreviewPayPeriod(ctx context.Context, id snowflake.ID) (recurrence.Period, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, s *Schedule, recipients []snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, businessID, id snowflake.ID) (*Schedule, error)
	ListByBusiness(ctx context.Context, db *gorm.DB, businessID snowflake.ID) ([]*Schedule, error)
	ListRecipients(ctx context.Context, db *gorm.DB, scheduleID snowflake.ID) ([]snowflake.ID, error)
	Update(ctx context.Context, db *gorm.DB, s *Schedule) error
	ReplaceRecipients(ctx context.Context, db *gorm.DB, scheduleID snowflake.ID, recipients []snowflake.ID) error
}
