// Package notify carries the fire-and-forget failure events consumed
// by an external mailbox or messaging system. Delivery failures are
// logged, never propagated back into the dispatch path.
package notify

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type EventType string

const (
	EventScheduleFailed    EventType = "schedule_failed"
	EventInsufficientFunds EventType = "insufficient_funds"
	EventRailFailure       EventType = "rail_failure"
)

type Event struct {
	Type       EventType
	BusinessID snowflake.ID
	ScheduleID snowflake.ID
	JobID      snowflake.ID
	Message    string
	OccurredAt time.Time
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

type NoOpNotifier struct{}

func (n *NoOpNotifier) Notify(ctx context.Context, event Event) error {
	return nil
}
