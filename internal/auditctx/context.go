package auditctx

import "context"

type actorKey struct{}
type requestIDKey struct{}
type scheduleRunKey struct{}

type actor struct {
	Type string
	ID   string
}

// WithActor records who is performing the mutation for downstream audit
// writes.
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor{Type: actorType, ID: actorID})
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	if a, ok := ctx.Value(actorKey{}).(actor); ok {
		return a.Type, a.ID
	}
	return "", ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithScheduleRunID tags every audit entry emitted while processing a
// single schedule occurrence.
func WithScheduleRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, scheduleRunKey{}, runID)
}

func ScheduleRunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(scheduleRunKey{}).(string); ok {
		return id
	}
	return ""
}
