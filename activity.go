package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignInSuccess        ActivityEventType = "auth.signin.success"
	ActivityEventSignInFailure        ActivityEventType = "auth.signin.failure"
	ActivityEventSignOut              ActivityEventType = "auth.signout"
	ActivityEventSignup               ActivityEventType = "account.signup"
	ActivityEventAccountProvisioned   ActivityEventType = "account.provisioned"
	ActivityEventAccountRemoved       ActivityEventType = "account.removed"
	ActivityEventPasswordChanged      ActivityEventType = "auth.password.changed"
	ActivityEventPasswordAdminSet     ActivityEventType = "auth.password.admin_set"
	ActivityEventPasswordRecovered    ActivityEventType = "auth.password.recovered"
	ActivityEventEmailVerified        ActivityEventType = "verification.email.verified"
	ActivityEventVerificationEmail    ActivityEventType = "verification.email.sent"
	ActivityEventDocumentUploaded     ActivityEventType = "verification.document.uploaded"
	ActivityEventVerificationApproved ActivityEventType = "verification.approved"
	ActivityEventVerificationDenied   ActivityEventType = "verification.denied"
)

// ActorRef identifies who performed an action.
type ActorRef struct {
	ID   string
	Type string
}

var anonymousActor = ActorRef{Type: "anonymous"}

func actorFromIdentity(identity SessionIdentity) ActorRef {
	return ActorRef{ID: identity.ID.String(), Type: "account"}
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	AccountID  string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// recordActivity emits event, logging sink failures.
func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		normalizeLogger(logger).Warn("activity sink error", "event", string(event.EventType), "error", err)
	}
}

// LogActivitySink writes every event to logger at info level.
func LogActivitySink(logger Logger) ActivitySink {
	logger = normalizeLogger(logger)
	return ActivitySinkFunc(func(_ context.Context, event ActivityEvent) error {
		args := []any{
			"event", string(event.EventType),
			"actor_type", event.Actor.Type,
			"actor_id", event.Actor.ID,
			"account_id", event.AccountID,
		}
		for k, v := range event.Metadata {
			args = append(args, k, v)
		}
		logger.Info("activity", args...)
		return nil
	})
}
