package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

type ResendVerificationEmailMessage struct {
	Actor *SessionIdentity `json:"-"`
	Email string           `json:"email"`
}

func (e ResendVerificationEmailMessage) Type() string { return "verification.email.resend" }

// ResendVerificationEmailHandler lets an Admin send a fresh verification link.
type ResendVerificationEmailHandler struct {
	repo       RepositoryManager
	roles      *RoleDirectory
	tokens     *EmailTokens
	dispatcher *Dispatcher
	messages   Messages
	activity   ActivitySink
	logger     Logger
}

// NewResendVerificationEmailHandler creates a handler with sane defaults.
func NewResendVerificationEmailHandler(repo RepositoryManager, roles *RoleDirectory, tokens *EmailTokens, dispatcher *Dispatcher) *ResendVerificationEmailHandler {
	return &ResendVerificationEmailHandler{
		repo:       repo,
		roles:      roles,
		tokens:     tokens,
		dispatcher: dispatcher,
		activity:   noopActivitySink{},
		logger:     defLogger{},
	}
}

// WithMessages sets the notification renderer.
func (h *ResendVerificationEmailHandler) WithMessages(m Messages) *ResendVerificationEmailHandler {
	h.messages = m
	return h
}

// WithActivitySink sets the activity sink.
func (h *ResendVerificationEmailHandler) WithActivitySink(sink ActivitySink) *ResendVerificationEmailHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ResendVerificationEmailHandler) WithLogger(logger Logger) *ResendVerificationEmailHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ResendVerificationEmailHandler) Execute(ctx context.Context, event ResendVerificationEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during verification email resend",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResendVerificationEmailHandler) execute(ctx context.Context, event ResendVerificationEmailMessage) error {
	if err := requireAdmin(ctx, h.roles, event.Actor); err != nil {
		return err
	}

	if event.Email == "" {
		return ErrMissingBody
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account, err := h.repo.Accounts().GetByEmail(ctx, event.Email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrAccountNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
	}

	link, err := h.tokens.Link(account.ID)
	if err != nil {
		return err
	}

	if err := h.dispatcher.Send(ctx, h.messages.EmailVerification(account.Email, account.Name, link)); err != nil {
		return ErrNotificationFailed
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventVerificationEmail,
		Actor:     actorFromIdentity(*event.Actor),
		AccountID: account.ID.String(),
	})

	return nil
}
