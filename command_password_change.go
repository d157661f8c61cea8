package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type ChangePasswordMessage struct {
	Actor            *SessionIdentity `json:"-"`
	PreviousPassword string           `json:"previousPassword"`
	NewPassword      string           `json:"newPassword"`
}

func (e ChangePasswordMessage) Type() string { return "auth.password.change" }

// ChangePasswordHandler rotates the caller's credentials after checking the
// current password.
type ChangePasswordHandler struct {
	repo        RepositoryManager
	credentials *Credentials
	activity    ActivitySink
	logger      Logger
}

// NewChangePasswordHandler creates a handler with sane defaults.
func NewChangePasswordHandler(repo RepositoryManager, credentials *Credentials) *ChangePasswordHandler {
	return &ChangePasswordHandler{
		repo:        repo,
		credentials: credentials,
		activity:    noopActivitySink{},
		logger:      defLogger{},
	}
}

// WithActivitySink sets the activity sink.
func (h *ChangePasswordHandler) WithActivitySink(sink ActivitySink) *ChangePasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ChangePasswordHandler) WithLogger(logger Logger) *ChangePasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password change",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	if err := requireSession(event.Actor); err != nil {
		return err
	}

	if event.PreviousPassword == "" || event.NewPassword == "" {
		return ErrMissingBody
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := h.repo.Accounts().GetByUUIDTx(ctx, tx, event.Actor.ID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrAccountNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
		}

		ok, err := h.credentials.VerifyTx(ctx, tx, account, event.PreviousPassword)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidCredentials
		}

		return h.credentials.RotateTx(ctx, tx, account, event.NewPassword)
	})
	if err != nil {
		return asRichError(err, "password change failed")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		Actor:     actorFromIdentity(*event.Actor),
		AccountID: event.Actor.ID.String(),
	})

	return nil
}
