package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type RemoveAccountMessage struct {
	Actor *SessionIdentity `json:"-"`
	// Email selects the account to remove, defaulting to the caller.
	Email string `json:"email"`
	// Sessions is terminated when callers remove their own account.
	Sessions SessionBoundary `json:"-"`
}

func (e RemoveAccountMessage) Type() string { return "account.remove" }

// RemoveAccountHandler deletes an account together with its salt and
// verification request. Members may only remove themselves; Admins may
// remove anyone.
type RemoveAccountHandler struct {
	repo     RepositoryManager
	roles    *RoleDirectory
	activity ActivitySink
	logger   Logger
}

// NewRemoveAccountHandler creates a handler with sane defaults.
func NewRemoveAccountHandler(repo RepositoryManager, roles *RoleDirectory) *RemoveAccountHandler {
	return &RemoveAccountHandler{
		repo:     repo,
		roles:    roles,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the activity sink.
func (h *RemoveAccountHandler) WithActivitySink(sink ActivitySink) *RemoveAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RemoveAccountHandler) WithLogger(logger Logger) *RemoveAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RemoveAccountHandler) Execute(ctx context.Context, event RemoveAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account removal",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RemoveAccountHandler) execute(ctx context.Context, event RemoveAccountMessage) error {
	if err := requireSession(event.Actor); err != nil {
		return err
	}

	self := event.Email == "" || NormalizeEmail(event.Email) == NormalizeEmail(event.Actor.Email)
	if !self {
		if err := requireAdmin(ctx, h.roles, event.Actor); err != nil {
			return err
		}
	}

	email := event.Email
	if self {
		email = event.Actor.Email
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var account *Account
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if self {
			account, err = h.repo.Accounts().GetByUUIDTx(ctx, tx, event.Actor.ID)
		} else {
			account, err = h.repo.Accounts().GetByEmailTx(ctx, tx, email)
		}
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrAccountNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
		}

		if err := h.repo.Accounts().RemoveTx(ctx, tx, account.ID); err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrAccountNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove account")
		}
		return nil
	})
	if err != nil {
		return asRichError(err, "account removal failed")
	}

	if self && event.Sessions != nil {
		if err := event.Sessions.Terminate(ctx); err != nil {
			h.logger.Warn("failed to terminate session after account removal", "error", err)
		}
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventAccountRemoved,
		Actor:     actorFromIdentity(*event.Actor),
		AccountID: account.ID.String(),
		Metadata: map[string]any{
			"self": self,
		},
	})

	return nil
}
