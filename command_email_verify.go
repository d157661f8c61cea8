package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type VerifyEmailMessage struct {
	Token string `json:"token"`
}

func (e VerifyEmailMessage) Type() string { return "verification.email" }

// VerifyEmailHandler confirms an email address from a signed link. Visiting
// a link again succeeds, even after it expired, once the address is verified.
type VerifyEmailHandler struct {
	repo     RepositoryManager
	tokens   *EmailTokens
	activity ActivitySink
	logger   Logger
}

// NewVerifyEmailHandler creates a handler with sane defaults.
func NewVerifyEmailHandler(repo RepositoryManager, tokens *EmailTokens) *VerifyEmailHandler {
	return &VerifyEmailHandler{
		repo:     repo,
		tokens:   tokens,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit verification events.
func (h *VerifyEmailHandler) WithActivitySink(sink ActivitySink) *VerifyEmailHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *VerifyEmailHandler) WithLogger(logger Logger) *VerifyEmailHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) error {
	if event.Token == "" {
		return ErrMissingBody
	}

	accountID, expired, err := h.tokens.Parse(event.Token)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	changed := false
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := h.repo.Accounts().GetByUUIDTx(ctx, tx, accountID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrAccountNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
		}

		if account.EmailVerified {
			return nil
		}

		if expired {
			return ErrInvalidEmailLink
		}

		if err := h.repo.Accounts().MarkEmailVerifiedTx(ctx, tx, account.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark email verified")
		}
		changed = true
		return nil
	})
	if err != nil {
		return asRichError(err, "email verification failed")
	}

	if changed {
		recordActivity(ctx, h.activity, h.logger, ActivityEvent{
			EventType: ActivityEventEmailVerified,
			Actor:     ActorRef{ID: accountID.String(), Type: "account"},
			AccountID: accountID.String(),
		})
	}

	return nil
}
