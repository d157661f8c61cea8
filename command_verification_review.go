package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ApproveVerificationMessage struct {
	Actor          *SessionIdentity `json:"-"`
	VerificationID uuid.UUID        `json:"verificationId"`
}

func (e ApproveVerificationMessage) Type() string { return "verification.approve" }

type DenyVerificationMessage struct {
	Actor          *SessionIdentity `json:"-"`
	VerificationID uuid.UUID        `json:"verificationId"`
	Reason         string           `json:"denialMessage"`
}

func (e DenyVerificationMessage) Type() string { return "verification.deny" }

// ReviewVerificationHandler lets an Admin approve or deny a pending
// verification request. The request is consumed in the same transaction
// that applies the decision, so of two concurrent reviews only one wins and
// the other sees ErrVerificationNotFound. Result notifications are sent in
// the background.
type ReviewVerificationHandler struct {
	repo       RepositoryManager
	roles      *RoleDirectory
	dispatcher *Dispatcher
	messages   Messages
	activity   ActivitySink
	logger     Logger
}

// NewReviewVerificationHandler creates a handler with sane defaults.
func NewReviewVerificationHandler(repo RepositoryManager, roles *RoleDirectory, dispatcher *Dispatcher) *ReviewVerificationHandler {
	return &ReviewVerificationHandler{
		repo:       repo,
		roles:      roles,
		dispatcher: dispatcher,
		activity:   noopActivitySink{},
		logger:     defLogger{},
	}
}

// WithMessages sets the notification renderer.
func (h *ReviewVerificationHandler) WithMessages(m Messages) *ReviewVerificationHandler {
	h.messages = m
	return h
}

// WithActivitySink sets the activity sink.
func (h *ReviewVerificationHandler) WithActivitySink(sink ActivitySink) *ReviewVerificationHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ReviewVerificationHandler) WithLogger(logger Logger) *ReviewVerificationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// Approve marks the requesting account verified.
func (h *ReviewVerificationHandler) Approve(ctx context.Context, event ApproveVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during verification approval",
		)
	default:
	}

	account, err := h.consume(ctx, event.Actor, event.VerificationID, true)
	if err != nil {
		return err
	}

	h.dispatcher.Go(ctx, h.messages.VerificationApproved(account.Email, account.Name))

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventVerificationApproved,
		Actor:     actorFromIdentity(*event.Actor),
		AccountID: account.ID.String(),
		Metadata: map[string]any{
			"verification_id": event.VerificationID.String(),
		},
	})

	return nil
}

// Deny discards the request and tells the account owner why.
func (h *ReviewVerificationHandler) Deny(ctx context.Context, event DenyVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during verification denial",
		)
	default:
	}

	account, err := h.consume(ctx, event.Actor, event.VerificationID, false)
	if err != nil {
		return err
	}

	h.dispatcher.Go(ctx, h.messages.VerificationDenied(account.Email, account.Name, event.Reason))

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventVerificationDenied,
		Actor:     actorFromIdentity(*event.Actor),
		AccountID: account.ID.String(),
		Metadata: map[string]any{
			"verification_id": event.VerificationID.String(),
			"reason":          event.Reason,
		},
	})

	return nil
}

// consume deletes the request and, when approve is set, verifies the
// owning account. It returns the owning account.
func (h *ReviewVerificationHandler) consume(ctx context.Context, actor *SessionIdentity, id uuid.UUID, approve bool) (*Account, error) {
	if err := requireAdmin(ctx, h.roles, actor); err != nil {
		return nil, err
	}

	if id == uuid.Nil {
		return nil, ErrMissingBody
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var account *Account
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		req, err := h.repo.Verifications().GetByIDTx(ctx, tx, id)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrVerificationNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load verification request")
		}

		if err := h.repo.Verifications().DeleteTx(ctx, tx, req.ID); err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrVerificationNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete verification request")
		}

		account, err = h.repo.Accounts().GetByUUIDTx(ctx, tx, req.AccountID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrAccountNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
		}

		if !approve {
			return nil
		}

		if err := h.repo.Accounts().MarkVerifiedTx(ctx, tx, account.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark account verified")
		}
		account.Verified = true
		return nil
	})
	if err != nil {
		return nil, asRichError(err, "verification review failed")
	}

	return account, nil
}
