package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type RecoverPasswordMessage struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	YearOfBirth int    `json:"yearOfBirth"`
}

func (e RecoverPasswordMessage) Type() string { return "auth.password.recover" }

// RecoverPasswordHandler replaces a forgotten password with a generated one
// and emails it. Name and year of birth must both match the account. The
// new credentials are only committed once the email was accepted, and only
// if no other rotation committed while the mail was in flight.
type RecoverPasswordHandler struct {
	repo           RepositoryManager
	credentials    *Credentials
	dispatcher     *Dispatcher
	messages       Messages
	passwordLength int
	activity       ActivitySink
	logger         Logger
}

// NewRecoverPasswordHandler creates a handler with sane defaults.
func NewRecoverPasswordHandler(repo RepositoryManager, credentials *Credentials, dispatcher *Dispatcher) *RecoverPasswordHandler {
	return &RecoverPasswordHandler{
		repo:           repo,
		credentials:    credentials,
		dispatcher:     dispatcher,
		passwordLength: DefaultTempPasswordLength,
		activity:       noopActivitySink{},
		logger:         defLogger{},
	}
}

// WithMessages sets the notification renderer.
func (h *RecoverPasswordHandler) WithMessages(m Messages) *RecoverPasswordHandler {
	h.messages = m
	return h
}

// WithPasswordLength sets the length of generated passwords.
func (h *RecoverPasswordHandler) WithPasswordLength(n int) *RecoverPasswordHandler {
	if n > 0 {
		h.passwordLength = n
	}
	return h
}

// WithActivitySink sets the activity sink.
func (h *RecoverPasswordHandler) WithActivitySink(sink ActivitySink) *RecoverPasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RecoverPasswordHandler) WithLogger(logger Logger) *RecoverPasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RecoverPasswordHandler) Execute(ctx context.Context, event RecoverPasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password recovery",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RecoverPasswordHandler) execute(ctx context.Context, event RecoverPasswordMessage) error {
	if event.Email == "" || event.Name == "" || event.YearOfBirth == 0 {
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

	if !recoveryDetailsMatch(account, event) {
		return ErrRecoveryMismatch
	}

	password, err := GenerateTempPassword(h.passwordLength)
	if err != nil {
		return ErrHashFailed
	}

	pending, err := h.credentials.Derive(ctx, password)
	if err != nil {
		return asRichError(err, "password recovery failed")
	}

	// no transaction is open while the mail transport runs
	if err := h.dispatcher.Send(ctx, h.messages.TemporaryPassword(account.Email, account.Name, password)); err != nil {
		return ErrTempPasswordDelivery
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return h.credentials.CommitTx(ctx, tx, account, pending)
	})
	if err != nil {
		h.logger.Error("temporary password sent but not stored", "account", account.ID.String(), "error", err)
		return asRichError(err, "password recovery failed")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordRecovered,
		Actor:     anonymousActor,
		AccountID: account.ID.String(),
	})

	return nil
}

// recoveryDetailsMatch compares the shared secrets exactly.
func recoveryDetailsMatch(account *Account, event RecoverPasswordMessage) bool {
	return account.Name == event.Name && account.YearOfBirth == event.YearOfBirth
}
