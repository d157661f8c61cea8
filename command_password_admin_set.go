package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// AdminSetPasswordMessage sets the password of any account without the
// previous one. It is the migration path for legacy accounts.
type AdminSetPasswordMessage struct {
	Actor    *SessionIdentity `json:"-"`
	Email    string           `json:"email"`
	Password string           `json:"password"`

	OnResponse func(profile Profile) `json:"-"`
}

func (e AdminSetPasswordMessage) Type() string { return "auth.password.admin_set" }

type AdminSetPasswordHandler struct {
	repo        RepositoryManager
	credentials *Credentials
	roles       *RoleDirectory
	activity    ActivitySink
	logger      Logger
}

// NewAdminSetPasswordHandler creates a handler with sane defaults.
func NewAdminSetPasswordHandler(repo RepositoryManager, credentials *Credentials, roles *RoleDirectory) *AdminSetPasswordHandler {
	return &AdminSetPasswordHandler{
		repo:        repo,
		credentials: credentials,
		roles:       roles,
		activity:    noopActivitySink{},
		logger:      defLogger{},
	}
}

// WithActivitySink sets the activity sink.
func (h *AdminSetPasswordHandler) WithActivitySink(sink ActivitySink) *AdminSetPasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *AdminSetPasswordHandler) WithLogger(logger Logger) *AdminSetPasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *AdminSetPasswordHandler) Execute(ctx context.Context, event AdminSetPasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during admin password update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *AdminSetPasswordHandler) execute(ctx context.Context, event AdminSetPasswordMessage) error {
	if err := requireAdmin(ctx, h.roles, event.Actor); err != nil {
		return err
	}

	if event.Email == "" || event.Password == "" {
		return ErrMissingBody
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var (
		account *Account
		legacy  bool
	)
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = h.repo.Accounts().GetByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrAccountNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
		}

		legacy = !account.HasCredentials()
		return h.credentials.RotateTx(ctx, tx, account, event.Password)
	})
	if err != nil {
		return asRichError(err, "admin password update failed")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordAdminSet,
		Actor:     actorFromIdentity(*event.Actor),
		AccountID: account.ID.String(),
		Metadata: map[string]any{
			"legacy": legacy,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(NewProfile(ctx, h.roles, account))
	}

	return nil
}
