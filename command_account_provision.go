package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// ProvisionAccountMessage creates an account that can sign in right away.
// It is meant for operators bootstrapping Admins, not for end users.
type ProvisionAccountMessage struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`

	OnResponse func(account *Account) `json:"-"`
}

func (e ProvisionAccountMessage) Type() string { return "account.provision" }

// Validate will validate the payload
func (e ProvisionAccountMessage) Validate() error {
	if err := goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&e,
			validation.Field(&e.Name, validation.Required, validation.Length(1, 200)),
			validation.Field(&e.Email, validation.Required, is.Email),
			validation.Field(&e.Password, validation.Required, validation.Length(8, 256)),
			validation.Field(&e.Role, validation.Required),
		)
	}, "Invalid provision payload"); err != nil {
		return err
	}
	return nil
}

type ProvisionAccountHandler struct {
	repo        RepositoryManager
	credentials *Credentials
	roles       *RoleDirectory
	activity    ActivitySink
	logger      Logger
}

// NewProvisionAccountHandler creates a handler with sane defaults.
func NewProvisionAccountHandler(repo RepositoryManager, credentials *Credentials, roles *RoleDirectory) *ProvisionAccountHandler {
	return &ProvisionAccountHandler{
		repo:        repo,
		credentials: credentials,
		roles:       roles,
		activity:    noopActivitySink{},
		logger:      defLogger{},
	}
}

// WithActivitySink sets the activity sink.
func (h *ProvisionAccountHandler) WithActivitySink(sink ActivitySink) *ProvisionAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ProvisionAccountHandler) WithLogger(logger Logger) *ProvisionAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ProvisionAccountHandler) Execute(ctx context.Context, event ProvisionAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account provisioning",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ProvisionAccountHandler) execute(ctx context.Context, event ProvisionAccountMessage) error {
	if err := event.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	roleID, err := h.roles.ID(ctx, event.Role)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrUnknownRole
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve role")
	}

	account := &Account{
		Name:          event.Name,
		Email:         event.Email,
		RoleID:        roleID,
		EmailVerified: true,
		Verified:      true,
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := h.repo.Accounts().GetByEmailTx(ctx, tx, event.Email); err == nil {
			return ErrEmailAlreadyExists
		} else if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
		}

		created, err := h.repo.Accounts().RegisterTx(ctx, tx, account)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
		}
		account = created

		return h.credentials.RotateTx(ctx, tx, account, event.Password)
	})
	if err != nil {
		return asRichError(err, "account provisioning failed")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventAccountProvisioned,
		Actor:     ActorRef{Type: "operator"},
		AccountID: account.ID.String(),
		Metadata: map[string]any{
			"role": event.Role,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(account)
	}

	return nil
}
