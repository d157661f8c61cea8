package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type SignupMessage struct {
	Name                string `json:"name"`
	Email               string `json:"email"`
	Password            string `json:"password"`
	Role                string `json:"role"`
	YearOfBirth         int    `json:"yearOfBirth"`
	Gender              string `json:"gender"`
	EnrolledYear        int    `json:"enrolledYear"`
	Major               string `json:"major"`
	ProfileImageURL     string `json:"profileImageUrl"`
	ChatID              string `json:"chatId"`
	VerificationFileURL string `json:"verificationFileUrl"`
	UseHashid           bool   `json:"-"`

	OnResponse func(resp *SignupResponse) `json:"-"`
}

func (e SignupMessage) Type() string { return "account.signup" }

// Validate will validate the payload
func (e SignupMessage) Validate() error {
	if err := goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&e,
			validation.Field(&e.Name, validation.Required, validation.Length(1, 200)),
			validation.Field(&e.Email, validation.Required, validation.Length(3, 254), is.Email),
			validation.Field(&e.Password, validation.Required, validation.Length(1, 256)),
			validation.Field(&e.YearOfBirth, validation.Min(1900), validation.Max(3000)),
			validation.Field(&e.EnrolledYear, validation.Min(1900), validation.Max(3000)),
			validation.Field(&e.ProfileImageURL, is.URL),
			validation.Field(&e.VerificationFileURL, is.URL),
		)
	}, "Invalid signup payload"); err != nil {
		return err
	}
	return nil
}

type SignupResponse struct {
	Account             *Account
	VerificationRequest *VerificationRequest
}

// SignupHandler creates unverified accounts. The verification email is sent
// before credentials are stored; an undeliverable address removes the account.
type SignupHandler struct {
	repo         RepositoryManager
	credentials  *Credentials
	roles        *RoleDirectory
	tokens       *EmailTokens
	dispatcher   *Dispatcher
	messages     Messages
	allowedRoles []string
	activity     ActivitySink
	logger       Logger
}

// NewSignupHandler creates a handler with sane defaults. Only the Member
// role may be requested unless WithAllowedRoles says otherwise.
func NewSignupHandler(repo RepositoryManager, credentials *Credentials, roles *RoleDirectory, tokens *EmailTokens, dispatcher *Dispatcher) *SignupHandler {
	return &SignupHandler{
		repo:         repo,
		credentials:  credentials,
		roles:        roles,
		tokens:       tokens,
		dispatcher:   dispatcher,
		allowedRoles: []string{RoleMember},
		activity:     noopActivitySink{},
		logger:       defLogger{},
	}
}

// WithMessages sets the notification renderer.
func (h *SignupHandler) WithMessages(m Messages) *SignupHandler {
	h.messages = m
	return h
}

// WithAllowedRoles sets the roles a signup may request.
func (h *SignupHandler) WithAllowedRoles(roles ...string) *SignupHandler {
	if len(roles) > 0 {
		h.allowedRoles = roles
	}
	return h
}

// WithActivitySink sets the sink used to emit signup events.
func (h *SignupHandler) WithActivitySink(sink ActivitySink) *SignupHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *SignupHandler) WithLogger(logger Logger) *SignupHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *SignupHandler) Execute(ctx context.Context, event SignupMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during signup",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *SignupHandler) execute(ctx context.Context, event SignupMessage) error {
	if err := event.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	roleID, err := h.resolveRole(ctx, event.Role)
	if err != nil {
		return err
	}

	if _, err := h.repo.Accounts().GetByEmail(ctx, event.Email); err == nil {
		return ErrEmailAlreadyExists
	} else if !repository.IsRecordNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
	}

	account := &Account{
		Name:            event.Name,
		Email:           event.Email,
		RoleID:          roleID,
		YearOfBirth:     event.YearOfBirth,
		Gender:          event.Gender,
		EnrolledYear:    event.EnrolledYear,
		Major:           event.Major,
		ProfileImageURL: event.ProfileImageURL,
		ChatID:          event.ChatID,
	}
	if event.UseHashid {
		if id, err := hashid.NewUUID(NormalizeEmail(event.Email)); err == nil {
			account.ID = id
		}
	}

	if account, err = h.repo.Accounts().Register(ctx, account); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
	}

	link, err := h.tokens.Link(account.ID)
	if err != nil {
		h.compensate(ctx, account)
		return err
	}

	if err := h.dispatcher.Send(ctx, h.messages.EmailVerification(account.Email, account.Name, link)); err != nil {
		h.compensate(ctx, account)
		return ErrInvalidEmail
	}

	resp := &SignupResponse{Account: account}
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := h.credentials.RotateTx(ctx, tx, account, event.Password); err != nil {
			return err
		}

		if event.VerificationFileURL == "" {
			return nil
		}

		req, err := h.repo.Verifications().UpsertTx(ctx, tx, account.ID, event.VerificationFileURL)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store verification request")
		}
		resp.VerificationRequest = req
		return nil
	})
	if err != nil {
		h.compensate(ctx, account)
		return asRichError(err, "signup transaction failed")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventSignup,
		Actor:     ActorRef{ID: account.ID.String(), Type: "account"},
		AccountID: account.ID.String(),
		Metadata: map[string]any{
			"document": event.VerificationFileURL != "",
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *SignupHandler) resolveRole(ctx context.Context, name string) (uuid.UUID, error) {
	if name == "" {
		name = RoleMember
	}

	allowed := false
	for _, r := range h.allowedRoles {
		if r == name {
			allowed = true
			break
		}
	}
	if !allowed {
		return uuid.Nil, ErrUnknownRole
	}

	id, err := h.roles.ID(ctx, name)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return uuid.Nil, ErrUnknownRole
		}
		return uuid.Nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve role")
	}
	return id, nil
}

// compensate removes an account whose signup could not complete.
func (h *SignupHandler) compensate(ctx context.Context, account *Account) {
	ctx = context.WithoutCancel(ctx)
	if err := h.repo.Accounts().Remove(ctx, account.ID); err != nil {
		h.logger.Error("signup compensation failed", "account_id", account.ID.String(), "error", err)
	}
}
