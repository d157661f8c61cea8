package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// ServiceOptions configures NewService.
type ServiceOptions struct {
	DB       *bun.DB
	KDF      KDFConfig
	Notifier Notifier
	Blobs    BlobStore
	Messages Messages
	Activity ActivitySink
	Logger   Logger

	TokenSecret string
	TokenIssuer string
	TokenTTL    time.Duration
	// LinkBase is the absolute URL of the email verification route.
	LinkBase string

	DocumentPrefix     string
	TempPasswordLength int
}

// Service wires every handler over shared repositories and collaborators.
type Service struct {
	db *bun.DB

	Repo        RepositoryManager
	Hasher      *CredentialHasher
	Credentials *Credentials
	Roles       *RoleDirectory
	Tokens      *EmailTokens
	Dispatcher  *Dispatcher

	Authenticator      *Authenticator
	Signup             *SignupHandler
	VerifyEmail        *VerifyEmailHandler
	ResendVerification *ResendVerificationEmailHandler
	ChangePassword     *ChangePasswordHandler
	AdminSetPassword   *AdminSetPasswordHandler
	RecoverPassword    *RecoverPasswordHandler
	UploadDocument     *UploadDocumentHandler
	Review             *ReviewVerificationHandler
	Pending            *PendingVerificationsQuery
	RemoveAccount      *RemoveAccountHandler
	Provision          *ProvisionAccountHandler
}

// NewService creates a Service from opts.
func NewService(opts ServiceOptions) (*Service, error) {
	if opts.DB == nil {
		return nil, goerrors.New("database is required", goerrors.CategoryBadInput)
	}
	if opts.TokenSecret == "" {
		return nil, goerrors.New("token secret is required", goerrors.CategoryBadInput)
	}
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{Logger: opts.Logger}
	}
	if opts.Blobs == nil {
		return nil, goerrors.New("blob store is required", goerrors.CategoryBadInput)
	}

	logger := normalizeLogger(opts.Logger)
	activity := normalizeActivitySink(opts.Activity)

	repo := NewRepositoryManager(opts.DB)
	repo.MustValidate()

	hasher := NewCredentialHasher(opts.KDF)
	credentials := NewCredentials(repo, hasher)
	roles := NewRoleDirectory(repo.Roles())
	tokens := NewEmailTokens(opts.TokenSecret, opts.TokenIssuer, opts.LinkBase, opts.TokenTTL)
	dispatcher := NewDispatcher(opts.Notifier, logger)

	upload := NewUploadDocumentHandler(repo, opts.Blobs).
		WithActivitySink(activity).
		WithLogger(logger)
	if opts.DocumentPrefix != "" {
		upload.WithPrefix(opts.DocumentPrefix)
	}

	return &Service{
		db: opts.DB,

		Repo:        repo,
		Hasher:      hasher,
		Credentials: credentials,
		Roles:       roles,
		Tokens:      tokens,
		Dispatcher:  dispatcher,

		Authenticator: NewAuthenticator(repo, credentials, roles).
			WithActivitySink(activity).
			WithLogger(logger),
		Signup: NewSignupHandler(repo, credentials, roles, tokens, dispatcher).
			WithMessages(opts.Messages).
			WithActivitySink(activity).
			WithLogger(logger),
		VerifyEmail: NewVerifyEmailHandler(repo, tokens).
			WithActivitySink(activity).
			WithLogger(logger),
		ResendVerification: NewResendVerificationEmailHandler(repo, roles, tokens, dispatcher).
			WithMessages(opts.Messages).
			WithActivitySink(activity).
			WithLogger(logger),
		ChangePassword: NewChangePasswordHandler(repo, credentials).
			WithActivitySink(activity).
			WithLogger(logger),
		AdminSetPassword: NewAdminSetPasswordHandler(repo, credentials, roles).
			WithActivitySink(activity).
			WithLogger(logger),
		RecoverPassword: NewRecoverPasswordHandler(repo, credentials, dispatcher).
			WithMessages(opts.Messages).
			WithPasswordLength(opts.TempPasswordLength).
			WithActivitySink(activity).
			WithLogger(logger),
		UploadDocument: upload,
		Review: NewReviewVerificationHandler(repo, roles, dispatcher).
			WithMessages(opts.Messages).
			WithActivitySink(activity).
			WithLogger(logger),
		Pending: NewPendingVerificationsQuery(repo, roles).
			WithLogger(logger),
		RemoveAccount: NewRemoveAccountHandler(repo, roles).
			WithActivitySink(activity).
			WithLogger(logger),
		Provision: NewProvisionAccountHandler(repo, credentials, roles).
			WithActivitySink(activity).
			WithLogger(logger),
	}, nil
}

// Bootstrap creates the schema and the default roles.
func (s *Service) Bootstrap(ctx context.Context) error {
	if err := CreateSchema(ctx, s.db); err != nil {
		return err
	}
	if err := s.Repo.Roles().EnsureDefaults(ctx, DefaultRoles...); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create default roles")
	}
	return nil
}
