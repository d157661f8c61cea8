package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// SignInState is a step of the sign-in flow.
type SignInState string

const (
	StateAnonymous            SignInState = "anonymous"
	StateCredentialsSubmitted SignInState = "credentials_submitted"
	StateCredentialValid      SignInState = "credential_valid"
	StateCredentialInvalid    SignInState = "credential_invalid"
	StateVerificationChecked  SignInState = "verification_checked"
	StateVerificationRejected SignInState = "verification_rejected"
	StateSessionEstablished   SignInState = "session_established"
	StateSessionDenied        SignInState = "session_denied"
)

// SignInResult is the outcome of a sign-in attempt. State is set on failure
// too and names the last step reached.
type SignInResult struct {
	State    SignInState
	Identity SessionIdentity
	Profile  Profile
}

// Authenticator verifies credentials and opens sessions.
type Authenticator struct {
	repo        RepositoryManager
	credentials *Credentials
	roles       *RoleDirectory
	activity    ActivitySink
	logger      Logger
}

// NewAuthenticator creates an authenticator.
func NewAuthenticator(repo RepositoryManager, credentials *Credentials, roles *RoleDirectory) *Authenticator {
	return &Authenticator{
		repo:        repo,
		credentials: credentials,
		roles:       roles,
		activity:    noopActivitySink{},
		logger:      defLogger{},
	}
}

// WithActivitySink sets the sink used to emit sign-in events.
func (a *Authenticator) WithActivitySink(sink ActivitySink) *Authenticator {
	a.activity = normalizeActivitySink(sink)
	return a
}

// WithLogger overrides the logger.
func (a *Authenticator) WithLogger(logger Logger) *Authenticator {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// SignIn checks email and password, then requires both verification flags
// before establishing a session. A failed flag check terminates any session
// the caller already had.
func (a *Authenticator) SignIn(ctx context.Context, sessions SessionBoundary, email, password string) (*SignInResult, error) {
	result := &SignInResult{State: StateAnonymous}

	if email == "" || password == "" {
		return result, ErrMissingBody
	}
	result.State = StateCredentialsSubmitted

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account, err := a.repo.Accounts().GetByEmail(ctx, email)
	if err != nil {
		result.State = StateCredentialInvalid
		if repository.IsRecordNotFound(err) {
			a.recordFailure(ctx, "", email, "not_found")
			return result, ErrAccountNotFound
		}
		a.logger.Error("SignIn account lookup error", "error", err)
		return result, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
	}

	ok, err := a.credentials.Verify(ctx, account, password)
	if err != nil {
		result.State = StateCredentialInvalid
		if err == ErrLegacyMigrationRequired {
			a.logger.Warn("SignIn legacy account without credentials", "account_id", account.ID.String())
			a.recordFailure(ctx, account.ID.String(), email, "legacy")
		}
		return result, err
	}
	if !ok {
		result.State = StateCredentialInvalid
		a.recordFailure(ctx, account.ID.String(), email, "password_mismatch")
		return result, ErrInvalidCredentials
	}
	result.State = StateCredentialValid

	if denial := verificationDenial(account); denial != nil {
		result.State = StateSessionDenied
		if err := sessions.Terminate(ctx); err != nil {
			a.logger.Warn("SignIn failed to terminate session", "error", err)
		}
		a.recordFailure(ctx, account.ID.String(), email, denial.TextCode)
		return result, denial
	}
	result.State = StateVerificationChecked

	identity := IdentityFromAccount(account)
	if err := sessions.Establish(ctx, identity); err != nil {
		result.State = StateSessionDenied
		a.logger.Error("SignIn failed to establish session", "error", err)
		return result, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to establish session")
	}

	result.State = StateSessionEstablished
	result.Identity = identity
	result.Profile = NewProfile(ctx, a.roles, account)

	recordActivity(ctx, a.activity, a.logger, ActivityEvent{
		EventType: ActivityEventSignInSuccess,
		Actor:     actorFromIdentity(identity),
		AccountID: account.ID.String(),
	})

	return result, nil
}

// SignOut terminates the session. Failures are logged and not returned.
func (a *Authenticator) SignOut(ctx context.Context, sessions SessionBoundary) {
	identity, ok := sessions.Current(ctx)
	if err := sessions.Terminate(ctx); err != nil {
		a.logger.Warn("SignOut failed to terminate session", "error", err)
		return
	}
	if ok {
		recordActivity(ctx, a.activity, a.logger, ActivityEvent{
			EventType: ActivityEventSignOut,
			Actor:     actorFromIdentity(identity),
			AccountID: identity.ID.String(),
		})
	}
}

func verificationDenial(account *Account) *goerrors.Error {
	if !account.EmailVerified {
		return ErrEmailNotVerified
	}
	if !account.Verified {
		return ErrAccountNotVerified
	}
	return nil
}

func (a *Authenticator) recordFailure(ctx context.Context, accountID, email, reason string) {
	recordActivity(ctx, a.activity, a.logger, ActivityEvent{
		EventType: ActivityEventSignInFailure,
		Actor:     anonymousActor,
		AccountID: accountID,
		Metadata: map[string]any{
			"email":  email,
			"reason": reason,
		},
	})
}
