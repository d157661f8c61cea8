package auth

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeMissingBody          = "MISSING_BODY"
	TextCodeAccountNotFound      = "ACCOUNT_NOT_FOUND"
	TextCodeLegacyMigration      = "LEGACY_MIGRATION_REQUIRED"
	TextCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	TextCodeEmailNotVerified     = "EMAIL_NOT_VERIFIED"
	TextCodeAccountNotVerified   = "ACCOUNT_NOT_VERIFIED"
	TextCodeUnauthorized         = "UNAUTHORIZED"
	TextCodeCredentialConflict   = "CREDENTIAL_CONFLICT"
	TextCodeVerificationNotFound = "VERIFICATION_NOT_FOUND"
	TextCodeRecoveryMismatch     = "RECOVERY_MISMATCH"
	TextCodeUnknownRole          = "UNKNOWN_ROLE"
	TextCodeEmailExists          = "EMAIL_EXISTS"
	TextCodeInvalidEmailLink     = "INVALID_EMAIL_LINK"
	TextCodeInvalidEmail         = "INVALID_EMAIL"
	TextCodeNotificationFailed   = "NOTIFICATION_FAILED"
	TextCodeTempPasswordDelivery = "TEMP_PASSWORD_DELIVERY_FAILED"
	TextCodeHashFailed           = "HASH_FAILED"
	TextCodeUploadFailed         = "UPLOAD_FAILED"
	TextCodeEmptyPassword        = "EMPTY_PASSWORD"
)

// ErrMissingBody is returned when a required request field is absent.
var ErrMissingBody = goerrors.New("missing request body", goerrors.CategoryBadInput).
	WithTextCode(TextCodeMissingBody).
	WithCode(http.StatusNoContent)

// ErrAccountNotFound is returned when no account matches the lookup.
var ErrAccountNotFound = goerrors.New("Account Not Found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrLegacyMigrationRequired is returned when an account has no password hash.
var ErrLegacyMigrationRequired = goerrors.New("Password Migration Required", goerrors.CategoryAuth).
	WithTextCode(TextCodeLegacyMigration).
	WithCode(http.StatusNotImplemented)

// ErrInvalidCredentials is returned when a password does not match.
var ErrInvalidCredentials = goerrors.New("Invalid Credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrEmailNotVerified is returned on sign-in before the email link was visited.
var ErrEmailNotVerified = goerrors.New("Email Not Verified", goerrors.CategoryAuth).
	WithTextCode(TextCodeEmailNotVerified).
	WithCode(goerrors.CodeBadRequest)

// ErrAccountNotVerified is returned on sign-in before an Admin approved the account.
var ErrAccountNotVerified = goerrors.New("Account Not Verified", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountNotVerified).
	WithCode(goerrors.CodeBadRequest)

// ErrUnauthorized is returned when the caller lacks a session or the role.
var ErrUnauthorized = goerrors.New("Unauthorized", goerrors.CategoryAuthz).
	WithTextCode(TextCodeUnauthorized).
	WithCode(goerrors.CodeUnauthorized)

// ErrCredentialConflict is returned when another rotation won the race.
var ErrCredentialConflict = goerrors.New("credentials were changed concurrently", goerrors.CategoryConflict).
	WithTextCode(TextCodeCredentialConflict).
	WithCode(goerrors.CodeConflict)

// ErrVerificationNotFound is returned when a verification request is gone.
var ErrVerificationNotFound = goerrors.New("Verification Request Not Found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeVerificationNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrRecoveryMismatch is returned when recovery details do not match the account.
var ErrRecoveryMismatch = goerrors.New("Information mismatch", goerrors.CategoryAuth).
	WithTextCode(TextCodeRecoveryMismatch).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnknownRole is returned when signup references a role that does not exist.
var ErrUnknownRole = goerrors.New("Unknown Role", goerrors.CategoryValidation).
	WithTextCode(TextCodeUnknownRole).
	WithCode(goerrors.CodeBadRequest)

// ErrEmailAlreadyExists is returned when signup uses a registered email.
var ErrEmailAlreadyExists = goerrors.New("Email Already Registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailExists).
	WithCode(goerrors.CodeConflict)

// ErrInvalidEmailLink is returned for tampered or expired verification links.
var ErrInvalidEmailLink = goerrors.New("Invalid Verification Link", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidEmailLink).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidEmail is returned when the signup verification email bounces.
var ErrInvalidEmail = goerrors.New("Invalid email is used.", goerrors.CategoryInternal).
	WithTextCode(TextCodeInvalidEmail).
	WithCode(http.StatusExpectationFailed)

// ErrNotificationFailed is returned when an awaited notification fails.
var ErrNotificationFailed = goerrors.New("Email Sending Failed", goerrors.CategoryInternal).
	WithTextCode(TextCodeNotificationFailed).
	WithCode(http.StatusExpectationFailed)

// ErrTempPasswordDelivery is returned when the recovery email fails.
var ErrTempPasswordDelivery = goerrors.New("Temporary Password Email Sending Failed", goerrors.CategoryInternal).
	WithTextCode(TextCodeTempPasswordDelivery).
	WithCode(http.StatusExpectationFailed)

// ErrHashFailed is returned when salt generation or key derivation fails.
var ErrHashFailed = goerrors.New("Credential Processing Failed", goerrors.CategoryInternal).
	WithTextCode(TextCodeHashFailed).
	WithCode(http.StatusExpectationFailed)

// ErrUploadFailed is returned when the blob store rejects a document.
var ErrUploadFailed = goerrors.New("Document Upload Failed", goerrors.CategoryInternal).
	WithTextCode(TextCodeUploadFailed).
	WithCode(http.StatusExpectationFailed)

// ErrEmptyPassword is returned by the hasher for blank input.
var ErrEmptyPassword = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// IsDependencyFailure reports whether err signals a failed external dependency.
func IsDependencyFailure(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.Code == http.StatusExpectationFailed
}

// asRichError returns err as a rich error, wrapping unknown errors as internal.
func asRichError(err error, msg string) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}
