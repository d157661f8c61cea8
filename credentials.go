package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Credentials keeps the password hash and the salt of an account in step.
type Credentials struct {
	repo   RepositoryManager
	hasher *CredentialHasher
}

// NewCredentials creates a credential store.
func NewCredentials(repo RepositoryManager, hasher *CredentialHasher) *Credentials {
	return &Credentials{
		repo:   repo,
		hasher: hasher,
	}
}

// Verify checks password against the account's stored hash. Accounts without
// a hash or salt fail with ErrLegacyMigrationRequired.
func (c *Credentials) Verify(ctx context.Context, account *Account, password string) (bool, error) {
	return c.VerifyTx(ctx, nil, account, password)
}

// VerifyTx is Verify reading the salt through tx. A nil tx uses the pool.
func (c *Credentials) VerifyTx(ctx context.Context, tx bun.IDB, account *Account, password string) (bool, error) {
	if !account.HasCredentials() {
		return false, ErrLegacyMigrationRequired
	}

	var (
		salt *Salt
		err  error
	)
	if tx == nil {
		salt, err = c.repo.Salts().GetByAccount(ctx, account.ID)
	} else {
		salt, err = c.repo.Salts().GetByAccountTx(ctx, tx, account.ID)
	}
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return false, ErrLegacyMigrationRequired
		}
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load salt")
	}

	ok, err := c.hasher.Verify(ctx, password, salt.Value, account.PasswordHash)
	if err != nil {
		return false, asRichError(err, "failed to verify password")
	}
	return ok, nil
}

// PendingCredentials is a derived salt and hash that is not stored yet.
type PendingCredentials struct {
	Salt string
	Hash string
}

// Derive computes a fresh salt and hash for password without touching
// storage.
func (c *Credentials) Derive(ctx context.Context, password string) (PendingCredentials, error) {
	salt, err := c.hasher.DeriveSalt()
	if err != nil {
		return PendingCredentials{}, ErrHashFailed
	}

	hash, err := c.hasher.Hash(ctx, password, salt)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeEmptyPassword {
			return PendingCredentials{}, richErr
		}
		return PendingCredentials{}, ErrHashFailed
	}

	return PendingCredentials{Salt: salt, Hash: hash}, nil
}

// CommitTx stores pending through tx. The write is conditional on the
// account's credential version; ErrCredentialConflict means another rotation
// committed after account was read.
func (c *Credentials) CommitTx(ctx context.Context, tx bun.IDB, account *Account, pending PendingCredentials) error {
	if _, err := c.repo.Salts().ReplaceTx(ctx, tx, account.ID, pending.Salt); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store salt")
	}

	if err := c.repo.Accounts().SetPasswordHashTx(ctx, tx, account.ID, pending.Hash, account.CredentialVersion); err != nil {
		return asRichError(err, "failed to store password hash")
	}

	account.PasswordHash = pending.Hash
	account.CredentialVersion++
	return nil
}

// RotateTx derives fresh credentials for password and commits them through
// tx. A derivation failure leaves the old credentials in place.
func (c *Credentials) RotateTx(ctx context.Context, tx bun.IDB, account *Account, password string) error {
	pending, err := c.Derive(ctx, password)
	if err != nil {
		return err
	}
	return c.CommitTx(ctx, tx, account, pending)
}

// Rotate is RotateTx in its own transaction.
func (c *Credentials) Rotate(ctx context.Context, account *Account, password string) error {
	return c.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return c.RotateTx(ctx, tx, account, password)
	})
}
