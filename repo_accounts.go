package auth

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Accounts is the account store.
type Accounts interface {
	repository.Repository[*Account]

	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	GetByUUIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error)
	Register(ctx context.Context, account *Account) (*Account, error)
	RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)

	MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	MarkVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	SetPasswordHashTx(ctx context.Context, tx bun.IDB, id uuid.UUID, hash string, version int64) error

	Remove(ctx context.Context, id uuid.UUID) error
	RemoveTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accounts)(nil)
	_ repository.Repository[*Account] = (*accounts)(nil)
)

func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
	}
}

// NormalizeEmail lower cases and trims an address before lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *accounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *accounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"email": email,
				})
		}
		return nil, err
	}
	return record, nil
}

// GetByUUIDTx is GetByIDTx for callers holding a parsed id.
func (a *accounts) GetByUUIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"id": id.String(),
				})
		}
		return nil, err
	}
	return record, nil
}

func (a *accounts) Register(ctx context.Context, account *Account) (*Account, error) {
	return a.RegisterTx(ctx, a.db, account)
}

func (a *accounts) RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	account.Email = NormalizeEmail(account.Email)
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	return a.Repository.CreateTx(ctx, tx, account)
}

func (a *accounts) MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	return a.setFlagTx(ctx, tx, id, "email_verified")
}

func (a *accounts) MarkVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	return a.setFlagTx(ctx, tx, id, "verified")
}

func (a *accounts) setFlagTx(ctx context.Context, tx bun.IDB, id uuid.UUID, column string) error {
	res, err := tx.NewUpdate().
		Model(&Account{}).
		Set("? = ?", bun.Ident(column), true).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, map[string]any{"id": id.String()})
}

// SetPasswordHashTx stores a new hash if the credential version still equals
// version and bumps it. A stale version yields ErrCredentialConflict.
func (a *accounts) SetPasswordHashTx(ctx context.Context, tx bun.IDB, id uuid.UUID, hash string, version int64) error {
	res, err := tx.NewUpdate().
		Model(&Account{}).
		Set("password_hash = ?", hash).
		Set("credential_version = credential_version + 1").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("credential_version = ?", version).
		Exec(ctx)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCredentialConflict
	}
	return nil
}

func (a *accounts) Remove(ctx context.Context, id uuid.UUID) error {
	return a.RemoveTx(ctx, a.db, id)
}

func (a *accounts) RemoveTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewDelete().
		Model(&Account{}).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, map[string]any{"id": id.String()})
}
