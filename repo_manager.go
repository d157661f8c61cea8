package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Accounts() Accounts
	Salts() Salts
	Roles() Roles
	Verifications() Verifications
}

type mngr struct {
	db            *bun.DB
	accounts      Accounts
	salts         Salts
	roles         Roles
	verifications Verifications
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:            db,
		accounts:      NewAccountsRepository(db),
		salts:         NewSaltsRepository(db),
		roles:         NewRolesRepository(db),
		verifications: NewVerificationsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.salts == nil {
		return errors.New("repository salts should be initialized")
	}

	if m.roles == nil {
		return errors.New("repository roles should be initialized")
	}

	if m.verifications == nil {
		return errors.New("repository verifications should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}

func (m mngr) Salts() Salts {
	return m.salts
}

func (m mngr) Roles() Roles {
	return m.roles
}

func (m mngr) Verifications() Verifications {
	return m.verifications
}

func requireAffected(res sql.Result, meta map[string]any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.NewRecordNotFound().WithMetadata(meta)
	}
	return nil
}
