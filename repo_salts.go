package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Salts stores the KDF salt of each account.
type Salts interface {
	GetByAccount(ctx context.Context, accountID uuid.UUID) (*Salt, error)
	GetByAccountTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (*Salt, error)
	// ReplaceTx removes any salt held by the account and stores value.
	ReplaceTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, value string) (*Salt, error)
}

type salts struct {
	db *bun.DB
}

func NewSaltsRepository(db *bun.DB) Salts {
	return &salts{db: db}
}

func (s *salts) GetByAccount(ctx context.Context, accountID uuid.UUID) (*Salt, error) {
	return s.GetByAccountTx(ctx, s.db, accountID)
}

func (s *salts) GetByAccountTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (*Salt, error) {
	record := &Salt{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.account_id = ?", accountID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"account_id": accountID.String(),
				})
		}
		return nil, err
	}
	return record, nil
}

func (s *salts) ReplaceTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, value string) (*Salt, error) {
	if _, err := tx.NewDelete().
		Model(&Salt{}).
		Where("account_id = ?", accountID).
		Exec(ctx); err != nil {
		return nil, err
	}

	record := &Salt{
		AccountID: accountID,
		Value:     value,
	}
	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}
