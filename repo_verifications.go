package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Verifications stores outstanding identity verification requests.
type Verifications interface {
	GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*VerificationRequest, error)
	// UpsertTx records fileURL as the account's single outstanding request.
	UpsertTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, fileURL string) (*VerificationRequest, error)
	// DeleteTx removes the request, failing with a not found error when it
	// was already consumed.
	DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	// ListPending returns every request, most recently updated first.
	ListPending(ctx context.Context) ([]*VerificationRequest, error)
}

type verifications struct {
	db *bun.DB
}

func NewVerificationsRepository(db *bun.DB) Verifications {
	return &verifications{db: db}
}

func (v *verifications) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*VerificationRequest, error) {
	record := &VerificationRequest{}
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

func (v *verifications) UpsertTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, fileURL string) (*VerificationRequest, error) {
	record := &VerificationRequest{
		AccountID: accountID,
		FileURL:   fileURL,
	}
	_, err := tx.NewInsert().
		Model(record).
		On("CONFLICT (account_id) DO UPDATE").
		Set("file_url = EXCLUDED.file_url").
		Set("updated_at = ?", time.Now().UTC()).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return v.getByAccountTx(ctx, tx, accountID)
}

func (v *verifications) getByAccountTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (*VerificationRequest, error) {
	record := &VerificationRequest{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.account_id = ?", accountID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (v *verifications) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewDelete().
		Model(&VerificationRequest{}).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, map[string]any{"id": id.String()})
}

func (v *verifications) ListPending(ctx context.Context) ([]*VerificationRequest, error) {
	var records []*VerificationRequest
	err := v.db.NewSelect().
		Model(&records).
		Order("updated_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}
