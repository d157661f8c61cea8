package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Roles is the role store.
type Roles interface {
	repository.Repository[*Role]

	GetByName(ctx context.Context, name string) (*Role, error)
	// EnsureDefaults creates any missing role from names.
	EnsureDefaults(ctx context.Context, names ...string) error
}

type roles struct {
	repository.Repository[*Role]
	db *bun.DB
}

func NewRolesRepository(db *bun.DB) Roles {
	repo := repository.NewRepository[*Role](db, repository.ModelHandlers[*Role]{
		NewRecord: func() *Role { return &Role{} },
		GetID: func(r *Role) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *Role, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
	})

	return &roles{
		Repository: repo,
		db:         db,
	}
}

func (r *roles) GetByName(ctx context.Context, name string) (*Role, error) {
	record := &Role{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"name": name,
				})
		}
		return nil, err
	}
	return record, nil
}

func (r *roles) EnsureDefaults(ctx context.Context, names ...string) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, name := range names {
			exists, err := tx.NewSelect().
				Model((*Role)(nil)).
				Where("?TableAlias.name = ?", name).
				Exists(ctx)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if _, err := tx.NewInsert().
				Model(&Role{ID: uuid.New(), Name: name}).
				Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}
