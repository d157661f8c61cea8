package auth

import (
	"context"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type tableSpec struct {
	model       any
	foreignKeys []string
}

var schemaTables = []tableSpec{
	{model: (*Role)(nil)},
	{
		model:       (*Account)(nil),
		foreignKeys: []string{`("role_id") REFERENCES "roles" ("id")`},
	},
	{
		model:       (*Salt)(nil),
		foreignKeys: []string{`("account_id") REFERENCES "accounts" ("id") ON DELETE CASCADE`},
	},
	{
		model:       (*VerificationRequest)(nil),
		foreignKeys: []string{`("account_id") REFERENCES "accounts" ("id") ON DELETE CASCADE`},
	},
}

// CreateSchema creates the tables used by the package if they do not exist.
// Salts and verification requests are removed together with their account.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, spec := range schemaTables {
		q := db.NewCreateTable().Model(spec.model).IfNotExists()
		for _, fk := range spec.foreignKeys {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, fmt.Sprintf("failed to create table for %T", spec.model))
		}
	}
	return nil
}
