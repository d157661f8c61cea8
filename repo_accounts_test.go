package auth

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func TestRepositories(t *testing.T) {
	ctx := context.Background()

	t.Run("default roles are idempotent", func(t *testing.T) {
		f := newFixture(t)

		require.NoError(t, f.svc.Repo.Roles().EnsureDefaults(ctx, DefaultRoles...))
		require.NoError(t, f.svc.Bootstrap(ctx))
		assert.Equal(t, len(DefaultRoles), f.count((*Role)(nil)))

		admin, err := f.svc.Repo.Roles().GetByName(ctx, RoleAdmin)
		require.NoError(t, err)
		assert.True(t, f.svc.Roles.IsAdmin(ctx, admin.ID))

		member, err := f.svc.Roles.ID(ctx, RoleMember)
		require.NoError(t, err)
		assert.False(t, f.svc.Roles.IsAdmin(ctx, member))
	})

	t.Run("email lookups are normalized", func(t *testing.T) {
		f := newFixture(t)
		a, _ := f.member("ada@example.com")

		found, err := f.svc.Repo.Accounts().GetByEmail(ctx, "  ADA@Example.com ")
		require.NoError(t, err)
		assert.Equal(t, a.ID, found.ID)

		_, err = f.svc.Repo.Accounts().GetByEmail(ctx, "nobody@example.com")
		assert.True(t, repository.IsRecordNotFound(err))
	})

	t.Run("id lookups", func(t *testing.T) {
		f := newFixture(t)
		a, _ := f.member("ada@example.com")

		var byUUID, byString *Account
		err := f.svc.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			var err error
			if byUUID, err = f.svc.Repo.Accounts().GetByUUIDTx(ctx, tx, a.ID); err != nil {
				return err
			}
			byString, err = f.svc.Repo.Accounts().GetByIDTx(ctx, tx, a.ID.String())
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, a.ID, byUUID.ID)
		assert.Equal(t, a.ID, byString.ID)

		err = f.svc.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			_, err := f.svc.Repo.Accounts().GetByUUIDTx(ctx, tx, uuid.New())
			return err
		})
		assert.True(t, repository.IsRecordNotFound(err))
	})

	t.Run("removing an account cascades", func(t *testing.T) {
		f := newFixture(t)
		a, _ := f.member("ada@example.com")

		err := f.svc.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			_, err := f.svc.Repo.Verifications().UpsertTx(ctx, tx, a.ID, "https://blobs.test/doc.png")
			return err
		})
		require.NoError(t, err)
		require.Equal(t, 1, f.count((*Salt)(nil)))
		require.Equal(t, 1, f.count((*VerificationRequest)(nil)))

		require.NoError(t, f.svc.Repo.Accounts().Remove(ctx, a.ID))

		assert.Equal(t, 0, f.count((*Account)(nil)))
		assert.Equal(t, 0, f.count((*Salt)(nil)))
		assert.Equal(t, 0, f.count((*VerificationRequest)(nil)))

		err = f.svc.Repo.Accounts().Remove(ctx, a.ID)
		assert.True(t, repository.IsRecordNotFound(err))
	})

	t.Run("upsert keeps one request per account", func(t *testing.T) {
		f := newFixture(t)
		a, _ := f.member("ada@example.com")

		var first, second *VerificationRequest
		err := f.svc.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			var err error
			first, err = f.svc.Repo.Verifications().UpsertTx(ctx, tx, a.ID, "https://blobs.test/one.png")
			return err
		})
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)

		err = f.svc.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			var err error
			second, err = f.svc.Repo.Verifications().UpsertTx(ctx, tx, a.ID, "https://blobs.test/two.png")
			return err
		})
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "https://blobs.test/two.png", second.FileURL)
		assert.Equal(t, 1, f.count((*VerificationRequest)(nil)))
	})

	t.Run("deleting a consumed request is not found", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			return f.svc.Repo.Verifications().DeleteTx(ctx, tx, uuid.New())
		})
		assert.True(t, repository.IsRecordNotFound(err))
	})

	t.Run("stale credential version conflicts", func(t *testing.T) {
		f := newFixture(t)
		a, _ := f.member("ada@example.com")
		stale := *a

		require.NoError(t, f.svc.Credentials.Rotate(ctx, a, "first-rotation"))

		err := f.svc.Credentials.Rotate(ctx, &stale, "second-rotation")
		requireTextCode(t, err, TextCodeCredentialConflict)

		// the losing rotation rolled back its salt too
		ok, err := f.svc.Credentials.Verify(ctx, f.reload(a.ID), "first-rotation")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("rotation replaces the salt", func(t *testing.T) {
		f := newFixture(t)
		a, _ := f.member("ada@example.com")
		before := f.saltOf(a)

		require.NoError(t, f.svc.Credentials.Rotate(ctx, a, "new-password"))

		assert.NotEqual(t, before, f.saltOf(a))
		assert.Equal(t, 1, f.count((*Salt)(nil)))

		ok, err := f.svc.Credentials.Verify(ctx, f.reload(a.ID), "member-password")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("accounts without credentials need migration", func(t *testing.T) {
		f := newFixture(t)
		roleID, err := f.svc.Roles.ID(ctx, RoleMember)
		require.NoError(t, err)

		legacy, err := f.svc.Repo.Accounts().Register(ctx, &Account{
			Name:   "Legacy",
			Email:  "legacy@example.com",
			RoleID: roleID,
		})
		require.NoError(t, err)
		assert.False(t, legacy.HasCredentials())

		_, err = f.svc.Credentials.Verify(ctx, legacy, "anything")
		requireTextCode(t, err, TextCodeLegacyMigration)
	})
}
