package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangePasswordHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a session", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.ChangePassword.Execute(ctx, ChangePasswordMessage{
			PreviousPassword: "a",
			NewPassword:      "b",
		})
		requireTextCode(t, err, TextCodeUnauthorized)
	})

	t.Run("missing fields", func(t *testing.T) {
		f := newFixture(t)
		_, identity := f.member("ada@example.com")

		err := f.svc.ChangePassword.Execute(ctx, ChangePasswordMessage{
			Actor:            identity,
			PreviousPassword: "member-password",
		})
		requireTextCode(t, err, TextCodeMissingBody)
	})

	t.Run("wrong previous password keeps credentials", func(t *testing.T) {
		f := newFixture(t)
		a, identity := f.member("ada@example.com")
		salt := f.saltOf(a)

		err := f.svc.ChangePassword.Execute(ctx, ChangePasswordMessage{
			Actor:            identity,
			PreviousPassword: "guess",
			NewPassword:      "replacement",
		})
		requireTextCode(t, err, TextCodeInvalidCredentials)
		assert.Equal(t, salt, f.saltOf(a))

		ok, err := f.svc.Credentials.Verify(ctx, f.reload(a.ID), "member-password")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("rotates salt and hash", func(t *testing.T) {
		f := newFixture(t)
		a, identity := f.member("ada@example.com")
		salt := f.saltOf(a)

		require.NoError(t, f.svc.ChangePassword.Execute(ctx, ChangePasswordMessage{
			Actor:            identity,
			PreviousPassword: "member-password",
			NewPassword:      "replacement",
		}))

		assert.NotEqual(t, salt, f.saltOf(a))

		_, err := f.svc.Authenticator.SignIn(ctx, &memorySessions{}, "ada@example.com", "member-password")
		requireTextCode(t, err, TextCodeInvalidCredentials)

		_, err = f.svc.Authenticator.SignIn(ctx, &memorySessions{}, "ada@example.com", "replacement")
		require.NoError(t, err)
		assert.Contains(t, f.activity.types(), ActivityEventPasswordChanged)
	})

	t.Run("removed account", func(t *testing.T) {
		f := newFixture(t)
		ghost := &SessionIdentity{ID: uuid.New(), Email: "ghost@example.com"}

		err := f.svc.ChangePassword.Execute(ctx, ChangePasswordMessage{
			Actor:            ghost,
			PreviousPassword: "a",
			NewPassword:      "b",
		})
		requireTextCode(t, err, TextCodeAccountNotFound)
	})
}

func TestAdminSetPasswordHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("members are refused", func(t *testing.T) {
		f := newFixture(t)
		_, identity := f.member("ada@example.com")
		f.member("bob@example.com")

		err := f.svc.AdminSetPassword.Execute(ctx, AdminSetPasswordMessage{
			Actor:    identity,
			Email:    "bob@example.com",
			Password: "taken-over",
		})
		requireTextCode(t, err, TextCodeUnauthorized)
		assert.Equal(t, http.StatusUnauthorized, HTTPStatus(err))
	})

	t.Run("refusal does not reveal unknown accounts", func(t *testing.T) {
		f := newFixture(t)
		_, identity := f.member("ada@example.com")

		err := f.svc.AdminSetPassword.Execute(ctx, AdminSetPasswordMessage{
			Actor:    identity,
			Email:    "ghost@example.com",
			Password: "whatever",
		})
		requireTextCode(t, err, TextCodeUnauthorized)
	})

	t.Run("unknown account", func(t *testing.T) {
		f := newFixture(t)
		_, admin := f.admin()

		err := f.svc.AdminSetPassword.Execute(ctx, AdminSetPasswordMessage{
			Actor:    admin,
			Email:    "ghost@example.com",
			Password: "whatever",
		})
		requireTextCode(t, err, TextCodeAccountNotFound)
	})

	t.Run("migrates a legacy account", func(t *testing.T) {
		f := newFixture(t)
		_, admin := f.admin()

		roleID, err := f.svc.Roles.ID(ctx, RoleMember)
		require.NoError(t, err)
		_, err = f.svc.Repo.Accounts().Register(ctx, &Account{
			Name:          "Legacy",
			Email:         "legacy@example.com",
			RoleID:        roleID,
			EmailVerified: true,
			Verified:      true,
		})
		require.NoError(t, err)

		var profile Profile
		require.NoError(t, f.svc.AdminSetPassword.Execute(ctx, AdminSetPasswordMessage{
			Actor:      admin,
			Email:      "legacy@example.com",
			Password:   "migrated",
			OnResponse: func(p Profile) { profile = p },
		}))
		assert.Equal(t, "legacy@example.com", profile.Email)
		assert.Equal(t, RoleMember, profile.Role)

		_, err = f.svc.Authenticator.SignIn(ctx, &memorySessions{}, "legacy@example.com", "migrated")
		require.NoError(t, err)
	})
}

func TestRecoverPasswordHandler(t *testing.T) {
	ctx := context.Background()

	recoverable := func(f *fixture) *Account {
		a := f.account("Ada Lovelace", "ada@example.com", "member-password", RoleMember, true, true)
		_, err := f.db.NewUpdate().
			Model(&Account{}).
			Set("year_of_birth = ?", 1990).
			Where("id = ?", a.ID).
			Exec(ctx)
		require.NoError(t, err)
		return a
	}

	t.Run("missing fields", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.RecoverPassword.Execute(ctx, RecoverPasswordMessage{Email: "ada@example.com"})
		requireTextCode(t, err, TextCodeMissingBody)
	})

	t.Run("unknown email", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.RecoverPassword.Execute(ctx, RecoverPasswordMessage{
			Email:       "ghost@example.com",
			Name:        "Ghost",
			YearOfBirth: 1990,
		})
		requireTextCode(t, err, TextCodeAccountNotFound)
	})

	t.Run("details must match", func(t *testing.T) {
		f := newFixture(t)
		a := recoverable(f)
		salt := f.saltOf(a)

		for _, msg := range []RecoverPasswordMessage{
			{Email: "ada@example.com", Name: "Ada Byron", YearOfBirth: 1990},
			{Email: "ada@example.com", Name: "Ada Lovelace", YearOfBirth: 1991},
		} {
			err := f.svc.RecoverPassword.Execute(ctx, msg)
			requireTextCode(t, err, TextCodeRecoveryMismatch)
		}

		assert.Equal(t, salt, f.saltOf(a))
		assert.Empty(t, f.notifier.all())
	})

	t.Run("emails a working temporary password", func(t *testing.T) {
		f := newFixture(t)
		recoverable(f)

		require.NoError(t, f.svc.RecoverPassword.Execute(ctx, RecoverPasswordMessage{
			Email:       "ADA@example.com",
			Name:        "Ada Lovelace",
			YearOfBirth: 1990,
		}))

		n, found := f.notifier.lastTo("ada@example.com")
		require.True(t, found)
		temp := tempPasswordFrom(t, n.Body)
		assert.Len(t, temp, DefaultTempPasswordLength)

		_, err := f.svc.Authenticator.SignIn(ctx, &memorySessions{}, "ada@example.com", temp)
		require.NoError(t, err)

		_, err = f.svc.Authenticator.SignIn(ctx, &memorySessions{}, "ada@example.com", "member-password")
		requireTextCode(t, err, TextCodeInvalidCredentials)
	})

	t.Run("failed delivery keeps the old password", func(t *testing.T) {
		f := newFixture(t)
		a := recoverable(f)
		salt := f.saltOf(a)
		f.notifier.setFail(func(Notification) error { return errors.New("smtp down") })

		err := f.svc.RecoverPassword.Execute(ctx, RecoverPasswordMessage{
			Email:       "ada@example.com",
			Name:        "Ada Lovelace",
			YearOfBirth: 1990,
		})
		requireTextCode(t, err, TextCodeTempPasswordDelivery)
		assert.True(t, IsDependencyFailure(err))

		assert.Equal(t, salt, f.saltOf(a))
		_, err = f.svc.Authenticator.SignIn(ctx, &memorySessions{}, "ada@example.com", "member-password")
		require.NoError(t, err)
	})

	t.Run("slow delivery does not hold the database", func(t *testing.T) {
		f := newFixture(t)
		recoverable(f)
		f.member("bob@example.com")

		entered := make(chan struct{})
		release := make(chan struct{})
		var once sync.Once
		f.notifier.setFail(func(n Notification) error {
			if n.To == "ada@example.com" {
				once.Do(func() { close(entered) })
				<-release
			}
			return nil
		})

		recovered := make(chan error, 1)
		go func() {
			recovered <- f.svc.RecoverPassword.Execute(ctx, RecoverPasswordMessage{
				Email:       "ada@example.com",
				Name:        "Ada Lovelace",
				YearOfBirth: 1990,
			})
		}()
		<-entered

		signedIn := make(chan error, 1)
		go func() {
			_, err := f.svc.Authenticator.SignIn(ctx, &memorySessions{}, "bob@example.com", "member-password")
			signedIn <- err
		}()

		select {
		case err := <-signedIn:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			close(release)
			t.Fatal("sign-in waited for the recovery email")
		}

		close(release)
		require.NoError(t, <-recovered)
	})

	t.Run("rotation during delivery wins", func(t *testing.T) {
		f := newFixture(t)
		a := recoverable(f)

		entered := make(chan struct{})
		release := make(chan struct{})
		var once sync.Once
		f.notifier.setFail(func(n Notification) error {
			if n.To == "ada@example.com" {
				once.Do(func() { close(entered) })
				<-release
			}
			return nil
		})

		recovered := make(chan error, 1)
		go func() {
			recovered <- f.svc.RecoverPassword.Execute(ctx, RecoverPasswordMessage{
				Email:       "ada@example.com",
				Name:        "Ada Lovelace",
				YearOfBirth: 1990,
			})
		}()
		<-entered

		require.NoError(t, f.svc.Credentials.Rotate(ctx, f.reload(a.ID), "changed-password"))
		close(release)

		err := <-recovered
		requireTextCode(t, err, TextCodeCredentialConflict)

		_, err = f.svc.Authenticator.SignIn(ctx, &memorySessions{}, "ada@example.com", "changed-password")
		require.NoError(t, err)
	})
}

func TestRecoveryDetailsMatch(t *testing.T) {
	account := &Account{Name: "Ada Lovelace", YearOfBirth: 1990}

	tests := []struct {
		name string
		msg  RecoverPasswordMessage
		want bool
	}{
		{"exact", RecoverPasswordMessage{Name: "Ada Lovelace", YearOfBirth: 1990}, true},
		{"other case", RecoverPasswordMessage{Name: "ada lovelace", YearOfBirth: 1990}, false},
		{"padded", RecoverPasswordMessage{Name: " Ada Lovelace", YearOfBirth: 1990}, false},
		{"other name", RecoverPasswordMessage{Name: "Ada", YearOfBirth: 1990}, false},
		{"other year", RecoverPasswordMessage{Name: "Ada Lovelace", YearOfBirth: 1815}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, recoveryDetailsMatch(account, tt.msg))
		})
	}
}
