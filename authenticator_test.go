package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAuthenticatorSignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("missing credentials", func(t *testing.T) {
		f := newFixture(t)
		sessions := new(MockSessions)

		result, err := f.svc.Authenticator.SignIn(ctx, sessions, "", "secret")
		requireTextCode(t, err, TextCodeMissingBody)
		assert.Equal(t, StateAnonymous, result.State)
		assert.Equal(t, http.StatusNoContent, HTTPStatus(err))
		sessions.AssertNotCalled(t, "Establish", mock.Anything, mock.Anything)
	})

	t.Run("unknown email", func(t *testing.T) {
		f := newFixture(t)
		sessions := new(MockSessions)

		result, err := f.svc.Authenticator.SignIn(ctx, sessions, "ghost@example.com", "secret")
		requireTextCode(t, err, TextCodeAccountNotFound)
		assert.Equal(t, StateCredentialInvalid, result.State)
		assert.Equal(t, http.StatusNotFound, HTTPStatus(err))
		assert.Contains(t, f.activity.types(), ActivityEventSignInFailure)
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newFixture(t)
		f.member("ada@example.com")
		sessions := new(MockSessions)

		result, err := f.svc.Authenticator.SignIn(ctx, sessions, "ada@example.com", "not-it")
		requireTextCode(t, err, TextCodeInvalidCredentials)
		assert.Equal(t, StateCredentialInvalid, result.State)
		assert.Equal(t, http.StatusUnauthorized, HTTPStatus(err))
		sessions.AssertNotCalled(t, "Establish", mock.Anything, mock.Anything)
	})

	t.Run("legacy account", func(t *testing.T) {
		f := newFixture(t)
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

		_, err = f.svc.Authenticator.SignIn(ctx, new(MockSessions), "legacy@example.com", "whatever")
		requireTextCode(t, err, TextCodeLegacyMigration)
		assert.Equal(t, http.StatusNotImplemented, HTTPStatus(err))
	})

	t.Run("unverified email terminates session", func(t *testing.T) {
		f := newFixture(t)
		f.account("Ada", "ada@example.com", "member-password", RoleMember, false, true)

		sessions := new(MockSessions)
		sessions.On("Terminate", mock.Anything).Return(nil).Once()

		result, err := f.svc.Authenticator.SignIn(ctx, sessions, "ada@example.com", "member-password")
		requireTextCode(t, err, TextCodeEmailNotVerified)
		assert.Equal(t, StateSessionDenied, result.State)
		assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
		sessions.AssertExpectations(t)
		sessions.AssertNotCalled(t, "Establish", mock.Anything, mock.Anything)
	})

	t.Run("unapproved account terminates session", func(t *testing.T) {
		f := newFixture(t)
		f.account("Ada", "ada@example.com", "member-password", RoleMember, true, false)

		sessions := &memorySessions{}
		_, err := f.svc.Authenticator.SignIn(ctx, sessions, "ada@example.com", "member-password")
		requireTextCode(t, err, TextCodeAccountNotVerified)
		assert.Equal(t, 1, sessions.terminated)
		assert.Nil(t, sessions.identity)
	})

	t.Run("email check comes first", func(t *testing.T) {
		f := newFixture(t)
		f.account("Ada", "ada@example.com", "member-password", RoleMember, false, false)

		_, err := f.svc.Authenticator.SignIn(ctx, &memorySessions{}, "ada@example.com", "member-password")
		requireTextCode(t, err, TextCodeEmailNotVerified)
	})

	t.Run("success establishes session", func(t *testing.T) {
		f := newFixture(t)
		a, _ := f.member("ada@example.com")
		want := IdentityFromAccount(a)

		sessions := new(MockSessions)
		sessions.On("Establish", mock.Anything, want).Return(nil).Once()

		result, err := f.svc.Authenticator.SignIn(ctx, sessions, "ADA@example.com", "member-password")
		require.NoError(t, err)
		sessions.AssertExpectations(t)

		assert.Equal(t, StateSessionEstablished, result.State)
		assert.Equal(t, want, result.Identity)
		assert.Equal(t, "ada@example.com", result.Profile.Email)
		assert.Equal(t, RoleMember, result.Profile.Role)
		assert.Contains(t, f.activity.types(), ActivityEventSignInSuccess)
	})

	t.Run("session store failure", func(t *testing.T) {
		f := newFixture(t)
		f.member("ada@example.com")

		sessions := new(MockSessions)
		sessions.On("Establish", mock.Anything, mock.Anything).Return(errors.New("store down"))

		result, err := f.svc.Authenticator.SignIn(ctx, sessions, "ada@example.com", "member-password")
		require.Error(t, err)
		assert.Equal(t, StateSessionDenied, result.State)
		assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
	})
}

func TestAuthenticatorSignOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, identity := f.member("ada@example.com")

	sessions := &memorySessions{identity: identity}
	f.svc.Authenticator.SignOut(ctx, sessions)

	assert.Equal(t, 1, sessions.terminated)
	assert.Nil(t, sessions.identity)
	assert.Contains(t, f.activity.types(), ActivityEventSignOut)

	// signing out twice is harmless
	f.svc.Authenticator.SignOut(ctx, sessions)
	assert.Equal(t, 2, sessions.terminated)
}
