package auth

import (
	"context"

	"github.com/google/uuid"
)

// SessionIdentity is the projection of an account kept in the session.
type SessionIdentity struct {
	ID              uuid.UUID `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	ProfileImageURL string    `json:"profileImageUrl"`
	RoleID          uuid.UUID `json:"roleId"`
}

// IdentityFromAccount projects account into a session identity.
func IdentityFromAccount(account *Account) SessionIdentity {
	return SessionIdentity{
		ID:              account.ID,
		Email:           account.Email,
		Name:            account.Name,
		ProfileImageURL: account.ProfileImageURL,
		RoleID:          account.RoleID,
	}
}

// Profile is the account view returned to its owner.
type Profile struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	ProfileImageURL string `json:"profileImageUrl"`
	EnrolledYear    int    `json:"enrolledYear"`
	Major           string `json:"major"`
	YearOfBirth     int    `json:"yearOfBirth"`
	Role            string `json:"role"`
	Gender          string `json:"gender"`
}

// NewProfile builds the profile of account, resolving its role name.
func NewProfile(ctx context.Context, roles *RoleDirectory, account *Account) Profile {
	p := Profile{
		Name:            account.Name,
		Email:           account.Email,
		ProfileImageURL: account.ProfileImageURL,
		EnrolledYear:    account.EnrolledYear,
		Major:           account.Major,
		YearOfBirth:     account.YearOfBirth,
		Gender:          account.Gender,
	}
	if roles != nil {
		if name, err := roles.Name(ctx, account.RoleID); err == nil {
			p.Role = name
		}
	}
	return p
}
