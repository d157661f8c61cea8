package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account is a member of the application.
type Account struct {
	bun.BaseModel     `bun:"table:accounts,alias:acc"`
	ID                uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Name              string     `bun:"name,notnull" json:"name"`
	Email             string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash      string     `bun:"password_hash,nullzero" json:"-"`
	RoleID            uuid.UUID  `bun:"role_id,type:uuid,notnull" json:"roleId"`
	EmailVerified     bool       `bun:"email_verified,notnull,default:false" json:"emailVerified"`
	Verified          bool       `bun:"verified,notnull,default:false" json:"verified"`
	YearOfBirth       int        `bun:"year_of_birth" json:"yearOfBirth"`
	Gender            string     `bun:"gender" json:"gender"`
	EnrolledYear      int        `bun:"enrolled_year" json:"enrolledYear"`
	Major             string     `bun:"major" json:"major"`
	ProfileImageURL   string     `bun:"profile_image_url" json:"profileImageUrl"`
	ChatID            string     `bun:"chat_id" json:"chatId"`
	CredentialVersion int64      `bun:"credential_version,notnull,default:0" json:"-"`
	CreatedAt         *time.Time `bun:"created_at,nullzero" json:"createdAt,omitempty"`
	UpdatedAt         *time.Time `bun:"updated_at,nullzero" json:"updatedAt,omitempty"`
}

// HasCredentials reports whether the account carries a password hash.
func (a *Account) HasCredentials() bool {
	return a != nil && a.PasswordHash != ""
}

// Salt is the per-account KDF salt. An account has at most one.
type Salt struct {
	bun.BaseModel `bun:"table:salts,alias:slt"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	AccountID     uuid.UUID  `bun:"account_id,type:uuid,notnull,unique" json:"accountId"`
	Value         string     `bun:"value,notnull" json:"-"`
	CreatedAt     *time.Time `bun:"created_at,nullzero" json:"createdAt,omitempty"`
}

// Role is a named permission level.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Name          string    `bun:"name,notnull,unique" json:"name"`
}

// VerificationRequest is an outstanding identity document awaiting review.
type VerificationRequest struct {
	bun.BaseModel `bun:"table:verification_requests,alias:vrq"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	AccountID     uuid.UUID  `bun:"account_id,type:uuid,notnull,unique" json:"accountId"`
	FileURL       string     `bun:"file_url,notnull" json:"fileUrl"`
	Account       *Account   `bun:"rel:belongs-to,join:account_id=id" json:"-"`
	CreatedAt     *time.Time `bun:"created_at,nullzero" json:"createdAt,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero" json:"updatedAt,omitempty"`
}

var (
	_ bun.BeforeAppendModelHook = (*Account)(nil)
	_ bun.BeforeAppendModelHook = (*Salt)(nil)
	_ bun.BeforeAppendModelHook = (*VerificationRequest)(nil)
)

// BeforeAppendModel sets identifiers and timestamps.
func (a *Account) BeforeAppendModel(_ context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		a.CreatedAt = &now
		a.UpdatedAt = &now
	case *bun.UpdateQuery:
		a.UpdatedAt = &now
	}
	return nil
}

// BeforeAppendModel sets identifiers and timestamps.
func (s *Salt) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		now := time.Now().UTC()
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		s.CreatedAt = &now
	}
	return nil
}

// BeforeAppendModel sets identifiers and timestamps.
func (v *VerificationRequest) BeforeAppendModel(_ context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if v.ID == uuid.Nil {
			v.ID = uuid.New()
		}
		if v.CreatedAt == nil {
			v.CreatedAt = &now
		}
		v.UpdatedAt = &now
	case *bun.UpdateQuery:
		v.UpdatedAt = &now
	}
	return nil
}
