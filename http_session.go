package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

const (
	DefaultSessionTTL        = 24 * time.Hour
	DefaultSessionCookieName = "member_session"
	sessionAudience          = "member-session"
)

// SessionConfig configures the cookie session store.
type SessionConfig struct {
	CookieName     string
	CookieSecure   bool
	CookieHTTPOnly bool
	CookieSameSite string
	Expiration     time.Duration
	// Secret signs the session cookie.
	Secret string
	Issuer string
}

// CookieSessions keeps the session identity in a signed cookie.
type CookieSessions struct {
	cfg SessionConfig
	now func() time.Time
}

// NewCookieSessions creates the session store.
func NewCookieSessions(cfg SessionConfig) *CookieSessions {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultSessionCookieName
	}
	if cfg.Expiration <= 0 {
		cfg.Expiration = DefaultSessionTTL
	}
	if cfg.CookieSameSite == "" {
		cfg.CookieSameSite = "Lax"
	}

	return &CookieSessions{
		cfg: cfg,
		now: time.Now,
	}
}

// For binds the store to a request.
func (s *CookieSessions) For(ctx router.Context) SessionBoundary {
	return &cookieSession{ctx: ctx, store: s}
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Email           string `json:"email"`
	Name            string `json:"name,omitempty"`
	ProfileImageURL string `json:"picture,omitempty"`
	RoleID          string `json:"role"`
}

type cookieSession struct {
	ctx   router.Context
	store *CookieSessions
}

var _ SessionBoundary = (*cookieSession)(nil)

// Establish issues a fresh session cookie for identity.
func (s *cookieSession) Establish(_ context.Context, identity SessionIdentity) error {
	now := s.store.now()
	expires := now.Add(s.store.cfg.Expiration)

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   identity.ID.String(),
			Issuer:    s.store.cfg.Issuer,
			Audience:  jwt.ClaimStrings{sessionAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Email:           identity.Email,
		Name:            identity.Name,
		ProfileImageURL: identity.ProfileImageURL,
		RoleID:          identity.RoleID.String(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.store.cfg.Secret))
	if err != nil {
		return err
	}

	s.setCookie(signed, expires)
	return nil
}

func (s *cookieSession) Terminate(_ context.Context) error {
	s.setCookie("", s.store.now().Add(-time.Hour*24*365))
	return nil
}

func (s *cookieSession) Current(_ context.Context) (SessionIdentity, bool) {
	raw := s.ctx.Cookies(s.store.cfg.CookieName)
	if raw == "" {
		return SessionIdentity{}, false
	}

	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(s.store.cfg.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(sessionAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.store.now),
	)
	if err != nil {
		return SessionIdentity{}, false
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return SessionIdentity{}, false
	}

	roleID, err := uuid.Parse(claims.RoleID)
	if err != nil {
		return SessionIdentity{}, false
	}

	return SessionIdentity{
		ID:              id,
		Email:           claims.Email,
		Name:            claims.Name,
		ProfileImageURL: claims.ProfileImageURL,
		RoleID:          roleID,
	}, true
}

func (s *cookieSession) setCookie(value string, expires time.Time) {
	s.ctx.Cookie(&router.Cookie{
		Name:     s.store.cfg.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: s.store.cfg.CookieHTTPOnly,
		Secure:   s.store.cfg.CookieSecure,
		SameSite: s.store.cfg.CookieSameSite,
	})
}
