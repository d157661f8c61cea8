package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultEmailTokenTTL is how long a verification link stays valid.
const DefaultEmailTokenTTL = 72 * time.Hour

const emailTokenAudience = "email-verification"

// EmailTokens signs the links that confirm an email address. The subject is
// the account id, so a link cannot be forged for another account.
type EmailTokens struct {
	secret   []byte
	ttl      time.Duration
	issuer   string
	linkBase string
	now      func() time.Time
}

// NewEmailTokens creates a signer. linkBase is the absolute URL the token is
// appended to, e.g. https://example.com/auth/emailVerify.
func NewEmailTokens(secret, issuer, linkBase string, ttl time.Duration) *EmailTokens {
	if ttl <= 0 {
		ttl = DefaultEmailTokenTTL
	}
	return &EmailTokens{
		secret:   []byte(secret),
		ttl:      ttl,
		issuer:   issuer,
		linkBase: strings.TrimRight(linkBase, "/"),
		now:      time.Now,
	}
}

// Issue returns a signed token for accountID.
func (t *EmailTokens) Issue(accountID uuid.UUID) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   accountID.String(),
		Issuer:    t.issuer,
		Audience:  jwt.ClaimStrings{emailTokenAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign email token")
	}
	return signed, nil
}

// Link returns the verification URL for accountID.
func (t *EmailTokens) Link(accountID uuid.UUID) (string, error) {
	token, err := t.Issue(accountID)
	if err != nil {
		return "", err
	}
	return t.linkBase + "/" + token, nil
}

// Parse checks the signature of raw and returns the account id. Expiry is
// reported separately so already verified accounts can still succeed.
func (t *EmailTokens) Parse(raw string) (accountID uuid.UUID, expired bool, err error) {
	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return uuid.Nil, false, ErrInvalidEmailLink
	}

	if !hasAudience(claims.Audience, emailTokenAudience) {
		return uuid.Nil, false, ErrInvalidEmailLink
	}

	accountID, err = uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, false, ErrInvalidEmailLink
	}

	if claims.ExpiresAt != nil && t.now().After(claims.ExpiresAt.Time) {
		expired = true
	}
	return accountID, expired, nil
}

func hasAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}
