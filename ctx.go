package auth

import (
	"context"
)

var identityCtxKey = &contextKey{"identity"}

type contextKey struct {
	name string
}

// WithIdentity sets the signed in identity in the given context
func WithIdentity(ctx context.Context, identity SessionIdentity) context.Context {
	return context.WithValue(ctx, identityCtxKey, identity)
}

// IdentityFromContext finds the signed in identity in the context.
func IdentityFromContext(ctx context.Context) (SessionIdentity, bool) {
	if ctx == nil {
		return SessionIdentity{}, false
	}
	raw, ok := ctx.Value(identityCtxKey).(SessionIdentity)
	return raw, ok
}

// ActorFromContext returns the signed in identity, or nil for anonymous callers.
func ActorFromContext(ctx context.Context) *SessionIdentity {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return nil
	}
	return &identity
}
