package auth

import (
	"context"
)

// requireSession fails with ErrUnauthorized when there is no caller.
func requireSession(actor *SessionIdentity) error {
	if actor == nil {
		return ErrUnauthorized
	}
	return nil
}

// requireAdmin fails with ErrUnauthorized unless the caller holds the Admin
// role. It does not touch the target resource, so a refusal says nothing
// about whether it exists.
func requireAdmin(ctx context.Context, roles *RoleDirectory, actor *SessionIdentity) error {
	if err := requireSession(actor); err != nil {
		return err
	}
	if !roles.IsAdmin(ctx, actor.RoleID) {
		return ErrUnauthorized
	}
	return nil
}
