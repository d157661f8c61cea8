package auth

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

const (
	// RoleAdmin may review verifications and manage any account
	RoleAdmin = "Admin"
	// RoleMember is the default role for signups
	RoleMember = "Member"
)

// DefaultRoles are created by EnsureDefaults at startup.
var DefaultRoles = []string{RoleAdmin, RoleMember}

// RoleDirectory resolves role identifiers to names. Names are cached since
// roles are never renamed at runtime.
type RoleDirectory struct {
	roles Roles
	mu    sync.RWMutex
	names map[uuid.UUID]string
	ids   map[string]uuid.UUID
}

// NewRoleDirectory creates a directory backed by the role store.
func NewRoleDirectory(roles Roles) *RoleDirectory {
	return &RoleDirectory{
		roles: roles,
		names: make(map[uuid.UUID]string),
		ids:   make(map[string]uuid.UUID),
	}
}

// Name returns the role name for id.
func (d *RoleDirectory) Name(ctx context.Context, id uuid.UUID) (string, error) {
	d.mu.RLock()
	name, ok := d.names[id]
	d.mu.RUnlock()
	if ok {
		return name, nil
	}

	role, err := d.roles.GetByID(ctx, id.String())
	if err != nil {
		return "", err
	}
	d.remember(role)
	return role.Name, nil
}

// ID returns the identifier of the named role.
func (d *RoleDirectory) ID(ctx context.Context, name string) (uuid.UUID, error) {
	d.mu.RLock()
	id, ok := d.ids[name]
	d.mu.RUnlock()
	if ok {
		return id, nil
	}

	role, err := d.roles.GetByName(ctx, name)
	if err != nil {
		return uuid.Nil, err
	}
	d.remember(role)
	return role.ID, nil
}

// IsAdmin reports whether id names the Admin role.
func (d *RoleDirectory) IsAdmin(ctx context.Context, id uuid.UUID) bool {
	name, err := d.Name(ctx, id)
	return err == nil && name == RoleAdmin
}

func (d *RoleDirectory) remember(role *Role) {
	d.mu.Lock()
	d.names[role.ID] = role.Name
	d.ids[role.Name] = role.ID
	d.mu.Unlock()
}
