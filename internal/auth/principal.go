// Package auth carries the authenticated caller through request handling.
package auth

import (
	"context"

	"shop-service/internal/model"
)

// Principal is the verified identity of the caller.
type Principal struct {
	UserID uint
	Email  string
	Role   model.Role
}

// IsAdmin reports whether the caller holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == model.RoleAdmin
}

// CanAccess reports whether the caller may act on a resource owned by ownerID.
func (p Principal) CanAccess(ownerID uint) bool {
	return p.IsAdmin() || (p.UserID != 0 && p.UserID == ownerID)
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored in ctx, if any.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
