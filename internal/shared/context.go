package shared

import "context"

// Identity carries the authenticated tenant and user supplied by the
// upstream identity layer. The core treats both as opaque identifiers.
type Identity struct {
	TenantID string
	UserID   string
}

type identityContextKey struct{}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from context.
func IdentityFromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(identityContextKey{}).(Identity)
	return id
}
