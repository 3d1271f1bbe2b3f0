package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

// DefaultContextKey is the router locals key the route guard uses.
const DefaultContextKey = "auth"

var authCtxKey = &contextKey{"auth"}

type contextKey struct {
	name string
}

// WithAuthContext sets the AuthContext in the given context
func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, authCtxKey, ac)
}

// FromContext finds the AuthContext in the standard context.
func FromContext(ctx context.Context) (*AuthContext, bool) {
	raw, ok := ctx.Value(authCtxKey).(*AuthContext)
	return raw, ok && raw != nil
}

// IdentityFromContext returns the fully verified identity, if any.
func IdentityFromContext(ctx context.Context) (*IdentityRecord, bool) {
	ac, ok := FromContext(ctx)
	if !ok || ac.Identity == nil {
		return nil, false
	}
	return ac.Identity, true
}

// GetAuthContext extracts the AuthContext from router locals under key.
func GetAuthContext(c router.Context, key string) (*AuthContext, bool) {
	if key == "" {
		key = DefaultContextKey
	}
	raw, ok := c.Locals(key).(*AuthContext)
	return raw, ok && raw != nil
}

// AttachIdentity lets an upstream middleware (a session layer for example)
// hand a resolved identity to the route guard, which then trusts it as is.
// A nil identity attaches nothing.
func AttachIdentity(c router.Context, key string, identity *IdentityRecord) {
	if identity == nil {
		return
	}
	if key == "" {
		key = DefaultContextKey
	}
	setAuthContext(c, key, &AuthContext{
		Identity: identity,
		State:    StateSessionPresent,
		Source:   identity.Source,
	})
}

func setAuthContext(c router.Context, key string, ac *AuthContext) {
	c.Locals(key, ac)
	c.SetContext(WithAuthContext(c.Context(), ac))
}
