package auth

import (
	"context"
	"time"

	"pkt.systems/pslog"
)

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Identity holds the attributes of an identity as returned by a store
type Identity interface {
	ID() string
	Username() string
	Email() string
	Role() string
}

// IdentityStore is a source of identities keyed by numeric subject id.
// Implementations return ErrIdentityNotFound when the id is unknown, any
// other error is treated as an infrastructure failure.
type IdentityStore interface {
	FindByID(ctx context.Context, id uint64) (Identity, error)
}

// IdentityStoreFunc adapts a function into an IdentityStore.
type IdentityStoreFunc func(ctx context.Context, id uint64) (Identity, error)

// FindByID satisfies the IdentityStore interface.
func (f IdentityStoreFunc) FindByID(ctx context.Context, id uint64) (Identity, error) {
	return f(ctx, id)
}

// Config holds auth options. Values are read once at construction time.
type Config interface {
	GetSigningKey() string
	GetRefreshSigningKey() string
	GetSigningMethod() string
	GetKeyID() string
	GetTokenExpiration() time.Duration
	GetRefreshTokenExpiration() time.Duration
	GetIssuer() string
	GetAudience() []string
	GetAuthScheme() string
	GetContextKey() string
	GetLookupTimeout() time.Duration
}

func defaultLogger() Logger {
	return pslog.NoopLogger()
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defaultLogger()
	}
	return l
}
