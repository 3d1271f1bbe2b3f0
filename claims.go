package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenUse distinguishes short lived access tokens from refresh tokens.
type TokenUse = string

const (
	TokenUseAccess  TokenUse = "access"
	TokenUseRefresh TokenUse = "refresh"
)

// Claims is the decoded payload of a verified credential
type Claims struct {
	jwt.RegisteredClaims
	UserID uint64   `json:"id,omitempty"`
	Use    TokenUse `json:"token_use,omitempty"`
}

// SubjectID returns the numeric subject. The `id` claim wins over `sub`,
// a non numeric or zero subject yields 0.
func (c *Claims) SubjectID() uint64 {
	if c == nil {
		return 0
	}
	if c.UserID != 0 {
		return c.UserID
	}
	id, err := strconv.ParseUint(c.RegisteredClaims.Subject, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Expires returns the expiration time
func (c *Claims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *Claims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
