package store

import (
	"strconv"
	"time"

	"github.com/uptrace/bun"
)

// Account holds the columns both identity tables share.
type Account struct {
	ID           int64          `bun:"id,pk,autoincrement" json:"id"`
	Username     string         `bun:"username,notnull,unique" json:"username"`
	Email        string         `bun:"email,notnull,unique" json:"email"`
	Role         string         `bun:"role,notnull" json:"role"`
	PasswordHash string         `bun:"password_hash" json:"-"`
	Blocked      bool           `bun:"blocked,notnull,default:false" json:"blocked,omitempty"`
	Metadata     map[string]any `bun:"metadata" json:"metadata,omitempty"`
	CreatedAt    time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// PlatformUser is an account managed by the platform itself.
type PlatformUser struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	Account
}

// AppUser is an account owned by the application's custom user table.
type AppUser struct {
	bun.BaseModel `bun:"table:app_users,alias:app"`
	Account
}

type accountModel interface {
	account() *Account
}

func (u *PlatformUser) account() *Account { return &u.Account }
func (u *AppUser) account() *Account      { return &u.Account }

// accountIdentity adapts an Account to auth.Identity.
type accountIdentity struct {
	acct *Account
}

func (a accountIdentity) ID() string {
	return strconv.FormatInt(a.acct.ID, 10)
}

func (a accountIdentity) Username() string {
	return a.acct.Username
}

func (a accountIdentity) Email() string {
	return a.acct.Email
}

func (a accountIdentity) Role() string {
	return a.acct.Role
}

func (a accountIdentity) Attributes() map[string]any {
	return a.acct.Metadata
}
