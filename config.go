package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
)

// EnvConfig is the Config implementation read from AUTHGATE_ variables.
type EnvConfig struct {
	SigningKey             string        `env:"AUTHGATE_SIGNING_KEY"`
	RefreshSigningKey      string        `env:"AUTHGATE_REFRESH_SIGNING_KEY"`
	SigningMethod          string        `env:"AUTHGATE_SIGNING_METHOD"           envDefault:"HS256"`
	KeyID                  string        `env:"AUTHGATE_KEY_ID"`
	TokenExpiration        time.Duration `env:"AUTHGATE_TOKEN_EXPIRATION"         envDefault:"1h"`
	RefreshTokenExpiration time.Duration `env:"AUTHGATE_REFRESH_TOKEN_EXPIRATION" envDefault:"720h"`
	Issuer                 string        `env:"AUTHGATE_ISSUER"`
	Audience               []string      `env:"AUTHGATE_AUDIENCE"                 envSeparator:","`
	AuthScheme             string        `env:"AUTHGATE_AUTH_SCHEME"              envDefault:"Bearer"`
	ContextKey             string        `env:"AUTHGATE_CONTEXT_KEY"              envDefault:"auth"`
	LookupTimeout          time.Duration `env:"AUTHGATE_LOOKUP_TIMEOUT"           envDefault:"5s"`
}

// LoadConfig parses the environment. It does not validate, call Validate
// at the service boundary.
func LoadConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Audience = trimList(cfg.Audience)
	return cfg, nil
}

func (c EnvConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.SigningKey, validation.Required),
		validation.Field(&c.RefreshSigningKey, validation.By(func(value any) error {
			if key, _ := value.(string); key != "" && key == c.SigningKey {
				return fmt.Errorf("must differ from the signing key")
			}
			return nil
		})),
		validation.Field(&c.SigningMethod, validation.Required, validation.In("HS256", "HS384", "HS512")),
		validation.Field(&c.TokenExpiration, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.RefreshTokenExpiration, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.AuthScheme, validation.Required, validation.In(strings.TrimSpace(BearerScheme))),
		validation.Field(&c.ContextKey, validation.Required),
		validation.Field(&c.LookupTimeout, validation.Required, validation.Min(time.Millisecond)),
	)
}

func (c EnvConfig) GetSigningKey() string {
	return c.SigningKey
}

func (c EnvConfig) GetRefreshSigningKey() string {
	return c.RefreshSigningKey
}

func (c EnvConfig) GetSigningMethod() string {
	return c.SigningMethod
}

func (c EnvConfig) GetKeyID() string {
	return c.KeyID
}

func (c EnvConfig) GetTokenExpiration() time.Duration {
	return c.TokenExpiration
}

func (c EnvConfig) GetRefreshTokenExpiration() time.Duration {
	return c.RefreshTokenExpiration
}

func (c EnvConfig) GetIssuer() string {
	return c.Issuer
}

func (c EnvConfig) GetAudience() []string {
	return c.Audience
}

func (c EnvConfig) GetAuthScheme() string {
	return c.AuthScheme
}

func (c EnvConfig) GetContextKey() string {
	return c.ContextKey
}

func (c EnvConfig) GetLookupTimeout() time.Duration {
	return c.LookupTimeout
}

func trimList(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
