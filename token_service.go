package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenPair is what a successful login or refresh hands back to clients.
type TokenPair struct {
	AccessToken  string    `json:"jwt"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// TokenIssuer signs access and refresh credentials that TokenVerifier can
// consume. It shares secrets and claim shape with the verifiers built from
// the same Config.
type TokenIssuer struct {
	signingKey        []byte
	refreshSigningKey []byte
	method            jwt.SigningMethod
	keyID             string
	tokenExpiration   time.Duration
	refreshExpiration time.Duration
	issuer            string
	audience          jwt.ClaimStrings
	now               func() time.Time
	logger            Logger
}

// NewTokenIssuer creates a new TokenIssuer instance
func NewTokenIssuer(cfg Config) *TokenIssuer {
	method := jwt.GetSigningMethod(cfg.GetSigningMethod())
	if method == nil {
		method = jwt.SigningMethodHS256
	}

	var aud jwt.ClaimStrings
	if audience := cfg.GetAudience(); len(audience) > 0 {
		aud = make(jwt.ClaimStrings, len(audience))
		copy(aud, audience)
	}

	return &TokenIssuer{
		signingKey:        []byte(cfg.GetSigningKey()),
		refreshSigningKey: []byte(cfg.GetRefreshSigningKey()),
		method:            method,
		keyID:             cfg.GetKeyID(),
		tokenExpiration:   cfg.GetTokenExpiration(),
		refreshExpiration: cfg.GetRefreshTokenExpiration(),
		issuer:            cfg.GetIssuer(),
		audience:          aud,
		now:               time.Now,
		logger:            defaultLogger(),
	}
}

func (ts *TokenIssuer) WithLogger(l Logger) *TokenIssuer {
	ts.logger = normalizeLogger(l)
	return ts
}

func (ts *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	if now != nil {
		ts.now = now
	}
	return ts
}

// IssueAccess signs a short lived access token for subject id.
func (ts *TokenIssuer) IssueAccess(id uint64) (string, time.Time, error) {
	claims := ts.newClaims(id, TokenUseAccess, ts.tokenExpiration)
	signed, err := ts.sign(claims, ts.signingKey)
	return signed, claims.Expires(), err
}

// IssueRefresh signs a long lived refresh token with the refresh secret.
func (ts *TokenIssuer) IssueRefresh(id uint64) (string, error) {
	claims := ts.newClaims(id, TokenUseRefresh, ts.refreshExpiration)
	return ts.sign(claims, ts.refreshSigningKey)
}

// IssuePair signs an access token and, when a refresh secret is configured,
// a refresh token.
func (ts *TokenIssuer) IssuePair(id uint64) (TokenPair, error) {
	access, expiresAt, err := ts.IssueAccess(id)
	if err != nil {
		return TokenPair{}, err
	}

	pair := TokenPair{AccessToken: access, ExpiresAt: expiresAt}
	if len(ts.refreshSigningKey) == 0 {
		return pair, nil
	}

	if pair.RefreshToken, err = ts.IssueRefresh(id); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

func (ts *TokenIssuer) newClaims(id uint64, use TokenUse, ttl time.Duration) *Claims {
	now := ts.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Issuer:   ts.issuer,
			Subject:  strconv.FormatUint(id, 10),
			Audience: ts.audience,
			IssuedAt: jwt.NewNumericDate(now),
		},
		UserID: id,
		Use:    use,
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return claims
}

func (ts *TokenIssuer) sign(claims *Claims, key []byte) (string, error) {
	if len(key) == 0 {
		ts.logger.Error("refusing to sign token without a configured secret", "token_use", claims.Use)
		return "", ErrSecretMissing
	}

	token := jwt.NewWithClaims(ts.method, claims)
	if ts.keyID != "" {
		token.Header["kid"] = ts.keyID
	}

	signed, err := token.SignedString(key)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}
	return signed, nil
}
