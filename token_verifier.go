package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier checks a credential signature and expiry against a
// secret injected at construction time and decodes its claims.
type TokenVerifier struct {
	secret            []byte
	method            string
	keyID             string
	issuer            string
	audience          []string
	use               TokenUse
	leeway            time.Duration
	expirationRequire bool
	now               func() time.Time
	keyFunc           jwt.Keyfunc
	logger            Logger
}

// VerifierOption configures a TokenVerifier
type VerifierOption func(*TokenVerifier)

// WithKeyID requires tokens to carry a matching `kid` header.
func WithKeyID(kid string) VerifierOption {
	return func(v *TokenVerifier) {
		v.keyID = kid
	}
}

// WithSigningMethod overrides the HS256 default, must be an HMAC method.
func WithSigningMethod(alg string) VerifierOption {
	return func(v *TokenVerifier) {
		if alg != "" {
			v.method = alg
		}
	}
}

func WithIssuer(issuer string) VerifierOption {
	return func(v *TokenVerifier) {
		v.issuer = issuer
	}
}

func WithAudience(audience ...string) VerifierOption {
	return func(v *TokenVerifier) {
		v.audience = append([]string(nil), audience...)
	}
}

// WithTokenUse restricts the verifier to access or refresh tokens.
func WithTokenUse(use TokenUse) VerifierOption {
	return func(v *TokenVerifier) {
		v.use = use
	}
}

func WithLeeway(d time.Duration) VerifierOption {
	return func(v *TokenVerifier) {
		v.leeway = d
	}
}

// WithExpirationRequired rejects tokens without an `exp` claim.
func WithExpirationRequired() VerifierOption {
	return func(v *TokenVerifier) {
		v.expirationRequire = true
	}
}

func WithClock(now func() time.Time) VerifierOption {
	return func(v *TokenVerifier) {
		if now != nil {
			v.now = now
		}
	}
}

func WithVerifierLogger(l Logger) VerifierOption {
	return func(v *TokenVerifier) {
		v.logger = normalizeLogger(l)
	}
}

// NewTokenVerifier returns a verifier bound to secret. An empty secret is
// accepted here and reported as SecretMissing on every Verify call.
func NewTokenVerifier(secret []byte, opts ...VerifierOption) *TokenVerifier {
	v := &TokenVerifier{
		secret: append([]byte(nil), secret...),
		method: jwt.SigningMethodHS256.Alg(),
		now:    time.Now,
		logger: defaultLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	v.keyFunc = v.buildKeyFunc()
	return v
}

// NewAccessVerifier builds the verifier for access credentials from cfg.
func NewAccessVerifier(cfg Config, opts ...VerifierOption) *TokenVerifier {
	base := []VerifierOption{
		WithSigningMethod(cfg.GetSigningMethod()),
		WithKeyID(cfg.GetKeyID()),
		WithIssuer(cfg.GetIssuer()),
		WithAudience(cfg.GetAudience()...),
		WithTokenUse(TokenUseAccess),
	}
	return NewTokenVerifier([]byte(cfg.GetSigningKey()), append(base, opts...)...)
}

// NewRefreshVerifier builds the verifier for refresh credentials from cfg.
// It uses the distinct refresh secret and always enforces expiry.
func NewRefreshVerifier(cfg Config, opts ...VerifierOption) *TokenVerifier {
	base := []VerifierOption{
		WithSigningMethod(cfg.GetSigningMethod()),
		WithKeyID(cfg.GetKeyID()),
		WithIssuer(cfg.GetIssuer()),
		WithTokenUse(TokenUseRefresh),
		WithExpirationRequired(),
	}
	return NewTokenVerifier([]byte(cfg.GetRefreshSigningKey()), append(base, opts...)...)
}

// Configured reports whether the verifier holds a secret.
func (v *TokenVerifier) Configured() bool {
	return v != nil && len(v.secret) > 0
}

// Verify parses and validates raw. Errors are always *VerificationError.
func (v *TokenVerifier) Verify(raw string) (*Claims, error) {
	if !v.Configured() {
		return nil, verificationError(VerificationSecretMissing, nil)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, v.keyFunc, v.parserOptions()...)
	if err != nil {
		kind := classifyParseError(err)
		v.logger.Debug("token verification failed", "kind", string(kind), "error", err)
		return nil, verificationError(kind, err)
	}

	if !v.acceptsAudience(claims.Audience) {
		return nil, verificationError(VerificationMalformed, jwt.ErrTokenInvalidAudience)
	}

	if !v.acceptsUse(claims.Use) {
		return nil, verificationError(VerificationMalformed, fmt.Errorf("unexpected token use %q", claims.Use))
	}

	if claims.SubjectID() == 0 {
		return nil, verificationError(VerificationMalformed, errors.New("token has no subject id"))
	}

	return claims, nil
}

// acceptsAudience passes when no audience is configured or when the token
// names at least one of the configured audiences.
func (v *TokenVerifier) acceptsAudience(aud jwt.ClaimStrings) bool {
	if len(v.audience) == 0 {
		return true
	}
	for _, want := range v.audience {
		for _, got := range aud {
			if got == want {
				return true
			}
		}
	}
	return false
}

func (v *TokenVerifier) acceptsUse(use TokenUse) bool {
	switch v.use {
	case TokenUseRefresh:
		return use == TokenUseRefresh
	case TokenUseAccess:
		// tokens from issuers that predate token_use carry no claim
		return use == "" || use == TokenUseAccess
	default:
		return true
	}
}

func (v *TokenVerifier) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.method}),
		jwt.WithTimeFunc(v.now),
		jwt.WithIssuedAt(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.leeway > 0 {
		opts = append(opts, jwt.WithLeeway(v.leeway))
	}
	if v.expirationRequire {
		opts = append(opts, jwt.WithExpirationRequired())
	}
	return opts
}

func (v *TokenVerifier) buildKeyFunc() jwt.Keyfunc {
	if v.keyID == "" {
		secret := v.secret
		return func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return secret, nil
		}
	}

	given := map[string]keyfunc.GivenKey{
		v.keyID: keyfunc.NewGivenCustom(v.secret, keyfunc.GivenKeyOptions{
			Algorithm: v.method,
		}),
	}
	return keyfunc.NewGiven(given).Keyfunc
}

func classifyParseError(err error) VerificationKind {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return VerificationMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return VerificationSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return VerificationExpired
	default:
		return VerificationMalformed
	}
}
