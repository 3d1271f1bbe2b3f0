package auth

import (
	stderrors "errors"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeUnauthorized       = "UNAUTHORIZED"
	TextCodeIdentityNotFound   = "IDENTITY_NOT_FOUND"
	TextCodeStoreLookupFailure = "STORE_LOOKUP_FAILURE"
	TextCodeSecretMissing      = "SECRET_MISSING"
	TextCodeInvalidCreds       = "INVALID_CREDENTIALS"
	TextCodeInvalidPayload     = "INVALID_PAYLOAD"
	TextCodeDataParseError     = "DATA_PARSE_ERROR"
	TextCodePolicyUnnamed      = "POLICY_UNNAMED"
	TextCodePolicyExists       = "POLICY_EXISTS"
	TextCodeUnknownPolicy      = "UNKNOWN_POLICY"
)

// ErrUnauthorized is returned by the route guard when a policy denies the request.
var ErrUnauthorized = errors.New("Missing or invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(errors.CodeUnauthorized)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(errors.CodeNotFound)

// ErrStoreLookup wraps infrastructure failures while querying an identity store
var ErrStoreLookup = errors.New("identity store lookup failed", errors.CategoryInternal).
	WithTextCode(TextCodeStoreLookupFailure).
	WithCode(errors.CodeInternal)

// ErrSecretMissing is returned when a token must be signed without a configured secret
var ErrSecretMissing = errors.New("signing secret is not configured", errors.CategoryInternal).
	WithTextCode(TextCodeSecretMissing).
	WithCode(errors.CodeInternal)

// ErrInvalidCredentials is returned by local login on identifier/password mismatch
var ErrInvalidCredentials = errors.New("Invalid identifier or password", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeBadRequest)

// ErrUnableToParseData parse error
var ErrUnableToParseData = errors.New("unable to parse data", errors.CategoryBadInput).
	WithTextCode(TextCodeDataParseError).
	WithCode(errors.CodeBadRequest)

// ErrPolicyUnnamed, ErrPolicyExists and ErrUnknownPolicy are wiring errors
// from the PolicyRegistry.
var ErrPolicyUnnamed = errors.New("policy must have a name", errors.CategoryInternal).
	WithTextCode(TextCodePolicyUnnamed).
	WithCode(errors.CodeInternal)

var ErrPolicyExists = errors.New("policy already registered", errors.CategoryConflict).
	WithTextCode(TextCodePolicyExists).
	WithCode(errors.CodeInternal)

var ErrUnknownPolicy = errors.New("unknown policy", errors.CategoryNotFound).
	WithTextCode(TextCodeUnknownPolicy).
	WithCode(errors.CodeInternal)

// VerificationKind enumerates the ways a credential can fail verification.
type VerificationKind string

const (
	VerificationMalformed        VerificationKind = "malformed"
	VerificationSignatureInvalid VerificationKind = "signature_invalid"
	VerificationExpired          VerificationKind = "expired"
	VerificationSecretMissing    VerificationKind = "secret_missing"
)

// VerificationError is the only error type returned by TokenVerifier.Verify.
type VerificationError struct {
	Kind VerificationKind
	Err  error
}

func (e *VerificationError) Error() string {
	if e == nil {
		return "token verification failed"
	}
	msg := "token verification failed: " + string(e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *VerificationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func verificationError(kind VerificationKind, err error) *VerificationError {
	return &VerificationError{Kind: kind, Err: err}
}

// VerificationKindOf returns the kind of a verification failure, if err is one.
func VerificationKindOf(err error) (VerificationKind, bool) {
	var verr *VerificationError
	if stderrors.As(err, &verr) && verr != nil {
		return verr.Kind, true
	}
	return "", false
}

// DenyReason is the typed outcome of a denied gate decision.
type DenyReason string

const (
	ReasonNone             DenyReason = ""
	ReasonMissingHeader    DenyReason = "missing_header"
	ReasonMalformedScheme  DenyReason = "malformed_scheme"
	ReasonSecretMissing    DenyReason = "secret_missing"
	ReasonSignatureInvalid DenyReason = "signature_invalid"
	ReasonExpired          DenyReason = "expired"
	ReasonMalformed        DenyReason = "malformed"
	ReasonIdentityNotFound DenyReason = "identity_not_found"
	ReasonRefreshOnly      DenyReason = "refresh_only"
)

func reasonFromVerification(kind VerificationKind) DenyReason {
	switch kind {
	case VerificationSecretMissing:
		return ReasonSecretMissing
	case VerificationSignatureInvalid:
		return ReasonSignatureInvalid
	case VerificationExpired:
		return ReasonExpired
	default:
		return ReasonMalformed
	}
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	kind, ok := VerificationKindOf(err)
	return ok && kind == VerificationExpired
}

// IsMalformedError will check for malformed tokens
func IsMalformedError(err error) bool {
	kind, ok := VerificationKindOf(err)
	return ok && kind == VerificationMalformed
}

// IsIdentityNotFound reports whether err is a store miss.
func IsIdentityNotFound(err error) bool {
	return hasTextCode(err, TextCodeIdentityNotFound)
}

// IsStoreLookupFailure reports whether err is an identity store infrastructure failure.
func IsStoreLookupFailure(err error) bool {
	return hasTextCode(err, TextCodeStoreLookupFailure)
}

func hasTextCode(err error, code string) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) || richErr == nil {
		return false
	}
	return richErr.TextCode == code
}

// unauthorizedError clones ErrUnauthorized and tags it with the deny reason.
func unauthorizedError(reason DenyReason, policy string) *errors.Error {
	richErr := ErrUnauthorized.Clone()
	return richErr.WithMetadata(map[string]any{
		"reason": string(reason),
		"policy": policy,
	})
}

func storeLookupError(err error, strategy string) *errors.Error {
	return errors.Wrap(err, errors.CategoryInternal, ErrStoreLookup.Message).
		WithTextCode(TextCodeStoreLookupFailure).
		WithCode(errors.CodeInternal).
		WithMetadata(map[string]any{"strategy": strategy})
}
