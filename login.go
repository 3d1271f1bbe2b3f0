package auth

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// CredentialStore checks an identifier/password pair. Unknown identifiers
// return ErrIdentityNotFound, a password mismatch ErrInvalidCredentials.
type CredentialStore interface {
	VerifyCredentials(ctx context.Context, identifier, password string) (uint64, Identity, error)
}

// LoginPayload is the local login request body.
type LoginPayload struct {
	Identifier string `json:"identifier" form:"identifier"`
	Password   string `json:"password" form:"password"`
}

func (p LoginPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Identifier, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Password, validation.Required, validation.Length(1, 200)),
	)
}

// LoginResult is what a successful login returns.
type LoginResult struct {
	TokenPair
	User *IdentityRecord `json:"user"`
}

// LoginService authenticates against the primary store first and the
// custom store second, then issues a credential pair.
type LoginService struct {
	stores []namedCredentialStore
	issuer *TokenIssuer
	logger Logger
}

type namedCredentialStore struct {
	source Source
	store  CredentialStore
}

// NewLoginService takes the stores in lookup order. nil stores are skipped.
func NewLoginService(issuer *TokenIssuer, primary, custom CredentialStore) *LoginService {
	s := &LoginService{issuer: issuer, logger: defaultLogger()}
	if primary != nil {
		s.stores = append(s.stores, namedCredentialStore{source: SourcePrimary, store: primary})
	}
	if custom != nil {
		s.stores = append(s.stores, namedCredentialStore{source: SourceCustom, store: custom})
	}
	return s
}

func (s *LoginService) WithLogger(l Logger) *LoginService {
	s.logger = normalizeLogger(l)
	return s
}

// Login verifies the pair and returns the identity with fresh credentials.
// An identifier found in a store ends the search, whatever the password.
func (s *LoginService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	identifier = strings.TrimSpace(identifier)

	for _, candidate := range s.stores {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id, identity, err := candidate.store.VerifyCredentials(ctx, identifier, password)
		if err != nil {
			if IsIdentityNotFound(err) {
				continue
			}
			if hasTextCode(err, TextCodeInvalidCreds) {
				s.logger.Info("login rejected", "source", string(candidate.source))
				return nil, ErrInvalidCredentials
			}
			s.logger.Error("login store failure", "source", string(candidate.source), "error", err)
			return nil, storeLookupError(err, string(candidate.source))
		}

		pair, err := s.issuer.IssuePair(id)
		if err != nil {
			return nil, err
		}

		return &LoginResult{
			TokenPair: pair,
			User:      NewIdentityRecord(id, candidate.source, identity),
		}, nil
	}

	s.logger.Info("login rejected, unknown identifier")
	return nil, ErrInvalidCredentials
}

// LoginHandler serves POST /api/auth/local.
func LoginHandler(svc *LoginService) router.HandlerFunc {
	return func(ctx router.Context) error {
		payload := LoginPayload{}
		if err := ctx.Bind(&payload); err != nil {
			return errors.Wrap(err, errors.CategoryBadInput, ErrUnableToParseData.Message).
				WithTextCode(TextCodeDataParseError).
				WithCode(errors.CodeBadRequest)
		}

		if err := payload.Validate(); err != nil {
			return errors.Wrap(err, errors.CategoryValidation, "Invalid login request payload").
				WithTextCode(TextCodeInvalidPayload).
				WithCode(errors.CodeBadRequest)
		}

		result, err := svc.Login(ctx.Context(), payload.Identifier, payload.Password)
		if err != nil {
			return err
		}
		return ctx.JSON(router.StatusOK, result)
	}
}
