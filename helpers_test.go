package auth_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	auth "github.com/goliatone/go-auth-gate"
	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testSigningKey = "test-signing-key"
	testRefreshKey = "test-refresh-key"
)

func newTestConfig() *auth.EnvConfig {
	return &auth.EnvConfig{
		SigningKey:             testSigningKey,
		RefreshSigningKey:      testRefreshKey,
		SigningMethod:          "HS256",
		TokenExpiration:        time.Hour,
		RefreshTokenExpiration: 24 * time.Hour,
		AuthScheme:             "Bearer",
		ContextKey:             auth.DefaultContextKey,
		LookupTimeout:          time.Second,
	}
}

// By default we set an expiration time 1 hour from now
func signToken(t *testing.T, method jwt.SigningMethod, key []byte, claims jwt.MapClaims) string {
	t.Helper()

	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}

	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func accessToken(t *testing.T, cfg auth.Config, id uint64) string {
	t.Helper()
	token, _, err := auth.NewTokenIssuer(cfg).IssueAccess(id)
	require.NoError(t, err)
	return token
}

func refreshToken(t *testing.T, cfg auth.Config, id uint64) string {
	t.Helper()
	token, err := auth.NewTokenIssuer(cfg).IssueRefresh(id)
	require.NoError(t, err)
	return token
}

func textCodeOf(err error) string {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

type testIdentity struct {
	id       string
	username string
	email    string
	role     string
}

func (i testIdentity) ID() string       { return i.id }
func (i testIdentity) Username() string { return i.username }
func (i testIdentity) Email() string    { return i.email }
func (i testIdentity) Role() string     { return i.role }

// storeOf builds an in memory IdentityStore.
func storeOf(identities map[uint64]auth.Identity) auth.IdentityStore {
	return auth.IdentityStoreFunc(func(ctx context.Context, id uint64) (auth.Identity, error) {
		if identity, ok := identities[id]; ok {
			return identity, nil
		}
		return nil, auth.ErrIdentityNotFound
	})
}

// credentialsFor builds a CredentialStore that knows one account.
func credentialsFor(id uint64, identifier, password string) auth.CredentialStore {
	return credentialStoreFunc(func(ctx context.Context, ident, pw string) (uint64, auth.Identity, error) {
		if ident != identifier {
			return 0, nil, auth.ErrIdentityNotFound
		}
		if pw != password {
			return 0, nil, auth.ErrInvalidCredentials
		}
		return id, testIdentity{id: strconv.FormatUint(id, 10), username: "dana", email: identifier, role: "authenticated"}, nil
	})
}

type credentialStoreFunc func(ctx context.Context, identifier, password string) (uint64, auth.Identity, error)

func (f credentialStoreFunc) VerifyCredentials(ctx context.Context, identifier, password string) (uint64, auth.Identity, error) {
	return f(ctx, identifier, password)
}

// MockIdentityStore implements auth.IdentityStore for testing
type MockIdentityStore struct {
	mock.Mock
}

func (m *MockIdentityStore) FindByID(ctx context.Context, id uint64) (auth.Identity, error) {
	args := m.Called(ctx, id)
	identity, _ := args.Get(0).(auth.Identity)
	return identity, args.Error(1)
}

// MockCredentialStore implements auth.CredentialStore for testing
type MockCredentialStore struct {
	mock.Mock
}

func (m *MockCredentialStore) VerifyCredentials(ctx context.Context, identifier, password string) (uint64, auth.Identity, error) {
	args := m.Called(ctx, identifier, password)
	identity, _ := args.Get(1).(auth.Identity)
	return args.Get(0).(uint64), identity, args.Error(2)
}

type recordedLookup struct {
	strategy string
	outcome  string
}

type recordingObserver struct {
	mu        sync.Mutex
	decisions []auth.Decision
	lookups   []recordedLookup
}

func (r *recordingObserver) ObserveDecision(policy string, d auth.Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, d)
}

func (r *recordingObserver) ObserveLookup(strategy, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups = append(r.lookups, recordedLookup{strategy: strategy, outcome: outcome})
}
