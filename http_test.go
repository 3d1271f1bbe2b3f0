package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-auth-gate"
	"github.com/goliatone/go-auth-gate/middleware/unauthorized"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

type testApp struct {
	app   *fiber.App
	chain *auth.Chain
	obs   *recordingObserver
}

// newRouterApp returns the fiber app behind a go-router adapter so tests
// can drive it with app.Test.
func newRouterApp(errorHandler fiber.ErrorHandler) (router.Server[*fiber.App], *fiber.App) {
	var app *fiber.App
	srv := router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		app = fiber.New(fiber.Config{ErrorHandler: errorHandler})
		return app
	})
	return srv, app
}

func newTestApp(t *testing.T, primary, custom auth.IdentityStore, upstream ...router.MiddlewareFunc) *testApp {
	t.Helper()

	obs := &recordingObserver{}
	chain := auth.NewChain(newTestConfig(), primary, custom, auth.WithChainObserver(obs))
	guard := chain.Guard

	srv, app := newRouterApp(guard.ErrorHandler)
	r := srv.Router()
	r.Use(unauthorized.New(unauthorized.Config{Now: func() time.Time { return fixedNow }}))
	for _, mw := range upstream {
		r.Use(mw)
	}

	r.Post("/api/auth/local", auth.LoginHandler(
		auth.NewLoginService(chain.Issuer, nil, credentialsFor(42, "dana@example.com", "secret")),
	))
	r.Post("/api/auth/refresh", guard.RefreshHandler(chain.Issuer), guard.Protect(auth.PolicyRefreshToken))
	r.Get("/api/users/me", guard.MeHandler(), guard.Protect(auth.PolicyAuthenticated))
	r.Get("/api/context", func(ctx router.Context) error {
		identity, ok := auth.IdentityFromContext(ctx.Context())
		if !ok {
			return fiber.ErrInternalServerError
		}
		return ctx.SendString(identity.Username)
	}, guard.Protect())

	return &testApp{app: app, chain: chain, obs: obs}
}

func (a *testApp) do(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func refreshRequest(token, header string) *http.Request {
	return refreshRequestTo("/api/auth/refresh", token, header)
}

func refreshRequestTo(path, token, header string) *http.Request {
	body, _ := json.Marshal(map[string]string{"refresh_token": token})
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(body)))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if header != "" {
		req.Header.Set(fiber.HeaderAuthorization, header)
	}
	return req
}

func customStore() auth.IdentityStore {
	return storeOf(map[uint64]auth.Identity{
		42: testIdentity{id: "42", username: "dana", email: "dana@example.com", role: "authenticated"},
	})
}

func TestRouteGuard_NoHeaderReturnsEnvelope(t *testing.T) {
	ta := newTestApp(t, storeOf(nil), customStore())

	resp, body := ta.do(t, httptest.NewRequest(http.MethodGet, "/api/users/me", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var env unauthorized.Envelope
	require.NoError(t, json.Unmarshal([]byte(body), &env))
	assert.Nil(t, env.Data)
	assert.Equal(t, http.StatusUnauthorized, env.Error.Status)
	assert.Equal(t, "UnauthorizedError", env.Error.Name)
	assert.Equal(t, "/api/users/me", env.Error.Details.RequestPath)
	assert.Equal(t, "2026-01-02T15:04:05.000Z", env.Error.Details.Timestamp)

	require.Len(t, ta.obs.decisions, 1)
	assert.Equal(t, auth.ReasonMissingHeader, ta.obs.decisions[0].Reason)
}

func TestRouteGuard_CustomStoreIdentity(t *testing.T) {
	ta := newTestApp(t, storeOf(nil), customStore())

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+accessToken(t, ta.chain.Config, 42))
	resp, body := ta.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var out struct {
		Data auth.IdentityRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, uint64(42), out.Data.ID)
	assert.Equal(t, auth.SourceCustom, out.Data.Source)
	assert.Equal(t, "dana", out.Data.Username)
}

func TestRouteGuard_IdentityInUserContext(t *testing.T) {
	ta := newTestApp(t, storeOf(nil), customStore())

	req := httptest.NewRequest(http.MethodGet, "/api/context", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+accessToken(t, ta.chain.Config, 42))
	resp, body := ta.do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "dana", body)
}

func TestRouteGuard_AttachedSession(t *testing.T) {
	attach := func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			auth.AttachIdentity(ctx, auth.DefaultContextKey, &auth.IdentityRecord{
				ID:       7,
				Source:   auth.SourcePrimary,
				Username: "session-user",
			})
			return next(ctx)
		}
	}
	ta := newTestApp(t, storeOf(nil), storeOf(nil), attach)

	resp, body := ta.do(t, httptest.NewRequest(http.MethodGet, "/api/users/me", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, body, "session-user")
}

func TestRouteGuard_NilAttachedSessionIsIgnored(t *testing.T) {
	attach := func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			auth.AttachIdentity(ctx, "", nil)
			return next(ctx)
		}
	}
	ta := newTestApp(t, storeOf(nil), customStore(), attach)

	resp, body := ta.do(t, httptest.NewRequest(http.MethodGet, "/api/users/me", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, unauthorized.ErrorName)

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+accessToken(t, ta.chain.Config, 42))
	resp, body = ta.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, body, "dana")
}

func TestRouteGuard_RefreshFlow(t *testing.T) {
	ta := newTestApp(t, storeOf(nil), customStore())
	cfg := ta.chain.Config

	t.Run("valid refresh token", func(t *testing.T) {
		resp, body := ta.do(t, refreshRequest(refreshToken(t, cfg, 42), ""))
		require.Equal(t, http.StatusOK, resp.StatusCode, body)

		var pair auth.TokenPair
		require.NoError(t, json.Unmarshal([]byte(body), &pair))
		claims, err := ta.chain.Verifier.Verify(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, uint64(42), claims.SubjectID())

		_, err = ta.chain.RefreshVerifier.Verify(pair.RefreshToken)
		assert.NoError(t, err)
	})

	t.Run("invalid refresh token falls back to the header", func(t *testing.T) {
		resp, body := ta.do(t, refreshRequest("garbage", "Bearer "+accessToken(t, cfg, 42)))
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		assert.Contains(t, body, `"jwt"`)
	})

	t.Run("both fail", func(t *testing.T) {
		resp, body := ta.do(t, refreshRequest("garbage", "Bearer also-garbage"))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.JSONEq(t, `{
			"data": null,
			"error": {
				"status": 401,
				"name": "UnauthorizedError",
				"message": "Missing or invalid credentials",
				"details": {"requestPath": "/api/auth/refresh", "timestamp": "2026-01-02T15:04:05.000Z"}
			}
		}`, body)
	})

	t.Run("no body at all", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
		resp, _ := ta.do(t, req)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestRouteGuard_StoreFailureIsNotUnauthorized(t *testing.T) {
	broken := auth.IdentityStoreFunc(func(ctx context.Context, id uint64) (auth.Identity, error) {
		return nil, errors.New("database is locked")
	})
	ta := newTestApp(t, broken, customStore())

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+accessToken(t, ta.chain.Config, 42))
	resp, body := ta.do(t, req)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NotContains(t, body, "UnauthorizedError")
	assert.Contains(t, body, auth.TextCodeStoreLookupFailure)
}

func TestRouteGuard_UnknownPolicyPanics(t *testing.T) {
	chain := auth.NewChain(newTestConfig(), storeOf(nil), storeOf(nil))
	assert.Panics(t, func() {
		chain.Guard.Protect(auth.PolicyAuthenticated, "admin-only")
	})
}

func TestRouteGuard_RefreshedIdentityCannotReadMe(t *testing.T) {
	chain := auth.NewChain(newTestConfig(), storeOf(nil), customStore())
	guard := chain.Guard

	srv, app := newRouterApp(guard.ErrorHandler)
	srv.Router().Use(unauthorized.New(unauthorized.Config{Now: func() time.Time { return fixedNow }}))
	srv.Router().Post("/chained", guard.MeHandler(), guard.Protect(auth.PolicyRefreshToken, auth.PolicyAuthenticated))

	resp, err := app.Test(refreshRequestTo("/chained", refreshToken(t, chain.Config, 42), ""), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func loginRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/local", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func TestLoginHandler_ErrorsAreDistinguishable(t *testing.T) {
	ta := newTestApp(t, storeOf(nil), customStore())

	tests := []struct {
		name     string
		body     string
		status   int
		textCode string
	}{
		{name: "unparsable body", body: `{"identifier":`, status: http.StatusBadRequest, textCode: auth.TextCodeDataParseError},
		{name: "missing password", body: `{"identifier":"dana@example.com"}`, status: http.StatusBadRequest, textCode: auth.TextCodeInvalidPayload},
		{name: "wrong password", body: `{"identifier":"dana@example.com","password":"nope"}`, status: http.StatusBadRequest, textCode: auth.TextCodeInvalidCreds},
		{name: "unknown identifier", body: `{"identifier":"nobody@example.com","password":"secret"}`, status: http.StatusBadRequest, textCode: auth.TextCodeInvalidCreds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ta.do(t, loginRequest(tt.body))
			assert.Equal(t, tt.status, resp.StatusCode, body)

			var out struct {
				Error struct {
					Name string `json:"name"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal([]byte(body), &out), body)
			assert.Equal(t, tt.textCode, out.Error.Name)
		})
	}
}

func TestLoginHandler_IssuesPair(t *testing.T) {
	ta := newTestApp(t, storeOf(nil), customStore())

	resp, body := ta.do(t, loginRequest(`{"identifier":"dana@example.com","password":"secret"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var result auth.LoginResult
	require.NoError(t, json.Unmarshal([]byte(body), &result))
	claims, err := ta.chain.Verifier.Verify(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), claims.SubjectID())
	assert.Equal(t, auth.SourceCustom, result.User.Source)
}
