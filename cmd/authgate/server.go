package main

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	auth "github.com/goliatone/go-auth-gate"
	"github.com/goliatone/go-auth-gate/middleware/unauthorized"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type serverDeps struct {
	Config   auth.Config
	Primary  auth.IdentityStore
	Custom   auth.IdentityStore
	Logger   auth.Logger
	Registry *prometheus.Registry
}

// credentialStore is what the bun stores satisfy besides IdentityStore.
type credentialStore interface {
	auth.IdentityStore
	auth.CredentialStore
}

// httpServer keeps the fiber app the adapter wraps so shutdown and tests
// can reach it.
type httpServer struct {
	router.Server[*fiber.App]
	app *fiber.App
}

func newServer(deps serverDeps) (*httpServer, error) {
	observer, err := auth.NewPrometheusObserver(deps.Registry)
	if err != nil {
		return nil, err
	}

	chain := auth.NewChain(deps.Config, deps.Primary, deps.Custom,
		auth.WithChainLogger(deps.Logger),
		auth.WithChainObserver(observer),
	)
	guard := chain.Guard

	s := &httpServer{}
	s.Server = router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		s.app = fiber.New(fiber.Config{
			AppName:               "authgate",
			DisableStartupMessage: true,
			ErrorHandler:          guard.ErrorHandler,
		})
		return s.app
	})

	r := s.Router()
	r.Use(unauthorized.New(unauthorized.Config{Logger: deps.Logger}))

	// promhttp is a net/http handler, it goes straight onto the fiber app
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	api.Post("/auth/local", auth.LoginHandler(
		auth.NewLoginService(chain.Issuer, asCredentialStore(deps.Primary), asCredentialStore(deps.Custom)).
			WithLogger(deps.Logger),
	))
	api.Post("/auth/refresh", guard.RefreshHandler(chain.Issuer), guard.Protect(auth.PolicyRefreshToken))
	api.Get("/users/me", guard.MeHandler(), guard.Protect(auth.PolicyAuthenticated))

	return s, nil
}

func asCredentialStore(s auth.IdentityStore) auth.CredentialStore {
	if cs, ok := s.(credentialStore); ok {
		return cs
	}
	return nil
}
