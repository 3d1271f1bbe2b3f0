package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteGuard turns named policies into router middleware.
type RouteGuard struct {
	registry   *PolicyRegistry
	contextKey string
	observer   DecisionObserver
	Logger     Logger
}

func NewRouteGuard(registry *PolicyRegistry, cfg Config) *RouteGuard {
	key := DefaultContextKey
	if cfg != nil && cfg.GetContextKey() != "" {
		key = cfg.GetContextKey()
	}
	return &RouteGuard{
		registry:   registry,
		contextKey: key,
		observer:   noopDecisionObserver{},
		Logger:     defaultLogger(),
	}
}

func (g *RouteGuard) WithLogger(l Logger) *RouteGuard {
	g.Logger = normalizeLogger(l)
	return g
}

func (g *RouteGuard) WithObserver(o DecisionObserver) *RouteGuard {
	g.observer = normalizeDecisionObserver(o)
	return g
}

func (g *RouteGuard) ContextKey() string {
	return g.contextKey
}

// Protect builds middleware that requires every named policy to allow.
// An unknown policy name is a wiring mistake and panics here, at route
// build time, not per request.
func (g *RouteGuard) Protect(names ...string) router.MiddlewareFunc {
	if len(names) == 0 {
		names = []string{PolicyAuthenticated}
	}

	policies, err := g.registry.Resolve(names...)
	if err != nil {
		panic("auth: route guard: " + err.Error() + " in " + strings.Join(names, ", "))
	}

	readsBody := false
	for _, p := range policies {
		if br, ok := p.(BodyReader); ok && br.ReadsRefreshToken() {
			readsBody = true
		}
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			req := g.policyRequest(ctx, readsBody)

			var last Decision
			for _, p := range policies {
				decision, err := p.Evaluate(ctx.Context(), req)
				g.observer.ObserveDecision(p.Name(), decision)
				if err != nil {
					g.Logger.Error("policy evaluation failed",
						"policy", p.Name(),
						"path", ctx.Path(),
						"error", err,
					)
					return err
				}

				if !decision.Allowed {
					g.Logger.Debug("policy denied request",
						"policy", p.Name(),
						"reason", string(decision.Reason),
						"path", ctx.Path(),
					)
					return unauthorizedError(decision.Reason, p.Name())
				}

				// later policies see what earlier ones resolved
				if decision.Identity != nil {
					req.Attached = decision.Identity
				}
				if decision.Minimal != nil {
					req.Minimal = decision.Minimal
				}
				last = decision
			}

			setAuthContext(ctx, g.contextKey, authContextFromDecision(last))
			return next(ctx)
		}
	}
}

func (g *RouteGuard) policyRequest(ctx router.Context, readsBody bool) PolicyRequest {
	req := PolicyRequest{Header: ctx.Header(router.HeaderAuthorization)}

	if ac, ok := GetAuthContext(ctx, g.contextKey); ok {
		req.Attached = ac.Identity
		req.Minimal = ac.Minimal
	}

	if readsBody {
		payload := RefreshPayload{}
		if err := ctx.Bind(&payload); err != nil {
			// an unreadable body is the same as no refresh credential
			g.Logger.Debug("refresh payload not parsed", "error", err)
		}
		req.RefreshToken = strings.TrimSpace(payload.RefreshToken)
	}
	return req
}

// RefreshPayload is the refresh route body.
type RefreshPayload struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

// RefreshHandler issues a new credential pair for the subject the
// refresh-token policy let through.
func (g *RouteGuard) RefreshHandler(issuer *TokenIssuer) router.HandlerFunc {
	return func(ctx router.Context) error {
		ac, ok := GetAuthContext(ctx, g.contextKey)
		if !ok || ac.SubjectID() == 0 {
			return unauthorizedError(ReasonMissingHeader, PolicyRefreshToken)
		}

		pair, err := issuer.IssuePair(ac.SubjectID())
		if err != nil {
			g.Logger.Error("refresh issuance failed", "subject", ac.SubjectID(), "error", err)
			return err
		}
		return ctx.JSON(router.StatusOK, pair)
	}
}

// MeHandler renders the identity attached by the authenticated policy.
func (g *RouteGuard) MeHandler() router.HandlerFunc {
	return func(ctx router.Context) error {
		ac, ok := GetAuthContext(ctx, g.contextKey)
		if !ok || !ac.Authenticated() {
			return unauthorizedError(ReasonRefreshOnly, PolicyAuthenticated)
		}
		return ctx.JSON(router.StatusOK, map[string]any{"data": ac.Identity})
	}
}

// ErrorHandler is the fiber.Config ErrorHandler of the server adapter. It
// renders whatever the unauthorized middleware lets through; rich errors
// keep their code and text code.
func (g *RouteGuard) ErrorHandler(c *fiber.Ctx, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{
				"data":  nil,
				"error": fiber.Map{"status": fe.Code, "message": fe.Message},
			})
		}
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	code := richErr.Code
	if code == 0 {
		code = fiber.StatusInternalServerError
	}

	g.Logger.Info(
		"request error",
		"error", richErr.Message,
		"category", richErr.Category,
		"text_code", richErr.TextCode,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	return c.Status(code).JSON(fiber.Map{
		"data": nil,
		"error": fiber.Map{
			"status":  code,
			"name":    richErr.TextCode,
			"message": richErr.Message,
		},
	})
}
