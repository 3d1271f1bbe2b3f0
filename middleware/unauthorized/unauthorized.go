package unauthorized

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"pkt.systems/pslog"
)

// ErrorName is the fixed name every normalized failure carries.
const ErrorName = "UnauthorizedError"

// TimestampLayout is ISO-8601 with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

const defaultMessage = "Unauthorized"

// Logger is the subset of a structured logger the middleware uses.
type Logger interface {
	Debug(msg string, args ...any)
}

type Config struct {
	// Filter skips the middleware when it returns true.
	Filter func(router.Context) bool
	// Now is the clock used for details.timestamp.
	Now func() time.Time
	// DefaultMessage is used when the failure carries no message.
	DefaultMessage string
	Logger         Logger
}

// Envelope is the body of every normalized 401 response.
type Envelope struct {
	Data  any       `json:"data"`
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Status  int     `json:"status"`
	Name    string  `json:"name"`
	Message string  `json:"message"`
	Details Details `json:"details"`
}

type Details struct {
	RequestPath string `json:"requestPath"`
	Timestamp   string `json:"timestamp"`
}

// StatusCoder is implemented by errors that carry their own HTTP status.
type StatusCoder interface {
	StatusCode() int
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.DefaultMessage == "" {
		cfg.DefaultMessage = defaultMessage
	}

	if cfg.Logger == nil {
		cfg.Logger = pslog.NoopLogger()
	}

	return cfg
}

// New wraps the rest of the chain. Successful responses and failures
// that are not 401 pass through untouched; 401 failures are rewritten
// into an Envelope.
func New(config ...Config) router.MiddlewareFunc {
	cfg := GetDefaultConfig(config...)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return next(ctx)
			}

			err := next(ctx)
			if err == nil {
				return nil
			}

			message, ok := Status401(err)
			if !ok {
				return err
			}
			if message == "" {
				message = cfg.DefaultMessage
			}

			env := NewEnvelope(message, ctx.Path(), cfg.Now())

			var rich *errors.Error
			if errors.As(err, &rich) {
				cfg.Logger.Debug("normalized unauthorized failure",
					"path", ctx.Path(),
					"text_code", rich.TextCode,
					"metadata", print.MaybePrettyJSON(rich.Metadata),
				)
			} else {
				cfg.Logger.Debug("normalized unauthorized failure", "path", ctx.Path(), "error", err.Error())
			}

			return ctx.JSON(router.StatusUnauthorized, env)
		}
	}
}

// NewEnvelope builds the 401 envelope for path at t.
func NewEnvelope(message, path string, t time.Time) Envelope {
	return Envelope{
		Data: nil,
		Error: ErrorBody{
			Status:  http.StatusUnauthorized,
			Name:    ErrorName,
			Message: message,
			Details: Details{
				RequestPath: path,
				Timestamp:   t.UTC().Format(TimestampLayout),
			},
		},
	}
}

// Status401 reports whether err signals 401 and returns its message.
func Status401(err error) (string, bool) {
	var rich *errors.Error
	if errors.As(err, &rich) && rich.Code == http.StatusUnauthorized {
		return rich.Message, true
	}

	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code == http.StatusUnauthorized {
		return fe.Message, true
	}

	var sc StatusCoder
	if errors.As(err, &sc) && sc.StatusCode() == http.StatusUnauthorized {
		return err.Error(), true
	}

	return "", false
}
