package approval

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-approval/middleware/jwtware"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

const (
	// LocalsCaller is the fiber locals key holding the verified *Caller.
	LocalsCaller = "approval.caller"
	// LocalsToken is the fiber locals key holding the raw bearer token.
	LocalsToken = "approval.token"

	authScheme = "Bearer"
)

// BearerAuthConfig configures the bearer token middleware.
type BearerAuthConfig struct {
	Verifier TokenVerifier
	// Optional lets anonymous requests through without a caller.
	Optional bool
	Logger   Logger
	// ErrorHandler renders verification failures. Defaults to WriteError.
	ErrorHandler func(c *fiber.Ctx, err error) error
	// Listeners run after the caller is verified.
	Listeners []jwtware.ValidationListener
}

// BearerAuth verifies the Authorization header and stores the caller both in
// fiber locals and in the request user context.
func BearerAuth(cfg BearerAuthConfig) fiber.Handler {
	if cfg.Logger == nil {
		cfg.Logger = defLogger{}
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			return WriteError(c, cfg.Logger, err)
		}
	}

	return jwtware.New(jwtware.Config{
		ContextKey:          LocalsCaller,
		TokenKey:            LocalsToken,
		AuthScheme:          authScheme,
		Optional:            cfg.Optional,
		TokenValidator:      callerValidator(cfg.Verifier),
		ContextEnricher:     CallerContextEnricher,
		ValidationListeners: cfg.Listeners,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
				err = errorf(ErrUnauthenticated, nil, "missing bearer token")
			}
			if cfg.Optional && ErrorKind(err) == KindUnauthenticated {
				return c.Next()
			}
			return cfg.ErrorHandler(c, err)
		},
	})
}

// FiberErrorHandler is the app level error handler. fiber's own errors keep
// their status and get a matching kind, everything else goes through WriteError.
func FiberErrorHandler(logger Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": ErrorBody{
				Status:  KindFromStatus(fe.Code),
				Message: fe.Message,
			}})
		}
		return WriteError(c, logger, err)
	}
}

// KindFromStatus maps an HTTP status produced outside the approval flow (for
// example a fiber routing error) onto the same kinds.
func KindFromStatus(code int) Kind {
	switch {
	case code == ErrUnauthenticated.Code:
		return KindUnauthenticated
	case code == ErrPermissionDenied.Code:
		return KindPermissionDenied
	case code == ErrNotFound.Code:
		return KindNotFound
	case code == ErrFailedPrecondition.Code, code == fiber.StatusMethodNotAllowed, code == fiber.StatusPreconditionFailed:
		return KindFailedPrecondition
	case code >= 400 && code < 500:
		return KindInvalidArgument
	default:
		return KindInternal
	}
}

// CallerFromFiber returns the caller stored by BearerAuth.
func CallerFromFiber(c *fiber.Ctx) (*Caller, bool) {
	caller, ok := c.Locals(LocalsCaller).(*Caller)
	return caller, ok && caller != nil
}

// ErrorBody is the callable error envelope.
type ErrorBody struct {
	Status  Kind           `json:"status"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// WriteError renders err as {"error":{...}} with the status code of its kind.
// Internal errors never leak their message.
func WriteError(c *fiber.Ctx, logger Logger, err error) error {
	kind := ErrorKind(err)
	body := ErrorBody{Status: kind, Message: err.Error()}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		body.Message = richErr.Message
		if kind != KindInternal && len(richErr.Metadata) > 0 {
			body.Details = richErr.Metadata
		}
	}

	if kind == KindInternal {
		if logger != nil {
			logger.Error("request failed", "path", c.Path(), "error", err)
			if richErr != nil && len(richErr.Metadata) > 0 {
				logger.Debug(print.MaybePrettyJSON(richErr.Metadata))
			}
		}
		body.Message = "internal error"
		body.Details = nil
	}

	return c.Status(HTTPStatus(err)).JSON(fiber.Map{"error": body})
}
