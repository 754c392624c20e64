package approval

import (
	"context"

	"github.com/goliatone/go-approval/middleware/jwtware"
)

// ValidationListener aliases the jwtware listener so callers can hook
// BearerAuth without importing the middleware package.
type ValidationListener = jwtware.ValidationListener

// CallerContextEnricher stores a verified *Caller in the request context.
func CallerContextEnricher(ctx context.Context, claims any) context.Context {
	caller, ok := claims.(*Caller)
	if !ok {
		return ctx
	}
	return WithCallerContext(ctx, caller)
}

// callerValidator adapts a TokenVerifier to the jwtware validator.
func callerValidator(verifier TokenVerifier) jwtware.ValidatorFunc {
	return func(ctx context.Context, token string) (any, error) {
		caller, err := verifier.Verify(ctx, token)
		if err != nil {
			return nil, err
		}
		return caller, nil
	}
}

// RegisterValidationListeners appends listeners to cfg.
func RegisterValidationListeners(cfg *BearerAuthConfig, listeners ...ValidationListener) {
	if cfg == nil || len(listeners) == 0 {
		return
	}
	cfg.Listeners = append(cfg.Listeners, listeners...)
}
