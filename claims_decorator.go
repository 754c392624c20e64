package approval

import "context"

// ClaimSubmissionStatus is the extension claim carrying the status of the
// user's registration at the time the token was issued.
const ClaimSubmissionStatus = "submission_status"

// ClaimsDecorator adds extension claims (JWTClaims.Extra) right before a token
// is signed. Identity claims and approved, role and approval_admin belong to
// the identity provider and are checked after decoration.
type ClaimsDecorator interface {
	Decorate(ctx context.Context, identity Identity, claims *JWTClaims) error
}

// ClaimsDecoratorFunc adapts a function into a ClaimsDecorator. A nil func
// decorates nothing.
type ClaimsDecoratorFunc func(ctx context.Context, identity Identity, claims *JWTClaims) error

func (f ClaimsDecoratorFunc) Decorate(ctx context.Context, identity Identity, claims *JWTClaims) error {
	if f == nil {
		return nil
	}
	return f(ctx, identity, claims)
}

// ChainClaimsDecorators runs decorators in order and stops at the first error.
func ChainClaimsDecorators(decorators ...ClaimsDecorator) ClaimsDecorator {
	return ClaimsDecoratorFunc(func(ctx context.Context, identity Identity, claims *JWTClaims) error {
		for _, d := range decorators {
			if d == nil {
				continue
			}
			if err := d.Decorate(ctx, identity, claims); err != nil {
				return err
			}
		}
		return nil
	})
}

// SubmissionStatusDecorator stamps ClaimSubmissionStatus from the submission of
// the identity so clients can route without a status call. The claim is only
// a hint: guards always resolve against the store. Users without a submission
// get no claim and a failed read never blocks sign in.
func SubmissionStatusDecorator(store SubmissionStore, logger Logger) ClaimsDecorator {
	if logger == nil {
		logger = defLogger{}
	}

	return ClaimsDecoratorFunc(func(ctx context.Context, identity Identity, claims *JWTClaims) error {
		submission, err := store.GetSubmission(ctx, identity.ID())
		if err != nil {
			if !IsNotFound(err) {
				logger.Warn("submission status claim skipped", "uid", identity.ID(), "error", err)
			}
			return nil
		}

		if claims.Extra == nil {
			claims.Extra = map[string]any{}
		}
		claims.Extra[ClaimSubmissionStatus] = string(submission.Status)
		return nil
	})
}

func normalizeClaimsDecorator(d ClaimsDecorator) ClaimsDecorator {
	if d == nil {
		return ClaimsDecoratorFunc(nil)
	}
	return d
}
