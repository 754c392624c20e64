package approval

import (
	"context"
)

var callerCtxKey = &contextKey{"caller"}
var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithCallerContext sets the verified Caller in the given context
func WithCallerContext(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerCtxKey, caller)
}

// CallerFromContext finds the caller from the context.
func CallerFromContext(ctx context.Context) (*Caller, bool) {
	raw, ok := ctx.Value(callerCtxKey).(*Caller)
	return raw, ok && raw != nil
}

// WithUserContext sets the signed in User in the given context
func WithUserContext(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, sessionCtxKey, user)
}

// UserFromContext finds the signed in User from the context.
func UserFromContext(ctx context.Context) (User, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(User)
	return raw, ok && raw != nil
}

// IsApprovalAdmin is a convenience check against the caller in ctx. It only
// looks at the approval_admin claim.
func IsApprovalAdmin(ctx context.Context) bool {
	caller, ok := CallerFromContext(ctx)
	if !ok {
		return false
	}
	return caller.Claims.ApprovalAdmin()
}
