package local

import (
	"github.com/goliatone/go-approval"
	"github.com/goliatone/go-errors"
)

// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike.
var ErrInvalidCredentials = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(approval.TextCodeUnauthenticated).
	WithCode(errors.CodeUnauthorized)

// ErrEmailInUse is returned when signing up with a taken email.
var ErrEmailInUse = errors.New("the email address is already in use by another account", errors.CategoryConflict).
	WithTextCode(approval.TextCodeFailedPrecondition).
	WithCode(errors.CodeConflict)

// ErrAccountExistsWithDifferentCredential is returned when a federated sign in
// matches the email of an account created with another method.
var ErrAccountExistsWithDifferentCredential = errors.New("an account already exists with the same email address but different sign-in credentials", errors.CategoryConflict).
	WithTextCode(approval.TextCodeFailedPrecondition).
	WithCode(errors.CodeConflict)

// ErrEmailNotVerified is returned when a federated ID token carries an email
// its issuer has not verified.
var ErrEmailNotVerified = errors.New("the email address has not been verified by the identity provider", errors.CategoryAuth).
	WithTextCode(approval.TextCodeFailedPrecondition).
	WithCode(errors.CodeForbidden)

// ErrWeakPassword is returned for passwords shorter than MinPasswordLength.
var ErrWeakPassword = errors.New("password should be at least 8 characters", errors.CategoryBadInput).
	WithTextCode(approval.TextCodeInvalidArgument).
	WithCode(errors.CodeBadRequest)

// ErrInvalidEmail is returned for malformed email addresses.
var ErrInvalidEmail = errors.New("the email address is badly formatted", errors.CategoryBadInput).
	WithTextCode(approval.TextCodeInvalidArgument).
	WithCode(errors.CodeBadRequest)

// ErrClaimsTooLarge is returned when custom claims exceed MaxClaimsBytes.
var ErrClaimsTooLarge = errors.New("custom claims payload is too large", errors.CategoryBadInput).
	WithTextCode(approval.TextCodeInvalidArgument).
	WithCode(errors.CodeBadRequest)

// ErrUserNotFound is returned when no account matches a uid.
var ErrUserNotFound = errors.New("there is no user record corresponding to the provided identifier", errors.CategoryNotFound).
	WithTextCode(approval.TextCodeNotFound).
	WithCode(errors.CodeNotFound)

func withMeta(base *errors.Error, meta map[string]any) *errors.Error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	clone.Source = base
	return clone.WithMetadata(meta)
}
