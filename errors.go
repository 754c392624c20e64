package approval

import (
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// Kind is the caller facing error kind reported by callable operations.
type Kind string

const (
	KindUnauthenticated    Kind = "unauthenticated"
	KindPermissionDenied   Kind = "permission-denied"
	KindInvalidArgument    Kind = "invalid-argument"
	KindNotFound           Kind = "not-found"
	KindFailedPrecondition Kind = "failed-precondition"
	KindInternal           Kind = "internal"
)

const (
	TextCodeUnauthenticated    = "UNAUTHENTICATED"
	TextCodePermissionDenied   = "PERMISSION_DENIED"
	TextCodeInvalidArgument    = "INVALID_ARGUMENT"
	TextCodeNotFound           = "NOT_FOUND"
	TextCodeFailedPrecondition = "FAILED_PRECONDITION"
	TextCodeInternal           = "INTERNAL"
)

// ErrUnauthenticated is returned when a call carries no caller identity.
var ErrUnauthenticated = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrPermissionDenied is returned when the caller is known but not authorized.
var ErrPermissionDenied = goerrors.New("permission denied", goerrors.CategoryAuthz).
	WithTextCode(TextCodePermissionDenied).
	WithCode(goerrors.CodeForbidden)

// ErrInvalidArgument is returned for missing or malformed request fields.
var ErrInvalidArgument = goerrors.New("invalid argument", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidArgument).
	WithCode(goerrors.CodeBadRequest)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = goerrors.New("record not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrFailedPrecondition is returned when the record is in a state that forbids the operation.
var ErrFailedPrecondition = goerrors.New("failed precondition", goerrors.CategoryConflict).
	WithTextCode(TextCodeFailedPrecondition).
	WithCode(goerrors.CodeConflict)

// ErrInternal wraps record store and identity provider failures.
var ErrInternal = goerrors.New("internal error", goerrors.CategoryInternal).
	WithTextCode(TextCodeInternal).
	WithCode(goerrors.CodeInternal)

// errorf clones base with a specific message and optional metadata.
func errorf(base *goerrors.Error, meta map[string]any, format string, args ...any) *goerrors.Error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	clone.Message = fmt.Sprintf(format, args...)
	clone.Source = base
	if len(meta) > 0 {
		return clone.WithMetadata(meta)
	}
	return clone
}

// internalError wraps an I/O failure so it reports KindInternal.
func internalError(err error, msg string) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithTextCode(TextCodeInternal).
		WithCode(goerrors.CodeInternal)
}

// NotFound builds a not-found error, used by stores and identity providers.
func NotFound(format string, args ...any) error {
	return errorf(ErrNotFound, nil, format, args...)
}

// ErrorKind maps err to the kind reported to callers. Unknown errors are internal.
func ErrorKind(err error) Kind {
	if err == nil {
		return ""
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return KindInternal
	}

	switch richErr.TextCode {
	case TextCodeUnauthenticated:
		return KindUnauthenticated
	case TextCodePermissionDenied:
		return KindPermissionDenied
	case TextCodeInvalidArgument:
		return KindInvalidArgument
	case TextCodeNotFound:
		return KindNotFound
	case TextCodeFailedPrecondition:
		return KindFailedPrecondition
	}

	switch richErr.Category {
	case goerrors.CategoryAuth:
		return KindUnauthenticated
	case goerrors.CategoryAuthz:
		return KindPermissionDenied
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return KindInvalidArgument
	case goerrors.CategoryNotFound:
		return KindNotFound
	case goerrors.CategoryConflict:
		return KindFailedPrecondition
	default:
		return KindInternal
	}
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return ErrorKind(err) == KindNotFound
}

// HTTPStatus returns the HTTP status code associated with err.
func HTTPStatus(err error) int {
	switch ErrorKind(err) {
	case KindUnauthenticated:
		return ErrUnauthenticated.Code
	case KindPermissionDenied:
		return ErrPermissionDenied.Code
	case KindInvalidArgument:
		return ErrInvalidArgument.Code
	case KindNotFound:
		return ErrNotFound.Code
	case KindFailedPrecondition:
		return ErrFailedPrecondition.Code
	default:
		return ErrInternal.Code
	}
}
