package approval

import (
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   Kind
		status int
	}{
		{"unauthenticated", errorf(ErrUnauthenticated, nil, "who are you"), KindUnauthenticated, http.StatusUnauthorized},
		{"permission denied", errorf(ErrPermissionDenied, nil, "no"), KindPermissionDenied, http.StatusForbidden},
		{"invalid argument", errorf(ErrInvalidArgument, map[string]any{"field": "reason"}, "bad"), KindInvalidArgument, http.StatusBadRequest},
		{"not found", NotFound("missing %s", "u1"), KindNotFound, http.StatusNotFound},
		{"failed precondition", errorf(ErrFailedPrecondition, nil, "already approved"), KindFailedPrecondition, ErrFailedPrecondition.Code},
		{"internal", internalError(errBoom, "db down"), KindInternal, http.StatusInternalServerError},
		{"plain error", errBoom, KindInternal, http.StatusInternalServerError},
		{"wrapped rich error", fmt.Errorf("ctx: %w", NotFound("x")), KindNotFound, http.StatusNotFound},
		{"category only", goerrors.New("bad field", goerrors.CategoryValidation), KindInvalidArgument, http.StatusBadRequest},
		{"conflict category", goerrors.New("dupe", goerrors.CategoryConflict), KindFailedPrecondition, ErrFailedPrecondition.Code},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, ErrorKind(tt.err))
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}

	assert.Equal(t, Kind(""), ErrorKind(nil))
}

func TestErrorfKeepsBaseUntouched(t *testing.T) {
	err := errorf(ErrInvalidArgument, map[string]any{"uid": "u1"}, "missing %s", "reason")
	assert.Equal(t, "missing reason", err.Message)
	assert.Equal(t, "u1", err.Metadata["uid"])
	assert.Equal(t, "invalid argument", ErrInvalidArgument.Message)
	assert.Empty(t, ErrInvalidArgument.Metadata)
}
