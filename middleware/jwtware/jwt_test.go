package jwtware_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-approval/middleware/jwtware"
)

type ctxKey struct{}

var errInvalid = errors.New("invalid token")

// staticValidator accepts one token and returns its subject as claims.
func staticValidator(valid, subject string) jwtware.ValidatorFunc {
	return func(_ context.Context, token string) (any, error) {
		if token != valid {
			return nil, errInvalid
		}
		return subject, nil
	}
}

func newApp(cfg jwtware.Config) *fiber.App {
	app := fiber.New()
	handler := func(c *fiber.Ctx) error {
		subject, _ := c.Locals("user").(string)
		fromCtx, _ := c.UserContext().Value(ctxKey{}).(string)
		return c.JSON(fiber.Map{"subject": subject, "ctx": fromCtx})
	}
	app.Get("/", jwtware.New(cfg), handler)
	app.Get("/p/:token", jwtware.New(cfg), handler)
	return app
}

func send(t *testing.T, app *fiber.App, req *http.Request) (int, string) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestJWTWareHeaderExtraction(t *testing.T) {
	app := newApp(jwtware.Config{
		TokenValidator: staticValidator("good", "u1"),
		ContextEnricher: func(ctx context.Context, claims any) context.Context {
			return context.WithValue(ctx, ctxKey{}, claims)
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer good")
	code, body := send(t, app, req)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"subject":"u1","ctx":"u1"}`, body)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	code, body = send(t, app, req)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, jwtware.ErrJWTMissingOrMalformed.Error(), body)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad")
	code, _ = send(t, app, req)
	assert.Equal(t, http.StatusUnauthorized, code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic good")
	code, _ = send(t, app, req)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestJWTWareLookupSources(t *testing.T) {
	app := newApp(jwtware.Config{
		TokenValidator: staticValidator("good", "u1"),
		TokenLookup:    "header:Authorization, cookie:jwt, query:auth_token, param:token",
	})

	req := httptest.NewRequest(http.MethodGet, "/?auth_token=good", nil)
	code, _ := send(t, app, req)
	assert.Equal(t, http.StatusOK, code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "jwt", Value: "good"})
	code, _ = send(t, app, req)
	assert.Equal(t, http.StatusOK, code)

	req = httptest.NewRequest(http.MethodGet, "/p/good", nil)
	code, _ = send(t, app, req)
	assert.Equal(t, http.StatusOK, code)
}

func TestJWTWareOptionalAndFilter(t *testing.T) {
	app := newApp(jwtware.Config{
		TokenValidator: staticValidator("good", "u1"),
		Optional:       true,
	})

	code, body := send(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"subject":"","ctx":""}`, body)

	filtered := newApp(jwtware.Config{
		TokenValidator: staticValidator("good", "u1"),
		Filter:         func(*fiber.Ctx) bool { return true },
	})
	code, _ = send(t, filtered, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, code)
}

func TestJWTWareValidationListeners(t *testing.T) {
	var seen []any
	app := newApp(jwtware.Config{
		TokenValidator: staticValidator("good", "u1"),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusForbidden).SendString(err.Error())
		},
		ValidationListeners: []jwtware.ValidationListener{
			nil,
			func(_ *fiber.Ctx, claims any) error {
				seen = append(seen, claims)
				return nil
			},
			func(*fiber.Ctx, any) error { return errors.New("blocked") },
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	code, body := send(t, app, req)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "blocked", body)
	assert.Equal(t, []any{"u1"}, seen)
}

func TestJWTWareRequiresValidator(t *testing.T) {
	assert.Panics(t, func() { jwtware.New() })
}
