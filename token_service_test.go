package approval

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testIdentity struct {
	id, email string
	provider  Provider
}

func (i testIdentity) ID() string          { return i.id }
func (i testIdentity) Email() string       { return i.email }
func (i testIdentity) EmailVerified() bool { return false }
func (i testIdentity) Provider() Provider  { return i.provider }

func TestTokenServiceGenerateAndValidate(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	ts := NewTokenService([]byte("secret"), time.Hour, "approval", []string{"app"},
		WithTokenLogger(nopLogger{}),
		WithTokenClock(fixedClock(now)),
	)

	token, expiresAt, err := ts.Generate(context.Background(), testIdentity{"u1", "a@example.com", ProviderPassword}, Claims{ClaimApproved: true, ClaimRole: "teacher"})
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expiresAt)

	claims, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID())
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, ProviderPassword, claims.Provider)
	assert.True(t, claims.Custom().Approved())
	assert.Equal(t, RoleTeacher, claims.Custom().Role())
	assert.True(t, now.Equal(claims.IssuedAt()))
	assert.NotEmpty(t, claims.ID)
}

func TestTokenServiceRejectsBadTokens(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	issuer := NewTokenService([]byte("secret"), time.Minute, "approval", []string{"app"}, WithTokenClock(fixedClock(now)))
	token, _, err := issuer.Generate(context.Background(), testIdentity{"u1", "", ProviderGoogle}, nil)
	require.NoError(t, err)

	later := NewTokenService([]byte("secret"), time.Minute, "approval", []string{"app"},
		WithTokenLogger(nopLogger{}),
		WithTokenClock(fixedClock(now.Add(time.Hour))),
	)
	_, err = later.Validate(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Equal(t, KindUnauthenticated, ErrorKind(err))

	otherKey := NewTokenService([]byte("other"), time.Minute, "approval", []string{"app"},
		WithTokenLogger(nopLogger{}),
		WithTokenClock(fixedClock(now)),
	)
	_, err = otherKey.Validate(token)
	assert.Equal(t, KindUnauthenticated, ErrorKind(err))

	otherAudience := NewTokenService([]byte("secret"), time.Minute, "approval", []string{"elsewhere"},
		WithTokenLogger(nopLogger{}),
		WithTokenClock(fixedClock(now)),
	)
	_, err = otherAudience.Validate(token)
	assert.Equal(t, KindUnauthenticated, ErrorKind(err))

	_, err = issuer.Validate("garbage")
	assert.Equal(t, KindUnauthenticated, ErrorKind(err))

	_, _, err = issuer.Generate(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestTokenServiceClaimsDecorator(t *testing.T) {
	ctx := context.Background()
	ident := testIdentity{"u1", "a@example.com", ProviderPassword}

	ts := NewTokenService([]byte("secret"), time.Hour, "approval", nil,
		WithTokenLogger(nopLogger{}),
		WithClaimsDecorator(ClaimsDecoratorFunc(func(_ context.Context, identity Identity, claims *JWTClaims) error {
			if claims.Extra == nil {
				claims.Extra = map[string]any{}
			}
			claims.Extra["tenant"] = "north-" + identity.ID()
			return nil
		})),
	)

	token, _, err := ts.Generate(ctx, ident, Claims{ClaimRole: "parent"})
	require.NoError(t, err)

	claims, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "north-u1", claims.Custom()["tenant"])
	assert.Equal(t, RoleParent, claims.Custom().Role())
}

func TestTokenServiceDecoratorCannotGrantApproval(t *testing.T) {
	ctx := context.Background()
	ident := testIdentity{"u1", "a@example.com", ProviderPassword}

	tests := []struct {
		name     string
		decorate func(*JWTClaims)
		claim    string
	}{
		{"approved flag", func(c *JWTClaims) { c.Approved = true }, ClaimApproved},
		{"admin flag", func(c *JWTClaims) { c.ApprovalAdmin = true }, ClaimApprovalAdmin},
		{"role", func(c *JWTClaims) { c.UserRole = "teacher" }, ClaimRole},
		{"approved via extra", func(c *JWTClaims) { c.Extra = map[string]any{ClaimApproved: true} }, ClaimApproved},
		{"subject", func(c *JWTClaims) { c.Subject = "someone-else" }, "sub"},
		{"email verified", func(c *JWTClaims) { c.EmailVerified = true }, "email_verified"},
		{"expiry", func(c *JWTClaims) { c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(24 * time.Hour)) }, "exp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := NewTokenService([]byte("secret"), time.Hour, "approval", nil,
				WithTokenLogger(nopLogger{}),
				WithClaimsDecorator(ClaimsDecoratorFunc(func(_ context.Context, _ Identity, claims *JWTClaims) error {
					tt.decorate(claims)
					return nil
				})),
			)

			_, _, err := ts.Generate(ctx, ident, Claims{ClaimRole: "parent"})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrImmutableClaimMutation)
			assert.Contains(t, err.Error(), tt.claim)
		})
	}
}

func TestTokenServiceDecoratorError(t *testing.T) {
	ts := NewTokenService([]byte("secret"), time.Hour, "approval", nil,
		WithTokenLogger(nopLogger{}),
		WithClaimsDecorator(ClaimsDecoratorFunc(func(context.Context, Identity, *JWTClaims) error {
			return errBoom
		})),
	)

	_, _, err := ts.Generate(context.Background(), testIdentity{"u1", "", ProviderPassword}, nil)
	assert.ErrorIs(t, err, errBoom)
}

func TestSubmissionStatusDecorator(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ts := NewTokenService([]byte("secret"), time.Hour, "approval", nil,
		WithTokenLogger(nopLogger{}),
		WithClaimsDecorator(ChainClaimsDecorators(
			nil,
			SubmissionStatusDecorator(store, nopLogger{}),
		)),
	)

	token, _, err := ts.Generate(ctx, testIdentity{"u1", "a@example.com", ProviderPassword}, nil)
	require.NoError(t, err)
	claims, err := ts.Validate(token)
	require.NoError(t, err)
	assert.NotContains(t, claims.Extra, ClaimSubmissionStatus)

	_, err = store.SetSubmission(ctx, &PendingSubmission{UID: "u1", Role: RoleParent, Status: SubmissionPending})
	require.NoError(t, err)

	token, _, err = ts.Generate(ctx, testIdentity{"u1", "a@example.com", ProviderPassword}, Claims{"school": "north"})
	require.NoError(t, err)
	claims, err = ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, string(SubmissionPending), claims.Custom()[ClaimSubmissionStatus])
	assert.Equal(t, "north", claims.Custom()["school"])
	assert.False(t, claims.Approved)
}

func TestChainClaimsDecoratorsStopsOnError(t *testing.T) {
	calls := 0
	count := ClaimsDecoratorFunc(func(context.Context, Identity, *JWTClaims) error {
		calls++
		return nil
	})
	fail := ClaimsDecoratorFunc(func(context.Context, Identity, *JWTClaims) error {
		return errBoom
	})

	err := ChainClaimsDecorators(count, fail, count).Decorate(context.Background(), testIdentity{}, &JWTClaims{})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls)
}
