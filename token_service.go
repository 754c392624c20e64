package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ErrTokenExpired is returned for expired tokens.
var ErrTokenExpired = errors.New("token expired", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens that fail to parse or verify.
var ErrTokenMalformed = errors.New("token malformed", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(errors.CodeUnauthorized)

// TokenService signs and validates the authorization token carrying custom claims.
type TokenService struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	decorator  ClaimsDecorator
	logger     Logger
	now        func() time.Time
}

// TokenServiceOption customizes the token service.
type TokenServiceOption func(*TokenService)

func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenService) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// WithClaimsDecorator installs a decorator run before every token is signed.
func WithClaimsDecorator(d ClaimsDecorator) TokenServiceOption {
	return func(ts *TokenService) {
		ts.decorator = normalizeClaimsDecorator(d)
	}
}

// WithTokenClock injects a custom clock (useful for tests).
func WithTokenClock(clock func() time.Time) TokenServiceOption {
	return func(ts *TokenService) {
		if clock != nil {
			ts.now = clock
		}
	}
}

func NewTokenService(signingKey []byte, ttl time.Duration, issuer string, audience []string, opts ...TokenServiceOption) *TokenService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	ts := &TokenService{
		signingKey: signingKey,
		ttl:        ttl,
		issuer:     issuer,
		audience:   jwt.ClaimStrings(audience),
		decorator:  ClaimsDecoratorFunc(nil),
		logger:     defLogger{},
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}
	return ts
}

// Generate creates a token for identity carrying custom claims.
func (ts *TokenService) Generate(ctx context.Context, identity Identity, custom Claims) (string, time.Time, error) {
	if identity == nil {
		return "", time.Time{}, errors.New("identity is required", errors.CategoryBadInput)
	}

	now := ts.now()
	expiresAt := now.Add(ts.ttl)

	claims := NewJWTClaims(identity.ID(), identity.Email(), identity.Provider(), custom)
	claims.EmailVerified = identity.EmailVerified()
	claims.RegisteredClaims.ID = uuid.NewString()
	claims.RegisteredClaims.Issuer = ts.issuer
	claims.RegisteredClaims.Audience = ts.audience
	claims.RegisteredClaims.IssuedAt = jwt.NewNumericDate(now)
	claims.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(expiresAt)

	snapshot := captureImmutableClaims(claims)
	if err := ts.decorator.Decorate(ctx, identity, claims); err != nil {
		ts.logger.Error("claims decorator failed", "uid", identity.ID(), "error", err)
		return "", time.Time{}, err
	}
	if err := snapshot.validate(claims); err != nil {
		ts.logger.Error("claims decorator mutated protected claims", "uid", identity.ID(), "error", err)
		return "", time.Time{}, err
	}

	signed, err := ts.SignClaims(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenService) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning structured claims
func (ts *TokenService) Validate(tokenString string) (*JWTClaims, error) {
	parserOptions := []jwt.ParserOption{jwt.WithTimeFunc(ts.now)}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errorf(ErrTokenExpired, nil, "token expired")
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode).
			WithCode(ErrTokenMalformed.Code)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("token validate could not decode or validate claims")
	return nil, errorf(ErrTokenMalformed, nil, "unable to decode token claims")
}
