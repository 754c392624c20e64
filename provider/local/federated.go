package local

import (
	"context"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-approval"
	"github.com/goliatone/go-errors"
)

const (
	// GoogleJWKSURL publishes the keys Google signs ID tokens with.
	GoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
)

// GoogleIssuers are the accepted iss values of Google ID tokens.
var GoogleIssuers = []string{"https://accounts.google.com", "accounts.google.com"}

// FederatedIdentity is the verified subject of an external ID token.
type FederatedIdentity struct {
	Provider      approval.Provider
	Subject       string
	Email         string
	EmailVerified bool
}

// FederatedVerifier validates external ID tokens.
type FederatedVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*FederatedIdentity, error)
}

type idTokenClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// IDTokenVerifier checks signature, audience and issuer of an ID token.
type IDTokenVerifier struct {
	provider approval.Provider
	keyFunc  jwt.Keyfunc
	audience string
	issuers  []string
	jwks     *keyfunc.JWKS
	now      func() time.Time
}

// NewIDTokenVerifier builds a verifier around an existing key function.
func NewIDTokenVerifier(provider approval.Provider, keyFunc jwt.Keyfunc, audience string, issuers ...string) *IDTokenVerifier {
	return &IDTokenVerifier{
		provider: provider,
		keyFunc:  keyFunc,
		audience: audience,
		issuers:  issuers,
		now:      time.Now,
	}
}

// NewGoogleVerifier fetches Google's JWKS and keeps it refreshed in the background.
func NewGoogleVerifier(clientID, jwksURL string, logger approval.Logger) (*IDTokenVerifier, error) {
	if strings.TrimSpace(jwksURL) == "" {
		jwksURL = GoogleJWKSURL
	}

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			if logger != nil {
				logger.Error("jwks refresh failed", "url", jwksURL, "error", err)
			}
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load federated signing keys")
	}

	v := NewIDTokenVerifier(approval.ProviderGoogle, jwks.Keyfunc, clientID, GoogleIssuers...)
	v.jwks = jwks
	return v, nil
}

// Close stops the background key refresh.
func (v *IDTokenVerifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

func (v *IDTokenVerifier) VerifyIDToken(_ context.Context, idToken string) (*FederatedIdentity, error) {
	opts := []jwt.ParserOption{jwt.WithTimeFunc(v.now), jwt.WithExpirationRequired()}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &idTokenClaims{}
	token, err := jwt.ParseWithClaims(idToken, claims, v.keyFunc, opts...)
	if err != nil || !token.Valid {
		return nil, withMeta(ErrInvalidCredentials, map[string]any{"reason": "invalid id token"})
	}

	if len(v.issuers) > 0 && !containsString(v.issuers, claims.Issuer) {
		return nil, withMeta(ErrInvalidCredentials, map[string]any{"reason": "unexpected issuer", "iss": claims.Issuer})
	}

	if claims.Subject == "" {
		return nil, withMeta(ErrInvalidCredentials, map[string]any{"reason": "missing subject"})
	}

	return &FederatedIdentity{
		Provider:      v.provider,
		Subject:       claims.Subject,
		Email:         strings.ToLower(strings.TrimSpace(claims.Email)),
		EmailVerified: claims.EmailVerified,
	}, nil
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
