package approval

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// ErrImmutableClaimMutation is returned when a decorator touches a protected claim.
var ErrImmutableClaimMutation = goerrors.New("claims decorator mutated a protected claim", goerrors.CategoryInternal).
	WithTextCode(TextCodeInternal).
	WithCode(goerrors.CodeInternal)

type immutableClaimsSnapshot struct {
	subject       string
	issuer        string
	uid           string
	email         string
	emailVerified bool
	provider      Provider
	audience      []string
	issuedAt      *time.Time
	expiresAt     *time.Time
	approved      bool
	role          string
	approvalAdmin bool
}

func captureImmutableClaims(claims *JWTClaims) immutableClaimsSnapshot {
	return immutableClaimsSnapshot{
		subject:       claims.Subject,
		issuer:        claims.Issuer,
		uid:           claims.UID,
		email:         claims.Email,
		emailVerified: claims.EmailVerified,
		provider:      claims.Provider,
		audience:      slices.Clone([]string(claims.Audience)),
		issuedAt:      numericTime(claims.RegisteredClaims.IssuedAt),
		expiresAt:     numericTime(claims.RegisteredClaims.ExpiresAt),
		approved:      claims.Approved,
		role:          claims.UserRole,
		approvalAdmin: claims.ApprovalAdmin,
	}
}

func (snap immutableClaimsSnapshot) validate(claims *JWTClaims) error {
	switch {
	case claims.Subject != snap.subject:
		return immutableClaimViolation("sub")
	case claims.Issuer != snap.issuer:
		return immutableClaimViolation("iss")
	case claims.UID != snap.uid:
		return immutableClaimViolation("uid")
	case claims.Email != snap.email:
		return immutableClaimViolation("email")
	case claims.EmailVerified != snap.emailVerified:
		return immutableClaimViolation("email_verified")
	case claims.Provider != snap.provider:
		return immutableClaimViolation("provider")
	case !slices.Equal([]string(claims.Audience), snap.audience):
		return immutableClaimViolation("aud")
	case !sameTime(numericTime(claims.RegisteredClaims.IssuedAt), snap.issuedAt):
		return immutableClaimViolation("iat")
	case !sameTime(numericTime(claims.RegisteredClaims.ExpiresAt), snap.expiresAt):
		return immutableClaimViolation("exp")
	case claims.Approved != snap.approved:
		return immutableClaimViolation(ClaimApproved)
	case claims.UserRole != snap.role:
		return immutableClaimViolation(ClaimRole)
	case claims.ApprovalAdmin != snap.approvalAdmin:
		return immutableClaimViolation(ClaimApprovalAdmin)
	}

	for _, key := range []string{ClaimApproved, ClaimRole, ClaimApprovalAdmin} {
		if _, ok := claims.Extra[key]; ok {
			return immutableClaimViolation(key)
		}
	}
	return nil
}

func numericTime(date *jwt.NumericDate) *time.Time {
	if date == nil {
		return nil
	}
	t := date.Time
	return &t
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func immutableClaimViolation(field string) error {
	return errorf(ErrImmutableClaimMutation, map[string]any{"claim": field}, "immutable claim mutated: %s", field)
}
