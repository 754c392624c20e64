package approval

import (
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	ClaimApproved      = "approved"
	ClaimRole          = "role"
	ClaimApprovalAdmin = "approval_admin"
)

// Claims is the custom claim set attached to a user by the identity provider.
type Claims map[string]any

// Approved reports whether the approved claim is set to true.
func (c Claims) Approved() bool {
	v, ok := c[ClaimApproved].(bool)
	return ok && v
}

// ApprovalAdmin reports whether the approval_admin claim is set to true.
func (c Claims) ApprovalAdmin() bool {
	v, ok := c[ClaimApprovalAdmin].(bool)
	return ok && v
}

// Role returns the role claim, empty when missing.
func (c Claims) Role() Role {
	v, _ := c[ClaimRole].(string)
	return Role(v)
}

// Clone returns a shallow copy. A nil receiver yields an empty set.
func (c Claims) Clone() Claims {
	out := make(Claims, len(c))
	maps.Copy(out, c)
	return out
}

// Merge returns a copy of c with values overwritten by extra.
func (c Claims) Merge(extra Claims) Claims {
	out := c.Clone()
	maps.Copy(out, extra)
	return out
}

// JWTClaims is the signed token payload. Custom claims are flattened into
// known fields, anything else travels in Extra.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID           string         `json:"uid,omitempty"`
	Email         string         `json:"email,omitempty"`
	EmailVerified bool           `json:"email_verified,omitempty"`
	Provider      Provider       `json:"provider,omitempty"`
	Approved      bool           `json:"approved,omitempty"`
	UserRole      string         `json:"role,omitempty"`
	ApprovalAdmin bool           `json:"approval_admin,omitempty"`
	Extra         map[string]any `json:"ext,omitempty"`
}

// NewJWTClaims spreads custom claims into the token payload.
func NewJWTClaims(uid, email string, provider Provider, custom Claims) *JWTClaims {
	claims := &JWTClaims{
		UID:           uid,
		Email:         email,
		Provider:      provider,
		Approved:      custom.Approved(),
		UserRole:      string(custom.Role()),
		ApprovalAdmin: custom.ApprovalAdmin(),
	}

	for k, v := range custom {
		switch k {
		case ClaimApproved, ClaimRole, ClaimApprovalAdmin:
			continue
		}
		if claims.Extra == nil {
			claims.Extra = map[string]any{}
		}
		claims.Extra[k] = v
	}

	claims.RegisteredClaims.Subject = uid
	return claims
}

// UserID returns the user ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

// Custom rebuilds the custom claim set carried by the token.
func (c *JWTClaims) Custom() Claims {
	out := Claims{}
	for k, v := range c.Extra {
		out[k] = v
	}
	if c.Approved {
		out[ClaimApproved] = true
	}
	if c.UserRole != "" {
		out[ClaimRole] = c.UserRole
	}
	if c.ApprovalAdmin {
		out[ClaimApprovalAdmin] = true
	}
	return out
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
