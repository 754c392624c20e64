package approval

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// User is a signed in principal as seen by the client side of the flow.
type User interface {
	UID() string
	Email() string
	// Claims returns the custom claims carried by the user's token. With
	// forceRefresh the token is re-issued first so server side changes show up.
	Claims(ctx context.Context, forceRefresh bool) (Claims, error)
}

// Caller is the verified identity behind a privileged call.
type Caller struct {
	UID           string
	Email         string
	EmailVerified bool
	Claims        Claims
}

// Session is an issued authorization token and the identity it was issued for.
type Session struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email,omitempty"`
	Provider  Provider  `json:"provider"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Claims    Claims    `json:"claims,omitempty"`
}

// Identity holds the attributes of an identity
type Identity interface {
	ID() string
	Email() string
	// EmailVerified reports whether the provider proved ownership of Email.
	EmailVerified() bool
	Provider() Provider
}

// IdentityProvider manages custom claims for a uid.
type IdentityProvider interface {
	GetCustomClaims(ctx context.Context, uid string) (Claims, error)
	SetCustomClaims(ctx context.Context, uid string, claims Claims) error
}

// TokenIssuer re-issues a token carrying the current claims of uid.
type TokenIssuer interface {
	Refresh(ctx context.Context, uid string) (*Session, error)
}

// TokenVerifier turns a bearer token into a Caller.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Caller, error)
}

// AccountService is the sign in surface of the identity provider.
type AccountService interface {
	TokenIssuer
	TokenVerifier
	SignUpWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignInWithFederatedToken(ctx context.Context, idToken string) (*Session, error)
}

// SubmissionStore is the pendingRegistrations collection.
type SubmissionStore interface {
	GetSubmission(ctx context.Context, uid string) (*PendingSubmission, error)
	// SetSubmission writes the full record, replacing any existing one.
	SetSubmission(ctx context.Context, submission *PendingSubmission) (*PendingSubmission, error)
	// UpdateSubmission applies a partial update and fails with not-found when
	// the record does not exist.
	UpdateSubmission(ctx context.Context, uid string, update SubmissionUpdate) (*PendingSubmission, error)
	ListSubmissions(ctx context.Context, status SubmissionStatus) ([]*PendingSubmission, error)
}

// ProfileStore is the users collection.
type ProfileStore interface {
	GetProfile(ctx context.Context, uid string) (*ApprovedProfile, error)
	// MergeProfile upserts the profile and stamps its completion and approval times.
	MergeProfile(ctx context.Context, profile *ApprovedProfile) (*ApprovedProfile, error)
}

// IntentStore keeps approval intent records.
type IntentStore interface {
	CreateIntent(ctx context.Context, intent *ApprovalIntent) (*ApprovalIntent, error)
	AdvanceIntent(ctx context.Context, id string, step IntentStep) error
	GetIntent(ctx context.Context, id string) (*ApprovalIntent, error)
	ListOpenIntents(ctx context.Context) ([]*ApprovalIntent, error)
	FindOpenIntent(ctx context.Context, uid string) (*ApprovalIntent, error)
}

// RecordStore groups every collection the approval flow reads or writes.
type RecordStore interface {
	SubmissionStore
	ProfileStore
	IntentStore
}

// Config holds approval options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetTokenExpiration() time.Duration
	GetAdminAllowList() []string
	GetResubmissionPolicy() string
	GetValidatePayload() bool
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] APPROVAL "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] APPROVAL "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] APPROVAL "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] APPROVAL "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
