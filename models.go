package approval

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Role is the application role a user registers for.
type Role string

const (
	RoleParent  Role = "parent"
	RoleTeacher Role = "teacher"
)

// IsValid checks if the role is one of the supported roles
func (r Role) IsValid() bool {
	switch r {
	case RoleParent, RoleTeacher:
		return true
	default:
		return false
	}
}

// ParseRole safely parses a string into a Role
func ParseRole(s string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	return role, role.IsValid()
}

// SubmissionStatus is the moderation status stored on a pending submission.
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionApproved SubmissionStatus = "approved"
	SubmissionRejected SubmissionStatus = "rejected"
)

// Status is the resolved approval state of a user.
type Status string

const (
	StatusNone     Status = "none"
	StatusPending  Status = "pending"
	StatusRejected Status = "rejected"
	StatusApproved Status = "approved"
)

// Provider names the sign in method used by the registering user.
type Provider string

const (
	ProviderPassword Provider = "password"
	ProviderGoogle   Provider = "google"
)

// PendingSubmission is the moderation queue record, one per uid.
type PendingSubmission struct {
	bun.BaseModel         `bun:"table:pending_registrations,alias:pr"`
	UID                   string           `bun:"uid,pk" json:"uid"`
	Email                 string           `bun:"email" json:"email,omitempty"`
	Role                  Role             `bun:"role,notnull" json:"role"`
	Payload               map[string]any   `bun:"payload" json:"payload,omitempty"`
	Provider              Provider         `bun:"provider" json:"provider,omitempty"`
	Status                SubmissionStatus `bun:"status,notnull" json:"status"`
	RejectionReason       *string          `bun:"rejection_reason" json:"rejectionReason"`
	EscalationRequestedAt *time.Time       `bun:"escalation_requested_at,nullzero" json:"escalationRequestedAt"`
	CreatedAt             *time.Time       `bun:"created_at,nullzero" json:"createdAt,omitempty"`
	ReviewedAt            *time.Time       `bun:"reviewed_at,nullzero" json:"reviewedAt,omitempty"`
	ApprovedAt            *time.Time       `bun:"approved_at,nullzero" json:"approvedAt,omitempty"`
}

// ApprovedProfile is the durable record of an approved user.
type ApprovedProfile struct {
	bun.BaseModel           `bun:"table:users,alias:usr"`
	UID                     string         `bun:"uid,pk" json:"uid"`
	Email                   string         `bun:"email" json:"email,omitempty"`
	Role                    Role           `bun:"role" json:"role"`
	RegistrationPayload     map[string]any `bun:"registration_payload" json:"registrationPayload,omitempty"`
	RegistrationCompleted   bool           `bun:"registration_completed" json:"registrationCompleted"`
	RegistrationCompletedAt *time.Time     `bun:"registration_completed_at,nullzero" json:"registrationCompletedAt,omitempty"`
	Approved                bool           `bun:"approved" json:"approved"`
	ApprovedAt              *time.Time     `bun:"approved_at,nullzero" json:"approvedAt,omitempty"`
}

// IntentStep tracks how far an approval has been applied.
type IntentStep string

const (
	IntentStarted        IntentStep = "started"
	IntentClaimsSet      IntentStep = "claims_set"
	IntentProfileWritten IntentStep = "profile_written"
	IntentCompleted      IntentStep = "completed"
)

var intentOrder = map[IntentStep]int{
	IntentStarted:        0,
	IntentClaimsSet:      1,
	IntentProfileWritten: 2,
	IntentCompleted:      3,
}

// Reached reports whether s is at or past step.
func (s IntentStep) Reached(step IntentStep) bool {
	return intentOrder[s] >= intentOrder[step]
}

// ApprovalIntent records an approval before its sub writes are applied so a
// partially applied approval can be detected and resumed.
type ApprovalIntent struct {
	bun.BaseModel `bun:"table:approval_intents,alias:ai"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	UID           string     `bun:"uid,notnull" json:"uid"`
	ActorUID      string     `bun:"actor_uid" json:"actorUid,omitempty"`
	Role          Role       `bun:"role" json:"role"`
	Step          IntentStep `bun:"step,notnull" json:"step"`
	CreatedAt     *time.Time `bun:"created_at,nullzero" json:"createdAt,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero" json:"updatedAt,omitempty"`
}

// ApprovalStatus is the derived view returned by the resolver. It is never persisted.
type ApprovalStatus struct {
	Approved        bool    `json:"approved"`
	Status          Status  `json:"status"`
	RejectionReason *string `json:"rejectionReason,omitempty"`
}

// Equal compares two statuses including the rejection reason.
func (s ApprovalStatus) Equal(o ApprovalStatus) bool {
	if s.Approved != o.Approved || s.Status != o.Status {
		return false
	}
	if s.RejectionReason == nil || o.RejectionReason == nil {
		return s.RejectionReason == nil && o.RejectionReason == nil
	}
	return *s.RejectionReason == *o.RejectionReason
}

// SubmissionUpdate is a partial update applied to an existing submission.
// The Stamp fields ask the store to set the matching timestamp to its own clock.
type SubmissionUpdate struct {
	Status          *SubmissionStatus
	RejectionReason *string
	StampReviewed   bool
	StampApproved   bool
	StampEscalation bool
}
