package approval

import (
	"strings"
	"sync"
)

// AdminPolicy decides whether an email belongs to an approval administrator
// independently of the approval_admin claim.
type AdminPolicy interface {
	IsAdmin(email string) bool
}

// AdminPolicyFunc adapts a function to the AdminPolicy interface.
type AdminPolicyFunc func(email string) bool

func (f AdminPolicyFunc) IsAdmin(email string) bool {
	if f == nil {
		return false
	}
	return f(email)
}

// AllowList is a reloadable set of administrator emails, compared case insensitively.
type AllowList struct {
	mu     sync.RWMutex
	emails map[string]struct{}
}

var _ AdminPolicy = (*AllowList)(nil)

func NewAllowList(emails ...string) *AllowList {
	l := &AllowList{}
	l.Replace(emails)
	return l
}

// Replace swaps the allowed emails atomically.
func (l *AllowList) Replace(emails []string) {
	next := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		e = normalizeEmail(e)
		if e == "" {
			continue
		}
		next[e] = struct{}{}
	}

	l.mu.Lock()
	l.emails = next
	l.mu.Unlock()
}

func (l *AllowList) IsAdmin(email string) bool {
	email = normalizeEmail(email)
	if email == "" {
		return false
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.emails[email]
	return ok
}

// Len returns the number of allowed emails.
func (l *AllowList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.emails)
}

// AdminAuthorizer gates the privileged approval operations.
type AdminAuthorizer struct {
	policy AdminPolicy
}

func NewAdminAuthorizer(policy AdminPolicy) *AdminAuthorizer {
	if policy == nil {
		policy = NewAllowList()
	}
	return &AdminAuthorizer{policy: policy}
}

// Authorize fails with unauthenticated for anonymous callers and with
// permission-denied unless the caller holds approval_admin or has a verified
// allow-listed email.
func (a *AdminAuthorizer) Authorize(caller *Caller) error {
	if caller == nil || caller.UID == "" {
		return errorf(ErrUnauthenticated, nil, "authentication required")
	}

	if caller.Claims.ApprovalAdmin() || (caller.EmailVerified && a.policy.IsAdmin(caller.Email)) {
		return nil
	}

	return errorf(ErrPermissionDenied, map[string]any{"uid": caller.UID},
		"you are not authorized to approve registrations")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
