package approval

import (
	"context"
)

// StatusReader is the read side of the record store used by the resolver.
type StatusReader interface {
	GetSubmission(ctx context.Context, uid string) (*PendingSubmission, error)
	GetProfile(ctx context.Context, uid string) (*ApprovedProfile, error)
}

// ResolverOption customizes the resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger overrides the logger used for swallowed read errors.
func WithResolverLogger(logger Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Resolver computes the canonical approval state of a user from a freshly
// refreshed token and the two record store documents.
type Resolver struct {
	store  StatusReader
	logger Logger
}

func NewResolver(store StatusReader, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:  store,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func notApproved() ApprovalStatus {
	return ApprovalStatus{Approved: false, Status: StatusNone}
}

// Resolve short circuits on the first match: approved claim, pending
// submission, approved profile, nothing. Read failures resolve to
// status none and are never reported as approved.
func (r *Resolver) Resolve(ctx context.Context, user User) ApprovalStatus {
	if user == nil {
		return notApproved()
	}
	uid := user.UID()

	claims, err := user.Claims(ctx, true)
	if err != nil {
		r.logger.Warn("approval status: token refresh failed", "uid", uid, "error", err)
		return notApproved()
	}
	if claims.Approved() {
		return ApprovalStatus{Approved: true, Status: StatusApproved}
	}

	submission, err := r.store.GetSubmission(ctx, uid)
	switch {
	case err == nil:
		if submission.Status == SubmissionRejected {
			return ApprovalStatus{Approved: false, Status: StatusRejected, RejectionReason: submission.RejectionReason}
		}
		return ApprovalStatus{Approved: false, Status: StatusPending, RejectionReason: submission.RejectionReason}
	case !IsNotFound(err):
		r.logger.Warn("approval status: submission read failed", "uid", uid, "error", err)
		return notApproved()
	}

	profile, err := r.store.GetProfile(ctx, uid)
	switch {
	case err == nil:
		if profile.Approved {
			return ApprovalStatus{Approved: true, Status: StatusApproved}
		}
	case !IsNotFound(err):
		r.logger.Warn("approval status: profile read failed", "uid", uid, "error", err)
	}

	return notApproved()
}

// NeedsRegistration is true only when the user has neither a submission nor
// a completed profile. Read failures answer false.
func (r *Resolver) NeedsRegistration(ctx context.Context, user User) bool {
	if user == nil {
		return false
	}
	uid := user.UID()

	_, err := r.store.GetSubmission(ctx, uid)
	switch {
	case err == nil:
		return false
	case !IsNotFound(err):
		r.logger.Warn("registration check: submission read failed", "uid", uid, "error", err)
		return false
	}

	profile, err := r.store.GetProfile(ctx, uid)
	switch {
	case err == nil:
		return !profile.RegistrationCompleted
	case IsNotFound(err):
		return true
	default:
		r.logger.Warn("registration check: profile read failed", "uid", uid, "error", err)
		return false
	}
}
