package approval

import "strings"

// SubmissionStateMachine holds the transition graph for PendingSubmission.status.
type SubmissionStateMachine interface {
	// CanTransition returns nil when a submission in from may move to to.
	CanTransition(from, to SubmissionStatus) error
	// CanResubmit returns nil when a new submission may replace existing.
	CanResubmit(existing *PendingSubmission) error
}

// ResubmissionPolicy decides what happens when a uid registers twice.
type ResubmissionPolicy string

const (
	// ResubmitOverwrite replaces the earlier submission (last write wins).
	ResubmitOverwrite ResubmissionPolicy = "overwrite"
	// ResubmitReject refuses a second submission with failed-precondition.
	ResubmitReject ResubmissionPolicy = "reject"
)

// ParseResubmissionPolicy is case insensitive and falls back to
// ResubmitOverwrite for unknown values.
func ParseResubmissionPolicy(s string) ResubmissionPolicy {
	if ResubmissionPolicy(strings.ToLower(strings.TrimSpace(s))) == ResubmitReject {
		return ResubmitReject
	}
	return ResubmitOverwrite
}

// NewSubmissionStateMachine returns the default transition graph.
func NewSubmissionStateMachine(policy ResubmissionPolicy) SubmissionStateMachine {
	return &submissionStateMachine{
		policy: policy,
		transitions: map[SubmissionStatus]map[SubmissionStatus]struct{}{
			SubmissionPending: {
				SubmissionApproved: {},
				SubmissionRejected: {},
			},
			SubmissionRejected: {
				SubmissionApproved: {},
				SubmissionRejected: {},
			},
			SubmissionApproved: {
				SubmissionApproved: {},
			},
		},
	}
}

type submissionStateMachine struct {
	policy      ResubmissionPolicy
	transitions map[SubmissionStatus]map[SubmissionStatus]struct{}
}

func (sm *submissionStateMachine) CanTransition(from, to SubmissionStatus) error {
	if from == "" {
		from = SubmissionPending
	}

	if allowed, ok := sm.transitions[from]; ok {
		if _, exists := allowed[to]; exists {
			return nil
		}
	}

	if from == SubmissionApproved {
		return errorf(ErrFailedPrecondition, map[string]any{"from": from, "to": to},
			"registration is already approved")
	}

	return errorf(ErrFailedPrecondition, map[string]any{"from": from, "to": to},
		"invalid registration transition %s -> %s", from, to)
}

func (sm *submissionStateMachine) CanResubmit(existing *PendingSubmission) error {
	if existing == nil {
		return nil
	}

	if existing.Status == SubmissionApproved {
		return errorf(ErrFailedPrecondition, map[string]any{"uid": existing.UID},
			"registration is already approved")
	}

	if sm.policy == ResubmitReject {
		return errorf(ErrFailedPrecondition, map[string]any{"uid": existing.UID},
			"registration already submitted")
	}

	return nil
}
