package approval

import (
	"context"
	"strings"
	"time"
)

// DecisionOption customizes the admin decision service.
type DecisionOption func(*DecisionService)

func WithDecisionLogger(logger Logger) DecisionOption {
	return func(s *DecisionService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithDecisionActivitySink(sink ActivitySink) DecisionOption {
	return func(s *DecisionService) {
		s.activitySink = normalizeActivitySink(sink)
	}
}

func WithDecisionStateMachine(sm SubmissionStateMachine) DecisionOption {
	return func(s *DecisionService) {
		if sm != nil {
			s.stateMachine = sm
		}
	}
}

// WithDecisionClock injects a custom clock (useful for tests).
func WithDecisionClock(clock func() time.Time) DecisionOption {
	return func(s *DecisionService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// DecisionService holds the privileged approval operations. It keeps no
// state between calls.
type DecisionService struct {
	store        RecordStore
	identity     IdentityProvider
	authorizer   *AdminAuthorizer
	stateMachine SubmissionStateMachine
	activitySink ActivitySink
	logger       Logger
	now          func() time.Time
}

func NewDecisionService(store RecordStore, identity IdentityProvider, authorizer *AdminAuthorizer, opts ...DecisionOption) *DecisionService {
	if authorizer == nil {
		authorizer = NewAdminAuthorizer(nil)
	}
	s := &DecisionService{
		store:        store,
		identity:     identity,
		authorizer:   authorizer,
		stateMachine: NewSubmissionStateMachine(ResubmitOverwrite),
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// SetApprovalAdmin grants the approval_admin claim to uid, keeping its other claims.
func (s *DecisionService) SetApprovalAdmin(ctx context.Context, caller *Caller, uid string) error {
	if err := s.authorize(ctx, caller, "setApprovalAdmin"); err != nil {
		return err
	}

	uid = strings.TrimSpace(uid)
	if uid == "" {
		return errorf(ErrInvalidArgument, nil, "missing uid")
	}

	existing, err := s.identity.GetCustomClaims(ctx, uid)
	if err != nil {
		return s.identityError(err, "failed to read claims")
	}

	if err := s.identity.SetCustomClaims(ctx, uid, existing.Merge(Claims{ClaimApprovalAdmin: true})); err != nil {
		return s.identityError(err, "failed to set claims")
	}

	s.logger.Info("approval admin granted", "uid", uid, "actor", caller.UID)

	recordActivity(ctx, s.activitySink, s.logger, s.now, ActivityEvent{
		EventType: ActivityAdminGranted,
		Actor:     ActorRef{ID: caller.UID, Type: ActorTypeAdmin},
		UserID:    uid,
	})
	return nil
}

// Approve elevates uid. Claims are set before the profile is written and the
// profile before the submission status, with an intent record tracking progress.
func (s *DecisionService) Approve(ctx context.Context, caller *Caller, uid string) error {
	if err := s.authorize(ctx, caller, "approveRegistration"); err != nil {
		return err
	}

	uid = strings.TrimSpace(uid)
	if uid == "" {
		return errorf(ErrInvalidArgument, nil, "missing uid")
	}

	pending, err := s.store.GetSubmission(ctx, uid)
	if err != nil {
		return err
	}

	if err := s.stateMachine.CanTransition(pending.Status, SubmissionApproved); err != nil {
		return err
	}

	// an unknown account would leave an intent nothing can finish
	if _, err := s.identity.GetCustomClaims(ctx, uid); err != nil {
		return s.identityError(err, "failed to read claims")
	}

	intent, err := s.openIntent(ctx, caller, pending)
	if err != nil {
		return err
	}

	if err := s.applyApproval(ctx, intent, pending); err != nil {
		s.logger.Error("approval interrupted", "uid", uid, "intent", intent.ID.String(), "step", intent.Step, "error", err)
		return err
	}

	s.logger.Info("registration approved", "uid", uid, "actor", caller.UID)

	recordActivity(ctx, s.activitySink, s.logger, s.now, ActivityEvent{
		EventType:  ActivityRegistrationApproved,
		Actor:      ActorRef{ID: caller.UID, Type: ActorTypeAdmin},
		UserID:     uid,
		FromStatus: pending.Status,
		ToStatus:   SubmissionApproved,
		Metadata:   map[string]any{"role": string(intent.Role), "intent_id": intent.ID.String()},
	})
	return nil
}

// openIntent reuses an unfinished intent of the same uid so retries do not
// pile up open intents.
func (s *DecisionService) openIntent(ctx context.Context, caller *Caller, pending *PendingSubmission) (*ApprovalIntent, error) {
	intent, err := s.store.FindOpenIntent(ctx, pending.UID)
	if err == nil {
		return intent, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	return s.store.CreateIntent(ctx, &ApprovalIntent{
		UID:      pending.UID,
		ActorUID: caller.UID,
		Role:     resolveRole(pending.Role),
		Step:     IntentStarted,
	})
}

// ResumeApproval finishes an approval whose intent never reached completion.
func (s *DecisionService) ResumeApproval(ctx context.Context, caller *Caller, intentID string) error {
	if err := s.authorize(ctx, caller, "resumeApproval"); err != nil {
		return err
	}

	intent, err := s.store.GetIntent(ctx, intentID)
	if err != nil {
		return err
	}
	if intent.Step.Reached(IntentCompleted) {
		return nil
	}

	pending, err := s.store.GetSubmission(ctx, intent.UID)
	if err != nil {
		return err
	}

	s.logger.Warn("resuming approval", "uid", intent.UID, "intent", intentID, "step", intent.Step)
	return s.applyApproval(ctx, intent, pending)
}

// OpenApprovals lists approvals that stopped before completing.
func (s *DecisionService) OpenApprovals(ctx context.Context, caller *Caller) ([]*ApprovalIntent, error) {
	if err := s.authorize(ctx, caller, "openApprovals"); err != nil {
		return nil, err
	}
	return s.store.ListOpenIntents(ctx)
}

// applyApproval runs the remaining steps of intent. Every step is a merge or
// overwrite, so replaying a step is harmless.
func (s *DecisionService) applyApproval(ctx context.Context, intent *ApprovalIntent, pending *PendingSubmission) error {
	uid := pending.UID
	role := resolveRole(pending.Role)
	id := intent.ID.String()

	if !intent.Step.Reached(IntentClaimsSet) {
		existing, err := s.identity.GetCustomClaims(ctx, uid)
		if err != nil {
			return s.identityError(err, "failed to read claims")
		}

		next := existing.Merge(Claims{ClaimApproved: true, ClaimRole: string(role)})
		if err := s.identity.SetCustomClaims(ctx, uid, next); err != nil {
			return s.identityError(err, "failed to set claims")
		}
		if err := s.advance(ctx, intent, id, IntentClaimsSet); err != nil {
			return err
		}
	}

	if !intent.Step.Reached(IntentProfileWritten) {
		payload := pending.Payload
		if payload == nil {
			payload = map[string]any{}
		}

		_, err := s.store.MergeProfile(ctx, &ApprovedProfile{
			UID:                   uid,
			Email:                 pending.Email,
			Role:                  role,
			RegistrationPayload:   payload,
			RegistrationCompleted: true,
			Approved:              true,
		})
		if err != nil {
			return err
		}
		if err := s.advance(ctx, intent, id, IntentProfileWritten); err != nil {
			return err
		}
	}

	if !intent.Step.Reached(IntentCompleted) {
		status := SubmissionApproved
		if _, err := s.store.UpdateSubmission(ctx, uid, SubmissionUpdate{
			Status:        &status,
			StampApproved: true,
		}); err != nil {
			return err
		}
		if err := s.advance(ctx, intent, id, IntentCompleted); err != nil {
			return err
		}
	}

	return nil
}

func (s *DecisionService) advance(ctx context.Context, intent *ApprovalIntent, id string, step IntentStep) error {
	if err := s.store.AdvanceIntent(ctx, id, step); err != nil {
		return err
	}
	intent.Step = step
	return nil
}

// Reject records reason on the submission of uid. Claims and profile are untouched.
func (s *DecisionService) Reject(ctx context.Context, caller *Caller, uid, reason string) error {
	if err := s.authorize(ctx, caller, "rejectRegistration"); err != nil {
		return err
	}

	uid = strings.TrimSpace(uid)
	if uid == "" {
		return errorf(ErrInvalidArgument, nil, "missing uid")
	}

	if strings.TrimSpace(reason) == "" {
		return errorf(ErrInvalidArgument, map[string]any{"uid": uid}, "rejection reason is required")
	}

	pending, err := s.store.GetSubmission(ctx, uid)
	if err != nil {
		return err
	}

	if err := s.stateMachine.CanTransition(pending.Status, SubmissionRejected); err != nil {
		return err
	}

	status := SubmissionRejected
	if _, err := s.store.UpdateSubmission(ctx, uid, SubmissionUpdate{
		Status:          &status,
		RejectionReason: &reason,
		StampReviewed:   true,
	}); err != nil {
		return err
	}

	s.logger.Info("registration rejected", "uid", uid, "actor", caller.UID)

	recordActivity(ctx, s.activitySink, s.logger, s.now, ActivityEvent{
		EventType:  ActivityRegistrationRejected,
		Actor:      ActorRef{ID: caller.UID, Type: ActorTypeAdmin},
		UserID:     uid,
		FromStatus: pending.Status,
		ToStatus:   SubmissionRejected,
		Metadata:   map[string]any{"reason": reason},
	})
	return nil
}

// ListPending returns the moderation queue, oldest first.
func (s *DecisionService) ListPending(ctx context.Context, caller *Caller) ([]*PendingSubmission, error) {
	if err := s.authorize(ctx, caller, "listPending"); err != nil {
		return nil, err
	}
	return s.store.ListSubmissions(ctx, SubmissionPending)
}

// authorize records denied attempts before returning the authorizer error.
func (s *DecisionService) authorize(ctx context.Context, caller *Caller, operation string) error {
	err := s.authorizer.Authorize(caller)
	if err != nil && ErrorKind(err) == KindPermissionDenied {
		s.logger.Warn("approval admin access denied", "uid", caller.UID, "operation", operation)
		recordActivity(ctx, s.activitySink, s.logger, s.now, ActivityEvent{
			EventType: ActivityAccessDenied,
			Actor:     ActorRef{ID: caller.UID, Type: ActorTypeUser},
			UserID:    caller.UID,
			Metadata:  map[string]any{"operation": operation},
		})
	}
	return err
}

func (s *DecisionService) identityError(err error, msg string) error {
	if kind := ErrorKind(err); kind != KindInternal {
		return err
	}
	return internalError(err, msg)
}

// resolveRole defaults submissions without a role to parent.
func resolveRole(role Role) Role {
	if role == "" {
		return RoleParent
	}
	return role
}
