package approval

import (
	"context"
	"time"
)

// EscalationHandler lets a user flag their own submission for human follow up.
type EscalationHandler struct {
	store        SubmissionStore
	activitySink ActivitySink
	logger       Logger
	now          func() time.Time
}

type EscalationOption func(*EscalationHandler)

func WithEscalationActivitySink(sink ActivitySink) EscalationOption {
	return func(h *EscalationHandler) {
		h.activitySink = normalizeActivitySink(sink)
	}
}

func WithEscalationLogger(logger Logger) EscalationOption {
	return func(h *EscalationHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func NewEscalationHandler(store SubmissionStore, opts ...EscalationOption) *EscalationHandler {
	h := &EscalationHandler{
		store:        store,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// RequestEscalation stamps escalationRequestedAt and leaves status as is. It
// fails with not-found when the user never submitted.
func (h *EscalationHandler) RequestEscalation(ctx context.Context, user User) (*PendingSubmission, error) {
	if user == nil || user.UID() == "" {
		return nil, errorf(ErrUnauthenticated, nil, "sign in to request escalation")
	}
	uid := user.UID()

	submission, err := h.store.UpdateSubmission(ctx, uid, SubmissionUpdate{StampEscalation: true})
	if err != nil {
		return nil, err
	}

	h.logger.Info("escalation requested", "uid", uid, "status", submission.Status)

	recordActivity(ctx, h.activitySink, h.logger, h.now, ActivityEvent{
		EventType:  ActivityRegistrationEscalated,
		Actor:      ActorRef{ID: uid, Type: ActorTypeUser},
		UserID:     uid,
		FromStatus: submission.Status,
		ToStatus:   submission.Status,
	})
	return submission, nil
}
