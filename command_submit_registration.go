package approval

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type SubmitRegistrationMessage struct {
	Role     string         `json:"role"`
	Payload  map[string]any `json:"payload"`
	Provider string         `json:"provider"`
}

func (e SubmitRegistrationMessage) Type() string { return "registration.submit" }

// SubmitRegistrationOption customizes the submission handler.
type SubmitRegistrationOption func(*SubmitRegistrationHandler)

// WithPayloadValidation enables server side validation of the role payload.
func WithPayloadValidation(enabled bool) SubmitRegistrationOption {
	return func(h *SubmitRegistrationHandler) {
		h.validatePayload = enabled
	}
}

// WithSubmissionStateMachine overrides the resubmission rules.
func WithSubmissionStateMachine(sm SubmissionStateMachine) SubmitRegistrationOption {
	return func(h *SubmitRegistrationHandler) {
		if sm != nil {
			h.stateMachine = sm
		}
	}
}

func WithSubmitActivitySink(sink ActivitySink) SubmitRegistrationOption {
	return func(h *SubmitRegistrationHandler) {
		h.activitySink = normalizeActivitySink(sink)
	}
}

func WithSubmitLogger(logger Logger) SubmitRegistrationOption {
	return func(h *SubmitRegistrationHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// SubmitRegistrationHandler writes the pending submission of the calling user.
type SubmitRegistrationHandler struct {
	store           SubmissionStore
	stateMachine    SubmissionStateMachine
	validatePayload bool
	activitySink    ActivitySink
	logger          Logger
	now             func() time.Time
}

func NewSubmitRegistrationHandler(store SubmissionStore, opts ...SubmitRegistrationOption) *SubmitRegistrationHandler {
	h := &SubmitRegistrationHandler{
		store:        store,
		stateMachine: NewSubmissionStateMachine(ResubmitOverwrite),
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

// Execute submits on behalf of user, who is always the owner of the record.
func (h *SubmitRegistrationHandler) Execute(ctx context.Context, user User, msg SubmitRegistrationMessage) (*PendingSubmission, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during registration submit")
	default:
		return h.execute(ctx, user, msg)
	}
}

func (h *SubmitRegistrationHandler) execute(ctx context.Context, user User, msg SubmitRegistrationMessage) (*PendingSubmission, error) {
	if user == nil || user.UID() == "" {
		return nil, errorf(ErrUnauthenticated, nil, "sign in to submit a registration")
	}

	role, ok := ParseRole(msg.Role)
	if !ok {
		return nil, errorf(ErrInvalidArgument, map[string]any{"role": msg.Role}, "unsupported role %q", msg.Role)
	}

	if h.validatePayload {
		if err := ValidatePayload(role, msg.Payload); err != nil {
			return nil, err
		}
	}

	uid := user.UID()

	existing, err := h.store.GetSubmission(ctx, uid)
	if err != nil && !IsNotFound(err) {
		return nil, err
	}
	if err := h.stateMachine.CanResubmit(existing); err != nil {
		return nil, err
	}

	provider := Provider(msg.Provider)
	if provider == "" {
		provider = ProviderPassword
	}

	payload := msg.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	submission, err := h.store.SetSubmission(ctx, &PendingSubmission{
		UID:      uid,
		Email:    user.Email(),
		Role:     role,
		Payload:  payload,
		Provider: provider,
		Status:   SubmissionPending,
	})
	if err != nil {
		h.logger.Error("registration submit failed", "uid", uid, "error", err)
		return nil, err
	}

	h.logger.Info("registration submitted", "uid", uid, "role", role, "resubmission", existing != nil)

	recordActivity(ctx, h.activitySink, h.logger, h.now, ActivityEvent{
		EventType: ActivityRegistrationSubmitted,
		Actor:     ActorRef{ID: uid, Type: ActorTypeUser},
		UserID:    uid,
		ToStatus:  SubmissionPending,
		Metadata:  map[string]any{"role": string(role), "provider": string(provider)},
	})

	return submission, nil
}
