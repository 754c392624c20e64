package approval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestEscalation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, WithStoreClock(tickingClock()))
	sink := &capturingSink{}

	submit := NewSubmitRegistrationHandler(store, WithSubmitLogger(nopLogger{}))
	handler := NewEscalationHandler(store,
		WithEscalationLogger(nopLogger{}),
		WithEscalationActivitySink(sink),
	)

	user := &stubUser{uid: "u2", email: "u2@example.com"}
	_, err := submit.Execute(ctx, user, SubmitRegistrationMessage{Role: "parent"})
	require.NoError(t, err)

	rejected := SubmissionRejected
	reason := "Incomplete ID info"
	_, err = store.UpdateSubmission(ctx, "u2", SubmissionUpdate{Status: &rejected, RejectionReason: &reason, StampReviewed: true})
	require.NoError(t, err)

	submission, err := handler.RequestEscalation(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, SubmissionRejected, submission.Status)
	require.NotNil(t, submission.EscalationRequestedAt)

	stored, err := store.GetSubmission(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, SubmissionRejected, stored.Status)
	require.NotNil(t, stored.RejectionReason)
	assert.Equal(t, reason, *stored.RejectionReason)
	require.NotNil(t, stored.EscalationRequestedAt)

	assert.Equal(t, []ActivityEventType{ActivityRegistrationEscalated}, sink.types())
}

func TestRequestEscalationErrors(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	handler := NewEscalationHandler(store, WithEscalationLogger(nopLogger{}))

	_, err := handler.RequestEscalation(ctx, nil)
	assert.Equal(t, KindUnauthenticated, ErrorKind(err))

	_, err = handler.RequestEscalation(ctx, &stubUser{uid: "nobody"})
	assert.True(t, IsNotFound(err))

	_, err = store.GetSubmission(ctx, "nobody")
	assert.True(t, IsNotFound(err), "escalation must not create a record")
}
