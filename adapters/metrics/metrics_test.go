package metrics

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-approval"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkCountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewSink(reg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.Record(ctx, approval.ActivityEvent{
		EventType:  approval.ActivityRegistrationSubmitted,
		Actor:      approval.ActorRef{ID: "u1", Type: approval.ActorTypeUser},
		ToStatus:   approval.SubmissionPending,
		OccurredAt: time.Unix(1700000000, 0),
	}))
	require.NoError(t, sink.Record(ctx, approval.ActivityEvent{
		EventType:  approval.ActivityRegistrationApproved,
		Actor:      approval.ActorRef{ID: "admin", Type: approval.ActorTypeAdmin},
		FromStatus: approval.SubmissionPending,
		ToStatus:   approval.SubmissionApproved,
	}))
	require.NoError(t, sink.Record(ctx, approval.ActivityEvent{
		EventType: approval.ActivityAdminGranted,
	}))

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.events.WithLabelValues("registration.submitted", "user")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.events.WithLabelValues("admin.granted", "system")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.transitions.WithLabelValues("none", "pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.transitions.WithLabelValues("pending", "approved")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(sink.lastEvent.WithLabelValues("registration.submitted")))
}

func TestNewSinkRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewSink(reg)
	require.NoError(t, err)

	_, err = NewSink(reg)
	assert.Error(t, err)
}

func TestHandlerExposesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewSink(reg)
	require.NoError(t, err)
	require.NoError(t, sink.Record(context.Background(), approval.ActivityEvent{EventType: approval.ActivityRegistrationEscalated}))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "approval_activity_events_total"))
}
