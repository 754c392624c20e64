// Package metrics counts approval activity with Prometheus.
package metrics

import (
	"context"
	"net/http"

	"github.com/goliatone/go-approval"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "approval"

// Sink is an approval.ActivitySink backed by Prometheus collectors.
type Sink struct {
	events      *prometheus.CounterVec
	transitions *prometheus.CounterVec
	lastEvent   *prometheus.GaugeVec
}

var _ approval.ActivitySink = (*Sink)(nil)

// NewSink builds the collectors and registers them with reg. A nil reg uses
// the default registerer.
func NewSink(reg prometheus.Registerer) (*Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	s := &Sink{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_events_total",
			Help:      "Approval activity events by type and actor type",
		}, []string{"event", "actor_type"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submission_transitions_total",
			Help:      "Pending submission status transitions",
		}, []string{"from", "to"}),
		lastEvent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "activity_last_event_timestamp_seconds",
			Help:      "Unix time of the last event of each type",
		}, []string{"event"}),
	}

	for _, c := range []prometheus.Collector{s.events, s.transitions, s.lastEvent} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Sink) Record(_ context.Context, event approval.ActivityEvent) error {
	actorType := event.Actor.Type
	if actorType == "" {
		actorType = approval.ActorTypeSystem
	}

	s.events.WithLabelValues(string(event.EventType), actorType).Inc()
	if event.ToStatus != "" {
		from := string(event.FromStatus)
		if from == "" {
			from = "none"
		}
		s.transitions.WithLabelValues(from, string(event.ToStatus)).Inc()
	}
	if !event.OccurredAt.IsZero() {
		s.lastEvent.WithLabelValues(string(event.EventType)).Set(float64(event.OccurredAt.Unix()))
	}
	return nil
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
