package activitymap

import (
	"context"
	"maps"
	"strings"
	"time"

	"github.com/goliatone/go-approval"
)

const (
	// MetadataKeyActorType stores approval.ActorRef.Type.
	MetadataKeyActorType = "actor_type"
	// MetadataKeyFromStatus stores the submission status before a decision.
	MetadataKeyFromStatus = "from_status"
	// MetadataKeyToStatus stores the submission status after a decision.
	MetadataKeyToStatus = "to_status"
)

const (
	defaultChannel    = "approval"
	defaultObjectType = "registration"
	defaultActorID    = "system"
)

// Record is the flattened activity shape handed to downstream transports.
type Record struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Option func(*options)

type options struct {
	channel       string
	objectType    string
	actorFallback string
	now           func() time.Time
}

// Normalize flattens an approval event. The object is the registration of
// event.UserID and the actor falls back to the user, then to "system".
func Normalize(event approval.ActivityEvent, opts ...Option) Record {
	o := options{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = o.now()
	}

	return Record{
		ActorID:    firstNonEmpty(strings.TrimSpace(event.Actor.ID), strings.TrimSpace(event.UserID), o.actorFallback),
		Verb:       string(event.EventType),
		ObjectType: o.objectType,
		ObjectID:   strings.TrimSpace(event.UserID),
		Channel:    o.channel,
		Metadata:   metadata(event),
		OccurredAt: occurredAt,
	}
}

func WithChannel(channel string) Option {
	return func(o *options) {
		o.channel = strings.TrimSpace(channel)
	}
}

func WithObjectType(objectType string) Option {
	return func(o *options) {
		o.objectType = strings.TrimSpace(objectType)
	}
}

func WithActorFallback(actorID string) Option {
	return func(o *options) {
		o.actorFallback = strings.TrimSpace(actorID)
	}
}

// WithClock sets the clock used when an event has no timestamp.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.now = clock
		}
	}
}

// Sink returns an approval.ActivitySink that normalizes every event and
// hands it to publish.
func Sink(publish func(ctx context.Context, record Record) error, opts ...Option) approval.ActivitySink {
	return approval.ActivitySinkFunc(func(ctx context.Context, event approval.ActivityEvent) error {
		if publish == nil {
			return nil
		}
		return publish(ctx, Normalize(event, opts...))
	})
}

func metadata(event approval.ActivityEvent) map[string]any {
	var out map[string]any
	set := func(key string, value any, overwrite bool) {
		if out == nil {
			out = map[string]any{}
		}
		if _, exists := out[key]; exists && !overwrite {
			return
		}
		out[key] = value
	}

	if len(event.Metadata) > 0 {
		out = maps.Clone(event.Metadata)
	}
	if actorType := strings.TrimSpace(event.Actor.Type); actorType != "" {
		set(MetadataKeyActorType, actorType, false)
	}
	if event.FromStatus != "" {
		set(MetadataKeyFromStatus, string(event.FromStatus), true)
	}
	if event.ToStatus != "" {
		set(MetadataKeyToStatus, string(event.ToStatus), true)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
