// Package activitymap flattens account activity into records that audit
// pipelines can store without knowing the auth types.
package activitymap

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	auth "github.com/goliatone/go-member-auth"
)

// MetadataKeyActorType stores the actor type derived from auth.ActorRef.Type.
const MetadataKeyActorType = "actor_type"

const (
	defaultChannel    = "members"
	defaultObjectType = "account"
	defaultActorID    = "anonymous"
)

// Record is the flattened activity shape.
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
}

// WithChannel sets the channel of produced records.
func WithChannel(channel string) Option {
	return func(o *options) {
		o.channel = strings.TrimSpace(channel)
	}
}

// WithActorFallback sets the actor id used when an event has none.
func WithActorFallback(actorID string) Option {
	return func(o *options) {
		o.actorFallback = strings.TrimSpace(actorID)
	}
}

// Normalize converts event into a Record.
func Normalize(event auth.ActivityEvent, opts ...Option) Record {
	o := options{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	return Record{
		ActorID:    firstNonEmpty(strings.TrimSpace(event.Actor.ID), o.actorFallback),
		Verb:       string(event.EventType),
		ObjectType: o.objectType,
		ObjectID:   strings.TrimSpace(event.AccountID),
		Channel:    o.channel,
		Metadata:   metadata(event),
		OccurredAt: occurredAt.UTC(),
	}
}

// JSONLines returns a sink that writes one JSON record per line to w.
func JSONLines(w io.Writer, opts ...Option) auth.ActivitySink {
	var mu sync.Mutex
	enc := json.NewEncoder(w)
	return auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
		rec := Normalize(event, opts...)
		mu.Lock()
		defer mu.Unlock()
		return enc.Encode(rec)
	})
}

func metadata(event auth.ActivityEvent) map[string]any {
	var out map[string]any
	if len(event.Metadata) > 0 {
		out = make(map[string]any, len(event.Metadata)+1)
		for k, v := range event.Metadata {
			out[k] = v
		}
	}

	if actorType := strings.TrimSpace(event.Actor.Type); actorType != "" {
		if out == nil {
			out = map[string]any{}
		}
		if _, exists := out[MetadataKeyActorType]; !exists {
			out[MetadataKeyActorType] = actorType
		}
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
