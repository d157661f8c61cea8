package activitymap_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	auth "github.com/goliatone/go-member-auth"
	"github.com/goliatone/go-member-auth/activitymap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		EventType: auth.ActivityEventVerificationApproved,
		Actor:     auth.ActorRef{ID: "admin-42", Type: "account"},
		AccountID: "acc-100",
		Metadata: map[string]any{
			"verification_id": "vrq-1",
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	assert.Equal(t, "admin-42", out.ActorID)
	assert.Equal(t, string(auth.ActivityEventVerificationApproved), out.Verb)
	assert.Equal(t, "account", out.ObjectType)
	assert.Equal(t, "acc-100", out.ObjectID)
	assert.Equal(t, "members", out.Channel)
	assert.True(t, out.OccurredAt.Equal(ts))
	assert.Equal(t, "vrq-1", out.Metadata["verification_id"])
	assert.Equal(t, "account", out.Metadata[activitymap.MetadataKeyActorType])
}

func TestNormalizeFallbacks(t *testing.T) {
	t.Parallel()

	event := auth.ActivityEvent{
		EventType: auth.ActivityEventSignInFailure,
		Metadata:  map[string]any{"email": "ada@example.com"},
	}

	out := activitymap.Normalize(event,
		activitymap.WithChannel("audit"),
		activitymap.WithActorFallback("system"),
	)

	assert.Equal(t, "system", out.ActorID)
	assert.Equal(t, "audit", out.Channel)
	assert.False(t, out.OccurredAt.IsZero())
	_, hasType := out.Metadata[activitymap.MetadataKeyActorType]
	assert.False(t, hasType)

	// source metadata is not mutated
	out.Metadata["extra"] = true
	_, leaked := event.Metadata["extra"]
	assert.False(t, leaked)
}

func TestJSONLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := activitymap.JSONLines(&buf)

	require.NoError(t, sink.Record(context.Background(), auth.ActivityEvent{
		EventType: auth.ActivityEventSignup,
		AccountID: "acc-1",
	}))
	require.NoError(t, sink.Record(context.Background(), auth.ActivityEvent{
		EventType: auth.ActivityEventAccountRemoved,
		AccountID: "acc-1",
	}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var rec activitymap.Record
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, string(auth.ActivityEventAccountRemoved), rec.Verb)
	assert.Equal(t, "acc-1", rec.ObjectID)
	assert.Equal(t, "anonymous", rec.ActorID)
}
