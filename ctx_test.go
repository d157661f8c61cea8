package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityContext(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)
	assert.Nil(t, ActorFromContext(context.Background()))

	identity := SessionIdentity{ID: uuid.New(), Email: "ada@example.com"}
	ctx := WithIdentity(context.Background(), identity)

	got, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, identity, got)

	actor := ActorFromContext(ctx)
	require.NotNil(t, actor)
	assert.Equal(t, identity.ID, actor.ID)
}
