package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildhall/guildhall-backend/internal/models"
)

func TestGroupIDFromPath(t *testing.T) {
	assert.Equal(t, "g1", groupIDFromPath("groups/g1"))
	assert.Equal(t, "g1", groupIDFromPath("groups/g1/messages/m1"))
	assert.Equal(t, "", groupIDFromPath("xp/alice"))
}

func TestRealtimeForwarderFansOutToGroupSubscribers(t *testing.T) {
	env := newTestEnv(t)
	group := env.seedGroup(t, "alice", "bob")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartRealtimeForwarder(ctx, env.st)

	events, unsubscribe := HubSubscribe(group.ID)
	defer unsubscribe()

	otherEvents, otherUnsub := HubSubscribe("some-other-group")
	defer otherUnsub()

	_, err := env.chat.InsertMessage(ctx, &models.Message{
		GroupID:  group.ID,
		SenderID: "alice",
		Type:     models.TypeText,
		Text:     "hello",
	})
	require.NoError(t, err)

	select {
	case evt := <-events:
		assert.Equal(t, "update", evt.Type)
		assert.Equal(t, group.ID, evt.GroupID)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a realtime event for the group")
	}

	select {
	case evt := <-otherEvents:
		t.Fatalf("unexpected event for other group: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}
