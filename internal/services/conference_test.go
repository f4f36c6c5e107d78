package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConferenceLifecycle(t *testing.T) {
	env := newTestEnv(t)
	group := env.seedGroup(t, "alice", "bob")
	svc := NewConferenceService(NewMessageService(env.chat, env.xp, nil))
	ctx := context.Background()

	msgID, err := svc.Start(ctx, member("alice"), group.ID)
	require.NoError(t, err)
	require.NotEmpty(t, msgID)

	started, err := env.chat.Message(ctx, group.ID, msgID)
	require.NoError(t, err)
	assert.True(t, started.IsSystem)
	assert.Equal(t, meetingStartedText, started.Text)
	assert.False(t, started.MeetingEnded)

	// Announcements earn no XP; they are backend-emitted.
	assert.Equal(t, 0, env.score(t, "alice"))

	require.NoError(t, svc.End(ctx, member("alice"), group.ID, msgID))

	ended, err := env.chat.Message(ctx, group.ID, msgID)
	require.NoError(t, err)
	assert.Equal(t, msgID, ended.ID)
	assert.Equal(t, meetingEndedText, ended.Text)
	assert.True(t, ended.MeetingEnded)

	// Ending twice is a conflict; the marker is already in place.
	err = svc.End(ctx, member("alice"), group.ID, msgID)
	assert.ErrorIs(t, err, ErrNotConferenceMessage)
}

func TestConferenceEndRejectsOrdinaryMessages(t *testing.T) {
	env := newTestEnv(t)
	group := env.seedGroup(t, "alice", "bob", "carol")
	msgs := NewMessageService(env.chat, env.xp, nil)
	svc := NewConferenceService(msgs)
	ctx := context.Background()

	target, err := msgs.Send(ctx, member("bob"), group.ID, "precious content", "")
	require.NoError(t, err)

	// End must never rewrite a user's message, whoever calls it.
	err = svc.End(ctx, member("carol"), group.ID, target.ID)
	assert.ErrorIs(t, err, ErrNotConferenceMessage)

	got, err := env.chat.Message(ctx, group.ID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, "precious content", got.Text)
	assert.False(t, got.MeetingEnded)
}

func TestConferenceRequiresMembership(t *testing.T) {
	env := newTestEnv(t)
	group := env.seedGroup(t, "alice", "bob")
	svc := NewConferenceService(NewMessageService(env.chat, env.xp, nil))
	ctx := context.Background()

	_, err := svc.Start(ctx, member("mallory"), group.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	msgID, err := svc.Start(ctx, member("alice"), group.ID)
	require.NoError(t, err)

	err = svc.End(ctx, member("mallory"), group.ID, msgID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	// Admins may end a session in any group.
	require.NoError(t, svc.End(ctx, admin("root"), group.ID, msgID))
}
