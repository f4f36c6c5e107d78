package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildhall/guildhall-backend/internal/models"
	"github.com/guildhall/guildhall-backend/internal/store"
)

type fakeMedia struct {
	result *MediaResult
	err    error
}

func (f *fakeMedia) Upload(ctx context.Context, data []byte, fileName string) (*MediaResult, error) {
	return f.result, f.err
}

func messageEnv(t *testing.T, media MediaService) (*testEnv, *MessageService, *models.Group) {
	t.Helper()
	env := newTestEnv(t)
	group := env.seedGroup(t, "alice", "bob", "carol")
	return env, NewMessageService(env.chat, env.xp, media), group
}

func TestSendAwardsXP(t *testing.T) {
	env, svc, group := messageEnv(t, nil)

	msg, err := svc.Send(context.Background(), member("alice"), group.ID, "hello", "")
	require.NoError(t, err)
	assert.Equal(t, models.TypeText, msg.Type)
	assert.Equal(t, "alice", msg.SenderID)
	assert.Equal(t, XPSendMessage, env.score(t, "alice"))
}

func TestSendAudioAwardsXP(t *testing.T) {
	env, svc, group := messageEnv(t, nil)

	msg, err := svc.SendAudio(context.Background(), member("alice"), group.ID, "https://cdn.example.com/a.ogg")
	require.NoError(t, err)
	assert.Equal(t, models.TypeAudio, msg.Type)
	assert.Equal(t, XPSendAudio, env.score(t, "alice"))
}

func TestReplySnapshotIsImmutable(t *testing.T) {
	env, svc, group := messageEnv(t, nil)
	ctx := context.Background()

	original, err := svc.Send(ctx, member("bob"), group.ID, "original text", "")
	require.NoError(t, err)

	reply, err := svc.Send(ctx, member("alice"), group.ID, "replying", original.ID)
	require.NoError(t, err)
	require.NotNil(t, reply.ReplyTo)
	assert.Equal(t, original.ID, reply.ReplyTo.MessageID)
	assert.Equal(t, "original text", reply.ReplyTo.Text)

	// Editing the original later doesn't rewrite the captured snippet.
	require.NoError(t, svc.Edit(ctx, member("bob"), group.ID, original.ID, "edited text"))

	got, err := env.chat.Message(ctx, group.ID, reply.ID)
	require.NoError(t, err)
	assert.Equal(t, "original text", got.ReplyTo.Text)
}

func TestRestrictedGroupBlocksMembers(t *testing.T) {
	_, svc, group := messageEnv(t, nil)
	ctx := context.Background()

	// Only managers may flip the restriction.
	err := svc.SetRestricted(ctx, member("bob"), group.ID, true)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	require.NoError(t, svc.SetRestricted(ctx, admin("root"), group.ID, true))

	_, err = svc.Send(ctx, member("bob"), group.ID, "hello?", "")
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = svc.Send(ctx, leader("lead"), group.ID, "announcement", "")
	assert.NoError(t, err)

	// System messages bypass the gate.
	_, err = svc.SendSystem(ctx, member("bob"), group.ID, "meeting started")
	assert.NoError(t, err)

	require.NoError(t, svc.SetRestricted(ctx, admin("root"), group.ID, false))
	_, err = svc.Send(ctx, member("bob"), group.ID, "hello again", "")
	assert.NoError(t, err)
}

func TestEditKeepsHistory(t *testing.T) {
	env, svc, group := messageEnv(t, nil)
	ctx := context.Background()

	msg, err := svc.Send(ctx, member("bob"), group.ID, "first", "")
	require.NoError(t, err)

	require.NoError(t, svc.Edit(ctx, member("bob"), group.ID, msg.ID, "second"))

	got, err := env.chat.Message(ctx, group.ID, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Text)
	assert.True(t, got.IsEdited)
	require.Len(t, got.EditHistory, 1)
	for _, prior := range got.EditHistory {
		assert.Equal(t, "first", prior)
	}

	// Nobody but the sender may edit, admins included.
	err = svc.Edit(ctx, admin("root"), group.ID, msg.ID, "hijacked")
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestDeleteTombstoneAndPenalty(t *testing.T) {
	env, svc, group := messageEnv(t, nil)
	ctx := context.Background()
	env.seedScore(t, "bob", 30)

	msg, err := svc.Send(ctx, member("bob"), group.ID, "rude", "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, coAdmin("mod"), group.ID, msg.ID))

	got, err := env.chat.Message(ctx, group.ID, msg.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)
	assert.Equal(t, "mod", got.DeletedBy)
	assert.Equal(t, models.RoleCoAdmin, got.DeletedByRole)
	// Content survives in the store for admin review.
	assert.Equal(t, "rude", got.Text)

	// Moderation delete costs the sender 20 XP (30 + send award - 20).
	assert.Equal(t, 30+XPSendMessage+XPDeletePenalty, env.score(t, "bob"))

	// Deleting twice is a conflict.
	err = svc.Delete(ctx, coAdmin("mod"), group.ID, msg.ID)
	assert.ErrorIs(t, err, ErrMessageDeleted)
}

func TestSelfDeleteIsFree(t *testing.T) {
	env, svc, group := messageEnv(t, nil)
	ctx := context.Background()

	msg, err := svc.Send(ctx, member("bob"), group.ID, "oops", "")
	require.NoError(t, err)
	scoreAfterSend := env.score(t, "bob")

	require.NoError(t, svc.Delete(ctx, member("bob"), group.ID, msg.ID))
	assert.Equal(t, scoreAfterSend, env.score(t, "bob"))
}

func TestRedactForViewer(t *testing.T) {
	_, svc, group := messageEnv(t, nil)
	ctx := context.Background()

	msg, err := svc.Send(ctx, member("bob"), group.ID, "secret", "")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, member("bob"), group.ID, msg.ID))

	memberView, err := svc.View(ctx, member("carol"), group.ID, msg.ID)
	require.NoError(t, err)
	assert.True(t, memberView.IsDeleted)
	assert.Empty(t, memberView.Text)

	adminView, err := svc.View(ctx, admin("root"), group.ID, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "secret", adminView.Text)
}

func TestForwardCopiesPayloadNotEngagement(t *testing.T) {
	env, svc, group := messageEnv(t, nil)
	other := env.seedGroup(t, "alice", "dave")
	ctx := context.Background()

	polls := NewPollService(env.chat, env.xp)
	src, err := polls.Create(ctx, member("alice"), group.ID, PollInput{
		Question: "lunch?", Options: []string{"pizza", "sushi"},
	})
	require.NoError(t, err)
	require.NoError(t, polls.Vote(ctx, member("bob"), group.ID, src.ID, src.Poll.Options[0].ID))

	require.NoError(t, svc.Forward(ctx, member("alice"), group.ID, src.ID, []string{other.ID}))

	msgs, err := env.chat.Messages(ctx, other.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	fwd := msgs[0]
	assert.True(t, fwd.IsForwarded)
	assert.Equal(t, "alice", fwd.SenderID)
	assert.NotEqual(t, src.ID, fwd.ID)
	require.NotNil(t, fwd.Poll)
	assert.Equal(t, "lunch?", fwd.Poll.Question)

	// The forwarded poll starts fresh: no votes, zero tallies.
	assert.Empty(t, fwd.Poll.Votes)
	for _, opt := range fwd.Poll.Options {
		assert.Equal(t, 0, opt.VoteCount)
	}
}

func TestForwardDeniedByRestrictedTarget(t *testing.T) {
	env, svc, group := messageEnv(t, nil)
	other := env.seedGroup(t, "alice")
	ctx := context.Background()

	require.NoError(t, svc.SetRestricted(ctx, admin("root"), other.ID, true))

	src, err := svc.Send(ctx, member("bob"), group.ID, "hello", "")
	require.NoError(t, err)

	err = svc.Forward(ctx, member("bob"), group.ID, src.ID, []string{other.ID})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	msgs, err := env.chat.Messages(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestPinSnapshotsMessage(t *testing.T) {
	env, svc, group := messageEnv(t, nil)
	ctx := context.Background()

	msg, err := svc.Send(ctx, member("bob"), group.ID, "important", "")
	require.NoError(t, err)

	err = svc.Pin(ctx, member("bob"), group.ID, msg.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	require.NoError(t, svc.Pin(ctx, leader("lead"), group.ID, msg.ID))

	got, err := env.chat.Group(ctx, group.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Pinned)
	assert.Equal(t, msg.ID, got.Pinned.MessageID)
	assert.Equal(t, "important", got.Pinned.Text)

	require.NoError(t, svc.Unpin(ctx, leader("lead"), group.ID))
	got, err = env.chat.Group(ctx, group.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Pinned)
}

func TestSendMediaSuccess(t *testing.T) {
	media := &fakeMedia{result: &MediaResult{
		URL:          "https://cdn.example.com/x.png",
		ResourceType: "image",
		SizeBytes:    2 * 1024 * 1024,
	}}
	env, svc, group := messageEnv(t, media)
	ctx := context.Background()

	msg, err := svc.SendMedia(ctx, member("alice"), group.ID, "x.png", "image/png", []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, models.TypeImage, msg.Type)
	assert.Equal(t, "https://cdn.example.com/x.png", msg.MediaURL)
	assert.False(t, msg.IsUploading)
	assert.Equal(t, "2.00 MB", msg.FileSize)
	assert.Equal(t, XPUploadMedia, env.score(t, "alice"))
}

func TestSendMediaFailureRollsBackPlaceholder(t *testing.T) {
	media := &fakeMedia{err: errors.New("cdn down")}
	env, svc, group := messageEnv(t, media)
	ctx := context.Background()

	_, err := svc.SendMedia(ctx, member("alice"), group.ID, "x.png", "image/png", []byte("data"))
	assert.ErrorIs(t, err, ErrUpstreamFailure)

	// No placeholder survives the failed upload, and no XP was granted.
	msgs, err := env.chat.Messages(ctx, group.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, 0, env.score(t, "alice"))
}

func TestSendToMissingGroup(t *testing.T) {
	_, svc, _ := messageEnv(t, nil)

	_, err := svc.Send(context.Background(), member("alice"), "no-such-group", "hello", "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
