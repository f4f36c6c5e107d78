package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildhall/guildhall-backend/internal/models"
)

func reactionEnv(t *testing.T) (*testEnv, *ReactionService, *models.Message, *models.Group) {
	t.Helper()
	env := newTestEnv(t)
	group := env.seedGroup(t, "alice", "bob", "carol")
	msg, err := env.chat.InsertMessage(context.Background(), &models.Message{
		GroupID:    group.ID,
		SenderID:   "bob",
		SenderRole: models.RoleMember,
		Type:       models.TypeText,
		Text:       "hello",
	})
	require.NoError(t, err)
	return env, NewReactionService(env.chat, env.xp), msg, group
}

func TestReactionToggleOnAndOff(t *testing.T) {
	env, reactions, msg, group := reactionEnv(t)
	ctx := context.Background()

	// Rater reaction earns the sender 2 XP.
	require.NoError(t, reactions.Toggle(ctx, rater("alice"), group.ID, msg.ID, "👍"))

	got, err := env.chat.Message(ctx, group.ID, msg.ID)
	require.NoError(t, err)
	assert.True(t, got.Reactions["👍"]["alice"])
	assert.Equal(t, 2, env.score(t, "bob"))

	// Same emoji again removes it and reverses the award exactly.
	require.NoError(t, reactions.Toggle(ctx, rater("alice"), group.ID, msg.ID, "👍"))

	got, err = env.chat.Message(ctx, group.ID, msg.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Reactions)
	assert.Empty(t, got.ReactionXP)
	assert.Equal(t, 0, env.score(t, "bob"))
}

func TestReactionMutualExclusivity(t *testing.T) {
	env, reactions, msg, group := reactionEnv(t)
	ctx := context.Background()

	require.NoError(t, reactions.Toggle(ctx, rater("alice"), group.ID, msg.ID, "👍"))
	require.NoError(t, reactions.Toggle(ctx, rater("alice"), group.ID, msg.ID, "❤️"))

	got, err := env.chat.Message(ctx, group.ID, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "❤️", got.ReactionEmoji("alice"))
	assert.NotContains(t, got.Reactions, "👍")

	// Switching emoji grants nothing new; the original award stands.
	assert.Equal(t, 2, env.score(t, "bob"))

	// Removing after a switch reverses the originally applied amount.
	require.NoError(t, reactions.Toggle(ctx, rater("alice"), group.ID, msg.ID, "❤️"))
	assert.Equal(t, 0, env.score(t, "bob"))
}

func TestReactionXPScalesWithReactorRole(t *testing.T) {
	env, reactions, msg, group := reactionEnv(t)
	ctx := context.Background()

	require.NoError(t, reactions.Toggle(ctx, admin("root"), group.ID, msg.ID, "🔥"))
	assert.Equal(t, 5, env.score(t, "bob"))

	require.NoError(t, reactions.Toggle(ctx, member("carol"), group.ID, msg.ID, "🔥"))
	assert.Equal(t, 6, env.score(t, "bob"))
}

func TestThumbsDownPenalizesSender(t *testing.T) {
	env, reactions, msg, group := reactionEnv(t)
	ctx := context.Background()
	env.seedScore(t, "bob", 10)

	// Flat -5 regardless of reactor role.
	require.NoError(t, reactions.Toggle(ctx, admin("root"), group.ID, msg.ID, ThumbsDownEmoji))
	assert.Equal(t, 5, env.score(t, "bob"))

	// Removing the thumbs-down restores the penalty.
	require.NoError(t, reactions.Toggle(ctx, admin("root"), group.ID, msg.ID, ThumbsDownEmoji))
	assert.Equal(t, 10, env.score(t, "bob"))
}

func TestSelfReactionEarnsNothing(t *testing.T) {
	env, reactions, msg, group := reactionEnv(t)
	ctx := context.Background()

	require.NoError(t, reactions.Toggle(ctx, member("bob"), group.ID, msg.ID, "👍"))

	got, err := env.chat.Message(ctx, group.ID, msg.ID)
	require.NoError(t, err)
	assert.True(t, got.Reactions["👍"]["bob"])
	assert.Empty(t, got.ReactionXP)
	assert.Equal(t, 0, env.score(t, "bob"))
}

func TestConcurrentReactionsOneEmojiSurvives(t *testing.T) {
	env, reactions, msg, group := reactionEnv(t)
	ctx := context.Background()

	done := make(chan error, 2)
	go func() { done <- reactions.Toggle(ctx, member("alice"), group.ID, msg.ID, "👍") }()
	go func() { done <- reactions.Toggle(ctx, member("alice"), group.ID, msg.ID, "❤️") }()
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	got, err := env.chat.Message(ctx, group.ID, msg.ID)
	require.NoError(t, err)

	// Whichever order the transforms serialized in, the user ends up under
	// exactly one emoji.
	count := 0
	for _, users := range got.Reactions {
		if users["alice"] {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestMultipleReactorsUnderOneEmoji(t *testing.T) {
	env, reactions, msg, group := reactionEnv(t)
	ctx := context.Background()

	require.NoError(t, reactions.Toggle(ctx, member("alice"), group.ID, msg.ID, "👍"))
	require.NoError(t, reactions.Toggle(ctx, member("carol"), group.ID, msg.ID, "👍"))

	got, err := env.chat.Message(ctx, group.ID, msg.ID)
	require.NoError(t, err)
	assert.Len(t, got.Reactions["👍"], 2)
	assert.Equal(t, 2, env.score(t, "bob"))

	// One reactor leaving keeps the other's entry and award intact.
	require.NoError(t, reactions.Toggle(ctx, member("alice"), group.ID, msg.ID, "👍"))
	got, err = env.chat.Message(ctx, group.ID, msg.ID)
	require.NoError(t, err)
	assert.True(t, got.Reactions["👍"]["carol"])
	assert.False(t, got.Reactions["👍"]["alice"])
	assert.Equal(t, 1, env.score(t, "bob"))
}
