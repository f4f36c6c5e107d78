package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/guildhall/guildhall-backend/internal/models"
)

func textMessage(senderID string, senderRole models.Role) *models.Message {
	return &models.Message{
		ID:         "m1",
		GroupID:    "g1",
		SenderID:   senderID,
		SenderRole: senderRole,
		Type:       models.TypeText,
		Text:       "hello",
	}
}

func TestCanDeleteMatrix(t *testing.T) {
	tests := []struct {
		name    string
		actor   Actor
		msg     *models.Message
		allowed bool
	}{
		{"sender deletes own", member("bob"), textMessage("bob", models.RoleMember), true},
		{"member deletes someone else's", member("carol"), textMessage("bob", models.RoleMember), false},
		{"admin deletes member message", admin("root"), textMessage("bob", models.RoleMember), true},
		{"co_admin deletes member message", coAdmin("mod"), textMessage("bob", models.RoleMember), true},
		{"assistant_admin deletes member message", actorWithRole("aa", models.RoleAssistantAdmin), textMessage("bob", models.RoleMember), true},
		{"leader deletes rater message", leader("lead"), textMessage("bob", models.RoleRater), true},
		{"group_leader deletes rater message", actorWithRole("gl", models.RoleGroupLeader), textMessage("bob", models.RoleRater), true},
		{"leader deletes member message", leader("lead"), textMessage("bob", models.RoleMember), false},
		{"leader deletes leader message", leader("lead"), textMessage("bob", models.RoleLeader), false},
		{"co_admin deletes admin message", coAdmin("mod"), textMessage("root", models.RoleAdmin), false},
		{"admin deletes admin message", admin("root2"), textMessage("root", models.RoleAdmin), true},
		{"admin author deletes own", admin("root"), textMessage("root", models.RoleAdmin), true},
		{"nil message", admin("root"), nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CanDelete(tc.actor, tc.msg)
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrPermissionDenied)
			}
		})
	}
}

func TestCanEdit(t *testing.T) {
	msg := textMessage("bob", models.RoleMember)
	assert.NoError(t, CanEdit(member("bob"), msg))

	// Only the sender, even for admins.
	assert.ErrorIs(t, CanEdit(admin("root"), msg), ErrPermissionDenied)

	deleted := textMessage("bob", models.RoleMember)
	deleted.IsDeleted = true
	assert.ErrorIs(t, CanEdit(member("bob"), deleted), ErrPermissionDenied)

	poll := textMessage("bob", models.RoleMember)
	poll.Type = models.TypePoll
	assert.ErrorIs(t, CanEdit(member("bob"), poll), ErrPermissionDenied)
}

func TestCanSendRestrictedGroup(t *testing.T) {
	open := &models.Group{ID: "g1", Members: []string{"bob"}}
	restricted := &models.Group{ID: "g2", Restricted: true, Members: []string{"bob"}}

	assert.NoError(t, CanSend(member("bob"), open))
	assert.ErrorIs(t, CanSend(member("bob"), restricted), ErrPermissionDenied)
	assert.ErrorIs(t, CanSend(rater("bob"), restricted), ErrPermissionDenied)
	assert.NoError(t, CanSend(leader("lead"), restricted))
	assert.NoError(t, CanSend(admin("root"), restricted))
}

func TestCanPin(t *testing.T) {
	assert.ErrorIs(t, CanPin(member("bob")), ErrPermissionDenied)
	assert.ErrorIs(t, CanPin(rater("bob")), ErrPermissionDenied)
	assert.NoError(t, CanPin(leader("lead")))
	assert.NoError(t, CanPin(admin("root")))
}

func TestCanReveal(t *testing.T) {
	quiz := textMessage("bob", models.RoleMember)
	quiz.Type = models.TypePoll
	quiz.Poll = &models.Poll{Question: "q", IsQuiz: true}

	assert.NoError(t, CanReveal(member("bob"), quiz))
	assert.NoError(t, CanReveal(admin("root"), quiz))
	assert.ErrorIs(t, CanReveal(member("carol"), quiz), ErrPermissionDenied)
	assert.ErrorIs(t, CanReveal(coAdmin("mod"), quiz), ErrPermissionDenied)

	// Non-quiz polls and already revealed quizzes can't be revealed.
	plain := textMessage("bob", models.RoleMember)
	plain.Poll = &models.Poll{Question: "q"}
	assert.ErrorIs(t, CanReveal(member("bob"), plain), ErrPermissionDenied)

	revealed := textMessage("bob", models.RoleMember)
	revealed.Poll = &models.Poll{Question: "q", IsQuiz: true, IsRevealed: true}
	assert.ErrorIs(t, CanReveal(member("bob"), revealed), ErrPermissionDenied)
}

func TestAuthorizeViewDeleted(t *testing.T) {
	assert.NoError(t, Authorize(admin("root"), ActionViewDeleted, nil, nil))
	assert.ErrorIs(t, Authorize(coAdmin("mod"), ActionViewDeleted, nil, nil), ErrPermissionDenied)
	assert.ErrorIs(t, Authorize(member("bob"), ActionViewDeleted, nil, nil), ErrPermissionDenied)
}
