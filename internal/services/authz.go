package services

import (
	"errors"

	"github.com/guildhall/guildhall-backend/internal/models"
)

// ErrPermissionDenied is returned by every gate below. A denial happens
// before any store write, so a denied intent never leaves partial state.
var ErrPermissionDenied = errors.New("permission denied")

// Actor identifies who is performing an operation, as supplied by the
// identity provider at call time. Role here is the actor's *current* role;
// historical checks use the role snapshot stored on each message.
type Actor struct {
	ID    string
	Email string
	Name  string
	Role  models.Role
}

// Action names every gated mutation.
type Action string

const (
	ActionSend        Action = "send"
	ActionDelete      Action = "delete"
	ActionEdit        Action = "edit"
	ActionPin         Action = "pin"
	ActionUnpin       Action = "unpin"
	ActionReveal      Action = "reveal"
	ActionViewDeleted Action = "view_deleted"
)

// Authorize is the single gate in front of every mutating operation.
// msg and group may be nil when the action doesn't involve one.
func Authorize(actor Actor, action Action, msg *models.Message, group *models.Group) error {
	switch action {
	case ActionSend:
		return CanSend(actor, group)
	case ActionDelete:
		return CanDelete(actor, msg)
	case ActionEdit:
		return CanEdit(actor, msg)
	case ActionPin, ActionUnpin:
		return CanPin(actor)
	case ActionReveal:
		return CanReveal(actor, msg)
	case ActionViewDeleted:
		if !actor.Role.CanSeeRedactedContent() {
			return ErrPermissionDenied
		}
		return nil
	}
	return ErrPermissionDenied
}

// CanSend denies non-managers when the group is restricted.
func CanSend(actor Actor, group *models.Group) error {
	if group != nil && group.Restricted && !actor.Role.IsManager() {
		return ErrPermissionDenied
	}
	return nil
}

// CanDelete implements the moderation hierarchy:
//
//   - messages authored by an admin are delete-immune to everyone but admins
//   - the sender may always delete their own message
//   - admin/co_admin/assistant_admin may delete anyone else's
//   - leaders may delete rater-authored messages only
func CanDelete(actor Actor, msg *models.Message) error {
	if msg == nil {
		return ErrPermissionDenied
	}
	if msg.SenderRole == models.RoleAdmin && actor.Role != models.RoleAdmin {
		return ErrPermissionDenied
	}
	if msg.SenderID == actor.ID {
		return nil
	}
	if actor.Role.IsSeniorManager() {
		return nil
	}
	if actor.Role.IsLeader() && msg.SenderRole == models.RoleRater {
		return nil
	}
	return ErrPermissionDenied
}

// CanEdit permits only the sender, on live text messages.
func CanEdit(actor Actor, msg *models.Message) error {
	if msg == nil || msg.SenderID != actor.ID || msg.IsDeleted || msg.Type != models.TypeText {
		return ErrPermissionDenied
	}
	return nil
}

// CanPin permits managers only; pin and unpin share the rule.
func CanPin(actor Actor) error {
	if !actor.Role.IsManager() {
		return ErrPermissionDenied
	}
	return nil
}

// CanReveal permits the poll creator or an admin, on unrevealed quizzes only.
func CanReveal(actor Actor, msg *models.Message) error {
	if msg == nil || msg.Poll == nil {
		return ErrPermissionDenied
	}
	if msg.SenderID != actor.ID && actor.Role != models.RoleAdmin {
		return ErrPermissionDenied
	}
	if !msg.Poll.IsQuiz || msg.Poll.IsRevealed {
		return ErrPermissionDenied
	}
	return nil
}
