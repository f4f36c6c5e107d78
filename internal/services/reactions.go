package services

import (
	"context"

	"github.com/guildhall/guildhall-backend/internal/chatstore"
	"github.com/guildhall/guildhall-backend/internal/models"
)

// ReactionService manages toggle-style emoji reactions. Per (message, user)
// at most one emoji is active; the whole toggle (clear old emoji, set new
// one, bookkeep the XP delta) runs inside one atomic transform so observers
// never see a user under two emojis.
type ReactionService struct {
	msgs *chatstore.Adapter
	xp   *XPLedger
}

func NewReactionService(msgs *chatstore.Adapter, xp *XPLedger) *ReactionService {
	return &ReactionService{msgs: msgs, xp: xp}
}

// Toggle applies the actor's reaction:
//
//   - no current reaction: set it; the message *sender* earns XP scaled by
//     the reactor's role, or the flat thumbs-down penalty. The applied
//     delta is recorded on the message so removal can reverse it exactly.
//   - same emoji again: remove it and reverse the recorded delta.
//   - different emoji: move the entry; no new XP, the recorded delta
//     follows the reaction to its new emoji.
//
// Self-reactions never touch the sender's XP.
func (s *ReactionService) Toggle(ctx context.Context, actor Actor, groupID, messageID, emoji string) error {
	var senderID string
	var senderDelta int

	err := s.msgs.UpdateMessage(ctx, groupID, messageID, func(m *models.Message) error {
		senderID = m.SenderID
		senderDelta = 0

		existing := m.ReactionEmoji(actor.ID)
		self := m.SenderID == actor.ID

		switch {
		case existing == emoji:
			removeReaction(m, emoji, actor.ID)
			key := models.ReactionKey(emoji, actor.ID)
			if applied, ok := m.ReactionXP[key]; ok {
				senderDelta = -applied
				delete(m.ReactionXP, key)
			}

		case existing != "":
			// Switch emoji: move the entry and its recorded delta. The XP
			// was already granted on the original add, so none is applied
			// now and removal later still reverses the original amount.
			removeReaction(m, existing, actor.ID)
			addReaction(m, emoji, actor.ID)
			oldKey := models.ReactionKey(existing, actor.ID)
			if applied, ok := m.ReactionXP[oldKey]; ok {
				delete(m.ReactionXP, oldKey)
				setReactionXP(m, models.ReactionKey(emoji, actor.ID), applied)
			}

		default:
			addReaction(m, emoji, actor.ID)
			if !self {
				delta := ReactionXPForRole(actor.Role)
				if emoji == ThumbsDownEmoji {
					delta = XPThumbsDown
				}
				setReactionXP(m, models.ReactionKey(emoji, actor.ID), delta)
				senderDelta = delta
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if senderDelta != 0 && senderID != actor.ID {
		s.xp.ApplyBestEffort(ctx, senderID, senderDelta)
	}
	return nil
}

func addReaction(m *models.Message, emoji, userID string) {
	if m.Reactions == nil {
		m.Reactions = make(map[string]map[string]bool)
	}
	if m.Reactions[emoji] == nil {
		m.Reactions[emoji] = make(map[string]bool)
	}
	m.Reactions[emoji][userID] = true
}

func removeReaction(m *models.Message, emoji, userID string) {
	users, ok := m.Reactions[emoji]
	if !ok {
		return
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(m.Reactions, emoji)
	}
}

func setReactionXP(m *models.Message, key string, delta int) {
	if m.ReactionXP == nil {
		m.ReactionXP = make(map[string]int)
	}
	m.ReactionXP[key] = delta
}
