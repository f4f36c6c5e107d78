package services

import (
	"context"
	"time"

	"github.com/guildhall/guildhall-backend/internal/chatstore"
	"github.com/guildhall/guildhall-backend/internal/models"
	"github.com/guildhall/guildhall-backend/internal/store"
)

// ReadTracker maintains the per-(user, group) lastViewed watermark and the
// per-message read receipts.
type ReadTracker struct {
	st   store.Store
	msgs *chatstore.Adapter
}

func NewReadTracker(st store.Store, msgs *chatstore.Adapter) *ReadTracker {
	return &ReadTracker{st: st, msgs: msgs}
}

type viewRecord struct {
	LastViewed int64 `json:"last_viewed"` // unix ms
}

func viewPath(userID, groupID string) string {
	return "views/" + userID + "/" + groupID
}

// OpenGroup is called when a user opens a group: it returns the previous
// watermark (what the client renders unread state against) and immediately
// advances the persisted one to now. Opening counts as viewing; advancing
// is not deferred to scroll position.
func (t *ReadTracker) OpenGroup(ctx context.Context, userID, groupID string) (time.Time, error) {
	var prev viewRecord
	err := t.st.Read(ctx, viewPath(userID, groupID), &prev)
	if err != nil && err != store.ErrNotFound {
		return time.Time{}, err
	}

	now := viewRecord{LastViewed: time.Now().UTC().UnixMilli()}
	if err := t.st.Write(ctx, viewPath(userID, groupID), &now); err != nil {
		return time.Time{}, err
	}
	if prev.LastViewed == 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(prev.LastViewed).UTC(), nil
}

// UnreadCount counts messages newer than the stored watermark that the
// user didn't send themselves.
func (t *ReadTracker) UnreadCount(ctx context.Context, userID, groupID string) (int, error) {
	var rec viewRecord
	err := t.st.Read(ctx, viewPath(userID, groupID), &rec)
	if err != nil && err != store.ErrNotFound {
		return 0, err
	}
	watermark := time.UnixMilli(rec.LastViewed).UTC()

	msgs, err := t.msgs.Messages(ctx, groupID)
	if err != nil {
		return 0, err
	}
	count := 0
	for i := range msgs {
		if msgs[i].SenderID != userID && msgs[i].CreatedAt.After(watermark) {
			count++
		}
	}
	return count, nil
}

// MarkRead stamps a read receipt for the user on every group message they
// haven't receipted yet. Receipts are add-only: an existing entry is never
// overwritten or removed, so each message keeps the timestamp of the
// *first* observation.
func (t *ReadTracker) MarkRead(ctx context.Context, userID, groupID string) error {
	msgs, err := t.msgs.Messages(ctx, groupID)
	if err != nil {
		return err
	}
	now := time.Now().UTC().UnixMilli()

	for i := range msgs {
		m := &msgs[i]
		if m.SenderID == userID {
			continue
		}
		if _, ok := m.ReadBy[userID]; ok {
			continue
		}
		err := t.msgs.UpdateMessage(ctx, groupID, m.ID, func(cur *models.Message) error {
			if _, ok := cur.ReadBy[userID]; ok {
				return store.ErrAbortTransform // receipted concurrently
			}
			if cur.ReadBy == nil {
				cur.ReadBy = make(map[string]int64)
			}
			cur.ReadBy[userID] = now
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// FullyRead reports whether every *current* group member other than the
// sender has receipted the message. Membership is re-evaluated live, so a
// message can regress from fully read to partially read when the group
// grows.
func (t *ReadTracker) FullyRead(ctx context.Context, groupID, messageID string) (bool, error) {
	group, err := t.msgs.Group(ctx, groupID)
	if err != nil {
		return false, err
	}
	msg, err := t.msgs.Message(ctx, groupID, messageID)
	if err != nil {
		return false, err
	}
	for _, member := range group.Members {
		if member == msg.SenderID {
			continue
		}
		if _, ok := msg.ReadBy[member]; !ok {
			return false, nil
		}
	}
	return true, nil
}
