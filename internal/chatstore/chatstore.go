// Package chatstore is the typed adapter between the chat engines and the
// raw Store document tree. It owns path layout and id assignment; engines
// never build store paths themselves.
package chatstore

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/guildhall/guildhall-backend/internal/models"
	"github.com/guildhall/guildhall-backend/internal/store"
)

// ErrNotFound mirrors store.ErrNotFound for callers that only import this
// package.
var ErrNotFound = store.ErrNotFound

type Adapter struct {
	st store.Store
}

func New(st store.Store) *Adapter {
	return &Adapter{st: st}
}

// Store exposes the underlying Store for subscribers (realtime hub,
// history archiver).
func (a *Adapter) Store() store.Store {
	return a.st
}

func GroupPath(groupID string) string {
	return "groups/" + groupID
}

func MessagePath(groupID, messageID string) string {
	return "groups/" + groupID + "/messages/" + messageID
}

func messagesPrefix(groupID string) string {
	return "groups/" + groupID + "/messages/"
}

// Group fetches a group record.
func (a *Adapter) Group(ctx context.Context, groupID string) (*models.Group, error) {
	var g models.Group
	if err := a.st.Read(ctx, GroupPath(groupID), &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// PutGroup creates or replaces a group record, assigning an id when absent.
func (a *Adapter) PutGroup(ctx context.Context, g *models.Group) error {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	return a.st.Write(ctx, GroupPath(g.ID), g)
}

// UpdateGroup applies fn to the current group record inside an atomic
// transform. fn may return store.ErrAbortTransform to leave it unchanged.
func (a *Adapter) UpdateGroup(ctx context.Context, groupID string, fn func(*models.Group) error) error {
	return a.st.AtomicTransform(ctx, GroupPath(groupID), func(current json.RawMessage) (interface{}, error) {
		if current == nil {
			return nil, ErrNotFound
		}
		var g models.Group
		if err := json.Unmarshal(current, &g); err != nil {
			return nil, err
		}
		if err := fn(&g); err != nil {
			return nil, err
		}
		return &g, nil
	})
}

// Message fetches a single message.
func (a *Adapter) Message(ctx context.Context, groupID, messageID string) (*models.Message, error) {
	var m models.Message
	if err := a.st.Read(ctx, MessagePath(groupID, messageID), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// InsertMessage persists a new message, assigning its id and createdAt at
// the store boundary. Ids are stable once assigned.
func (a *Adapter) InsertMessage(ctx context.Context, m *models.Message) (*models.Message, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if err := a.st.Write(ctx, MessagePath(m.GroupID, m.ID), m); err != nil {
		return nil, err
	}
	return m, nil
}

// InsertMessages persists a batch of new messages as one all-or-nothing
// multi-path write (used by forwarding to several groups at once).
func (a *Adapter) InsertMessages(ctx context.Context, msgs []*models.Message) error {
	writes := make(map[string]interface{}, len(msgs))
	now := time.Now().UTC()
	for _, m := range msgs {
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		writes[MessagePath(m.GroupID, m.ID)] = m
	}
	return a.st.MultiWrite(ctx, writes)
}

// UpdateMessage applies fn to the current message inside an atomic
// transform. This is the only way engines mutate message sub-state
// (tallies, reactions, receipts, tombstones), so concurrent writers can
// never lose each other's updates.
func (a *Adapter) UpdateMessage(ctx context.Context, groupID, messageID string, fn func(*models.Message) error) error {
	return a.st.AtomicTransform(ctx, MessagePath(groupID, messageID), func(current json.RawMessage) (interface{}, error) {
		if current == nil {
			return nil, ErrNotFound
		}
		var m models.Message
		if err := json.Unmarshal(current, &m); err != nil {
			return nil, err
		}
		if err := fn(&m); err != nil {
			return nil, err
		}
		return &m, nil
	})
}

// DeleteMessage removes a message document entirely. Moderation deletes are
// tombstones via UpdateMessage; this hard delete exists for rolling back
// upload placeholders.
func (a *Adapter) DeleteMessage(ctx context.Context, groupID, messageID string) error {
	return a.st.MultiWrite(ctx, map[string]interface{}{
		MessagePath(groupID, messageID): nil,
	})
}

// Messages returns every message in a group ordered by createdAt (ties
// broken by id so the order is stable).
func (a *Adapter) Messages(ctx context.Context, groupID string) ([]models.Message, error) {
	docs, err := a.st.ReadPrefix(ctx, messagesPrefix(groupID))
	if err != nil {
		return nil, err
	}
	msgs := make([]models.Message, 0, len(docs))
	for _, raw := range docs {
		var m models.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}
