package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/guildhall/guildhall-backend/internal/store"
)

// ChatEvent is the payload fanned out to WebSocket clients when group state
// changes in the Store.
type ChatEvent struct {
	Type      string      `json:"type"` // "update" or "delete"
	GroupID   string      `json:"group_id"`
	Path      string      `json:"path"`
	Value     interface{} `json:"value,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ChatHub registers per-group subscriber channels for connected clients.
type ChatHub struct {
	mu     sync.Mutex
	subs   map[string]map[int]chan ChatEvent // group id -> subscriber id -> channel
	nextID int
}

var defaultHub = &ChatHub{subs: make(map[string]map[int]chan ChatEvent)}

// HubSubscribe registers interest in a group's events. The returned cancel
// func must be called when the connection closes.
func HubSubscribe(groupID string) (<-chan ChatEvent, func()) {
	return defaultHub.subscribe(groupID)
}

func (h *ChatHub) subscribe(groupID string) (<-chan ChatEvent, func()) {
	ch := make(chan ChatEvent, 64)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.subs[groupID] == nil {
		h.subs[groupID] = make(map[int]chan ChatEvent)
	}
	h.subs[groupID][id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[groupID], id)
			if len(h.subs[groupID]) == 0 {
				delete(h.subs, groupID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (h *ChatHub) fanOut(evt ChatEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[evt.GroupID] {
		// Best-effort: a slow client loses events rather than stalling
		// everyone else.
		select {
		case ch <- evt:
		default:
		}
	}
}

// StartRealtimeForwarder bridges the Store's subscription stream into the
// hub: every post-mutation event under groups/ becomes a ChatEvent for the
// owning group. One forwarder runs per instance.
func StartRealtimeForwarder(ctx context.Context, st store.Store) {
	events, cancel := st.Subscribe(ctx, "groups/")
	go func() {
		defer cancel()
		for evt := range events {
			groupID := groupIDFromPath(evt.Path)
			if groupID == "" {
				continue
			}
			out := ChatEvent{
				Type:      "update",
				GroupID:   groupID,
				Path:      evt.Path,
				Timestamp: time.Now().UTC(),
			}
			if evt.Value == nil {
				out.Type = "delete"
			} else {
				out.Value = evt.Value
			}
			defaultHub.fanOut(out)
		}
	}()
}

// groupIDFromPath extracts <id> from groups/<id>[/...].
func groupIDFromPath(path string) string {
	rest, ok := strings.CutPrefix(path, "groups/")
	if !ok {
		return ""
	}
	if i := strings.Index(rest, "/"); i >= 0 {
		return rest[:i]
	}
	return rest
}
