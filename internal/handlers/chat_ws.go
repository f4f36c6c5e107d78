package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/guildhall/guildhall-backend/internal/services"
)

var chatUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS for WebSocket is handled at the HTTP layer already.
		return true
	},
}

// ChatWebSocket streams live group events to a connected client. Each
// connection is bound to one group via the `group_id` query parameter and
// authenticated with the usual session token (header or ?token).
func ChatWebSocket(w http.ResponseWriter, r *http.Request) {
	token := extractBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing session token", http.StatusUnauthorized)
			return
		}
	}
	userID, ok := services.ValidateSession(r.Context(), token)
	if !ok {
		http.Error(w, "invalid session token", http.StatusUnauthorized)
		return
	}

	groupID := r.URL.Query().Get("group_id")
	if groupID == "" {
		http.Error(w, "group_id is required", http.StatusBadRequest)
		return
	}

	group, err := deps.Chat.Group(r.Context(), groupID)
	if err != nil {
		http.Error(w, "group not found", http.StatusNotFound)
		return
	}
	if !group.HasMember(userID) {
		http.Error(w, "you must be a member of this group", http.StatusForbidden)
		return
	}

	conn, err := chatUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	eventsCh, unsubscribe := services.HubSubscribe(groupID)
	defer unsubscribe()

	// Writer goroutine: forward hub events to this connection.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for evt := range eventsCh {
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		}
	}()

	conn.SetReadLimit(64 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	// Reader loop: clients only send pings; all mutations go through the
	// HTTP API so the same authorization and XP paths always run.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		select {
		case <-done:
			return
		default:
		}
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	}
}
