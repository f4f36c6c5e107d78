package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/guildhall/guildhall-backend/internal/models"
	"github.com/guildhall/guildhall-backend/internal/services"
)

type sendMessageRequest struct {
	Text      string `json:"text"`
	ReplyToID string `json:"reply_to_id,omitempty"`
	AudioURL  string `json:"audio_url,omitempty"`
}

type messageResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Msg     *models.Message `json:"msg,omitempty"`
}

type editMessageRequest struct {
	Text string `json:"text"`
}

type forwardRequest struct {
	TargetGroupIDs []string `json:"target_group_ids"`
}

// SendMessage posts a text or audio message into a group.
func SendMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	groupID := chi.URLParam(r, "groupID")

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var msg *models.Message
	var err error
	if req.AudioURL != "" {
		msg, err = deps.Messages.SendAudio(r.Context(), actor, groupID, req.AudioURL)
	} else {
		if strings.TrimSpace(req.Text) == "" {
			writeMessage(w, http.StatusBadRequest, "Message text is required")
			return
		}
		msg, err = deps.Messages.Send(r.Context(), actor, groupID, req.Text, req.ReplyToID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Success: true, Message: "Message sent", Msg: msg})
}

// EditMessage rewrites a text message's body, keeping the edit history.
func EditMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req editMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		writeMessage(w, http.StatusBadRequest, "Message text is required")
		return
	}
	err := deps.Messages.Edit(r.Context(), actor, chi.URLParam(r, "groupID"), chi.URLParam(r, "messageID"), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Message edited")
}

// DeleteMessage tombstones a message.
func DeleteMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	err := deps.Messages.Delete(r.Context(), actor, chi.URLParam(r, "groupID"), chi.URLParam(r, "messageID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Message deleted")
}

// ForwardMessage copies a message into other groups.
func ForwardMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req forwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.TargetGroupIDs) == 0 {
		writeMessage(w, http.StatusBadRequest, "target_group_ids is required")
		return
	}
	err := deps.Messages.Forward(r.Context(), actor, chi.URLParam(r, "groupID"), chi.URLParam(r, "messageID"), req.TargetGroupIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Message forwarded")
}

// GetMessage returns a single message, redacted for the caller's role.
func GetMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	msg, err := deps.Messages.View(r.Context(), actor, chi.URLParam(r, "groupID"), chi.URLParam(r, "messageID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Msg: msg})
}

type listMessagesResponse struct {
	Success  bool             `json:"success"`
	Messages []models.Message `json:"messages"`
}

// ListMessages returns the group's live messages from the Store, ordered by
// createdAt, redacted for the caller.
func ListMessages(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	msgs, err := deps.Chat.Messages(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]models.Message, 0, len(msgs))
	for i := range msgs {
		out = append(out, *services.RedactForViewer(&msgs[i], actor.Role))
	}
	writeJSON(w, http.StatusOK, listMessagesResponse{Success: true, Messages: out})
}

type historyResponse struct {
	Success  bool                       `json:"success"`
	Messages []services.ArchivedMessage `json:"messages"`
	HasMore  bool                       `json:"has_more"`
}

// LoadHistory returns paginated archived history (MongoDB read model).
func LoadHistory(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireActor(w, r); !ok {
		return
	}
	groupID := chi.URLParam(r, "groupID")

	var before *time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "before must be RFC3339")
			return
		}
		before = &t
	}

	msgs, hasMore, err := services.LoadHistory(r.Context(), groupID, before, 50)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Success: true, Messages: msgs, HasMore: hasMore})
}
