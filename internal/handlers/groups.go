package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/guildhall/guildhall-backend/internal/models"
)

type createGroupRequest struct {
	Name string `json:"name"`
}

type groupResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	Group   *models.Group `json:"group,omitempty"`
}

type restrictRequest struct {
	Restricted bool `json:"restricted"`
}

type pinRequest struct {
	MessageID string `json:"message_id"`
}

// CreateGroup creates a group with the caller as first member.
func CreateGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeMessage(w, http.StatusBadRequest, "Group name is required")
		return
	}

	g := &models.Group{
		Name:      strings.TrimSpace(req.Name),
		CreatedBy: actor.ID,
		Members:   []string{actor.ID},
	}
	if err := deps.Chat.PutGroup(r.Context(), g); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, groupResponse{Success: true, Message: "Group created", Group: g})
}

// GetGroup returns a group record.
func GetGroup(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireActor(w, r); !ok {
		return
	}
	g, err := deps.Chat.Group(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groupResponse{Success: true, Group: g})
}

// JoinGroup adds the caller to the membership list. Joining twice is a
// no-op; the list never holds duplicates.
func JoinGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	err := deps.Chat.UpdateGroup(r.Context(), chi.URLParam(r, "groupID"), func(g *models.Group) error {
		g.AddMember(actor.ID)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Joined group")
}

// LeaveGroup removes the caller from the membership list.
func LeaveGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	err := deps.Chat.UpdateGroup(r.Context(), chi.URLParam(r, "groupID"), func(g *models.Group) error {
		g.RemoveMember(actor.ID)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Left group")
}

// SetRestriction toggles the manager-only send restriction.
func SetRestriction(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req restrictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := deps.Messages.SetRestricted(r.Context(), actor, chi.URLParam(r, "groupID"), req.Restricted); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Restriction updated")
}

// PinMessage pins a message snapshot onto the group header.
func PinMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req pinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MessageID == "" {
		writeMessage(w, http.StatusBadRequest, "message_id is required")
		return
	}
	if err := deps.Messages.Pin(r.Context(), actor, chi.URLParam(r, "groupID"), req.MessageID); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Message pinned")
}

// UnpinMessage clears the group's pinned snapshot.
func UnpinMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := deps.Messages.Unpin(r.Context(), actor, chi.URLParam(r, "groupID")); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Message unpinned")
}

type openGroupResponse struct {
	Success    bool       `json:"success"`
	LastViewed *time.Time `json:"last_viewed,omitempty"`
	Unread     int        `json:"unread"`
}

// OpenGroup marks the group viewed for the caller and returns the previous
// watermark plus the unread count it implied.
func OpenGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	groupID := chi.URLParam(r, "groupID")

	unread, err := deps.Reads.UnreadCount(r.Context(), actor.ID, groupID)
	if err != nil {
		writeError(w, err)
		return
	}
	prev, err := deps.Reads.OpenGroup(r.Context(), actor.ID, groupID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := openGroupResponse{Success: true, Unread: unread}
	if !prev.IsZero() {
		resp.LastViewed = &prev
	}
	writeJSON(w, http.StatusOK, resp)
}

// MarkRead stamps read receipts for the caller on the group's messages.
func MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := deps.Reads.MarkRead(r.Context(), actor.ID, chi.URLParam(r, "groupID")); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Messages marked read")
}

type unreadResponse struct {
	Success bool `json:"success"`
	Unread  int  `json:"unread"`
}

// UnreadCount returns the caller's unread count for a group.
func UnreadCount(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	count, err := deps.Reads.UnreadCount(r.Context(), actor.ID, chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, unreadResponse{Success: true, Unread: count})
}
