package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/guildhall/guildhall-backend/internal/services"
)

type voteRequest struct {
	OptionID string `json:"option_id"`
}

// CreatePoll posts a poll message into a group.
func CreatePoll(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var in services.PollInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	msg, err := deps.Polls.Create(r.Context(), actor, chi.URLParam(r, "groupID"), in)
	if errors.Is(err, services.ErrInvalidPoll) {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Success: true, Message: "Poll created", Msg: msg})
}

// Vote casts, retracts or changes the caller's vote.
func Vote(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OptionID == "" {
		writeMessage(w, http.StatusBadRequest, "option_id is required")
		return
	}
	err := deps.Polls.Vote(r.Context(), actor, chi.URLParam(r, "groupID"), chi.URLParam(r, "messageID"), req.OptionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Vote recorded")
}

// Reveal flips a quiz poll to revealed.
func Reveal(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	err := deps.Polls.Reveal(r.Context(), actor, chi.URLParam(r, "groupID"), chi.URLParam(r, "messageID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Poll revealed")
}

type reactRequest struct {
	Emoji string `json:"emoji"`
}

// React toggles the caller's emoji reaction on a message.
func React(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req reactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Emoji == "" {
		writeMessage(w, http.StatusBadRequest, "emoji is required")
		return
	}
	err := deps.Reactions.Toggle(r.Context(), actor, chi.URLParam(r, "groupID"), chi.URLParam(r, "messageID"), req.Emoji)
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Reaction updated")
}

type fullyReadResponse struct {
	Success   bool `json:"success"`
	FullyRead bool `json:"fully_read"`
}

// FullyRead reports whether every current member except the sender has
// receipted the message.
func FullyRead(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireActor(w, r); !ok {
		return
	}
	full, err := deps.Reads.FullyRead(r.Context(), chi.URLParam(r, "groupID"), chi.URLParam(r, "messageID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fullyReadResponse{Success: true, FullyRead: full})
}
