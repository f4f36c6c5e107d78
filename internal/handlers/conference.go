package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type conferenceStartResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id"`
}

type conferenceEndRequest struct {
	MessageID string `json:"message_id"`
}

// StartConference announces a video session with a system message and
// returns the message id the client must send back on end.
func StartConference(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	msgID, err := deps.Conference.Start(r.Context(), actor, chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conferenceStartResponse{Success: true, MessageID: msgID})
}

// EndConference patches the start message to the ended marker.
func EndConference(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req conferenceEndRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MessageID == "" {
		writeMessage(w, http.StatusBadRequest, "message_id is required")
		return
	}
	if err := deps.Conference.End(r.Context(), actor, chi.URLParam(r, "groupID"), req.MessageID); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Meeting ended")
}
