package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/guildhall/guildhall-backend/internal/chatstore"
	"github.com/guildhall/guildhall-backend/internal/services"
	"github.com/guildhall/guildhall-backend/internal/store"
)

// Deps wires the service layer into the handlers. Set once at startup.
type Deps struct {
	Identity   services.IdentityProvider
	Accounts   *services.PostgresIdentity
	Messages   *services.MessageService
	Polls      *services.PollService
	Reactions  *services.ReactionService
	Reads      *services.ReadTracker
	XP         *services.XPLedger
	Conference *services.ConferenceService
	Chat       *chatstore.Adapter
}

var deps Deps

func Init(d Deps) {
	deps = d
}

// actionResponse is the generic success/message envelope.
type actionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, actionResponse{Success: status < 400, Message: msg})
}

// writeError maps the service error taxonomy to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrPermissionDenied):
		writeMessage(w, http.StatusForbidden, "Permission denied")
	case errors.Is(err, store.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Not found")
	case errors.Is(err, store.ErrConflictExhausted):
		writeMessage(w, http.StatusServiceUnavailable, "Too much contention, please retry")
	case errors.Is(err, services.ErrPollRevealed),
		errors.Is(err, services.ErrVoteChangeNotAllowed),
		errors.Is(err, services.ErrMessageDeleted),
		errors.Is(err, services.ErrNotConferenceMessage),
		errors.Is(err, services.ErrEmailTaken):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrUpstreamFailure):
		writeMessage(w, http.StatusBadGateway, err.Error())
	default:
		writeMessage(w, http.StatusInternalServerError, "Internal error")
	}
}

func extractBearerToken(header string) string {
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

// requireActor authenticates the request and resolves the caller's current
// identity. Writes the error response itself when authentication fails.
func requireActor(w http.ResponseWriter, r *http.Request) (services.Actor, bool) {
	token := extractBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	userID, ok := services.ValidateSession(r.Context(), token)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "You must be signed in")
		return services.Actor{}, false
	}
	identity, err := deps.Identity.Lookup(r.Context(), userID)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Unknown user")
		return services.Actor{}, false
	}
	return identity.Actor(), true
}
