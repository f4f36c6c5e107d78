package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/guildhall/guildhall-backend/internal/services"
)

type signupRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
	UserID  string `json:"user_id,omitempty"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Role    string `json:"role,omitempty"`
	XP      int    `json:"xp"`
}

// Signup registers a user and opens a session.
func Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Username) == "" || len(req.Password) < 8 {
		writeMessage(w, http.StatusBadRequest, "Email, username and a password of at least 8 characters are required")
		return
	}

	identity, err := deps.Accounts.CreateUser(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := services.CreateSession(r.Context(), identity.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		Success: true,
		Message: "Account created",
		Token:   token,
		UserID:  identity.ID,
		Email:   identity.Email,
		Name:    identity.Name,
		Role:    string(identity.Role),
	})
}

// Signin verifies credentials, opens a session and runs the inactivity
// XP check for the returning user.
func Signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	identity, err := deps.Accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := services.CreateSession(r.Context(), identity.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := deps.XP.CheckInactivity(r.Context(), identity.ID); err != nil {
		log.Printf("signin: inactivity check for %s failed: %v", identity.ID, err)
	}
	score, _ := deps.XP.Score(r.Context(), identity.ID)

	writeJSON(w, http.StatusOK, authResponse{
		Success: true,
		Message: "Signed in",
		Token:   token,
		UserID:  identity.ID,
		Email:   identity.Email,
		Name:    identity.Name,
		Role:    string(identity.Role),
		XP:      score,
	})
}

// Signout invalidates the caller's session token.
func Signout(w http.ResponseWriter, r *http.Request) {
	token := extractBearerToken(r.Header.Get("Authorization"))
	if err := services.InvalidateSession(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Signed out")
}

// Me returns the caller's identity and XP score.
func Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	score, _ := deps.XP.Score(r.Context(), actor.ID)
	writeJSON(w, http.StatusOK, authResponse{
		Success: true,
		UserID:  actor.ID,
		Email:   actor.Email,
		Name:    actor.Name,
		Role:    string(actor.Role),
		XP:      score,
	})
}
