package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"streamwise/internal/auth"
	"streamwise/models"
	"streamwise/services/sessions"
	"streamwise/services/users"
)

type AuthHandler struct {
	Users    usersService
	Sessions *sessions.Service
	SignOut  func(userID string)
}

// NewAuthHandler creates the sign-in surface. signOut, when set, runs after
// every session of a user has been revoked so per-user resources can be
// torn down.
func NewAuthHandler(usersSvc usersService, sessionsSvc *sessions.Service, signOut func(userID string)) *AuthHandler {
	return &AuthHandler{Users: usersSvc, Sessions: sessionsSvc, SignOut: signOut}
}

// Login validates a profile's PIN and issues a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userId"`
		Pin    string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	userID := strings.TrimSpace(body.UserID)
	if userID == "" {
		userID = models.DefaultUserID
	}
	if !h.Users.Exists(userID) {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}

	if err := h.Users.VerifyPin(userID, body.Pin); err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, users.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	session, err := h.Sessions.Create(userID, r.UserAgent())
	if err != nil {
		http.Error(w, "could not create session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"token":     session.Token,
		"userId":    session.UserID,
		"expiresAt": session.ExpiresAt,
	})
}

// Logout revokes the current session. When it was the user's last session,
// the sign-out hook releases the user's server-side state.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r)

	session, ok := r.Context().Value(auth.ContextKeySession).(models.Session)
	if !ok {
		http.Error(w, "no active session", http.StatusUnauthorized)
		return
	}

	if err := h.Sessions.Revoke(session.Token); err != nil && !errors.Is(err, sessions.ErrSessionNotFound) {
		http.Error(w, "could not revoke session", http.StatusInternalServerError)
		return
	}

	// A second live session keeps the user's state alive.
	if h.SignOut != nil && userID != "" && h.Sessions.CountForUser(userID) == 0 {
		h.SignOut(userID)
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me returns the profile behind the current session.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r)

	user, ok := h.Users.Get(userID)
	if !ok {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}
