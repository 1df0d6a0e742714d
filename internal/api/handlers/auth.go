package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/harborbank/demo/internal/api/middleware"
	"github.com/harborbank/demo/internal/session"
)

// AuthHandler handles login and logout.
type AuthHandler struct {
	mgr *session.Manager
	log zerolog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(mgr *session.Manager, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{mgr: mgr, log: log}
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	sess, token, err := h.mgr.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			middleware.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		h.log.Error().Err(err).Msg("Login failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"token":   token,
		"user_id": sess.UserID,
		"email":   sess.Email,
	})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Missing bearer token")
		return
	}
	if err := h.mgr.Logout(token); err != nil {
		middleware.WriteError(w, http.StatusUnauthorized, "No active session")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
