package orders

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"sorp/internal/audit"
	"sorp/internal/auth"
	"sorp/internal/response"
	"sorp/internal/server"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresAt string `json:"expires_at"`
	Username  string `json:"username"`
	IsAdmin   bool   `json:"is_admin"`
}

// Login authenticates a user and returns a Bearer token. A successful login
// replaces any existing session for the user.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		response.Err(w, "Username and password required", http.StatusBadRequest)
		return
	}

	result, err := h.App.Auth.Login(r.Context(), req.Username, req.Password,
		audit.ClientIP(r), r.UserAgent())
	if errors.Is(err, auth.ErrInvalidCredentials) {
		response.Err(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		response.Err(w, "Login failed", http.StatusInternalServerError)
		return
	}

	response.JSON(w, loginResponse{
		Token:     result.Token,
		TokenType: result.TokenType,
		ExpiresAt: result.ExpiresAt.Format(time.RFC3339),
		Username:  result.Username,
		IsAdmin:   h.App.Config.IsAdmin(result.Username),
	})
}

// Logout removes the caller's active session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	username := server.Username(r)
	if err := h.App.Auth.Logout(r.Context(), username); err != nil {
		response.Err(w, "Logout failed", http.StatusInternalServerError)
		return
	}
	response.JSON(w, map[string]string{"username": username})
}

// Me returns the authenticated principal.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	username := server.Username(r)
	response.JSON(w, map[string]interface{}{
		"username": username,
		"is_admin": server.IsAdmin(r),
	})
}
