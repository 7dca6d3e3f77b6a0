package admin

import (
	"net/http"

	"sorp/internal/response"
)

// ListSessions returns all active sessions, newest login first.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.App.Auth.Sessions(r.Context())
	if err != nil {
		response.Err(w, "Failed to list sessions", http.StatusInternalServerError)
		return
	}
	response.JSON(w, sessions)
}

// RevokeSession force-logs-out one user. Their token stops validating
// immediately even though it has not expired.
func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request, username string) {
	if username == "" {
		response.Err(w, "Username required", http.StatusBadRequest)
		return
	}
	if err := h.App.Auth.Logout(r.Context(), username); err != nil {
		response.Err(w, "Failed to revoke session", http.StatusInternalServerError)
		return
	}
	response.JSON(w, map[string]string{"status": "revoked", "username": username})
}

// RevokeAllSessions logs out every user, including the caller.
func (h *Handler) RevokeAllSessions(w http.ResponseWriter, r *http.Request) {
	if err := h.App.Auth.RevokeAll(r.Context()); err != nil {
		response.Err(w, "Failed to revoke sessions", http.StatusInternalServerError)
		return
	}
	response.JSON(w, map[string]string{"status": "revoked_all"})
}
