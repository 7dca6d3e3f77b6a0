package admin

import (
	"net/http"
	"strconv"
	"strings"

	"sorp/internal/auth"
	"sorp/internal/response"
	"sorp/internal/server"
)

// UserFull is a full account row including timestamps.
type UserFull struct {
	ID          int     `json:"id"`
	Username    string  `json:"username"`
	DisplayName string  `json:"display_name"`
	Role        string  `json:"role"`
	Active      int     `json:"active"`
	CreatedAt   string  `json:"created_at"`
	LastLogin   *string `json:"last_login"`
}

type createUserRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
	Role        string `json:"role"`
}

type updateUserRequest struct {
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Active      *int   `json:"active"`
}

var validRoles = map[string]bool{"admin": true, "user": true}

// ListUsers returns every account.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	rows, err := h.App.DB.QueryContext(r.Context(),
		`SELECT id, username, display_name, role, active, created_at, last_login FROM users ORDER BY id`)
	if err != nil {
		response.Err(w, "Failed to list users", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	users := []UserFull{}
	for rows.Next() {
		var u UserFull
		var lastLogin *string
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Role, &u.Active, &u.CreatedAt, &lastLogin); err != nil {
			continue
		}
		u.LastLogin = lastLogin
		users = append(users, u)
	}
	response.JSON(w, users)
}

// CreateUser adds an account.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		response.Err(w, "Username and password required", http.StatusBadRequest)
		return
	}
	if len(req.Password) < 8 {
		response.Err(w, "Password must be at least 8 characters", http.StatusBadRequest)
		return
	}
	if !validRoles[req.Role] {
		req.Role = "user"
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		response.Err(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}
	result, err := h.App.DB.ExecContext(r.Context(), h.App.DB.Rebind(
		`INSERT INTO users (username, password_hash, display_name, role, active) VALUES (?, ?, ?, ?, 1)`),
		req.Username, hash, req.DisplayName, req.Role)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "duplicate") {
			response.Err(w, "Username already exists", http.StatusConflict)
			return
		}
		response.Err(w, "Failed to create user", http.StatusInternalServerError)
		return
	}
	id, _ := result.LastInsertId()

	w.WriteHeader(http.StatusCreated)
	response.JSON(w, map[string]interface{}{
		"id": id, "username": req.Username, "display_name": req.DisplayName, "role": req.Role,
	})
}

// UpdateUser changes display name, role or active flag. Admins cannot
// deactivate their own account.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := strconv.Atoi(idStr)
	if err != nil {
		response.Err(w, "Invalid user ID", http.StatusBadRequest)
		return
	}
	var req updateUserRequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Active != nil && *req.Active == 0 {
		var username string
		if err := h.App.DB.QueryRowContext(r.Context(), h.App.DB.Rebind(
			`SELECT username FROM users WHERE id = ?`), id).Scan(&username); err == nil &&
			username == server.Username(r) {
			response.Err(w, "Cannot deactivate yourself", http.StatusBadRequest)
			return
		}
	}
	if !validRoles[req.Role] {
		req.Role = "user"
	}
	active := 1
	if req.Active != nil {
		active = *req.Active
	}

	result, err := h.App.DB.ExecContext(r.Context(), h.App.DB.Rebind(
		`UPDATE users SET display_name = ?, role = ?, active = ? WHERE id = ?`),
		req.DisplayName, req.Role, active, id)
	if err != nil {
		response.Err(w, "Failed to update user", http.StatusInternalServerError)
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		response.Err(w, "User not found", http.StatusNotFound)
		return
	}
	response.JSON(w, map[string]string{"status": "updated"})
}

// DeleteUser removes an account and its session.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := strconv.Atoi(idStr)
	if err != nil {
		response.Err(w, "Invalid user ID", http.StatusBadRequest)
		return
	}
	var username string
	if err := h.App.DB.QueryRowContext(r.Context(), h.App.DB.Rebind(
		`SELECT username FROM users WHERE id = ?`), id).Scan(&username); err != nil {
		response.Err(w, "User not found", http.StatusNotFound)
		return
	}
	if username == server.Username(r) {
		response.Err(w, "Cannot delete yourself", http.StatusBadRequest)
		return
	}
	if _, err := h.App.DB.ExecContext(r.Context(), h.App.DB.Rebind(
		`DELETE FROM users WHERE id = ?`), id); err != nil {
		response.Err(w, "Failed to delete user", http.StatusInternalServerError)
		return
	}
	h.App.Auth.Logout(r.Context(), username)
	response.JSON(w, map[string]string{"status": "deleted"})
}

// ResetPassword sets a new password for an account and revokes its session.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := strconv.Atoi(idStr)
	if err != nil {
		response.Err(w, "Invalid user ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := response.DecodeBody(r, &req); err != nil || req.Password == "" {
		response.Err(w, "Password required", http.StatusBadRequest)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		response.Err(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}
	result, err := h.App.DB.ExecContext(r.Context(), h.App.DB.Rebind(
		`UPDATE users SET password_hash = ? WHERE id = ?`), hash, id)
	if err != nil {
		response.Err(w, "Failed to reset password", http.StatusInternalServerError)
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		response.Err(w, "User not found", http.StatusNotFound)
		return
	}
	var username string
	if err := h.App.DB.QueryRowContext(r.Context(), h.App.DB.Rebind(
		`SELECT username FROM users WHERE id = ?`), id).Scan(&username); err == nil {
		h.App.Auth.Logout(r.Context(), username)
	}
	response.JSON(w, map[string]string{"status": "password_reset"})
}
