// Package orders implements the user-facing API: auth, uploads, report
// generation, order history, the order-id status endpoints, and the
// dashboard.
package orders

import (
	"strings"

	"sorp/internal/server"
)

// Handler holds dependencies for the order API handlers.
type Handler struct {
	App *server.App
}

func NewHandler(app *server.App) *Handler {
	return &Handler{App: app}
}

// rejectPathTraversal reports whether a client-supplied file name tries to
// escape its directory.
func rejectPathTraversal(value string) bool {
	return strings.Contains(value, "..") ||
		strings.Contains(value, "/") ||
		strings.Contains(value, "\\")
}
