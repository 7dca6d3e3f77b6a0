// Package server holds the shared application state and the HTTP middleware
// chain around the API handlers.
package server

import (
	"sorp/internal/audit"
	"sorp/internal/auth"
	"sorp/internal/config"
	"sorp/internal/orderid"
	"sorp/internal/report"
	"sorp/internal/store"
	"sorp/internal/websocket"
)

// ContextKey is the type used for request context keys.
type ContextKey string

const (
	CtxUsername ContextKey = "username"
	CtxIsAdmin  ContextKey = "isAdmin"
)

// App holds shared dependencies for the application.
type App struct {
	Config    *config.Config
	DB        *store.DB
	Auth      *auth.Service
	Audit     *audit.Logger
	Alloc     *orderid.Allocator
	Generator *report.Generator
	Hub       *websocket.Hub
}
