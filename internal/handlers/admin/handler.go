// Package admin implements the administrative API surface: account
// management, session control, the cross-user order view and the order-id
// access log. Every route in this package sits behind the admin middleware.
package admin

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"sorp/internal/response"
	"sorp/internal/server"
	"sorp/internal/store"
)

// Handler holds dependencies for admin handlers.
type Handler struct {
	App *server.App
}

func NewHandler(app *server.App) *Handler {
	return &Handler{App: app}
}

// Overview returns the system-wide counters, recent orders and the active
// session list shown on the admin landing page.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	counts, err := h.App.DB.AdminOverviewCounts(ctx, time.Now())
	if err != nil {
		response.Err(w, "Failed to load overview", http.StatusInternalServerError)
		return
	}
	recent, err := h.App.DB.RecentSaleOrders(ctx, 20)
	if err != nil {
		response.Err(w, "Failed to load overview", http.StatusInternalServerError)
		return
	}
	sessions, err := h.App.Auth.Sessions(ctx)
	if err != nil {
		response.Err(w, "Failed to load overview", http.StatusInternalServerError)
		return
	}

	response.JSON(w, map[string]interface{}{
		"counts":          counts,
		"recent_orders":   recent,
		"active_sessions": sessions,
	})
}

// ListAllOrders is the admin order view: same filters as the user-facing
// list but without the ownership restriction, plus an optional username
// filter.
func (h *Handler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	filter := store.SaleOrderFilter{
		Username:   strings.TrimSpace(q.Get("username")),
		DealerName: strings.TrimSpace(q.Get("dealer_name")),
		City:       strings.TrimSpace(q.Get("city")),
		OrderID:    strings.TrimSpace(q.Get("order_id")),
		DateFrom:   strings.TrimSpace(q.Get("date_from")),
		DateTo:     strings.TrimSpace(q.Get("date_to")),
		Limit:      limit,
		Offset:     offset,
	}
	orders, total, err := h.App.DB.ListSaleOrders(r.Context(), filter)
	if err != nil {
		response.Err(w, "Failed to list orders", http.StatusInternalServerError)
		return
	}
	response.JSONMeta(w, orders, total, offset/limit+1, limit)
}

// Logs returns the newest order-id access log entries.
func (h *Handler) Logs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	views, err := h.App.DB.ListOrderIDViews(r.Context(), limit)
	if err != nil {
		response.Err(w, "Failed to load logs", http.StatusInternalServerError)
		return
	}
	response.JSON(w, views)
}
