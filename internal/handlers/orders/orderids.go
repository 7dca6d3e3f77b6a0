package orders

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"sorp/internal/audit"
	"sorp/internal/models"
	"sorp/internal/orderid"
	"sorp/internal/response"
	"sorp/internal/server"
	"sorp/internal/store"
)

// OrderIDStatus reports the most recent order id on either channel and a
// suggested next id. Every view is recorded in the audit trail.
func (h *Handler) OrderIDStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	latest, err := h.App.DB.LatestOrderID(ctx)
	if err != nil {
		response.Err(w, "Failed to read order id status", http.StatusInternalServerError)
		return
	}
	suggested, err := h.App.Alloc.Peek(ctx, time.Now())
	if err != nil {
		response.Err(w, "Failed to read order id status", http.StatusInternalServerError)
		return
	}
	recent, err := h.App.DB.RecentSaleOrders(ctx, 10)
	if err != nil {
		response.Err(w, "Failed to read order id status", http.StatusInternalServerError)
		return
	}

	h.App.Audit.LogOrderIDView(ctx, server.Username(r), latest, audit.ClientIP(r), r.UserAgent())

	response.JSON(w, map[string]interface{}{
		"latest_order_id":   latest,
		"suggested_next_id": suggested,
		"recent_orders":     recent,
	})
}

// ListIssuedIDs returns the manual reservations, newest first.
func (h *Handler) ListIssuedIDs(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r, 50, 200)
	ids, total, err := h.App.DB.ListIssuedIDs(r.Context(), limit, offset)
	if err != nil {
		response.Err(w, "Failed to list issued ids", http.StatusInternalServerError)
		return
	}
	page := offset/limit + 1
	response.JSONMeta(w, ids, total, page, limit)
}

type issueIDRequest struct {
	OrderID     string `json:"order_id"`
	GivenToName string `json:"given_to_name"`
	DealerName  string `json:"dealer_name"`
	City        string `json:"city"`
}

// IssueID records a manually handed-out order id. The id must be well formed
// and not previously issued through this channel.
func (h *Handler) IssueID(w http.ResponseWriter, r *http.Request) {
	var req issueIDRequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.GivenToName = strings.TrimSpace(req.GivenToName)

	if req.OrderID == "" || req.GivenToName == "" {
		response.Err(w, "order_id and given_to_name are required", http.StatusBadRequest)
		return
	}
	if !orderid.Valid(req.OrderID) {
		response.Err(w, "Invalid order_id format (expected MM-YY-NNNNN)", http.StatusBadRequest)
		return
	}

	rec := models.IssuedOrderID{
		OrderID:     req.OrderID,
		GivenToName: req.GivenToName,
		DealerName:  strings.TrimSpace(req.DealerName),
		City:        strings.TrimSpace(req.City),
		GivenByUser: server.Username(r),
	}
	if err := h.App.DB.IssueOrderID(r.Context(), rec); err != nil {
		if errors.Is(err, store.ErrAlreadyIssued) {
			response.ErrCode(w, "Order id already issued", "ALREADY_ISSUED", http.StatusConflict)
			return
		}
		response.Err(w, "Failed to issue order id", http.StatusInternalServerError)
		return
	}
	response.JSON(w, rec)
}
