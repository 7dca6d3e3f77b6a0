package orders

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"sorp/internal/models"
	"sorp/internal/response"
	"sorp/internal/server"
	"sorp/internal/store"
)

func parseLimitOffset(r *http.Request, defLimit, maxLimit int) (int, int) {
	limit := defLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func filterFromQuery(r *http.Request) store.SaleOrderFilter {
	q := r.URL.Query()
	limit, offset := parseLimitOffset(r, 50, 200)
	return store.SaleOrderFilter{
		DealerName: strings.TrimSpace(q.Get("dealer_name")),
		City:       strings.TrimSpace(q.Get("city")),
		OrderID:    strings.TrimSpace(q.Get("order_id")),
		DateFrom:   strings.TrimSpace(q.Get("date_from")),
		DateTo:     strings.TrimSpace(q.Get("date_to")),
		Limit:      limit,
		Offset:     offset,
	}
}

// ListOrders returns the caller's generated sale orders, filtered and paginated.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r)
	filter.Username = server.Username(r)
	orders, total, err := h.App.DB.ListSaleOrders(r.Context(), filter)
	if err != nil {
		response.Err(w, "Failed to list orders", http.StatusInternalServerError)
		return
	}
	page := 1
	if filter.Limit > 0 {
		page = filter.Offset/filter.Limit + 1
	}
	response.JSONMeta(w, orders, total, page, filter.Limit)
}

// GetOrder returns a single sale order record by database id.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := strconv.Atoi(idStr)
	if err != nil {
		response.Err(w, "Invalid order id", http.StatusBadRequest)
		return
	}
	order, err := h.App.DB.GetSaleOrder(r.Context(), id)
	if err != nil {
		response.Err(w, "Order not found", http.StatusNotFound)
		return
	}
	if order.Username != server.Username(r) && !server.IsAdmin(r) {
		response.ErrCode(w, "Forbidden", "FORBIDDEN", http.StatusForbidden)
		return
	}
	response.JSON(w, order)
}

// SearchOrders runs a free-text search across dealer, city, order id and user.
func (h *Handler) SearchOrders(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(q) < 2 {
		response.Err(w, "Query must be at least 2 characters", http.StatusBadRequest)
		return
	}
	orders, err := h.App.DB.SearchSaleOrders(r.Context(), q, 50)
	if err != nil {
		response.Err(w, "Search failed", http.StatusInternalServerError)
		return
	}
	response.JSON(w, orders)
}

var exportColumns = []string{"Order ID", "Dealer Name", "City", "Order Type", "Report Name", "Generated At", "Generated By"}

func exportRow(o models.SaleOrderRecord) []string {
	return []string{o.OrderID, o.DealerName, o.City, o.OrderType, o.ReportName, o.GeneratedAt, o.Username}
}

// ExportOrders streams the caller's order history as csv, xlsx or json.
func (h *Handler) ExportOrders(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r)
	filter.Username = server.Username(r)
	filter.Limit = 10000
	filter.Offset = 0
	orders, _, err := h.App.DB.ListSaleOrders(r.Context(), filter)
	if err != nil {
		response.Err(w, "Failed to export orders", http.StatusInternalServerError)
		return
	}

	stamp := time.Now().Format("20060102_150405")
	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="orders_%s.csv"`, stamp))
		cw := csv.NewWriter(w)
		cw.Write(exportColumns)
		for _, o := range orders {
			cw.Write(exportRow(o))
		}
		cw.Flush()
	case "xlsx":
		f := excelize.NewFile()
		defer f.Close()
		sheet := "Orders"
		f.SetSheetName("Sheet1", sheet)
		for i, col := range exportColumns {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			f.SetCellValue(sheet, cell, col)
		}
		for ri, o := range orders {
			for ci, val := range exportRow(o) {
				cell, _ := excelize.CoordinatesToCellName(ci+1, ri+2)
				f.SetCellValue(sheet, cell, val)
			}
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="orders_%s.xlsx"`, stamp))
		f.Write(w)
	case "json":
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="orders_%s.json"`, stamp))
		response.JSON(w, orders)
	default:
		response.Err(w, "Unsupported export format", http.StatusBadRequest)
	}
}
