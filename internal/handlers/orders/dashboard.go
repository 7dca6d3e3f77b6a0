package orders

import (
	"net/http"
	"time"

	"sorp/internal/response"
	"sorp/internal/server"
)

// DashboardStats returns the per-user and global counters plus the top
// dealer/city breakdowns used by the dashboard page.
func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.App.DB.Dashboard(r.Context(), server.Username(r), time.Now())
	if err != nil {
		response.Err(w, "Failed to load dashboard", http.StatusInternalServerError)
		return
	}
	response.JSON(w, stats)
}

// ChartData returns time-bucketed order counts for the dashboard charts.
// Supported types are "monthly" and "daily".
func (h *Handler) ChartData(w http.ResponseWriter, r *http.Request) {
	chartType := r.URL.Query().Get("type")
	if chartType == "" {
		chartType = "monthly"
	}
	points, err := h.App.DB.ChartData(r.Context(), chartType, time.Now())
	if err != nil {
		response.Err(w, "Failed to load chart data", http.StatusInternalServerError)
		return
	}
	response.JSON(w, map[string]interface{}{
		"type":   chartType,
		"points": points,
	})
}
