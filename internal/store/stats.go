package store

import (
	"context"
	"fmt"
	"time"

	"sorp/internal/models"
)

// LabelCount is one bucket of a grouped count (chart point, top-N row).
type LabelCount struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// DealerCount is one row of the top-dealers breakdown.
type DealerCount struct {
	DealerName string `json:"dealer_name"`
	City       string `json:"city"`
	OrderCount int    `json:"order_count"`
}

// Overview is the headline block of the dashboard.
type Overview struct {
	TotalOrders int `json:"total_orders"`
	UserOrders  int `json:"user_orders"`
	TodayOrders int `json:"today_orders"`
	MonthOrders int `json:"month_orders"`
	IssuedIDs   int `json:"issued_ids"`
}

// DashboardStats is the full dashboard payload.
type DashboardStats struct {
	Overview      Overview                 `json:"overview"`
	TopDealers    []DealerCount            `json:"top_dealers"`
	TopCities     []LabelCount             `json:"top_cities"`
	MonthlyOrders []LabelCount             `json:"monthly_orders"`
	OrdersByUser  []LabelCount             `json:"orders_by_user"`
	RecentOrders  []models.SaleOrderRecord `json:"recent_orders"`
}

func (d *DB) countWhere(ctx context.Context, query string, args ...interface{}) (int, error) {
	var n int
	err := d.QueryRowContext(ctx, d.Rebind(query), args...).Scan(&n)
	return n, err
}

func (d *DB) labelCounts(ctx context.Context, query string, args ...interface{}) ([]LabelCount, error) {
	rows, err := d.QueryContext(ctx, d.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LabelCount
	for rows.Next() {
		var lc LabelCount
		if err := rows.Scan(&lc.Label, &lc.Value); err != nil {
			return nil, err
		}
		out = append(out, lc)
	}
	return out, rows.Err()
}

// Dashboard builds the stats payload for one user's dashboard.
func (d *DB) Dashboard(ctx context.Context, username string, now time.Time) (*DashboardStats, error) {
	stats := &DashboardStats{}
	var err error

	if stats.Overview.TotalOrders, err = d.countWhere(ctx, `SELECT COUNT(*) FROM sale_orders`); err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	if stats.Overview.UserOrders, err = d.countWhere(ctx,
		`SELECT COUNT(*) FROM sale_orders WHERE username = ?`, username); err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	if stats.Overview.TodayOrders, err = d.countWhere(ctx,
		`SELECT COUNT(*) FROM sale_orders WHERE generated_at LIKE ?`, now.Format("2006-01-02")+"%"); err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	if stats.Overview.MonthOrders, err = d.countWhere(ctx,
		`SELECT COUNT(*) FROM sale_orders WHERE generated_at LIKE ?`, now.Format("2006-01")+"%"); err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	if stats.Overview.IssuedIDs, err = d.countWhere(ctx, `SELECT COUNT(*) FROM issued_order_ids`); err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	rows, err := d.QueryContext(ctx,
		`SELECT dealer_name, city, COUNT(*) AS order_count FROM sale_orders
		 GROUP BY dealer_name, city ORDER BY order_count DESC LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	for rows.Next() {
		var dc DealerCount
		if err := rows.Scan(&dc.DealerName, &dc.City, &dc.OrderCount); err != nil {
			rows.Close()
			return nil, err
		}
		stats.TopDealers = append(stats.TopDealers, dc)
	}
	rows.Close()

	if stats.TopCities, err = d.labelCounts(ctx,
		`SELECT city, COUNT(*) FROM sale_orders GROUP BY city ORDER BY COUNT(*) DESC LIMIT 10`); err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	since := now.AddDate(0, 0, -365).Format("2006-01-02")
	if stats.MonthlyOrders, err = d.labelCounts(ctx,
		`SELECT substr(generated_at, 1, 7) AS month, COUNT(*) FROM sale_orders
		 WHERE generated_at >= ? GROUP BY month ORDER BY month ASC`, since); err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	if stats.OrdersByUser, err = d.labelCounts(ctx,
		`SELECT username, COUNT(*) FROM sale_orders GROUP BY username ORDER BY COUNT(*) DESC`); err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	if stats.RecentOrders, err = d.RecentSaleOrders(ctx, 20); err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	return stats, nil
}

// ChartData returns per-month (last year) or per-day (last 30 days) order
// counts for the dashboard charts.
func (d *DB) ChartData(ctx context.Context, chartType string, now time.Time) ([]LabelCount, error) {
	switch chartType {
	case "daily":
		since := now.AddDate(0, 0, -30).Format("2006-01-02")
		return d.labelCounts(ctx,
			`SELECT substr(generated_at, 1, 10) AS label, COUNT(*) FROM sale_orders
			 WHERE generated_at >= ? GROUP BY label ORDER BY label ASC`, since)
	default: // monthly
		since := now.AddDate(0, 0, -365).Format("2006-01-02")
		return d.labelCounts(ctx,
			`SELECT substr(generated_at, 1, 7) AS label, COUNT(*) FROM sale_orders
			 WHERE generated_at >= ? GROUP BY label ORDER BY label ASC`, since)
	}
}

// AdminCounts is the headline block of the admin overview.
type AdminCounts struct {
	TotalOrders    int `json:"total_orders"`
	TodayOrders    int `json:"today_orders"`
	IssuedIDs      int `json:"issued_ids"`
	ActiveSessions int `json:"active_sessions"`
}

// AdminOverviewCounts aggregates the counters shown on the admin landing page.
func (d *DB) AdminOverviewCounts(ctx context.Context, now time.Time) (*AdminCounts, error) {
	var c AdminCounts
	var err error
	if c.TotalOrders, err = d.countWhere(ctx, `SELECT COUNT(*) FROM sale_orders`); err != nil {
		return nil, err
	}
	if c.TodayOrders, err = d.countWhere(ctx,
		`SELECT COUNT(*) FROM sale_orders WHERE generated_at LIKE ?`, now.Format("2006-01-02")+"%"); err != nil {
		return nil, err
	}
	if c.IssuedIDs, err = d.countWhere(ctx, `SELECT COUNT(*) FROM issued_order_ids`); err != nil {
		return nil, err
	}
	if c.ActiveSessions, err = d.countWhere(ctx, `SELECT COUNT(*) FROM active_sessions`); err != nil {
		return nil, err
	}
	return &c, nil
}

// OrderIDView is one row of the order_id_views audit trail.
type OrderIDView struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	OrderID   string `json:"order_id"`
	ViewedAt  string `json:"viewed_at"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
}

// ListOrderIDViews returns the newest order-id view events for the admin
// activity log.
func (d *DB) ListOrderIDViews(ctx context.Context, limit int) ([]OrderIDView, error) {
	rows, err := d.QueryContext(ctx, d.Rebind(
		`SELECT id, username, order_id, viewed_at, ip, user_agent
		 FROM order_id_views ORDER BY viewed_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderIDView
	for rows.Next() {
		var v OrderIDView
		if err := rows.Scan(&v.ID, &v.Username, &v.OrderID, &v.ViewedAt, &v.IP, &v.UserAgent); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
