// Package audit owns the append-only order history: the sale_orders log
// written after every generated report and the order_id_views log written
// whenever someone looks at the suggested-id endpoint.
package audit

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"sorp/internal/models"
	"sorp/internal/store"
	"sorp/internal/websocket"
)

const timeLayout = "2006-01-02 15:04:05"

// Logger appends audit rows and broadcasts the matching event to connected
// admin dashboards. A nil hub disables broadcasting.
type Logger struct {
	DB  *store.DB
	Hub *websocket.Hub
}

func NewLogger(db *store.DB, hub *websocket.Hub) *Logger {
	return &Logger{DB: db, Hub: hub}
}

// LogSaleOrder appends one generated-report record. Errors are returned for
// the caller to log; report generation treats them as non-fatal.
func (l *Logger) LogSaleOrder(ctx context.Context, rec models.SaleOrderRecord) error {
	if rec.GeneratedAt == "" {
		rec.GeneratedAt = time.Now().Format(timeLayout)
	}
	if rec.OrderType == "" {
		rec.OrderType = models.OrderTypeNew
	}
	_, err := l.DB.ExecContext(ctx, l.DB.Rebind(
		`INSERT INTO sale_orders (username, dealer_name, city, order_id, report_name, generated_at, order_type)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		rec.Username, rec.DealerName, rec.City, rec.OrderID, rec.ReportName, rec.GeneratedAt, rec.OrderType)
	if err != nil {
		return err
	}
	if l.Hub != nil {
		l.Hub.Broadcast(websocket.Event{
			Type:   "order_generated",
			ID:     rec.OrderID,
			Action: "CREATE",
		})
	}
	return nil
}

// LogOrderIDView records that a user looked at the current/suggested order
// id. Failures are swallowed; a missed view row is not worth a failed
// request.
func (l *Logger) LogOrderIDView(ctx context.Context, username, orderID, ip, userAgent string) {
	_, err := l.DB.ExecContext(ctx, l.DB.Rebind(
		`INSERT INTO order_id_views (username, order_id, viewed_at, ip, user_agent)
		 VALUES (?, ?, ?, ?, ?)`),
		username, orderID, time.Now().Format(timeLayout), ip, userAgent)
	if err != nil {
		log.Printf("audit: order id view log error: %v", err)
	}
}

// ClientIP extracts the real client IP from the request (handles proxies).
func ClientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return strings.TrimSpace(xri)
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
