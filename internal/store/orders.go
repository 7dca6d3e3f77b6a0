package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"sorp/internal/models"
)

// ErrAlreadyIssued reports a manual issuance of an order id that is already
// present in the issued-id table.
var ErrAlreadyIssued = errors.New("order id already issued")

// SaleOrderFilter narrows ListSaleOrders. Zero values mean "no filter".
type SaleOrderFilter struct {
	Username   string
	DealerName string
	City       string
	OrderID    string
	DateFrom   string // YYYY-MM-DD
	DateTo     string // YYYY-MM-DD, inclusive
	Limit      int
	Offset     int
}

func (f SaleOrderFilter) where() (string, []interface{}) {
	conds := []string{"1=1"}
	var args []interface{}
	add := func(cond string, arg interface{}) {
		conds = append(conds, cond)
		args = append(args, arg)
	}
	if f.Username != "" {
		add("username = ?", f.Username)
	}
	if f.DealerName != "" {
		add("dealer_name LIKE ?", "%"+f.DealerName+"%")
	}
	if f.City != "" {
		add("city LIKE ?", "%"+f.City+"%")
	}
	if f.OrderID != "" {
		add("order_id LIKE ?", "%"+f.OrderID+"%")
	}
	if f.DateFrom != "" {
		add("generated_at >= ?", f.DateFrom)
	}
	if f.DateTo != "" {
		add("generated_at <= ?", f.DateTo+" 23:59:59")
	}
	return strings.Join(conds, " AND "), args
}

func scanSaleOrders(rows *sql.Rows) ([]models.SaleOrderRecord, error) {
	var out []models.SaleOrderRecord
	for rows.Next() {
		var rec models.SaleOrderRecord
		if err := rows.Scan(&rec.ID, &rec.Username, &rec.DealerName, &rec.City,
			&rec.OrderID, &rec.ReportName, &rec.GeneratedAt, &rec.OrderType); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListSaleOrders returns a filtered, newest-first page of the audit log plus
// the unpaginated match count.
func (d *DB) ListSaleOrders(ctx context.Context, f SaleOrderFilter) ([]models.SaleOrderRecord, int, error) {
	where, args := f.where()

	var total int
	err := d.QueryRowContext(ctx,
		d.Rebind("SELECT COUNT(*) FROM sale_orders WHERE "+where), args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	query := `SELECT id, username, dealer_name, city, order_id, report_name, generated_at, order_type
		FROM sale_orders WHERE ` + where + ` ORDER BY generated_at DESC LIMIT ? OFFSET ?`
	rows, err := d.QueryContext(ctx, d.Rebind(query), append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders, err := scanSaleOrders(rows)
	return orders, total, err
}

// GetSaleOrder loads one audit row by primary key.
func (d *DB) GetSaleOrder(ctx context.Context, id int) (*models.SaleOrderRecord, error) {
	var rec models.SaleOrderRecord
	err := d.QueryRowContext(ctx, d.Rebind(
		`SELECT id, username, dealer_name, city, order_id, report_name, generated_at, order_type
		 FROM sale_orders WHERE id = ?`), id,
	).Scan(&rec.ID, &rec.Username, &rec.DealerName, &rec.City,
		&rec.OrderID, &rec.ReportName, &rec.GeneratedAt, &rec.OrderType)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SearchSaleOrders matches q against dealer, city, order id and username.
func (d *DB) SearchSaleOrders(ctx context.Context, q string, limit int) ([]models.SaleOrderRecord, error) {
	like := "%" + q + "%"
	rows, err := d.QueryContext(ctx, d.Rebind(
		`SELECT id, username, dealer_name, city, order_id, report_name, generated_at, order_type
		 FROM sale_orders
		 WHERE dealer_name LIKE ? OR city LIKE ? OR order_id LIKE ? OR username LIKE ?
		 ORDER BY generated_at DESC LIMIT ?`),
		like, like, like, like, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSaleOrders(rows)
}

// RecentSaleOrders returns the newest rows of the audit log.
func (d *DB) RecentSaleOrders(ctx context.Context, limit int) ([]models.SaleOrderRecord, error) {
	rows, err := d.QueryContext(ctx, d.Rebind(
		`SELECT id, username, dealer_name, city, order_id, report_name, generated_at, order_type
		 FROM sale_orders ORDER BY generated_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSaleOrders(rows)
}

// LatestOrderID returns the most recent order id seen on either allocation
// channel, or "" when nothing was issued yet.
func (d *DB) LatestOrderID(ctx context.Context) (string, error) {
	var id string
	err := d.QueryRowContext(ctx,
		`SELECT order_id FROM (
			SELECT order_id, generated_at AS ts FROM sale_orders
			UNION ALL
			SELECT order_id, given_at AS ts FROM issued_order_ids
		) q ORDER BY ts DESC LIMIT 1`,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}

// IssueOrderID reserves an order id manually. Uniqueness is checked only
// against the issued-id table itself, matching the behavior the rest of the
// system expects; the unique constraint backstops racing inserts.
func (d *DB) IssueOrderID(ctx context.Context, rec models.IssuedOrderID) error {
	var exists int
	err := d.QueryRowContext(ctx, d.Rebind(
		`SELECT COUNT(*) FROM issued_order_ids WHERE order_id = ?`), rec.OrderID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check issued id: %w", err)
	}
	if exists > 0 {
		return ErrAlreadyIssued
	}

	if rec.GivenAt == "" {
		rec.GivenAt = time.Now().Format("2006-01-02 15:04:05")
	}
	_, err = d.ExecContext(ctx, d.Rebind(
		`INSERT INTO issued_order_ids (order_id, given_to_name, dealer_name, city, given_by_user, given_at)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		rec.OrderID, rec.GivenToName, rec.DealerName, rec.City, rec.GivenByUser, rec.GivenAt)
	if IsUniqueViolation(err) {
		return ErrAlreadyIssued
	}
	return err
}

// ListIssuedIDs returns a newest-first page of manual reservations plus the
// total count.
func (d *DB) ListIssuedIDs(ctx context.Context, limit, offset int) ([]models.IssuedOrderID, int, error) {
	var total int
	if err := d.QueryRowContext(ctx, `SELECT COUNT(*) FROM issued_order_ids`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := d.QueryContext(ctx, d.Rebind(
		`SELECT id, order_id, given_to_name, dealer_name, city, given_by_user, given_at
		 FROM issued_order_ids ORDER BY given_at DESC LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.IssuedOrderID
	for rows.Next() {
		var rec models.IssuedOrderID
		if err := rows.Scan(&rec.ID, &rec.OrderID, &rec.GivenToName, &rec.DealerName,
			&rec.City, &rec.GivenByUser, &rec.GivenAt); err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}
