// Package orderid allocates the globally unique MM-YY-NNNNN order numbers.
// Every allocation goes through the counters table so concurrent requests,
// and multiple app instances sharing one database, can never mint the same
// number twice within a month.
package orderid

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"sorp/internal/store"
)

// Pattern matches a well-formed order id: two-digit month, two-digit year,
// five-or-more digit sequence.
var Pattern = regexp.MustCompile(`^(0[1-9]|1[0-2])-\d{2}-\d{5,}$`)

// Valid reports whether s is a well-formed order id.
func Valid(s string) bool { return Pattern.MatchString(s) }

// MonthKey returns the MM-YY counter key for t.
func MonthKey(t time.Time) string {
	return fmt.Sprintf("%02d-%02d", int(t.Month()), t.Year()%100)
}

// Format renders an order id from a month key and sequence number.
func Format(monthKey string, seq int64) string {
	return fmt.Sprintf("%s-%05d", monthKey, seq)
}

// Allocator mints order ids against the shared counters table.
type Allocator struct {
	db *store.DB
}

func NewAllocator(db *store.DB) *Allocator {
	return &Allocator{db: db}
}

// Next allocates and returns the next order id for the month containing now.
// The sequence restarts at 1 when a month is seen for the first time.
// Allocation failure is a hard error; callers must never substitute a
// placeholder id, because a collision on a dealer-facing order number is
// worse than a failed request.
func (a *Allocator) Next(ctx context.Context, now time.Time) (string, error) {
	key := MonthKey(now)
	seq, err := a.db.IncrementCounter(ctx, key)
	if err != nil {
		return "", fmt.Errorf("allocate order id for %s: %w", key, err)
	}
	return Format(key, seq), nil
}

// Peek returns the id the next call to Next would produce, without consuming
// it. Used by the status endpoint to show a suggested id; the suggestion is
// advisory and may be taken by another caller before it is used.
func (a *Allocator) Peek(ctx context.Context, now time.Time) (string, error) {
	key := MonthKey(now)
	var counter int64
	err := a.db.QueryRowContext(ctx,
		a.db.Rebind(`SELECT counter FROM counters WHERE month_year = ?`), key,
	).Scan(&counter)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("peek counter %s: %w", key, err)
	}
	return Format(key, counter+1), nil
}
