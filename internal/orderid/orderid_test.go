package orderid_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"sorp/internal/orderid"
	"sorp/internal/testutil"
)

func TestValid(t *testing.T) {
	valid := []string{"01-25-00001", "12-99-00042", "07-26-123456"}
	for _, s := range valid {
		if !orderid.Valid(s) {
			t.Errorf("Valid(%q) = false, want true", s)
		}
	}
	invalid := []string{"", "13-25-00001", "00-25-00001", "1-25-00001", "01-25-9999", "01-2025-00001", "01-25-00001x"}
	for _, s := range invalid {
		if orderid.Valid(s) {
			t.Errorf("Valid(%q) = true, want false", s)
		}
	}
}

func TestMonthKeyAndFormat(t *testing.T) {
	now := time.Date(2025, time.August, 9, 12, 0, 0, 0, time.UTC)
	if key := orderid.MonthKey(now); key != "08-25" {
		t.Errorf("MonthKey = %q, want 08-25", key)
	}
	if id := orderid.Format("08-25", 7); id != "08-25-00007" {
		t.Errorf("Format = %q, want 08-25-00007", id)
	}
	// Sequences past five digits widen rather than truncate.
	if id := orderid.Format("08-25", 123456); id != "08-25-123456" {
		t.Errorf("Format = %q, want 08-25-123456", id)
	}
}

func TestNextSequential(t *testing.T) {
	db := testutil.SetupTestDB(t)
	alloc := orderid.NewAllocator(db)
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

	for i := 1; i <= 5; i++ {
		id, err := alloc.Next(t.Context(), now)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		want := fmt.Sprintf("03-25-%05d", i)
		if id != want {
			t.Errorf("allocation %d = %q, want %q", i, id, want)
		}
	}
}

func TestNextResetsPerMonth(t *testing.T) {
	db := testutil.SetupTestDB(t)
	alloc := orderid.NewAllocator(db)

	march := time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)
	april := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)

	if _, err := alloc.Next(t.Context(), march); err != nil {
		t.Fatal(err)
	}
	id, err := alloc.Next(t.Context(), april)
	if err != nil {
		t.Fatal(err)
	}
	if id != "04-25-00001" {
		t.Errorf("first april id = %q, want 04-25-00001", id)
	}
	// March's counter is untouched by April's allocations.
	id, err = alloc.Next(t.Context(), march)
	if err != nil {
		t.Fatal(err)
	}
	if id != "03-25-00002" {
		t.Errorf("second march id = %q, want 03-25-00002", id)
	}
}

func TestNextConcurrent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	alloc := orderid.NewAllocator(db)
	now := time.Now()

	const workers = 20
	ids := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = alloc.Next(t.Context(), now)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if seen[ids[i]] {
			t.Fatalf("duplicate id minted: %s", ids[i])
		}
		seen[ids[i]] = true
	}

	seq, err := db.IncrementCounter(t.Context(), orderid.MonthKey(now))
	if err != nil {
		t.Fatal(err)
	}
	if seq != workers+1 {
		t.Errorf("final counter = %d, want %d", seq, workers+1)
	}
}

func TestPeekDoesNotConsume(t *testing.T) {
	db := testutil.SetupTestDB(t)
	alloc := orderid.NewAllocator(db)
	now := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)

	suggested, err := alloc.Peek(t.Context(), now)
	if err != nil {
		t.Fatal(err)
	}
	if suggested != "06-25-00001" {
		t.Errorf("peek on fresh month = %q, want 06-25-00001", suggested)
	}

	id, err := alloc.Next(t.Context(), now)
	if err != nil {
		t.Fatal(err)
	}
	if id != suggested {
		t.Errorf("Next = %q, want peeked %q", id, suggested)
	}

	suggested, err = alloc.Peek(t.Context(), now)
	if err != nil {
		t.Fatal(err)
	}
	if suggested != "06-25-00002" {
		t.Errorf("peek after one allocation = %q, want 06-25-00002", suggested)
	}
}
