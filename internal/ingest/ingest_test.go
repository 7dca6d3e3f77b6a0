package ingest_test

import (
	"bytes"
	"strings"
	"testing"

	"sorp/internal/ingest"
	"sorp/internal/models"
	"sorp/internal/testutil"
)

func readWorkbook(t *testing.T, rows []testutil.PriceListRow) *ingest.Workbook {
	t.Helper()
	data := testutil.BuildPriceList(t, rows)
	wb, err := ingest.Read(bytes.NewReader(data), "upload.xlsx")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	return wb
}

func TestReadMasterRows(t *testing.T) {
	wb := readWorkbook(t, []testutil.PriceListRow{
		{Product: "Door", Size: "72x30", Category: "Flush", Brand: "Alpha", Quantity: 3},
		{Product: "Laminate", Size: "8x4", Category: "1mm SF Gloss", Brand: "Beta", Quantity: 10},
	})
	if len(wb.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(wb.Items))
	}
	first := wb.Items[0]
	if first.RawProduct != "Door" || first.Size != "72x30" || first.Quantity != 3 {
		t.Errorf("unexpected first row: %+v", first)
	}
}

func TestReadEmptyAndGarbageInput(t *testing.T) {
	data := testutil.BuildPriceList(t, nil)
	wb, err := ingest.Read(bytes.NewReader(data), "upload.xlsx")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(wb.Items) != 0 {
		t.Errorf("empty master should give no items, got %d", len(wb.Items))
	}

	if _, err := ingest.Read(strings.NewReader("not a workbook"), "upload.xlsx"); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestAggregateAnnotation(t *testing.T) {
	wb := readWorkbook(t, []testutil.PriceListRow{
		{Product: "Laminate", Size: "8x4", Category: "SF Gloss", Brand: "DEFAULT", Quantity: 10},
		{Product: "Door", Size: "72x30", Category: "Flush", Brand: "Alpha", Quantity: 2},
	})
	agg := ingest.Aggregate(wb)

	var lam, door *models.LineItem
	for i := range agg.Items {
		switch agg.Items[i].Product {
		case models.ProductLaminate:
			lam = &agg.Items[i]
		case models.ProductDoor:
			door = &agg.Items[i]
		}
	}
	if lam == nil || door == nil {
		t.Fatalf("missing annotated items: %+v", agg.Items)
	}

	if lam.NormalizedCategory != "SF CATEGORY" {
		t.Errorf("laminate category = %q, want SF CATEGORY", lam.NormalizedCategory)
	}
	if lam.SQFT != 320 { // 8*4 feet * 10
		t.Errorf("laminate sqft = %v, want 320", lam.SQFT)
	}
	if lam.Weight != 25 { // per-brand 2.5 * qty 10
		t.Errorf("laminate weight = %v, want 25", lam.Weight)
	}

	if door.NormalizedCategory != "Flush" {
		t.Errorf("door category = %q, want raw Flush", door.NormalizedCategory)
	}
	if door.SQFT != 30 { // 72*30/144 * 2
		t.Errorf("door sqft = %v, want 30", door.SQFT)
	}
	if door.Weight != 3 { // 1.5 per piece * 2
		t.Errorf("door weight = %v, want 3", door.Weight)
	}
}

func TestAggregateGrouping(t *testing.T) {
	wb := readWorkbook(t, []testutil.PriceListRow{
		{Product: "Laminate", Size: "8x4", Category: "HG Mirror", Brand: "Zeta", Quantity: 1},
		{Product: "Door", Size: "72x30", Category: "Flush", Brand: "Alpha", Quantity: 2},
		{Product: "Laminate", Size: "8x4", Category: "SF Gloss", Brand: "Zeta", Quantity: 5},
		{Product: "Door", Size: "78x30", Category: "Flush", Brand: "Alpha", Quantity: 1},
	})
	agg := ingest.Aggregate(wb)

	if agg.TotalBrands != 2 {
		t.Fatalf("brands = %d, want 2", agg.TotalBrands)
	}
	if agg.Brands[0].Name != "Alpha" || agg.Brands[1].Name != "Zeta" {
		t.Fatalf("brand order = %q, %q", agg.Brands[0].Name, agg.Brands[1].Name)
	}

	// Doors only: no laminate-like rows, no brand total.
	if agg.Brands[0].HasLaminateLike {
		t.Error("Alpha should not be laminate-like")
	}
	if !agg.Brands[1].HasLaminateLike {
		t.Error("Zeta should be laminate-like")
	}

	// SF comes before HG within Zeta.
	zeta := agg.Brands[1]
	if len(zeta.Categories) != 2 {
		t.Fatalf("Zeta categories = %d, want 2", len(zeta.Categories))
	}
	if zeta.Categories[0].Name != "SF CATEGORY" || zeta.Categories[1].Name != "HG CATEGORY" {
		t.Errorf("category order = %q, %q", zeta.Categories[0].Name, zeta.Categories[1].Name)
	}

	// Subtotals roll up into brand and grand totals.
	if zeta.Qty != 6 {
		t.Errorf("Zeta qty = %v, want 6", zeta.Qty)
	}
	if agg.Qty != 9 {
		t.Errorf("grand qty = %v, want 9", agg.Qty)
	}
	if agg.TotalItems != 4 {
		t.Errorf("total items = %d, want 4", agg.TotalItems)
	}
}

func TestSampleWorkbook(t *testing.T) {
	wb := ingest.Sample()
	if len(wb.Items) == 0 {
		t.Fatal("sample workbook has no rows")
	}
	agg := ingest.Aggregate(wb)
	if agg.TotalItems == 0 || agg.TotalBrands == 0 {
		t.Errorf("sample aggregate is empty: %+v", agg)
	}
}
