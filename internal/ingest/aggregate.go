package ingest

import (
	"sort"
	"strconv"
	"strings"

	"sorp/internal/catalog"
	"sorp/internal/models"
)

// CategoryGroup is one category bucket within a brand, with its subtotal.
type CategoryGroup struct {
	Name   string
	Items  []models.LineItem
	Qty    float64
	SQFT   float64
	Weight float64
}

// BrandGroup is all of one brand's rows, split into category buckets in
// precedence order. HasLaminateLike drives the brand-total row in the
// rendered report.
type BrandGroup struct {
	Name            string
	Categories      []CategoryGroup
	HasLaminateLike bool
	Qty             float64
	SQFT            float64
	Weight          float64
}

// Aggregated is the fully annotated, sorted and grouped result of one
// ingestion pass. It is immutable once built and owned by a single report
// generation.
type Aggregated struct {
	Items         []models.LineItem
	CategoryOrder []string
	Brands        []BrandGroup
	Weights       *catalog.WeightTables
	TotalItems    int
	TotalBrands   int
	Qty           float64
	SQFT          float64
	Weight        float64
}

// Aggregate annotates the workbook's rows with product family, normalized
// category, area and weight, sorts them, and groups them into brand and
// category buckets with subtotals.
func Aggregate(wb *Workbook) *Aggregated {
	items := make([]models.LineItem, len(wb.Items))
	copy(items, wb.Items)

	for i := range items {
		it := &items[i]
		it.Product = models.ParseProduct(it.RawProduct)
		it.NormalizedCategory = wb.Categories.Normalize(it.RawCategory, it.Product)
		it.SQFT = catalog.Area(it.Size, it.Quantity)
		it.Weight = wb.Weights.Weight(it)
	}

	order := categoryOrder(items, wb.Categories)
	sortItems(items, order)

	agg := &Aggregated{
		Items:         items,
		CategoryOrder: order,
		Weights:       wb.Weights,
		TotalItems:    len(items),
	}
	agg.group()
	return agg
}

// categoryOrder builds the category precedence for this item set: SF, then
// HG, then the mapping table's targets in table order, then the TEX bucket,
// then UNSPECIFIED, then anything left over in first-seen order.
func categoryOrder(items []models.LineItem, cats *catalog.CategoryMap) []string {
	present := make(map[string]bool)
	var seen []string
	for _, it := range items {
		if !present[it.NormalizedCategory] {
			present[it.NormalizedCategory] = true
			seen = append(seen, it.NormalizedCategory)
		}
	}

	placed := make(map[string]bool)
	var order []string
	add := func(c string) {
		if present[c] && !placed[c] {
			placed[c] = true
			order = append(order, c)
		}
	}

	add("SF")
	add("HG")
	for _, c := range cats.Targets() {
		if c == "SF" || c == "HG" || c == catalog.TexCategory {
			continue
		}
		add(c)
	}
	add(catalog.TexCategory)
	add(catalog.Unspecified)
	for _, c := range seen {
		add(c)
	}
	return order
}

// sizeKey parses a size as a number when possible. Unparseable sizes sort
// after numeric ones within their group.
func sizeKey(size string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(size), 64)
	return v, err == nil
}

func sortItems(items []models.LineItem, order []string) {
	rank := make(map[string]int, len(order))
	for i, c := range order {
		rank[c] = i
	}
	catRank := func(c string) int {
		if r, ok := rank[c]; ok {
			return r
		}
		return len(order)
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Brand != b.Brand {
			return a.Brand < b.Brand
		}
		if ra, rb := catRank(a.NormalizedCategory), catRank(b.NormalizedCategory); ra != rb {
			return ra < rb
		}
		if pa, pb := a.Product.String(), b.Product.String(); pa != pb {
			return pa < pb
		}
		na, okA := sizeKey(a.Size)
		nb, okB := sizeKey(b.Size)
		switch {
		case okA && okB:
			return na < nb
		case okA != okB:
			return okA
		default:
			return a.Size < b.Size
		}
	})
}

func (a *Aggregated) group() {
	var brands []BrandGroup
	byName := func(name string) *BrandGroup {
		if n := len(brands); n > 0 && brands[n-1].Name == name {
			return &brands[n-1]
		}
		brands = append(brands, BrandGroup{Name: name})
		return &brands[len(brands)-1]
	}

	for _, it := range a.Items {
		bg := byName(it.Brand)
		if it.Product.IsLaminateLike() {
			bg.HasLaminateLike = true
		}
		var cg *CategoryGroup
		if n := len(bg.Categories); n > 0 && bg.Categories[n-1].Name == it.NormalizedCategory {
			cg = &bg.Categories[n-1]
		} else {
			bg.Categories = append(bg.Categories, CategoryGroup{Name: it.NormalizedCategory})
			cg = &bg.Categories[len(bg.Categories)-1]
		}
		cg.Items = append(cg.Items, it)
		cg.Qty += it.Quantity
		cg.SQFT += it.SQFT
		cg.Weight += it.Weight
	}

	for i := range brands {
		bg := &brands[i]
		for _, cg := range bg.Categories {
			bg.Qty += cg.Qty
			bg.SQFT += cg.SQFT
			bg.Weight += cg.Weight
		}
		a.Qty += bg.Qty
		a.SQFT += bg.SQFT
		a.Weight += bg.Weight
	}

	a.Brands = brands
	a.TotalBrands = len(brands)
}
