// Package catalog resolves raw line-item fields against the lookup tables
// shipped inside the uploaded workbook: the keyword-to-category map and the
// weight tables keyed by brand or material thickness.
package catalog

import (
	"regexp"
	"strconv"
	"strings"

	"sorp/internal/models"
)

// TexCategory is the fixed bucket for any raw category containing "TEX".
const TexCategory = "TEX CATEGORY"

// Unspecified is assigned when a row carries no category at all.
const Unspecified = "UNSPECIFIED"

// Mapping is one row of the CategoryMap sheet. Keyword "*" marks the
// fallback row; a keyword containing "+" requires every part to match.
type Mapping struct {
	Keyword  string
	Category string
}

// CategoryMap holds the keyword mapping rows in sheet order. Row order is
// significant: the first matching row wins.
type CategoryMap struct {
	rows []Mapping
}

func NewCategoryMap(rows []Mapping) *CategoryMap {
	return &CategoryMap{rows: rows}
}

// Targets returns the distinct non-wildcard normalized categories in table
// order. The aggregator uses this to build the category precedence.
func (m *CategoryMap) Targets() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range m.rows {
		if r.Keyword == "*" || seen[r.Category] {
			continue
		}
		seen[r.Category] = true
		out = append(out, r.Category)
	}
	return out
}

// Normalize maps a raw category to its normalized name.
//
// Anything containing "TEX" lands in the fixed TEX bucket regardless of
// product. Only laminate-like products go through the keyword table; every
// other product keeps its raw category verbatim. Within the table a "+"
// keyword requires all parts present as substrings, order irrelevant, and
// the "*" row is the fallback when nothing else matched.
func (m *CategoryMap) Normalize(raw string, product models.Product) string {
	if strings.TrimSpace(raw) == "" {
		return Unspecified
	}
	upper := strings.ToUpper(raw)
	if strings.Contains(upper, "TEX") {
		return TexCategory
	}
	if !product.IsLaminateLike() {
		return raw
	}

	var fallback string
	haveFallback := false
	for _, r := range m.rows {
		keyword := strings.ToUpper(r.Keyword)
		if keyword == "*" {
			if !haveFallback {
				fallback = r.Category
				haveFallback = true
			}
			continue
		}
		if strings.Contains(keyword, "+") {
			all := true
			for _, part := range strings.Split(keyword, "+") {
				if !strings.Contains(upper, strings.TrimSpace(part)) {
					all = false
					break
				}
			}
			if all {
				return r.Category
			}
			continue
		}
		if strings.Contains(upper, keyword) {
			return r.Category
		}
	}
	if haveFallback {
		return fallback
	}
	return upper
}

var thicknessRe = regexp.MustCompile(`^(\d+\.?\d*)mm`)

// ExtractThickness pulls a leading "<n>mm" thickness out of a raw category
// string, e.g. "18mm BWP" -> 18.
func ExtractThickness(category string) (float64, bool) {
	m := thicknessRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(category)))
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var sizeSplitRe = regexp.MustCompile(`[xX]`)

// ParseSize splits an "LxB" size string into its two dimensions. Sizes
// without exactly one x separator, or with non-numeric parts, report ok=false.
func ParseSize(size string) (l, b float64, ok bool) {
	if !strings.ContainsAny(size, "xX") {
		return 0, 0, false
	}
	parts := sizeSplitRe.Split(size, -1)
	if len(parts) != 2 {
		return 0, 0, false
	}
	l, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	b, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return l, b, true
}

// Area computes square footage from a size string and quantity. Sizes
// without an x separator, and any parse failure, yield 0 rather than an
// error. Dimensions both at most 15 are taken as feet and multiplied
// directly; larger dimensions are treated as inches and divided by 144.
func Area(size string, qty float64) float64 {
	l, b, ok := ParseSize(size)
	if !ok {
		return 0
	}
	if l <= 15 && b <= 15 {
		return l * b * qty
	}
	return (l * b / 144) * qty
}

// Basis says which per-row value a weight factor multiplies.
type Basis int

const (
	BasisQuantity Basis = iota
	BasisArea
)

// BrandKey keys the per-brand weight table by (product, brand).
type BrandKey struct {
	Product models.Product
	Brand   string // uppercase
}

// WeightTables holds all weight lookup tables from one workbook. Thickness
// tables map millimeter thickness to a weight factor; PerBrand covers the
// laminate-like products.
type WeightTables struct {
	PerBrand map[BrandKey]float64
	HDMR     map[float64]float64 // per piece
	MDF      map[float64]float64 // per piece
	Ply      map[float64]float64 // per sqft
	PVC      map[float64]float64 // per sqft
	WPC      map[float64]float64 // per piece
}

func NewWeightTables() *WeightTables {
	return &WeightTables{
		PerBrand: make(map[BrandKey]float64),
		HDMR:     make(map[float64]float64),
		MDF:      make(map[float64]float64),
		Ply:      make(map[float64]float64),
		PVC:      make(map[float64]float64),
		WPC:      make(map[float64]float64),
	}
}

// Resolve returns the weight factor and basis for a line item. A missing
// table entry resolves to factor 0, never an error: the row still appears
// in the report, just with zero weight.
func (t *WeightTables) Resolve(product models.Product, brand, rawCategory string) (float64, Basis) {
	switch product {
	case models.ProductDoor:
		return 1.5, BasisQuantity
	case models.ProductBoard:
		return 1.0, BasisQuantity
	}

	thickness, ok := ExtractThickness(rawCategory)
	if ok {
		switch product {
		case models.ProductHDMR:
			if f, ok := t.HDMR[thickness]; ok {
				return f, BasisQuantity
			}
		case models.ProductMDF:
			if f, ok := t.MDF[thickness]; ok {
				return f, BasisQuantity
			}
		case models.ProductPly:
			if f, ok := t.Ply[thickness]; ok {
				return f, BasisArea
			}
		case models.ProductPVCDoor:
			if f, ok := t.PVC[thickness]; ok {
				return f, BasisArea
			}
		case models.ProductWPCBoard:
			if f, ok := t.WPC[thickness]; ok {
				return f, BasisQuantity
			}
		}
	}

	if product.IsLaminateLike() {
		key := BrandKey{Product: product, Brand: strings.ToUpper(brand)}
		if f, ok := t.PerBrand[key]; ok {
			return f, BasisQuantity
		}
	}

	return 0, BasisQuantity
}

// Weight computes the weight value for an item using the resolved factor.
func (t *WeightTables) Weight(item *models.LineItem) float64 {
	factor, basis := t.Resolve(item.Product, item.Brand, item.RawCategory)
	if basis == BasisArea {
		return item.SQFT * factor
	}
	return item.Quantity * factor
}
