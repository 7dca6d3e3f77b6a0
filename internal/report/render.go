// Package report turns an aggregated order into the styled sale-order
// workbook and drives the generation pipeline around it: allocate an order
// id, render, save, audit.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"sorp/internal/catalog"
	"sorp/internal/ingest"
	"sorp/internal/models"
)

// SheetName is the single worksheet of a generated report.
const SheetName = "SALE ORDER"

// Meta is the order metadata printed into the ORDER INFORMATION block.
type Meta struct {
	Username   string
	DealerName string
	City       string
	OrderDate  string
	Freight    string
	OrderType  string
}

// Renderer builds the sale-order workbook.
type Renderer struct {
	Company  string
	Subtitle string
}

func NewRenderer(company string) *Renderer {
	return &Renderer{
		Company:  company,
		Subtitle: company + " - Premium Wood Solutions",
	}
}

// styles holds the style ids used across the sheet, created once per file.
type styles struct {
	topTitle    int
	sectionBlue int
	subtitle    int
	plain       int
	infoHeader  int
	infoLabel   int
	infoValue   int
	infoOrderID int
	tableHeader int
	strip       int
	rowWhite    int
	rowZebra    int
	subtotal    int
	brandTotal  int
	grandTotal  int
	footer      int
}

func borders(style string) []excelize.Border {
	out := make([]excelize.Border, 0, 4)
	for _, side := range []string{"top", "left", "right", "bottom"} {
		out = append(out, excelize.Border{Type: side, Color: "000000", Style: borderStyle(style)})
	}
	return out
}

func borderStyle(name string) int {
	switch name {
	case "thick":
		return 5
	case "medium":
		return 2
	default: // thin
		return 1
	}
}

func fill(color string) excelize.Fill {
	return excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1}
}

func center() *excelize.Alignment {
	return &excelize.Alignment{Horizontal: "center", Vertical: "center"}
}

func left() *excelize.Alignment {
	return &excelize.Alignment{Horizontal: "left", Vertical: "center"}
}

func buildStyles(f *excelize.File) (*styles, error) {
	s := &styles{}
	var err error

	mk := func(style *excelize.Style) int {
		if err != nil {
			return 0
		}
		var id int
		id, err = f.NewStyle(style)
		return id
	}

	s.topTitle = mk(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14, Color: "FFFFFF"},
		Fill:      fill("1B4D2A"),
		Border:    borders("thin"),
		Alignment: center(),
	})
	s.sectionBlue = mk(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 16, Color: "FFFFFF"},
		Fill:      fill("5E89A3"),
		Border:    borders("thin"),
		Alignment: center(),
	})
	s.subtitle = mk(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Border:    borders("thin"),
		Alignment: center(),
	})
	s.plain = mk(&excelize.Style{
		Font:      &excelize.Font{Size: 10},
		Border:    borders("thin"),
		Alignment: center(),
	})
	s.infoHeader = mk(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      fill("1B4D2A"),
		Border:    borders("thin"),
		Alignment: center(),
	})
	s.infoLabel = mk(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 10},
		Fill:      fill("D9D9D9"),
		Border:    borders("thin"),
		Alignment: center(),
	})
	s.infoValue = mk(&excelize.Style{
		Font:      &excelize.Font{Size: 10},
		Fill:      fill("FFFFFF"),
		Border:    borders("thin"),
		Alignment: center(),
	})
	s.infoOrderID = mk(&excelize.Style{
		Font:      &excelize.Font{Size: 10},
		Fill:      fill("FFF2CC"),
		Border:    borders("thin"),
		Alignment: center(),
	})
	s.tableHeader = mk(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 10, Color: "FFFFFF"},
		Fill:      fill("1B4D2A"),
		Border:    borders("medium"),
		Alignment: center(),
	})
	s.strip = mk(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      fill("C9E1EF"),
		Border:    borders("thin"),
		Alignment: left(),
	})
	s.rowWhite = mk(&excelize.Style{
		Font:      &excelize.Font{Size: 10},
		Fill:      fill("FFFFFF"),
		Border:    borders("thin"),
		Alignment: center(),
	})
	s.rowZebra = mk(&excelize.Style{
		Font:      &excelize.Font{Size: 10},
		Fill:      fill("E6E7EB"),
		Border:    borders("thin"),
		Alignment: center(),
	})
	s.subtotal = mk(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 10, Color: "FFFFFF"},
		Fill:      fill("00A651"),
		Border:    borders("thick"),
		Alignment: center(),
	})
	s.brandTotal = mk(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF"},
		Fill:      fill("5E89A3"),
		Border:    borders("thick"),
		Alignment: center(),
	})
	s.grandTotal = mk(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12},
		Fill:      fill("FFC000"),
		Border:    borders("thick"),
		Alignment: center(),
	})
	s.footer = mk(&excelize.Style{
		Font:      &excelize.Font{Size: 9},
		Fill:      fill("EDEDED"),
		Border:    borders("thin"),
		Alignment: center(),
	})

	if err != nil {
		return nil, fmt.Errorf("build styles: %w", err)
	}
	return s, nil
}

func cellRef(col string, row int) string {
	return col + strconv.Itoa(row)
}

func fmtNum(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// sqftFormula returns the area formula for an item row, or ok=false when the
// cell should hold a literal zero (laminate-like products and unparseable
// sizes have no area).
func sqftFormula(item models.LineItem, row int) (string, bool) {
	if item.Product.IsLaminateLike() {
		return "", false
	}
	l, b, ok := catalog.ParseSize(item.Size)
	if !ok {
		return "", false
	}
	if l <= 15 && b <= 15 {
		return fmt.Sprintf("%s*%s*E%d", fmtNum(l), fmtNum(b), row), true
	}
	return fmt.Sprintf("%s*%s/144*E%d", fmtNum(l), fmtNum(b), row), true
}

// weightFormula returns the weight formula for an item row; factor zero means
// a literal zero cell.
func weightFormula(weights *catalog.WeightTables, item models.LineItem, row int) (string, bool) {
	factor, basis := weights.Resolve(item.Product, item.Brand, item.RawCategory)
	if factor == 0 {
		return "", false
	}
	col := "E"
	if basis == catalog.BasisArea {
		col = "F"
	}
	return fmt.Sprintf("%s%d*%s", col, row, fmtNum(factor)), true
}

// Render builds the workbook for one aggregated order. Quantity cells are
// literals; area and weight cells are formulas referencing the rows and
// ranges just written, so the recipient can audit every total.
func (r *Renderer) Render(agg *ingest.Aggregated, orderID string, meta Meta, generatedAt string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, err
	}
	s, err := buildStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	widths := map[string]float64{"A": 22, "B": 14, "C": 16, "D": 18, "E": 10, "F": 12, "G": 12}
	for col, w := range widths {
		f.SetColWidth(SheetName, col, col, w)
	}

	f.MergeCell(SheetName, "A1", "G1")
	f.SetCellValue(SheetName, "A1", r.Company)
	f.SetCellStyle(SheetName, "A1", "G1", s.topTitle)
	f.SetRowHeight(SheetName, 1, 22)

	title := "PROVISIONAL SALE ORDER"
	if strings.EqualFold(meta.OrderType, models.OrderTypeAdditional) {
		title = "ADDITIONAL SALE ORDER"
	}
	f.MergeCell(SheetName, "A2", "G2")
	f.SetCellValue(SheetName, "A2", title)
	f.SetCellStyle(SheetName, "A2", "G2", s.sectionBlue)
	f.SetRowHeight(SheetName, 2, 26)

	f.MergeCell(SheetName, "A3", "D3")
	f.SetCellValue(SheetName, "A3", r.Subtitle)
	f.SetCellStyle(SheetName, "A3", "D3", s.subtitle)
	f.MergeCell(SheetName, "E3", "G3")
	f.SetCellValue(SheetName, "E3", "Generated: "+generatedAt)
	f.SetCellStyle(SheetName, "E3", "G3", s.plain)

	row := 5

	f.MergeCell(SheetName, cellRef("A", row), cellRef("G", row))
	f.SetCellValue(SheetName, cellRef("A", row), "ORDER INFORMATION")
	f.SetCellStyle(SheetName, cellRef("A", row), cellRef("G", row), s.infoHeader)
	f.SetRowHeight(SheetName, row, 20)
	row++

	orEmpty := func(v string) string {
		if v == "" {
			return "N/A"
		}
		return v
	}
	info := []struct {
		label string
		value string
	}{
		{"ORDER DATE", orEmpty(meta.OrderDate)},
		{"DEALER NAME", orEmpty(meta.DealerName)},
		{"CITY", orEmpty(meta.City)},
		{"FREIGHT", orEmpty(meta.Freight)},
		{"ORDER ID", orderID},
	}
	for _, pair := range info {
		f.SetCellValue(SheetName, cellRef("A", row), pair.label)
		f.SetCellStyle(SheetName, cellRef("A", row), cellRef("A", row), s.infoLabel)

		f.MergeCell(SheetName, cellRef("B", row), cellRef("E", row))
		f.SetCellValue(SheetName, cellRef("B", row), pair.value)
		valStyle := s.infoValue
		if pair.label == "ORDER ID" {
			valStyle = s.infoOrderID
		}
		f.SetCellStyle(SheetName, cellRef("B", row), cellRef("E", row), valStyle)
		f.SetCellStyle(SheetName, cellRef("F", row), cellRef("G", row), s.infoValue)
		row++
	}
	row++

	f.MergeCell(SheetName, cellRef("A", row), cellRef("G", row))
	f.SetCellValue(SheetName, cellRef("A", row), "PRODUCT DETAILS")
	f.SetCellStyle(SheetName, cellRef("A", row), cellRef("G", row), s.sectionBlue)
	f.SetRowHeight(SheetName, row, 20)
	row++

	for i, h := range []string{"PRODUCT", "SIZE", "CATEGORY", "BRAND", "QTY", "SQFT", "WEIGHT"} {
		col := string(rune('A' + i))
		f.SetCellValue(SheetName, cellRef(col, row), h)
		f.SetCellStyle(SheetName, cellRef(col, row), cellRef(col, row), s.tableHeader)
	}
	row++

	var allQty, allSqft, allWgt []string
	zebra := 0

	for _, brand := range agg.Brands {
		f.MergeCell(SheetName, cellRef("A", row), cellRef("G", row))
		f.SetCellValue(SheetName, cellRef("A", row), "Brand: "+brand.Name)
		f.SetCellStyle(SheetName, cellRef("A", row), cellRef("G", row), s.strip)
		row++

		var brandQty, brandSqft, brandWgt []string

		for _, cat := range brand.Categories {
			if len(cat.Items) == 0 {
				continue
			}
			f.MergeCell(SheetName, cellRef("A", row), cellRef("G", row))
			f.SetCellValue(SheetName, cellRef("A", row), "CATEGORY : "+cat.Name)
			f.SetCellStyle(SheetName, cellRef("A", row), cellRef("G", row), s.strip)
			row++

			dataStart := row
			for _, item := range cat.Items {
				rowStyle := s.rowWhite
				if zebra%2 == 1 {
					rowStyle = s.rowZebra
				}
				zebra++

				f.SetCellValue(SheetName, cellRef("A", row), item.RawProduct)
				f.SetCellValue(SheetName, cellRef("B", row), item.Size)
				f.SetCellValue(SheetName, cellRef("C", row), item.RawCategory)
				f.SetCellValue(SheetName, cellRef("D", row), item.Brand)
				f.SetCellValue(SheetName, cellRef("E", row), int(item.Quantity))

				if formula, ok := sqftFormula(item, row); ok {
					f.SetCellFormula(SheetName, cellRef("F", row), formula)
				} else {
					f.SetCellValue(SheetName, cellRef("F", row), 0)
				}
				if formula, ok := weightFormula(agg.Weights, item, row); ok {
					f.SetCellFormula(SheetName, cellRef("G", row), formula)
				} else {
					f.SetCellValue(SheetName, cellRef("G", row), 0)
				}

				f.SetCellStyle(SheetName, cellRef("A", row), cellRef("G", row), rowStyle)
				row++
			}
			dataEnd := row - 1

			brandQty = append(brandQty, fmt.Sprintf("E%d:E%d", dataStart, dataEnd))
			brandSqft = append(brandSqft, fmt.Sprintf("F%d:F%d", dataStart, dataEnd))
			brandWgt = append(brandWgt, fmt.Sprintf("G%d:G%d", dataStart, dataEnd))

			f.MergeCell(SheetName, cellRef("A", row), cellRef("D", row))
			f.SetCellValue(SheetName, cellRef("A", row), "SUBTOTAL")
			f.SetCellFormula(SheetName, cellRef("E", row), fmt.Sprintf("SUM(E%d:E%d)", dataStart, dataEnd))
			f.SetCellFormula(SheetName, cellRef("F", row), fmt.Sprintf("SUM(F%d:F%d)", dataStart, dataEnd))
			f.SetCellFormula(SheetName, cellRef("G", row), fmt.Sprintf("SUM(G%d:G%d)", dataStart, dataEnd))
			f.SetCellStyle(SheetName, cellRef("A", row), cellRef("G", row), s.subtotal)
			row += 2
		}

		if brand.HasLaminateLike {
			f.MergeCell(SheetName, cellRef("A", row), cellRef("D", row))
			f.SetCellValue(SheetName, cellRef("A", row), "BRAND TOTAL")
			if len(brandQty) > 0 {
				f.SetCellFormula(SheetName, cellRef("E", row), "SUM("+strings.Join(brandQty, ",")+")")
				f.SetCellFormula(SheetName, cellRef("F", row), "SUM("+strings.Join(brandSqft, ",")+")")
				f.SetCellFormula(SheetName, cellRef("G", row), "SUM("+strings.Join(brandWgt, ",")+")")
			} else {
				f.SetCellValue(SheetName, cellRef("E", row), 0)
				f.SetCellValue(SheetName, cellRef("F", row), 0)
				f.SetCellValue(SheetName, cellRef("G", row), 0)
			}
			f.SetCellStyle(SheetName, cellRef("A", row), cellRef("G", row), s.brandTotal)
			row += 3
		}

		allQty = append(allQty, brandQty...)
		allSqft = append(allSqft, brandSqft...)
		allWgt = append(allWgt, brandWgt...)
	}

	f.MergeCell(SheetName, cellRef("A", row), cellRef("D", row))
	f.SetCellValue(SheetName, cellRef("A", row), "GRAND TOTAL")
	if len(allQty) > 0 {
		f.SetCellFormula(SheetName, cellRef("E", row), "SUM("+strings.Join(allQty, ",")+")")
		f.SetCellFormula(SheetName, cellRef("F", row), "SUM("+strings.Join(allSqft, ",")+")")
		f.SetCellFormula(SheetName, cellRef("G", row), "SUM("+strings.Join(allWgt, ",")+")")
	} else {
		f.SetCellValue(SheetName, cellRef("E", row), 0)
		f.SetCellValue(SheetName, cellRef("F", row), 0)
		f.SetCellValue(SheetName, cellRef("G", row), 0)
	}
	f.SetCellStyle(SheetName, cellRef("A", row), cellRef("G", row), s.grandTotal)
	row++

	f.MergeCell(SheetName, cellRef("A", row), cellRef("G", row))
	f.SetCellValue(SheetName, cellRef("A", row),
		fmt.Sprintf("Report Generated by %s | Total items: %d | Brands: %d",
			r.Company, agg.TotalItems, agg.TotalBrands))
	f.SetCellStyle(SheetName, cellRef("A", row), cellRef("G", row), s.footer)

	return f, nil
}
