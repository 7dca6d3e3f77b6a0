// Package ingest reads an uploaded price-list workbook, resolves its lookup
// sheets, and turns the raw rows into the sorted, grouped structure the
// report renderer consumes.
package ingest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"

	"sorp/internal/catalog"
	"sorp/internal/models"
)

// Sheet names the ingester expects inside an uploaded workbook.
const (
	SheetMaster      = "Master"
	SheetCategoryMap = "CategoryMap"
	SheetWeightMap   = "WeightMap"
	SheetHDMRWeight  = "HDMRWeightMap"
	SheetMDFWeight   = "MDFWeightMap"
	SheetPlyWeight   = "PlyWeightMap"
	SheetPVCWeight   = "PVCWeightMap"
	SheetWPCWeight   = "WPCBoardWeightMap"
)

// Workbook is the parsed upload: raw line items plus the lookup tables from
// the auxiliary sheets.
type Workbook struct {
	Items      []models.LineItem
	Categories *catalog.CategoryMap
	Weights    *catalog.WeightTables
}

// Read parses an uploaded workbook. Files ending in .xls go through the
// legacy BIFF reader; everything else is treated as xlsx. Only a workbook
// whose Master sheet cannot be read at all is an error; a missing lookup
// sheet just leaves its table empty.
func Read(r io.Reader, filename string) (*Workbook, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	var sheets map[string][][]string
	if strings.HasSuffix(strings.ToLower(filename), ".xls") {
		sheets, err = readXLS(data)
	} else {
		sheets, err = readXLSX(data)
	}
	if err != nil {
		return nil, err
	}

	master, ok := sheets[SheetMaster]
	if !ok {
		return nil, fmt.Errorf("workbook has no %s sheet", SheetMaster)
	}

	wb := &Workbook{
		Items:      parseMaster(master),
		Categories: catalog.NewCategoryMap(parseCategoryMap(sheets[SheetCategoryMap])),
		Weights:    parseWeights(sheets),
	}
	return wb, nil
}

// Sample returns a minimal one-row workbook. Used as a development-mode
// stand-in when an upload cannot be read, so the rest of the pipeline stays
// exercisable without a real price list.
func Sample() *Workbook {
	return &Workbook{
		Items: []models.LineItem{{
			RawProduct:  "Door",
			Size:        "72x30",
			RawCategory: "-",
			Brand:       "Default",
			Quantity:    3,
		}},
		Categories: catalog.NewCategoryMap([]catalog.Mapping{{Keyword: "*", Category: "Default"}}),
		Weights:    catalog.NewWeightTables(),
	}
}

func readXLSX(data []byte) (map[string][][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := make(map[string][][]string)
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			continue
		}
		sheets[name] = rows
	}
	return sheets, nil
}

// readXLS handles legacy .xls uploads. The BIFF reader wants a file on disk,
// so the payload goes through a temp file first.
func readXLS(data []byte) (map[string][][]string, error) {
	tmp, err := os.CreateTemp("", "upload-*.xls")
	if err != nil {
		return nil, fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	book, err := xls.OpenFile(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}

	sheets := make(map[string][][]string)
	for i := 0; i < book.GetNumberSheets(); i++ {
		sheet, err := book.GetSheet(i)
		if err != nil || sheet == nil {
			continue
		}
		var rows [][]string
		for _, xlsRow := range sheet.GetRows() {
			var cells []string
			for _, col := range xlsRow.GetCols() {
				cells = append(cells, col.GetString())
			}
			rows = append(rows, cells)
		}
		sheets[sheet.GetName()] = rows
	}
	return sheets, nil
}

// columns maps header names to indices from a sheet's first row.
func columns(rows [][]string) map[string]int {
	idx := make(map[string]int)
	if len(rows) == 0 {
		return idx
	}
	for i, h := range rows[0] {
		idx[strings.ToUpper(strings.TrimSpace(h))] = i
	}
	return idx
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func lookup(idx map[string]int, name string) int {
	if i, ok := idx[name]; ok {
		return i
	}
	return -1
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v, err == nil
}

func parseMaster(rows [][]string) []models.LineItem {
	idx := columns(rows)
	pc, sc, cc, bc, qc := lookup(idx, "PRODUCT"), lookup(idx, "SIZE"),
		lookup(idx, "CATEGORY"), lookup(idx, "BRAND"), lookup(idx, "QUANTITY")

	var items []models.LineItem
	for _, row := range rows[min(1, len(rows)):] {
		item := models.LineItem{
			RawProduct:  cell(row, pc),
			Size:        cell(row, sc),
			RawCategory: cell(row, cc),
			Brand:       cell(row, bc),
		}
		if item.RawProduct == "" && item.Brand == "" && item.Size == "" {
			continue
		}
		// Unparseable quantities become 0, never an error.
		if q, ok := parseFloat(cell(row, qc)); ok && q > 0 {
			item.Quantity = q
		}
		items = append(items, item)
	}
	return items
}

func parseCategoryMap(rows [][]string) []catalog.Mapping {
	idx := columns(rows)
	kc, nc := lookup(idx, "MATCH KEYWORD"), lookup(idx, "NORMALIZED CATEGORY")
	var out []catalog.Mapping
	for _, row := range rows[min(1, len(rows)):] {
		k := cell(row, kc)
		if k == "" {
			continue
		}
		out = append(out, catalog.Mapping{Keyword: k, Category: cell(row, nc)})
	}
	return out
}

func parseWeights(sheets map[string][][]string) *catalog.WeightTables {
	t := catalog.NewWeightTables()

	idx := columns(sheets[SheetWeightMap])
	pc, bc, wc := lookup(idx, "PRODUCT"), lookup(idx, "BRAND"), lookup(idx, "WEIGHT_PER_PCS")
	rows := sheets[SheetWeightMap]
	for _, row := range rows[min(1, len(rows)):] {
		w, ok := parseFloat(cell(row, wc))
		if !ok {
			continue
		}
		key := catalog.BrandKey{
			Product: models.ParseProduct(cell(row, pc)),
			Brand:   strings.ToUpper(cell(row, bc)),
		}
		t.PerBrand[key] = w
	}

	thickness := func(name, weightCol string, dst map[float64]float64) {
		rows := sheets[name]
		idx := columns(rows)
		tc, wc := lookup(idx, "THICKNESS"), lookup(idx, weightCol)
		for _, row := range rows[min(1, len(rows)):] {
			th, ok1 := parseFloat(cell(row, tc))
			w, ok2 := parseFloat(cell(row, wc))
			if ok1 && ok2 {
				dst[th] = w
			}
		}
	}
	thickness(SheetHDMRWeight, "WEIGHT_PER_PCS", t.HDMR)
	thickness(SheetMDFWeight, "WEIGHT_PER_PCS", t.MDF)
	thickness(SheetPlyWeight, "WEIGHT_PER_SQFT", t.Ply)
	thickness(SheetPVCWeight, "WEIGHT_PER_SQFT", t.PVC)
	thickness(SheetWPCWeight, "WEIGHT_PER_PCS", t.WPC)
	return t
}
