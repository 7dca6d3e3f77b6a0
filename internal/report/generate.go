package report

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"sorp/internal/audit"
	"sorp/internal/ingest"
	"sorp/internal/models"
	"sorp/internal/orderid"
)

// Generator runs the full pipeline for one report: read the upload,
// aggregate, allocate an order id, render the workbook to disk, and append
// the audit record.
type Generator struct {
	Alloc     *orderid.Allocator
	Audit     *audit.Logger
	Renderer  *Renderer
	ReportDir string

	// DevMode substitutes sample data for an unreadable upload instead of
	// failing, so the pipeline stays testable without real price lists.
	DevMode bool
}

// Request carries one generation request through the pipeline.
type Request struct {
	Upload   io.Reader
	Filename string
	Meta     Meta

	// CustomOrderID skips counter allocation and marks the order additional.
	CustomOrderID string
	Additional    bool
}

// Result is returned to the caller on success.
type Result struct {
	OrderID    string `json:"order_id"`
	ReportName string `json:"report_name"`
}

var unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// ReportName builds a filesystem-safe report file name from the dealer name.
func ReportName(dealer, suffix string, now time.Time) string {
	prefix := strings.Trim(unsafeNameRe.ReplaceAllString(dealer, "_"), "_")
	if prefix == "" {
		prefix = "REPORT"
	}
	return prefix + "_" + now.Format("20060102_150405") + "_" + suffix + ".xlsx"
}

// Generate runs the pipeline. Failures carry the stage they happened in; an
// audit failure is logged and swallowed, the report is still returned.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	wb, err := ingest.Read(req.Upload, req.Filename)
	if err != nil {
		if !g.DevMode {
			return nil, &StageError{Stage: StageIngest, Err: err}
		}
		log.Printf("report: unreadable upload, using sample data: %v", err)
		wb = ingest.Sample()
	}
	agg := ingest.Aggregate(wb)

	now := time.Now()
	orderID := req.CustomOrderID
	additional := req.Additional || req.CustomOrderID != ""
	if orderID == "" {
		orderID, err = g.Alloc.Next(ctx, now)
		if err != nil {
			return nil, &StageError{Stage: StageAllocate, Err: err}
		}
	}

	orderType := models.OrderTypeNew
	suffix := "SALE_ORDER"
	if additional {
		orderType = models.OrderTypeAdditional
		suffix = "ADDITIONAL_ORDER"
	}
	meta := req.Meta
	meta.OrderType = orderType

	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: StageRender, Err: err}
	}

	name := ReportName(meta.DealerName, suffix, now)
	f, err := g.Renderer.Render(agg, orderID, meta, now.Format("02-01-2006-15:04"))
	if err != nil {
		return nil, &StageError{Stage: StageRender, Err: err}
	}
	defer f.Close()
	if err := f.SaveAs(filepath.Join(g.ReportDir, name)); err != nil {
		return nil, &StageError{Stage: StageRender, Err: err}
	}

	if err := g.Audit.LogSaleOrder(ctx, models.SaleOrderRecord{
		Username:   meta.Username,
		DealerName: meta.DealerName,
		City:       meta.City,
		OrderID:    orderID,
		ReportName: name,
		OrderType:  orderType,
	}); err != nil {
		log.Printf("report: audit log error for %s: %v", orderID, err)
	}

	return &Result{OrderID: orderID, ReportName: name}, nil
}
