package orders

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sorp/internal/report"
	"sorp/internal/response"
	"sorp/internal/server"
)

type generateRequest struct {
	UploadID          string `json:"upload_id"`
	DealerName        string `json:"dealer_name"`
	City              string `json:"city"`
	OrderDate         string `json:"order_date"` // YYYY-MM-DD
	FreightCondition  string `json:"freight_condition"`
	CustomOrderID     string `json:"custom_order_id"`
	IsAdditionalOrder bool   `json:"is_additional_order"`
}

// GenerateReport runs the full pipeline for one uploaded price list and
// returns the allocated order id and report file name.
func (h *Handler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.UploadID = strings.TrimSpace(req.UploadID)
	req.DealerName = strings.TrimSpace(req.DealerName)
	req.City = strings.TrimSpace(req.City)
	req.CustomOrderID = strings.TrimSpace(req.CustomOrderID)

	if req.UploadID == "" {
		response.Err(w, "upload_id is required", http.StatusBadRequest)
		return
	}
	if rejectPathTraversal(req.UploadID) {
		response.Err(w, "Invalid upload_id", http.StatusBadRequest)
		return
	}
	if req.DealerName == "" || req.City == "" {
		response.Err(w, "dealer_name and city are required", http.StatusBadRequest)
		return
	}

	orderDate := ""
	if req.OrderDate != "" {
		parsed, err := time.Parse("2006-01-02", req.OrderDate)
		if err != nil {
			response.Err(w, "Invalid order_date (expected YYYY-MM-DD)", http.StatusBadRequest)
			return
		}
		orderDate = parsed.Format("02-01-2006")
	}

	uploadPath := filepath.Join(h.App.Config.UploadDir, req.UploadID)
	upload, err := os.Open(uploadPath)
	if err != nil {
		response.Err(w, "Upload not found", http.StatusNotFound)
		return
	}
	defer upload.Close()
	// The upload is consumed by generation, successful or not.
	defer os.Remove(uploadPath)

	result, err := h.App.Generator.Generate(r.Context(), report.Request{
		Upload:        upload,
		Filename:      req.UploadID,
		CustomOrderID: req.CustomOrderID,
		Additional:    req.IsAdditionalOrder,
		Meta: report.Meta{
			Username:   server.Username(r),
			DealerName: req.DealerName,
			City:       req.City,
			OrderDate:  orderDate,
			Freight:    req.FreightCondition,
		},
	})
	if err != nil {
		var se *report.StageError
		if errors.As(err, &se) {
			switch se.Stage {
			case report.StageIngest:
				response.ErrCode(w, "Could not read the uploaded workbook", "INGEST_FAILED", http.StatusUnprocessableEntity)
			case report.StageAllocate:
				response.ErrCode(w, "Order id allocation failed, please retry", "ALLOCATION_FAILED", http.StatusServiceUnavailable)
			default:
				response.ErrCode(w, "Report rendering failed", "RENDER_FAILED", http.StatusInternalServerError)
			}
			return
		}
		response.Err(w, "Report generation failed", http.StatusInternalServerError)
		return
	}
	response.JSON(w, result)
}

// DownloadReport serves a generated report file.
func (h *Handler) DownloadReport(w http.ResponseWriter, r *http.Request, reportName string) {
	if reportName == "" || rejectPathTraversal(reportName) {
		response.Err(w, "Invalid report_name", http.StatusBadRequest)
		return
	}
	path := filepath.Join(h.App.Config.ReportDir, reportName)
	if _, err := os.Stat(path); err != nil {
		response.Err(w, "Report not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+reportName+`"`)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	http.ServeFile(w, r, path)
}
