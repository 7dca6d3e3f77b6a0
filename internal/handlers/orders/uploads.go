package orders

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"sorp/internal/response"
)

func allowedUpload(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xls", ".xlsx":
		return true
	}
	return false
}

// CreateUpload stores an uploaded price list and returns the upload id the
// report endpoint consumes.
func (h *Handler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		response.Err(w, "No file uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Filename == "" {
		response.Err(w, "No file selected", http.StatusBadRequest)
		return
	}
	if !allowedUpload(header.Filename) {
		response.Err(w, "Invalid file type. Upload .xls or .xlsx", http.StatusBadRequest)
		return
	}

	original := filepath.Base(header.Filename)
	uploadID := strings.ReplaceAll(uuid.New().String(), "-", "") + "_" + original

	if err := os.MkdirAll(h.App.Config.UploadDir, 0o755); err != nil {
		response.Err(w, "Upload storage unavailable", http.StatusInternalServerError)
		return
	}
	dst, err := os.Create(filepath.Join(h.App.Config.UploadDir, uploadID))
	if err != nil {
		response.Err(w, "Failed to store upload", http.StatusInternalServerError)
		return
	}
	size, err := io.Copy(dst, file)
	dst.Close()
	if err != nil {
		os.Remove(dst.Name())
		response.Err(w, "Failed to store upload", http.StatusInternalServerError)
		return
	}

	response.JSON(w, map[string]interface{}{
		"upload_id":   uploadID,
		"filename":    original,
		"size_bytes":  size,
		"uploaded_at": time.Now().Format(time.RFC3339),
	})
}

// DeleteUpload removes a stored upload that will not be turned into a report.
func (h *Handler) DeleteUpload(w http.ResponseWriter, r *http.Request, uploadID string) {
	if uploadID == "" || rejectPathTraversal(uploadID) {
		response.Err(w, "Invalid upload_id", http.StatusBadRequest)
		return
	}
	path := filepath.Join(h.App.Config.UploadDir, uploadID)
	if _, err := os.Stat(path); err != nil {
		response.Err(w, "Upload not found", http.StatusNotFound)
		return
	}
	if err := os.Remove(path); err != nil {
		response.Err(w, "Failed to delete upload", http.StatusInternalServerError)
		return
	}
	response.JSON(w, map[string]string{"upload_id": uploadID})
}
