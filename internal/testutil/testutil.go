// Package testutil holds shared helpers for package tests: an in-memory
// database with the full schema, seeded users, authenticated requests and
// envelope decoding.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"sorp/internal/audit"
	"sorp/internal/auth"
	"sorp/internal/config"
	"sorp/internal/models"
	"sorp/internal/orderid"
	"sorp/internal/report"
	"sorp/internal/server"
	"sorp/internal/store"
	"sorp/internal/websocket"
)

var dbSeq int64

// SetupTestDB opens a fresh in-memory database with the full schema.
// Each call gets its own database, so parallel tests stay isolated.
func SetupTestDB(t *testing.T) *store.DB {
	t.Helper()
	name := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	db, err := store.Open("", name)
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate test DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestConfig returns the configuration used by handler tests.
func TestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.JWTSecret = "test-secret"
	cfg.UploadDir = t.TempDir()
	cfg.ReportDir = t.TempDir()
	cfg.AdminUsers = []string{"admin"}
	return cfg
}

// SetupApp wires a complete App against an in-memory database.
func SetupApp(t *testing.T) *server.App {
	t.Helper()
	db := SetupTestDB(t)
	cfg := TestConfig(t)
	hub := websocket.NewHub()
	auditLog := audit.NewLogger(db, hub)
	alloc := orderid.NewAllocator(db)
	return &server.App{
		Config: cfg,
		DB:     db,
		Auth:   auth.NewService(db, cfg.JWTSecret, time.Hour),
		Audit:  auditLog,
		Alloc:  alloc,
		Hub:    hub,
		Generator: &report.Generator{
			Alloc:     alloc,
			Audit:     auditLog,
			Renderer:  report.NewRenderer(cfg.CompanyName),
			ReportDir: cfg.ReportDir,
		},
	}
}

// CreateTestUser inserts a user with a real bcrypt hash.
func CreateTestUser(t *testing.T, db *store.DB, username, password, role string) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	_, err = db.Exec(db.Rebind(
		`INSERT INTO users (username, password_hash, display_name, role, active) VALUES (?, ?, ?, ?, 1)`),
		username, hash, username, role)
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
}

// Login creates the user if needed and returns a valid bearer token.
func Login(t *testing.T, app *server.App, username, password string) string {
	t.Helper()
	var n int
	app.DB.QueryRow(app.DB.Rebind(`SELECT COUNT(*) FROM users WHERE username = ?`), username).Scan(&n)
	if n == 0 {
		role := "user"
		if app.Config.IsAdmin(username) {
			role = "admin"
		}
		CreateTestUser(t, app.DB, username, password, role)
	}
	res, err := app.Auth.Login(t.Context(), username, password, "127.0.0.1", "testutil")
	if err != nil {
		t.Fatalf("Failed to log in as %s: %v", username, err)
	}
	return res.Token
}

// AuthedRequest builds a request carrying the bearer token.
func AuthedRequest(method, path string, body []byte, token string) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// AuthedJSONRequest builds an authenticated request with a JSON body.
func AuthedJSONRequest(method, path string, body interface{}, token string) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}
	req := AuthedRequest(method, path, bodyBytes, token)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AssertStatus checks the response status code.
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// DecodeEnvelope unwraps the API envelope and decodes the data field.
func DecodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode API envelope: %v", err)
	}
	dataBytes, _ := json.Marshal(resp.Data)
	if err := json.Unmarshal(dataBytes, v); err != nil {
		t.Fatalf("Failed to decode data from envelope: %v", err)
	}
}

// PriceListRow is one Master sheet row for BuildPriceList.
type PriceListRow struct {
	Product  string
	Size     string
	Category string
	Brand    string
	Quantity float64
}

// BuildPriceList renders a minimal uploadable workbook: a Master sheet with
// the given rows plus a small category and laminate weight map.
func BuildPriceList(t *testing.T, rows []PriceListRow) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", "Master")
	headers := []string{"PRODUCT", "SIZE", "CATEGORY", "BRAND", "QUANTITY"}
	for i, hd := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue("Master", cell, hd)
	}
	for ri, row := range rows {
		vals := []interface{}{row.Product, row.Size, row.Category, row.Brand, row.Quantity}
		for ci, v := range vals {
			cell, _ := excelize.CoordinatesToCellName(ci+1, ri+2)
			f.SetCellValue("Master", cell, v)
		}
	}

	f.NewSheet("CategoryMap")
	f.SetCellValue("CategoryMap", "A1", "MATCH KEYWORD")
	f.SetCellValue("CategoryMap", "B1", "NORMALIZED CATEGORY")
	f.SetCellValue("CategoryMap", "A2", "SF")
	f.SetCellValue("CategoryMap", "B2", "SF CATEGORY")
	f.SetCellValue("CategoryMap", "A3", "HG")
	f.SetCellValue("CategoryMap", "B3", "HG CATEGORY")
	f.SetCellValue("CategoryMap", "A4", "*")
	f.SetCellValue("CategoryMap", "B4", "OTHER CATEGORY")

	f.NewSheet("WeightMap")
	f.SetCellValue("WeightMap", "A1", "PRODUCT")
	f.SetCellValue("WeightMap", "B1", "BRAND")
	f.SetCellValue("WeightMap", "C1", "WEIGHT_PER_PCS")
	f.SetCellValue("WeightMap", "A2", "Laminate")
	f.SetCellValue("WeightMap", "B2", "DEFAULT")
	f.SetCellValue("WeightMap", "C2", 2.5)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Failed to build price list: %v", err)
	}
	return buf.Bytes()
}
