package orders_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"sorp/internal/handlers/orders"
	"sorp/internal/models"
	"sorp/internal/server"
	"sorp/internal/testutil"
)

func setup(t *testing.T) (*server.App, *orders.Handler) {
	t.Helper()
	app := testutil.SetupApp(t)
	return app, orders.NewHandler(app)
}

// asUser attaches the request context the auth middleware would set.
func asUser(r *http.Request, username string, admin bool) *http.Request {
	ctx := context.WithValue(r.Context(), server.CtxUsername, username)
	ctx = context.WithValue(ctx, server.CtxIsAdmin, admin)
	return r.WithContext(ctx)
}

func TestLoginEndpoint(t *testing.T) {
	app, h := setup(t)
	testutil.CreateTestUser(t, app.DB, "alice", "correct-horse", "user")

	w := httptest.NewRecorder()
	h.Login(w, testutil.AuthedJSONRequest("POST", "/api/v1/auth/login",
		map[string]string{"username": "alice", "password": "correct-horse"}, ""))
	testutil.AssertStatus(t, w, http.StatusOK)

	var body struct {
		Token    string `json:"token"`
		Username string `json:"username"`
		IsAdmin  bool   `json:"is_admin"`
	}
	testutil.DecodeEnvelope(t, w, &body)
	if body.Token == "" || body.Username != "alice" || body.IsAdmin {
		t.Errorf("unexpected login body: %+v", body)
	}

	w = httptest.NewRecorder()
	h.Login(w, testutil.AuthedJSONRequest("POST", "/api/v1/auth/login",
		map[string]string{"username": "alice", "password": "wrong"}, ""))
	testutil.AssertStatus(t, w, http.StatusUnauthorized)

	w = httptest.NewRecorder()
	h.Login(w, testutil.AuthedJSONRequest("POST", "/api/v1/auth/login",
		map[string]string{"username": "", "password": ""}, ""))
	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func uploadRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(content)
	mw.Close()

	req := httptest.NewRequest("POST", "/api/v1/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadLifecycle(t *testing.T) {
	app, h := setup(t)
	data := testutil.BuildPriceList(t, []testutil.PriceListRow{
		{Product: "Door", Size: "72x30", Category: "Flush", Brand: "Alpha", Quantity: 2},
	})

	w := httptest.NewRecorder()
	h.CreateUpload(w, asUser(uploadRequest(t, "file", "list.xlsx", data), "alice", false))
	testutil.AssertStatus(t, w, http.StatusOK)

	var body struct {
		UploadID string `json:"upload_id"`
	}
	testutil.DecodeEnvelope(t, w, &body)
	if body.UploadID == "" {
		t.Fatal("no upload_id returned")
	}
	if _, err := os.Stat(filepath.Join(app.Config.UploadDir, body.UploadID)); err != nil {
		t.Fatalf("upload not on disk: %v", err)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest("DELETE", "/api/v1/uploads/"+body.UploadID, nil)
	h.DeleteUpload(w, asUser(req, "alice", false), body.UploadID)
	testutil.AssertStatus(t, w, http.StatusOK)
	if _, err := os.Stat(filepath.Join(app.Config.UploadDir, body.UploadID)); !os.IsNotExist(err) {
		t.Error("upload still on disk after delete")
	}
}

func TestUploadRejectsBadExtensionAndTraversal(t *testing.T) {
	_, h := setup(t)

	w := httptest.NewRecorder()
	h.CreateUpload(w, asUser(uploadRequest(t, "file", "notes.txt", []byte("x")), "alice", false))
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	for _, id := range []string{"../secret.xlsx", "a/b.xlsx", `a\b.xlsx`} {
		w = httptest.NewRecorder()
		req := httptest.NewRequest("DELETE", "/api/v1/uploads/x", nil)
		h.DeleteUpload(w, asUser(req, "alice", false), id)
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	}
}

func generateUpload(t *testing.T, app *server.App, h *orders.Handler) string {
	t.Helper()
	data := testutil.BuildPriceList(t, []testutil.PriceListRow{
		{Product: "Door", Size: "72x30", Category: "Flush", Brand: "Alpha", Quantity: 2},
		{Product: "Laminate", Size: "8x4", Category: "SF Gloss", Brand: "DEFAULT", Quantity: 5},
	})
	w := httptest.NewRecorder()
	h.CreateUpload(w, asUser(uploadRequest(t, "file", "list.xlsx", data), "alice", false))
	testutil.AssertStatus(t, w, http.StatusOK)
	var body struct {
		UploadID string `json:"upload_id"`
	}
	testutil.DecodeEnvelope(t, w, &body)
	return body.UploadID
}

func TestGenerateReportEndpoint(t *testing.T) {
	app, h := setup(t)
	uploadID := generateUpload(t, app, h)

	w := httptest.NewRecorder()
	req := testutil.AuthedJSONRequest("POST", "/api/v1/reports", map[string]interface{}{
		"upload_id":   uploadID,
		"dealer_name": "Sharma Traders",
		"city":        "Pune",
		"order_date":  "2025-03-05",
	}, "")
	h.GenerateReport(w, asUser(req, "alice", false))
	testutil.AssertStatus(t, w, http.StatusOK)

	var res struct {
		OrderID    string `json:"order_id"`
		ReportName string `json:"report_name"`
	}
	testutil.DecodeEnvelope(t, w, &res)
	if res.OrderID == "" || res.ReportName == "" {
		t.Fatalf("incomplete result: %+v", res)
	}

	// The upload is consumed by generation.
	if _, err := os.Stat(filepath.Join(app.Config.UploadDir, uploadID)); !os.IsNotExist(err) {
		t.Error("upload still present after generation")
	}

	// The report downloads with an attachment disposition.
	w = httptest.NewRecorder()
	dl := httptest.NewRequest("GET", "/api/v1/reports/"+res.ReportName, nil)
	h.DownloadReport(w, asUser(dl, "alice", false), res.ReportName)
	testutil.AssertStatus(t, w, http.StatusOK)
	if cd := w.Header().Get("Content-Disposition"); cd == "" {
		t.Error("missing Content-Disposition")
	}
}

func TestGenerateReportValidation(t *testing.T) {
	_, h := setup(t)

	// Missing upload.
	w := httptest.NewRecorder()
	req := testutil.AuthedJSONRequest("POST", "/api/v1/reports", map[string]interface{}{
		"upload_id": "nope.xlsx", "dealer_name": "D", "city": "C",
	}, "")
	h.GenerateReport(w, asUser(req, "alice", false))
	testutil.AssertStatus(t, w, http.StatusNotFound)

	// Bad date format.
	w = httptest.NewRecorder()
	req = testutil.AuthedJSONRequest("POST", "/api/v1/reports", map[string]interface{}{
		"upload_id": "x.xlsx", "dealer_name": "D", "city": "C", "order_date": "05-03-2025",
	}, "")
	h.GenerateReport(w, asUser(req, "alice", false))
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	// Traversal in upload_id.
	w = httptest.NewRecorder()
	req = testutil.AuthedJSONRequest("POST", "/api/v1/reports", map[string]interface{}{
		"upload_id": "../x.xlsx", "dealer_name": "D", "city": "C",
	}, "")
	h.GenerateReport(w, asUser(req, "alice", false))
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	// Traversal in download name.
	w = httptest.NewRecorder()
	dl := httptest.NewRequest("GET", "/api/v1/reports/x", nil)
	h.DownloadReport(w, asUser(dl, "alice", false), "../../etc/passwd")
	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func seedOrder(t *testing.T, app *server.App, username, dealer, city, orderID string) {
	t.Helper()
	_, err := app.DB.Exec(app.DB.Rebind(
		`INSERT INTO sale_orders (username, dealer_name, city, order_id, report_name, generated_at, order_type)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		username, dealer, city, orderID, "r.xlsx", "2025-03-05 10:00:00", "new")
	if err != nil {
		t.Fatal(err)
	}
}

func TestListOrdersScopedToCaller(t *testing.T) {
	app, h := setup(t)
	seedOrder(t, app, "alice", "Sharma Traders", "Pune", "03-25-00001")
	seedOrder(t, app, "bob", "Verma Timber", "Delhi", "03-25-00002")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/orders", nil)
	h.ListOrders(w, asUser(req, "alice", false))
	testutil.AssertStatus(t, w, http.StatusOK)

	var got []models.SaleOrderRecord
	testutil.DecodeEnvelope(t, w, &got)
	if len(got) != 1 || got[0].Username != "alice" {
		t.Errorf("alice sees %+v", got)
	}
}

func TestGetOrderOwnership(t *testing.T) {
	app, h := setup(t)
	seedOrder(t, app, "alice", "Sharma Traders", "Pune", "03-25-00001")

	var id string
	if err := app.DB.QueryRow(`SELECT id FROM sale_orders LIMIT 1`).Scan(&id); err != nil {
		t.Fatal(err)
	}

	// Another user is refused, an admin is not.
	w := httptest.NewRecorder()
	h.GetOrder(w, asUser(httptest.NewRequest("GET", "/api/v1/orders/"+id, nil), "bob", false), id)
	testutil.AssertStatus(t, w, http.StatusForbidden)

	w = httptest.NewRecorder()
	h.GetOrder(w, asUser(httptest.NewRequest("GET", "/api/v1/orders/"+id, nil), "bob", true), id)
	testutil.AssertStatus(t, w, http.StatusOK)

	w = httptest.NewRecorder()
	h.GetOrder(w, asUser(httptest.NewRequest("GET", "/api/v1/orders/99999", nil), "alice", false), "99999")
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestSearchOrdersMinQuery(t *testing.T) {
	app, h := setup(t)
	seedOrder(t, app, "alice", "Sharma Traders", "Pune", "03-25-00001")

	w := httptest.NewRecorder()
	h.SearchOrders(w, asUser(httptest.NewRequest("GET", "/api/v1/orders/search?q=S", nil), "alice", false))
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	w = httptest.NewRecorder()
	h.SearchOrders(w, asUser(httptest.NewRequest("GET", "/api/v1/orders/search?q=Sharma", nil), "alice", false))
	testutil.AssertStatus(t, w, http.StatusOK)
	var got []models.SaleOrderRecord
	testutil.DecodeEnvelope(t, w, &got)
	if len(got) != 1 {
		t.Errorf("search matched %d rows, want 1", len(got))
	}
}

func TestIssueIDEndpoint(t *testing.T) {
	_, h := setup(t)

	issue := func(orderID string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := testutil.AuthedJSONRequest("POST", "/api/v1/issued-ids", map[string]string{
			"order_id": orderID, "given_to_name": "Walk-in", "dealer_name": "D", "city": "C",
		}, "")
		h.IssueID(w, asUser(req, "admin", true))
		return w
	}

	testutil.AssertStatus(t, issue("03-25-00009"), http.StatusOK)
	// Same id again conflicts.
	testutil.AssertStatus(t, issue("03-25-00009"), http.StatusConflict)
	// Malformed id is rejected up front.
	testutil.AssertStatus(t, issue("2025-03-9"), http.StatusBadRequest)

	w := httptest.NewRecorder()
	h.ListIssuedIDs(w, asUser(httptest.NewRequest("GET", "/api/v1/issued-ids", nil), "admin", true))
	testutil.AssertStatus(t, w, http.StatusOK)
	var got []models.IssuedOrderID
	testutil.DecodeEnvelope(t, w, &got)
	if len(got) != 1 {
		t.Errorf("issued ids = %d, want 1", len(got))
	}
}

func TestOrderIDStatusEndpoint(t *testing.T) {
	app, h := setup(t)
	seedOrder(t, app, "alice", "Sharma Traders", "Pune", "03-25-00001")

	w := httptest.NewRecorder()
	h.OrderIDStatus(w, asUser(httptest.NewRequest("GET", "/api/v1/order-ids/status", nil), "alice", false))
	testutil.AssertStatus(t, w, http.StatusOK)

	var got struct {
		Latest    string                  `json:"latest_order_id"`
		Suggested string                  `json:"suggested_next_id"`
		Recent    []models.SaleOrderRecord `json:"recent_orders"`
	}
	testutil.DecodeEnvelope(t, w, &got)
	if got.Latest != "03-25-00001" {
		t.Errorf("latest = %q, want 03-25-00001", got.Latest)
	}
	if got.Suggested == "" || len(got.Recent) != 1 {
		t.Errorf("unexpected status body: %+v", got)
	}

	// The view was audited.
	var views int
	if err := app.DB.QueryRow(`SELECT COUNT(*) FROM order_id_views`).Scan(&views); err != nil {
		t.Fatal(err)
	}
	if views != 1 {
		t.Errorf("order id views = %d, want 1", views)
	}
}

func TestDashboardEndpoints(t *testing.T) {
	app, h := setup(t)
	seedOrder(t, app, "alice", "Sharma Traders", "Pune", "03-25-00001")

	w := httptest.NewRecorder()
	h.DashboardStats(w, asUser(httptest.NewRequest("GET", "/api/v1/dashboard/stats", nil), "alice", false))
	testutil.AssertStatus(t, w, http.StatusOK)

	w = httptest.NewRecorder()
	h.ChartData(w, asUser(httptest.NewRequest("GET", "/api/v1/dashboard/chart-data?type=monthly", nil), "alice", false))
	testutil.AssertStatus(t, w, http.StatusOK)
}

func TestExportOrdersCSV(t *testing.T) {
	app, h := setup(t)
	seedOrder(t, app, "alice", "Sharma Traders", "Pune", "03-25-00001")

	w := httptest.NewRecorder()
	h.ExportOrders(w, asUser(httptest.NewRequest("GET", "/api/v1/orders/export?format=csv", nil), "alice", false))
	testutil.AssertStatus(t, w, http.StatusOK)
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %q, want text/csv", ct)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("03-25-00001")) {
		t.Error("csv export missing the order row")
	}

	w = httptest.NewRecorder()
	h.ExportOrders(w, asUser(httptest.NewRequest("GET", "/api/v1/orders/export?format=bogus", nil), "alice", false))
	testutil.AssertStatus(t, w, http.StatusBadRequest)
}
