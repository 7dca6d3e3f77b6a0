package admin_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"sorp/internal/handlers/admin"
	"sorp/internal/models"
	"sorp/internal/server"
	"sorp/internal/testutil"
)

func setup(t *testing.T) (*server.App, *admin.Handler) {
	t.Helper()
	app := testutil.SetupApp(t)
	return app, admin.NewHandler(app)
}

func asAdmin(r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), server.CtxUsername, "admin")
	ctx = context.WithValue(ctx, server.CtxIsAdmin, true)
	return r.WithContext(ctx)
}

func userID(t *testing.T, app *server.App, username string) string {
	t.Helper()
	var id int
	err := app.DB.QueryRow(app.DB.Rebind(`SELECT id FROM users WHERE username = ?`), username).Scan(&id)
	if err != nil {
		t.Fatalf("lookup %s: %v", username, err)
	}
	return strconv.Itoa(id)
}

func TestUserLifecycle(t *testing.T) {
	app, h := setup(t)
	testutil.CreateTestUser(t, app.DB, "admin", "admin-pass", "admin")

	// Create.
	w := httptest.NewRecorder()
	h.CreateUser(w, asAdmin(testutil.AuthedJSONRequest("POST", "/api/v1/admin/users", map[string]string{
		"username": "carol", "password": "long-enough-pw", "display_name": "Carol", "role": "user",
	}, "")))
	testutil.AssertStatus(t, w, http.StatusCreated)

	// Duplicate username conflicts.
	w = httptest.NewRecorder()
	h.CreateUser(w, asAdmin(testutil.AuthedJSONRequest("POST", "/api/v1/admin/users", map[string]string{
		"username": "carol", "password": "long-enough-pw",
	}, "")))
	testutil.AssertStatus(t, w, http.StatusConflict)

	// Short password is rejected.
	w = httptest.NewRecorder()
	h.CreateUser(w, asAdmin(testutil.AuthedJSONRequest("POST", "/api/v1/admin/users", map[string]string{
		"username": "dave", "password": "short",
	}, "")))
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	// List includes both accounts.
	w = httptest.NewRecorder()
	h.ListUsers(w, asAdmin(httptest.NewRequest("GET", "/api/v1/admin/users", nil)))
	testutil.AssertStatus(t, w, http.StatusOK)
	var users []admin.UserFull
	testutil.DecodeEnvelope(t, w, &users)
	if len(users) != 2 {
		t.Fatalf("users = %d, want 2", len(users))
	}

	// Update role.
	id := userID(t, app, "carol")
	w = httptest.NewRecorder()
	h.UpdateUser(w, asAdmin(testutil.AuthedJSONRequest("PUT", "/api/v1/admin/users/"+id, map[string]interface{}{
		"display_name": "Carol B", "role": "admin",
	}, "")), id)
	testutil.AssertStatus(t, w, http.StatusOK)

	// Delete.
	w = httptest.NewRecorder()
	h.DeleteUser(w, asAdmin(httptest.NewRequest("DELETE", "/api/v1/admin/users/"+id, nil)), id)
	testutil.AssertStatus(t, w, http.StatusOK)

	w = httptest.NewRecorder()
	h.DeleteUser(w, asAdmin(httptest.NewRequest("DELETE", "/api/v1/admin/users/"+id, nil)), id)
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestAdminCannotRemoveSelf(t *testing.T) {
	app, h := setup(t)
	testutil.CreateTestUser(t, app.DB, "admin", "admin-pass", "admin")
	id := userID(t, app, "admin")

	w := httptest.NewRecorder()
	h.DeleteUser(w, asAdmin(httptest.NewRequest("DELETE", "/api/v1/admin/users/"+id, nil)), id)
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	zero := 0
	w = httptest.NewRecorder()
	h.UpdateUser(w, asAdmin(testutil.AuthedJSONRequest("PUT", "/api/v1/admin/users/"+id, map[string]interface{}{
		"role": "admin", "active": &zero,
	}, "")), id)
	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func TestResetPasswordRevokesSession(t *testing.T) {
	app, h := setup(t)
	token := testutil.Login(t, app, "carol", "old-password-1")
	id := userID(t, app, "carol")

	w := httptest.NewRecorder()
	h.ResetPassword(w, asAdmin(testutil.AuthedJSONRequest("PUT", "/api/v1/admin/users/"+id+"/password",
		map[string]string{"password": "new-password-1"}, "")), id)
	testutil.AssertStatus(t, w, http.StatusOK)

	if _, err := app.Auth.Validate(t.Context(), token); err == nil {
		t.Error("old session still valid after password reset")
	}
	if _, err := app.Auth.Login(t.Context(), "carol", "new-password-1", "", ""); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

func TestSessionControl(t *testing.T) {
	app, h := setup(t)
	aliceToken := testutil.Login(t, app, "alice", "password-one")
	bobToken := testutil.Login(t, app, "bob", "password-two")

	w := httptest.NewRecorder()
	h.ListSessions(w, asAdmin(httptest.NewRequest("GET", "/api/v1/admin/sessions", nil)))
	testutil.AssertStatus(t, w, http.StatusOK)
	var sessions []models.Session
	testutil.DecodeEnvelope(t, w, &sessions)
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}

	// Revoke one user.
	w = httptest.NewRecorder()
	h.RevokeSession(w, asAdmin(httptest.NewRequest("DELETE", "/api/v1/admin/sessions/alice", nil)), "alice")
	testutil.AssertStatus(t, w, http.StatusOK)
	if _, err := app.Auth.Validate(t.Context(), aliceToken); err == nil {
		t.Error("alice's token survived revocation")
	}
	if _, err := app.Auth.Validate(t.Context(), bobToken); err != nil {
		t.Errorf("bob's token was collaterally revoked: %v", err)
	}

	// Revoke everyone.
	w = httptest.NewRecorder()
	h.RevokeAllSessions(w, asAdmin(httptest.NewRequest("DELETE", "/api/v1/admin/sessions", nil)))
	testutil.AssertStatus(t, w, http.StatusOK)
	if _, err := app.Auth.Validate(t.Context(), bobToken); err == nil {
		t.Error("bob's token survived revoke-all")
	}
}

func TestOverviewAndLogs(t *testing.T) {
	app, h := setup(t)
	testutil.Login(t, app, "alice", "password-one")
	_, err := app.DB.Exec(app.DB.Rebind(
		`INSERT INTO sale_orders (username, dealer_name, city, order_id, report_name, generated_at, order_type)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		"alice", "Sharma Traders", "Pune", "03-25-00001", "r.xlsx", "2025-03-05 10:00:00", "new")
	if err != nil {
		t.Fatal(err)
	}
	app.Audit.LogOrderIDView(t.Context(), "alice", "03-25-00001", "127.0.0.1", "test")

	w := httptest.NewRecorder()
	h.Overview(w, asAdmin(httptest.NewRequest("GET", "/api/v1/admin/overview", nil)))
	testutil.AssertStatus(t, w, http.StatusOK)

	var overview struct {
		RecentOrders   []models.SaleOrderRecord `json:"recent_orders"`
		ActiveSessions []models.Session         `json:"active_sessions"`
	}
	testutil.DecodeEnvelope(t, w, &overview)
	if len(overview.RecentOrders) != 1 || len(overview.ActiveSessions) != 1 {
		t.Errorf("overview = %+v", overview)
	}

	w = httptest.NewRecorder()
	h.Logs(w, asAdmin(httptest.NewRequest("GET", "/api/v1/admin/logs", nil)))
	testutil.AssertStatus(t, w, http.StatusOK)

	w = httptest.NewRecorder()
	h.ListAllOrders(w, asAdmin(httptest.NewRequest("GET", "/api/v1/admin/orders?username=alice", nil)))
	testutil.AssertStatus(t, w, http.StatusOK)
	var got []models.SaleOrderRecord
	testutil.DecodeEnvelope(t, w, &got)
	if len(got) != 1 {
		t.Errorf("admin orders = %d, want 1", len(got))
	}
}
