package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"sorp/internal/audit"
	"sorp/internal/auth"
	"sorp/internal/config"
	"sorp/internal/handlers/admin"
	"sorp/internal/handlers/orders"
	"sorp/internal/orderid"
	"sorp/internal/report"
	"sorp/internal/response"
	"sorp/internal/server"
	"sorp/internal/store"
	"sorp/internal/websocket"
)

func main() {
	configPath := flag.String("config", "sorp.yaml", "Path to YAML config file")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	dbFile := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Config load failed:", err)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbFile != "" {
		cfg.DatabaseFile = *dbFile
	}

	db, err := store.Open(cfg.DatabaseURL, cfg.DatabaseFile)
	if err != nil {
		log.Fatal("DB open failed:", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		log.Fatal("DB migrate failed:", err)
	}

	for _, dir := range []string{cfg.UploadDir, cfg.ReportDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal("Create dir failed:", err)
		}
	}

	hub := websocket.NewHub()
	authSvc := auth.NewService(db, cfg.JWTSecret, time.Duration(cfg.JWTExpiry)*time.Second)
	auditLog := audit.NewLogger(db, hub)
	alloc := orderid.NewAllocator(db)

	app := &server.App{
		Config: cfg,
		DB:     db,
		Auth:   authSvc,
		Audit:  auditLog,
		Alloc:  alloc,
		Hub:    hub,
		Generator: &report.Generator{
			Alloc:     alloc,
			Audit:     auditLog,
			Renderer:  report.NewRenderer(cfg.CompanyName),
			ReportDir: cfg.ReportDir,
			DevMode:   cfg.DevMode,
		},
	}

	// First-run bootstrap so the admin panel is reachable on a fresh database.
	if pw := os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"); pw != "" {
		for _, username := range cfg.AdminUsers {
			if err := authSvc.EnsureUser(context.Background(), username, pw, "admin"); err != nil {
				log.Printf("Bootstrap user %s: %v", username, err)
			}
		}
	}

	oh := orders.NewHandler(app)
	ah := admin.NewHandler(app)

	mux := http.NewServeMux()

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.Serve(hub, w, r)
	})

	mux.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/")
		path = strings.TrimSuffix(path, "/")
		parts := strings.Split(path, "/")

		switch {
		// Health
		case path == "health" && r.Method == "GET":
			response.JSON(w, map[string]string{"status": "ok"})

		// Auth
		case path == "auth/login" && r.Method == "POST":
			oh.Login(w, r)
		case path == "auth/logout" && r.Method == "POST":
			oh.Logout(w, r)
		case path == "auth/me" && r.Method == "GET":
			oh.Me(w, r)

		// Uploads
		case parts[0] == "uploads" && len(parts) == 1 && r.Method == "POST":
			oh.CreateUpload(w, r)
		case parts[0] == "uploads" && len(parts) == 2 && r.Method == "DELETE":
			oh.DeleteUpload(w, r, parts[1])

		// Reports
		case parts[0] == "reports" && len(parts) == 1 && r.Method == "POST":
			oh.GenerateReport(w, r)
		case parts[0] == "reports" && len(parts) == 2 && r.Method == "GET":
			oh.DownloadReport(w, r, parts[1])

		// Orders
		case parts[0] == "orders" && len(parts) == 1 && r.Method == "GET":
			oh.ListOrders(w, r)
		case path == "orders/search" && r.Method == "GET":
			oh.SearchOrders(w, r)
		case path == "orders/export" && r.Method == "GET":
			oh.ExportOrders(w, r)
		case parts[0] == "orders" && len(parts) == 2 && r.Method == "GET":
			oh.GetOrder(w, r, parts[1])

		// Order ids
		case path == "order-ids/status" && r.Method == "GET":
			oh.OrderIDStatus(w, r)
		case path == "issued-ids" && r.Method == "GET":
			oh.ListIssuedIDs(w, r)
		case path == "issued-ids" && r.Method == "POST":
			oh.IssueID(w, r)

		// Dashboard
		case path == "dashboard/stats" && r.Method == "GET":
			oh.DashboardStats(w, r)
		case path == "dashboard/chart-data" && r.Method == "GET":
			oh.ChartData(w, r)

		// Admin
		case parts[0] == "admin":
			adminRoutes(ah)(w, r)

		default:
			response.Err(w, "Not found", http.StatusNotFound)
		}
	})

	rl := server.NewRateLimiter()
	handler := server.Logging(app.CORS(server.SecurityHeaders(
		server.RateLimit(rl)(app.RequireAuth(mux)))))

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("sorp server starting on http://localhost%s", addr)
	log.Fatal(http.ListenAndServe(addr, handler))
}

// adminRoutes dispatches /api/v1/admin/... paths. The whole subtree requires
// the admin role.
func adminRoutes(ah *admin.Handler) http.HandlerFunc {
	inner := func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/admin/")
		path = strings.TrimSuffix(path, "/")
		parts := strings.Split(path, "/")

		switch {
		case path == "overview" && r.Method == "GET":
			ah.Overview(w, r)
		case path == "orders" && r.Method == "GET":
			ah.ListAllOrders(w, r)
		case path == "logs" && r.Method == "GET":
			ah.Logs(w, r)

		case path == "sessions" && r.Method == "GET":
			ah.ListSessions(w, r)
		case parts[0] == "sessions" && len(parts) == 2 && r.Method == "DELETE":
			ah.RevokeSession(w, r, parts[1])
		case path == "sessions" && r.Method == "DELETE":
			ah.RevokeAllSessions(w, r)

		case parts[0] == "users" && len(parts) == 1 && r.Method == "GET":
			ah.ListUsers(w, r)
		case parts[0] == "users" && len(parts) == 1 && r.Method == "POST":
			ah.CreateUser(w, r)
		case parts[0] == "users" && len(parts) == 2 && r.Method == "PUT":
			ah.UpdateUser(w, r, parts[1])
		case parts[0] == "users" && len(parts) == 2 && r.Method == "DELETE":
			ah.DeleteUser(w, r, parts[1])
		case parts[0] == "users" && len(parts) == 3 && parts[2] == "password" && r.Method == "PUT":
			ah.ResetPassword(w, r, parts[1])

		default:
			response.Err(w, "Not found", http.StatusNotFound)
		}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		server.RequireAdmin(http.HandlerFunc(inner)).ServeHTTP(w, r)
	}
}
