package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"sorp/internal/response"
)

// Username returns the authenticated principal from the request context.
func Username(r *http.Request) string {
	u, _ := r.Context().Value(CtxUsername).(string)
	return u
}

// IsAdmin reports whether the authenticated principal is an admin.
func IsAdmin(r *http.Request) bool {
	v, _ := r.Context().Value(CtxIsAdmin).(bool)
	return v
}

// Logging logs request method, path, and duration.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

// CORS answers preflights and sets the allow headers for configured origins.
// A "*" entry allows any origin.
func (a *App) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			allowed := a.Config.CORSOrigins
			switch {
			case contains(allowed, "*"):
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case contains(allowed, origin):
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			if w.Header().Get("Access-Control-Allow-Origin") != "" {
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type")
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// SecurityHeaders adds security headers to all responses.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// publicPath lists API paths reachable without a token.
func publicPath(path string) bool {
	switch path {
	case "/api/v1/auth/login", "/api/v1/health":
		return true
	}
	return false
}

// RequireAuth validates the Bearer token and its backing session, and puts
// the principal on the request context. Non-API paths pass through.
func (a *App) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if !strings.HasPrefix(path, "/api/") || publicPath(path) {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			response.ErrCode(w, "Authorization required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		username, err := a.Auth.Validate(r.Context(), strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			response.ErrCode(w, "Invalid token", "INVALID_TOKEN", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), CtxUsername, username)
		ctx = context.WithValue(ctx, CtxIsAdmin, a.Config.IsAdmin(username))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin guards the admin subtree. Must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r) {
			response.ErrCode(w, "Admin access required", "FORBIDDEN", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimiter tracks request rates per key.
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{requests: make(map[string][]time.Time)}
}

// Reset clears all rate limit state (for testing).
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	rl.requests = make(map[string][]time.Time)
	rl.mu.Unlock()
}

// Check records a request against key and reports whether the limit was
// exceeded, plus the remaining allowance and reset time.
func (rl *RateLimiter) Check(key string, limit int, window time.Duration) (bool, int, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-window)
	valid := rl.requests[key][:0]
	for _, t := range rl.requests[key] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	resetTime := now.Add(window)
	if len(valid) > 0 {
		resetTime = valid[0].Add(window)
	}

	if len(valid) >= limit {
		rl.requests[key] = valid
		return true, 0, resetTime
	}

	rl.requests[key] = append(valid, now)
	return false, limit - len(valid) - 1, resetTime
}

// RateLimit limits login attempts and API calls per client IP.
func RateLimit(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := r.RemoteAddr
			if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
				clientIP = strings.TrimSpace(strings.Split(forwarded, ",")[0])
			}
			if idx := strings.LastIndex(clientIP, ":"); idx != -1 {
				clientIP = clientIP[:idx]
			}

			var limit int
			var window time.Duration
			var key string
			switch {
			case r.URL.Path == "/api/v1/auth/login":
				limit, window, key = 5, time.Minute, "login:"+clientIP
			case strings.HasPrefix(r.URL.Path, "/api/"):
				limit, window, key = 100, time.Minute, "api:"+clientIP
			default:
				next.ServeHTTP(w, r)
				return
			}

			exceeded, remaining, resetTime := rl.Check(key, limit, window)
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetTime.Unix()))

			if exceeded {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(time.Until(resetTime).Seconds())))
				response.ErrCode(w, "Rate limit exceeded", "RATE_LIMIT_EXCEEDED", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
