// Package auth implements the JWT/session layer. Tokens are HS256 and carry
// a session id; the session id must still match the active_sessions row for
// the user, so one login invalidates all earlier tokens and an admin can
// revoke a session without waiting for expiry.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"sorp/internal/models"
	"sorp/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrSessionRevoked     = errors.New("session revoked")
)

const timeLayout = "2006-01-02 15:04:05"

// Claims is the JWT payload: the principal plus the session id the token was
// minted for.
type Claims struct {
	Username  string `json:"username"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Service issues and validates tokens against the user and session tables.
type Service struct {
	DB     *store.DB
	Secret []byte
	Expiry time.Duration
}

func NewService(db *store.DB, secret string, expiry time.Duration) *Service {
	return &Service{DB: db, Secret: []byte(secret), Expiry: expiry}
}

// LoginResult is handed back to the login handler.
type LoginResult struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	Username  string    `json:"username"`
}

// Login checks the password, replaces the user's active session, and signs a
// token bound to the new session.
func (s *Service) Login(ctx context.Context, username, password, ip, userAgent string) (*LoginResult, error) {
	var hash string
	var active bool
	err := s.DB.QueryRowContext(ctx, s.DB.Rebind(
		`SELECT password_hash, active FROM users WHERE username = ?`), username,
	).Scan(&hash, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !active || !CheckPassword(hash, password) {
		return nil, ErrInvalidCredentials
	}

	sid := uuid.New().String()
	now := time.Now()

	// Sweep sessions whose tokens have all expired anyway, so the admin
	// session list only shows live ones.
	_, _ = s.DB.ExecContext(ctx, s.DB.Rebind(
		`DELETE FROM active_sessions WHERE issued_at < ?`),
		now.Add(-s.Expiry).Format(timeLayout))

	// Single session per user: a second login replaces the first.
	_, err = s.DB.ExecContext(ctx, s.DB.Rebind(
		`INSERT INTO active_sessions (username, session_id, issued_at, ip, user_agent)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(username) DO UPDATE SET
			session_id = excluded.session_id,
			issued_at  = excluded.issued_at,
			ip         = excluded.ip,
			user_agent = excluded.user_agent`),
		username, sid, now.Format(timeLayout), ip, userAgent)
	if err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	exp := now.Add(s.Expiry)
	claims := Claims{
		Username:  username,
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	_, _ = s.DB.ExecContext(ctx, s.DB.Rebind(
		`UPDATE users SET last_login = CURRENT_TIMESTAMP WHERE username = ?`), username)

	return &LoginResult{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: exp,
		Username:  username,
	}, nil
}

// Validate parses the token and confirms its session is still the active one
// for the user.
func (s *Service) Validate(ctx context.Context, tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.Secret, nil
	})
	if err != nil || !token.Valid || claims.Username == "" {
		return "", ErrInvalidToken
	}

	var sid string
	err = s.DB.QueryRowContext(ctx, s.DB.Rebind(
		`SELECT session_id FROM active_sessions WHERE username = ?`), claims.Username,
	).Scan(&sid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrSessionRevoked
	}
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	if sid != claims.SessionID {
		return "", ErrSessionRevoked
	}
	return claims.Username, nil
}

// Logout removes the user's active session, invalidating every outstanding
// token for them.
func (s *Service) Logout(ctx context.Context, username string) error {
	_, err := s.DB.ExecContext(ctx, s.DB.Rebind(
		`DELETE FROM active_sessions WHERE username = ?`), username)
	return err
}

// RevokeAll clears every active session. Admin-only operation.
func (s *Service) RevokeAll(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM active_sessions`)
	return err
}

// Sessions lists active sessions, newest first.
func (s *Service) Sessions(ctx context.Context) ([]models.Session, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT username, session_id, issued_at, ip, user_agent
		 FROM active_sessions ORDER BY issued_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Session
	for rows.Next() {
		var sess models.Session
		if err := rows.Scan(&sess.Username, &sess.SessionID, &sess.IssuedAt, &sess.IP, &sess.UserAgent); err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// EnsureUser creates the account if it does not exist. Used at startup to
// bootstrap the configured admin accounts.
func (s *Service) EnsureUser(ctx context.Context, username, password, role string) error {
	var exists int
	err := s.DB.QueryRowContext(ctx, s.DB.Rebind(
		`SELECT COUNT(*) FROM users WHERE username = ?`), username).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		return nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, s.DB.Rebind(
		`INSERT INTO users (username, password_hash, role, active) VALUES (?, ?, ?, 1)`),
		username, hash, role)
	if err != nil && store.IsUniqueViolation(err) {
		return nil
	}
	return err
}
