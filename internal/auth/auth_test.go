package auth_test

import (
	"errors"
	"testing"
	"time"

	"sorp/internal/auth"
	"sorp/internal/testutil"
)

func setup(t *testing.T) *auth.Service {
	t.Helper()
	db := testutil.SetupTestDB(t)
	svc := auth.NewService(db, "test-secret", time.Hour)
	testutil.CreateTestUser(t, db, "alice", "correct-horse", "user")
	return svc
}

func TestLoginAndValidate(t *testing.T) {
	svc := setup(t)

	res, err := svc.Login(t.Context(), "alice", "correct-horse", "127.0.0.1", "test")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token == "" || res.TokenType != "Bearer" || res.Username != "alice" {
		t.Fatalf("unexpected login result: %+v", res)
	}

	username, err := svc.Validate(t.Context(), res.Token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if username != "alice" {
		t.Errorf("validated username = %q, want alice", username)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := setup(t)

	if _, err := svc.Login(t.Context(), "alice", "wrong", "", ""); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(t.Context(), "nobody", "x", "", ""); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("unknown user err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := auth.NewService(db, "test-secret", time.Hour)
	testutil.CreateTestUser(t, db, "gone", "password123", "user")
	if _, err := db.Exec(db.Rebind(`UPDATE users SET active = 0 WHERE username = ?`), "gone"); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Login(t.Context(), "gone", "password123", "", ""); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("inactive user err = %v, want ErrInvalidCredentials", err)
	}
}

func TestSecondLoginReplacesSession(t *testing.T) {
	svc := setup(t)

	first, err := svc.Login(t.Context(), "alice", "correct-horse", "", "")
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Login(t.Context(), "alice", "correct-horse", "", "")
	if err != nil {
		t.Fatal(err)
	}

	// The earlier token's session id no longer matches.
	if _, err := svc.Validate(t.Context(), first.Token); !errors.Is(err, auth.ErrSessionRevoked) {
		t.Errorf("old token err = %v, want ErrSessionRevoked", err)
	}
	if _, err := svc.Validate(t.Context(), second.Token); err != nil {
		t.Errorf("new token should validate: %v", err)
	}

	sessions, err := svc.Sessions(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Errorf("sessions = %d, want 1", len(sessions))
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	svc := setup(t)

	res, err := svc.Login(t.Context(), "alice", "correct-horse", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Logout(t.Context(), "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Validate(t.Context(), res.Token); !errors.Is(err, auth.ErrSessionRevoked) {
		t.Errorf("post-logout err = %v, want ErrSessionRevoked", err)
	}
}

func TestValidateRejectsGarbageAndForgedTokens(t *testing.T) {
	svc := setup(t)

	if _, err := svc.Validate(t.Context(), "not-a-token"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("garbage token err = %v, want ErrInvalidToken", err)
	}

	// A token signed with a different secret must not validate.
	other := auth.NewService(svc.DB, "other-secret", time.Hour)
	res, err := other.Login(t.Context(), "alice", "correct-horse", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Validate(t.Context(), res.Token); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("forged token err = %v, want ErrInvalidToken", err)
	}
}

func TestEnsureUserIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := auth.NewService(db, "test-secret", time.Hour)

	if err := svc.EnsureUser(t.Context(), "admin", "bootstrap-pw", "admin"); err != nil {
		t.Fatal(err)
	}
	if err := svc.EnsureUser(t.Context(), "admin", "different-pw", "admin"); err != nil {
		t.Fatal(err)
	}

	// The original password still works; the second call was a no-op.
	if _, err := svc.Login(t.Context(), "admin", "bootstrap-pw", "", ""); err != nil {
		t.Errorf("bootstrap login failed: %v", err)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("user count = %d, want 1", n)
	}
}
