package auth

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T, accessKey string) *SessionStore {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	_, err = sqlDB.Exec(`
		CREATE TABLE auth_session (
			token      TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			expires_at TEXT NOT NULL
		)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return NewSessionStore(sqlDB, accessKey)
}

func TestSessionStore_LoginValidateLogout(t *testing.T) {
	store := newTestStore(t, "hunter2")

	if !store.Enabled() {
		t.Error("Enabled() = false with a configured key")
	}

	if _, err := store.Login("wrong-key"); err != ErrBadAccessKey {
		t.Errorf("Login(wrong) err = %v, want ErrBadAccessKey", err)
	}

	sess, err := store.Login("hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.Token == "" {
		t.Fatal("Login returned empty token")
	}
	if !sess.ExpiresAt.After(sess.CreatedAt) {
		t.Errorf("ExpiresAt %v not after CreatedAt %v", sess.ExpiresAt, sess.CreatedAt)
	}

	if !store.Validate(sess.Token) {
		t.Error("Validate(issued token) = false")
	}
	if store.Validate("bogus-token") {
		t.Error("Validate(bogus) = true")
	}
	if store.Validate("") {
		t.Error("Validate(empty) = true")
	}

	store.Logout(sess.Token)
	if store.Validate(sess.Token) {
		t.Error("Validate after Logout = true")
	}
}

func TestSessionStore_DistinctTokens(t *testing.T) {
	store := newTestStore(t, "hunter2")

	a, err := store.Login("hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	b, err := store.Login("hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if a.Token == b.Token {
		t.Error("two logins issued the same token")
	}
	// Logging out one session must not touch the other.
	store.Logout(a.Token)
	if !store.Validate(b.Token) {
		t.Error("second session invalidated by first logout")
	}
}

func TestSessionStore_OpenWhenNoKey(t *testing.T) {
	store := newTestStore(t, "")

	if store.Enabled() {
		t.Error("Enabled() = true with no key")
	}
	if _, err := store.Login("anything"); err != nil {
		t.Errorf("Login with no key configured: %v", err)
	}
	if !store.Validate("whatever") {
		t.Error("Validate should accept any token when auth is disabled")
	}
	if !store.Validate("") {
		t.Error("Validate should accept empty token when auth is disabled")
	}
}

func TestSessionStore_PurgeExpired(t *testing.T) {
	store := newTestStore(t, "hunter2")

	sess, err := store.Login("hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Backdate the session past its expiry.
	stale := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	if _, err := store.db.Exec("UPDATE auth_session SET expires_at = ? WHERE token = ?", stale, sess.Token); err != nil {
		t.Fatalf("backdate session: %v", err)
	}

	if store.Validate(sess.Token) {
		t.Error("Validate(expired token) = true")
	}

	store.PurgeExpired()
	var count int
	store.db.QueryRow("SELECT COUNT(*) FROM auth_session").Scan(&count)
	if count != 0 {
		t.Errorf("sessions remaining after purge = %d", count)
	}
}
