package auth

import (
	"crypto/subtle"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
)

// sessionTTL is how long a login session stays valid.
const sessionTTL = 30 * 24 * time.Hour

// ErrBadAccessKey is returned by Login when the supplied key does not match.
var ErrBadAccessKey = errors.New("invalid access key")

// Session is one issued login session.
type Session struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore handles access-key login and session persistence in SQLite.
// When accessKey is empty the store is open: Login always succeeds and
// Validate accepts any token.
type SessionStore struct {
	db        *sql.DB
	accessKey string
}

// NewSessionStore creates a store backed by the given SQL database.
func NewSessionStore(db *sql.DB, accessKey string) *SessionStore {
	return &SessionStore{db: db, accessKey: accessKey}
}

// Enabled reports whether an access key is configured.
func (s *SessionStore) Enabled() bool {
	return s.accessKey != ""
}

// Login checks the supplied access key and issues a session token.
func (s *SessionStore) Login(key string) (*Session, error) {
	if s.accessKey != "" {
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.accessKey)) != 1 {
			return nil, ErrBadAccessKey
		}
	}

	now := time.Now().UTC()
	sess := &Session{
		Token:     uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(sessionTTL),
	}
	_, err := s.db.Exec(
		"INSERT INTO auth_session (token, created_at, expires_at) VALUES (?,?,?)",
		sess.Token, sess.CreatedAt.Format(time.RFC3339), sess.ExpiresAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Validate reports whether a session token is known and unexpired.
func (s *SessionStore) Validate(token string) bool {
	if s.accessKey == "" {
		return true
	}
	if token == "" {
		return false
	}

	var expiresAt string
	err := s.db.QueryRow(
		"SELECT expires_at FROM auth_session WHERE token = ?", token,
	).Scan(&expiresAt)
	if err != nil {
		return false
	}
	t, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return false
	}
	return time.Now().Before(t)
}

// Logout invalidates a session token.
func (s *SessionStore) Logout(token string) {
	if token == "" {
		return
	}
	s.db.Exec("DELETE FROM auth_session WHERE token = ?", token)
}

// PurgeExpired removes expired sessions. Called periodically by the scheduler.
func (s *SessionStore) PurgeExpired() {
	cutoff := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec("DELETE FROM auth_session WHERE expires_at < ?", cutoff)
	if err != nil {
		log.Printf("[AUTH] PurgeExpired: %v", err)
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Printf("[AUTH] PurgeExpired: removed %d expired sessions", n)
	}
}
