package api

import (
	"time"

	"github.com/jmcleod/adventkey/accesscode"
)

// SessionStore abstracts session CRUD so that sessions can be stored
// in-memory (default) or in persistent backing storage.
type SessionStore interface {
	// Get retrieves a session by ID. Returns false if the session does not
	// exist, has expired, or has exceeded the idle timeout.
	Get(sessionID string) (AuthSession, bool)
	// Put creates or updates a session.
	Put(sessionID string, session AuthSession)
	// Delete removes a session by ID.
	Delete(sessionID string)
}

// AuthSession is the server-side record behind an issued session token.
type AuthSession struct {
	SessionID      string              `json:"session_id"`
	UserType       accesscode.UserType `json:"user_type"`
	Credential     string              `json:"credential"`
	ClientIP       string              `json:"client_ip,omitempty"`
	ExpiresAt      time.Time           `json:"expires_at"`
	LastAccessedAt time.Time           `json:"last_accessed_at"`
}

// live reports whether the session is usable at now.
func (s AuthSession) live(now time.Time, idleTimeout time.Duration) bool {
	if now.After(s.ExpiresAt) {
		return false
	}
	return idleTimeout <= 0 || now.Sub(s.LastAccessedAt) <= idleTimeout
}
