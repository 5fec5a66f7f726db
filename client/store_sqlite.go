package client

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite"
)

const createSessionTable = `
CREATE TABLE IF NOT EXISTS client_session (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);`

// SQLiteStore keeps the client session in a key/value table.
type SQLiteStore struct {
	db     *sql.DB
	ownsDB bool
}

var _ SessionStore = (*SQLiteStore)(nil)

// NewSQLiteStore uses db, creating the session table if needed. The caller
// keeps ownership of db.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, createSessionTable); err != nil {
		return nil, fmt.Errorf("creating session table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// OpenSQLiteStore opens (or creates) the database at path.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s, err := NewSQLiteStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// Close closes the database if the store opened it.
func (s *SQLiteStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO client_session (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) SetSessionToken(ctx context.Context, token string) error {
	return s.set(ctx, KeySessionToken, token)
}

func (s *SQLiteStore) SetSessionID(ctx context.Context, id string) error {
	return s.set(ctx, KeySessionID, id)
}

func (s *SQLiteStore) SetChildSession(ctx context.Context, child bool) error {
	return s.set(ctx, KeyIsChildSession, strconv.FormatBool(child))
}

func (s *SQLiteStore) SetGuestSession(ctx context.Context, guest bool) error {
	return s.set(ctx, KeyIsGuestSession, strconv.FormatBool(guest))
}

func (s *SQLiteStore) Load(ctx context.Context) (Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM client_session`)
	if err != nil {
		return Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	defer rows.Close()

	var sess Session
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Session{}, fmt.Errorf("failed to scan session row: %w", err)
		}
		switch key {
		case KeySessionToken:
			sess.Token = value
		case KeySessionID:
			sess.ID = value
		case KeyIsChildSession, KeyIsGuestSession:
			flag, err := strconv.ParseBool(value)
			if err != nil {
				return Session{}, fmt.Errorf("failed to decode %s: %w", key, err)
			}
			if key == KeyIsChildSession {
				sess.ChildSession = flag
			} else {
				sess.GuestSession = flag
			}
		}
	}
	if err := rows.Err(); err != nil {
		return Session{}, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	return sess, nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM client_session`); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
