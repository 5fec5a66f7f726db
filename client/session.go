package client

import (
	"context"
	"errors"
	"fmt"
)

// Storage keys for the four persisted session values.
const (
	KeySessionToken   = "session_token"
	KeySessionID      = "session_id"
	KeyIsChildSession = "is_child_session"
	KeyIsGuestSession = "is_guest_session"
)

// SessionStore persists the outcome of a successful verification. The
// writes are independent; the store does not enforce that at most one of
// the child and guest flags is set. A login whose writes fail partway
// leaves the previous session in place when it can be written back, and an
// empty store otherwise.
type SessionStore interface {
	SetSessionToken(ctx context.Context, token string) error
	SetSessionID(ctx context.Context, id string) error
	SetChildSession(ctx context.Context, child bool) error
	SetGuestSession(ctx context.Context, guest bool) error
	// Load returns the stored values. Missing values are zero.
	Load(ctx context.Context) (Session, error)
	Clear(ctx context.Context) error
}

// Session is the stored client session.
type Session struct {
	Token        string
	ID           string
	ChildSession bool
	GuestSession bool
}

// Valid reports whether the session holds a token and an ID.
func (s Session) Valid() bool {
	return s.Token != "" && s.ID != ""
}

// Category derives the session category from the stored flags.
func (s Session) Category() Category {
	switch {
	case s.ChildSession:
		return CategoryChild
	case s.GuestSession:
		return CategoryGuest
	default:
		return CategoryNormal
	}
}

// LoadSession reads the stored session, returning ErrNoSession when none is
// present.
func LoadSession(ctx context.Context, store SessionStore) (Session, error) {
	s, err := store.Load(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("loading session: %w", err)
	}
	if !s.Valid() {
		return Session{}, ErrNoSession
	}
	return s, nil
}

// persistSession writes every field of s. On a partial write the session
// stored before the call is written back; if there was none, or restoring it
// fails too, the store is cleared so no half-written session remains.
func persistSession(ctx context.Context, store SessionStore, s Session) error {
	prev, loadErr := store.Load(ctx)
	err := writeSession(ctx, store, s)
	if err == nil {
		return nil
	}
	if loadErr == nil && prev.Valid() {
		restoreErr := writeSession(ctx, store, prev)
		if restoreErr == nil {
			return &Error{Kind: KindStorage, Err: err}
		}
		err = errors.Join(err, restoreErr)
	}
	if clearErr := store.Clear(ctx); clearErr != nil {
		err = errors.Join(err, clearErr)
	}
	return &Error{Kind: KindStorage, Err: err}
}

func writeSession(ctx context.Context, store SessionStore, s Session) error {
	if err := store.SetSessionToken(ctx, s.Token); err != nil {
		return err
	}
	if err := store.SetSessionID(ctx, s.ID); err != nil {
		return err
	}
	if err := store.SetChildSession(ctx, s.ChildSession); err != nil {
		return err
	}
	return store.SetGuestSession(ctx, s.GuestSession)
}

// SessionEnder ends a server-side session.
type SessionEnder interface {
	Logout(ctx context.Context, token string) error
}

// Logout ends the stored session on the server and clears the local store.
// The local store is cleared even if the server call fails.
func Logout(ctx context.Context, remote SessionEnder, store SessionStore) error {
	s, err := LoadSession(ctx, store)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return store.Clear(ctx)
		}
		return err
	}
	remoteErr := remote.Logout(ctx, s.Token)
	if err := store.Clear(ctx); err != nil {
		return errors.Join(remoteErr, fmt.Errorf("clearing session: %w", err))
	}
	return remoteErr
}
