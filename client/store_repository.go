package client

import (
	"context"
	"fmt"

	"github.com/jmcleod/adventkey/storage"
)

const (
	clientNamespace  = "__client"
	clientRecordType = "SESSION"
)

// RepositoryStore keeps the client session in a storage.Repository, one
// plain-json record per key.
type RepositoryStore struct {
	repo storage.Repository
}

var _ SessionStore = (*RepositoryStore)(nil)

func NewRepositoryStore(repo storage.Repository) *RepositoryStore {
	return &RepositoryStore{repo: repo}
}

func (s *RepositoryStore) put(key string, v any) error {
	env, err := storage.MarshalPlain(v)
	if err != nil {
		return err
	}
	if err := s.repo.Put(clientNamespace, clientRecordType, key, env); err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}
	return nil
}

func (s *RepositoryStore) get(key string, v any) error {
	env, err := s.repo.Get(clientNamespace, clientRecordType, key)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", key, err)
	}
	if err := storage.UnmarshalPlain(env, v); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

func (s *RepositoryStore) SetSessionToken(_ context.Context, token string) error {
	return s.put(KeySessionToken, token)
}

func (s *RepositoryStore) SetSessionID(_ context.Context, id string) error {
	return s.put(KeySessionID, id)
}

func (s *RepositoryStore) SetChildSession(_ context.Context, child bool) error {
	return s.put(KeyIsChildSession, child)
}

func (s *RepositoryStore) SetGuestSession(_ context.Context, guest bool) error {
	return s.put(KeyIsGuestSession, guest)
}

func (s *RepositoryStore) Load(_ context.Context) (Session, error) {
	var sess Session
	for _, f := range []struct {
		key string
		dst any
	}{
		{KeySessionToken, &sess.Token},
		{KeySessionID, &sess.ID},
		{KeyIsChildSession, &sess.ChildSession},
		{KeyIsGuestSession, &sess.GuestSession},
	} {
		if err := s.get(f.key, f.dst); err != nil {
			return Session{}, err
		}
	}
	return sess, nil
}

func (s *RepositoryStore) Clear(_ context.Context) error {
	for _, key := range []string{KeySessionToken, KeySessionID, KeyIsChildSession, KeyIsGuestSession} {
		if err := s.repo.Delete(clientNamespace, clientRecordType, key); err != nil && !storage.IsNotFound(err) {
			return fmt.Errorf("clearing %s: %w", key, err)
		}
	}
	return nil
}
