package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmcleod/adventkey/internal/util"
	"github.com/jmcleod/adventkey/storage"
)

const (
	sessionNamespace      = "__sessions"
	sessionRecordType     = "SESSION"
	sessionKeyType        = "SESSION_KEY"
	sessionKeyID          = "current"
	sessionAADPrefix      = "session:"
	sessionKeyWrappingAAD = "adventkey:session_master_key:v1"
	sessionWrappingInfo   = "adventkey:session-wrapping-key:v1"
	cleanupInterval       = 5 * time.Minute
)

// DeriveSessionWrappingKey derives the key that seals the persistent session
// store's encryption key from the token signing key.
func DeriveSessionWrappingKey(signingKey []byte) ([]byte, error) {
	return util.DeriveKey(signingKey, nil, sessionWrappingInfo)
}

// PersistentSessionStore stores sessions in a storage.Repository, encrypted
// at rest using AES-256-GCM. Sessions survive server restarts.
//
// The session encryption key is itself sealed with an externally-provided
// wrapping key before being stored, so a repository compromise alone cannot
// recover session data.
type PersistentSessionStore struct {
	repo        storage.Repository
	key         []byte
	wrappingKey []byte
	idleTimeout time.Duration
	interval    time.Duration
	stopOnce    sync.Once
	stopCh      chan struct{}
	done        chan struct{}
}

var _ SessionStore = (*PersistentSessionStore)(nil)

// NewPersistentSessionStore creates a session store backed by the given
// repository. The 32-byte wrappingKey is never stored in the repository.
// idleTimeout of 0 disables idle timeout checking.
func NewPersistentSessionStore(repo storage.Repository, idleTimeout time.Duration, wrappingKey []byte) (*PersistentSessionStore, error) {
	return newPersistentSessionStore(repo, idleTimeout, wrappingKey, cleanupInterval)
}

func newPersistentSessionStore(repo storage.Repository, idleTimeout time.Duration, wrappingKey []byte, interval time.Duration) (*PersistentSessionStore, error) {
	if len(wrappingKey) != util.AESKeySize {
		return nil, fmt.Errorf("wrapping key must be exactly %d bytes, got %d", util.AESKeySize, len(wrappingKey))
	}
	wk := util.CopyBytes(wrappingKey)

	key, err := loadOrCreateSessionKey(repo, wk)
	if err != nil {
		util.WipeBytes(wk)
		return nil, err
	}
	s := &PersistentSessionStore{
		repo:        repo,
		key:         key,
		wrappingKey: wk,
		idleTimeout: idleTimeout,
		interval:    interval,
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
	}
	go s.cleanupLoop()
	return s, nil
}

// Close stops the background cleanup goroutine and wipes key material.
func (s *PersistentSessionStore) Close() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.done
		util.WipeBytes(s.key)
		util.WipeBytes(s.wrappingKey)
	})
}

func (s *PersistentSessionStore) load(sessionID string) (AuthSession, error) {
	env, err := s.repo.Get(sessionNamespace, sessionRecordType, sessionID)
	if err != nil {
		return AuthSession{}, err
	}
	data, err := storage.OpenRecord(s.key, env, []byte(sessionAADPrefix+sessionID))
	if err != nil {
		return AuthSession{}, err
	}
	defer util.WipeBytes(data)
	var session AuthSession
	if err := json.Unmarshal(data, &session); err != nil {
		return AuthSession{}, err
	}
	return session, nil
}

func (s *PersistentSessionStore) Get(sessionID string) (AuthSession, bool) {
	session, err := s.load(sessionID)
	if err != nil {
		return AuthSession{}, false
	}
	if !session.live(time.Now(), s.idleTimeout) {
		s.Delete(sessionID)
		return AuthSession{}, false
	}
	return session, true
}

func (s *PersistentSessionStore) Put(sessionID string, session AuthSession) {
	data, err := json.Marshal(session)
	if err != nil {
		return
	}
	defer util.WipeBytes(data)
	env, err := storage.SealRecord(s.key, data, []byte(sessionAADPrefix+sessionID))
	if err != nil {
		slog.Warn("session store: seal failed", "error", err)
		return
	}
	if err := s.repo.Put(sessionNamespace, sessionRecordType, sessionID, env); err != nil {
		slog.Warn("session store: put failed", "error", err)
	}
}

func (s *PersistentSessionStore) Delete(sessionID string) {
	_ = s.repo.Delete(sessionNamespace, sessionRecordType, sessionID)
}

func (s *PersistentSessionStore) cleanupLoop() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

// sweepExpired removes expired, idle and unreadable sessions.
func (s *PersistentSessionStore) sweepExpired() {
	ids, err := s.repo.List(sessionNamespace, sessionRecordType)
	if err != nil {
		return
	}
	now := time.Now()
	for _, id := range ids {
		session, err := s.load(id)
		if err != nil || !session.live(now, s.idleTimeout) {
			s.Delete(id)
		}
	}
}

// loadOrCreateSessionKey loads the session encryption key from storage,
// unsealing it with the wrapping key. If no key exists, or the wrapping key
// has changed, a new random key is generated, sealed and persisted; sessions
// sealed under the old key become unreadable.
func loadOrCreateSessionKey(repo storage.Repository, wrappingKey []byte) ([]byte, error) {
	aad := []byte(sessionKeyWrappingAAD)

	env, err := repo.Get(sessionNamespace, sessionKeyType, sessionKeyID)
	switch {
	case err == nil:
		key, openErr := storage.OpenRecord(wrappingKey, env, aad)
		if openErr == nil && len(key) == util.AESKeySize {
			return key, nil
		}
		slog.Warn("session store: session key could not be unsealed; existing sessions are invalidated")
	case !storage.IsNotFound(err):
		return nil, err
	}

	key, err := util.NewAESKey()
	if err != nil {
		return nil, err
	}
	sealed, err := storage.SealRecord(wrappingKey, key, aad)
	if err != nil {
		util.WipeBytes(key)
		return nil, fmt.Errorf("sealing new session key: %w", err)
	}
	if err := repo.Put(sessionNamespace, sessionKeyType, sessionKeyID, sealed); err != nil {
		util.WipeBytes(key)
		return nil, err
	}
	return key, nil
}
