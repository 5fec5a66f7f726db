package api

import (
	"bytes"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/jmcleod/adventkey/accesscode"
	"github.com/jmcleod/adventkey/storage"
	"github.com/jmcleod/adventkey/storage/memory"
)

var testWrappingKey = bytes.Repeat([]byte{0x42}, 32)

func liveSession(id string, userType accesscode.UserType) AuthSession {
	return AuthSession{
		SessionID:      id,
		UserType:       userType,
		Credential:     string(userType),
		ExpiresAt:      time.Now().Add(time.Hour),
		LastAccessedAt: time.Now(),
	}
}

// sessionStoreTests runs the common suite against any SessionStore implementation.
func sessionStoreTests(t *testing.T, store SessionStore) {
	t.Helper()

	t.Run("PutAndGet", func(t *testing.T) {
		s := liveSession("sid-1", accesscode.UserTypeHarper)
		s.ClientIP = "192.0.2.1"
		store.Put("sid-1", s)
		got, ok := store.Get("sid-1")
		if !ok {
			t.Fatal("expected to find session")
		}
		if got.UserType != accesscode.UserTypeHarper {
			t.Fatalf("got UserType %q, want %q", got.UserType, accesscode.UserTypeHarper)
		}
		if got.ClientIP != "192.0.2.1" {
			t.Fatalf("got ClientIP %q", got.ClientIP)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		if _, ok := store.Get("no-such-session"); ok {
			t.Fatal("expected not found for missing session")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		store.Put("sid-del", liveSession("sid-del", accesscode.UserTypeGuest))
		store.Delete("sid-del")
		if _, ok := store.Get("sid-del"); ok {
			t.Fatal("expected session to be deleted")
		}
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		// Should not panic.
		store.Delete("never-existed")
	})

	t.Run("Overwrite", func(t *testing.T) {
		store.Put("sid-ow", liveSession("sid-ow", accesscode.UserTypeGuest))
		store.Put("sid-ow", liveSession("sid-ow", accesscode.UserTypeNormal))

		got, ok := store.Get("sid-ow")
		if !ok {
			t.Fatal("expected session after overwrite")
		}
		if got.UserType != accesscode.UserTypeNormal {
			t.Fatalf("got UserType %q, want %q", got.UserType, accesscode.UserTypeNormal)
		}
	})

	t.Run("ExpiredSession", func(t *testing.T) {
		s := liveSession("sid-exp", accesscode.UserTypeGuest)
		s.ExpiresAt = time.Now().Add(-time.Second)
		store.Put("sid-exp", s)
		if _, ok := store.Get("sid-exp"); ok {
			t.Fatal("expected expired session to be rejected")
		}
	})
}

func TestMemorySessionStore(t *testing.T) {
	store := NewMemorySessionStore(30 * time.Minute)
	sessionStoreTests(t, store)

	t.Run("IdleTimeout", func(t *testing.T) {
		s := NewMemorySessionStore(100 * time.Millisecond)
		sess := liveSession("sid-idle", accesscode.UserTypeGuest)
		sess.LastAccessedAt = time.Now().Add(-200 * time.Millisecond)
		s.Put("sid-idle", sess)
		if _, ok := s.Get("sid-idle"); ok {
			t.Fatal("expected idle session to be rejected")
		}
	})

	t.Run("IdleTimeoutDisabled", func(t *testing.T) {
		s := NewMemorySessionStore(0)
		sess := liveSession("sid-no-idle", accesscode.UserTypeGuest)
		sess.LastAccessedAt = time.Now().Add(-24 * time.Hour)
		s.Put("sid-no-idle", sess)
		if _, ok := s.Get("sid-no-idle"); !ok {
			t.Fatal("expected session to be valid when idle timeout is disabled")
		}
	})

	t.Run("Sweep", func(t *testing.T) {
		s := NewMemorySessionStore(0)
		expired := liveSession("sid-old", accesscode.UserTypeGuest)
		expired.ExpiresAt = time.Now().Add(-time.Minute)
		s.Put("sid-old", expired)
		s.Put("sid-new", liveSession("sid-new", accesscode.UserTypeGuest))

		s.sweep()
		if s.Len() != 1 {
			t.Fatalf("expected 1 session after sweep, got %d", s.Len())
		}
	})
}

func TestPersistentSessionStore(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	repo := memory.NewRepository()
	store, err := NewPersistentSessionStore(repo, 30*time.Minute, testWrappingKey)
	if err != nil {
		t.Fatalf("NewPersistentSessionStore: %v", err)
	}
	defer store.Close()

	sessionStoreTests(t, store)

	t.Run("RejectsBadWrappingKey", func(t *testing.T) {
		if _, err := NewPersistentSessionStore(memory.NewRepository(), 0, []byte("short")); err == nil {
			t.Fatal("expected error for short wrapping key")
		}
	})

	t.Run("EncryptedAtRest", func(t *testing.T) {
		store.Put("sid-secret", liveSession("sid-secret", accesscode.UserTypeHarper))
		env, err := repo.Get(sessionNamespace, sessionRecordType, "sid-secret")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if env.Scheme != storage.SchemeAESGCM {
			t.Fatalf("expected sealed envelope, got scheme %q", env.Scheme)
		}
		if bytes.Contains(env.Ciphertext, []byte("harper")) {
			t.Fatal("session contents stored in plaintext")
		}
	})

	t.Run("IdleTimeout", func(t *testing.T) {
		s, err := NewPersistentSessionStore(memory.NewRepository(), 100*time.Millisecond, testWrappingKey)
		if err != nil {
			t.Fatalf("NewPersistentSessionStore: %v", err)
		}
		defer s.Close()

		sess := liveSession("sid-idle", accesscode.UserTypeGuest)
		sess.LastAccessedAt = time.Now().Add(-200 * time.Millisecond)
		s.Put("sid-idle", sess)
		if _, ok := s.Get("sid-idle"); ok {
			t.Fatal("expected idle session to be rejected")
		}
	})

	t.Run("SurvivesReopen", func(t *testing.T) {
		repo3 := memory.NewRepository()
		s1, err := NewPersistentSessionStore(repo3, 30*time.Minute, testWrappingKey)
		if err != nil {
			t.Fatalf("NewPersistentSessionStore: %v", err)
		}
		s1.Put("sid-persist", liveSession("sid-persist", accesscode.UserTypeGuest))
		s1.Close()

		s2, err := NewPersistentSessionStore(repo3, 30*time.Minute, testWrappingKey)
		if err != nil {
			t.Fatalf("NewPersistentSessionStore (reopen): %v", err)
		}
		defer s2.Close()

		got, ok := s2.Get("sid-persist")
		if !ok {
			t.Fatal("expected session to survive store reopen")
		}
		if got.UserType != accesscode.UserTypeGuest {
			t.Fatalf("got UserType %q", got.UserType)
		}
	})

	t.Run("WrappingKeyChanged", func(t *testing.T) {
		repo4 := memory.NewRepository()
		s1, err := NewPersistentSessionStore(repo4, 30*time.Minute, testWrappingKey)
		if err != nil {
			t.Fatalf("NewPersistentSessionStore: %v", err)
		}
		s1.Put("sid-rotated", liveSession("sid-rotated", accesscode.UserTypeGuest))
		s1.Close()

		other := bytes.Repeat([]byte{0x07}, 32)
		s2, err := NewPersistentSessionStore(repo4, 30*time.Minute, other)
		if err != nil {
			t.Fatalf("NewPersistentSessionStore (new key): %v", err)
		}
		defer s2.Close()
		if _, ok := s2.Get("sid-rotated"); ok {
			t.Fatal("sessions sealed under the old key must not be readable")
		}
	})

	t.Run("SweepExpired", func(t *testing.T) {
		repo5 := memory.NewRepository()
		s, err := NewPersistentSessionStore(repo5, 30*time.Minute, testWrappingKey)
		if err != nil {
			t.Fatalf("NewPersistentSessionStore: %v", err)
		}
		defer s.Close()

		expired := liveSession("sid-sweep", accesscode.UserTypeGuest)
		expired.ExpiresAt = time.Now().Add(-time.Hour)
		s.Put("sid-sweep", expired)
		s.Put("sid-keep", liveSession("sid-keep", accesscode.UserTypeGuest))

		s.sweepExpired()

		if _, err := repo5.Get(sessionNamespace, sessionRecordType, "sid-sweep"); err == nil {
			t.Fatal("expected expired session to be removed by sweep")
		}
		if _, err := repo5.Get(sessionNamespace, sessionRecordType, "sid-keep"); err != nil {
			t.Fatalf("live session removed by sweep: %v", err)
		}
	})

	t.Run("SweeperRuns", func(t *testing.T) {
		repo6 := memory.NewRepository()
		s, err := newPersistentSessionStore(repo6, 0, testWrappingKey, 10*time.Millisecond)
		if err != nil {
			t.Fatalf("newPersistentSessionStore: %v", err)
		}
		defer s.Close()

		expired := liveSession("sid-auto", accesscode.UserTypeGuest)
		expired.ExpiresAt = time.Now().Add(-time.Hour)
		s.Put("sid-auto", expired)

		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if _, err := repo6.Get(sessionNamespace, sessionRecordType, "sid-auto"); err != nil {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
		t.Fatal("background sweeper did not remove expired session")
	})
}

func TestDeriveSessionWrappingKey(t *testing.T) {
	k1, err := DeriveSessionWrappingKey(bytes.Repeat([]byte{1}, 32))
	if err != nil {
		t.Fatalf("DeriveSessionWrappingKey: %v", err)
	}
	if len(k1) != 32 {
		t.Fatalf("expected 32-byte key, got %d", len(k1))
	}
	k2, _ := DeriveSessionWrappingKey(bytes.Repeat([]byte{2}, 32))
	if bytes.Equal(k1, k2) {
		t.Fatal("different signing keys must derive different wrapping keys")
	}
}
