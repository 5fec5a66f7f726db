package memory

import (
	"bytes"
	"errors"
	"testing"

	"github.com/jmcleod/adventkey/storage"
)

func TestMemoryRepository(t *testing.T) {
	repo := NewRepository()
	namespace := "__sessions"
	recordType := "SESSION"
	recordID := "id1"
	env := &storage.Envelope{
		Ver:        1,
		Scheme:     storage.SchemeAESGCM,
		Nonce:      []byte("nonce1234567"),
		Ciphertext: []byte("ciphertext"),
	}

	t.Run("PutAndGet", func(t *testing.T) {
		if err := repo.Put(namespace, recordType, recordID, env); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		got, err := repo.Get(namespace, recordType, recordID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Ver != env.Ver || got.Scheme != env.Scheme || !bytes.Equal(got.Nonce, env.Nonce) || !bytes.Equal(got.Ciphertext, env.Ciphertext) {
			t.Errorf("Get returned wrong envelope: %+v", got)
		}

		got.Nonce[0] = 'X'
		got2, _ := repo.Get(namespace, recordType, recordID)
		if got2.Nonce[0] == 'X' {
			t.Error("Memory repository should return clones of envelopes")
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		_, err := repo.Get("nonexistent", recordType, recordID)
		if !errors.Is(err, storage.ErrNamespaceNotFound) {
			t.Errorf("expected ErrNamespaceNotFound, got %v", err)
		}

		_, err = repo.Get(namespace, recordType, "nonexistent")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if !storage.IsNotFound(err) {
			t.Error("IsNotFound should match ErrNotFound")
		}
	})

	t.Run("List", func(t *testing.T) {
		repo.Put(namespace, recordType, "id0", env)
		repo.Put(namespace, "ATTEMPT", "id1", env)

		ids, err := repo.List(namespace, recordType)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(ids) != 2 || ids[0] != "id0" || ids[1] != "id1" {
			t.Errorf("expected [id0 id1], got %v", ids)
		}

		ids, _ = repo.List("nonexistent", recordType)
		if len(ids) != 0 {
			t.Errorf("Expected 0 IDs for nonexistent namespace, got %d", len(ids))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.Delete(namespace, recordType, "id0"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := repo.Get(namespace, recordType, "id0"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := repo.Delete(namespace, recordType, "id0"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
		if err := repo.Delete("nonexistent", recordType, "id0"); !storage.IsNotFound(err) {
			t.Errorf("expected not-found for missing namespace, got %v", err)
		}
	})
}
