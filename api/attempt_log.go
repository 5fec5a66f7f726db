package api

import (
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/jmcleod/adventkey/accesscode"
	"github.com/jmcleod/adventkey/internal/uuid"
	"github.com/jmcleod/adventkey/storage"
)

const (
	attemptNamespace  = "__attempts"
	attemptRecordType = "ATTEMPT"

	// DefaultAttemptRetention caps the attempt log when no limit is given.
	DefaultAttemptRetention = 10000
)

// AttemptOutcome classifies a verification attempt.
type AttemptOutcome string

const (
	OutcomeSuccess           AttemptOutcome = "success"
	OutcomeRejected          AttemptOutcome = "rejected"
	OutcomeBirthdateRequired AttemptOutcome = "birthdate_required"
	OutcomeRateLimited       AttemptOutcome = "rate_limited"
	OutcomeInvalidRequest    AttemptOutcome = "invalid_request"
)

// AttemptEntry is one persisted verification attempt. It never holds the
// submitted code, birthdate or their digests.
type AttemptEntry struct {
	ID         string              `json:"id"`
	Outcome    AttemptOutcome      `json:"outcome"`
	UserType   accesscode.UserType `json:"user_type,omitempty"`
	Credential string              `json:"credential,omitempty"`
	Reason     string              `json:"reason,omitempty"`
	ClientIP   string              `json:"client_ip,omitempty"`
	CreatedAt  string              `json:"created_at"`

	createdAtTime time.Time
}

func (e *AttemptEntry) parseCreatedAt() {
	if t, err := time.Parse(time.RFC3339Nano, e.CreatedAt); err == nil {
		e.createdAtTime = t
	}
}

// Time returns CreatedAt as a time, or the zero time if unparseable.
func (e AttemptEntry) Time() time.Time {
	e.parseCreatedAt()
	return e.createdAtTime
}

// attemptLog appends attempt entries as plain-json envelopes and prunes the
// oldest once more than maxEntries are stored.
type attemptLog struct {
	repo       storage.Repository
	maxEntries int
	// pruneEvery is how many appends happen between retention checks.
	pruneEvery int64
	appends    atomic.Int64
}

func newAttemptLog(repo storage.Repository, maxEntries int) *attemptLog {
	if maxEntries <= 0 {
		maxEntries = DefaultAttemptRetention
	}
	return &attemptLog{
		repo:       repo,
		maxEntries: maxEntries,
		pruneEvery: int64(attemptRetentionCheckThreshold(maxEntries)),
	}
}

// attemptRetentionCheckThreshold spaces retention checks at roughly a tenth
// of the cap so listing does not run on every append.
func attemptRetentionCheckThreshold(maxEntries int) int {
	n := maxEntries / 10
	if n < 1 {
		n = 1
	}
	if n > 500 {
		n = 500
	}
	return n
}

func (l *attemptLog) append(entry AttemptEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt == "" {
		entry.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	env, err := storage.MarshalPlain(entry)
	if err != nil {
		return err
	}
	if err := l.repo.Put(attemptNamespace, attemptRecordType, entry.ID, env); err != nil {
		return fmt.Errorf("appending attempt: %w", err)
	}
	if l.appends.Add(1)%l.pruneEvery == 0 {
		if err := l.prune(); err != nil {
			slog.Warn("attempt log: prune failed", "error", err)
		}
	}
	return nil
}

func (l *attemptLog) prune() error {
	entries, err := ListAttempts(l.repo, 0)
	if err != nil {
		return err
	}
	for _, e := range entries[min(len(entries), l.maxEntries):] {
		if err := l.repo.Delete(attemptNamespace, attemptRecordType, e.ID); err != nil && !storage.IsNotFound(err) {
			return err
		}
	}
	return nil
}

// ListAttempts returns stored attempts, newest first. A positive limit caps
// the result.
func ListAttempts(repo storage.Repository, limit int) ([]AttemptEntry, error) {
	ids, err := repo.List(attemptNamespace, attemptRecordType)
	if err != nil {
		return nil, err
	}
	entries := make([]AttemptEntry, 0, len(ids))
	for _, id := range ids {
		env, err := repo.Get(attemptNamespace, attemptRecordType, id)
		if err != nil {
			continue
		}
		var entry AttemptEntry
		if err := storage.UnmarshalPlain(env, &entry); err != nil {
			continue
		}
		entry.parseCreatedAt()
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].createdAtTime.After(entries[j].createdAtTime)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
