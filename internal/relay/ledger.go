package relay

import (
	"sort"
	"sync"
	"time"
)

// Ledger is the retry ledger: per-path failure counts and last attempt times.
// It is written only by the scan loop; the mutex exists for readers on the
// status server.
type Ledger struct {
	mu    sync.RWMutex
	store LedgerStore
}

// NewLedger returns a Ledger backed by an in-memory store.
func NewLedger() *Ledger {
	return NewLedgerWithStore(NewInMemoryLedgerStore())
}

// NewLedgerWithStore returns a Ledger that uses the given store.
func NewLedgerWithStore(store LedgerStore) *Ledger {
	return &Ledger{store: store}
}

// Get returns the record for path, or the zero record if there is none.
func (l *Ledger) Get(path string) RetryRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, _ := l.store.Get(path)
	return rec
}

// RecordFailure stores attempt as the attempt count for path.
func (l *Ledger) RecordFailure(path string, attempt int, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.store.Set(path, RetryRecord{Attempts: attempt, LastAttemptAt: now})
}

// MarkDiscardPending flags the record for path so the next pass only retries
// the delete. A missing record is created.
func (l *Ledger) MarkDiscardPending(path string, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, _ := l.store.Get(path)
	rec.DiscardPending = true
	rec.LastAttemptAt = now
	l.store.Set(path, rec)
}

// Clear removes the record for path. Clearing an absent path is a no-op.
func (l *Ledger) Clear(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.store.Delete(path)
}

// Prune removes records whose file no longer exists and returns the pruned
// paths in sorted order.
func (l *Ledger) Prune(exists func(path string) bool) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var pruned []string
	for _, p := range l.store.Paths() {
		if !exists(p) {
			l.store.Delete(p)
			pruned = append(pruned, p)
		}
	}
	sort.Strings(pruned)
	return pruned
}

// Len returns the number of tracked paths.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.store.Paths())
}

// Snapshot returns a copy of every record sorted by path.
func (l *Ledger) Snapshot() []LedgerEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	paths := l.store.Paths()
	sort.Strings(paths)

	entries := make([]LedgerEntry, 0, len(paths))
	for _, p := range paths {
		rec, ok := l.store.Get(p)
		if !ok {
			continue
		}
		entries = append(entries, LedgerEntry{
			Path:           p,
			Attempts:       rec.Attempts,
			LastAttemptAt:  rec.LastAttemptAt,
			DiscardPending: rec.DiscardPending,
		})
	}
	return entries
}

// RetryPolicy bounds attempts per segment.
type RetryPolicy struct {
	MaxRetries int
	Cooldown   time.Duration
}

// ShouldSkip reports whether a segment with rec must sit out this cycle: its
// retry budget is spent and the cooldown has not yet elapsed.
func (p RetryPolicy) ShouldSkip(rec RetryRecord, now time.Time) bool {
	return rec.Attempts >= p.MaxRetries && now.Sub(rec.LastAttemptAt) < p.Cooldown
}

// NextAttempt returns the attempt number for the next try. A spent budget
// whose cooldown has elapsed starts over at 1.
func (p RetryPolicy) NextAttempt(rec RetryRecord, now time.Time) int {
	if rec.Attempts >= p.MaxRetries && now.Sub(rec.LastAttemptAt) >= p.Cooldown {
		return 1
	}
	return rec.Attempts + 1
}
