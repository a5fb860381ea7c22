package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryLedgerStore_GetSetDelete(t *testing.T) {
	store := NewInMemoryLedgerStore()

	_, ok := store.Get("/a.mp4")
	assert.False(t, ok, "empty store should not find a record")

	rec := RetryRecord{Attempts: 2, LastAttemptAt: t0}
	store.Set("/a.mp4", rec)
	got, ok := store.Get("/a.mp4")
	require.True(t, ok)
	assert.Equal(t, rec, got)

	store.Set("/a.mp4", RetryRecord{Attempts: 3, LastAttemptAt: t0})
	got, _ = store.Get("/a.mp4")
	assert.Equal(t, 3, got.Attempts, "Set should replace")

	store.Delete("/a.mp4")
	assert.Empty(t, store.Paths())
}

func TestLedger_Get_absent_is_zero(t *testing.T) {
	l := NewLedger()
	rec := l.Get("/missing.mp4")
	assert.Equal(t, 0, rec.Attempts)
	assert.True(t, rec.LastAttemptAt.IsZero())
}

func TestLedger_RecordFailure_and_Clear(t *testing.T) {
	l := NewLedger()
	l.RecordFailure("/a.mp4", 1, t0)
	l.RecordFailure("/a.mp4", 2, t0.Add(time.Second))

	rec := l.Get("/a.mp4")
	assert.Equal(t, 2, rec.Attempts)
	assert.Equal(t, t0.Add(time.Second), rec.LastAttemptAt)
	assert.Equal(t, 1, l.Len())

	l.Clear("/a.mp4")
	l.Clear("/a.mp4")
	assert.Equal(t, 0, l.Len())
}

func TestLedger_Prune(t *testing.T) {
	l := NewLedger()
	l.RecordFailure("/b.mp4", 1, t0)
	l.RecordFailure("/a.mp4", 1, t0)
	l.RecordFailure("/keep.mp4", 1, t0)

	pruned := l.Prune(func(p string) bool { return p == "/keep.mp4" })
	assert.Equal(t, []string{"/a.mp4", "/b.mp4"}, pruned)
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, 1, l.Get("/keep.mp4").Attempts)
}

func TestLedger_Snapshot_sorted(t *testing.T) {
	store := NewInMemoryLedgerStore()
	l := NewLedgerWithStore(store)
	l.RecordFailure("/z.mp4", 2, t0)
	l.RecordFailure("/a.mp4", 1, t0)

	snap := l.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "/a.mp4", snap[0].Path)
	assert.Equal(t, "/z.mp4", snap[1].Path)
	assert.Equal(t, 2, snap[1].Attempts)

	// State lives in the injected store.
	_, ok := store.Get("/z.mp4")
	assert.True(t, ok)
}

func TestRetryPolicy(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, Cooldown: 5 * time.Minute}
	tests := []struct {
		name     string
		rec      RetryRecord
		now      time.Time
		wantSkip bool
		wantNext int
	}{
		{"no record", RetryRecord{}, t0, false, 1},
		{"under budget", RetryRecord{Attempts: 2, LastAttemptAt: t0}, t0, false, 3},
		{"budget spent in cooldown", RetryRecord{Attempts: 3, LastAttemptAt: t0}, t0.Add(time.Minute), true, 4},
		{"budget spent cooldown just elapsed", RetryRecord{Attempts: 3, LastAttemptAt: t0}, t0.Add(5 * time.Minute), false, 1},
		{"over budget cooldown elapsed", RetryRecord{Attempts: 7, LastAttemptAt: t0}, t0.Add(time.Hour), false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantSkip, p.ShouldSkip(tt.rec, tt.now))
			if !tt.wantSkip {
				assert.Equal(t, tt.wantNext, p.NextAttempt(tt.rec, tt.now))
			}
		})
	}
}
