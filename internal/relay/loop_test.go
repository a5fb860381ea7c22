package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoop(h *harness, policy SelectPolicy) *Loop {
	return NewLoop(LoopConfig{
		Catalog:   h.files,
		Files:     h.files,
		Pipeline:  h.pipeline,
		Watermark: h.mark,
		Ledger:    h.ledger,
		Policy:    policy,
		Interval:  time.Millisecond,
		Log:       discardLogger(),
		Now:       h.clock.Now,
	})
}

// recordForwards makes the harness forwarder succeed and remember each path.
func recordForwards(h *harness) *[]string {
	var mu sync.Mutex
	var forwarded []string
	h.forwarder.onCall = func(_ context.Context, path string) Result {
		mu.Lock()
		defer mu.Unlock()
		forwarded = append(forwarded, path)
		return Succeeded()
	}
	return &forwarded
}

func TestLoop_forwards_in_order_exactly_once(t *testing.T) {
	h := newHarness(3, 5*time.Minute)
	forwarded := recordForwards(h)
	for i := 0; i < 5; i++ {
		h.files.add(fmt.Sprintf("/seg%02d.mp4", i), t0.Add(time.Duration(i)*time.Minute))
	}
	h.clock.now = t0.Add(time.Hour)
	loop := newTestLoop(h, SelectPolicy{RecentCutoff: time.Minute})

	for i := 0; i < 10; i++ {
		require.NoError(t, loop.Cycle(context.Background()))
		h.clock.Advance(5 * time.Second)
	}

	assert.Equal(t, []string{"/seg00.mp4", "/seg01.mp4", "/seg02.mp4", "/seg03.mp4", "/seg04.mp4"}, *forwarded)
	assert.Equal(t, t0.Add(4*time.Minute), h.mark.Last())
}

func TestLoop_one_segment_per_cycle(t *testing.T) {
	h := newHarness(3, 5*time.Minute)
	forwarded := recordForwards(h)
	h.files.add("/a.mp4", t0)
	h.files.add("/b.mp4", t0.Add(time.Minute))
	h.clock.now = t0.Add(time.Hour)
	loop := newTestLoop(h, SelectPolicy{})

	require.NoError(t, loop.Cycle(context.Background()))
	assert.Equal(t, []string{"/a.mp4"}, *forwarded)
}

func TestLoop_stale_file_reappearing_is_deleted(t *testing.T) {
	h := newHarness(3, 5*time.Minute)
	forwarded := recordForwards(h)
	h.files.add("/new.mp4", t0.Add(time.Minute))
	h.clock.now = t0.Add(time.Hour)
	loop := newTestLoop(h, SelectPolicy{})

	require.NoError(t, loop.Cycle(context.Background()))
	h.files.add("/old.mp4", t0)
	require.NoError(t, loop.Cycle(context.Background()))

	assert.Equal(t, []string{"/new.mp4"}, *forwarded)
	assert.True(t, h.files.wasRemoved("/old.mp4"))
}

func TestLoop_recent_segment_not_selected_on_first_sight(t *testing.T) {
	h := newHarness(3, 5*time.Minute)
	h.clock.now = t0
	h.files.add("/fresh.mp4", t0.Add(-10*time.Second))
	loop := newTestLoop(h, SelectPolicy{RecentCutoff: time.Minute})

	require.NoError(t, loop.Cycle(context.Background()))
	assert.Equal(t, 0, h.validator.callCount("/fresh.mp4"))

	h.clock.Advance(time.Minute)
	require.NoError(t, loop.Cycle(context.Background()))
	assert.Equal(t, 1, h.forwarder.callCount("/fresh.mp4"))
}

func TestLoop_prunes_orphaned_records(t *testing.T) {
	h := newHarness(3, 5*time.Minute)
	h.ledger.RecordFailure("/vanished.mp4", 2, t0)
	loop := newTestLoop(h, SelectPolicy{})

	require.NoError(t, loop.Cycle(context.Background()))
	assert.Equal(t, 0, h.ledger.Len())
}

type failingCatalog struct{ err error }

func (c failingCatalog) List(time.Time) ([]Segment, error) { return nil, c.err }

type panickingCatalog struct{}

func (panickingCatalog) List(time.Time) ([]Segment, error) { panic("boom") }

func TestLoop_Cycle_propagates_list_error(t *testing.T) {
	h := newHarness(3, 5*time.Minute)
	loop := newTestLoop(h, SelectPolicy{})
	loop.catalog = failingCatalog{err: errors.New("permission denied")}

	assert.Error(t, loop.Cycle(context.Background()))
}

func TestLoop_Run_survives_panics_and_stops_on_cancel(t *testing.T) {
	h := newHarness(3, 5*time.Minute)
	loop := newTestLoop(h, SelectPolicy{})
	loop.catalog = panickingCatalog{}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestLoop_Run_wakes_early(t *testing.T) {
	h := newHarness(3, 5*time.Minute)
	forwarded := recordForwards(h)
	h.clock.now = t0.Add(time.Hour)
	wake := make(chan struct{}, 1)
	loop := newTestLoop(h, SelectPolicy{})
	loop.interval = time.Hour
	loop.wake = wake

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	h.files.add("/a.mp4", t0)
	wake <- struct{}{}

	require.Eventually(t, func() bool { return h.forwarder.callCount("/a.mp4") == 1 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []string{"/a.mp4"}, *forwarded)
}
