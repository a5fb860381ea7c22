package relay

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// clock is a settable time source.
type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// fakeFiles is an in-memory FileStore and Catalog.
type fakeFiles struct {
	mu      sync.Mutex
	files   map[string]time.Time
	removed []string
	failRm  map[string]bool
	settle  time.Duration
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{files: map[string]time.Time{}, failRm: map[string]bool{}}
}

func (f *fakeFiles) add(path string, mod time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = mod
}

func (f *fakeFiles) Remove(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRm[path] {
		return io.ErrUnexpectedEOF
	}
	delete(f.files, path)
	f.removed = append(f.removed, path)
	return nil
}

func (f *fakeFiles) Exists(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[path]
	return ok
}

func (f *fakeFiles) List(now time.Time) ([]Segment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var segs []Segment
	for p, mod := range f.files {
		if age := now.Sub(mod); age >= f.settle {
			segs = append(segs, Segment{Path: p, ModifiedAt: mod, Age: age})
		}
	}
	sortSegments(segs)
	return segs, nil
}

func (f *fakeFiles) wasRemoved(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.removed {
		if p == path {
			return true
		}
	}
	return false
}

// scripted returns queued results per path, falling back to def.
type scripted struct {
	mu     sync.Mutex
	queue  map[string][]Result
	def    Result
	calls  []string
	onCall func(ctx context.Context, path string) Result
}

func newScripted(def Result) *scripted {
	return &scripted{queue: map[string][]Result{}, def: def}
}

func (s *scripted) push(path string, rs ...Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue[path] = append(s.queue[path], rs...)
}

func (s *scripted) next(ctx context.Context, path string) Result {
	s.mu.Lock()
	s.calls = append(s.calls, path)
	if q := s.queue[path]; len(q) > 0 {
		s.queue[path] = q[1:]
		s.mu.Unlock()
		return q[0]
	}
	hook := s.onCall
	s.mu.Unlock()
	if hook != nil {
		return hook(ctx, path)
	}
	return s.def
}

func (s *scripted) Validate(ctx context.Context, path string) Result { return s.next(ctx, path) }

func (s *scripted) Forward(ctx context.Context, path, _ string) Result { return s.next(ctx, path) }

func (s *scripted) callCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.calls {
		if p == path {
			n++
		}
	}
	return n
}

type harness struct {
	clock     *clock
	files     *fakeFiles
	validator *scripted
	forwarder *scripted
	ledger    *Ledger
	mark      *Watermark
	pipeline  *Pipeline
}

func newHarness(maxRetries int, cooldown time.Duration) *harness {
	h := &harness{
		clock:     &clock{now: t0},
		files:     newFakeFiles(),
		validator: newScripted(Succeeded()),
		forwarder: newScripted(Succeeded()),
		ledger:    NewLedger(),
		mark:      &Watermark{},
	}
	h.pipeline = NewPipeline(PipelineConfig{
		Validator:   h.validator,
		Forwarder:   h.forwarder,
		Files:       h.files,
		Ledger:      h.ledger,
		Watermark:   h.mark,
		Policy:      RetryPolicy{MaxRetries: maxRetries, Cooldown: cooldown},
		Destination: "rtmp://ingest.test/live/key",
		Log:         discardLogger(),
		Now:         h.clock.Now,
	})
	return h
}

func (h *harness) segment(path string, mod time.Time) Segment {
	h.files.add(path, mod)
	return Segment{Path: path, ModifiedAt: mod, Age: h.clock.now.Sub(mod)}
}
