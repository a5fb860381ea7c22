package relay

import (
	"sync"
	"time"
)

// Watermark holds the modification time of the most recently forwarded
// segment. It never moves backwards. The zero value means nothing has been
// forwarded yet.
type Watermark struct {
	mu   sync.RWMutex
	last time.Time
}

// Last returns the current watermark.
func (w *Watermark) Last() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last
}

// IsStale reports whether seg is at or behind the watermark.
func (w *Watermark) IsStale(seg Segment) bool {
	return isStale(seg, w.Last())
}

// Advance raises the watermark to seg.ModifiedAt if that is later.
// Call only after seg was confirmed forwarded.
func (w *Watermark) Advance(seg Segment) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if seg.ModifiedAt.After(w.last) {
		w.last = seg.ModifiedAt
	}
}

func isStale(seg Segment, mark time.Time) bool {
	return !mark.IsZero() && !seg.ModifiedAt.After(mark)
}
