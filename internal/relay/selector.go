package relay

import (
	"sort"
	"time"
)

// SelectPolicy configures the admission selector.
type SelectPolicy struct {
	// RecentCutoff holds back candidates younger than this; the device is
	// presumed to still be writing them.
	RecentCutoff time.Duration

	// HoldNewest never processes the newest non-stale file, even once it is
	// past RecentCutoff, for devices that keep the current file open.
	HoldNewest bool
}

// Selection is the selector's decision for one cycle.
type Selection struct {
	// ToDelete are stale segments, to be deleted without forwarding.
	ToDelete []Segment
	// Held are candidates too recent to process this cycle.
	Held []Segment
	// ToProcess is the single oldest eligible segment, or nil.
	ToProcess *Segment
}

// Select decides what to do with the listed segments given the watermark.
// It does not mutate segs and has no side effects; calling it twice with
// the same inputs returns the same Selection.
func Select(segs []Segment, mark time.Time, policy SelectPolicy) Selection {
	ordered := make([]Segment, len(segs))
	copy(ordered, segs)
	sortSegments(ordered)

	var sel Selection
	candidates := make([]Segment, 0, len(ordered))
	for _, seg := range ordered {
		switch {
		case isStale(seg, mark):
			sel.ToDelete = append(sel.ToDelete, seg)
		case seg.Age < policy.RecentCutoff:
			sel.Held = append(sel.Held, seg)
		default:
			candidates = append(candidates, seg)
		}
	}

	// Held segments are all newer than every candidate, so the newest file
	// is already held unless Held is empty.
	if policy.HoldNewest && len(candidates) > 0 && len(sel.Held) == 0 {
		newest := candidates[len(candidates)-1]
		sel.Held = append(sel.Held, newest)
		candidates = candidates[:len(candidates)-1]
	}

	if len(candidates) == 0 {
		return sel
	}
	oldest := candidates[0]
	sel.ToProcess = &oldest
	return sel
}

// sortSegments orders segments by ModifiedAt ascending, ties by path.
func sortSegments(segs []Segment) {
	sort.SliceStable(segs, func(i, j int) bool {
		if !segs[i].ModifiedAt.Equal(segs[j].ModifiedAt) {
			return segs[i].ModifiedAt.Before(segs[j].ModifiedAt)
		}
		return segs[i].Path < segs[j].Path
	})
}
