package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"segment-relay/internal/platform/metrics"
)

// Loop is the scan loop. It owns the watermark and the retry ledger and is
// the only caller of Select and Pipeline, so at most one segment is ever in
// flight.
type Loop struct {
	catalog  Catalog
	files    FileStore
	pipeline *Pipeline
	mark     *Watermark
	ledger   *Ledger
	policy   SelectPolicy
	interval time.Duration
	wake     <-chan struct{}
	log      *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// LoopConfig collects a Loop's collaborators. Wake and Metrics may be nil.
type LoopConfig struct {
	Catalog   Catalog
	Files     FileStore
	Pipeline  *Pipeline
	Watermark *Watermark
	Ledger    *Ledger
	Policy    SelectPolicy
	Interval  time.Duration
	Wake      <-chan struct{}
	Log       *slog.Logger
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// NewLoop returns a Loop for cfg.
func NewLoop(cfg LoopConfig) *Loop {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Loop{
		catalog:  cfg.Catalog,
		files:    cfg.Files,
		pipeline: cfg.Pipeline,
		mark:     cfg.Watermark,
		ledger:   cfg.Ledger,
		policy:   cfg.Policy,
		interval: cfg.Interval,
		wake:     cfg.Wake,
		log:      cfg.Log,
		metrics:  cfg.Metrics,
		now:      now,
	}
}

// Run executes cycles until ctx is cancelled, then returns nil. A failed
// cycle is logged and the loop carries on at the next interval.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("scan loop started", slog.Duration("interval", l.interval))
	for {
		if ctx.Err() != nil {
			l.log.Info("scan loop stopped")
			return nil
		}
		if err := l.safeCycle(ctx); err != nil {
			l.log.Error("scan cycle aborted", slog.String("error", err.Error()))
			if l.metrics != nil {
				l.metrics.IncCycleErrors()
			}
		}
		if !l.sleep(ctx) {
			l.log.Info("scan loop stopped")
			return nil
		}
	}
}

// Cycle runs one scan: list, prune, select, discard stale, process.
func (l *Loop) Cycle(ctx context.Context) error {
	now := l.now()
	segs, err := l.catalog.List(now)
	if err != nil {
		return err
	}

	if l.files != nil {
		for _, p := range l.ledger.Prune(l.files.Exists) {
			l.log.Debug("retry record pruned, file gone", slog.String("path", p))
		}
	}

	sel := Select(segs, l.mark.Last(), l.policy)
	for _, seg := range sel.ToDelete {
		l.pipeline.Discard(seg, "stale")
	}
	for _, seg := range sel.Held {
		l.log.Debug("segment held, recently modified",
			slog.String("path", seg.Path),
			slog.Duration("age", seg.Age))
	}
	if sel.ToProcess == nil {
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}

	outcome := l.pipeline.Process(ctx, *sel.ToProcess)
	l.log.Debug("cycle complete",
		slog.String("path", sel.ToProcess.Path),
		slog.String("outcome", outcome.String()))
	return nil
}

func (l *Loop) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in scan cycle: %v", r)
		}
	}()
	return l.Cycle(ctx)
}

// sleep waits one interval or until a wake signal. It reports false if ctx
// was cancelled.
func (l *Loop) sleep(ctx context.Context) bool {
	t := time.NewTimer(l.interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	case <-l.wake:
		return true
	}
}
