package relay

import (
	"context"
	"log/slog"
	"time"

	"segment-relay/internal/platform/metrics"
)

// Validator checks that a segment is a complete, well-formed media file.
// It must not modify the file.
type Validator interface {
	Validate(ctx context.Context, path string) Result
}

// Forwarder transfers a segment to the ingest destination.
type Forwarder interface {
	Forward(ctx context.Context, path, destination string) Result
}

// Pipeline runs one selected segment through validation, forwarding, retry
// bookkeeping and deletion.
type Pipeline struct {
	validator   Validator
	forwarder   Forwarder
	files       FileStore
	ledger      *Ledger
	mark        *Watermark
	policy      RetryPolicy
	destination string
	log         *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// PipelineConfig collects a Pipeline's collaborators. Metrics may be nil.
// Now defaults to time.Now.
type PipelineConfig struct {
	Validator   Validator
	Forwarder   Forwarder
	Files       FileStore
	Ledger      *Ledger
	Watermark   *Watermark
	Policy      RetryPolicy
	Destination string
	Log         *slog.Logger
	Metrics     *metrics.Metrics
	Now         func() time.Time
}

// NewPipeline returns a Pipeline for cfg.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		validator:   cfg.Validator,
		forwarder:   cfg.Forwarder,
		files:       cfg.Files,
		ledger:      cfg.Ledger,
		mark:        cfg.Watermark,
		policy:      cfg.Policy,
		destination: cfg.Destination,
		log:         cfg.Log,
		metrics:     cfg.Metrics,
		now:         now,
	}
}

// Process handles seg for this cycle and reports what happened to it.
func (p *Pipeline) Process(ctx context.Context, seg Segment) Outcome {
	if p.mark.IsStale(seg) {
		p.Discard(seg, "stale")
		return OutcomeStale
	}

	rec := p.ledger.Get(seg.Path)
	if rec.DiscardPending {
		return p.finishDiscard(seg, rec.Attempts)
	}
	now := p.now()
	if p.policy.ShouldSkip(rec, now) {
		p.log.Info("segment in retry cooldown",
			slog.String("path", seg.Path),
			slog.Int("attempts", rec.Attempts),
			slog.Duration("remaining", p.policy.Cooldown-now.Sub(rec.LastAttemptAt)))
		if p.metrics != nil {
			p.metrics.IncSkipped()
		}
		return OutcomeSkipped
	}
	attempt := p.policy.NextAttempt(rec, now)

	res := p.validator.Validate(ctx, seg.Path)
	if res.Kind == KindCanceled {
		p.log.Info("validation interrupted", slog.String("path", seg.Path))
		return OutcomeCanceled
	}
	if res.Kind == KindExec {
		// The validator never looked at the file; that says nothing about
		// the segment, so it is retried like a forward failure, never discarded.
		p.ledger.RecordFailure(seg.Path, attempt, p.now())
		p.log.Error("validator could not run, segment kept",
			slog.String("path", seg.Path),
			slog.Int("attempt", attempt),
			slog.String("reason", res.Kind.String()),
			slog.String("diagnostic", res.Diagnostic))
		return OutcomeValidatorFailed
	}
	if !res.OK {
		return p.validationFailed(seg, attempt, res)
	}

	start := p.now()
	res = p.forwarder.Forward(ctx, seg.Path, p.destination)
	if p.metrics != nil {
		p.metrics.ObserveForward(p.now().Sub(start))
	}
	if res.Kind == KindCanceled {
		p.log.Warn("forward interrupted, segment kept",
			slog.String("path", seg.Path),
			slog.String("diagnostic", res.Diagnostic))
		return OutcomeCanceled
	}
	if !res.OK {
		p.ledger.RecordFailure(seg.Path, attempt, p.now())
		p.log.Warn("forward failed",
			slog.String("path", seg.Path),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", p.policy.MaxRetries),
			slog.String("reason", res.Kind.String()),
			slog.String("diagnostic", res.Diagnostic))
		if p.metrics != nil {
			p.metrics.IncForwardFailures(res.Kind.String())
		}
		return OutcomeForwardFailed
	}

	p.mark.Advance(seg)
	if p.metrics != nil {
		p.metrics.IncForwarded()
		p.metrics.SetWatermark(p.mark.Last())
	}
	p.remove(seg, "forwarded")
	p.ledger.Clear(seg.Path)
	p.log.Info("segment forwarded",
		slog.String("path", seg.Path),
		slog.Time("modified_at", seg.ModifiedAt),
		slog.Int("attempt", attempt))
	return OutcomeForwarded
}

func (p *Pipeline) validationFailed(seg Segment, attempt int, res Result) Outcome {
	p.ledger.RecordFailure(seg.Path, attempt, p.now())
	if p.metrics != nil {
		p.metrics.IncValidationFailures()
	}
	if attempt < p.policy.MaxRetries {
		p.log.Warn("segment failed validation",
			slog.String("path", seg.Path),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", p.policy.MaxRetries),
			slog.String("reason", res.Kind.String()),
			slog.String("diagnostic", res.Diagnostic))
		return OutcomeInvalid
	}

	p.log.Error("segment failed validation repeatedly, discarding",
		slog.String("path", seg.Path),
		slog.Int("attempt", attempt),
		slog.String("reason", res.Kind.String()),
		slog.String("diagnostic", res.Diagnostic))
	return p.finishDiscard(seg, attempt)
}

// finishDiscard deletes a segment condemned by validation. If the delete
// fails the record is kept and marked so later passes retry only the delete.
func (p *Pipeline) finishDiscard(seg Segment, attempts int) Outcome {
	if err := p.remove(seg, "invalid"); err != nil {
		p.ledger.MarkDiscardPending(seg.Path, p.now())
		p.log.Warn("discard pending, segment will not be validated again",
			slog.String("path", seg.Path),
			slog.Int("attempts", attempts))
		return OutcomeDiscarded
	}
	p.ledger.Clear(seg.Path)
	if p.metrics != nil {
		p.metrics.IncDiscarded("invalid")
	}
	return OutcomeDiscarded
}

// Discard deletes seg without forwarding it and drops its ledger record.
func (p *Pipeline) Discard(seg Segment, reason string) {
	p.log.Info("segment discarded",
		slog.String("path", seg.Path),
		slog.String("reason", reason),
		slog.Time("modified_at", seg.ModifiedAt),
		slog.Time("watermark", p.mark.Last()))
	p.remove(seg, reason)
	p.ledger.Clear(seg.Path)
	if p.metrics != nil {
		p.metrics.IncDiscarded(reason)
	}
}

// remove deletes the file. A failed delete is logged and returned; a stale
// or forwarded file left behind is retried as stale on the next cycle.
func (p *Pipeline) remove(seg Segment, reason string) error {
	err := p.files.Remove(seg.Path)
	if err != nil {
		p.log.Error("delete segment failed",
			slog.String("path", seg.Path),
			slog.String("reason", reason),
			slog.String("error", err.Error()))
	}
	return err
}
