package relay

import "time"

// Segment is one recorded file in the watch tree.
type Segment struct {
	Path       string
	ModifiedAt time.Time

	// Age is now - ModifiedAt as of the cycle that listed the segment.
	// It is recomputed on every listing and must not be carried across cycles.
	Age time.Duration
}

// RetryRecord tracks failed attempts for one segment path.
type RetryRecord struct {
	Attempts      int
	LastAttemptAt time.Time

	// DiscardPending is set when a segment was condemned but deleting it
	// failed; the next pass retries the delete instead of validating again.
	DiscardPending bool
}

// LedgerEntry is a RetryRecord paired with its path, used for snapshots.
type LedgerEntry struct {
	Path           string    `json:"path"`
	Attempts       int       `json:"attempts"`
	LastAttemptAt  time.Time `json:"last_attempt_at"`
	DiscardPending bool      `json:"discard_pending,omitempty"`
}

// FailureKind classifies why an external call did not succeed.
type FailureKind int

const (
	KindNone FailureKind = iota
	// KindRejected: the process ran and reported the segment invalid or the
	// transfer failed.
	KindRejected
	// KindTimeout: the call exceeded its ceiling and the process was killed.
	KindTimeout
	// KindCanceled: the caller's context was cancelled (shutdown).
	KindCanceled
	// KindExec: the process could not be started.
	KindExec
)

func (k FailureKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindRejected:
		return "rejected"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	case KindExec:
		return "exec"
	default:
		return "unknown"
	}
}

// Result is what the Validator and Forwarder boundaries return instead of
// an error: success, a failure kind, and human readable diagnostics.
type Result struct {
	OK         bool
	Kind       FailureKind
	Diagnostic string
}

// Succeeded returns a successful Result.
func Succeeded() Result { return Result{OK: true} }

// Failed returns a failed Result of the given kind.
func Failed(kind FailureKind, diagnostic string) Result {
	return Result{Kind: kind, Diagnostic: diagnostic}
}

// Outcome is the disposition of a segment after one pipeline pass.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeSkipped
	OutcomeInvalid
	OutcomeValidatorFailed
	OutcomeDiscarded
	OutcomeForwarded
	OutcomeForwardFailed
	OutcomeStale
	OutcomeCanceled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeValidatorFailed:
		return "validator_failed"
	case OutcomeDiscarded:
		return "discarded"
	case OutcomeForwarded:
		return "forwarded"
	case OutcomeForwardFailed:
		return "forward_failed"
	case OutcomeStale:
		return "stale"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}
