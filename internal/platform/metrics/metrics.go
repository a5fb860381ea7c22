package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the segment relay.
type Metrics struct {
	registry                *prometheus.Registry
	requestsTotal           prometheus.Counter
	errorsTotal             prometheus.Counter
	segmentsForwardedTotal  prometheus.Counter
	segmentsDiscardedTotal  *prometheus.CounterVec
	validationFailuresTotal prometheus.Counter
	forwardFailuresTotal    *prometheus.CounterVec
	segmentsSkippedTotal    prometheus.Counter
	cycleErrorsTotal        prometheus.Counter
	ledgerEntries           prometheus.Gauge
	watermarkSeconds        prometheus.Gauge
	forwardDuration         prometheus.Histogram
}

// New creates and registers Prometheus metrics for the relay.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_http_requests_total",
		Help: "Total number of HTTP requests received by the status server",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_http_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	segmentsForwardedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_segments_forwarded_total",
		Help: "Total number of segments forwarded to the ingest endpoint and deleted",
	})
	segmentsDiscardedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_segments_discarded_total",
		Help: "Total number of segments deleted without being forwarded",
	}, []string{"reason"})
	validationFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_validation_failures_total",
		Help: "Total number of segments the validator reported incomplete or corrupt",
	})
	forwardFailuresTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_forward_failures_total",
		Help: "Total number of failed forward attempts",
	}, []string{"kind"})
	segmentsSkippedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_segments_skipped_total",
		Help: "Total number of cycles a selected segment was skipped for retry cooldown",
	})
	cycleErrorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_cycle_errors_total",
		Help: "Total number of scan cycles aborted by an internal error",
	})
	ledgerEntries := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_retry_ledger_entries",
		Help: "Number of segments currently tracked in the retry ledger",
	})
	watermarkSeconds := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_watermark_timestamp_seconds",
		Help: "Modification time of the most recently forwarded segment",
	})
	forwardDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "relay_forward_duration_seconds",
		Help:    "Wall time of forwarder invocations",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		segmentsForwardedTotal,
		segmentsDiscardedTotal,
		validationFailuresTotal,
		forwardFailuresTotal,
		segmentsSkippedTotal,
		cycleErrorsTotal,
		ledgerEntries,
		watermarkSeconds,
		forwardDuration,
	)

	return &Metrics{
		registry:                registry,
		requestsTotal:           requestsTotal,
		errorsTotal:             errorsTotal,
		segmentsForwardedTotal:  segmentsForwardedTotal,
		segmentsDiscardedTotal:  segmentsDiscardedTotal,
		validationFailuresTotal: validationFailuresTotal,
		forwardFailuresTotal:    forwardFailuresTotal,
		segmentsSkippedTotal:    segmentsSkippedTotal,
		cycleErrorsTotal:        cycleErrorsTotal,
		ledgerEntries:           ledgerEntries,
		watermarkSeconds:        watermarkSeconds,
		forwardDuration:         forwardDuration,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncForwarded increments the forwarded segments counter.
func (m *Metrics) IncForwarded() {
	m.segmentsForwardedTotal.Inc()
}

// IncDiscarded increments the discarded segments counter for reason
// ("stale" or "invalid").
func (m *Metrics) IncDiscarded(reason string) {
	m.segmentsDiscardedTotal.WithLabelValues(reason).Inc()
}

// IncValidationFailures increments the validation failure counter.
func (m *Metrics) IncValidationFailures() {
	m.validationFailuresTotal.Inc()
}

// IncForwardFailures increments the forward failure counter for kind.
func (m *Metrics) IncForwardFailures(kind string) {
	m.forwardFailuresTotal.WithLabelValues(kind).Inc()
}

// IncSkipped increments the cooldown skip counter.
func (m *Metrics) IncSkipped() {
	m.segmentsSkippedTotal.Inc()
}

// IncCycleErrors increments the aborted cycle counter.
func (m *Metrics) IncCycleErrors() {
	m.cycleErrorsTotal.Inc()
}

// SetLedgerEntries sets the retry ledger gauge.
func (m *Metrics) SetLedgerEntries(n int) {
	m.ledgerEntries.Set(float64(n))
}

// SetWatermark sets the watermark gauge. A zero time is reported as 0.
func (m *Metrics) SetWatermark(t time.Time) {
	if t.IsZero() {
		m.watermarkSeconds.Set(0)
		return
	}
	m.watermarkSeconds.Set(float64(t.UnixNano()) / 1e9)
}

// ObserveForward records the duration of one forwarder invocation.
func (m *Metrics) ObserveForward(d time.Duration) {
	m.forwardDuration.Observe(d.Seconds())
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. ledger size).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
