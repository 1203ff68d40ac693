package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the trail core.
type Metrics struct {
	EventsAppended  *prometheus.CounterVec
	AppendConflicts prometheus.Counter
	AppendLatency   prometheus.Histogram

	VerifyRuns       *prometheus.CounterVec
	TamperDetections prometheus.Counter
	VerifyLatency    prometheus.Histogram

	RetentionDenials      *prometheus.CounterVec
	DeletionsAuthorized   prometheus.Counter
	EnvelopesPurged       prometheus.Counter
	CertificatesGenerated prometheus.Counter

	AnnounceFailures prometheus.Counter
	EndpointLatency  *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		EventsAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sigil_trail_events_appended_total",
			Help: "Total audit events appended, labeled by event type",
		}, []string{"event_type"}),
		AppendConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sigil_trail_append_conflicts_total",
			Help: "Total append attempts that raced past serialization and were rejected",
		}),
		AppendLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigil_trail_append_duration_seconds",
			Help:    "Duration of ledger appends including hash computation and persistence",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		VerifyRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sigil_trail_verify_runs_total",
			Help: "Total chain verification runs, labeled by outcome",
		}, []string{"outcome"}), // outcome: "valid", "invalid"
		TamperDetections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sigil_trail_tamper_detections_total",
			Help: "Total verification runs that found a chain mismatch",
		}),
		VerifyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigil_trail_verify_duration_seconds",
			Help:    "Duration of full-chain verification",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}),
		RetentionDenials: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sigil_retention_denials_total",
			Help: "Total deletion authorizations denied, labeled by reason",
		}, []string{"reason"}), // reason: "legal_hold", "retention_not_expired"
		DeletionsAuthorized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sigil_retention_deletions_authorized_total",
			Help: "Total deletion authorizations granted",
		}),
		EnvelopesPurged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sigil_retention_envelopes_purged_total",
			Help: "Total envelope chains purged after authorization",
		}),
		CertificatesGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sigil_certificates_generated_total",
			Help: "Total completion certificates generated",
		}),
		AnnounceFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sigil_trail_announce_failures_total",
			Help: "Total event announcements that failed Kafka delivery",
		}),
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sigil_endpoint_latency_seconds",
			Help:    "Latency of HTTP endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

// ObserveAppend records one completed append. All observers are nil-safe so
// services can run without metrics in tests.
func (m *Metrics) ObserveAppend(eventType string, seconds float64) {
	if m != nil {
		m.EventsAppended.WithLabelValues(eventType).Inc()
		m.AppendLatency.Observe(seconds)
	}
}

// IncAppendConflict records a rejected concurrent append.
func (m *Metrics) IncAppendConflict() {
	if m != nil {
		m.AppendConflicts.Inc()
	}
}

// ObserveVerify records one verification run.
func (m *Metrics) ObserveVerify(valid bool, seconds float64) {
	if m == nil {
		return
	}
	outcome := "valid"
	if !valid {
		outcome = "invalid"
		m.TamperDetections.Inc()
	}
	m.VerifyRuns.WithLabelValues(outcome).Inc()
	m.VerifyLatency.Observe(seconds)
}

// IncRetentionDenial records a denied deletion authorization.
func (m *Metrics) IncRetentionDenial(reason string) {
	if m != nil {
		m.RetentionDenials.WithLabelValues(reason).Inc()
	}
}

// IncDeletionAuthorized records a granted deletion authorization.
func (m *Metrics) IncDeletionAuthorized() {
	if m != nil {
		m.DeletionsAuthorized.Inc()
	}
}

// IncEnvelopePurged records a completed purge.
func (m *Metrics) IncEnvelopePurged() {
	if m != nil {
		m.EnvelopesPurged.Inc()
	}
}

// IncCertificateGenerated records a generated certificate.
func (m *Metrics) IncCertificateGenerated() {
	if m != nil {
		m.CertificatesGenerated.Inc()
	}
}

// IncAnnounceFailure records a failed Kafka announcement.
func (m *Metrics) IncAnnounceFailure() {
	if m != nil {
		m.AnnounceFailures.Inc()
	}
}

// ObserveEndpointLatency records HTTP endpoint latency.
func (m *Metrics) ObserveEndpointLatency(endpoint string, seconds float64) {
	if m != nil {
		m.EndpointLatency.WithLabelValues(endpoint).Observe(seconds)
	}
}
