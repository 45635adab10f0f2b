package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	ProofsIssued     prometheus.Counter
	Verifications    *prometheus.CounterVec
	SnapshotsCreated prometheus.Counter
	SnapshotSize     prometheus.Histogram
	AuditRuns        *prometheus.CounterVec
	ArchivePublishes *prometheus.CounterVec
}

// New creates and registers all collectors with a fresh registry and
// returns both. Using a dedicated registry keeps tests from tripping
// over duplicate registration.
func New() (*Metrics, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	m := &Metrics{
		ProofsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "certus_proofs_issued_total",
			Help: "Total number of proofs issued.",
		}),
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certus_verifications_total",
			Help: "Verification attempts by resolving source and outcome.",
		}, []string{"source", "outcome"}),
		SnapshotsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "certus_snapshots_created_total",
			Help: "Total number of snapshot batches created.",
		}),
		SnapshotSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "certus_snapshot_proofs",
			Help:    "Number of proofs per snapshot batch.",
			Buckets: []float64{1, 10, 100, 500, 1000, 2000},
		}),
		AuditRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certus_audit_runs_total",
			Help: "Recovery audit runs by outcome.",
		}, []string{"outcome"}),
		ArchivePublishes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certus_archive_publishes_total",
			Help: "Archive publish attempts by outcome.",
		}, []string{"outcome"}),
	}
	return m, registry
}

func (m *Metrics) ObserveVerification(source, outcome string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) ObserveSnapshot(count int) {
	if m == nil {
		return
	}
	m.SnapshotsCreated.Inc()
	m.SnapshotSize.Observe(float64(count))
}

func (m *Metrics) ObserveAuditRun(outcome string) {
	if m == nil {
		return
	}
	m.AuditRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveArchivePublish(outcome string) {
	if m == nil {
		return
	}
	m.ArchivePublishes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementProofsIssued() {
	if m == nil {
		return
	}
	m.ProofsIssued.Inc()
}
