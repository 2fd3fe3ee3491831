package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records pipeline counters on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	snapshotsDropped prometheus.Counter
	periodsSkipped   *prometheus.CounterVec
	resolverLookups  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batteryusage_pipeline_runs_total",
			Help: "Total pipeline runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "batteryusage_pipeline_run_duration_seconds",
			Help:    "Histogram of pipeline run durations.",
			Buckets: prometheus.DefBuckets,
		}),
		snapshotsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batteryusage_snapshots_dropped_total",
			Help: "Total malformed snapshot records dropped during ingestion.",
		}),
		periodsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batteryusage_periods_skipped_total",
			Help: "Total periods skipped while assembling usage maps, by reason.",
		}, []string{"reason"}),
		resolverLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batteryusage_resolver_lookups_total",
			Help: "Total package lookups by result (hit, miss, unresolved).",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.runsTotal, m.runDuration, m.snapshotsDropped, m.periodsSkipped, m.resolverLookups)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveRun(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) SnapshotsDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.snapshotsDropped.Add(float64(n))
}

func (m *Metrics) PeriodSkipped(reason string) {
	if m == nil {
		return
	}
	m.periodsSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) ResolverLookup(result string) {
	if m == nil {
		return
	}
	m.resolverLookups.WithLabelValues(result).Inc()
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
