package observability

import (
	"time"

	"github.com/boddenberg/tireshop-analytics-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Ingest outcomes, used as the "outcome" label of tireshop_ingest_rows_total.
const (
	OutcomeRead           = "read"
	OutcomeAccepted       = "accepted"
	OutcomeDroppedNoDate  = "dropped_no_date"
	OutcomeDroppedCutoff  = "dropped_cutoff"
	OutcomeUnattributable = "unattributable"
	OutcomeDateCorrected  = "date_corrected"
	OutcomeCostEstimated  = "cost_estimated"
)

const ingestRowsName = "tireshop_ingest_rows_total"

// ReportCache is the cache label of the report result cache.
const ReportCache = "reports"

// Metrics holds all Prometheus metrics of the service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	ingestRows      *prometheus.CounterVec
	invoices        *prometheus.GaugeVec
	snapshotLoaded  prometheus.Gauge
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tireshop_request_duration_seconds",
				Help:    "Duration of report requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tireshop_requests_total",
				Help: "Total report requests processed.",
			},
			[]string{"status"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tireshop_external_errors_total",
				Help: "Total errors fetching remote sources.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tireshop_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tireshop_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		ingestRows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: ingestRowsName,
				Help: "Source rows by load outcome.",
			},
			[]string{"source", "outcome"},
		),
		invoices: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tireshop_snapshot_invoices",
				Help: "Invoices reconstructed per source in the current snapshot.",
			},
			[]string{"source"},
		),
		snapshotLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tireshop_snapshot_loaded_timestamp_seconds",
				Help: "Unix time the current snapshot finished loading.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrRequest increments the request counter with a status label.
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordLoad adds one source's load report to the ingest counters.
func (m *Metrics) RecordLoad(r domain.LoadReport) {
	add := func(outcome string, n int) {
		m.ingestRows.WithLabelValues(r.Source, outcome).Add(float64(n))
	}
	add(OutcomeRead, r.RowsRead)
	add(OutcomeAccepted, r.Accepted)
	add(OutcomeDroppedNoDate, r.DroppedNoDate)
	add(OutcomeDroppedCutoff, r.DroppedCutoff)
	add(OutcomeUnattributable, r.Unattributable)
	add(OutcomeDateCorrected, r.DatesCorrected)
	add(OutcomeCostEstimated, r.CostsEstimated)
	m.invoices.WithLabelValues(r.Source).Set(float64(r.Invoices))
}

// MarkSnapshotLoaded stamps the snapshot load time.
func (m *Metrics) MarkSnapshotLoaded(t time.Time) {
	m.snapshotLoaded.Set(float64(t.Unix()))
}

// IngestSnapshot returns the ingest counters summed over all sources, for the
// GET /v1/metrics/ingest endpoint.
func (m *Metrics) IngestSnapshot() *domain.IngestMetrics {
	byOutcome := m.sumByLabel(ingestRowsName, "outcome")

	read := byOutcome[OutcomeRead]
	dropped := byOutcome[OutcomeDroppedNoDate] + byOutcome[OutcomeDroppedCutoff]

	hits := getCounterValue(m.cacheHits, ReportCache)
	misses := getCounterValue(m.cacheMisses, ReportCache)

	dropRate := float64(0)
	cacheHitRate := float64(0)
	if read > 0 {
		dropRate = dropped / read
	}
	if hits+misses > 0 {
		cacheHitRate = hits / (hits + misses)
	}

	return &domain.IngestMetrics{
		RowsRead:       int64(read),
		RowsAccepted:   int64(byOutcome[OutcomeAccepted]),
		RowsDropped:    int64(dropped),
		Unattributable: int64(byOutcome[OutcomeUnattributable]),
		DatesCorrected: int64(byOutcome[OutcomeDateCorrected]),
		CostsEstimated: int64(byOutcome[OutcomeCostEstimated]),
		DropRate:       dropRate,
		CacheHitRate:   cacheHitRate,
		Period:         "since_start",
	}
}

// sumByLabel gathers the counter family name and sums its samples grouped by
// the value of label.
func (m *Metrics) sumByLabel(name, label string) map[string]float64 {
	out := make(map[string]float64)
	families, err := m.Registry.Gather()
	if err != nil {
		return out
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == label {
					out[lp.GetValue()] += metric.GetCounter().GetValue()
				}
			}
		}
	}
	return out
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
