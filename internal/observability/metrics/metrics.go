package metrics

import "github.com/prometheus/client_golang/prometheus"

// ExtractionMetrics exposes counters/histograms for extraction, fetch and enrichment flows.
type ExtractionMetrics struct {
	strategyTotal  *prometheus.CounterVec
	fetchTotal     *prometheus.CounterVec
	fetchLatency   *prometheus.HistogramVec
	enrichTotal    *prometheus.CounterVec
	enrichDuration prometheus.Histogram
	ingestWeeks    *prometheus.CounterVec
	droppedWeeks   *prometheus.CounterVec
}

func NewExtractionMetrics(reg prometheus.Registerer) *ExtractionMetrics {
	m := &ExtractionMetrics{
		strategyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mwb",
			Subsystem: "extract",
			Name:      "strategy_total",
			Help:      "Extraction attempts by strategy and outcome",
		}, []string{"strategy", "outcome"}),
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mwb",
			Subsystem: "fetch",
			Name:      "requests_total",
			Help:      "Document fetches by outcome",
		}, []string{"outcome"}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mwb",
			Subsystem: "fetch",
			Name:      "latency_seconds",
			Help:      "Latency of document fetches including retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		enrichTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mwb",
			Subsystem: "enrich",
			Name:      "weeks_total",
			Help:      "Weeks processed by background enrichment",
		}, []string{"outcome"}),
		enrichDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mwb",
			Subsystem: "enrich",
			Name:      "duration_seconds",
			Help:      "Duration of one enrichment batch",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}),
		ingestWeeks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mwb",
			Subsystem: "ingest",
			Name:      "weeks_total",
			Help:      "Weeks written by ingest runs",
		}, []string{"issue"}),
		droppedWeeks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mwb",
			Subsystem: "schedule",
			Name:      "dropped_weeks_total",
			Help:      "Weeks left out of ordered results",
		}, []string{"reason"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.strategyTotal, m.fetchTotal, m.fetchLatency, m.enrichTotal, m.enrichDuration, m.ingestWeeks, m.droppedWeeks)
	return m
}

// ObserveStrategy records one strategy attempt. An empty strategy means the whole chain failed.
func (m *ExtractionMetrics) ObserveStrategy(strategy string, weeks int) {
	if m == nil {
		return
	}
	if strategy == "" {
		strategy = "none"
	}
	outcome := "hit"
	if weeks == 0 {
		outcome = "empty"
	}
	m.strategyTotal.WithLabelValues(strategy, outcome).Inc()
}

func (m *ExtractionMetrics) ObserveFetch(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.fetchTotal.WithLabelValues(outcome).Inc()
	m.fetchLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *ExtractionMetrics) ObserveEnrichedWeek(outcome string) {
	if m == nil {
		return
	}
	m.enrichTotal.WithLabelValues(outcome).Inc()
}

func (m *ExtractionMetrics) ObserveEnrichDuration(seconds float64) {
	if m == nil {
		return
	}
	m.enrichDuration.Observe(seconds)
}

func (m *ExtractionMetrics) ObserveIngest(issue string, weeks int) {
	if m == nil {
		return
	}
	m.ingestWeeks.WithLabelValues(issue).Add(float64(weeks))
}

func (m *ExtractionMetrics) ObserveDropped(reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.droppedWeeks.WithLabelValues(reason).Add(float64(n))
}
