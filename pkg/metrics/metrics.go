// ==============================================================================
// PROMETHEUS METRICS - pkg/metrics/metrics.go
// ==============================================================================
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPMetrics counts and times API requests.
type HTTPMetrics struct {
	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

func NewHTTPMetrics(registry *prometheus.Registry) *HTTPMetrics {
	m := &HTTPMetrics{
		RequestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}

	registry.MustRegister(m.RequestCount, m.RequestDuration)
	return m
}

// Observe records one finished request.
func (m *HTTPMetrics) Observe(method, path string, status int, seconds float64) {
	code := http.StatusText(status)
	m.RequestCount.WithLabelValues(method, path, code).Inc()
	m.RequestDuration.WithLabelValues(method, path, code).Observe(seconds)
}

// SettlementRecorder exports what the strategy selector sees.
type SettlementRecorder struct {
	Candidates        *prometheus.CounterVec
	CandidateSize     *prometheus.HistogramVec
	Selected          *prometheus.CounterVec
	TruncatedSearches *prometheus.CounterVec
}

func NewSettlementRecorder(registry *prometheus.Registry) *SettlementRecorder {
	r := &SettlementRecorder{
		Candidates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlement_candidates_total",
				Help: "Strategy evaluations by outcome.",
			},
			[]string{"strategy", "status"},
		),
		CandidateSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "settlement_candidate_transactions",
				Help:    "Transactions produced by each successful strategy evaluation.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"strategy"},
		),
		Selected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlement_selected_total",
				Help: "Settlements returned, by winning strategy.",
			},
			[]string{"strategy"},
		),
		TruncatedSearches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlement_subset_truncated_total",
				Help: "Subset searches abandoned at the group cap or step budget.",
			},
			[]string{"strategy"},
		),
	}

	registry.MustRegister(r.Candidates, r.CandidateSize, r.Selected, r.TruncatedSearches)
	return r
}

func (r *SettlementRecorder) ObserveCandidate(strategy string, transactions int, err error) {
	if err != nil {
		r.Candidates.WithLabelValues(strategy, "error").Inc()
		return
	}
	r.Candidates.WithLabelValues(strategy, "ok").Inc()
	r.CandidateSize.WithLabelValues(strategy).Observe(float64(transactions))
}

func (r *SettlementRecorder) ObserveSelected(strategy string, _ int) {
	r.Selected.WithLabelValues(strategy).Inc()
}

func (r *SettlementRecorder) ObserveTruncatedSearch(strategy string, n int) {
	r.TruncatedSearches.WithLabelValues(strategy).Add(float64(n))
}

func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
