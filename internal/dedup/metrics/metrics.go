package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for duplicate detection.
type Metrics struct {
	// Matches recorded by match type
	Matches *prometheus.CounterVec

	// Submissions flagged as duplicates
	DuplicatesFlagged prometheus.Counter

	// Full detection latency including index probes
	DetectLatency prometheus.Histogram
}

// New creates a new Metrics instance with all detector metrics registered.
func New() *Metrics {
	return &Metrics{
		Matches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "goldleaves_dedup_matches_total",
			Help: "Total duplicate matches recorded by match type",
		}, []string{"match_type"}),

		DuplicatesFlagged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "goldleaves_dedup_duplicates_flagged_total",
			Help: "Total submissions flagged as duplicates",
		}),

		DetectLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "goldleaves_dedup_detect_duration_seconds",
			Help:    "Duration of full duplicate detection including index probes",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementMatch records one detected match.
func (m *Metrics) IncrementMatch(matchType string) {
	if m != nil {
		m.Matches.WithLabelValues(matchType).Inc()
	}
}

// IncrementDuplicateFlagged records a submission flagged as a duplicate.
func (m *Metrics) IncrementDuplicateFlagged() {
	if m != nil {
		m.DuplicatesFlagged.Inc()
	}
}

// ObserveDetectLatency records the duration of one detection pass.
func (m *Metrics) ObserveDetectLatency(d time.Duration) {
	if m != nil {
		m.DetectLatency.Observe(d.Seconds())
	}
}
