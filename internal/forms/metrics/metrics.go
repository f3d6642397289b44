package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the form lifecycle.
type Metrics struct {
	// Submission attempts, by outcome (accepted, duplicate)
	Submissions *prometheus.CounterVec

	// Review decisions recorded, by decision
	Reviews *prometheus.CounterVec

	// Revisions resubmitted into a new review cycle
	Resubmissions prometheus.Counter

	// Approved forms superseded into archived
	Archived prometheus.Counter

	// Usage recorded on approved forms, by kind
	Usage *prometheus.CounterVec
}

// New creates a new Metrics instance with all lifecycle metrics registered.
func New() *Metrics {
	return &Metrics{
		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "goldleaves_forms_submissions_total",
			Help: "Total submission attempts by outcome",
		}, []string{"outcome"}),

		Reviews: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "goldleaves_forms_reviews_total",
			Help: "Total review decisions recorded by decision",
		}, []string{"decision"}),

		Resubmissions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "goldleaves_forms_resubmissions_total",
			Help: "Total revisions resubmitted into a new review cycle",
		}),

		Archived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "goldleaves_forms_archived_total",
			Help: "Total approved forms superseded into archived",
		}),

		Usage: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "goldleaves_forms_usage_total",
			Help: "Total usage recorded on approved forms by kind",
		}, []string{"kind"}),
	}
}

// IncrementSubmission records one submission attempt with its outcome.
func (m *Metrics) IncrementSubmission(outcome string) {
	if m != nil {
		m.Submissions.WithLabelValues(outcome).Inc()
	}
}

// IncrementReview records one review decision.
func (m *Metrics) IncrementReview(decision string) {
	if m != nil {
		m.Reviews.WithLabelValues(decision).Inc()
	}
}

// IncrementResubmission records one accepted resubmission.
func (m *Metrics) IncrementResubmission() {
	if m != nil {
		m.Resubmissions.Inc()
	}
}

// IncrementArchived records one form archived.
func (m *Metrics) IncrementArchived() {
	if m != nil {
		m.Archived.Inc()
	}
}

// IncrementUsage records one usage event.
func (m *Metrics) IncrementUsage(kind string) {
	if m != nil {
		m.Usage.WithLabelValues(kind).Inc()
	}
}
