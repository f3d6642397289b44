package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for feedback triage.
type Metrics struct {
	// Reports accepted, by derived priority
	Submissions *prometheus.CounterVec

	// Reports that crossed the trend threshold
	Trending prometheus.Counter

	// Reports routed to a reviewer, by trigger (submission, vote, manual)
	Assignments *prometheus.CounterVec

	// Votes counted, by direction
	Votes *prometheus.CounterVec

	// Normal-priority reports escalated by impact score
	Escalations prometheus.Counter

	// Workflow moves, by resulting status
	StatusUpdates *prometheus.CounterVec
}

// New creates a new Metrics instance with all triage metrics registered.
func New() *Metrics {
	return &Metrics{
		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "goldleaves_feedback_submissions_total",
			Help: "Total feedback reports accepted by derived priority",
		}, []string{"priority"}),

		Trending: promauto.NewCounter(prometheus.CounterOpts{
			Name: "goldleaves_feedback_trending_total",
			Help: "Total reports that crossed the trend threshold",
		}),

		Assignments: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "goldleaves_feedback_assignments_total",
			Help: "Total reports routed to a reviewer by trigger",
		}, []string{"trigger"}),

		Votes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "goldleaves_feedback_votes_total",
			Help: "Total votes counted by direction",
		}, []string{"direction"}),

		Escalations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "goldleaves_feedback_escalations_total",
			Help: "Total normal-priority reports escalated by impact score",
		}),

		StatusUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "goldleaves_feedback_status_updates_total",
			Help: "Total workflow moves by resulting status",
		}, []string{"status"}),
	}
}

// IncrementSubmission records one accepted report with its priority.
func (m *Metrics) IncrementSubmission(priority string) {
	if m != nil {
		m.Submissions.WithLabelValues(priority).Inc()
	}
}

// IncrementTrending records one report crossing the trend threshold.
func (m *Metrics) IncrementTrending() {
	if m != nil {
		m.Trending.Inc()
	}
}

// IncrementAssignment records one report routed to a reviewer.
func (m *Metrics) IncrementAssignment(trigger string) {
	if m != nil {
		m.Assignments.WithLabelValues(trigger).Inc()
	}
}

// IncrementVote records one counted vote.
func (m *Metrics) IncrementVote(direction string) {
	if m != nil {
		m.Votes.WithLabelValues(direction).Inc()
	}
}

// IncrementEscalation records one impact-score escalation.
func (m *Metrics) IncrementEscalation() {
	if m != nil {
		m.Escalations.Inc()
	}
}

// IncrementStatusUpdate records one workflow move.
func (m *Metrics) IncrementStatusUpdate(status string) {
	if m != nil {
		m.StatusUpdates.WithLabelValues(status).Inc()
	}
}
