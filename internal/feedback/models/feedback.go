package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	dErrors "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain-errors"
)

const (
	minSeverity   = 1
	maxSeverity   = 5
	maxContentLen = 4000
	maxFieldLen   = 100

	// ticketPrefix heads every human-readable ticket number.
	ticketPrefix = "GL"

	// TrendThreshold is the report count at which an issue counts as
	// trending, inclusive of the report that tips it over.
	TrendThreshold = 3

	// ImpactEscalationThreshold is the impact score at which a normal
	// priority report escalates to high.
	ImpactEscalationThreshold = 100
)

// Report carries one user-filed defect against a form.
type Report struct {
	FormID        id.FormID
	UserID        id.UserID
	FeedbackType  FeedbackType
	Severity      int
	FieldName     string
	Content       string
	UsersAffected int
	UserAgent     string
}

// Normalize trims report inputs and validates the whole shape. The reporter
// always counts toward the affected-user total, so UsersAffected floors at 1.
func (r Report) Normalize() (Report, error) {
	r.FieldName = strings.TrimSpace(r.FieldName)
	r.Content = strings.TrimSpace(r.Content)

	if r.FormID.IsNil() {
		return r, dErrors.New(dErrors.CodeValidation, "form id is required")
	}
	if r.UserID.IsNil() {
		return r, dErrors.New(dErrors.CodeValidation, "user id is required")
	}
	if !r.FeedbackType.IsValid() {
		return r, dErrors.Newf(dErrors.CodeValidation, "unknown feedback type %q", r.FeedbackType)
	}
	if r.Severity < minSeverity || r.Severity > maxSeverity {
		return r, dErrors.Newf(dErrors.CodeValidation, "severity must be between %d and %d", minSeverity, maxSeverity)
	}
	if r.Content == "" {
		return r, dErrors.New(dErrors.CodeValidation, "feedback content is required")
	}
	if len(r.Content) > maxContentLen {
		return r, dErrors.Newf(dErrors.CodeValidation, "feedback content exceeds %d characters", maxContentLen)
	}
	if len(r.FieldName) > maxFieldLen {
		return r, dErrors.Newf(dErrors.CodeValidation, "field name exceeds %d characters", maxFieldLen)
	}
	if r.FeedbackType == TypeFieldError && r.FieldName == "" {
		return r, dErrors.New(dErrors.CodeValidation, "field error reports must name the field")
	}
	if r.UsersAffected < 1 {
		r.UsersAffected = 1
	}
	return r, nil
}

// FormFeedback is the stored defect report. Priority, assignment, votes, and
// status are the mutable triage surface; everything the reporter wrote is
// immutable after submission.
type FormFeedback struct {
	ID            id.FeedbackID
	TicketNumber  string
	FormID        id.FormID
	UserID        id.UserID
	FeedbackType  FeedbackType
	Severity      int
	Priority      Priority
	Status        FeedbackStatus
	FieldName     string
	Content       string
	AssignedTo    *id.ReviewerID
	Upvotes       int
	Downvotes     int
	UsersAffected int
	TrendCount    int
	Browser       string
	Resolution    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewFormFeedback builds the stored report from a normalized Report. The
// ticket number, priority, and trend count are supplied by the caller because
// all three depend on state the aggregate cannot see.
func NewFormFeedback(feedbackID id.FeedbackID, ticketNumber string, report Report, priority Priority, trendCount int, browser string, now time.Time) *FormFeedback {
	return &FormFeedback{
		ID:            feedbackID,
		TicketNumber:  ticketNumber,
		FormID:        report.FormID,
		UserID:        report.UserID,
		FeedbackType:  report.FeedbackType,
		Severity:      report.Severity,
		Priority:      priority,
		Status:        StatusReceived,
		FieldName:     report.FieldName,
		Content:       report.Content,
		UsersAffected: max(report.UsersAffected, trendCount),
		TrendCount:    trendCount,
		Browser:       browser,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// ImpactScore weighs severity and community votes, scaled by reach. The reach
// multiplier caps at 3 so a widely seen report cannot drown out severity.
func (f *FormFeedback) ImpactScore() int {
	base := float64(f.Severity*20 + (f.Upvotes-f.Downvotes)*5)
	reach := math.Min(float64(f.UsersAffected)/10, 3)
	return int(math.Round(base * reach))
}

// CanUpdateStatus checks the workflow DAG for the requested move.
func (f *FormFeedback) CanUpdateStatus(next FeedbackStatus) error {
	if f.Status.IsTerminal() {
		return dErrors.Newf(dErrors.CodeInvalidState, "feedback is %s and can no longer change", f.Status)
	}
	if !f.Status.CanTransitionTo(next) {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot move feedback from %s to %s", f.Status, next)
	}
	return nil
}

// ApplyStatus records a workflow move. A non-empty resolution is kept
// verbatim; callers validate the transition with CanUpdateStatus first.
func (f *FormFeedback) ApplyStatus(next FeedbackStatus, resolution string, now time.Time) {
	f.Status = next
	if resolution != "" {
		f.Resolution = resolution
	}
	f.UpdatedAt = now
}

// ApplyVote counts one reader verdict.
func (f *FormFeedback) ApplyVote(direction VoteDirection, now time.Time) {
	switch direction {
	case VoteUp:
		f.Upvotes++
	case VoteDown:
		f.Downvotes++
	}
	f.UpdatedAt = now
}

// ApplyAssignment routes the report to a reviewer. A freshly received report
// moves to triaged; reports already in the workflow keep their status.
func (f *FormFeedback) ApplyAssignment(reviewerID id.ReviewerID, now time.Time) {
	f.AssignedTo = &reviewerID
	if f.Status == StatusReceived {
		f.Status = StatusTriaged
	}
	f.UpdatedAt = now
}

// ApplyEscalation raises priority to at least floor and reports whether the
// priority actually changed. Priorities never go down.
func (f *FormFeedback) ApplyEscalation(floor Priority, now time.Time) bool {
	if floor.Rank() <= f.Priority.Rank() {
		return false
	}
	f.Priority = floor
	f.UpdatedAt = now
	return true
}

// Reviewer is a roster row used for load-balanced assignment. OpenCount is
// the denormalized number of triaged or in-progress reports on their desk.
type Reviewer struct {
	ID          id.ReviewerID
	DisplayName string
	Active      bool
	OpenCount   int
}

// ListFilter narrows feedback listings.
type ListFilter struct {
	Status *FeedbackStatus
	Limit  int
	Offset int
}

// DayKey is the per-day sequence row key for now's UTC date.
func DayKey(now time.Time) string {
	return now.UTC().Format("20060102")
}

// TicketNumber formats the human-readable ticket id from the day and the
// day-scoped sequence value.
func TicketNumber(now time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", ticketPrefix, DayKey(now), seq)
}
