// Package models defines the defect-report aggregate and the triage rules
// that turn raw reports into prioritized, routable work items.
package models

import "time"

// FeedbackType classifies what a report says is wrong with a form.
type FeedbackType string

const (
	TypeFieldError        FeedbackType = "field_error"
	TypeContentIssue      FeedbackType = "content_issue"
	TypeJurisdictionWrong FeedbackType = "jurisdiction_wrong"
	TypeOutdatedForm      FeedbackType = "outdated_form"
	TypeUsability         FeedbackType = "usability"
	TypeSuggestion        FeedbackType = "suggestion"
	TypeOther             FeedbackType = "other"
)

var validFeedbackTypes = map[FeedbackType]bool{
	TypeFieldError:        true,
	TypeContentIssue:      true,
	TypeJurisdictionWrong: true,
	TypeOutdatedForm:      true,
	TypeUsability:         true,
	TypeSuggestion:        true,
	TypeOther:             true,
}

// criticalTypes are the defect classes that can make a filed form unusable or
// legally wrong. They ride a harsher severity-to-priority curve.
var criticalTypes = map[FeedbackType]bool{
	TypeFieldError:        true,
	TypeContentIssue:      true,
	TypeJurisdictionWrong: true,
	TypeOutdatedForm:      true,
}

// ParseFeedbackType validates and converts a string to a FeedbackType.
func ParseFeedbackType(s string) (FeedbackType, bool) {
	t := FeedbackType(s)
	return t, validFeedbackTypes[t]
}

func (t FeedbackType) IsValid() bool { return validFeedbackTypes[t] }

func (t FeedbackType) IsCritical() bool { return criticalTypes[t] }

func (t FeedbackType) String() string { return string(t) }

// Priority orders the triage queue. Derived from type and severity at
// submission, then only ever escalated, never lowered.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

var validPriorities = map[Priority]bool{
	PriorityUrgent: true,
	PriorityHigh:   true,
	PriorityNormal: true,
	PriorityLow:    true,
}

// ParsePriority validates and converts a string to a Priority.
func ParsePriority(s string) (Priority, bool) {
	p := Priority(s)
	return p, validPriorities[p]
}

func (p Priority) IsValid() bool { return validPriorities[p] }

func (p Priority) String() string { return string(p) }

// Rank orders priorities so escalation can be expressed as taking a maximum.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	case PriorityLow:
		return 0
	default:
		return -1
	}
}

// AtLeast returns the higher of p and floor.
func (p Priority) AtLeast(floor Priority) Priority {
	if floor.Rank() > p.Rank() {
		return floor
	}
	return p
}

// RequiresAssignment reports whether triage should route the report to a
// reviewer immediately rather than leaving it in the intake queue.
func (p Priority) RequiresAssignment() bool {
	return p == PriorityUrgent || p == PriorityHigh
}

// ResponseTarget is the committed first-response window for the priority.
func (p Priority) ResponseTarget() time.Duration {
	switch p {
	case PriorityUrgent:
		return 4 * time.Hour
	case PriorityHigh:
		return 24 * time.Hour
	case PriorityNormal:
		return 72 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// PriorityFor derives the initial priority from the report's type and
// severity. Critical defect classes escalate faster.
func PriorityFor(feedbackType FeedbackType, severity int) Priority {
	if feedbackType.IsCritical() {
		switch {
		case severity >= 4:
			return PriorityUrgent
		case severity >= 3:
			return PriorityHigh
		default:
			return PriorityNormal
		}
	}
	switch {
	case severity >= 5:
		return PriorityHigh
	case severity >= 3:
		return PriorityNormal
	default:
		return PriorityLow
	}
}

// FeedbackStatus is the workflow state of a report.
type FeedbackStatus string

const (
	StatusReceived   FeedbackStatus = "received"
	StatusTriaged    FeedbackStatus = "triaged"
	StatusInProgress FeedbackStatus = "in_progress"
	StatusResolved   FeedbackStatus = "resolved"
	StatusClosed     FeedbackStatus = "closed"
	StatusWontFix    FeedbackStatus = "wont_fix"
	StatusDuplicate  FeedbackStatus = "duplicate"
)

var validFeedbackStatuses = map[FeedbackStatus]bool{
	StatusReceived:   true,
	StatusTriaged:    true,
	StatusInProgress: true,
	StatusResolved:   true,
	StatusClosed:     true,
	StatusWontFix:    true,
	StatusDuplicate:  true,
}

// statusTransitions is the triage workflow DAG. A report marked duplicate
// must be flagged before work starts; in-progress items can no longer be
// folded into another ticket.
var statusTransitions = map[FeedbackStatus][]FeedbackStatus{
	StatusReceived:   {StatusTriaged, StatusInProgress, StatusResolved, StatusClosed, StatusWontFix, StatusDuplicate},
	StatusTriaged:    {StatusInProgress, StatusResolved, StatusClosed, StatusWontFix, StatusDuplicate},
	StatusInProgress: {StatusResolved, StatusClosed, StatusWontFix},
	StatusResolved:   {},
	StatusClosed:     {},
	StatusWontFix:    {},
	StatusDuplicate:  {},
}

// ParseFeedbackStatus validates and converts a string to a FeedbackStatus.
func ParseFeedbackStatus(s string) (FeedbackStatus, bool) {
	status := FeedbackStatus(s)
	return status, validFeedbackStatuses[status]
}

func (s FeedbackStatus) IsValid() bool { return validFeedbackStatuses[s] }

func (s FeedbackStatus) String() string { return string(s) }

// CanTransitionTo reports whether the DAG has an edge from s to next.
func (s FeedbackStatus) CanTransitionTo(next FeedbackStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no edges leave this status.
func (s FeedbackStatus) IsTerminal() bool {
	return len(statusTransitions[s]) == 0
}

// IsOpen reports whether the report is on a reviewer's desk. Open items count
// against reviewer load for assignment balancing.
func (s FeedbackStatus) IsOpen() bool {
	return s == StatusTriaged || s == StatusInProgress
}

// VoteDirection is a reader's verdict on a report.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

// ParseVoteDirection validates and converts a string to a VoteDirection.
func ParseVoteDirection(s string) (VoteDirection, bool) {
	d := VoteDirection(s)
	return d, d == VoteUp || d == VoteDown
}

func (d VoteDirection) String() string { return string(d) }
