// Package notify fans domain events out to downstream consumers. Emission is
// fire-and-forget: events ride a bounded in-process queue to a publisher, and
// a full queue or a failing broker never stalls or fails the emitting
// operation.
package notify

import (
	"encoding/json"
	"time"
)

// EventType names a domain event published to the notification sink.
type EventType string

const (
	EventFormPendingReview EventType = "form_pending_review"
	EventFormReviewed      EventType = "form_reviewed"
	EventTrendingIssue     EventType = "trending_issue"
	EventFeedbackAssigned  EventType = "feedback_assigned"
	EventRewardGranted     EventType = "reward_granted"
)

var validEventTypes = map[EventType]bool{
	EventFormPendingReview: true,
	EventFormReviewed:      true,
	EventTrendingIssue:     true,
	EventFeedbackAssigned:  true,
	EventRewardGranted:     true,
}

func (e EventType) IsValid() bool { return validEventTypes[e] }
func (e EventType) String() string { return string(e) }

// Event is the published envelope. Key carries the entity id the event is
// about so broker partitioning keeps per-entity ordering.
type Event struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// FormPendingReviewPayload announces a form entering the review queue, on
// first submission and on each resubmission.
type FormPendingReviewPayload struct {
	FormID         string `json:"form_id"`
	ContributorID  string `json:"contributor_id"`
	JurisdictionID string `json:"jurisdiction_id"`
	Title          string `json:"title"`
	Version        int    `json:"version"`
}

// FormReviewedPayload announces a review decision.
type FormReviewedPayload struct {
	FormID        string `json:"form_id"`
	ContributorID string `json:"contributor_id"`
	ReviewerID    string `json:"reviewer_id"`
	Decision      string `json:"decision"`
	Score         *int   `json:"score,omitempty"`
}

// RewardGrantedPayload announces free weeks credited to a contributor.
type RewardGrantedPayload struct {
	ContributorID string   `json:"contributor_id"`
	FormID        string   `json:"form_id,omitempty"`
	WeeksGranted  int      `json:"weeks_granted"`
	RewardTypes   []string `json:"reward_types"`
	Tier          string   `json:"tier"`
	TierChanged   bool     `json:"tier_changed"`
}

// TrendingIssuePayload announces a feedback type crossing the trend threshold
// on one form.
type TrendingIssuePayload struct {
	FormID       string `json:"form_id"`
	FeedbackID   string `json:"feedback_id"`
	FeedbackType string `json:"feedback_type"`
	ReportCount  int    `json:"report_count"`
}

// FeedbackAssignedPayload announces feedback routed to a reviewer.
type FeedbackAssignedPayload struct {
	FeedbackID   string `json:"feedback_id"`
	FormID       string `json:"form_id"`
	ReviewerID   string `json:"reviewer_id"`
	Priority     string `json:"priority"`
	TicketNumber string `json:"ticket_number"`
}
