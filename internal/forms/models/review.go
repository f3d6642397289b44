package models

import (
	"strings"

	dErrors "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain-errors"
)

const (
	minReviewScore = 1
	maxReviewScore = 5

	maxRequestedChanges = 25
	maxChangeDescLen    = 500
)

// ReviewDecision is the outcome a reviewer records.
type ReviewDecision string

const (
	DecisionApprove         ReviewDecision = "approve"
	DecisionReject          ReviewDecision = "reject"
	DecisionRequestRevision ReviewDecision = "request_revision"
)

var validDecisions = map[ReviewDecision]bool{
	DecisionApprove:         true,
	DecisionReject:          true,
	DecisionRequestRevision: true,
}

// ParseReviewDecision validates and converts a string to a ReviewDecision.
func ParseReviewDecision(s string) (ReviewDecision, bool) {
	decision := ReviewDecision(s)
	return decision, validDecisions[decision]
}

func (d ReviewDecision) IsValid() bool { return validDecisions[d] }

func (d ReviewDecision) String() string { return string(d) }

// ReviewChecklist is the fixed set of checks a reviewer attests to. It is
// stored on the form with the decision.
type ReviewChecklist struct {
	ContentVerified       bool   `json:"content_verified"`
	FieldsValidated       bool   `json:"fields_validated"`
	JurisdictionConfirmed bool   `json:"jurisdiction_confirmed"`
	CitationsChecked      bool   `json:"citations_checked"`
	Notes                 string `json:"notes,omitempty"`
}

// RequestedChange is one item a reviewer asks the contributor to fix. Field
// is empty for changes that concern the form as a whole.
type RequestedChange struct {
	Field       string `json:"field,omitempty"`
	Description string `json:"description"`
}

// NormalizeChanges validates and trims a requested-changes list.
func NormalizeChanges(changes []RequestedChange) ([]RequestedChange, error) {
	if len(changes) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "revision requests need at least one requested change")
	}
	if len(changes) > maxRequestedChanges {
		return nil, dErrors.Newf(dErrors.CodeValidation, "revision requests are capped at %d changes", maxRequestedChanges)
	}

	out := make([]RequestedChange, len(changes))
	for i, change := range changes {
		change.Field = strings.TrimSpace(change.Field)
		change.Description = strings.TrimSpace(change.Description)
		if change.Description == "" {
			return nil, dErrors.Newf(dErrors.CodeValidation, "requested change %d has no description", i)
		}
		if len(change.Description) > maxChangeDescLen {
			return nil, dErrors.Newf(dErrors.CodeValidation, "requested change %d exceeds %d characters", i, maxChangeDescLen)
		}
		out[i] = change
	}
	return out, nil
}

// ValidateScore bounds an optional review score to the 1 to 5 scale.
func ValidateScore(score *int) error {
	if score == nil {
		return nil
	}
	if *score < minReviewScore || *score > maxReviewScore {
		return dErrors.Newf(dErrors.CodeValidation, "review score must be between %d and %d", minReviewScore, maxReviewScore)
	}
	return nil
}
