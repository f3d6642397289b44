// Package dedup decides whether a new submission collides with an existing
// form and at what confidence. It is pure detection: callers decide what to
// do with a flagged collision.
package dedup

import (
	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	dErrors "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain-errors"
)

// MatchType classifies how a collision was detected.
type MatchType string

const (
	MatchContentHash     MatchType = "content_hash"
	MatchTitleSimilarity MatchType = "title_similarity"
	MatchFormNumber      MatchType = "form_number"
)

func (m MatchType) String() string { return string(m) }

// rank orders match types for deterministic tie-breaks at equal confidence.
func (m MatchType) rank() int {
	switch m {
	case MatchContentHash:
		return 0
	case MatchFormNumber:
		return 1
	case MatchTitleSimilarity:
		return 2
	default:
		return 3
	}
}

// Match is one detected collision with an existing form.
type Match struct {
	FormID     id.FormID `json:"form_id"`
	MatchType  MatchType `json:"match_type"`
	Confidence int       `json:"confidence"`
}

// Result is the detector verdict: the submission is flagged a duplicate iff
// any match reaches the duplicate confidence threshold.
type Result struct {
	IsDuplicate bool    `json:"is_duplicate"`
	Matches     []Match `json:"matches"`
}

// Candidate is the projection of an existing form the detector compares
// against. Status filtering happens in the index queries.
type Candidate struct {
	ID    id.FormID
	Title string
}

// Submission carries the descriptor of an incoming form.
// ExcludeFormID is set on resubmission so a form never collides with itself.
type Submission struct {
	Title          string
	FormNumber     string
	FormType       string
	JurisdictionID id.JurisdictionID
	ContentHash    string
	ExcludeFormID  id.FormID
}

func (s Submission) validate() error {
	if s.ContentHash == "" {
		return dErrors.New(dErrors.CodeValidation, "content hash is required")
	}
	if s.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if s.FormType == "" {
		return dErrors.New(dErrors.CodeValidation, "form type is required")
	}
	if s.JurisdictionID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "jurisdiction id is required")
	}
	return nil
}
