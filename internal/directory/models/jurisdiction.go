package models

import (
	"strings"
	"time"

	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	dErrors "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain-errors"
)

// Jurisdiction is a canonical record for a state/county/court-type descriptor.
//
// Invariants:
//   - Code is unique, non-empty, and derived from the descriptor parts
//   - State is non-empty
//   - ParentID, when set, references another directory record (lookup relation,
//     not an ownership edge)
//   - CreatedAt is immutable after construction
type Jurisdiction struct {
	ID        id.JurisdictionID  `json:"id"`
	Code      string             `json:"code"`
	State     string             `json:"state"`
	County    string             `json:"county,omitempty"`
	CourtType string             `json:"court_type,omitempty"`
	ParentID  *id.JurisdictionID `json:"parent_id,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// NewJurisdiction validates the descriptor and derives the canonical code.
func NewJurisdiction(jurisdictionID id.JurisdictionID, state, county, courtType string, parentID *id.JurisdictionID, now time.Time) (*Jurisdiction, error) {
	state = strings.TrimSpace(state)
	county = strings.TrimSpace(county)
	courtType = strings.TrimSpace(courtType)

	if state == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "jurisdiction state cannot be empty")
	}
	if len(state) > 64 || len(county) > 64 || len(courtType) > 64 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "jurisdiction descriptor parts must be 64 characters or less")
	}

	return &Jurisdiction{
		ID:        jurisdictionID,
		Code:      DeriveCode(state, county, courtType),
		State:     state,
		County:    county,
		CourtType: courtType,
		ParentID:  parentID,
		CreatedAt: now,
	}, nil
}

// DeriveCode normalizes a descriptor to its canonical code:
// STATE[-COUNTY][-COURTTYPE], uppercased, whitespace collapsed to dashes.
// Records are deduplicated by this code, so two descriptors that normalize
// identically resolve to the same directory entry.
func DeriveCode(state, county, courtType string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{state, county, courtType} {
		if p := normalizePart(part); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "-")
}

func normalizePart(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), "-")
}
