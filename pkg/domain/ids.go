// Package domain provides shared domain value types: typed identifiers and the
// parse helpers that enforce their invariants at trust boundaries.
//
// Every identifier is a distinct named type over uuid.UUID so a form id can never
// be passed where a contributor id is expected. Parse functions are the only way
// to build an id from untrusted input; they reject empty, malformed, and nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain-errors"
)

// Typed identifiers. Distinct types, identical validation.
type (
	// FormID identifies a form aggregate.
	FormID uuid.UUID
	// ContributorID identifies the user credited for a submission.
	ContributorID uuid.UUID
	// ReviewerID identifies a reviewer in the roster.
	ReviewerID uuid.UUID
	// FeedbackID identifies a defect report.
	FeedbackID uuid.UUID
	// UserID identifies the end user who filed a defect report.
	UserID uuid.UUID
	// JurisdictionID identifies a canonical jurisdiction record.
	JurisdictionID uuid.UUID
	// LedgerEntryID identifies an append-only reward ledger entry.
	LedgerEntryID uuid.UUID
)

func parseUUID(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is required")
	}
	if len(raw) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is too long")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id must not be the nil UUID")
	}
	return parsed, nil
}

// ParseFormID parses and validates a form id from untrusted input.
func ParseFormID(raw string) (FormID, error) {
	parsed, err := parseUUID(raw, "form")
	return FormID(parsed), err
}

// ParseContributorID parses and validates a contributor id from untrusted input.
func ParseContributorID(raw string) (ContributorID, error) {
	parsed, err := parseUUID(raw, "contributor")
	return ContributorID(parsed), err
}

// ParseReviewerID parses and validates a reviewer id from untrusted input.
func ParseReviewerID(raw string) (ReviewerID, error) {
	parsed, err := parseUUID(raw, "reviewer")
	return ReviewerID(parsed), err
}

// ParseFeedbackID parses and validates a feedback id from untrusted input.
func ParseFeedbackID(raw string) (FeedbackID, error) {
	parsed, err := parseUUID(raw, "feedback")
	return FeedbackID(parsed), err
}

// ParseUserID parses and validates a user id from untrusted input.
func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseUUID(raw, "user")
	return UserID(parsed), err
}

// ParseJurisdictionID parses and validates a jurisdiction id from untrusted input.
func ParseJurisdictionID(raw string) (JurisdictionID, error) {
	parsed, err := parseUUID(raw, "jurisdiction")
	return JurisdictionID(parsed), err
}

// ParseLedgerEntryID parses and validates a ledger entry id from untrusted input.
func ParseLedgerEntryID(raw string) (LedgerEntryID, error) {
	parsed, err := parseUUID(raw, "ledger entry")
	return LedgerEntryID(parsed), err
}

// NewFormID generates a fresh form id.
func NewFormID() FormID { return FormID(uuid.New()) }

// NewContributorID generates a fresh contributor id.
func NewContributorID() ContributorID { return ContributorID(uuid.New()) }

// NewReviewerID generates a fresh reviewer id.
func NewReviewerID() ReviewerID { return ReviewerID(uuid.New()) }

// NewFeedbackID generates a fresh feedback id.
func NewFeedbackID() FeedbackID { return FeedbackID(uuid.New()) }

// NewUserID generates a fresh user id.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewJurisdictionID generates a fresh jurisdiction id.
func NewJurisdictionID() JurisdictionID { return JurisdictionID(uuid.New()) }

// NewLedgerEntryID generates a fresh ledger entry id.
func NewLedgerEntryID() LedgerEntryID { return LedgerEntryID(uuid.New()) }

func (id FormID) String() string         { return uuid.UUID(id).String() }
func (id ContributorID) String() string  { return uuid.UUID(id).String() }
func (id ReviewerID) String() string     { return uuid.UUID(id).String() }
func (id FeedbackID) String() string     { return uuid.UUID(id).String() }
func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id JurisdictionID) String() string { return uuid.UUID(id).String() }
func (id LedgerEntryID) String() string  { return uuid.UUID(id).String() }

// IsNil reports whether the id is the zero value.
func (id FormID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id ContributorID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id ReviewerID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id FeedbackID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id JurisdictionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id LedgerEntryID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
