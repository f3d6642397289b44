package handler

import (
	"strings"

	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	dErrors "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain-errors"
)

type createRequest struct {
	State     string `json:"state"`
	County    string `json:"county,omitempty"`
	CourtType string `json:"court_type,omitempty"`
	ParentID  string `json:"parent_id,omitempty"`

	parentID *id.JurisdictionID
}

// Validate checks the request surface only; descriptor normalization and
// length limits live in the models package.
func (r *createRequest) Validate() error {
	if strings.TrimSpace(r.State) == "" {
		return dErrors.New(dErrors.CodeValidation, "state is required")
	}
	if r.ParentID != "" {
		parsed, err := id.ParseJurisdictionID(r.ParentID)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "parent_id is not a valid jurisdiction id")
		}
		r.parentID = &parsed
	}
	return nil
}
