package handler

import (
	"time"

	directoryModel "github.com/Ghostmonday/Goldleaves-sub001/internal/directory/models"
)

type jurisdictionResponse struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	State     string    `json:"state"`
	County    string    `json:"county,omitempty"`
	CourtType string    `json:"court_type,omitempty"`
	ParentID  string    `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type listResponse struct {
	Jurisdictions []jurisdictionResponse `json:"jurisdictions"`
}

func toJurisdictionResponse(j *directoryModel.Jurisdiction) jurisdictionResponse {
	resp := jurisdictionResponse{
		ID:        j.ID.String(),
		Code:      j.Code,
		State:     j.State,
		County:    j.County,
		CourtType: j.CourtType,
		CreatedAt: j.CreatedAt,
	}
	if j.ParentID != nil {
		resp.ParentID = j.ParentID.String()
	}
	return resp
}

func toListResponse(records []*directoryModel.Jurisdiction) listResponse {
	out := make([]jurisdictionResponse, 0, len(records))
	for _, j := range records {
		out = append(out, toJurisdictionResponse(j))
	}
	return listResponse{Jurisdictions: out}
}
