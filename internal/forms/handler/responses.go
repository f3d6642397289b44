package handler

import (
	"time"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/dedup"
	formsModel "github.com/Ghostmonday/Goldleaves-sub001/internal/forms/models"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/forms/service"
)

type formResponse struct {
	ID               string                       `json:"id"`
	Title            string                       `json:"title"`
	FormNumber       string                       `json:"form_number,omitempty"`
	FormType         string                       `json:"form_type"`
	Status           string                       `json:"status"`
	ContributorID    string                       `json:"contributor_id"`
	ReviewerID       string                       `json:"reviewer_id,omitempty"`
	JurisdictionID   string                       `json:"jurisdiction_id"`
	ContentHash      string                       `json:"content_hash"`
	Version          int                          `json:"version"`
	PageCount        int                          `json:"page_count"`
	Fields           []fieldPayload               `json:"fields,omitempty"`
	ReviewScore      *int                         `json:"review_score,omitempty"`
	ReviewChecklist  *formsModel.ReviewChecklist  `json:"review_checklist,omitempty"`
	RequestedChanges []formsModel.RequestedChange `json:"requested_changes,omitempty"`
	RevisionDeadline *time.Time                   `json:"revision_deadline,omitempty"`
	IsPublic         bool                         `json:"is_public"`
	ViewCount        int64                        `json:"view_count"`
	DownloadCount    int64                        `json:"download_count"`
	SupersededBy     string                       `json:"superseded_by,omitempty"`
	CreatedAt        time.Time                    `json:"created_at"`
	UpdatedAt        time.Time                    `json:"updated_at"`
}

type duplicateMatchResponse struct {
	FormID     string `json:"form_id"`
	MatchType  string `json:"match_type"`
	Confidence int    `json:"confidence"`
}

type duplicateResponse struct {
	Error            string                   `json:"error"`
	ErrorDescription string                   `json:"error_description"`
	Matches          []duplicateMatchResponse `json:"matches"`
}

type grantResponse struct {
	Granted      bool     `json:"granted"`
	WeeksGranted int      `json:"weeks_granted"`
	RewardTypes  []string `json:"reward_types,omitempty"`
	Tier         string   `json:"tier"`
	TierChanged  bool     `json:"tier_changed"`
}

type reviewResponse struct {
	Form  formResponse   `json:"form"`
	Grant *grantResponse `json:"grant,omitempty"`
}

type listResponse struct {
	Forms []formResponse `json:"forms"`
}

func toFieldPayload(f formsModel.FormField) fieldPayload {
	return fieldPayload{
		Name:       f.Name,
		Label:      f.Label,
		FieldType:  f.FieldType.String(),
		Required:   f.Required,
		Repeatable: f.Repeatable,
		Validation: f.Validation,
	}
}

func toFormResponse(form *formsModel.Form) formResponse {
	resp := formResponse{
		ID:               form.ID.String(),
		Title:            form.Title,
		FormNumber:       form.FormNumber,
		FormType:         form.FormType.String(),
		Status:           form.Status.String(),
		ContributorID:    form.ContributorID.String(),
		JurisdictionID:   form.JurisdictionID.String(),
		ContentHash:      form.ContentHash,
		Version:          form.Version,
		PageCount:        form.PageCount,
		ReviewScore:      form.ReviewScore,
		ReviewChecklist:  form.ReviewChecklist,
		RequestedChanges: form.RequestedChanges,
		RevisionDeadline: form.RevisionDeadline,
		IsPublic:         form.IsPublic,
		ViewCount:        form.ViewCount,
		DownloadCount:    form.DownloadCount,
		CreatedAt:        form.CreatedAt,
		UpdatedAt:        form.UpdatedAt,
	}
	if form.ReviewerID != nil {
		resp.ReviewerID = form.ReviewerID.String()
	}
	if form.SupersededBy != nil {
		resp.SupersededBy = form.SupersededBy.String()
	}
	if len(form.Fields) > 0 {
		fields := make([]fieldPayload, 0, len(form.Fields))
		for _, f := range form.Fields {
			fields = append(fields, toFieldPayload(f))
		}
		resp.Fields = fields
	}
	return resp
}

func toDuplicateResponse(verdict *dedup.Result) duplicateResponse {
	matches := make([]duplicateMatchResponse, 0, len(verdict.Matches))
	for _, m := range verdict.Matches {
		matches = append(matches, duplicateMatchResponse{
			FormID:     m.FormID.String(),
			MatchType:  m.MatchType.String(),
			Confidence: m.Confidence,
		})
	}
	return duplicateResponse{
		Error:            "duplicate_detected",
		ErrorDescription: "a similar form already exists; set override_duplicate to submit anyway",
		Matches:          matches,
	}
}

func toReviewResponse(result *service.ReviewResult) reviewResponse {
	resp := reviewResponse{Form: toFormResponse(result.Form)}
	if result.Grant != nil {
		rewardTypes := make([]string, 0, len(result.Grant.Entries))
		for _, e := range result.Grant.Entries {
			rewardTypes = append(rewardTypes, e.RewardType.String())
		}
		resp.Grant = &grantResponse{
			Granted:      result.Grant.Granted,
			WeeksGranted: result.Grant.WeeksGranted,
			RewardTypes:  rewardTypes,
			Tier:         result.Grant.Tier.String(),
			TierChanged:  result.Grant.TierChanged,
		}
	}
	return resp
}

func toListResponse(forms []*formsModel.Form) listResponse {
	out := make([]formResponse, 0, len(forms))
	for _, form := range forms {
		out = append(out, toFormResponse(form))
	}
	return listResponse{Forms: out}
}
