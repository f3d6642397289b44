package handler

import (
	"net/http"
	"strconv"
	"time"

	formsModel "github.com/Ghostmonday/Goldleaves-sub001/internal/forms/models"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/forms/service"
	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	dErrors "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain-errors"
)

type fieldPayload struct {
	Name       string                     `json:"name"`
	Label      string                     `json:"label"`
	FieldType  string                     `json:"field_type"`
	Required   bool                       `json:"required,omitempty"`
	Repeatable bool                       `json:"repeatable,omitempty"`
	Validation formsModel.FieldValidation `json:"validation,omitempty"`
}

func (p fieldPayload) toModel() formsModel.FormField {
	return formsModel.FormField{
		Name:       p.Name,
		Label:      p.Label,
		FieldType:  formsModel.FieldType(p.FieldType),
		Required:   p.Required,
		Repeatable: p.Repeatable,
		Validation: p.Validation,
	}
}

// submitRequest carries a new submission or a revision. Content is the
// normalized textual content of the form; the digest and storage handle are
// derived server-side.
type submitRequest struct {
	Title             string         `json:"title"`
	FormNumber        string         `json:"form_number,omitempty"`
	FormType          string         `json:"form_type"`
	JurisdictionID    string         `json:"jurisdiction_id"`
	PageCount         int            `json:"page_count"`
	Fields            []fieldPayload `json:"fields"`
	Content           string         `json:"content"`
	OverrideDuplicate bool           `json:"override_duplicate,omitempty"`

	jurisdictionID id.JurisdictionID
}

// Validate checks the wire shape; draft rules live in the models package.
func (r *submitRequest) Validate() error {
	if r.Content == "" {
		return dErrors.New(dErrors.CodeValidation, "content is required")
	}
	jurisdictionID, err := id.ParseJurisdictionID(r.JurisdictionID)
	if err != nil {
		return err
	}
	r.jurisdictionID = jurisdictionID
	return nil
}

func (r *submitRequest) draft() formsModel.Draft {
	fields := make([]formsModel.FormField, 0, len(r.Fields))
	for _, f := range r.Fields {
		fields = append(fields, f.toModel())
	}
	return formsModel.Draft{
		Title:          r.Title,
		FormNumber:     r.FormNumber,
		FormType:       formsModel.FormType(r.FormType),
		JurisdictionID: r.jurisdictionID,
		PageCount:      r.PageCount,
		Fields:         fields,
	}
}

func (r *submitRequest) toCommand() service.SubmitCommand {
	return service.SubmitCommand{
		Draft:             r.draft(),
		Content:           []byte(r.Content),
		OverrideDuplicate: r.OverrideDuplicate,
	}
}

func (r *submitRequest) toResubmitCommand() service.ResubmitCommand {
	return service.ResubmitCommand{
		Draft:             r.draft(),
		Content:           []byte(r.Content),
		OverrideDuplicate: r.OverrideDuplicate,
	}
}

type reviewRequest struct {
	Decision         string                       `json:"decision"`
	Checklist        formsModel.ReviewChecklist   `json:"checklist"`
	Score            *int                         `json:"score,omitempty"`
	RequestedChanges []formsModel.RequestedChange `json:"requested_changes,omitempty"`
	RevisionDeadline *time.Time                   `json:"revision_deadline,omitempty"`

	decision formsModel.ReviewDecision
}

func (r *reviewRequest) Validate() error {
	decision, ok := formsModel.ParseReviewDecision(r.Decision)
	if !ok {
		return dErrors.Newf(dErrors.CodeValidation, "unknown review decision %q", r.Decision)
	}
	r.decision = decision
	return nil
}

func (r *reviewRequest) toCommand(formID id.FormID, reviewerID id.ReviewerID) service.ReviewCommand {
	return service.ReviewCommand{
		FormID:           formID,
		ReviewerID:       reviewerID,
		Decision:         r.decision,
		Checklist:        r.Checklist,
		Score:            r.Score,
		RequestedChanges: r.RequestedChanges,
		RevisionDeadline: r.RevisionDeadline,
	}
}

type archiveRequest struct {
	SupersededBy string `json:"superseded_by,omitempty"`

	supersededBy *id.FormID
}

func (r *archiveRequest) Validate() error {
	if r.SupersededBy == "" {
		return nil
	}
	formID, err := id.ParseFormID(r.SupersededBy)
	if err != nil {
		return err
	}
	r.supersededBy = &formID
	return nil
}

type usageRequest struct {
	Kind string `json:"kind"`

	kind formsModel.UsageKind
}

func (r *usageRequest) Validate() error {
	kind, ok := formsModel.ParseUsageKind(r.Kind)
	if !ok {
		return dErrors.Newf(dErrors.CodeValidation, "unknown usage kind %q", r.Kind)
	}
	r.kind = kind
	return nil
}

// parseListFilter reads catalog filters from the query string.
func parseListFilter(r *http.Request) (formsModel.ListFilter, error) {
	var filter formsModel.ListFilter
	q := r.URL.Query()

	if raw := q.Get("jurisdiction_id"); raw != "" {
		jurisdictionID, err := id.ParseJurisdictionID(raw)
		if err != nil {
			return filter, err
		}
		filter.JurisdictionID = &jurisdictionID
	}
	if raw := q.Get("contributor_id"); raw != "" {
		contributorID, err := id.ParseContributorID(raw)
		if err != nil {
			return filter, err
		}
		filter.ContributorID = &contributorID
	}
	if raw := q.Get("form_type"); raw != "" {
		formType, ok := formsModel.ParseFormType(raw)
		if !ok {
			return filter, dErrors.Newf(dErrors.CodeValidation, "unknown form type %q", raw)
		}
		filter.FormType = &formType
	}
	if raw := q.Get("status"); raw != "" {
		status, ok := formsModel.ParseFormStatus(raw)
		if !ok {
			return filter, dErrors.Newf(dErrors.CodeValidation, "unknown form status %q", raw)
		}
		filter.Status = &status
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeValidation, "limit must be an integer")
		}
		filter.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeValidation, "offset must be an integer")
		}
		filter.Offset = offset
	}
	return filter, nil
}
