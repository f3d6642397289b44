package handler

import (
	"net/http"
	"strconv"

	feedbackModel "github.com/Ghostmonday/Goldleaves-sub001/internal/feedback/models"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/feedback/service"
	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	dErrors "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain-errors"
)

// submitRequest carries one defect report. The reporter and the form come
// from the route and the token, never from the body.
type submitRequest struct {
	FeedbackType  string `json:"feedback_type"`
	Severity      int    `json:"severity"`
	FieldName     string `json:"field_name,omitempty"`
	Content       string `json:"content"`
	UsersAffected int    `json:"users_affected,omitempty"`
}

// Validate checks the wire shape; report rules live in the models package.
func (r *submitRequest) Validate() error {
	if r.Content == "" {
		return dErrors.New(dErrors.CodeValidation, "content is required")
	}
	return nil
}

func (r *submitRequest) toReport(formID id.FormID, userID id.UserID, userAgent string) feedbackModel.Report {
	return feedbackModel.Report{
		FormID:        formID,
		UserID:        userID,
		FeedbackType:  feedbackModel.FeedbackType(r.FeedbackType),
		Severity:      r.Severity,
		FieldName:     r.FieldName,
		Content:       r.Content,
		UsersAffected: r.UsersAffected,
		UserAgent:     userAgent,
	}
}

type voteRequest struct {
	Direction string `json:"direction"`

	direction feedbackModel.VoteDirection
}

func (r *voteRequest) Validate() error {
	direction, ok := feedbackModel.ParseVoteDirection(r.Direction)
	if !ok {
		return dErrors.Newf(dErrors.CodeValidation, "unknown vote direction %q", r.Direction)
	}
	r.direction = direction
	return nil
}

type statusRequest struct {
	Status     string `json:"status"`
	Resolution string `json:"resolution,omitempty"`

	status feedbackModel.FeedbackStatus
}

func (r *statusRequest) Validate() error {
	status, ok := feedbackModel.ParseFeedbackStatus(r.Status)
	if !ok {
		return dErrors.Newf(dErrors.CodeValidation, "unknown feedback status %q", r.Status)
	}
	r.status = status
	return nil
}

func (r *statusRequest) toCommand(feedbackID id.FeedbackID, resolverID id.ReviewerID) service.StatusUpdate {
	return service.StatusUpdate{
		FeedbackID: feedbackID,
		NewStatus:  r.status,
		ResolverID: resolverID,
		Resolution: r.Resolution,
	}
}

// parseListFilter reads listing filters from the query string.
func parseListFilter(r *http.Request) (feedbackModel.ListFilter, error) {
	var filter feedbackModel.ListFilter
	q := r.URL.Query()

	if raw := q.Get("status"); raw != "" {
		status, ok := feedbackModel.ParseFeedbackStatus(raw)
		if !ok {
			return filter, dErrors.Newf(dErrors.CodeValidation, "unknown feedback status %q", raw)
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
