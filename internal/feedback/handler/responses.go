package handler

import (
	"time"

	feedbackModel "github.com/Ghostmonday/Goldleaves-sub001/internal/feedback/models"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/feedback/service"
)

// feedbackResponse is the public view of a report. The reporter's user id is
// deliberately absent; reports are public, reporters are not.
type feedbackResponse struct {
	ID            string    `json:"id"`
	TicketNumber  string    `json:"ticket_number"`
	FormID        string    `json:"form_id"`
	FeedbackType  string    `json:"feedback_type"`
	Severity      int       `json:"severity"`
	Priority      string    `json:"priority"`
	Status        string    `json:"status"`
	FieldName     string    `json:"field_name,omitempty"`
	Content       string    `json:"content"`
	AssignedTo    string    `json:"assigned_to,omitempty"`
	Upvotes       int       `json:"upvotes"`
	Downvotes     int       `json:"downvotes"`
	ImpactScore   int       `json:"impact_score"`
	UsersAffected int       `json:"users_affected"`
	TrendCount    int       `json:"trend_count"`
	Browser       string    `json:"browser,omitempty"`
	Resolution    string    `json:"resolution,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type receiptResponse struct {
	Feedback            feedbackResponse `json:"feedback"`
	TicketNumber        string           `json:"ticket_number"`
	Priority            string           `json:"priority"`
	ResponseTargetHours int              `json:"response_target_hours"`
}

type voteResponse struct {
	Feedback  feedbackResponse `json:"feedback"`
	Escalated bool             `json:"escalated"`
}

type listResponse struct {
	Feedback []feedbackResponse `json:"feedback"`
}

func toFeedbackResponse(fb *feedbackModel.FormFeedback) feedbackResponse {
	resp := feedbackResponse{
		ID:            fb.ID.String(),
		TicketNumber:  fb.TicketNumber,
		FormID:        fb.FormID.String(),
		FeedbackType:  fb.FeedbackType.String(),
		Severity:      fb.Severity,
		Priority:      fb.Priority.String(),
		Status:        fb.Status.String(),
		FieldName:     fb.FieldName,
		Content:       fb.Content,
		Upvotes:       fb.Upvotes,
		Downvotes:     fb.Downvotes,
		ImpactScore:   fb.ImpactScore(),
		UsersAffected: fb.UsersAffected,
		TrendCount:    fb.TrendCount,
		Browser:       fb.Browser,
		Resolution:    fb.Resolution,
		CreatedAt:     fb.CreatedAt,
		UpdatedAt:     fb.UpdatedAt,
	}
	if fb.AssignedTo != nil {
		resp.AssignedTo = fb.AssignedTo.String()
	}
	return resp
}

func toReceiptResponse(receipt *service.Receipt) receiptResponse {
	return receiptResponse{
		Feedback:            toFeedbackResponse(receipt.Feedback),
		TicketNumber:        receipt.TicketNumber,
		Priority:            receipt.Priority.String(),
		ResponseTargetHours: int(receipt.ResponseTarget.Hours()),
	}
}

func toVoteResponse(result *service.VoteResult) voteResponse {
	return voteResponse{
		Feedback:  toFeedbackResponse(result.Feedback),
		Escalated: result.Escalated,
	}
}

func toListResponse(reports []*feedbackModel.FormFeedback) listResponse {
	out := make([]feedbackResponse, 0, len(reports))
	for _, fb := range reports {
		out = append(out, toFeedbackResponse(fb))
	}
	return listResponse{Feedback: out}
}
