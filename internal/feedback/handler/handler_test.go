package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/feedback/handler/mocks"
	feedbackModel "github.com/Ghostmonday/Goldleaves-sub001/internal/feedback/models"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/feedback/service"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/platform/logger"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/platform/middleware"
	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	dErrors "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/feedback-mocks.go -package=mocks Service

// =============================================================================
// Feedback Handler Test Suite
// =============================================================================

type FeedbackHandlerSuite struct {
	suite.Suite
}

func TestFeedbackHandlerSuite(t *testing.T) {
	suite.Run(t, new(FeedbackHandlerSuite))
}

func (s *FeedbackHandlerSuite) newHandler() (chi.Router, *mocks.MockService, *middleware.JWTVerifier) {
	ctrl := gomock.NewController(s.T())
	s.T().Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	verifier := middleware.NewJWTVerifier("test-signing-key", "goldleaves", "goldleaves-api")

	r := chi.NewRouter()
	New(mockService, logger.Discard(), verifier).Register(r)
	return r, mockService, verifier
}

func (s *FeedbackHandlerSuite) bearer(verifier *middleware.JWTVerifier, subject, role string) string {
	token, err := verifier.Sign(subject, role, time.Hour)
	s.Require().NoError(err)
	return "Bearer " + token
}

func (s *FeedbackHandlerSuite) jsonBody(v any) *bytes.Reader {
	raw, err := json.Marshal(v)
	s.Require().NoError(err)
	return bytes.NewReader(raw)
}

func sampleFeedback(feedbackID id.FeedbackID, formID id.FormID) *feedbackModel.FormFeedback {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &feedbackModel.FormFeedback{
		ID:            feedbackID,
		TicketNumber:  "GL-20250601-0001",
		FormID:        formID,
		UserID:        id.NewUserID(),
		FeedbackType:  feedbackModel.TypeContentIssue,
		Severity:      3,
		Priority:      feedbackModel.PriorityNormal,
		Status:        feedbackModel.StatusReceived,
		Content:       "Paragraph 4 cites a statute repealed in 2023.",
		UsersAffected: 1,
		TrendCount:    1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func submitPayload() map[string]any {
	return map[string]any{
		"feedback_type": "content_issue",
		"severity":      3,
		"content":       "Paragraph 4 cites a statute repealed in 2023.",
	}
}

// =============================================================================
// Submission
// =============================================================================

func (s *FeedbackHandlerSuite) TestSubmitCreated() {
	r, mockService, verifier := s.newHandler()
	userID := id.NewUserID()
	formID := id.NewFormID()
	fb := sampleFeedback(id.NewFeedbackID(), formID)

	mockService.EXPECT().
		Submit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, report feedbackModel.Report) (*service.Receipt, error) {
			s.Equal(formID, report.FormID)
			s.Equal(userID, report.UserID)
			s.Equal(feedbackModel.TypeContentIssue, report.FeedbackType)
			s.Equal(3, report.Severity)
			s.Equal("test-agent/1.0", report.UserAgent)
			return &service.Receipt{
				Feedback:       fb,
				TicketNumber:   fb.TicketNumber,
				Priority:       fb.Priority,
				ResponseTarget: 72 * time.Hour,
			}, nil
		})

	req := httptest.NewRequest(http.MethodPost, "/forms/"+formID.String()+"/feedback", s.jsonBody(submitPayload()))
	req.Header.Set("Authorization", s.bearer(verifier, userID.String(), "user"))
	req.Header.Set("User-Agent", "test-agent/1.0")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	s.Equal(http.StatusCreated, rec.Code)
	var resp receiptResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("GL-20250601-0001", resp.TicketNumber)
	s.Equal("normal", resp.Priority)
	s.Equal(72, resp.ResponseTargetHours)
	s.Equal("received", resp.Feedback.Status)

	var raw map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &raw))
	feedback, ok := raw["feedback"].(map[string]any)
	s.Require().True(ok)
	_, leaked := feedback["user_id"]
	s.False(leaked, "the reporter's identity stays private")
}

func (s *FeedbackHandlerSuite) TestSubmitRequiresAuth() {
	r, _, _ := s.newHandler()

	req := httptest.NewRequest(http.MethodPost, "/forms/"+id.NewFormID().String()+"/feedback", s.jsonBody(submitPayload()))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *FeedbackHandlerSuite) TestSubmitRejectsNonUserSubject() {
	r, _, verifier := s.newHandler()

	req := httptest.NewRequest(http.MethodPost, "/forms/"+id.NewFormID().String()+"/feedback", s.jsonBody(submitPayload()))
	req.Header.Set("Authorization", s.bearer(verifier, "service-account", "user"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Contains(rec.Body.String(), "caller is not a user")
}

func (s *FeedbackHandlerSuite) TestSubmitValidatesBody() {
	r, _, verifier := s.newHandler()

	payload := submitPayload()
	delete(payload, "content")
	req := httptest.NewRequest(http.MethodPost, "/forms/"+id.NewFormID().String()+"/feedback", s.jsonBody(payload))
	req.Header.Set("Authorization", s.bearer(verifier, id.NewUserID().String(), "user"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(rec.Body.String(), "content")
}

func (s *FeedbackHandlerSuite) TestSubmitMapsUnknownForm() {
	r, mockService, verifier := s.newHandler()

	mockService.EXPECT().
		Submit(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "form not found"))

	req := httptest.NewRequest(http.MethodPost, "/forms/"+id.NewFormID().String()+"/feedback", s.jsonBody(submitPayload()))
	req.Header.Set("Authorization", s.bearer(verifier, id.NewUserID().String(), "user"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	s.Equal(http.StatusNotFound, rec.Code)
}

// =============================================================================
// Voting
// =============================================================================

func (s *FeedbackHandlerSuite) TestVote() {
	r, mockService, verifier := s.newHandler()
	feedbackID := id.NewFeedbackID()
	fb := sampleFeedback(feedbackID, id.NewFormID())
	fb.Upvotes = 1

	mockService.EXPECT().
		Vote(gomock.Any(), feedbackID, feedbackModel.VoteUp).
		Return(&service.VoteResult{Feedback: fb, ImpactScore: fb.ImpactScore(), Escalated: true}, nil)

	req := httptest.NewRequest(http.MethodPost, "/feedback/"+feedbackID.String()+"/vote", s.jsonBody(map[string]any{"direction": "up"}))
	req.Header.Set("Authorization", s.bearer(verifier, id.NewUserID().String(), "user"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	s.Equal(http.StatusOK, rec.Code)
	var resp voteResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(1, resp.Feedback.Upvotes)
	s.True(resp.Escalated)
}

func (s *FeedbackHandlerSuite) TestVoteRequiresAuth() {
	r, _, _ := s.newHandler()

	req := httptest.NewRequest(http.MethodPost, "/feedback/"+id.NewFeedbackID().String()+"/vote", s.jsonBody(map[string]any{"direction": "up"}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *FeedbackHandlerSuite) TestVoteRejectsUnknownDirection() {
	r, _, verifier := s.newHandler()

	req := httptest.NewRequest(http.MethodPost, "/feedback/"+id.NewFeedbackID().String()+"/vote", s.jsonBody(map[string]any{"direction": "sideways"}))
	req.Header.Set("Authorization", s.bearer(verifier, id.NewUserID().String(), "user"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(rec.Body.String(), "vote direction")
}

// =============================================================================
// Status Workflow
// =============================================================================

func (s *FeedbackHandlerSuite) TestStatusUpdate() {
	r, mockService, verifier := s.newHandler()
	reviewerID := id.NewReviewerID()
	feedbackID := id.NewFeedbackID()
	fb := sampleFeedback(feedbackID, id.NewFormID())
	fb.Status = feedbackModel.StatusResolved
	fb.Resolution = "Replaced the stale statute citation."

	mockService.EXPECT().
		UpdateStatus(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmd service.StatusUpdate) (*feedbackModel.FormFeedback, error) {
			s.Equal(feedbackID, cmd.FeedbackID)
			s.Equal(feedbackModel.StatusResolved, cmd.NewStatus)
			s.Equal(reviewerID, cmd.ResolverID)
			s.Equal("Replaced the stale statute citation.", cmd.Resolution)
			return fb, nil
		})

	payload := map[string]any{"status": "resolved", "resolution": "Replaced the stale statute citation."}
	req := httptest.NewRequest(http.MethodPatch, "/feedback/"+feedbackID.String()+"/status", s.jsonBody(payload))
	req.Header.Set("Authorization", s.bearer(verifier, reviewerID.String(), "reviewer"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	s.Equal(http.StatusOK, rec.Code)
	var resp feedbackResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("resolved", resp.Status)
	s.Equal("Replaced the stale statute citation.", resp.Resolution)
}

func (s *FeedbackHandlerSuite) TestStatusForbiddenForUsers() {
	r, _, verifier := s.newHandler()

	payload := map[string]any{"status": "resolved"}
	req := httptest.NewRequest(http.MethodPatch, "/feedback/"+id.NewFeedbackID().String()+"/status", s.jsonBody(payload))
	req.Header.Set("Authorization", s.bearer(verifier, id.NewUserID().String(), "user"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *FeedbackHandlerSuite) TestStatusRejectsUnknownStatus() {
	r, _, verifier := s.newHandler()

	payload := map[string]any{"status": "paused"}
	req := httptest.NewRequest(http.MethodPatch, "/feedback/"+id.NewFeedbackID().String()+"/status", s.jsonBody(payload))
	req.Header.Set("Authorization", s.bearer(verifier, id.NewReviewerID().String(), "reviewer"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(rec.Body.String(), "feedback status")
}

func (s *FeedbackHandlerSuite) TestStatusMapsInvalidState() {
	r, mockService, verifier := s.newHandler()
	feedbackID := id.NewFeedbackID()

	mockService.EXPECT().
		UpdateStatus(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeInvalidState, "feedback is resolved and can no longer change"))

	payload := map[string]any{"status": "in_progress"}
	req := httptest.NewRequest(http.MethodPatch, "/feedback/"+feedbackID.String()+"/status", s.jsonBody(payload))
	req.Header.Set("Authorization", s.bearer(verifier, id.NewReviewerID().String(), "reviewer"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	s.Equal(http.StatusConflict, rec.Code)
}

// =============================================================================
// Listing
// =============================================================================

func (s *FeedbackHandlerSuite) TestListParsesFilters() {
	r, mockService, _ := s.newHandler()
	formID := id.NewFormID()
	fb := sampleFeedback(id.NewFeedbackID(), formID)
	fb.Status = feedbackModel.StatusTriaged

	mockService.EXPECT().
		ListByForm(gomock.Any(), formID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ id.FormID, filter feedbackModel.ListFilter) ([]*feedbackModel.FormFeedback, error) {
			s.Require().NotNil(filter.Status)
			s.Equal(feedbackModel.StatusTriaged, *filter.Status)
			s.Equal(5, filter.Limit)
			s.Equal(2, filter.Offset)
			return []*feedbackModel.FormFeedback{fb}, nil
		})

	req := httptest.NewRequest(http.MethodGet, "/forms/"+formID.String()+"/feedback?status=triaged&limit=5&offset=2", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	s.Equal(http.StatusOK, rec.Code)
	var resp listResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Require().Len(resp.Feedback, 1)
	s.Equal("triaged", resp.Feedback[0].Status)
}

func (s *FeedbackHandlerSuite) TestListRejectsBadFilter() {
	r, _, _ := s.newHandler()

	req := httptest.NewRequest(http.MethodGet, "/forms/"+id.NewFormID().String()+"/feedback?status=bogus", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *FeedbackHandlerSuite) TestListRejectsBadFormID() {
	r, _, _ := s.newHandler()

	req := httptest.NewRequest(http.MethodGet, "/forms/not-a-uuid/feedback", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	s.Equal(http.StatusBadRequest, rec.Code)
}
