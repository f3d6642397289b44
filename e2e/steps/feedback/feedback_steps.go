package feedback

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	PATCH(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (interface{}, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetFormID() string
	GetFeedbackID() string
	SetFeedbackID(id string)
	GetTicketNumber() string
	SetTicketNumber(tn string)
}

// RegisterSteps registers feedback reporting and triage step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &feedbackSteps{tc: tc}

	// Reporting
	ctx.Step(`^I report "([^"]*)" feedback with severity (\d+) saying "([^"]*)"$`, steps.reportFeedback)
	ctx.Step(`^I have reported "([^"]*)" feedback with severity (\d+)$`, steps.haveReportedFeedback)

	// Voting and triage
	ctx.Step(`^I upvote the feedback$`, steps.upvoteFeedback)
	ctx.Step(`^I downvote the feedback$`, steps.downvoteFeedback)
	ctx.Step(`^I mark the feedback "([^"]*)" with resolution "([^"]*)"$`, steps.markFeedbackWithResolution)
	ctx.Step(`^I mark the feedback "([^"]*)"$`, steps.markFeedback)

	// Listing
	ctx.Step(`^I list the feedback on the form$`, steps.listFeedback)
	ctx.Step(`^the feedback list should include the saved ticket$`, steps.listShouldIncludeTicket)
}

type feedbackSteps struct {
	tc TestContext
}

func (s *feedbackSteps) report(feedbackType string, severity int, content string) error {
	body := map[string]interface{}{
		"feedback_type": feedbackType,
		"severity":      severity,
		"content":       content,
	}
	if err := s.tc.POST("/forms/"+s.tc.GetFormID()+"/feedback", body); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() == http.StatusCreated {
		id, err := s.tc.GetResponseField("feedback.id")
		if err != nil {
			return err
		}
		s.tc.SetFeedbackID(fmt.Sprintf("%v", id))

		ticket, err := s.tc.GetResponseField("ticket_number")
		if err != nil {
			return err
		}
		s.tc.SetTicketNumber(fmt.Sprintf("%v", ticket))
	}
	return nil
}

func (s *feedbackSteps) reportFeedback(ctx context.Context, feedbackType string, severity int, content string) error {
	return s.report(feedbackType, severity, content)
}

func (s *feedbackSteps) haveReportedFeedback(ctx context.Context, feedbackType string, severity int) error {
	err := s.report(feedbackType, severity, "The second paragraph cites a statute that was repealed last year.")
	if err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != http.StatusCreated {
		return fmt.Errorf("feedback setup returned %d: %s", s.tc.GetLastResponseStatus(), s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *feedbackSteps) vote(direction string) error {
	return s.tc.POST("/feedback/"+s.tc.GetFeedbackID()+"/vote", map[string]interface{}{
		"direction": direction,
	})
}

func (s *feedbackSteps) upvoteFeedback(ctx context.Context) error {
	return s.vote("up")
}

func (s *feedbackSteps) downvoteFeedback(ctx context.Context) error {
	return s.vote("down")
}

func (s *feedbackSteps) markFeedback(ctx context.Context, status string) error {
	return s.tc.PATCH("/feedback/"+s.tc.GetFeedbackID()+"/status", map[string]interface{}{
		"status": status,
	})
}

func (s *feedbackSteps) markFeedbackWithResolution(ctx context.Context, status, resolution string) error {
	return s.tc.PATCH("/feedback/"+s.tc.GetFeedbackID()+"/status", map[string]interface{}{
		"status":     status,
		"resolution": resolution,
	})
}

func (s *feedbackSteps) listFeedback(ctx context.Context) error {
	return s.tc.GET("/forms/"+s.tc.GetFormID()+"/feedback", nil)
}

func (s *feedbackSteps) listShouldIncludeTicket(ctx context.Context) error {
	ticket := s.tc.GetTicketNumber()
	if ticket == "" {
		return fmt.Errorf("no ticket number saved by an earlier step")
	}
	if !strings.Contains(string(s.tc.GetLastResponseBody()), ticket) {
		return fmt.Errorf("feedback list does not mention ticket %s (body: %s)", ticket, s.tc.GetLastResponseBody())
	}
	return nil
}
