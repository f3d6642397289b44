package forms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	AuthHeader() map[string]string
	GetResponseField(field string) (interface{}, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	Nonce() string
	GetJurisdictionID() string
	GetContributorID() string
	GetFormID() string
	SetFormID(id string)
}

// RegisterSteps registers form submission, review, and catalog step
// definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &formSteps{tc: tc}

	// Submission
	ctx.Step(`^I submit a form titled "([^"]*)"$`, steps.submitForm)
	ctx.Step(`^I have submitted a form titled "([^"]*)"$`, steps.haveSubmittedForm)
	ctx.Step(`^I submit the same form again$`, steps.submitSameFormAgain)
	ctx.Step(`^I submit the same form again with the duplicate override$`, steps.submitSameFormWithOverride)
	ctx.Step(`^I resubmit the form titled "([^"]*)"$`, steps.resubmitForm)

	// Review
	ctx.Step(`^I approve the form$`, steps.approveForm)
	ctx.Step(`^I approve the form with score (\d+)$`, steps.approveFormWithScore)
	ctx.Step(`^I reject the form$`, steps.rejectForm)
	ctx.Step(`^I request changes to the form$`, steps.requestChanges)
	ctx.Step(`^I archive the form$`, steps.archiveForm)

	// Catalog
	ctx.Step(`^I fetch the form$`, steps.fetchForm)
	ctx.Step(`^I fetch the form anonymously$`, steps.fetchFormAnonymously)
	ctx.Step(`^I browse the catalog filtered by status "([^"]*)"$`, steps.browseCatalogByStatus)
	ctx.Step(`^I browse my submissions filtered by status "([^"]*)"$`, steps.browseMySubmissionsByStatus)
	ctx.Step(`^the catalog should list (\d+) forms?$`, steps.catalogShouldListN)
	ctx.Step(`^I record a "([^"]*)" usage on the form$`, steps.recordUsage)
}

type formSteps struct {
	tc TestContext
	// lastSubmission is replayed by the duplicate-detection steps.
	lastSubmission map[string]interface{}
}

func (s *formSteps) buildSubmission(title string) map[string]interface{} {
	// The nonce keeps titles and content unique across scenarios and runs so
	// the duplicate detector only fires on the collisions a scenario stages.
	return map[string]interface{}{
		"title":           fmt.Sprintf("%s [%s]", title, s.tc.Nonce()),
		"form_type":       "petition",
		"jurisdiction_id": s.tc.GetJurisdictionID(),
		"page_count":      3,
		"fields": []map[string]interface{}{
			{
				"name":       "petitioner_name",
				"label":      "Petitioner Name",
				"field_type": "text",
				"required":   true,
			},
		},
		"content": fmt.Sprintf("%s\nUniform petition text for scenario %s.", title, s.tc.Nonce()),
	}
}

func (s *formSteps) submit(body map[string]interface{}) error {
	s.lastSubmission = body
	if err := s.tc.POST("/forms", body); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() == http.StatusCreated {
		id, err := s.tc.GetResponseField("id")
		if err != nil {
			return err
		}
		s.tc.SetFormID(fmt.Sprintf("%v", id))
	}
	return nil
}

func (s *formSteps) submitForm(ctx context.Context, title string) error {
	return s.submit(s.buildSubmission(title))
}

func (s *formSteps) haveSubmittedForm(ctx context.Context, title string) error {
	if err := s.submit(s.buildSubmission(title)); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != http.StatusCreated {
		return fmt.Errorf("form setup returned %d: %s", s.tc.GetLastResponseStatus(), s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *formSteps) submitSameFormAgain(ctx context.Context) error {
	if s.lastSubmission == nil {
		return fmt.Errorf("no earlier submission to repeat")
	}
	return s.tc.POST("/forms", s.lastSubmission)
}

func (s *formSteps) submitSameFormWithOverride(ctx context.Context) error {
	if s.lastSubmission == nil {
		return fmt.Errorf("no earlier submission to repeat")
	}
	body := make(map[string]interface{}, len(s.lastSubmission)+1)
	for k, v := range s.lastSubmission {
		body[k] = v
	}
	body["override_duplicate"] = true

	if err := s.tc.POST("/forms", body); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() == http.StatusCreated {
		id, err := s.tc.GetResponseField("id")
		if err != nil {
			return err
		}
		s.tc.SetFormID(fmt.Sprintf("%v", id))
	}
	return nil
}

func (s *formSteps) resubmitForm(ctx context.Context, title string) error {
	return s.tc.POST("/forms/"+s.tc.GetFormID()+"/resubmit", s.buildSubmission(title))
}

func (s *formSteps) review(decision string, score int, extra map[string]interface{}) error {
	body := map[string]interface{}{
		"decision": decision,
		"checklist": map[string]interface{}{
			"content_verified":       true,
			"fields_validated":       true,
			"jurisdiction_confirmed": true,
			"citations_checked":      true,
		},
	}
	if score > 0 {
		body["score"] = score
	}
	for k, v := range extra {
		body[k] = v
	}
	return s.tc.POST("/forms/"+s.tc.GetFormID()+"/review", body)
}

func (s *formSteps) approveForm(ctx context.Context) error {
	return s.review("approve", 0, nil)
}

func (s *formSteps) approveFormWithScore(ctx context.Context, score int) error {
	return s.review("approve", score, nil)
}

func (s *formSteps) rejectForm(ctx context.Context) error {
	return s.review("reject", 0, nil)
}

func (s *formSteps) requestChanges(ctx context.Context) error {
	return s.review("request_revision", 0, map[string]interface{}{
		"requested_changes": []map[string]interface{}{
			{"field": "petitioner_name", "description": "Split into first and last name"},
		},
	})
}

func (s *formSteps) archiveForm(ctx context.Context) error {
	return s.tc.POST("/forms/"+s.tc.GetFormID()+"/archive", map[string]interface{}{})
}

func (s *formSteps) fetchForm(ctx context.Context) error {
	return s.tc.GET("/forms/"+s.tc.GetFormID(), s.tc.AuthHeader())
}

func (s *formSteps) fetchFormAnonymously(ctx context.Context) error {
	return s.tc.GET("/forms/"+s.tc.GetFormID(), nil)
}

func (s *formSteps) browseCatalogByStatus(ctx context.Context, status string) error {
	return s.tc.GET("/forms?status="+status, nil)
}

// browseMySubmissionsByStatus scopes the listing to the scenario's own
// contributor so counts stay deterministic on a shared database.
func (s *formSteps) browseMySubmissionsByStatus(ctx context.Context, status string) error {
	return s.tc.GET("/forms?status="+status+"&contributor_id="+s.tc.GetContributorID(), s.tc.AuthHeader())
}

func (s *formSteps) catalogShouldListN(ctx context.Context, expected int) error {
	var body struct {
		Forms []json.RawMessage `json:"forms"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &body); err != nil {
		return fmt.Errorf("decode catalog response: %w", err)
	}
	if len(body.Forms) != expected {
		return fmt.Errorf("expected %d forms in the catalog, got %d", expected, len(body.Forms))
	}
	return nil
}

func (s *formSteps) recordUsage(ctx context.Context, kind string) error {
	return s.tc.POST("/forms/"+s.tc.GetFormID()+"/usage", map[string]interface{}{"kind": kind})
}
