package directory

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (interface{}, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetJurisdictionID() string
	SetJurisdictionID(id string)
}

// RegisterSteps registers jurisdiction directory step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &directorySteps{tc: tc}

	ctx.Step(`^I ensure a jurisdiction for state "([^"]*)" county "([^"]*)" court "([^"]*)"$`, steps.ensureJurisdiction)
	ctx.Step(`^I ensure a jurisdiction for state "([^"]*)" county "([^"]*)" court "([^"]*)" under the saved jurisdiction$`, steps.ensureChildJurisdiction)
	ctx.Step(`^I ensure a state-level jurisdiction for "([^"]*)"$`, steps.ensureStateJurisdiction)
	ctx.Step(`^I save the jurisdiction id$`, steps.saveJurisdictionID)
	ctx.Step(`^I list the jurisdictions$`, steps.listJurisdictions)
	ctx.Step(`^I look up the saved jurisdiction$`, steps.lookUpSavedJurisdiction)
	ctx.Step(`^I list the children of the saved jurisdiction$`, steps.listChildren)
	ctx.Step(`^the response field "id" should match the saved jurisdiction$`, steps.idShouldMatchSaved)
}

type directorySteps struct {
	tc TestContext
}

func (s *directorySteps) ensureJurisdiction(ctx context.Context, state, county, court string) error {
	return s.tc.POST("/jurisdictions", map[string]interface{}{
		"state":      state,
		"county":     county,
		"court_type": court,
	})
}

func (s *directorySteps) ensureStateJurisdiction(ctx context.Context, state string) error {
	return s.tc.POST("/jurisdictions", map[string]interface{}{
		"state": state,
	})
}

func (s *directorySteps) ensureChildJurisdiction(ctx context.Context, state, county, court string) error {
	return s.tc.POST("/jurisdictions", map[string]interface{}{
		"state":      state,
		"county":     county,
		"court_type": court,
		"parent_id":  s.tc.GetJurisdictionID(),
	})
}

func (s *directorySteps) saveJurisdictionID(ctx context.Context) error {
	id, err := s.tc.GetResponseField("id")
	if err != nil {
		return fmt.Errorf("%w (body: %s)", err, s.tc.GetLastResponseBody())
	}
	s.tc.SetJurisdictionID(fmt.Sprintf("%v", id))
	return nil
}

func (s *directorySteps) listJurisdictions(ctx context.Context) error {
	return s.tc.GET("/jurisdictions", nil)
}

func (s *directorySteps) lookUpSavedJurisdiction(ctx context.Context) error {
	return s.tc.GET("/jurisdictions/"+s.tc.GetJurisdictionID(), nil)
}

func (s *directorySteps) listChildren(ctx context.Context) error {
	return s.tc.GET("/jurisdictions/"+s.tc.GetJurisdictionID()+"/children", nil)
}

func (s *directorySteps) idShouldMatchSaved(ctx context.Context) error {
	id, err := s.tc.GetResponseField("id")
	if err != nil {
		return fmt.Errorf("%w (body: %s)", err, s.tc.GetLastResponseBody())
	}
	if got := fmt.Sprintf("%v", id); got != s.tc.GetJurisdictionID() {
		return fmt.Errorf("expected the saved jurisdiction %s, got %s", s.tc.GetJurisdictionID(), got)
	}
	return nil
}
