package common

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string, headers map[string]string) error
	AuthenticateAs(role string) error
	ClearAuth()
	EnsureJurisdiction() error
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetResponseField(field string) (interface{}, error)
}

// RegisterSteps registers background, authentication, and generic assertion
// step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	// Background
	ctx.Step(`^the registry is running$`, steps.registryIsRunning)
	ctx.Step(`^a jurisdiction is on file$`, steps.jurisdictionOnFile)

	// Authentication
	ctx.Step(`^I am authenticated as an? (contributor|reviewer|administrator|user)$`, steps.authenticateAs)
	ctx.Step(`^I am not authenticated$`, steps.notAuthenticated)

	// Generic response assertions
	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.responseFieldShouldBeString)
	ctx.Step(`^the response field "([^"]*)" should be (\d+)$`, steps.responseFieldShouldBeNumber)
	ctx.Step(`^the response field "([^"]*)" should be (true|false)$`, steps.responseFieldShouldBeBool)
	ctx.Step(`^the response field "([^"]*)" should start with "([^"]*)"$`, steps.responseFieldShouldStartWith)
	ctx.Step(`^the response field "([^"]*)" should be present$`, steps.responseFieldShouldBePresent)
	ctx.Step(`^the response should contain "([^"]*)"$`, steps.responseShouldContain)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) registryIsRunning(ctx context.Context) error {
	if err := s.tc.GET("/healthz", nil); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != http.StatusOK {
		return fmt.Errorf("healthz returned %d", s.tc.GetLastResponseStatus())
	}
	return nil
}

func (s *commonSteps) jurisdictionOnFile(ctx context.Context) error {
	return s.tc.EnsureJurisdiction()
}

func (s *commonSteps) authenticateAs(ctx context.Context, role string) error {
	return s.tc.AuthenticateAs(role)
}

func (s *commonSteps) notAuthenticated(ctx context.Context) error {
	s.tc.ClearAuth()
	return nil
}

func (s *commonSteps) responseStatusShouldBe(ctx context.Context, expected int) error {
	got := s.tc.GetLastResponseStatus()
	if got != expected {
		return fmt.Errorf("expected status %d, got %d (body: %s)", expected, got, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) responseFieldShouldBeString(ctx context.Context, field, expected string) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return fmt.Errorf("%w (body: %s)", err, s.tc.GetLastResponseBody())
	}
	if got := fmt.Sprintf("%v", value); got != expected {
		return fmt.Errorf("expected %q to be %q, got %q", field, expected, got)
	}
	return nil
}

func (s *commonSteps) responseFieldShouldBeNumber(ctx context.Context, field string, expected int) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return fmt.Errorf("%w (body: %s)", err, s.tc.GetLastResponseBody())
	}
	got, ok := value.(float64)
	if !ok {
		return fmt.Errorf("expected %q to be a number, got %T", field, value)
	}
	if int(got) != expected {
		return fmt.Errorf("expected %q to be %d, got %v", field, expected, got)
	}
	return nil
}

func (s *commonSteps) responseFieldShouldBeBool(ctx context.Context, field, expected string) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return fmt.Errorf("%w (body: %s)", err, s.tc.GetLastResponseBody())
	}
	got, ok := value.(bool)
	if !ok {
		return fmt.Errorf("expected %q to be a boolean, got %T", field, value)
	}
	if fmt.Sprintf("%t", got) != expected {
		return fmt.Errorf("expected %q to be %s, got %t", field, expected, got)
	}
	return nil
}

func (s *commonSteps) responseFieldShouldStartWith(ctx context.Context, field, prefix string) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return fmt.Errorf("%w (body: %s)", err, s.tc.GetLastResponseBody())
	}
	got := fmt.Sprintf("%v", value)
	if !strings.HasPrefix(got, prefix) {
		return fmt.Errorf("expected %q to start with %q, got %q", field, prefix, got)
	}
	return nil
}

func (s *commonSteps) responseFieldShouldBePresent(ctx context.Context, field string) error {
	if _, err := s.tc.GetResponseField(field); err != nil {
		return fmt.Errorf("%w (body: %s)", err, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) responseShouldContain(ctx context.Context, needle string) error {
	body := s.tc.GetLastResponseBody()
	if !strings.Contains(string(body), needle) {
		return fmt.Errorf("response does not contain %q (body: %s)", needle, body)
	}
	return nil
}
