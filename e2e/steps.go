package e2e

import (
	"github.com/cucumber/godog"

	"github.com/Ghostmonday/Goldleaves-sub001/e2e/steps/common"
	"github.com/Ghostmonday/Goldleaves-sub001/e2e/steps/directory"
	"github.com/Ghostmonday/Goldleaves-sub001/e2e/steps/feedback"
	"github.com/Ghostmonday/Goldleaves-sub001/e2e/steps/forms"
	"github.com/Ghostmonday/Goldleaves-sub001/e2e/steps/rewards"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (background, authentication, generic assertions)
	common.RegisterSteps(ctx, tc)

	// Register form catalog steps
	forms.RegisterSteps(ctx, tc)

	// Register feedback triage steps
	feedback.RegisterSteps(ctx, tc)

	// Register contributor reward steps
	rewards.RegisterSteps(ctx, tc)

	// Register jurisdiction directory steps
	directory.RegisterSteps(ctx, tc)
}
