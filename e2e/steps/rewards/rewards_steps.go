package rewards

import (
	"context"
	"encoding/json"
	"fmt"

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
	GetContributorID() string
}

// RegisterSteps registers contributor reward step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &rewardSteps{tc: tc}

	ctx.Step(`^I fetch my rewards$`, steps.fetchMyRewards)
	ctx.Step(`^I fetch the contributor's rewards$`, steps.fetchMyRewards)
	ctx.Step(`^I should hold an active "([^"]*)" reward entry$`, steps.shouldHoldActiveEntry)
	ctx.Step(`^I redeem (\d+) weeks?$`, steps.redeemWeeks)
}

type rewardSteps struct {
	tc TestContext
}

func (s *rewardSteps) fetchMyRewards(ctx context.Context) error {
	return s.tc.GET("/contributors/"+s.tc.GetContributorID()+"/rewards", s.tc.AuthHeader())
}

func (s *rewardSteps) shouldHoldActiveEntry(ctx context.Context, rewardType string) error {
	var body struct {
		ActiveEntries []struct {
			RewardType string `json:"reward_type"`
		} `json:"active_entries"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &body); err != nil {
		return fmt.Errorf("decode rewards response: %w", err)
	}
	for _, entry := range body.ActiveEntries {
		if entry.RewardType == rewardType {
			return nil
		}
	}
	return fmt.Errorf("no active %q entry (body: %s)", rewardType, s.tc.GetLastResponseBody())
}

func (s *rewardSteps) redeemWeeks(ctx context.Context, weeks int) error {
	return s.tc.POST("/contributors/"+s.tc.GetContributorID()+"/rewards/redeem", map[string]interface{}{
		"weeks": weeks,
	})
}
