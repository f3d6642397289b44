package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/rewards/models"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/rewards/store"
	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	dErrors "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain-errors"
	platformtx "github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/tx"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/requestcontext"
)

// =============================================================================
// Rewards Service Test Suite
// =============================================================================

type RewardsServiceSuite struct {
	suite.Suite
	stats   *store.MemoryStats
	ledger  *store.MemoryLedger
	service *Service
	base    time.Time
}

func TestRewardsServiceSuite(t *testing.T) {
	suite.Run(t, new(RewardsServiceSuite))
}

func (s *RewardsServiceSuite) SetupTest() {
	s.stats = store.NewMemoryStats()
	s.ledger = store.NewMemoryLedger()
	s.service = New(s.stats, s.ledger, nil)
	s.base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

// at returns a request context whose clock reads the given instant.
func (s *RewardsServiceSuite) at(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func scorePtr(n int) *int { return &n }

// =============================================================================
// Submission Path Tests
// =============================================================================

func (s *RewardsServiceSuite) TestOnSubmission() {
	contributor := id.NewContributorID()

	s.Run("first submission creates the row and starts the streak", func() {
		s.Require().NoError(s.service.OnSubmission(s.at(s.base), contributor))

		snap, err := s.service.Rewards(s.at(s.base), contributor)
		s.Require().NoError(err)
		s.Equal(1, snap.Stats.FormsSubmitted)
		s.Equal(1, snap.Stats.FormsPending)
		s.Equal(1, snap.Stats.CurrentStreak)
		s.Equal(models.TierBronze, snap.Stats.Tier)
	})

	s.Run("nil contributor rejected", func() {
		err := s.service.OnSubmission(s.at(s.base), id.ContributorID{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *RewardsServiceSuite) TestStreakBonusGrantedOnce() {
	contributor := id.NewContributorID()

	// Seven consecutive days of submissions.
	for day := 0; day < 7; day++ {
		ctx := s.at(s.base.Add(time.Duration(day) * 24 * time.Hour))
		s.Require().NoError(s.service.OnSubmission(ctx, contributor))
	}

	entries, err := s.ledger.ListByContributor(context.Background(), contributor)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(models.RewardStreakBonus, entries[0].RewardType)
	s.Equal(models.StreakBonusWeeks, entries[0].AmountWeeks)
	s.Nil(entries[0].FormID)

	// A three-day gap resets the streak; rebuilding past seven days must not
	// grant again.
	cursor := s.base.Add(9 * 24 * time.Hour)
	for day := 0; day < 9; day++ {
		cursor = cursor.Add(24 * time.Hour)
		s.Require().NoError(s.service.OnSubmission(s.at(cursor), contributor))
	}

	entries, err = s.ledger.ListByContributor(context.Background(), contributor)
	s.Require().NoError(err)
	count := 0
	for _, e := range entries {
		if e.RewardType == models.RewardStreakBonus {
			count++
		}
	}
	s.Equal(1, count, "streak bonus must be granted exactly once")
}

func (s *RewardsServiceSuite) TestOnResubmissionCountsPendingOnly() {
	contributor := id.NewContributorID()
	s.Require().NoError(s.service.OnSubmission(s.at(s.base), contributor))
	s.Require().NoError(s.service.OnRevisionRequest(s.at(s.base.Add(time.Hour)), contributor))
	s.Require().NoError(s.service.OnResubmission(s.at(s.base.Add(2*time.Hour)), contributor))

	snap, err := s.service.Rewards(s.at(s.base.Add(2*time.Hour)), contributor)
	s.Require().NoError(err)
	s.Equal(1, snap.Stats.FormsSubmitted, "resubmission must not recount the form")
	s.Equal(1, snap.Stats.FormsPending)
	s.Equal(1, snap.Stats.RevisionsRequested)
}

// =============================================================================
// Approval and Grant Tests
// =============================================================================

func (s *RewardsServiceSuite) TestMilestoneCrossing() {
	contributor := id.NewContributorID()

	// First approval brings unique pages to 8: no milestone, welcome bonus only.
	first, err := s.service.OnApproval(s.at(s.base), contributor, id.NewFormID(), 8, scorePtr(4))
	s.Require().NoError(err)
	s.True(first.Granted)
	s.Equal(models.WelcomeBonusWeeks, first.WeeksGranted)
	s.Require().Len(first.Entries, 1)
	s.Equal(models.RewardWelcomeBonus, first.Entries[0].RewardType)

	// A 5-page approval moves 8 to 13, crossing the 10-page line.
	second, err := s.service.OnApproval(s.at(s.base.Add(time.Hour)), contributor, id.NewFormID(), 5, scorePtr(4))
	s.Require().NoError(err)
	s.True(second.Granted)
	s.Equal(1, second.WeeksGranted)
	s.Require().Len(second.Entries, 1)
	entry := second.Entries[0]
	s.Equal(models.RewardMilestone, entry.RewardType)
	s.Equal(models.MilestoneTypePages, entry.MilestoneType)
	s.Equal(10, entry.MilestoneValue)
	s.Require().NotNil(entry.ExpiresAt)
	s.Equal(s.base.Add(time.Hour).Add(models.RewardValidity), *entry.ExpiresAt)
}

func (s *RewardsServiceSuite) TestFirstApprovalWithMilestone() {
	contributor := id.NewContributorID()

	summary, err := s.service.OnApproval(s.at(s.base), contributor, id.NewFormID(), 12, scorePtr(5))
	s.Require().NoError(err)
	s.True(summary.Granted)
	s.Equal(2, summary.WeeksGranted)
	s.Require().Len(summary.Entries, 2, "milestone and welcome bonus, nothing else")

	types := map[models.RewardType]int{}
	for _, e := range summary.Entries {
		types[e.RewardType] = e.AmountWeeks
	}
	s.Equal(1, types[models.RewardMilestone])
	s.Equal(1, types[models.RewardWelcomeBonus])
}

func (s *RewardsServiceSuite) TestGrantsArePartitionInvariant() {
	// The same total page count grants the same total weeks regardless of how
	// it is split across approvals.
	split := id.NewContributorID()
	for i, pages := range []int{9, 1, 10} {
		_, err := s.service.OnApproval(s.at(s.base.Add(time.Duration(i)*time.Hour)), split, id.NewFormID(), pages, nil)
		s.Require().NoError(err)
	}

	single := id.NewContributorID()
	_, err := s.service.OnApproval(s.at(s.base), single, id.NewFormID(), 20, nil)
	s.Require().NoError(err)

	milestoneWeeks := func(contributor id.ContributorID) int {
		entries, err := s.ledger.ListByContributor(context.Background(), contributor)
		s.Require().NoError(err)
		total := 0
		for _, e := range entries {
			if e.RewardType == models.RewardMilestone {
				total += e.AmountWeeks
			}
		}
		return total
	}
	s.Equal(2, milestoneWeeks(split))
	s.Equal(2, milestoneWeeks(single))
}

func (s *RewardsServiceSuite) TestApprovalCounters() {
	contributor := id.NewContributorID()
	s.Require().NoError(s.service.OnSubmission(s.at(s.base), contributor))

	_, err := s.service.OnApproval(s.at(s.base.Add(time.Hour)), contributor, id.NewFormID(), 3, scorePtr(5))
	s.Require().NoError(err)

	snap, err := s.service.Rewards(s.at(s.base.Add(time.Hour)), contributor)
	s.Require().NoError(err)
	s.Equal(1, snap.Stats.FormsApproved)
	s.Equal(0, snap.Stats.FormsPending, "approval drains the pending counter")
	s.Equal(1, snap.Stats.UniqueForms)
	s.Equal(3, snap.Stats.UniquePages)
	s.InDelta(5.0, snap.Stats.AverageScore(), 1e-9)
}

func (s *RewardsServiceSuite) TestApprovalValidation() {
	_, err := s.service.OnApproval(s.at(s.base), id.ContributorID{}, id.NewFormID(), 3, nil)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.OnApproval(s.at(s.base), id.NewContributorID(), id.FormID{}, 3, nil)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.OnApproval(s.at(s.base), id.NewContributorID(), id.NewFormID(), 0, nil)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *RewardsServiceSuite) TestTierProgressionMonotonic() {
	contributor := id.NewContributorID()

	// Nineteen approvals at score 4: volume below the silver bar.
	for i := 0; i < 19; i++ {
		summary, err := s.service.OnApproval(s.at(s.base.Add(time.Duration(i)*time.Hour)), contributor, id.NewFormID(), 1, scorePtr(4))
		s.Require().NoError(err)
		s.Equal(models.TierBronze, summary.Tier)
		s.False(summary.TierChanged)
	}

	// The twentieth crosses it.
	summary, err := s.service.OnApproval(s.at(s.base.Add(20*time.Hour)), contributor, id.NewFormID(), 1, scorePtr(4))
	s.Require().NoError(err)
	s.Equal(models.TierSilver, summary.Tier)
	s.True(summary.TierChanged)

	// A string of low scores drags the average down but never the tier.
	for i := 0; i < 10; i++ {
		summary, err = s.service.OnApproval(s.at(s.base.Add(time.Duration(21+i)*time.Hour)), contributor, id.NewFormID(), 1, scorePtr(1))
		s.Require().NoError(err)
		s.Equal(models.TierSilver, summary.Tier)
		s.False(summary.TierChanged)
	}
}

// =============================================================================
// Rejection and Revision Tests
// =============================================================================

func (s *RewardsServiceSuite) TestReviewOutcomes() {
	contributor := id.NewContributorID()
	s.Require().NoError(s.service.OnSubmission(s.at(s.base), contributor))
	s.Require().NoError(s.service.OnSubmission(s.at(s.base.Add(time.Hour)), contributor))

	s.Require().NoError(s.service.OnRejection(s.at(s.base.Add(2*time.Hour)), contributor))
	s.Require().NoError(s.service.OnRevisionRequest(s.at(s.base.Add(3*time.Hour)), contributor))

	snap, err := s.service.Rewards(s.at(s.base.Add(3*time.Hour)), contributor)
	s.Require().NoError(err)
	s.Equal(1, snap.Stats.FormsRejected)
	s.Equal(1, snap.Stats.RevisionsRequested)
	s.Equal(0, snap.Stats.FormsPending)

	// Neither outcome grants anything.
	entries, err := s.ledger.ListByContributor(context.Background(), contributor)
	s.Require().NoError(err)
	s.Empty(entries)
}

// =============================================================================
// Snapshot and Expiry Tests
// =============================================================================

func (s *RewardsServiceSuite) TestRewardsSnapshot() {
	contributor := id.NewContributorID()

	s.Run("lazily creates the stats row", func() {
		snap, err := s.service.Rewards(s.at(s.base), contributor)
		s.Require().NoError(err)
		s.Equal(contributor, snap.Stats.ContributorID)
		s.Equal(0, snap.ActiveWeeks)
		s.Equal(10, snap.NextMilestoneAt)
		s.Equal(10, snap.PagesToGo)
	})

	s.Run("reflects grants and milestone distance", func() {
		_, err := s.service.OnApproval(s.at(s.base), contributor, id.NewFormID(), 13, scorePtr(4))
		s.Require().NoError(err)

		snap, err := s.service.Rewards(s.at(s.base), contributor)
		s.Require().NoError(err)
		s.Equal(2, snap.ActiveWeeks, "one milestone week plus the welcome bonus")
		s.Len(snap.ActiveEntries, 2)
		s.Equal(20, snap.NextMilestoneAt)
		s.Equal(7, snap.PagesToGo)
	})

	s.Run("excludes entries past their window without a maintenance pass", func() {
		later := s.at(s.base.Add(models.RewardValidity + time.Hour))
		snap, err := s.service.Rewards(later, contributor)
		s.Require().NoError(err)
		s.Equal(0, snap.ActiveWeeks)
		s.Empty(snap.ActiveEntries)
		s.Equal(2, snap.Stats.FreeWeeksEarned, "earned counter is historical")
	})
}

func (s *RewardsServiceSuite) TestExpireDue() {
	contributor := id.NewContributorID()
	_, err := s.service.OnApproval(s.at(s.base), contributor, id.NewFormID(), 10, nil)
	s.Require().NoError(err)

	s.Run("nothing due inside the window", func() {
		n, err := s.service.ExpireDue(s.at(s.base.Add(24 * time.Hour)))
		s.Require().NoError(err)
		s.Zero(n)
	})

	s.Run("flips entries past the window", func() {
		n, err := s.service.ExpireDue(s.at(s.base.Add(models.RewardValidity + time.Hour)))
		s.Require().NoError(err)
		s.Equal(2, n)

		entries, err := s.ledger.ListByContributor(context.Background(), contributor)
		s.Require().NoError(err)
		for _, e := range entries {
			s.Equal(models.RewardStatusExpired, e.Status)
		}
	})

	s.Run("second pass finds nothing", func() {
		n, err := s.service.ExpireDue(s.at(s.base.Add(models.RewardValidity + 2*time.Hour)))
		s.Require().NoError(err)
		s.Zero(n)
	})
}

// =============================================================================
// Redemption Tests
// =============================================================================

func (s *RewardsServiceSuite) TestRedeem() {
	contributor := id.NewContributorID()

	// Day one: welcome bonus only (5 pages, no milestone).
	_, err := s.service.OnApproval(s.at(s.base), contributor, id.NewFormID(), 5, nil)
	s.Require().NoError(err)
	// Day two: 15 more pages cross two lines at once.
	_, err = s.service.OnApproval(s.at(s.base.Add(24*time.Hour)), contributor, id.NewFormID(), 15, nil)
	s.Require().NoError(err)

	now := s.at(s.base.Add(48 * time.Hour))

	s.Run("consumes oldest first and splits the last grant", func() {
		result, err := s.service.Redeem(now, contributor, 2)
		s.Require().NoError(err)
		s.Equal(2, result.WeeksRedeemed)
		s.Len(result.ConsumedEntries, 2, "welcome bonus fully, milestone partially")
		s.Require().NotNil(result.RemainderEntry)
		s.Equal(1, result.RemainderEntry.AmountWeeks)
		s.Equal(models.RewardMilestone, result.RemainderEntry.RewardType)
		s.Equal(1, result.ActiveWeeksLeft)

		snap, err := s.service.Rewards(now, contributor)
		s.Require().NoError(err)
		s.Equal(1, snap.ActiveWeeks)
		s.Equal(2, snap.Stats.FreeWeeksUsed)
	})

	s.Run("remainder keeps the parent grant time and window", func() {
		snap, err := s.service.Rewards(now, contributor)
		s.Require().NoError(err)
		s.Require().Len(snap.ActiveEntries, 1)
		remainder := snap.ActiveEntries[0]
		s.Equal(s.base.Add(24*time.Hour), remainder.GrantedAt)
		s.Require().NotNil(remainder.ExpiresAt)
		s.Equal(s.base.Add(24*time.Hour).Add(models.RewardValidity), *remainder.ExpiresAt)
	})

	s.Run("over-balance request rejected", func() {
		_, err := s.service.Redeem(now, contributor, 2)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("drains the balance exactly", func() {
		result, err := s.service.Redeem(now, contributor, 1)
		s.Require().NoError(err)
		s.Equal(0, result.ActiveWeeksLeft)
		s.Nil(result.RemainderEntry)

		snap, err := s.service.Rewards(now, contributor)
		s.Require().NoError(err)
		s.Zero(snap.ActiveWeeks)
		s.Equal(3, snap.Stats.FreeWeeksUsed)
	})
}

func (s *RewardsServiceSuite) TestRedeemValidation() {
	_, err := s.service.Redeem(s.at(s.base), id.ContributorID{}, 1)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.Redeem(s.at(s.base), id.NewContributorID(), 0)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.Redeem(s.at(s.base), id.NewContributorID(), 1)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput), "empty ledger has no active balance")
}

// =============================================================================
// Transaction Join Tests
// =============================================================================

func (s *RewardsServiceSuite) TestJoinsCallerTransaction() {
	runner := platformtx.NewSharded()
	svc := New(s.stats, s.ledger, runner)
	contributor := id.NewContributorID()

	ctx := platformtx.WithLockKey(s.at(s.base), contributor.String())
	err := runner.RunInTx(ctx, func(txCtx context.Context) error {
		// Must join the outer transaction instead of deadlocking on the shard.
		_, err := svc.OnApproval(txCtx, contributor, id.NewFormID(), 12, scorePtr(4))
		return err
	})
	s.Require().NoError(err)

	snap, err := svc.Rewards(s.at(s.base), contributor)
	s.Require().NoError(err)
	s.Equal(2, snap.ActiveWeeks)
}
