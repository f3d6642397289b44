package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
)

func TestWeeksForPageDelta(t *testing.T) {
	tests := []struct {
		name     string
		oldPages int
		newPages int
		want     int
	}{
		{"crossing one line", 8, 13, 1},
		{"no crossing", 3, 9, 0},
		{"landing exactly on a line", 5, 10, 1},
		{"crossing several lines at once", 8, 35, 3},
		{"starting from zero", 0, 25, 2},
		{"replay with equal counters", 13, 13, 0},
		{"regression never grants", 20, 13, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WeeksForPageDelta(tt.oldPages, tt.newPages))
		})
	}
}

func TestMilestoneValue(t *testing.T) {
	assert.Equal(t, 10, MilestoneValue(13))
	assert.Equal(t, 30, MilestoneValue(30))
	assert.Equal(t, 0, MilestoneValue(9))
}

func TestNextMilestoneAt(t *testing.T) {
	assert.Equal(t, 10, NextMilestoneAt(0))
	assert.Equal(t, 20, NextMilestoneAt(13))
	assert.Equal(t, 20, NextMilestoneAt(10))
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		name     string
		approved int
		avg      float64
		want     Tier
	}{
		{"default bronze", 0, 0, TierBronze},
		{"volume without quality stays bronze", 30, 3.0, TierBronze},
		{"quality without volume stays bronze", 5, 5.0, TierBronze},
		{"silver bar", 20, 3.5, TierSilver},
		{"gold bar", 50, 4.0, TierGold},
		{"platinum bar", 100, 4.5, TierPlatinum},
		{"gold volume but silver quality", 60, 3.7, TierSilver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TierFor(tt.approved, tt.avg))
		})
	}
}

func TestTierRankOrdering(t *testing.T) {
	assert.Less(t, TierBronze.Rank(), TierSilver.Rank())
	assert.Less(t, TierSilver.Rank(), TierGold.Rank())
	assert.Less(t, TierGold.Rank(), TierPlatinum.Rank())
	assert.Equal(t, -1, Tier("mythril").Rank())
}

func TestParseTier(t *testing.T) {
	tier, err := ParseTier("gold")
	require.NoError(t, err)
	assert.Equal(t, TierGold, tier)

	_, err = ParseTier("mythril")
	assert.Error(t, err)
}

func TestEvaluateTierNeverDowngrades(t *testing.T) {
	now := time.Now()
	stats := NewContributorStats(id.NewContributorID(), now)
	stats.FormsApproved = 50
	stats.ScoreSum = 200 // avg 4.0
	stats.ScoreCount = 50

	require.True(t, stats.EvaluateTier())
	assert.Equal(t, TierGold, stats.Tier)

	// A run of low scores drags the average below the gold bar.
	stats.ScoreSum = 100
	assert.False(t, stats.EvaluateTier())
	assert.Equal(t, TierGold, stats.Tier)
}

func TestApplyContributionStreaks(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	stats := NewContributorStats(id.NewContributorID(), now)

	// First contribution starts the streak at 1.
	bonus := stats.ApplyContribution(now)
	assert.False(t, bonus)
	assert.Equal(t, 1, stats.CurrentStreak)
	assert.Equal(t, 1, stats.BestStreak)

	// Daily contributions extend the streak; the bonus fires exactly when the
	// best streak first reaches seven.
	for day := 1; day < 7; day++ {
		bonus = stats.ApplyContribution(now.Add(time.Duration(day) * 24 * time.Hour))
		if day == 6 {
			assert.True(t, bonus, "seventh consecutive day should earn the bonus")
		} else {
			assert.False(t, bonus)
		}
	}
	assert.Equal(t, 7, stats.CurrentStreak)
	assert.Equal(t, 7, stats.BestStreak)

	// A gap over one day resets the current streak but keeps the best.
	bonus = stats.ApplyContribution(now.Add(10 * 24 * time.Hour))
	assert.False(t, bonus)
	assert.Equal(t, 1, stats.CurrentStreak)
	assert.Equal(t, 7, stats.BestStreak)

	// Rebuilding to seven must not grant the bonus twice.
	base := now.Add(10 * 24 * time.Hour)
	for day := 1; day <= 8; day++ {
		bonus = stats.ApplyContribution(base.Add(time.Duration(day) * 24 * time.Hour))
		assert.False(t, bonus)
	}
	assert.Equal(t, 9, stats.CurrentStreak)
	assert.Equal(t, 9, stats.BestStreak)
}

func TestApplyScoreRunningMean(t *testing.T) {
	stats := NewContributorStats(id.NewContributorID(), time.Now())
	assert.Zero(t, stats.AverageScore())

	stats.ApplyScore(4)
	stats.ApplyScore(5)
	stats.ApplyScore(3)
	assert.InDelta(t, 4.0, stats.AverageScore(), 1e-9)
	assert.Equal(t, int64(12), stats.ScoreSum)
	assert.Equal(t, 3, stats.ScoreCount)
}

func TestDrainPendingFloorsAtZero(t *testing.T) {
	stats := NewContributorStats(id.NewContributorID(), time.Now())
	stats.FormsPending = 1
	stats.DrainPending()
	stats.DrainPending()
	assert.Zero(t, stats.FormsPending)
}

func TestLedgerEntryActivity(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	contributor := id.NewContributorID()
	form := id.NewFormID()

	entry := NewMilestoneEntry(contributor, form, 2, 20, now)
	assert.Equal(t, RewardMilestone, entry.RewardType)
	assert.Equal(t, 2, entry.AmountWeeks)
	assert.Equal(t, MilestoneTypePages, entry.MilestoneType)
	assert.Equal(t, 20, entry.MilestoneValue)
	require.NotNil(t, entry.ExpiresAt)
	assert.Equal(t, now.Add(RewardValidity), *entry.ExpiresAt)

	assert.True(t, entry.ActiveAt(now))
	assert.True(t, entry.ActiveAt(now.Add(RewardValidity-time.Second)))
	assert.False(t, entry.ActiveAt(now.Add(RewardValidity)), "window end is exclusive")

	entry.Status = RewardStatusUsed
	assert.False(t, entry.ActiveAt(now))
}

func TestBonusEntryConstructors(t *testing.T) {
	now := time.Now()
	contributor := id.NewContributorID()

	welcome := NewWelcomeBonusEntry(contributor, id.NewFormID(), now)
	assert.Equal(t, RewardWelcomeBonus, welcome.RewardType)
	assert.Equal(t, WelcomeBonusWeeks, welcome.AmountWeeks)
	assert.NotNil(t, welcome.FormID)
	assert.Empty(t, welcome.MilestoneType)

	streak := NewStreakBonusEntry(contributor, now)
	assert.Equal(t, RewardStreakBonus, streak.RewardType)
	assert.Equal(t, StreakBonusWeeks, streak.AmountWeeks)
	assert.Nil(t, streak.FormID)
}
