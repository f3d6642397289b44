// Package models holds the contributor stats aggregate, the append-only
// reward ledger entry, and the pure milestone/tier arithmetic the ledger
// engine is built on.
package models

import (
	"fmt"
	"time"

	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	dErrors "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain-errors"
)

// Grant arithmetic. Thresholds are fixed configuration, not a rules engine.
const (
	// PagesPerFreeWeek is the milestone rate: one free week per ten unique pages.
	PagesPerFreeWeek = 10
	// WelcomeBonusWeeks is granted once, on a contributor's first approval.
	WelcomeBonusWeeks = 1
	// StreakBonusWeeks is granted once, when the contribution streak first reaches
	// StreakBonusDays.
	StreakBonusWeeks = 1
	// StreakBonusDays is the streak length that triggers the one-time streak bonus.
	StreakBonusDays = 7
	// RewardValidity is the window after which an unredeemed entry expires.
	RewardValidity = 365 * 24 * time.Hour

	// contributionWindow is the maximum gap between contributions that still
	// extends the current streak.
	contributionWindow = 24 * time.Hour
)

// Tier classifies a contributor by volume and review quality. Recognition
// only, never access control.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

var validTiers = map[Tier]struct{}{
	TierBronze:   {},
	TierSilver:   {},
	TierGold:     {},
	TierPlatinum: {},
}

// ParseTier validates a tier label from storage or input.
func ParseTier(raw string) (Tier, error) {
	t := Tier(raw)
	if !t.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "invalid tier: %q", raw)
	}
	return t, nil
}

func (t Tier) IsValid() bool {
	_, ok := validTiers[t]
	return ok
}

func (t Tier) String() string { return string(t) }

// Rank orders tiers so progression can be enforced as monotonic.
func (t Tier) Rank() int {
	switch t {
	case TierBronze:
		return 0
	case TierSilver:
		return 1
	case TierGold:
		return 2
	case TierPlatinum:
		return 3
	default:
		return -1
	}
}

// TierFor returns the highest tier whose volume and quality bar the
// contributor clears. Callers must still apply the no-downgrade rule.
func TierFor(formsApproved int, averageScore float64) Tier {
	switch {
	case formsApproved >= 100 && averageScore >= 4.5:
		return TierPlatinum
	case formsApproved >= 50 && averageScore >= 4.0:
		return TierGold
	case formsApproved >= 20 && averageScore >= 3.5:
		return TierSilver
	default:
		return TierBronze
	}
}

// RewardType labels why a ledger entry was granted.
type RewardType string

const (
	RewardMilestone    RewardType = "milestone"
	RewardWelcomeBonus RewardType = "welcome_bonus"
	RewardStreakBonus  RewardType = "streak_bonus"
)

var validRewardTypes = map[RewardType]struct{}{
	RewardMilestone:    {},
	RewardWelcomeBonus: {},
	RewardStreakBonus:  {},
}

// ParseRewardType validates a reward type label from storage.
func ParseRewardType(raw string) (RewardType, error) {
	t := RewardType(raw)
	if _, ok := validRewardTypes[t]; !ok {
		return "", dErrors.Newf(dErrors.CodeValidation, "invalid reward type: %q", raw)
	}
	return t, nil
}

func (t RewardType) String() string { return string(t) }

// RewardStatus tracks a ledger entry through its lifecycle. Entries are
// append-only; status is the only field mutated after creation.
type RewardStatus string

const (
	RewardStatusActive  RewardStatus = "active"
	RewardStatusUsed    RewardStatus = "used"
	RewardStatusExpired RewardStatus = "expired"
	RewardStatusRevoked RewardStatus = "revoked"
)

var validRewardStatuses = map[RewardStatus]struct{}{
	RewardStatusActive:  {},
	RewardStatusUsed:    {},
	RewardStatusExpired: {},
	RewardStatusRevoked: {},
}

// ParseRewardStatus validates a status label from storage.
func ParseRewardStatus(raw string) (RewardStatus, error) {
	s := RewardStatus(raw)
	if _, ok := validRewardStatuses[s]; !ok {
		return "", dErrors.Newf(dErrors.CodeValidation, "invalid reward status: %q", raw)
	}
	return s, nil
}

func (s RewardStatus) String() string { return string(s) }

// MilestoneTypePages tags ledger entries granted by the page-count milestone.
const MilestoneTypePages = "pages"

// ContributorStats is the per-contributor counter row. One row per
// contributor, created on first use and mutated only by the ledger engine in
// response to lifecycle events.
//
// Invariants:
//   - All counters are cumulative and never reset (FormsPending and
//     CurrentStreak are the exceptions: pending drains as reviews land,
//     streaks reset when a gap exceeds one day)
//   - BestStreak is the running maximum of CurrentStreak
//   - Tier never downgrades
//   - Average score is carried as ScoreSum/ScoreCount, never as a stored float
type ContributorStats struct {
	ContributorID      id.ContributorID
	FormsSubmitted     int
	FormsApproved      int
	FormsRejected      int
	FormsPending       int
	RevisionsRequested int
	UniquePages        int
	UniqueForms        int
	FreeWeeksEarned    int
	FreeWeeksUsed      int
	CurrentStreak      int
	BestStreak         int
	Tier               Tier
	ScoreSum           int64
	ScoreCount         int
	LastContributionAt *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewContributorStats returns the zero row written on a contributor's first
// lifecycle event.
func NewContributorStats(contributorID id.ContributorID, now time.Time) *ContributorStats {
	return &ContributorStats{
		ContributorID: contributorID,
		Tier:          TierBronze,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// AverageScore returns the running mean review score, 0 when unscored.
func (s *ContributorStats) AverageScore() float64 {
	if s.ScoreCount == 0 {
		return 0
	}
	return float64(s.ScoreSum) / float64(s.ScoreCount)
}

// ApplyContribution advances the streak clock for a submission at now:
// a gap of at most one day extends the streak, anything longer resets it.
// It reports whether the streak reached the bonus length for the first time.
func (s *ContributorStats) ApplyContribution(now time.Time) (streakBonusEarned bool) {
	if s.LastContributionAt != nil && now.Sub(*s.LastContributionAt) <= contributionWindow {
		s.CurrentStreak++
	} else {
		s.CurrentStreak = 1
	}

	previousBest := s.BestStreak
	if s.CurrentStreak > s.BestStreak {
		s.BestStreak = s.CurrentStreak
	}
	ts := now
	s.LastContributionAt = &ts

	return previousBest < StreakBonusDays && s.BestStreak >= StreakBonusDays
}

// ApplyScore folds a review score into the running mean.
func (s *ContributorStats) ApplyScore(score int) {
	s.ScoreSum += int64(score)
	s.ScoreCount++
}

// EvaluateTier re-derives the tier from approvals and average score and
// upgrades when the derived tier outranks the current one. Downgrades are
// never applied.
func (s *ContributorStats) EvaluateTier() (changed bool) {
	derived := TierFor(s.FormsApproved, s.AverageScore())
	if derived.Rank() > s.Tier.Rank() {
		s.Tier = derived
		return true
	}
	return false
}

// DrainPending decrements the pending counter as a review lands. The counter
// floors at zero so replayed events cannot drive it negative.
func (s *ContributorStats) DrainPending() {
	if s.FormsPending > 0 {
		s.FormsPending--
	}
}

// RewardLedgerEntry is one append-only grant of free weeks.
//
// Invariants:
//   - AmountWeeks is positive
//   - Milestone entries carry MilestoneType/MilestoneValue; bonuses do not
//   - After creation only Status and UsedAt change (use, expiry, revocation)
type RewardLedgerEntry struct {
	ID             id.LedgerEntryID
	ContributorID  id.ContributorID
	FormID         *id.FormID
	RewardType     RewardType
	AmountWeeks    int
	Reason         string
	MilestoneType  string
	MilestoneValue int
	Status         RewardStatus
	GrantedAt      time.Time
	ExpiresAt      *time.Time
	UsedAt         *time.Time
}

// NewMilestoneEntry grants weeksToGrant weeks for crossing the page milestone
// tagged by milestoneValue.
func NewMilestoneEntry(contributorID id.ContributorID, formID id.FormID, weeksToGrant, milestoneValue int, now time.Time) *RewardLedgerEntry {
	fid := formID
	expires := now.Add(RewardValidity)
	return &RewardLedgerEntry{
		ID:             id.NewLedgerEntryID(),
		ContributorID:  contributorID,
		FormID:         &fid,
		RewardType:     RewardMilestone,
		AmountWeeks:    weeksToGrant,
		Reason:         fmt.Sprintf("crossed the %d unique page milestone", milestoneValue),
		MilestoneType:  MilestoneTypePages,
		MilestoneValue: milestoneValue,
		Status:         RewardStatusActive,
		GrantedAt:      now,
		ExpiresAt:      &expires,
	}
}

// NewWelcomeBonusEntry grants the one-time first-approval bonus.
func NewWelcomeBonusEntry(contributorID id.ContributorID, formID id.FormID, now time.Time) *RewardLedgerEntry {
	fid := formID
	expires := now.Add(RewardValidity)
	return &RewardLedgerEntry{
		ID:            id.NewLedgerEntryID(),
		ContributorID: contributorID,
		FormID:        &fid,
		RewardType:    RewardWelcomeBonus,
		AmountWeeks:   WelcomeBonusWeeks,
		Reason:        "first approved form",
		Status:        RewardStatusActive,
		GrantedAt:     now,
		ExpiresAt:     &expires,
	}
}

// NewStreakBonusEntry grants the one-time bonus for a seven-day contribution
// streak. No form is attached: the grant belongs to the streak, not to any
// single submission.
func NewStreakBonusEntry(contributorID id.ContributorID, now time.Time) *RewardLedgerEntry {
	expires := now.Add(RewardValidity)
	return &RewardLedgerEntry{
		ID:            id.NewLedgerEntryID(),
		ContributorID: contributorID,
		RewardType:    RewardStreakBonus,
		AmountWeeks:   StreakBonusWeeks,
		Reason:        fmt.Sprintf("%d-day contribution streak", StreakBonusDays),
		Status:        RewardStatusActive,
		GrantedAt:     now,
		ExpiresAt:     &expires,
	}
}

// ActiveAt reports whether the entry still counts toward the redeemable
// balance at now. Expiry is evaluated lazily: an entry past its window is
// treated as expired even before a maintenance pass flips its status.
func (e *RewardLedgerEntry) ActiveAt(now time.Time) bool {
	if e.Status != RewardStatusActive {
		return false
	}
	return !e.ExpiredAt(now)
}

// ExpiredAt reports whether the entry's validity window has elapsed at now.
func (e *RewardLedgerEntry) ExpiredAt(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// WeeksForPageDelta returns the free weeks earned by moving the cumulative
// unique page counter from oldPages to newPages. The delta of milestone
// crossings is the idempotence guarantee: replaying the same before/after
// pair grants the same amount, and re-running an already-applied update
// (oldPages == newPages) grants nothing.
func WeeksForPageDelta(oldPages, newPages int) int {
	if newPages <= oldPages {
		return 0
	}
	return newPages/PagesPerFreeWeek - oldPages/PagesPerFreeWeek
}

// MilestoneValue returns the milestone tag for a grant computed at newPages:
// the highest crossed multiple of the page rate.
func MilestoneValue(newPages int) int {
	return newPages / PagesPerFreeWeek * PagesPerFreeWeek
}

// NextMilestoneAt returns the page count at which the next milestone grant
// triggers.
func NextMilestoneAt(pages int) int {
	return (pages/PagesPerFreeWeek + 1) * PagesPerFreeWeek
}

// GrantSummary reports what a single approval produced.
type GrantSummary struct {
	Granted      bool
	WeeksGranted int
	Entries      []*RewardLedgerEntry
	Tier         Tier
	TierChanged  bool
}

// RewardsSnapshot is the contributor-facing view: counters, the active slice
// of the ledger, and how far the next milestone is.
type RewardsSnapshot struct {
	Stats           *ContributorStats
	ActiveEntries   []*RewardLedgerEntry
	ActiveWeeks     int
	NextMilestoneAt int
	PagesToGo       int
}

// Redemption reports how a redeem request was satisfied.
type Redemption struct {
	WeeksRedeemed   int
	ConsumedEntries []id.LedgerEntryID
	RemainderEntry  *RewardLedgerEntry
	ActiveWeeksLeft int
}
