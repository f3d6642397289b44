// Package service implements the contributor ledger engine: counter upkeep
// for lifecycle events, delta-based milestone grants, one-time bonuses, tier
// progression, and redemption of free weeks.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/rewards/metrics"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/rewards/models"
	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	dErrors "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain-errors"
	platformtx "github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/tx"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/requestcontext"
)

// StatsStore persists the per-contributor counter row. Implementations must
// make GetOrCreate atomic (upsert-on-first-use) and, inside a transaction,
// hold the row against concurrent writers until Update commits.
type StatsStore interface {
	GetOrCreate(ctx context.Context, contributorID id.ContributorID, now time.Time) (*models.ContributorStats, error)
	Update(ctx context.Context, stats *models.ContributorStats) error
}

// LedgerStore persists append-only reward entries. ListByContributor returns
// entries oldest grant first so redemption consumes in grant order.
type LedgerStore interface {
	Append(ctx context.Context, entry *models.RewardLedgerEntry) error
	ListByContributor(ctx context.Context, contributorID id.ContributorID) ([]*models.RewardLedgerEntry, error)
	MarkUsed(ctx context.Context, entryID id.LedgerEntryID, usedAt time.Time) error
	MarkExpiredDue(ctx context.Context, now time.Time) (int, error)
}

// StoreTx runs fn as one transaction across the stats and ledger stores. A
// call on a context already inside a transaction joins it, so the form review
// flow can fold ledger updates into its own commit.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// Service is the contributor ledger engine.
type Service struct {
	stats   StatsStore
	ledger  LedgerStore
	tx      StoreTx
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs the engine. A nil tx falls back to the lock-based runner,
// which is the right pairing for the in-memory stores.
func New(stats StatsStore, ledger LedgerStore, tx StoreTx, opts ...Option) *Service {
	if tx == nil {
		tx = platformtx.NewSharded()
	}
	s := &Service{stats: stats, ledger: ledger, tx: tx, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnSubmission credits a new submission: submitted and pending counters plus
// the streak clock.
func (s *Service) OnSubmission(ctx context.Context, contributorID id.ContributorID) error {
	return s.contribution(ctx, contributorID, func(st *models.ContributorStats) {
		st.FormsSubmitted++
		st.FormsPending++
	})
}

// OnResubmission credits a revision cycle re-entering review. The form was
// already counted as submitted, so only the pending counter and the streak
// clock move.
func (s *Service) OnResubmission(ctx context.Context, contributorID id.ContributorID) error {
	return s.contribution(ctx, contributorID, func(st *models.ContributorStats) {
		st.FormsPending++
	})
}

// contribution applies a submission-path mutation under the contributor's
// row lock, advances the streak, and grants the one-time streak bonus when
// the best streak first reaches the bonus length.
func (s *Service) contribution(ctx context.Context, contributorID id.ContributorID, mutate func(*models.ContributorStats)) error {
	if contributorID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "contributor id is required")
	}

	now := requestcontext.Now(ctx)
	ctx = platformtx.WithLockKey(ctx, contributorID.String())

	var bonus *models.RewardLedgerEntry
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		st, err := s.stats.GetOrCreate(txCtx, contributorID, now)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load contributor stats")
		}

		mutate(st)
		if st.ApplyContribution(now) {
			bonus = models.NewStreakBonusEntry(contributorID, now)
			st.FreeWeeksEarned += bonus.AmountWeeks
		}
		st.UpdatedAt = now

		if err := s.stats.Update(txCtx, st); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update contributor stats")
		}
		if bonus != nil {
			if err := s.ledger.Append(txCtx, bonus); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append streak bonus")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if bonus != nil {
		s.metrics.IncrementGrant(bonus.RewardType.String(), bonus.AmountWeeks)
		s.logger.InfoContext(ctx, "streak bonus granted",
			"contributor_id", contributorID.String(),
			"weeks", bonus.AmountWeeks,
		)
	}
	return nil
}

// OnApproval credits an approved form: counters, the page-milestone grant,
// the one-time welcome bonus, and tier re-evaluation, all in one transaction
// with the status change that triggered it when the caller is already inside
// one.
//
// The milestone grant is delta-based: weeks = crossings between the page
// counter before and after this approval, so replaying an already-applied
// approval grants nothing.
func (s *Service) OnApproval(ctx context.Context, contributorID id.ContributorID, formID id.FormID, pageCount int, score *int) (*models.GrantSummary, error) {
	if contributorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "contributor id is required")
	}
	if formID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "form id is required")
	}
	if pageCount <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "page count must be positive")
	}

	now := requestcontext.Now(ctx)
	ctx = platformtx.WithLockKey(ctx, contributorID.String())

	var summary *models.GrantSummary
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		st, err := s.stats.GetOrCreate(txCtx, contributorID, now)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load contributor stats")
		}

		st.DrainPending()
		st.FormsApproved++
		st.UniqueForms++
		if score != nil {
			st.ApplyScore(*score)
		}

		oldPages := st.UniquePages
		newPages := oldPages + pageCount
		st.UniquePages = newPages

		entries := make([]*models.RewardLedgerEntry, 0, 2)
		if weeks := models.WeeksForPageDelta(oldPages, newPages); weeks > 0 {
			entries = append(entries, models.NewMilestoneEntry(contributorID, formID, weeks, models.MilestoneValue(newPages), now))
		}
		if st.FormsApproved == 1 {
			entries = append(entries, models.NewWelcomeBonusEntry(contributorID, formID, now))
		}

		total := 0
		for _, e := range entries {
			total += e.AmountWeeks
		}
		st.FreeWeeksEarned += total
		tierChanged := st.EvaluateTier()
		st.UpdatedAt = now

		if err := s.stats.Update(txCtx, st); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update contributor stats")
		}
		for _, e := range entries {
			if err := s.ledger.Append(txCtx, e); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append ledger entry")
			}
		}

		summary = &models.GrantSummary{
			Granted:      len(entries) > 0,
			WeeksGranted: total,
			Entries:      entries,
			Tier:         st.Tier,
			TierChanged:  tierChanged,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, e := range summary.Entries {
		s.metrics.IncrementGrant(e.RewardType.String(), e.AmountWeeks)
	}
	if summary.TierChanged {
		s.metrics.IncrementTierUpgrade(summary.Tier.String())
	}
	if summary.Granted {
		s.logger.InfoContext(ctx, "reward granted",
			"contributor_id", contributorID.String(),
			"form_id", formID.String(),
			"weeks", summary.WeeksGranted,
			"tier", summary.Tier.String(),
		)
	}
	return summary, nil
}

// OnRejection records a rejected review outcome.
func (s *Service) OnRejection(ctx context.Context, contributorID id.ContributorID) error {
	return s.reviewOutcome(ctx, contributorID, func(st *models.ContributorStats) {
		st.FormsRejected++
	})
}

// OnRevisionRequest records a review outcome asking for changes.
func (s *Service) OnRevisionRequest(ctx context.Context, contributorID id.ContributorID) error {
	return s.reviewOutcome(ctx, contributorID, func(st *models.ContributorStats) {
		st.RevisionsRequested++
	})
}

func (s *Service) reviewOutcome(ctx context.Context, contributorID id.ContributorID, mutate func(*models.ContributorStats)) error {
	if contributorID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "contributor id is required")
	}

	now := requestcontext.Now(ctx)
	ctx = platformtx.WithLockKey(ctx, contributorID.String())

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		st, err := s.stats.GetOrCreate(txCtx, contributorID, now)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load contributor stats")
		}

		st.DrainPending()
		mutate(st)
		st.UpdatedAt = now

		if err := s.stats.Update(txCtx, st); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update contributor stats")
		}
		return nil
	})
}

// Rewards returns the contributor's counters, the active ledger slice, and
// the next milestone. The stats row is created lazily on first query; expiry
// is applied lazily, so entries past their window never count toward the
// balance even before a maintenance pass flips them.
func (s *Service) Rewards(ctx context.Context, contributorID id.ContributorID) (*models.RewardsSnapshot, error) {
	if contributorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "contributor id is required")
	}

	now := requestcontext.Now(ctx)
	st, err := s.stats.GetOrCreate(ctx, contributorID, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load contributor stats")
	}

	entries, err := s.ledger.ListByContributor(ctx, contributorID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list ledger entries")
	}

	active := make([]*models.RewardLedgerEntry, 0, len(entries))
	balance := 0
	for _, e := range entries {
		if e.ActiveAt(now) {
			active = append(active, e)
			balance += e.AmountWeeks
		}
	}

	nextAt := models.NextMilestoneAt(st.UniquePages)
	return &models.RewardsSnapshot{
		Stats:           st,
		ActiveEntries:   active,
		ActiveWeeks:     balance,
		NextMilestoneAt: nextAt,
		PagesToGo:       nextAt - st.UniquePages,
	}, nil
}

// Redeem consumes weeks from the active balance, oldest grant first. A grant
// larger than the remaining request is split: the original entry is marked
// used and a remainder entry is appended carrying the parent's grant time and
// expiry, so it keeps its place in the queue and its validity window.
func (s *Service) Redeem(ctx context.Context, contributorID id.ContributorID, weeks int) (*models.Redemption, error) {
	if contributorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "contributor id is required")
	}
	if weeks <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "weeks must be positive")
	}

	now := requestcontext.Now(ctx)
	ctx = platformtx.WithLockKey(ctx, contributorID.String())

	var result *models.Redemption
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		st, err := s.stats.GetOrCreate(txCtx, contributorID, now)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load contributor stats")
		}

		entries, err := s.ledger.ListByContributor(txCtx, contributorID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list ledger entries")
		}

		active := make([]*models.RewardLedgerEntry, 0, len(entries))
		balance := 0
		for _, e := range entries {
			if e.ActiveAt(now) {
				active = append(active, e)
				balance += e.AmountWeeks
			}
		}
		if weeks > balance {
			return dErrors.Newf(dErrors.CodeInvalidInput, "requested %d weeks but only %d are active", weeks, balance)
		}

		remaining := weeks
		consumed := make([]id.LedgerEntryID, 0, len(active))
		var remainder *models.RewardLedgerEntry
		for _, e := range active {
			if remaining == 0 {
				break
			}
			if err := s.ledger.MarkUsed(txCtx, e.ID, now); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark ledger entry used")
			}
			consumed = append(consumed, e.ID)

			if e.AmountWeeks <= remaining {
				remaining -= e.AmountWeeks
				continue
			}

			remainder = splitRemainder(e, e.AmountWeeks-remaining)
			remaining = 0
			if err := s.ledger.Append(txCtx, remainder); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append remainder entry")
			}
		}

		st.FreeWeeksUsed += weeks
		st.UpdatedAt = now
		if err := s.stats.Update(txCtx, st); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update contributor stats")
		}

		result = &models.Redemption{
			WeeksRedeemed:   weeks,
			ConsumedEntries: consumed,
			RemainderEntry:  remainder,
			ActiveWeeksLeft: balance - weeks,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementRedemption(weeks)
	s.logger.InfoContext(ctx, "reward redeemed",
		"contributor_id", contributorID.String(),
		"weeks", weeks,
		"active_weeks_left", result.ActiveWeeksLeft,
	)
	return result, nil
}

// splitRemainder carves the unredeemed tail of a partially consumed grant
// into a fresh active entry.
func splitRemainder(parent *models.RewardLedgerEntry, leftover int) *models.RewardLedgerEntry {
	return &models.RewardLedgerEntry{
		ID:             id.NewLedgerEntryID(),
		ContributorID:  parent.ContributorID,
		FormID:         parent.FormID,
		RewardType:     parent.RewardType,
		AmountWeeks:    leftover,
		Reason:         "remainder of partially redeemed grant",
		MilestoneType:  parent.MilestoneType,
		MilestoneValue: parent.MilestoneValue,
		Status:         models.RewardStatusActive,
		GrantedAt:      parent.GrantedAt,
		ExpiresAt:      parent.ExpiresAt,
	}
}

// ExpireDue flips ledger entries past their validity window to expired and
// returns how many were flipped. Balances already exclude them via lazy
// expiry; this pass keeps the stored flags consistent for reporting.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	n, err := s.ledger.MarkExpiredDue(ctx, requestcontext.Now(ctx))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to expire ledger entries")
	}
	if n > 0 {
		s.metrics.AddExpired(n)
		s.logger.InfoContext(ctx, "ledger entries expired", "count", n)
	}
	return n, nil
}
