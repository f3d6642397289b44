package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/rewards/models"
	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/sentinel"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/tx"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStats persists contributor counter rows. GetOrCreate upserts the
// zero row; inside a transaction the upsert also locks the row, which is what
// serializes concurrent approvals for the same contributor.
type PostgresStats struct {
	db *sql.DB
}

func NewPostgresStats(db *sql.DB) *PostgresStats {
	return &PostgresStats{db: db}
}

func (s *PostgresStats) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *PostgresStats) GetOrCreate(ctx context.Context, contributorID id.ContributorID, now time.Time) (*models.ContributorStats, error) {
	query := `
		INSERT INTO contributor_stats (contributor_id, tier, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (contributor_id) DO UPDATE SET contributor_id = EXCLUDED.contributor_id
		RETURNING contributor_id, forms_submitted, forms_approved, forms_rejected, forms_pending,
			revisions_requested, unique_pages, unique_forms, free_weeks_earned, free_weeks_used,
			current_streak, best_streak, tier, score_sum, score_count, last_contribution_at,
			created_at, updated_at
	`
	st, err := scanStats(s.q(ctx).QueryRowContext(ctx, query,
		uuid.UUID(contributorID), models.TierBronze.String(), now,
	))
	if err != nil {
		return nil, fmt.Errorf("get or create contributor stats: %w", err)
	}
	return st, nil
}

func (s *PostgresStats) Update(ctx context.Context, stats *models.ContributorStats) error {
	query := `
		UPDATE contributor_stats SET
			forms_submitted = $2,
			forms_approved = $3,
			forms_rejected = $4,
			forms_pending = $5,
			revisions_requested = $6,
			unique_pages = $7,
			unique_forms = $8,
			free_weeks_earned = $9,
			free_weeks_used = $10,
			current_streak = $11,
			best_streak = $12,
			tier = $13,
			score_sum = $14,
			score_count = $15,
			last_contribution_at = $16,
			updated_at = $17
		WHERE contributor_id = $1
	`
	var lastContribution sql.NullTime
	if stats.LastContributionAt != nil {
		lastContribution = sql.NullTime{Time: *stats.LastContributionAt, Valid: true}
	}
	result, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(stats.ContributorID),
		stats.FormsSubmitted, stats.FormsApproved, stats.FormsRejected, stats.FormsPending,
		stats.RevisionsRequested, stats.UniquePages, stats.UniqueForms,
		stats.FreeWeeksEarned, stats.FreeWeeksUsed, stats.CurrentStreak, stats.BestStreak,
		stats.Tier.String(), stats.ScoreSum, stats.ScoreCount, lastContribution, stats.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update contributor stats: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update contributor stats rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type statsRow interface {
	Scan(dest ...any) error
}

func scanStats(row statsRow) (*models.ContributorStats, error) {
	var (
		st               models.ContributorStats
		rawID            uuid.UUID
		tierRaw          string
		lastContribution sql.NullTime
	)
	if err := row.Scan(
		&rawID, &st.FormsSubmitted, &st.FormsApproved, &st.FormsRejected, &st.FormsPending,
		&st.RevisionsRequested, &st.UniquePages, &st.UniqueForms, &st.FreeWeeksEarned, &st.FreeWeeksUsed,
		&st.CurrentStreak, &st.BestStreak, &tierRaw, &st.ScoreSum, &st.ScoreCount, &lastContribution,
		&st.CreatedAt, &st.UpdatedAt,
	); err != nil {
		return nil, err
	}
	st.ContributorID = id.ContributorID(rawID)
	tier, err := models.ParseTier(tierRaw)
	if err != nil {
		return nil, err
	}
	st.Tier = tier
	if lastContribution.Valid {
		ts := lastContribution.Time
		st.LastContributionAt = &ts
	}
	return &st, nil
}

// PostgresLedger persists append-only reward entries.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (s *PostgresLedger) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *PostgresLedger) Append(ctx context.Context, entry *models.RewardLedgerEntry) error {
	query := `
		INSERT INTO reward_ledger (
			id, contributor_id, form_id, reward_type, amount_weeks, reason,
			milestone_type, milestone_value, status, granted_at, expires_at, used_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	var formID any
	if entry.FormID != nil {
		formID = uuid.UUID(*entry.FormID)
	}
	var expiresAt, usedAt sql.NullTime
	if entry.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *entry.ExpiresAt, Valid: true}
	}
	if entry.UsedAt != nil {
		usedAt = sql.NullTime{Time: *entry.UsedAt, Valid: true}
	}
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(entry.ID), uuid.UUID(entry.ContributorID), formID,
		entry.RewardType.String(), entry.AmountWeeks, entry.Reason,
		entry.MilestoneType, entry.MilestoneValue, entry.Status.String(),
		entry.GrantedAt, expiresAt, usedAt,
	)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

func (s *PostgresLedger) ListByContributor(ctx context.Context, contributorID id.ContributorID) ([]*models.RewardLedgerEntry, error) {
	query := `
		SELECT id, contributor_id, form_id, reward_type, amount_weeks, reason,
			milestone_type, milestone_value, status, granted_at, expires_at, used_at
		FROM reward_ledger
		WHERE contributor_id = $1
		ORDER BY granted_at, id
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(contributorID))
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	out := make([]*models.RewardLedgerEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return out, nil
}

// MarkUsed flips an active entry to used; the status guard makes a raced
// double-consume a conflict instead of a silent re-use.
func (s *PostgresLedger) MarkUsed(ctx context.Context, entryID id.LedgerEntryID, usedAt time.Time) error {
	query := `
		UPDATE reward_ledger
		SET status = $2, used_at = $3
		WHERE id = $1 AND status = $4
	`
	result, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(entryID), models.RewardStatusUsed.String(), usedAt, models.RewardStatusActive.String(),
	)
	if err != nil {
		return fmt.Errorf("mark ledger entry used: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark ledger entry used rows affected: %w", err)
	}
	if rows == 0 {
		var exists bool
		check := `SELECT EXISTS (SELECT 1 FROM reward_ledger WHERE id = $1)`
		if err := s.q(ctx).QueryRowContext(ctx, check, uuid.UUID(entryID)).Scan(&exists); err != nil {
			return fmt.Errorf("mark ledger entry used existence check: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresLedger) MarkExpiredDue(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE reward_ledger
		SET status = $1
		WHERE status = $2 AND expires_at IS NOT NULL AND expires_at <= $3
	`
	result, err := s.q(ctx).ExecContext(ctx, query,
		models.RewardStatusExpired.String(), models.RewardStatusActive.String(), now,
	)
	if err != nil {
		return 0, fmt.Errorf("expire ledger entries: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire ledger entries rows affected: %w", err)
	}
	return int(rows), nil
}

type entryRow interface {
	Scan(dest ...any) error
}

func scanEntry(row entryRow) (*models.RewardLedgerEntry, error) {
	var (
		e                 models.RewardLedgerEntry
		rawID             uuid.UUID
		rawContributor    uuid.UUID
		formID            uuid.NullUUID
		rewardTypeRaw     string
		statusRaw         string
		expiresAt, usedAt sql.NullTime
	)
	if err := row.Scan(
		&rawID, &rawContributor, &formID, &rewardTypeRaw, &e.AmountWeeks, &e.Reason,
		&e.MilestoneType, &e.MilestoneValue, &statusRaw, &e.GrantedAt, &expiresAt, &usedAt,
	); err != nil {
		return nil, err
	}
	e.ID = id.LedgerEntryID(rawID)
	e.ContributorID = id.ContributorID(rawContributor)
	if formID.Valid {
		fid := id.FormID(formID.UUID)
		e.FormID = &fid
	}
	rewardType, err := models.ParseRewardType(rewardTypeRaw)
	if err != nil {
		return nil, err
	}
	e.RewardType = rewardType
	status, err := models.ParseRewardStatus(statusRaw)
	if err != nil {
		return nil, err
	}
	e.Status = status
	if expiresAt.Valid {
		ts := expiresAt.Time
		e.ExpiresAt = &ts
	}
	if usedAt.Valid {
		ts := usedAt.Time
		e.UsedAt = &ts
	}
	return &e, nil
}
