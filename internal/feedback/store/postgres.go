package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/feedback/models"
	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/sentinel"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/tx"
)

const txTimeout = 5 * time.Second

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const feedbackColumns = `id, ticket_number, form_id, user_id, feedback_type, severity, priority,
	status, field_name, content, assigned_to, upvotes, downvotes, users_affected,
	trend_count, browser, resolution, created_at, updated_at`

// Postgres persists feedback rows, the per-day ticket sequence, and the
// reviewer roster on a pgx pool. It doubles as the transaction runner;
// Execute's FOR UPDATE and ClaimLeastLoaded's SKIP LOCKED only hold inside
// a transaction opened by RunInTx.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) q(ctx context.Context) querier {
	if t, ok := tx.FromPgx(ctx); ok {
		return t
	}
	return s.pool
}

// RunInTx executes fn inside one pgx transaction. A context already carrying
// a pgx transaction joins it, so nested calls share the outer commit.
func (s *Postgres) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if _, ok := tx.FromPgx(ctx); ok {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	ptx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin feedback tx: %w", err)
	}
	defer ptx.Rollback(ctx)

	if err := fn(tx.WithPgx(ctx, ptx)); err != nil {
		return err
	}
	if err := ptx.Commit(ctx); err != nil {
		return fmt.Errorf("commit feedback tx: %w", err)
	}
	return nil
}

func (s *Postgres) Create(ctx context.Context, fb *models.FormFeedback) error {
	query := `
		INSERT INTO form_feedback (` + feedbackColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := s.q(ctx).Exec(ctx, query,
		uuid.UUID(fb.ID), fb.TicketNumber, uuid.UUID(fb.FormID), uuid.UUID(fb.UserID),
		fb.FeedbackType.String(), fb.Severity, fb.Priority.String(), fb.Status.String(),
		fb.FieldName, fb.Content, assigneeUUID(fb.AssignedTo), fb.Upvotes, fb.Downvotes,
		fb.UsersAffected, fb.TrendCount, fb.Browser, fb.Resolution, fb.CreatedAt, fb.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation on ticket_number
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create feedback: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, feedbackID id.FeedbackID) (*models.FormFeedback, error) {
	query := `SELECT ` + feedbackColumns + ` FROM form_feedback WHERE id = $1`
	fb, err := scanFeedback(s.q(ctx).QueryRow(ctx, query, uuid.UUID(feedbackID)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find feedback by id: %w", err)
	}
	return fb, nil
}

// Execute locks the row, applies validate then mutate, and writes back the
// triage surface. A nil validate skips the guard. Reporter-supplied columns
// never change after submission, so the update omits them.
func (s *Postgres) Execute(ctx context.Context, feedbackID id.FeedbackID, validate func(*models.FormFeedback) error, mutate func(*models.FormFeedback) error) (*models.FormFeedback, error) {
	query := `SELECT ` + feedbackColumns + ` FROM form_feedback WHERE id = $1 FOR UPDATE`
	fb, err := scanFeedback(s.q(ctx).QueryRow(ctx, query, uuid.UUID(feedbackID)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock feedback: %w", err)
	}

	if validate != nil {
		if err := validate(fb); err != nil {
			return nil, err
		}
	}
	if err := mutate(fb); err != nil {
		return nil, err
	}

	update := `
		UPDATE form_feedback SET
			priority = $2,
			status = $3,
			assigned_to = $4,
			upvotes = $5,
			downvotes = $6,
			users_affected = $7,
			trend_count = $8,
			resolution = $9,
			updated_at = $10
		WHERE id = $1
	`
	if _, err := s.q(ctx).Exec(ctx, update,
		uuid.UUID(fb.ID), fb.Priority.String(), fb.Status.String(), assigneeUUID(fb.AssignedTo),
		fb.Upvotes, fb.Downvotes, fb.UsersAffected, fb.TrendCount, fb.Resolution, fb.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("update feedback: %w", err)
	}
	return fb, nil
}

func (s *Postgres) ListByForm(ctx context.Context, formID id.FormID, filter models.ListFilter) ([]*models.FormFeedback, error) {
	query := `SELECT ` + feedbackColumns + ` FROM form_feedback WHERE form_id = $1`
	args := []any{uuid.UUID(formID)}
	if filter.Status != nil {
		args = append(args, filter.Status.String())
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id"
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	out := make([]*models.FormFeedback, 0)
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		out = append(out, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback: %w", err)
	}
	return out, nil
}

// CountSimilar counts reports clustered with the incoming one: same form and
// type, narrowed to the named field when the report has one. The query runs
// against idx_form_feedback_form.
func (s *Postgres) CountSimilar(ctx context.Context, formID id.FormID, feedbackType models.FeedbackType, fieldName string) (int, error) {
	query := `SELECT COUNT(*) FROM form_feedback WHERE form_id = $1 AND feedback_type = $2`
	args := []any{uuid.UUID(formID), feedbackType.String()}
	if fieldName != "" {
		args = append(args, fieldName)
		query += fmt.Sprintf(" AND field_name = $%d", len(args))
	}
	var count int
	if err := s.q(ctx).QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count similar feedback: %w", err)
	}
	return count, nil
}

// NextTicket advances the day's sequence atomically. The upsert lets the
// first caller of a day start at 1 without a seeding step.
func (s *Postgres) NextTicket(ctx context.Context, day string) (int, error) {
	query := `
		INSERT INTO ticket_sequence (day, last_value)
		VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET last_value = ticket_sequence.last_value + 1
		RETURNING last_value
	`
	var seq int
	if err := s.q(ctx).QueryRow(ctx, query, day).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next ticket for %s: %w", day, err)
	}
	return seq, nil
}

// ClaimLeastLoaded assigns the next report to the active reviewer with the
// fewest open items, incrementing their load in the same statement. SKIP
// LOCKED keeps concurrent submissions from queueing on one roster row.
func (s *Postgres) ClaimLeastLoaded(ctx context.Context) (*models.Reviewer, error) {
	query := `
		UPDATE reviewers SET open_count = open_count + 1
		WHERE id = (
			SELECT id FROM reviewers
			WHERE active
			ORDER BY open_count, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, display_name, active, open_count
	`
	reviewer, err := scanReviewer(s.q(ctx).QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("claim reviewer: %w", err)
	}
	return reviewer, nil
}

// Claim bumps a reviewer's open count. Ids missing from the roster no-op so
// actors outside it can still work reports.
func (s *Postgres) Claim(ctx context.Context, reviewerID id.ReviewerID) error {
	query := `UPDATE reviewers SET open_count = open_count + 1 WHERE id = $1`
	if _, err := s.q(ctx).Exec(ctx, query, uuid.UUID(reviewerID)); err != nil {
		return fmt.Errorf("claim reviewer %s: %w", reviewerID, err)
	}
	return nil
}

// Release returns a reviewer's capacity, flooring at zero.
func (s *Postgres) Release(ctx context.Context, reviewerID id.ReviewerID) error {
	query := `UPDATE reviewers SET open_count = GREATEST(open_count - 1, 0) WHERE id = $1`
	if _, err := s.q(ctx).Exec(ctx, query, uuid.UUID(reviewerID)); err != nil {
		return fmt.Errorf("release reviewer %s: %w", reviewerID, err)
	}
	return nil
}

// UpsertReviewer adds or refreshes a roster row. This is the provisioning
// hook; roster administration has no public API.
func (s *Postgres) UpsertReviewer(ctx context.Context, reviewer *models.Reviewer) error {
	query := `
		INSERT INTO reviewers (id, display_name, active, open_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			active = EXCLUDED.active,
			open_count = EXCLUDED.open_count
	`
	if _, err := s.q(ctx).Exec(ctx, query,
		uuid.UUID(reviewer.ID), reviewer.DisplayName, reviewer.Active, reviewer.OpenCount,
	); err != nil {
		return fmt.Errorf("upsert reviewer: %w", err)
	}
	return nil
}

// Reviewer returns a roster row by id.
func (s *Postgres) Reviewer(ctx context.Context, reviewerID id.ReviewerID) (*models.Reviewer, error) {
	query := `SELECT id, display_name, active, open_count FROM reviewers WHERE id = $1`
	reviewer, err := scanReviewer(s.q(ctx).QueryRow(ctx, query, uuid.UUID(reviewerID)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find reviewer by id: %w", err)
	}
	return reviewer, nil
}

type feedbackRow interface {
	Scan(dest ...any) error
}

func scanFeedback(row feedbackRow) (*models.FormFeedback, error) {
	var (
		fb          models.FormFeedback
		rawID       uuid.UUID
		rawForm     uuid.UUID
		rawUser     uuid.UUID
		typeRaw     string
		priorityRaw string
		statusRaw   string
		assignedTo  *uuid.UUID
	)
	if err := row.Scan(
		&rawID, &fb.TicketNumber, &rawForm, &rawUser, &typeRaw, &fb.Severity,
		&priorityRaw, &statusRaw, &fb.FieldName, &fb.Content, &assignedTo,
		&fb.Upvotes, &fb.Downvotes, &fb.UsersAffected, &fb.TrendCount,
		&fb.Browser, &fb.Resolution, &fb.CreatedAt, &fb.UpdatedAt,
	); err != nil {
		return nil, err
	}
	fb.ID = id.FeedbackID(rawID)
	fb.FormID = id.FormID(rawForm)
	fb.UserID = id.UserID(rawUser)

	feedbackType, ok := models.ParseFeedbackType(typeRaw)
	if !ok {
		return nil, fmt.Errorf("stored feedback type %q is not valid", typeRaw)
	}
	fb.FeedbackType = feedbackType
	priority, ok := models.ParsePriority(priorityRaw)
	if !ok {
		return nil, fmt.Errorf("stored priority %q is not valid", priorityRaw)
	}
	fb.Priority = priority
	status, ok := models.ParseFeedbackStatus(statusRaw)
	if !ok {
		return nil, fmt.Errorf("stored feedback status %q is not valid", statusRaw)
	}
	fb.Status = status

	if assignedTo != nil {
		rid := id.ReviewerID(*assignedTo)
		fb.AssignedTo = &rid
	}
	return &fb, nil
}

func scanReviewer(row feedbackRow) (*models.Reviewer, error) {
	var (
		r     models.Reviewer
		rawID uuid.UUID
	)
	if err := row.Scan(&rawID, &r.DisplayName, &r.Active, &r.OpenCount); err != nil {
		return nil, err
	}
	r.ID = id.ReviewerID(rawID)
	return &r, nil
}

func assigneeUUID(rid *id.ReviewerID) *uuid.UUID {
	if rid == nil {
		return nil
	}
	raw := uuid.UUID(*rid)
	return &raw
}
