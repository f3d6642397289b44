package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/dedup"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/forms/models"
	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/sentinel"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/tx"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const formColumns = `id, title, form_number, form_type, status, contributor_id, reviewer_id,
	jurisdiction_id, content_hash, storage_handle, version, page_count, review_score,
	review_checklist, requested_changes, revision_deadline, is_public, view_count,
	download_count, superseded_by, created_at, updated_at`

// Postgres persists form aggregates across the forms and form_fields tables.
// It also serves as the duplicate detector's index. Execute relies on the
// transaction runner putting a *sql.Tx in the context; FOR UPDATE only holds
// inside that transaction.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *Postgres) Create(ctx context.Context, form *models.Form) error {
	query := `
		INSERT INTO forms (` + formColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (id) DO NOTHING
	`
	args, err := formArgs(form)
	if err != nil {
		return err
	}
	result, err := s.q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("create form: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("create form rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrConflict
	}
	return s.insertFields(ctx, form.ID, form.Fields)
}

func (s *Postgres) FindByID(ctx context.Context, formID id.FormID) (*models.Form, error) {
	query := `SELECT ` + formColumns + ` FROM forms WHERE id = $1`
	form, err := scanForm(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(formID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find form by id: %w", err)
	}
	fields, err := s.loadFields(ctx, formID)
	if err != nil {
		return nil, err
	}
	form.Fields = fields
	return form, nil
}

// Exists reports whether the form is known in any status. Feedback intake
// accepts reports against non-approved copies users found elsewhere.
func (s *Postgres) Exists(ctx context.Context, formID id.FormID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM forms WHERE id = $1)`
	if err := s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(formID)).Scan(&exists); err != nil {
		return false, fmt.Errorf("form existence check: %w", err)
	}
	return exists, nil
}

// Execute locks the row, loads the full aggregate, and applies validate then
// mutate. The field rows are replaced only when mutate bumped the version;
// review decisions never touch them.
func (s *Postgres) Execute(ctx context.Context, formID id.FormID, validate func(*models.Form) error, mutate func(*models.Form) error) (*models.Form, error) {
	query := `SELECT ` + formColumns + ` FROM forms WHERE id = $1 FOR UPDATE`
	form, err := scanForm(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(formID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock form: %w", err)
	}
	fields, err := s.loadFields(ctx, formID)
	if err != nil {
		return nil, err
	}
	form.Fields = fields

	if err := validate(form); err != nil {
		return nil, err
	}
	prevVersion := form.Version
	if err := mutate(form); err != nil {
		return nil, err
	}

	update := `
		UPDATE forms SET
			title = $2,
			form_number = $3,
			status = $4,
			reviewer_id = $5,
			content_hash = $6,
			storage_handle = $7,
			version = $8,
			page_count = $9,
			review_score = $10,
			review_checklist = $11,
			requested_changes = $12,
			revision_deadline = $13,
			is_public = $14,
			superseded_by = $15,
			updated_at = $16
		WHERE id = $1
	`
	checklist, changes, err := reviewArtifacts(form)
	if err != nil {
		return nil, err
	}
	if _, err := s.q(ctx).ExecContext(ctx, update,
		uuid.UUID(form.ID), form.Title, form.FormNumber, form.Status.String(),
		nullableUUID(reviewerUUID(form.ReviewerID)), form.ContentHash, form.StorageHandle,
		form.Version, form.PageCount, nullableInt(form.ReviewScore), checklist, changes,
		nullableTime(form.RevisionDeadline), form.IsPublic,
		nullableUUID(formUUID(form.SupersededBy)), form.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("update form: %w", err)
	}

	if form.Version != prevVersion {
		if _, err := s.q(ctx).ExecContext(ctx, `DELETE FROM form_fields WHERE form_id = $1`, uuid.UUID(form.ID)); err != nil {
			return nil, fmt.Errorf("clear form fields: %w", err)
		}
		if err := s.insertFields(ctx, form.ID, form.Fields); err != nil {
			return nil, err
		}
	}
	return form, nil
}

// List returns catalog rows. Field definitions are omitted; FindByID loads
// the full aggregate.
func (s *Postgres) List(ctx context.Context, filter models.ListFilter) ([]*models.Form, error) {
	query := `SELECT ` + formColumns + ` FROM forms`
	where := make([]string, 0, 5)
	args := make([]any, 0, 7)
	if filter.JurisdictionID != nil {
		args = append(args, uuid.UUID(*filter.JurisdictionID))
		where = append(where, fmt.Sprintf("jurisdiction_id = $%d", len(args)))
	}
	if filter.FormType != nil {
		args = append(args, filter.FormType.String())
		where = append(where, fmt.Sprintf("form_type = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, filter.Status.String())
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.ContributorID != nil {
		args = append(args, uuid.UUID(*filter.ContributorID))
		where = append(where, fmt.Sprintf("contributor_id = $%d", len(args)))
	}
	if filter.PublicOnly {
		where = append(where, "is_public")
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Form, 0)
	for rows.Next() {
		form, err := scanForm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan form: %w", err)
		}
		out = append(out, form)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forms: %w", err)
	}
	return out, nil
}

// IncrementUsage bumps one counter on an approved form. The status guard in
// the WHERE clause makes a non-approved target a conflict, not an update.
func (s *Postgres) IncrementUsage(ctx context.Context, formID id.FormID, kind models.UsageKind) error {
	column := "view_count"
	if kind == models.UsageDownload {
		column = "download_count"
	}
	query := fmt.Sprintf(`UPDATE forms SET %s = %s + 1 WHERE id = $1 AND status = $2`, column, column)
	result, err := s.q(ctx).ExecContext(ctx, query, uuid.UUID(formID), models.StatusApproved.String())
	if err != nil {
		return fmt.Errorf("increment form usage: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment form usage rows affected: %w", err)
	}
	if rows == 0 {
		var exists bool
		check := `SELECT EXISTS (SELECT 1 FROM forms WHERE id = $1)`
		if err := s.q(ctx).QueryRowContext(ctx, check, uuid.UUID(formID)).Scan(&exists); err != nil {
			return fmt.Errorf("increment form usage existence check: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	return nil
}

func (s *Postgres) FindByContentHash(ctx context.Context, contentHash string) ([]dedup.Candidate, error) {
	query := `SELECT id, title FROM forms WHERE content_hash = $1 ORDER BY id`
	return s.queryCandidates(ctx, query, contentHash)
}

func (s *Postgres) FindCandidates(ctx context.Context, jurisdictionID id.JurisdictionID, formType string) ([]dedup.Candidate, error) {
	query := `
		SELECT id, title FROM forms
		WHERE jurisdiction_id = $1 AND form_type = $2 AND status <> $3
		ORDER BY id
	`
	return s.queryCandidates(ctx, query, uuid.UUID(jurisdictionID), formType, models.StatusRejected.String())
}

func (s *Postgres) FindApprovedByNumber(ctx context.Context, formNumber string, jurisdictionID id.JurisdictionID) ([]dedup.Candidate, error) {
	query := `
		SELECT id, title FROM forms
		WHERE form_number = $1 AND jurisdiction_id = $2 AND status = $3
		ORDER BY id
	`
	return s.queryCandidates(ctx, query, formNumber, uuid.UUID(jurisdictionID), models.StatusApproved.String())
}

func (s *Postgres) queryCandidates(ctx context.Context, query string, args ...any) ([]dedup.Candidate, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query duplicate candidates: %w", err)
	}
	defer rows.Close()

	out := make([]dedup.Candidate, 0)
	for rows.Next() {
		var (
			rawID uuid.UUID
			title string
		)
		if err := rows.Scan(&rawID, &title); err != nil {
			return nil, fmt.Errorf("scan duplicate candidate: %w", err)
		}
		out = append(out, dedup.Candidate{ID: id.FormID(rawID), Title: title})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate duplicate candidates: %w", err)
	}
	return out, nil
}

func (s *Postgres) insertFields(ctx context.Context, formID id.FormID, fields []models.FormField) error {
	query := `
		INSERT INTO form_fields (form_id, position, name, label, field_type, required, repeatable, validation)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, f := range fields {
		validation, err := json.Marshal(f.Validation)
		if err != nil {
			return fmt.Errorf("marshal field validation: %w", err)
		}
		if _, err := s.q(ctx).ExecContext(ctx, query,
			uuid.UUID(formID), f.Position, f.Name, f.Label, f.FieldType.String(),
			f.Required, f.Repeatable, validation,
		); err != nil {
			return fmt.Errorf("insert form field: %w", err)
		}
	}
	return nil
}

func (s *Postgres) loadFields(ctx context.Context, formID id.FormID) ([]models.FormField, error) {
	query := `
		SELECT position, name, label, field_type, required, repeatable, validation
		FROM form_fields
		WHERE form_id = $1
		ORDER BY position
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(formID))
	if err != nil {
		return nil, fmt.Errorf("load form fields: %w", err)
	}
	defer rows.Close()

	out := make([]models.FormField, 0)
	for rows.Next() {
		var (
			f            models.FormField
			fieldTypeRaw string
			validation   []byte
		)
		if err := rows.Scan(&f.Position, &f.Name, &f.Label, &fieldTypeRaw, &f.Required, &f.Repeatable, &validation); err != nil {
			return nil, fmt.Errorf("scan form field: %w", err)
		}
		fieldType, ok := models.ParseFieldType(fieldTypeRaw)
		if !ok {
			return nil, fmt.Errorf("stored field type %q is not valid", fieldTypeRaw)
		}
		f.FieldType = fieldType
		if len(validation) > 0 {
			if err := json.Unmarshal(validation, &f.Validation); err != nil {
				return nil, fmt.Errorf("unmarshal field validation: %w", err)
			}
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate form fields: %w", err)
	}
	return out, nil
}

func formArgs(form *models.Form) ([]any, error) {
	checklist, changes, err := reviewArtifacts(form)
	if err != nil {
		return nil, err
	}
	return []any{
		uuid.UUID(form.ID), form.Title, form.FormNumber, form.FormType.String(),
		form.Status.String(), uuid.UUID(form.ContributorID),
		nullableUUID(reviewerUUID(form.ReviewerID)), uuid.UUID(form.JurisdictionID),
		form.ContentHash, form.StorageHandle, form.Version, form.PageCount,
		nullableInt(form.ReviewScore), checklist, changes,
		nullableTime(form.RevisionDeadline), form.IsPublic,
		form.ViewCount, form.DownloadCount,
		nullableUUID(formUUID(form.SupersededBy)), form.CreatedAt, form.UpdatedAt,
	}, nil
}

// reviewArtifacts marshals the JSONB columns; absent artifacts store as NULL.
func reviewArtifacts(form *models.Form) ([]byte, []byte, error) {
	var checklist, changes []byte
	if form.ReviewChecklist != nil {
		raw, err := json.Marshal(form.ReviewChecklist)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal review checklist: %w", err)
		}
		checklist = raw
	}
	if len(form.RequestedChanges) > 0 {
		raw, err := json.Marshal(form.RequestedChanges)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal requested changes: %w", err)
		}
		changes = raw
	}
	return checklist, changes, nil
}

type formRow interface {
	Scan(dest ...any) error
}

func scanForm(row formRow) (*models.Form, error) {
	var (
		form             models.Form
		rawID            uuid.UUID
		formTypeRaw      string
		statusRaw        string
		rawContributor   uuid.UUID
		reviewerID       uuid.NullUUID
		rawJurisdiction  uuid.UUID
		reviewScore      sql.NullInt64
		checklist        []byte
		changes          []byte
		revisionDeadline sql.NullTime
		supersededBy     uuid.NullUUID
	)
	if err := row.Scan(
		&rawID, &form.Title, &form.FormNumber, &formTypeRaw, &statusRaw,
		&rawContributor, &reviewerID, &rawJurisdiction, &form.ContentHash,
		&form.StorageHandle, &form.Version, &form.PageCount, &reviewScore,
		&checklist, &changes, &revisionDeadline, &form.IsPublic,
		&form.ViewCount, &form.DownloadCount, &supersededBy,
		&form.CreatedAt, &form.UpdatedAt,
	); err != nil {
		return nil, err
	}
	form.ID = id.FormID(rawID)
	form.ContributorID = id.ContributorID(rawContributor)
	form.JurisdictionID = id.JurisdictionID(rawJurisdiction)

	formType, ok := models.ParseFormType(formTypeRaw)
	if !ok {
		return nil, fmt.Errorf("stored form type %q is not valid", formTypeRaw)
	}
	form.FormType = formType
	status, ok := models.ParseFormStatus(statusRaw)
	if !ok {
		return nil, fmt.Errorf("stored form status %q is not valid", statusRaw)
	}
	form.Status = status

	if reviewerID.Valid {
		rid := id.ReviewerID(reviewerID.UUID)
		form.ReviewerID = &rid
	}
	if reviewScore.Valid {
		score := int(reviewScore.Int64)
		form.ReviewScore = &score
	}
	if len(checklist) > 0 {
		var cl models.ReviewChecklist
		if err := json.Unmarshal(checklist, &cl); err != nil {
			return nil, fmt.Errorf("unmarshal review checklist: %w", err)
		}
		form.ReviewChecklist = &cl
	}
	if len(changes) > 0 {
		if err := json.Unmarshal(changes, &form.RequestedChanges); err != nil {
			return nil, fmt.Errorf("unmarshal requested changes: %w", err)
		}
	}
	if revisionDeadline.Valid {
		ts := revisionDeadline.Time
		form.RevisionDeadline = &ts
	}
	if supersededBy.Valid {
		fid := id.FormID(supersededBy.UUID)
		form.SupersededBy = &fid
	}
	return &form, nil
}

func reviewerUUID(rid *id.ReviewerID) *uuid.UUID {
	if rid == nil {
		return nil
	}
	raw := uuid.UUID(*rid)
	return &raw
}

func formUUID(fid *id.FormID) *uuid.UUID {
	if fid == nil {
		return nil
	}
	raw := uuid.UUID(*fid)
	return &raw
}

func nullableUUID(raw *uuid.UUID) any {
	if raw == nil {
		return nil
	}
	return *raw
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(ts *time.Time) any {
	if ts == nil {
		return nil
	}
	return *ts
}
