package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/directory/models"
	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/sentinel"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/tx"
)

// Postgres persists jurisdiction records. Pure I/O; normalization and
// race handling belong to the service.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *Postgres) CreateIfCodeAvailable(ctx context.Context, j *models.Jurisdiction) error {
	query := `
		INSERT INTO jurisdictions (id, code, state, county, court_type, parent_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (code) DO NOTHING
	`
	var parentID any
	if j.ParentID != nil {
		parentID = uuid.UUID(*j.ParentID)
	}
	result, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(j.ID), j.Code, j.State, j.County, j.CourtType, parentID, j.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create jurisdiction: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("create jurisdiction rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, jurisdictionID id.JurisdictionID) (*models.Jurisdiction, error) {
	query := `
		SELECT id, code, state, county, court_type, parent_id, created_at
		FROM jurisdictions
		WHERE id = $1
	`
	j, err := scanJurisdiction(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(jurisdictionID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find jurisdiction by id: %w", err)
	}
	return j, nil
}

func (s *Postgres) FindByCode(ctx context.Context, code string) (*models.Jurisdiction, error) {
	query := `
		SELECT id, code, state, county, court_type, parent_id, created_at
		FROM jurisdictions
		WHERE code = $1
	`
	j, err := scanJurisdiction(s.q(ctx).QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find jurisdiction by code: %w", err)
	}
	return j, nil
}

func (s *Postgres) List(ctx context.Context) ([]*models.Jurisdiction, error) {
	query := `
		SELECT id, code, state, county, court_type, parent_id, created_at
		FROM jurisdictions
		ORDER BY code
	`
	rows, err := s.q(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list jurisdictions: %w", err)
	}
	defer rows.Close()
	return collectJurisdictions(rows)
}

func (s *Postgres) ListChildren(ctx context.Context, parentID id.JurisdictionID) ([]*models.Jurisdiction, error) {
	query := `
		SELECT id, code, state, county, court_type, parent_id, created_at
		FROM jurisdictions
		WHERE parent_id = $1
		ORDER BY code
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(parentID))
	if err != nil {
		return nil, fmt.Errorf("list child jurisdictions: %w", err)
	}
	defer rows.Close()
	return collectJurisdictions(rows)
}

type jurisdictionRow interface {
	Scan(dest ...any) error
}

func scanJurisdiction(row jurisdictionRow) (*models.Jurisdiction, error) {
	var (
		j        models.Jurisdiction
		rawID    uuid.UUID
		parentID uuid.NullUUID
	)
	if err := row.Scan(&rawID, &j.Code, &j.State, &j.County, &j.CourtType, &parentID, &j.CreatedAt); err != nil {
		return nil, err
	}
	j.ID = id.JurisdictionID(rawID)
	if parentID.Valid {
		pid := id.JurisdictionID(parentID.UUID)
		j.ParentID = &pid
	}
	return &j, nil
}

func collectJurisdictions(rows *sql.Rows) ([]*models.Jurisdiction, error) {
	out := make([]*models.Jurisdiction, 0)
	for rows.Next() {
		j, err := scanJurisdiction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan jurisdiction: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jurisdictions: %w", err)
	}
	return out, nil
}
