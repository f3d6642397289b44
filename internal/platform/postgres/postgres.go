// Package postgres owns the database handles and the registry schema.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/platform/config"
)

// Open establishes a database/sql pool used by the directory, forms and
// rewards stores.
func Open(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// OpenPool establishes a pgx pool used by the feedback store.
func OpenPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pgx pool: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS jurisdictions (
	id         UUID PRIMARY KEY,
	code       TEXT NOT NULL UNIQUE,
	state      TEXT NOT NULL,
	county     TEXT NOT NULL DEFAULT '',
	court_type TEXT NOT NULL DEFAULT '',
	parent_id  UUID REFERENCES jurisdictions(id),
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS forms (
	id                UUID PRIMARY KEY,
	title             TEXT NOT NULL,
	form_number       TEXT NOT NULL DEFAULT '',
	form_type         TEXT NOT NULL,
	status            TEXT NOT NULL,
	contributor_id    UUID NOT NULL,
	reviewer_id       UUID,
	jurisdiction_id   UUID NOT NULL REFERENCES jurisdictions(id),
	content_hash      TEXT NOT NULL,
	storage_handle    TEXT NOT NULL,
	version           INT NOT NULL DEFAULT 1,
	page_count        INT NOT NULL,
	review_score      INT,
	review_checklist  JSONB,
	requested_changes JSONB,
	revision_deadline TIMESTAMPTZ,
	is_public         BOOLEAN NOT NULL DEFAULT FALSE,
	view_count        BIGINT NOT NULL DEFAULT 0,
	download_count    BIGINT NOT NULL DEFAULT 0,
	superseded_by     UUID,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_forms_content_hash ON forms (content_hash);
CREATE INDEX IF NOT EXISTS idx_forms_jurisdiction_type ON forms (jurisdiction_id, form_type);
CREATE INDEX IF NOT EXISTS idx_forms_form_number ON forms (form_number) WHERE form_number <> '';

CREATE TABLE IF NOT EXISTS form_fields (
	form_id    UUID NOT NULL REFERENCES forms(id) ON DELETE CASCADE,
	position   INT NOT NULL,
	name       TEXT NOT NULL,
	label      TEXT NOT NULL DEFAULT '',
	field_type TEXT NOT NULL,
	required   BOOLEAN NOT NULL DEFAULT FALSE,
	repeatable BOOLEAN NOT NULL DEFAULT FALSE,
	validation JSONB,
	PRIMARY KEY (form_id, position)
);

CREATE TABLE IF NOT EXISTS contributor_stats (
	contributor_id       UUID PRIMARY KEY,
	forms_submitted      INT NOT NULL DEFAULT 0,
	forms_approved       INT NOT NULL DEFAULT 0,
	forms_rejected       INT NOT NULL DEFAULT 0,
	forms_pending        INT NOT NULL DEFAULT 0,
	revisions_requested  INT NOT NULL DEFAULT 0,
	unique_pages         INT NOT NULL DEFAULT 0,
	unique_forms         INT NOT NULL DEFAULT 0,
	free_weeks_earned    INT NOT NULL DEFAULT 0,
	free_weeks_used      INT NOT NULL DEFAULT 0,
	current_streak       INT NOT NULL DEFAULT 0,
	best_streak          INT NOT NULL DEFAULT 0,
	tier                 TEXT NOT NULL DEFAULT 'bronze',
	score_sum            BIGINT NOT NULL DEFAULT 0,
	score_count          INT NOT NULL DEFAULT 0,
	last_contribution_at TIMESTAMPTZ,
	created_at           TIMESTAMPTZ NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS reward_ledger (
	id              UUID PRIMARY KEY,
	contributor_id  UUID NOT NULL,
	form_id         UUID,
	reward_type     TEXT NOT NULL,
	amount_weeks    INT NOT NULL,
	reason          TEXT NOT NULL,
	milestone_type  TEXT NOT NULL DEFAULT '',
	milestone_value INT NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'active',
	granted_at      TIMESTAMPTZ NOT NULL,
	expires_at      TIMESTAMPTZ,
	used_at         TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_reward_ledger_contributor ON reward_ledger (contributor_id, status);

CREATE TABLE IF NOT EXISTS form_feedback (
	id             UUID PRIMARY KEY,
	ticket_number  TEXT NOT NULL UNIQUE,
	form_id        UUID NOT NULL REFERENCES forms(id),
	user_id        UUID NOT NULL,
	feedback_type  TEXT NOT NULL,
	severity       INT NOT NULL,
	priority       TEXT NOT NULL,
	status         TEXT NOT NULL,
	field_name     TEXT NOT NULL DEFAULT '',
	content        TEXT NOT NULL,
	assigned_to    UUID,
	upvotes        INT NOT NULL DEFAULT 0,
	downvotes      INT NOT NULL DEFAULT 0,
	users_affected INT NOT NULL DEFAULT 1,
	trend_count    INT NOT NULL DEFAULT 1,
	browser        TEXT NOT NULL DEFAULT '',
	resolution     TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_form_feedback_form ON form_feedback (form_id, feedback_type, field_name);
CREATE INDEX IF NOT EXISTS idx_form_feedback_assignee ON form_feedback (assigned_to) WHERE assigned_to IS NOT NULL;

CREATE TABLE IF NOT EXISTS ticket_sequence (
	day        TEXT PRIMARY KEY,
	last_value INT NOT NULL
);

CREATE TABLE IF NOT EXISTS reviewers (
	id           UUID PRIMARY KEY,
	display_name TEXT NOT NULL,
	active       BOOLEAN NOT NULL DEFAULT TRUE,
	open_count   INT NOT NULL DEFAULT 0
);
`

// EnsureSchema creates the registry tables if they do not exist. Intended for
// development and tests; production deployments run migrations out of band.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
