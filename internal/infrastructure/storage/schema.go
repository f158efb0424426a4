package storage

import (
	"context"
	"fmt"
	"strings"

	"ScholarshipScanner/internal/domain"
)

// schemaDDL creates the tables the Postgres repository works with. {{schema}} is
// replaced with the configured schema prefix.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS {{schema}}announcements (
    id                    UUID PRIMARY KEY,
    link                  TEXT NOT NULL UNIQUE,
    title                 TEXT NOT NULL,
    published_at          TIMESTAMPTZ,
    registration_deadline TIMESTAMPTZ,
    result_date           TIMESTAMPTZ,
    stage                 TEXT NOT NULL,
    modality              TEXT NOT NULL,
    updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS {{schema}}projects (
    id              UUID PRIMARY KEY,
    announcement_id UUID NOT NULL REFERENCES {{schema}}announcements (id) ON DELETE CASCADE,
    name            TEXT NOT NULL,
    advisor         TEXT NOT NULL,
    org_unit        TEXT NOT NULL DEFAULT '',
    summary         TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS projects_advisor_idx ON {{schema}}projects (advisor);

CREATE TABLE IF NOT EXISTS {{schema}}slots (
    id          UUID PRIMARY KEY,
    project_id  UUID NOT NULL REFERENCES {{schema}}projects (id) ON DELETE CASCADE,
    type        TEXT NOT NULL,
    profile     TEXT NOT NULL,
    status      TEXT NOT NULL DEFAULT 'available',
    candidate   TEXT NOT NULL DEFAULT '',
    requirement TEXT NOT NULL DEFAULT '',
    stipend     DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
);
CREATE INDEX IF NOT EXISTS slots_project_status_idx ON {{schema}}slots (project_id, status);

CREATE TABLE IF NOT EXISTS {{schema}}notifications (
    announcement_id UUID NOT NULL,
    kind            TEXT NOT NULL,
    audience        TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (announcement_id, kind, audience)
);

CREATE TABLE IF NOT EXISTS {{schema}}metadata (
    key   TEXT PRIMARY KEY,
    value TIMESTAMPTZ NOT NULL
);
`

// Migrate creates missing tables.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	prefix := ""
	if r.schema != "" {
		prefix = r.schema + "."
		if _, err := r.db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", r.schema)); err != nil {
			return fmt.Errorf("create schema: %w: %w", domain.ErrStore, err)
		}
	}
	if _, err := r.db.ExecContext(ctx, strings.ReplaceAll(schemaDDL, "{{schema}}", prefix)); err != nil {
		return fmt.Errorf("migrate: %w: %w", domain.ErrStore, err)
	}
	return nil
}
