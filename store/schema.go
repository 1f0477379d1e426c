package store

import (
	"context"
	"fmt"
)

// Schema statements are idempotent so startup can run them unconditionally.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS postings (
		id           BIGSERIAL PRIMARY KEY,
		source_url   TEXT NOT NULL,
		external_id  TEXT NOT NULL,
		title        TEXT NOT NULL DEFAULT '',
		description  TEXT NOT NULL DEFAULT '',
		company      TEXT NOT NULL DEFAULT '',
		location     TEXT NOT NULL DEFAULT '',
		link         TEXT NOT NULL DEFAULT '',
		published_at TIMESTAMPTZ,
		raw          JSONB,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT postings_identity UNIQUE (source_url, external_id)
	)`,
	`CREATE INDEX IF NOT EXISTS postings_source_url_idx ON postings (source_url)`,

	`CREATE TABLE IF NOT EXISTS import_logs (
		id              BIGSERIAL PRIMARY KEY,
		feed_url        TEXT NOT NULL,
		total_fetched   INTEGER NOT NULL DEFAULT 0,
		total_imported  INTEGER NOT NULL DEFAULT 0,
		new_jobs        INTEGER NOT NULL DEFAULT 0,
		updated_jobs    INTEGER NOT NULL DEFAULT 0,
		failed_jobs     INTEGER NOT NULL DEFAULT 0,
		failure_reasons TEXT[] NOT NULL DEFAULT '{}',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS import_logs_created_at_idx ON import_logs (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS import_logs_feed_created_idx ON import_logs (feed_url, created_at DESC)`,
}

// EnsureSchema creates the postings and import_logs tables and their
// indexes if they do not exist yet.
func EnsureSchema(ctx context.Context, db DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
