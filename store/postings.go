/*
Package store persists canonical postings and import audit logs in
PostgreSQL.

The (source_url, external_id) uniqueness invariant is enforced by the
database, not application logic: concurrent workers racing on the same
identity resolve through ON CONFLICT, and the second writer's values win.
*/
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jobwire-io/job-import-backend/types"
)

// DB is the subset of pgxpool.Pool the stores need. Narrowing to an
// interface keeps the stores mockable in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Outcome reports which effect an upsert had.
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeUpdated
)

func (o Outcome) String() string {
	if o == OutcomeCreated {
		return "created"
	}
	return "updated"
}

// StoreError is a per-candidate persistence failure: a constraint violation
// outside the expected upsert path or a transient write fault reported by
// the server. It is recorded against the single candidate and does not
// abort the rest of the batch.
type StoreError struct {
	ExternalID string
	Err        error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store posting %s: %v", e.ExternalID, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// PostingStore owns all reads and writes of postings.
type PostingStore struct {
	db DB
}

// NewPostingStore constructs a PostingStore on the given connection handle.
func NewPostingStore(db DB) *PostingStore {
	return &PostingStore{db: db}
}

const upsertSQL = `
INSERT INTO postings
    (source_url, external_id, title, description, company, location, link, published_at, raw)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (source_url, external_id) DO UPDATE SET
    title        = EXCLUDED.title,
    description  = EXCLUDED.description,
    company      = EXCLUDED.company,
    location     = EXCLUDED.location,
    link         = EXCLUDED.link,
    published_at = EXCLUDED.published_at,
    raw          = EXCLUDED.raw,
    updated_at   = now()
RETURNING (xmax = 0)`

// Upsert inserts the candidate or, on identity conflict, overwrites every
// non-identity field of the existing row. The write is a single statement,
// so it is all-or-nothing and safe under concurrent workers.
//
// Errors the server reports about the row come back as *StoreError; any
// other error (lost connection, cancelled context) is returned as-is and
// should be treated as an infrastructure failure for the whole run.
func (s *PostingStore) Upsert(ctx context.Context, p types.Posting) (Outcome, error) {
	var inserted bool
	err := s.db.QueryRow(ctx, upsertSQL,
		p.SourceURL, p.ExternalID, p.Title, p.Description,
		p.Company, p.Location, p.Link, p.PublishedAt, p.Raw,
	).Scan(&inserted)
	if err != nil {
		return 0, classify(err, p.ExternalID)
	}
	if inserted {
		return OutcomeCreated, nil
	}
	return OutcomeUpdated, nil
}

// classify separates row-level server errors from connection-level faults.
// The server answering with an error means the connection is alive and the
// failure is scoped to this candidate.
func classify(err error, externalID string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &StoreError{ExternalID: externalID, Err: pgErr}
	}
	return err
}

// CountBySource returns how many postings exist for a feed URL.
func (s *PostingStore) CountBySource(ctx context.Context, sourceURL string) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM postings WHERE source_url = $1`, sourceURL,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count postings: %w", err)
	}
	return n, nil
}
