package store

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/jobwire-io/job-import-backend/types"
)

// HistoryParams selects a page of the import audit log.
type HistoryParams struct {
	Page    int    // 1-based
	Limit   int    // clamped to 1..MaxHistoryLimit
	FeedURL string // optional case-insensitive substring match
}

// MaxHistoryLimit caps the page size of history queries.
const MaxHistoryLimit = 50

// DefaultHistoryLimit is used when the caller does not specify a limit.
const DefaultHistoryLimit = 20

// Normalize clamps page and limit into their valid ranges.
func (p *HistoryParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultHistoryLimit
	}
	if p.Limit > MaxHistoryLimit {
		p.Limit = MaxHistoryLimit
	}
}

// AuditLog is the append-only record of import run outcomes.
type AuditLog struct {
	db DB
}

// NewAuditLog constructs an AuditLog store on the given connection handle.
func NewAuditLog(db DB) *AuditLog {
	return &AuditLog{db: db}
}

// Insert appends one immutable entry. Entries are never updated afterward.
func (a *AuditLog) Insert(ctx context.Context, entry *types.ImportLog) error {
	// A clean run has a nil reason slice; pgx encodes nil as SQL NULL and
	// the column is NOT NULL, so bind an empty array instead.
	reasons := entry.FailureReasons
	if reasons == nil {
		reasons = []string{}
	}
	err := a.db.QueryRow(ctx,
		`INSERT INTO import_logs
		     (feed_url, total_fetched, total_imported, new_jobs, updated_jobs, failed_jobs, failure_reasons)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		entry.FeedURL, entry.TotalFetched, entry.TotalImported,
		entry.NewJobs, entry.UpdatedJobs, entry.FailedJobs, reasons,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert import log: %w", err)
	}
	return nil
}

// escapeLike neutralizes LIKE wildcards so user input only ever matches as a
// literal substring.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// historyQueries builds the page and count statements for a history read.
// Split out from List so query construction is testable without a database.
func historyQueries(p HistoryParams) (pageSQL string, pageArgs []any, countSQL string, countArgs []any, err error) {
	builder := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	page := builder.
		Select("id", "feed_url", "total_fetched", "total_imported",
			"new_jobs", "updated_jobs", "failed_jobs", "failure_reasons", "created_at").
		From("import_logs").
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(p.Limit)).
		Offset(uint64((p.Page - 1) * p.Limit))

	count := builder.Select("count(*)").From("import_logs")

	if p.FeedURL != "" {
		match := "%" + escapeLike(p.FeedURL) + "%"
		page = page.Where(sq.ILike{"feed_url": match})
		count = count.Where(sq.ILike{"feed_url": match})
	}

	pageSQL, pageArgs, err = page.ToSql()
	if err != nil {
		return "", nil, "", nil, err
	}
	countSQL, countArgs, err = count.ToSql()
	if err != nil {
		return "", nil, "", nil, err
	}
	return pageSQL, pageArgs, countSQL, countArgs, nil
}

// List reads one page of audit entries ordered by creation time descending,
// plus the total count matching the filter.
func (a *AuditLog) List(ctx context.Context, p HistoryParams) ([]types.ImportLog, int64, error) {
	p.Normalize()

	pageSQL, pageArgs, countSQL, countArgs, err := historyQueries(p)
	if err != nil {
		return nil, 0, fmt.Errorf("build history query: %w", err)
	}

	rows, err := a.db.Query(ctx, pageSQL, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("query import logs: %w", err)
	}
	defer rows.Close()

	logs := []types.ImportLog{}
	for rows.Next() {
		var l types.ImportLog
		if err := rows.Scan(
			&l.ID, &l.FeedURL, &l.TotalFetched, &l.TotalImported,
			&l.NewJobs, &l.UpdatedJobs, &l.FailedJobs, &l.FailureReasons, &l.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan import log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("read import logs: %w", err)
	}

	var total int64
	if err := a.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count import logs: %w", err)
	}
	return logs, total, nil
}
