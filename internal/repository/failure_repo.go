package repository

import (
	"context"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5/pgxpool"

	"phone-catalog-ingest/internal/stats"
)

// FailureRepo persists the per-record errors of ingest runs
type FailureRepo struct {
	pool *pgxpool.Pool
}

// NewFailureRepo creates a new failure repository
func NewFailureRepo(pool *pgxpool.Pool) *FailureRepo {
	return &FailureRepo{pool: pool}
}

// Record inserts or updates a failure row. A record failing again in the
// same run bumps its attempt counter.
func (r *FailureRepo) Record(ctx context.Context, runID string, entry stats.ErrorEntry) error {
	query := `
		INSERT INTO ingest_failures (run_id, identifier, kind, op, message, attempts, last_attempt)
		VALUES ($1, $2, $3, $4, $5, 1, NOW())
		ON CONFLICT (run_id, identifier) DO UPDATE SET
			kind = EXCLUDED.kind,
			op = EXCLUDED.op,
			message = EXCLUDED.message,
			attempts = ingest_failures.attempts + 1,
			last_attempt = NOW()
	`

	_, err := r.pool.Exec(ctx, query, runID, entry.Identifier, entry.Kind, entry.Op, entry.Message)
	if err != nil {
		return fmt.Errorf("failed to upsert ingest failure: %w", err)
	}

	return nil
}

// ListByRun returns the failures recorded for a run, oldest first.
func (r *FailureRepo) ListByRun(ctx context.Context, runID string) ([]stats.ErrorEntry, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("identifier", "kind", "COALESCE(op, '')", "COALESCE(message, '')")
	sb.From("ingest_failures")
	sb.Where(sb.Equal("run_id", runID))
	sb.OrderBy("id ASC")

	query, args := sb.Build()
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingest failures: %w", err)
	}
	defer rows.Close()

	var entries []stats.ErrorEntry
	for rows.Next() {
		var e stats.ErrorEntry
		if err := rows.Scan(&e.Identifier, &e.Kind, &e.Op, &e.Message); err != nil {
			return nil, fmt.Errorf("failed to scan failure row: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// CountByKind returns the number of failures per kind for a run
func (r *FailureRepo) CountByKind(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT kind, COUNT(*)
		FROM ingest_failures
		WHERE run_id = $1
		GROUP BY kind
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query failure stats: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		counts[kind] = count
	}

	return counts, rows.Err()
}
