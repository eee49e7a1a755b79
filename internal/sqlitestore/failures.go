package sqlitestore

import (
	"context"
	"fmt"
	"time"

	"phone-catalog-ingest/internal/stats"
)

// Record stores a failed record of a run. Failing again bumps attempts.
func (s *Store) Record(ctx context.Context, runID string, entry stats.ErrorEntry) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO ingest_failures(run_id, identifier, kind, op, message, attempts, last_attempt)
VALUES(?,?,?,?,?,1,?)
ON CONFLICT(run_id, identifier) DO UPDATE SET
  kind = excluded.kind,
  op = excluded.op,
  message = excluded.message,
  attempts = ingest_failures.attempts + 1,
  last_attempt = excluded.last_attempt`,
		runID, entry.Identifier, entry.Kind, entry.Op, entry.Message, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to upsert ingest failure: %w", err)
	}
	return nil
}

// Failures returns the failures of a run with their attempt counts.
func (s *Store) Failures(ctx context.Context, runID string) (map[string]int, []stats.ErrorEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT identifier, kind, COALESCE(op, ''), COALESCE(message, ''), attempts FROM ingest_failures WHERE run_id = ? ORDER BY id",
		runID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query ingest failures: %w", err)
	}
	defer rows.Close()

	attempts := make(map[string]int)
	var entries []stats.ErrorEntry
	for rows.Next() {
		var e stats.ErrorEntry
		var n int
		if err := rows.Scan(&e.Identifier, &e.Kind, &e.Op, &e.Message, &n); err != nil {
			return nil, nil, fmt.Errorf("failed to scan failure row: %w", err)
		}
		attempts[e.Identifier] = n
		entries = append(entries, e)
	}
	return attempts, entries, rows.Err()
}
