// Package sqlitestore implements the catalog store on an embedded SQLite
// database. Trigram similarity is computed in Go since SQLite has no pg_trgm.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"phone-catalog-ingest/internal/dedup"
)

const maxSlugAttempts = 5

var _ dedup.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS brands (
  id          INTEGER PRIMARY KEY,
  name        TEXT NOT NULL UNIQUE COLLATE NOCASE,
  slug        TEXT NOT NULL UNIQUE,
  is_active   INTEGER NOT NULL DEFAULT 1 CHECK (is_active IN (0,1)),
  created_at  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS categories (
  id          INTEGER PRIMARY KEY,
  name        TEXT NOT NULL UNIQUE COLLATE NOCASE,
  slug        TEXT NOT NULL UNIQUE,
  created_at  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS products (
  id              INTEGER PRIMARY KEY,
  model_name      TEXT NOT NULL,
  slug            TEXT NOT NULL UNIQUE,
  brand_id        INTEGER NOT NULL REFERENCES brands(id),
  category_id     INTEGER NOT NULL REFERENCES categories(id),
  model_number    TEXT,
  specifications  TEXT NOT NULL DEFAULT '{}',
  status          TEXT NOT NULL DEFAULT 'active',
  created_at      TEXT NOT NULL,
  updated_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_brand_model_name ON products(brand_id, model_name);
CREATE INDEX IF NOT EXISTS idx_products_brand_model_number ON products(brand_id, model_number);
CREATE TABLE IF NOT EXISTS variants (
  id                 INTEGER PRIMARY KEY,
  product_id         INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
  ram_gb             INTEGER,
  storage_gb         INTEGER,
  color              TEXT,
  display_size       REAL,
  connectivity_type  TEXT,
  images             TEXT NOT NULL DEFAULT '[]',
  created_at         TEXT NOT NULL,
  updated_at         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_variants_product ON variants(product_id, storage_gb);
CREATE TABLE IF NOT EXISTS listings (
  id              INTEGER PRIMARY KEY,
  variant_id      INTEGER NOT NULL REFERENCES variants(id) ON DELETE CASCADE,
  store_name      TEXT NOT NULL,
  url             TEXT NOT NULL UNIQUE,
  price           REAL,
  original_price  REAL,
  rating          REAL,
  stock_status    TEXT NOT NULL DEFAULT 'unknown',
  price_history   TEXT NOT NULL DEFAULT '[]',
  scraped_at      TEXT,
  last_seen_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_listings_variant ON listings(variant_id);
CREATE TABLE IF NOT EXISTS ingest_failures (
  id            INTEGER PRIMARY KEY,
  run_id        TEXT NOT NULL,
  identifier    TEXT NOT NULL,
  kind          TEXT NOT NULL,
  op            TEXT,
  message       TEXT,
  attempts      INTEGER NOT NULL DEFAULT 1,
  last_attempt  TEXT NOT NULL,
  UNIQUE(run_id, identifier)
);
`

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// The batch is sequential and SQLite has a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// insertWithSlug runs insert with base, then base-2, base-3 while the slug
// unique constraint rejects it.
func insertWithSlug(ctx context.Context, base string, insert func(ctx context.Context, slug string) error) (string, error) {
	slug := base
	for attempt := 1; attempt <= maxSlugAttempts; attempt++ {
		if attempt > 1 {
			slug = fmt.Sprintf("%s-%d", base, attempt)
		}
		err := insert(ctx, slug)
		if err == nil {
			return slug, nil
		}
		if !isSlugConflict(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("slug %q still taken after %d attempts", base, maxSlugAttempts)
}

func isSlugConflict(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, ".slug")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}
