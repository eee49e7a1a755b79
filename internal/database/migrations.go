package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type migration struct {
	name string
	sql  string
}

var schema = []migration{
	{"pg_trgm extension", `CREATE EXTENSION IF NOT EXISTS pg_trgm`},
	{"brands table", `
		CREATE TABLE IF NOT EXISTS brands (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(100) NOT NULL UNIQUE,
			slug VARCHAR(120) NOT NULL UNIQUE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`},
	{"categories table", `
		CREATE TABLE IF NOT EXISTS categories (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(100) NOT NULL UNIQUE,
			slug VARCHAR(120) NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`},
	{"products table", `
		CREATE TABLE IF NOT EXISTS products (
			id BIGSERIAL PRIMARY KEY,
			model_name VARCHAR(255) NOT NULL,
			slug VARCHAR(300) NOT NULL UNIQUE,
			brand_id BIGINT NOT NULL REFERENCES brands(id),
			category_id BIGINT NOT NULL REFERENCES categories(id),
			model_number VARCHAR(100),
			specifications JSONB NOT NULL DEFAULT '{}'::jsonb,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`},
	{"idx_products_brand_model_name", `
		CREATE INDEX IF NOT EXISTS idx_products_brand_model_name
		ON products(brand_id, model_name)
	`},
	{"idx_products_brand_model_number", `
		CREATE INDEX IF NOT EXISTS idx_products_brand_model_number
		ON products(brand_id, model_number)
		WHERE model_number IS NOT NULL
	`},
	{"idx_products_model_name_trgm", `
		CREATE INDEX IF NOT EXISTS idx_products_model_name_trgm
		ON products USING gin (model_name gin_trgm_ops)
	`},
	{"idx_products_model_number_trgm", `
		CREATE INDEX IF NOT EXISTS idx_products_model_number_trgm
		ON products USING gin (model_number gin_trgm_ops)
	`},
	{"variants table", `
		CREATE TABLE IF NOT EXISTS variants (
			id BIGSERIAL PRIMARY KEY,
			product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			ram_gb INTEGER,
			storage_gb INTEGER,
			color VARCHAR(100),
			display_size NUMERIC(4,2),
			connectivity_type VARCHAR(20),
			images TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`},
	{"idx_variants_product", `
		CREATE INDEX IF NOT EXISTS idx_variants_product
		ON variants(product_id, storage_gb)
	`},
	{"listings table", `
		CREATE TABLE IF NOT EXISTS listings (
			id BIGSERIAL PRIMARY KEY,
			variant_id BIGINT NOT NULL REFERENCES variants(id) ON DELETE CASCADE,
			store_name VARCHAR(100) NOT NULL,
			url TEXT NOT NULL UNIQUE,
			price NUMERIC(12,2),
			original_price NUMERIC(12,2),
			rating NUMERIC(3,2),
			stock_status VARCHAR(20) NOT NULL DEFAULT 'unknown',
			price_history JSONB NOT NULL DEFAULT '[]'::jsonb,
			scraped_at TIMESTAMPTZ,
			last_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`},
	{"idx_listings_variant", `
		CREATE INDEX IF NOT EXISTS idx_listings_variant
		ON listings(variant_id)
	`},
	{"ingest_failures table", `
		CREATE TABLE IF NOT EXISTS ingest_failures (
			id BIGSERIAL PRIMARY KEY,
			run_id VARCHAR(64) NOT NULL,
			identifier TEXT NOT NULL,
			kind VARCHAR(50) NOT NULL,
			op VARCHAR(100),
			message TEXT,
			attempts INTEGER NOT NULL DEFAULT 1,
			last_attempt TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (run_id, identifier)
		)
	`},
	{"idx_ingest_failures_kind", `
		CREATE INDEX IF NOT EXISTS idx_ingest_failures_kind
		ON ingest_failures(kind)
	`},
}

// RunMigrations creates the catalog schema. Every statement is idempotent.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	for _, m := range schema {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", m.name, err)
		}
	}
	return nil
}
