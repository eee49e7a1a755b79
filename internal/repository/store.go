// Package repository implements the catalog store on PostgreSQL.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"phone-catalog-ingest/internal/dedup"
)

const maxSlugAttempts = 5

var _ dedup.Store = (*Store)(nil)

// Store bundles the per-table repositories into one catalog store.
type Store struct {
	*BrandRepo
	*CategoryRepo
	*ProductRepo
	*VariantRepo
	*ListingRepo
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		BrandRepo:    NewBrandRepo(pool),
		CategoryRepo: NewCategoryRepo(pool),
		ProductRepo:  NewProductRepo(pool),
		VariantRepo:  NewVariantRepo(pool),
		ListingRepo:  NewListingRepo(pool),
	}
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
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && strings.HasSuffix(pgErr.ConstraintName, "_slug_key")
}

func notFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
