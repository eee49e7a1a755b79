package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"phone-catalog-ingest/internal/model"
)

type BrandRepo struct {
	pool *pgxpool.Pool
}

func NewBrandRepo(pool *pgxpool.Pool) *BrandRepo {
	return &BrandRepo{pool: pool}
}

// FindBrandByName matches the name case-insensitively
func (r *BrandRepo) FindBrandByName(ctx context.Context, name string) (*model.Brand, error) {
	var b model.Brand
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, slug, is_active, created_at
		FROM brands
		WHERE LOWER(name) = LOWER($1)
		ORDER BY id
		LIMIT 1
	`, name).Scan(&b.ID, &b.Name, &b.Slug, &b.IsActive, &b.CreatedAt)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query brand: %w", err)
	}
	return &b, nil
}

func (r *BrandRepo) CreateBrand(ctx context.Context, b model.Brand) (model.Brand, error) {
	slug, err := insertWithSlug(ctx, b.Slug, func(ctx context.Context, slug string) error {
		return r.pool.QueryRow(ctx, `
			INSERT INTO brands (name, slug, is_active)
			VALUES ($1, $2, $3)
			RETURNING id, created_at
		`, b.Name, slug, b.IsActive).Scan(&b.ID, &b.CreatedAt)
	})
	if err != nil {
		return model.Brand{}, fmt.Errorf("failed to insert brand: %w", err)
	}
	b.Slug = slug
	return b, nil
}

type CategoryRepo struct {
	pool *pgxpool.Pool
}

func NewCategoryRepo(pool *pgxpool.Pool) *CategoryRepo {
	return &CategoryRepo{pool: pool}
}

func (r *CategoryRepo) FindCategoryByName(ctx context.Context, name string) (*model.Category, error) {
	var c model.Category
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, slug, created_at
		FROM categories
		WHERE LOWER(name) = LOWER($1)
		ORDER BY id
		LIMIT 1
	`, name).Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}
	return &c, nil
}

func (r *CategoryRepo) CreateCategory(ctx context.Context, c model.Category) (model.Category, error) {
	slug, err := insertWithSlug(ctx, c.Slug, func(ctx context.Context, slug string) error {
		return r.pool.QueryRow(ctx, `
			INSERT INTO categories (name, slug)
			VALUES ($1, $2)
			RETURNING id, created_at
		`, c.Name, slug).Scan(&c.ID, &c.CreatedAt)
	})
	if err != nil {
		return model.Category{}, fmt.Errorf("failed to insert category: %w", err)
	}
	c.Slug = slug
	return c, nil
}
