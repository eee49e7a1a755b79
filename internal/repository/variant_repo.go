package repository

import (
	"context"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5/pgxpool"

	"phone-catalog-ingest/internal/model"
)

type VariantRepo struct {
	pool *pgxpool.Pool
}

func NewVariantRepo(pool *pgxpool.Pool) *VariantRepo {
	return &VariantRepo{pool: pool}
}

// nullableEqual compares a column to v, treating a nil v as IS NULL.
func nullableEqual[T any](sb *sqlbuilder.SelectBuilder, column string, v *T) string {
	if v == nil {
		return sb.IsNull(column)
	}
	return sb.Equal(column, *v)
}

// FindVariantByExactAttributes returns the oldest variant of the product
// whose attribute tuple equals the query, NULLs compared as equal.
func (r *VariantRepo) FindVariantByExactAttributes(ctx context.Context, q model.VariantQuery) (*model.Variant, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "product_id", "ram_gb", "storage_gb", "color", "display_size",
		"connectivity_type", "images", "created_at", "updated_at")
	sb.From("variants")
	sb.Where(
		sb.Equal("product_id", q.ProductID),
		nullableEqual(sb, "storage_gb", q.Attributes.StorageGB),
		nullableEqual(sb, "color", q.Attributes.Color),
		nullableEqual(sb, "display_size", q.Attributes.DisplaySize),
		nullableEqual(sb, "connectivity_type", q.Attributes.ConnectivityType),
	)
	if !q.IgnoreRAM {
		sb.Where(nullableEqual(sb, "ram_gb", q.Attributes.RAMGB))
	}
	sb.OrderBy("id ASC")
	sb.Limit(1)

	query, args := sb.Build()
	var v model.Variant
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&v.ID, &v.ProductID, &v.Attributes.RAMGB, &v.Attributes.StorageGB, &v.Attributes.Color,
		&v.Attributes.DisplaySize, &v.Attributes.ConnectivityType, &v.Images, &v.CreatedAt, &v.UpdatedAt,
	)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query variant: %w", err)
	}
	return &v, nil
}

func (r *VariantRepo) CreateVariant(ctx context.Context, v model.Variant) (model.Variant, error) {
	if v.Images == nil {
		v.Images = []string{}
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("variants")
	sb.Cols("product_id", "ram_gb", "storage_gb", "color", "display_size", "connectivity_type", "images")
	sb.Values(v.ProductID, v.Attributes.RAMGB, v.Attributes.StorageGB, v.Attributes.Color,
		v.Attributes.DisplaySize, v.Attributes.ConnectivityType, v.Images)
	sb.SQL("RETURNING id, created_at, updated_at")

	query, args := sb.Build()
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return model.Variant{}, fmt.Errorf("failed to insert variant: %w", err)
	}
	return v, nil
}

func (r *VariantRepo) UpdateVariantImages(ctx context.Context, id int64, images []string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE variants SET images = $1, updated_at = NOW()
		WHERE id = $2
	`, images, id)
	if err != nil {
		return fmt.Errorf("failed to update images of variant %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("variant %d not found", id)
	}
	return nil
}
