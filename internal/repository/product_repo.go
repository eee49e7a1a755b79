package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5/pgxpool"

	"phone-catalog-ingest/internal/matching"
	"phone-catalog-ingest/internal/model"
)

var productColumns = []string{
	"id", "model_name", "slug", "brand_id", "category_id",
	"model_number", "specifications", "status", "created_at", "updated_at",
}

type scanner interface {
	Scan(dest ...any) error
}

type ProductRepo struct {
	pool *pgxpool.Pool
}

func NewProductRepo(pool *pgxpool.Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

func scanProduct(row scanner, extra ...any) (model.Product, error) {
	var p model.Product
	var specs []byte
	dest := append([]any{
		&p.ID, &p.ModelName, &p.Slug, &p.BrandID, &p.CategoryID,
		&p.ModelNumber, &specs, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return model.Product{}, err
	}
	if len(specs) > 0 {
		if err := json.Unmarshal(specs, &p.Specifications); err != nil {
			return model.Product{}, fmt.Errorf("failed to decode specifications of product %d: %w", p.ID, err)
		}
	}
	return p, nil
}

// FindProductByModelNumber returns the oldest product of the brand with
// exactly this model number.
func (r *ProductRepo) FindProductByModelNumber(ctx context.Context, modelNumber string, brandID int64) (*model.Product, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(productColumns...)
	sb.From("products")
	sb.Where(
		sb.Equal("brand_id", brandID),
		sb.Equal("model_number", modelNumber),
	)
	sb.OrderBy("id ASC")
	sb.Limit(1)

	query, args := sb.Build()
	p, err := scanProduct(r.pool.QueryRow(ctx, query, args...))
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product by model number: %w", err)
	}
	return &p, nil
}

func (r *ProductRepo) FindProductsByModelNameIn(ctx context.Context, names []string, brandID int64) ([]model.Product, error) {
	if len(names) == 0 {
		return nil, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(productColumns...)
	sb.From("products")
	sb.Where(
		sb.Equal("brand_id", brandID),
		sb.In("model_name", sqlbuilder.Flatten(names)...),
	)
	sb.OrderBy("id ASC")

	query, args := sb.Build()
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products by model name: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, p)
	}

	return products, rows.Err()
}

// FindProductByFuzzyModelNumber compares a model number against product
// model names with pg_trgm. Only names on the query's side of the 4G line
// are candidates.
func (r *ProductRepo) FindProductByFuzzyModelNumber(ctx context.Context, modelNumber string, brandID, categoryID int64, threshold float64) (*model.FuzzyMatch, error) {
	return r.fuzzy(ctx, modelNumber, brandID, categoryID, threshold)
}

func (r *ProductRepo) FindProductByFuzzyModelName(ctx context.Context, modelName string, brandID, categoryID int64, threshold float64) (*model.FuzzyMatch, error) {
	return r.fuzzy(ctx, modelName, brandID, categoryID, threshold)
}

func (r *ProductRepo) fuzzy(ctx context.Context, q string, brandID, categoryID int64, threshold float64) (*model.FuzzyMatch, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	score := "similarity(model_name, " + sb.Var(q) + ")"
	sb.Select(append(append([]string(nil), productColumns...), score+" AS score")...)
	sb.From("products")
	sb.Where(
		sb.Equal("brand_id", brandID),
		score+" > "+sb.Var(threshold),
	)
	if categoryID != 0 {
		sb.Where(sb.Equal("category_id", categoryID))
	}
	// Stored names are normalized, so the 4G suffix is always " 4g".
	if matching.GetNetworkType(q) == matching.NetworkType4G {
		sb.Where(sb.Like("model_name", "% 4g"))
	} else {
		sb.Where(sb.NotLike("model_name", "% 4g"))
	}
	sb.OrderBy("score DESC", "id ASC")
	sb.Limit(1)

	query, args := sb.Build()
	var similarity float64
	p, err := scanProduct(r.pool.QueryRow(ctx, query, args...), &similarity)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query fuzzy product: %w", err)
	}
	return &model.FuzzyMatch{Product: p, Similarity: similarity}, nil
}

func (r *ProductRepo) CreateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	if p.Status == "" {
		p.Status = model.ProductStatusActive
	}
	specs, err := marshalSpecs(p.Specifications)
	if err != nil {
		return model.Product{}, err
	}

	slug, err := insertWithSlug(ctx, p.Slug, func(ctx context.Context, slug string) error {
		sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
		sb.InsertInto("products")
		sb.Cols("model_name", "slug", "brand_id", "category_id", "model_number", "specifications", "status")
		sb.Values(p.ModelName, slug, p.BrandID, p.CategoryID, p.ModelNumber, specs, string(p.Status))
		sb.SQL("RETURNING id, created_at, updated_at")

		query, args := sb.Build()
		return r.pool.QueryRow(ctx, query, args...).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	})
	if err != nil {
		return model.Product{}, fmt.Errorf("failed to insert product: %w", err)
	}
	p.Slug = slug
	return p, nil
}

func (r *ProductRepo) UpdateProduct(ctx context.Context, id int64, upd model.ProductUpdate) error {
	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("products")
	assignments := []string{"updated_at = NOW()"}
	if upd.ModelNumber != nil {
		assignments = append(assignments, sb.Assign("model_number", *upd.ModelNumber))
	}
	if upd.Specifications != nil {
		specs, err := marshalSpecs(upd.Specifications)
		if err != nil {
			return err
		}
		assignments = append(assignments, sb.Assign("specifications", specs))
	}
	sb.Set(assignments...)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d not found", id)
	}
	return nil
}

func marshalSpecs(specs map[string]any) ([]byte, error) {
	if specs == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(specs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode specifications: %w", err)
	}
	return data, nil
}
