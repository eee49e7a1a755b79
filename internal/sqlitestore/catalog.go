package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/huandu/go-sqlbuilder"

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

func (s *Store) FindBrandByName(ctx context.Context, name string) (*model.Brand, error) {
	var b model.Brand
	var active int
	var created string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, slug, is_active, created_at FROM brands WHERE name = ? COLLATE NOCASE ORDER BY id LIMIT 1",
		name).Scan(&b.ID, &b.Name, &b.Slug, &active, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query brand: %w", err)
	}
	b.IsActive = active == 1
	b.CreatedAt = parseTime(created)
	return &b, nil
}

func (s *Store) CreateBrand(ctx context.Context, b model.Brand) (model.Brand, error) {
	b.CreatedAt = time.Now().UTC()
	active := 0
	if b.IsActive {
		active = 1
	}
	slug, err := insertWithSlug(ctx, b.Slug, func(ctx context.Context, slug string) error {
		res, err := s.db.ExecContext(ctx,
			"INSERT INTO brands(name, slug, is_active, created_at) VALUES(?,?,?,?)",
			b.Name, slug, active, formatTime(b.CreatedAt))
		if err != nil {
			return err
		}
		b.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return model.Brand{}, fmt.Errorf("failed to insert brand: %w", err)
	}
	b.Slug = slug
	return b, nil
}

func (s *Store) FindCategoryByName(ctx context.Context, name string) (*model.Category, error) {
	var c model.Category
	var created string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, slug, created_at FROM categories WHERE name = ? COLLATE NOCASE ORDER BY id LIMIT 1",
		name).Scan(&c.ID, &c.Name, &c.Slug, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}
	c.CreatedAt = parseTime(created)
	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, c model.Category) (model.Category, error) {
	c.CreatedAt = time.Now().UTC()
	slug, err := insertWithSlug(ctx, c.Slug, func(ctx context.Context, slug string) error {
		res, err := s.db.ExecContext(ctx,
			"INSERT INTO categories(name, slug, created_at) VALUES(?,?,?)",
			c.Name, slug, formatTime(c.CreatedAt))
		if err != nil {
			return err
		}
		c.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return model.Category{}, fmt.Errorf("failed to insert category: %w", err)
	}
	c.Slug = slug
	return c, nil
}

func scanProduct(row scanner) (model.Product, error) {
	var p model.Product
	var modelNumber sql.NullString
	var specs, status, created, updated string
	if err := row.Scan(&p.ID, &p.ModelName, &p.Slug, &p.BrandID, &p.CategoryID,
		&modelNumber, &specs, &status, &created, &updated); err != nil {
		return model.Product{}, err
	}
	p.ModelNumber = stringPtr(modelNumber)
	p.Status = model.ProductStatus(status)
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	if specs != "" && specs != "{}" {
		if err := json.Unmarshal([]byte(specs), &p.Specifications); err != nil {
			return model.Product{}, fmt.Errorf("failed to decode specifications of product %d: %w", p.ID, err)
		}
	}
	return p, nil
}

func (s *Store) productByID(ctx context.Context, id int64) (model.Product, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(productColumns...)
	sb.From("products")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	return scanProduct(s.db.QueryRowContext(ctx, query, args...))
}

func (s *Store) FindProductByModelNumber(ctx context.Context, modelNumber string, brandID int64) (*model.Product, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(productColumns...)
	sb.From("products")
	sb.Where(
		sb.Equal("brand_id", brandID),
		sb.Equal("model_number", modelNumber),
	)
	sb.OrderBy("id ASC")
	sb.Limit(1)

	query, args := sb.Build()
	p, err := scanProduct(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product by model number: %w", err)
	}
	return &p, nil
}

func (s *Store) FindProductsByModelNameIn(ctx context.Context, names []string, brandID int64) ([]model.Product, error) {
	if len(names) == 0 {
		return nil, nil
	}

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(productColumns...)
	sb.From("products")
	sb.Where(
		sb.Equal("brand_id", brandID),
		sb.In("model_name", sqlbuilder.Flatten(names)...),
	)
	sb.OrderBy("id ASC")

	query, args := sb.Build()
	rows, err := s.db.QueryContext(ctx, query, args...)
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

func (s *Store) FindProductByFuzzyModelNumber(ctx context.Context, modelNumber string, brandID, categoryID int64, threshold float64) (*model.FuzzyMatch, error) {
	return s.fuzzy(ctx, modelNumber, brandID, categoryID, threshold)
}

func (s *Store) FindProductByFuzzyModelName(ctx context.Context, modelName string, brandID, categoryID int64, threshold float64) (*model.FuzzyMatch, error) {
	return s.fuzzy(ctx, modelName, brandID, categoryID, threshold)
}

// fuzzy scores every product name of the brand (and category, when set)
// with trigram similarity and loads the winner.
func (s *Store) fuzzy(ctx context.Context, q string, brandID, categoryID int64, threshold float64) (*model.FuzzyMatch, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("id", "model_name")
	sb.From("products")
	sb.Where(sb.Equal("brand_id", brandID))
	if categoryID != 0 {
		sb.Where(sb.Equal("category_id", categoryID))
	}

	query, args := sb.Build()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query fuzzy candidates: %w", err)
	}
	var candidates []matching.TrigramCandidate
	for rows.Next() {
		var c matching.TrigramCandidate
		if err := rows.Scan(&c.ID, &c.Text); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan fuzzy candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("failed to read fuzzy candidates: %w", err)
	}

	best, score, ok := matching.BestTrigramMatch(q, candidates, threshold)
	if !ok {
		return nil, nil
	}
	p, err := s.productByID(ctx, best.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fuzzy match %d: %w", best.ID, err)
	}
	return &model.FuzzyMatch{Product: p, Similarity: score}, nil
}

func (s *Store) CreateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	if p.Status == "" {
		p.Status = model.ProductStatusActive
	}
	specs, err := marshalJSON(p.Specifications, "{}")
	if err != nil {
		return model.Product{}, fmt.Errorf("failed to encode specifications: %w", err)
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	slug, err := insertWithSlug(ctx, p.Slug, func(ctx context.Context, slug string) error {
		sb := sqlbuilder.SQLite.NewInsertBuilder()
		sb.InsertInto("products")
		sb.Cols("model_name", "slug", "brand_id", "category_id", "model_number", "specifications", "status", "created_at", "updated_at")
		sb.Values(p.ModelName, slug, p.BrandID, p.CategoryID, p.ModelNumber, specs, string(p.Status), formatTime(now), formatTime(now))

		query, args := sb.Build()
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		p.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return model.Product{}, fmt.Errorf("failed to insert product: %w", err)
	}
	p.Slug = slug
	return p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, id int64, upd model.ProductUpdate) error {
	sb := sqlbuilder.SQLite.NewUpdateBuilder()
	sb.Update("products")
	assignments := []string{sb.Assign("updated_at", formatTime(time.Now()))}
	if upd.ModelNumber != nil {
		assignments = append(assignments, sb.Assign("model_number", *upd.ModelNumber))
	}
	if upd.Specifications != nil {
		specs, err := marshalJSON(upd.Specifications, "{}")
		if err != nil {
			return fmt.Errorf("failed to encode specifications: %w", err)
		}
		assignments = append(assignments, sb.Assign("specifications", specs))
	}
	sb.Set(assignments...)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update product %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("product %d not found", id)
	}
	return nil
}

// marshalJSON encodes v, using empty for nil maps and slices.
func marshalJSON(v any, empty string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(data) == "null" {
		return empty, nil
	}
	return string(data), nil
}
