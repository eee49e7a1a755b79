package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/huandu/go-sqlbuilder"

	"phone-catalog-ingest/internal/model"
)

func nullableEqual[T any](sb *sqlbuilder.SelectBuilder, column string, v *T) string {
	if v == nil {
		return sb.IsNull(column)
	}
	return sb.Equal(column, *v)
}

func (s *Store) FindVariantByExactAttributes(ctx context.Context, q model.VariantQuery) (*model.Variant, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
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
	var (
		v                model.Variant
		ram, storage     sql.NullInt64
		color, conn      sql.NullString
		display          sql.NullFloat64
		images           string
		created, updated string
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&v.ID, &v.ProductID, &ram, &storage, &color, &display, &conn, &images, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query variant: %w", err)
	}

	v.Attributes = model.Attributes{
		RAMGB:            intPtr(ram),
		StorageGB:        intPtr(storage),
		Color:            stringPtr(color),
		DisplaySize:      floatPtr(display),
		ConnectivityType: stringPtr(conn),
	}
	if err := json.Unmarshal([]byte(images), &v.Images); err != nil {
		return nil, fmt.Errorf("failed to decode images of variant %d: %w", v.ID, err)
	}
	v.CreatedAt = parseTime(created)
	v.UpdatedAt = parseTime(updated)
	return &v, nil
}

func (s *Store) CreateVariant(ctx context.Context, v model.Variant) (model.Variant, error) {
	if v.Images == nil {
		v.Images = []string{}
	}
	images, err := marshalJSON(v.Images, "[]")
	if err != nil {
		return model.Variant{}, fmt.Errorf("failed to encode images: %w", err)
	}
	now := time.Now().UTC()
	v.CreatedAt, v.UpdatedAt = now, now

	sb := sqlbuilder.SQLite.NewInsertBuilder()
	sb.InsertInto("variants")
	sb.Cols("product_id", "ram_gb", "storage_gb", "color", "display_size", "connectivity_type", "images", "created_at", "updated_at")
	sb.Values(v.ProductID, v.Attributes.RAMGB, v.Attributes.StorageGB, v.Attributes.Color,
		v.Attributes.DisplaySize, v.Attributes.ConnectivityType, images, formatTime(now), formatTime(now))

	query, args := sb.Build()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return model.Variant{}, fmt.Errorf("failed to insert variant: %w", err)
	}
	if v.ID, err = res.LastInsertId(); err != nil {
		return model.Variant{}, fmt.Errorf("failed to read variant id: %w", err)
	}
	return v, nil
}

func (s *Store) UpdateVariantImages(ctx context.Context, id int64, images []string) error {
	encoded, err := marshalJSON(images, "[]")
	if err != nil {
		return fmt.Errorf("failed to encode images: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE variants SET images = ?, updated_at = ? WHERE id = ?",
		encoded, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to update images of variant %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("variant %d not found", id)
	}
	return nil
}

func (s *Store) FindListingByURL(ctx context.Context, url string) (*model.Listing, error) {
	var (
		l                         model.Listing
		price, original, rating   sql.NullFloat64
		status, history, lastSeen string
		scrapedAt                 sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, variant_id, store_name, url, price, original_price, rating,
stock_status, price_history, scraped_at, last_seen_at FROM listings WHERE url = ?`, url).Scan(
		&l.ID, &l.VariantID, &l.StoreName, &l.URL, &price, &original, &rating,
		&status, &history, &scrapedAt, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query listing: %w", err)
	}

	l.Price = floatPtr(price)
	l.OriginalPrice = floatPtr(original)
	l.Rating = floatPtr(rating)
	l.StockStatus = model.StockStatus(status)
	if err := json.Unmarshal([]byte(history), &l.PriceHistory); err != nil {
		return nil, fmt.Errorf("failed to decode price history of listing %d: %w", l.ID, err)
	}
	if scrapedAt.Valid {
		l.ScrapedAt = parseTime(scrapedAt.String)
	}
	l.LastSeenAt = parseTime(lastSeen)
	return &l, nil
}

func (s *Store) CreateListing(ctx context.Context, l model.Listing) (model.Listing, error) {
	history, err := marshalJSON(l.PriceHistory, "[]")
	if err != nil {
		return model.Listing{}, fmt.Errorf("failed to encode price history: %w", err)
	}

	sb := sqlbuilder.SQLite.NewInsertBuilder()
	sb.InsertInto("listings")
	sb.Cols("variant_id", "store_name", "url", "price", "original_price", "rating",
		"stock_status", "price_history", "scraped_at", "last_seen_at")
	sb.Values(l.VariantID, l.StoreName, l.URL, l.Price, l.OriginalPrice, l.Rating,
		string(l.StockStatus), history, nullTime(l.ScrapedAt), formatTime(l.LastSeenAt))

	query, args := sb.Build()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return model.Listing{}, fmt.Errorf("failed to insert listing: %w", err)
	}
	if l.ID, err = res.LastInsertId(); err != nil {
		return model.Listing{}, fmt.Errorf("failed to read listing id: %w", err)
	}
	return l, nil
}

func (s *Store) UpdateListing(ctx context.Context, l model.Listing) error {
	history, err := marshalJSON(l.PriceHistory, "[]")
	if err != nil {
		return fmt.Errorf("failed to encode price history: %w", err)
	}

	sb := sqlbuilder.SQLite.NewUpdateBuilder()
	sb.Update("listings")
	sb.Set(
		sb.Assign("variant_id", l.VariantID),
		sb.Assign("price", l.Price),
		sb.Assign("original_price", l.OriginalPrice),
		sb.Assign("rating", l.Rating),
		sb.Assign("stock_status", string(l.StockStatus)),
		sb.Assign("price_history", history),
		sb.Assign("scraped_at", nullTime(l.ScrapedAt)),
		sb.Assign("last_seen_at", formatTime(l.LastSeenAt)),
	)
	sb.Where(sb.Equal("id", l.ID))

	query, args := sb.Build()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update listing %d: %w", l.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("listing %d not found", l.ID)
	}
	return nil
}
