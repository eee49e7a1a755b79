package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5/pgxpool"

	"phone-catalog-ingest/internal/model"
)

type ListingRepo struct {
	pool *pgxpool.Pool
}

func NewListingRepo(pool *pgxpool.Pool) *ListingRepo {
	return &ListingRepo{pool: pool}
}

func (r *ListingRepo) FindListingByURL(ctx context.Context, url string) (*model.Listing, error) {
	var l model.Listing
	var history []byte
	var scrapedAt *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT id, variant_id, store_name, url, price, original_price, rating,
			stock_status, price_history, scraped_at, last_seen_at
		FROM listings
		WHERE url = $1
	`, url).Scan(
		&l.ID, &l.VariantID, &l.StoreName, &l.URL, &l.Price, &l.OriginalPrice, &l.Rating,
		&l.StockStatus, &history, &scrapedAt, &l.LastSeenAt,
	)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query listing: %w", err)
	}

	if len(history) > 0 {
		if err := json.Unmarshal(history, &l.PriceHistory); err != nil {
			return nil, fmt.Errorf("failed to decode price history of listing %d: %w", l.ID, err)
		}
	}
	if scrapedAt != nil {
		l.ScrapedAt = *scrapedAt
	}
	return &l, nil
}

func (r *ListingRepo) CreateListing(ctx context.Context, l model.Listing) (model.Listing, error) {
	history, err := marshalHistory(l.PriceHistory)
	if err != nil {
		return model.Listing{}, err
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("listings")
	sb.Cols("variant_id", "store_name", "url", "price", "original_price", "rating",
		"stock_status", "price_history", "scraped_at", "last_seen_at")
	sb.Values(l.VariantID, l.StoreName, l.URL, l.Price, l.OriginalPrice, l.Rating,
		string(l.StockStatus), history, nullTime(l.ScrapedAt), l.LastSeenAt)
	sb.SQL("RETURNING id")

	query, args := sb.Build()
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&l.ID); err != nil {
		return model.Listing{}, fmt.Errorf("failed to insert listing: %w", err)
	}
	return l, nil
}

func (r *ListingRepo) UpdateListing(ctx context.Context, l model.Listing) error {
	history, err := marshalHistory(l.PriceHistory)
	if err != nil {
		return err
	}

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("listings")
	sb.Set(
		sb.Assign("variant_id", l.VariantID),
		sb.Assign("price", l.Price),
		sb.Assign("original_price", l.OriginalPrice),
		sb.Assign("rating", l.Rating),
		sb.Assign("stock_status", string(l.StockStatus)),
		sb.Assign("price_history", history),
		sb.Assign("scraped_at", nullTime(l.ScrapedAt)),
		sb.Assign("last_seen_at", l.LastSeenAt),
	)
	sb.Where(sb.Equal("id", l.ID))

	query, args := sb.Build()
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update listing %d: %w", l.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("listing %d not found", l.ID)
	}
	return nil
}

func marshalHistory(history []model.PricePoint) ([]byte, error) {
	if history == nil {
		history = []model.PricePoint{}
	}
	data, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("failed to encode price history: %w", err)
	}
	return data, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
