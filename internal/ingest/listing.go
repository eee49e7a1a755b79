package ingest

import (
	"context"
	"strings"
	"time"

	"phone-catalog-ingest/internal/dedup"
	"phone-catalog-ingest/internal/model"
	"phone-catalog-ingest/internal/stats"
)

var scrapedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseScrapedAt accepts the timestamp shapes the scrapers emit. Unknown
// shapes yield the zero time.
func parseScrapedAt(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range scrapedAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (s *Service) sighting(rec model.NormalizedProduct, variantID int64) model.Sighting {
	lf := rec.ListingFields
	return model.Sighting{
		VariantID:     variantID,
		Price:         positive(lf.Price),
		OriginalPrice: positive(lf.OriginalPrice),
		Rating:        lf.Rating,
		StockStatus:   model.ParseStockStatus(lf.Availability),
		ScrapedAt:     parseScrapedAt(lf.ScrapedAt),
		SeenAt:        s.now(),
	}
}

// upsertListing creates the listing of the record's URL or folds the new
// sighting into it. Every sighting refreshes last_seen_at.
func (s *Service) upsertListing(ctx context.Context, agg *stats.Aggregator, rec model.NormalizedProduct, variantID int64) (int64, error) {
	id := rec.Identifier()
	sighting := s.sighting(rec, variantID)

	existing, err := s.store.FindListingByURL(ctx, rec.ListingFields.URL)
	if err != nil {
		return 0, &dedup.StoreError{Op: "find_listing", Identifier: id, Err: err}
	}

	if existing == nil {
		listing := model.Listing{
			StoreName:    strings.ToLower(strings.TrimSpace(rec.ListingFields.StoreName)),
			URL:          rec.ListingFields.URL,
			PriceHistory: []model.PricePoint{},
		}
		listing.ApplySighting(sighting, s.config.PriceHistoryLimit)
		created, err := s.store.CreateListing(ctx, listing)
		if err != nil {
			return 0, &dedup.StoreError{Op: "create_listing", Identifier: id, Err: err}
		}
		agg.RecordListing(stats.ListingCreated)
		return created.ID, nil
	}

	before := *existing
	priceChanged := existing.ApplySighting(sighting, s.config.PriceHistoryLimit)
	if err := s.store.UpdateListing(ctx, *existing); err != nil {
		return 0, &dedup.StoreError{Op: "update_listing", Identifier: id, Err: err}
	}

	if priceChanged || before.StockStatus != existing.StockStatus || before.VariantID != existing.VariantID {
		agg.RecordListing(stats.ListingUpdated)
		s.logger.Debug("Listing updated", "record", id, "listing_id", existing.ID, "price_changed", priceChanged)
	} else {
		agg.RecordListing(stats.ListingUnchanged)
	}
	return existing.ID, nil
}

func positive(v *float64) *float64 {
	if v == nil || *v <= 0 {
		return nil
	}
	return v
}
