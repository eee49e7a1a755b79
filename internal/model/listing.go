package model

import (
	"strings"
	"time"
)

// DefaultPriceHistoryLimit caps Listing.PriceHistory.
const DefaultPriceHistoryLimit = 30

type StockStatus string

const (
	StockInStock    StockStatus = "in_stock"
	StockOutOfStock StockStatus = "out_of_stock"
	StockUnknown    StockStatus = "unknown"
)

// ParseStockStatus maps the free-text availability strings of the stores.
func ParseStockStatus(availability string) StockStatus {
	a := strings.ToLower(strings.TrimSpace(availability))
	switch {
	case a == "":
		return StockUnknown
	case strings.Contains(a, "out of stock"), strings.Contains(a, "unavailable"),
		strings.Contains(a, "sold out"), strings.Contains(a, "not available"),
		strings.Contains(a, "coming soon"), a == "false", a == "no":
		return StockOutOfStock
	case strings.Contains(a, "in stock"), strings.Contains(a, "available"),
		strings.Contains(a, "left"), a == "true", a == "yes":
		return StockInStock
	default:
		return StockUnknown
	}
}

type PricePoint struct {
	Price float64   `json:"price"`
	Date  time.Time `json:"date"`
}

// Listing is one store page for a variant, keyed by URL.
type Listing struct {
	ID            int64        `json:"id"`
	VariantID     int64        `json:"variant_id"`
	StoreName     string       `json:"store_name"`
	URL           string       `json:"url"`
	Price         *float64     `json:"price,omitempty"`
	OriginalPrice *float64     `json:"original_price,omitempty"`
	Rating        *float64     `json:"rating,omitempty"`
	StockStatus   StockStatus  `json:"stock_status"`
	PriceHistory  []PricePoint `json:"price_history"`
	ScrapedAt     time.Time    `json:"scraped_at"`
	LastSeenAt    time.Time    `json:"last_seen_at"`
}

// Sighting is one observation of a listing during a run.
type Sighting struct {
	VariantID     int64
	Price         *float64
	OriginalPrice *float64
	Rating        *float64
	StockStatus   StockStatus
	ScrapedAt     time.Time
	SeenAt        time.Time
}

// ApplySighting folds a new observation into the listing. On a price change
// the previous price is pushed onto PriceHistory, which keeps at most limit
// entries and evicts the oldest first. LastSeenAt is always refreshed.
func (l *Listing) ApplySighting(s Sighting, limit int) bool {
	if limit <= 0 {
		limit = DefaultPriceHistoryLimit
	}

	changed := false
	if s.Price != nil && (l.Price == nil || *l.Price != *s.Price) {
		if l.Price != nil {
			date := l.ScrapedAt
			if date.IsZero() {
				date = l.LastSeenAt
			}
			l.PriceHistory = append(l.PriceHistory, PricePoint{Price: *l.Price, Date: date})
			if over := len(l.PriceHistory) - limit; over > 0 {
				l.PriceHistory = append([]PricePoint(nil), l.PriceHistory[over:]...)
			}
		}
		price := *s.Price
		l.Price = &price
		changed = true
	}

	if s.VariantID != 0 {
		l.VariantID = s.VariantID
	}
	if s.OriginalPrice != nil {
		l.OriginalPrice = s.OriginalPrice
	}
	if s.Rating != nil {
		l.Rating = s.Rating
	}
	if s.StockStatus != "" {
		l.StockStatus = s.StockStatus
	}
	if !s.ScrapedAt.IsZero() {
		l.ScrapedAt = s.ScrapedAt
	}
	l.LastSeenAt = s.SeenAt
	return changed
}
