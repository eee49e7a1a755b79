package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListing_ApplySighting(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	price := func(p float64) *float64 { return &p }

	l := Listing{URL: "https://flipkart.com/p/1"}
	assert.True(t, l.ApplySighting(Sighting{Price: price(100), ScrapedAt: start, SeenAt: start}, 30))
	assert.Empty(t, l.PriceHistory, "first price has nothing to push")

	t.Run("same price only refreshes last seen", func(t *testing.T) {
		seen := start.Add(time.Hour)
		assert.False(t, l.ApplySighting(Sighting{Price: price(100), SeenAt: seen}, 30))
		assert.Empty(t, l.PriceHistory)
		assert.Equal(t, seen, l.LastSeenAt)
	})

	t.Run("price change pushes previous price", func(t *testing.T) {
		at := start.Add(24 * time.Hour)
		assert.True(t, l.ApplySighting(Sighting{Price: price(90), ScrapedAt: at, SeenAt: at}, 30))
		require.Len(t, l.PriceHistory, 1)
		assert.Equal(t, 100.0, l.PriceHistory[0].Price)
		assert.Equal(t, start, l.PriceHistory[0].Date)
		assert.Equal(t, 90.0, *l.Price)
	})

	t.Run("missing price keeps current", func(t *testing.T) {
		assert.False(t, l.ApplySighting(Sighting{StockStatus: StockOutOfStock, SeenAt: start}, 30))
		assert.Equal(t, 90.0, *l.Price)
		assert.Equal(t, StockOutOfStock, l.StockStatus)
	})
}

func TestListing_PriceHistoryCap(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := Listing{}

	// 32 sightings with distinct prices are 31 price changes.
	for i := 0; i < 32; i++ {
		p := float64(1000 + i)
		at := start.Add(time.Duration(i) * time.Hour)
		l.ApplySighting(Sighting{Price: &p, ScrapedAt: at, SeenAt: at}, DefaultPriceHistoryLimit)
	}

	require.Len(t, l.PriceHistory, 30)
	assert.Equal(t, 1001.0, l.PriceHistory[0].Price, "oldest entry evicted first")
	assert.Equal(t, 1030.0, l.PriceHistory[29].Price)
	assert.Equal(t, 1031.0, *l.Price)
}

func TestParseStockStatus(t *testing.T) {
	assert.Equal(t, StockInStock, ParseStockStatus("In Stock"))
	assert.Equal(t, StockInStock, ParseStockStatus("Only 2 left"))
	assert.Equal(t, StockOutOfStock, ParseStockStatus("Currently unavailable."))
	assert.Equal(t, StockOutOfStock, ParseStockStatus("Sold Out"))
	assert.Equal(t, StockUnknown, ParseStockStatus(""))
	assert.Equal(t, StockUnknown, ParseStockStatus("ships soon"))
}

func TestNormalizedProduct_Identifier(t *testing.T) {
	p := NormalizedProduct{Brand: "Apple", ModelName: "iPhone 15"}
	assert.Equal(t, "Apple iPhone 15", p.Identifier())

	p.ListingFields = ListingFields{StoreName: "croma", URL: "https://croma.com/x"}
	assert.Equal(t, "croma:https://croma.com/x", p.Identifier())
}

func TestGB(t *testing.T) {
	v := 7.6
	require.NotNil(t, GB(&v))
	assert.Equal(t, 8, *GB(&v))
	zero := 0.0
	assert.Nil(t, GB(&zero))
	assert.Nil(t, GB(nil))
}
