package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phone-catalog-ingest/internal/model"
)

func TestCache_FirstWriterWins(t *testing.T) {
	c := NewCache()

	c.RememberProduct(1, ProductRef{ID: 10, ModelName: "oneplus 12"})
	c.RememberProduct(1, ProductRef{ID: 11, ModelName: "oneplus 12 5g"})

	ref, ok := c.LookupModelName(1, "OnePlus 12 5G")
	require.True(t, ok)
	assert.Equal(t, int64(10), ref.ID)

	c.RememberVariant("k", VariantRef{ID: 5})
	c.RememberVariant("k", VariantRef{ID: 6})
	v, ok := c.LookupVariant("k")
	require.True(t, ok)
	assert.Equal(t, int64(5), v.ID)
}

func TestCache_ScopedByBrand(t *testing.T) {
	c := NewCache()
	c.RememberProduct(1, ProductRef{ID: 10, ModelName: "note 13", ModelNumber: "X1"})

	_, ok := c.LookupModelName(2, "note 13")
	assert.False(t, ok)
	_, ok = c.LookupModelNumber(2, "X1")
	assert.False(t, ok)

	ref, ok := c.LookupModelNumber(1, " x1 ")
	require.True(t, ok)
	assert.Equal(t, int64(10), ref.ID)
}

func TestCache_FourGKeptApart(t *testing.T) {
	c := NewCache()
	c.RememberProduct(1, ProductRef{ID: 10, ModelName: "galaxy a15"})

	_, ok := c.LookupModelName(1, "galaxy a15 4g")
	assert.False(t, ok)
	_, ok = c.LookupModelName(1, "galaxy a15 5g")
	assert.True(t, ok)
}

func TestCache_BackfillKeepsID(t *testing.T) {
	c := NewCache()
	c.RememberProduct(1, ProductRef{ID: 10, ModelName: "pixel 8"})
	c.RememberProduct(1, ProductRef{ID: 10, ModelName: "pixel 8", ModelNumber: "GKWS6"})

	ref, ok := c.LookupModelName(1, "pixel 8")
	require.True(t, ok)
	assert.Equal(t, "GKWS6", ref.ModelNumber)

	byNumber, ok := c.LookupModelNumber(1, "gkws6")
	require.True(t, ok)
	assert.Equal(t, int64(10), byNumber.ID)
}

func TestCache_RememberAlias(t *testing.T) {
	c := NewCache()
	c.RememberProduct(1, ProductRef{ID: 10, ModelName: "galaxy s24 ultra"})
	c.RememberAlias(1, ProductRef{ID: 10, ModelName: "galaxy s24 ultra"}, "galaxy s24 ultra titanium edition", "SM-S928B", model.MatchFuzzyModelName)
	c.RememberAlias(1, ProductRef{ID: 11, ModelName: "galaxy s24"}, "galaxy s24 ultra titanium edition", "", model.MatchFuzzyModelName)

	hit, ok := c.LookupModelName(1, "Galaxy S24 Ultra Titanium Edition 5G")
	require.True(t, ok)
	assert.Equal(t, int64(10), hit.ID)
	assert.Equal(t, model.MatchFuzzyModelName, hit.Match)

	own, ok := c.LookupModelName(1, "galaxy s24 ultra")
	require.True(t, ok)
	assert.Empty(t, own.Match)

	// Backfilling the number makes the learned key the product's own.
	c.RememberProduct(1, ProductRef{ID: 10, ModelName: "galaxy s24 ultra", ModelNumber: "SM-S928B"})
	byNumber, ok := c.LookupModelNumber(1, "sm-s928b")
	require.True(t, ok)
	assert.Equal(t, int64(10), byNumber.ID)
	assert.Empty(t, byNumber.Match)

	_, ok = c.LookupModelName(1, "")
	assert.False(t, ok)
}

func TestCache_Reset(t *testing.T) {
	c := NewCache()
	c.RememberProduct(1, ProductRef{ID: 10, ModelName: "pixel 8"})
	c.RememberBrand(model.Brand{ID: 1, Name: "Google"})
	c.RememberCategory(model.Category{ID: 2, Name: "Smartphones"})
	c.RememberVariant("k", VariantRef{ID: 3})
	require.NotZero(t, c.Len())

	_, ok := c.LookupBrand("google")
	assert.True(t, ok)

	c.Reset()
	assert.Zero(t, c.Len())
	_, ok = c.LookupModelName(1, "pixel 8")
	assert.False(t, ok)
}

func TestVariantKey(t *testing.T) {
	ram, storage := 8, 256
	color := "black"
	attrs := model.Attributes{RAMGB: &ram, StorageGB: &storage, Color: &color}

	assert.Equal(t, "7|8|256|black|-|-", VariantKey(7, attrs, false))
	assert.Equal(t, "7|*|256|black|-|-", VariantKey(7, attrs, true))
	assert.Equal(t, "7|-|-|-|-|-", VariantKey(7, model.Attributes{}, false))
}

func TestPickNameMatch(t *testing.T) {
	products := []model.Product{
		{ID: 9, ModelName: "galaxy s23"},
		{ID: 2, ModelName: "galaxy s23 5g"},
		{ID: 4, ModelName: "galaxy s23"},
	}

	p, ok := pickNameMatch(products, "galaxy s23")
	require.True(t, ok)
	assert.Equal(t, int64(4), p.ID)

	p, ok = pickNameMatch(products, "galaxy s23 ultra")
	require.True(t, ok)
	assert.Equal(t, int64(2), p.ID)

	_, ok = pickNameMatch(nil, "x")
	assert.False(t, ok)
}
