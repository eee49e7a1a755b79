package dedup_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phone-catalog-ingest/internal/dedup"
	"phone-catalog-ingest/internal/model"
)

func phone(brand, name string, ram, storage float64, color string, images ...string) model.NormalizedProduct {
	rec := record(brand, name, "")
	if ram > 0 {
		rec.VariantAttributes.RAM = numPtr(ram)
	}
	if storage > 0 {
		rec.VariantAttributes.Storage = numPtr(storage)
	}
	if color != "" {
		rec.VariantAttributes.Color = strPtr(color)
	}
	rec.Images = images
	return rec
}

func (h *harness) resolveVariant(rec model.NormalizedProduct) model.VariantResolution {
	h.t.Helper()
	res := h.resolve(rec)
	v, err := h.engine.ResolveVariant(h.ctx, rec, res.ProductID, rec.Brand)
	require.NoError(h.t, err)
	return v
}

func TestResolveVariant_ExactTuple(t *testing.T) {
	h := newHarness(t)

	a := h.resolveVariant(phone("Samsung", "Galaxy S24", 8, 256, "Onyx Black"))
	assert.True(t, a.Created)

	same := h.resolveVariant(phone("Samsung", "Galaxy S24", 8, 256, " onyx  black "))
	assert.Equal(t, a.VariantID, same.VariantID)
	assert.True(t, same.CacheHit)

	otherStorage := h.resolveVariant(phone("Samsung", "Galaxy S24", 8, 512, "Onyx Black"))
	assert.NotEqual(t, a.VariantID, otherStorage.VariantID)

	// RAM counts for non-Apple brands, nil included.
	noRAM := h.resolveVariant(phone("Samsung", "Galaxy S24", 0, 256, "Onyx Black"))
	assert.NotEqual(t, a.VariantID, noRAM.VariantID)
	assert.True(t, noRAM.Created)
}

func TestResolveVariant_AppleRAMExclusion(t *testing.T) {
	t.Run("missing RAM first", func(t *testing.T) {
		h := newHarness(t)
		first := h.resolveVariant(phone("Apple", "iPhone 15", 0, 128, "Black"))
		second := h.resolveVariant(phone("Apple", "iPhone 15", 6, 128, "Black"))
		third := h.resolveVariant(phone("Apple", "iPhone 15", 6, 128, "Black"))

		assert.Equal(t, first.VariantID, second.VariantID)
		assert.Equal(t, first.VariantID, third.VariantID)
		assert.True(t, third.CacheHit)
		assert.Len(t, h.store.Variants(), 1)
	})

	t.Run("concrete RAM first", func(t *testing.T) {
		h := newHarness(t)
		first := h.resolveVariant(phone("Apple", "iPhone 15", 6, 128, "Black"))
		second := h.resolveVariant(phone("Apple", "iPhone 15", 0, 128, "Black"))

		assert.Equal(t, first.VariantID, second.VariantID)
		assert.Len(t, h.store.Variants(), 1)
	})

	t.Run("storage still separates", func(t *testing.T) {
		h := newHarness(t)
		first := h.resolveVariant(phone("Apple", "iPhone 15", 0, 128, "Black"))
		second := h.resolveVariant(phone("Apple", "iPhone 15", 0, 256, "Black"))
		assert.NotEqual(t, first.VariantID, second.VariantID)
	})
}

func TestResolveVariant_ImagesUnion(t *testing.T) {
	h := newHarness(t)

	first := h.resolveVariant(phone("Google", "Pixel 8", 8, 128, "Obsidian", "https://img/a.jpg", "https://img/b.jpg"))
	second := h.resolveVariant(phone("Google", "Pixel 8", 8, 128, "Obsidian", "https://img/b.jpg", "https://img/c.jpg"))
	require.Equal(t, first.VariantID, second.VariantID)

	v, ok := h.store.Variant(first.VariantID)
	require.True(t, ok)
	assert.Equal(t, []string{"https://img/a.jpg", "https://img/b.jpg", "https://img/c.jpg"}, v.Images)
	assert.Equal(t, 1, h.store.Calls("UpdateVariantImages"))

	// Nothing new: no write.
	h.resolveVariant(phone("Google", "Pixel 8", 8, 128, "Obsidian", "https://img/a.jpg"))
	assert.Equal(t, 1, h.store.Calls("UpdateVariantImages"))
}

func TestResolveVariant_TabletAttributes(t *testing.T) {
	h := newHarness(t)

	tablet := func(size float64, connectivity string) model.NormalizedProduct {
		rec := phone("Apple", "iPad Air", 0, 128, "Space Grey")
		rec.CategoryHint = strPtr("Tablets")
		rec.VariantAttributes.DisplaySize = numPtr(size)
		rec.VariantAttributes.ConnectivityType = strPtr(connectivity)
		return rec
	}

	wifi := h.resolveVariant(tablet(11, "Wi-Fi"))
	cellular := h.resolveVariant(tablet(11, "Wi-Fi + Cellular"))
	large := h.resolveVariant(tablet(13, "Wi-Fi"))
	again := h.resolveVariant(tablet(11, "WiFi"))

	assert.NotEqual(t, wifi.VariantID, cellular.VariantID)
	assert.NotEqual(t, wifi.VariantID, large.VariantID)
	assert.Equal(t, wifi.VariantID, again.VariantID)
}

func TestVariantAttributes_PhoneIgnoresDisplay(t *testing.T) {
	rec := phone("Samsung", "Galaxy S24", 8, 256, "Black")
	rec.VariantAttributes.DisplaySize = numPtr(6.2)
	rec.VariantAttributes.ConnectivityType = strPtr("5G")

	attrs := dedup.VariantAttributes(rec)
	assert.Nil(t, attrs.DisplaySize)
	assert.Nil(t, attrs.ConnectivityType)
	require.NotNil(t, attrs.RAMGB)
	assert.Equal(t, 8, *attrs.RAMGB)
	require.NotNil(t, attrs.Color)
	assert.Equal(t, "black", *attrs.Color)
}

func TestUnionImages(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, dedup.UnionImages([]string{"a", "b"}, []string{"b", " ", "c", "a"}))
	assert.Empty(t, dedup.UnionImages(nil, nil))
}
