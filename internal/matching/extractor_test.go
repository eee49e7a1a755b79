package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractVariantHints(t *testing.T) {
	t.Run("ram storage and colour in parentheses", func(t *testing.T) {
		h := ExtractVariantHints("Samsung Galaxy S24 Ultra 5G (Titanium Black, 12GB RAM, 256GB Storage)")
		require.NotNil(t, h.RAMGB)
		require.NotNil(t, h.StorageGB)
		assert.Equal(t, 12, *h.RAMGB)
		assert.Equal(t, 256, *h.StorageGB)
		assert.Equal(t, "titanium black", h.Color)
		assert.Equal(t, "5g", h.ConnectivityType)
		assert.Nil(t, h.DisplaySize)
	})

	t.Run("storage only with dash colour", func(t *testing.T) {
		h := ExtractVariantHints("Apple iPhone 15 (128 GB) - Black")
		assert.Nil(t, h.RAMGB)
		require.NotNil(t, h.StorageGB)
		assert.Equal(t, 128, *h.StorageGB)
		assert.Equal(t, "black", h.Color)
	})

	t.Run("ram followed directly by storage", func(t *testing.T) {
		h := ExtractVariantHints("Redmi Note 13 Pro (8GB RAM 256GB)")
		require.NotNil(t, h.RAMGB)
		require.NotNil(t, h.StorageGB)
		assert.Equal(t, 8, *h.RAMGB)
		assert.Equal(t, 256, *h.StorageGB)
		assert.Empty(t, h.Color)
	})

	t.Run("tablet attributes", func(t *testing.T) {
		h := ExtractVariantHints("Apple iPad Air 11 inch (M2, Wi-Fi, 128GB) - Space Grey")
		require.NotNil(t, h.DisplaySize)
		assert.InDelta(t, 11.0, *h.DisplaySize, 1e-9)
		assert.Equal(t, "wifi", h.ConnectivityType)
		assert.Equal(t, "space grey", h.Color)
		require.NotNil(t, h.StorageGB)
		assert.Equal(t, 128, *h.StorageGB)
	})

	t.Run("nothing to extract", func(t *testing.T) {
		h := ExtractVariantHints("OnePlus 12")
		assert.Nil(t, h.RAMGB)
		assert.Nil(t, h.StorageGB)
		assert.Empty(t, h.Color)
	})
}

func TestNormalizeConnectivity(t *testing.T) {
	assert.Equal(t, "wifi", NormalizeConnectivity("Wi-Fi Only"))
	assert.Equal(t, "wifi+5g", NormalizeConnectivity("WiFi + 5G"))
	assert.Equal(t, "wifi+4g", NormalizeConnectivity("Wi-Fi + Cellular"))
	assert.Equal(t, "4g", NormalizeConnectivity("LTE"))
	assert.Equal(t, "", NormalizeConnectivity(" "))
}
