package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 100, Similarity("iPhone 15", "iPhone 15"))
	assert.Equal(t, 100, Similarity("", ""))
	assert.Equal(t, 0, Similarity("iPhone 15", ""))
	assert.Equal(t, 0, Similarity("", "iPhone 15"))
	assert.Equal(t, 100, Similarity(" IPHONE 15", "iphone 15 "))
	assert.Equal(t, 57, Similarity("kitten", "sitting"))
}

func TestModelSimilarity(t *testing.T) {
	assert.Equal(t, 100, ModelSimilarity("Samsung Galaxy S24 5G", "Galaxy S24", "Samsung"))
	assert.Equal(t, 100, ModelSimilarity("OnePlus 12", "oneplus 12 5g", "One Plus"))
	assert.Equal(t, 100, ModelSimilarity("Google Pixel 8", "Pixel 8", "Google"))
	assert.Less(t, ModelSimilarity("Galaxy S24", "Galaxy A15", "Samsung"), 90)
}

func TestTrigramSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, TrigramSimilarity("word", "WORD"), 1e-9)
	assert.InDelta(t, 1.0/3.0, TrigramSimilarity("abc", "abd"), 1e-9)
	assert.Zero(t, TrigramSimilarity("", "abc"))
	assert.Greater(t, TrigramSimilarity("Redmi Note 13 Pro", "redmi note 13 pro 5g"), 0.4)
	assert.Less(t, TrigramSimilarity("SM-S928B", "galaxy s24 ultra"), 0.4)
}

func TestBestTrigramMatch(t *testing.T) {
	candidates := []TrigramCandidate{
		{ID: 7, Text: "redmi note 13 pro"},
		{ID: 3, Text: "redmi note 13 pro"},
		{ID: 1, Text: "galaxy s24"},
	}

	best, score, ok := BestTrigramMatch("Redmi Note 13 Pro", candidates, 0.4)
	assert.True(t, ok)
	assert.Equal(t, int64(3), best.ID)
	assert.InDelta(t, 1.0, score, 1e-9)

	_, _, ok = BestTrigramMatch("iphone", candidates, 0.4)
	assert.False(t, ok)

	// Names across the 4G line are not candidates.
	network := []TrigramCandidate{
		{ID: 1, Text: "galaxy a15 lite 4g"},
		{ID: 2, Text: "galaxy a15 plus"},
	}
	best, _, ok = BestTrigramMatch("galaxy a15 lite", network, 0.4)
	assert.True(t, ok)
	assert.Equal(t, int64(2), best.ID)
	best, _, ok = BestTrigramMatch("galaxy a15 plus 4g", network, 0.4)
	assert.True(t, ok)
	assert.Equal(t, int64(1), best.ID)

	// The floor is exclusive.
	_, _, ok = BestTrigramMatch("abc", []TrigramCandidate{{ID: 1, Text: "abd"}}, 1.0/3.0)
	assert.False(t, ok)
}

func TestValidator(t *testing.T) {
	v := NewValidator(0)
	assert.Equal(t, DefaultValidationThreshold, v.Threshold())

	res := v.ValidateBrand("one plus", "OnePlus")
	assert.Equal(t, 100, res.Score)
	assert.False(t, res.NeedsReview)

	assert.True(t, v.ValidateBrand("Samsung", "Apple").NeedsReview)

	res = v.ValidateModel("Galaxy S24 Ultra", "Samsung Galaxy S24 Ultra 5G (Titanium Black)", "Samsung")
	assert.Equal(t, 100, res.Score)
	assert.False(t, res.NeedsReview)

	assert.True(t, v.ValidateModel("Galaxy S24", "Galaxy S23 FE", "Samsung").NeedsReview)
}
