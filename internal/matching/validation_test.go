package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator_Brand(t *testing.T) {
	v := NewValidator(0)
	assert.Equal(t, DefaultValidationThreshold, v.Threshold())

	got := v.ValidateBrand("Mi", "Xiaomi")
	assert.Equal(t, 100, got.Score)
	assert.False(t, got.NeedsReview)

	got = v.ValidateBrand("Samsung", "Realme")
	assert.True(t, got.NeedsReview)
}

func TestValidator_Model(t *testing.T) {
	v := NewValidator(90)

	tests := []struct {
		name   string
		spec   string
		title  string
		brand  string
		review bool
	}{
		{"brand prefix and network suffix", "Samsung Galaxy S24 5G", "Galaxy S24", "Samsung", false},
		{"noise word", "Redmi Note 13 Smartphone", "Redmi Note 13", "Xiaomi", false},
		{"different model", "Galaxy Z Fold 5", "Galaxy S24", "Samsung", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.ValidateModel(tt.spec, tt.title, tt.brand)
			assert.Equal(t, tt.review, got.NeedsReview, "score %d", got.Score)
		})
	}
}
