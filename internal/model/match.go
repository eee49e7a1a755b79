package model

// MatchType records which phase resolved a product.
type MatchType string

const (
	MatchModelNumber     MatchType = "model_number"
	MatchExactName       MatchType = "exact_name"
	MatchVariant         MatchType = "variant_match"
	MatchCrossFieldFuzzy MatchType = "cross_field_fuzzy"
	MatchFuzzyModelName  MatchType = "fuzzy_model_name"
	MatchCreated         MatchType = "created"
)

// MatchTypes lists every match type in phase order.
var MatchTypes = []MatchType{
	MatchModelNumber,
	MatchExactName,
	MatchVariant,
	MatchCrossFieldFuzzy,
	MatchFuzzyModelName,
	MatchCreated,
}

// ProductResolution is the Matcher Engine outcome for one record.
type ProductResolution struct {
	ProductID  int64     `json:"product_id"`
	MatchType  MatchType `json:"match_type"`
	Similarity float64   `json:"similarity,omitempty"`
	CacheHit   bool      `json:"cache_hit"`
}

// Created reports whether the resolution made a new product.
func (r ProductResolution) Created() bool {
	return r.MatchType == MatchCreated
}

type VariantResolution struct {
	VariantID int64 `json:"variant_id"`
	Created   bool  `json:"created"`
	CacheHit  bool  `json:"cache_hit"`
}

// RecordOutcome is what the core hands downstream per record.
type RecordOutcome struct {
	ProductID int64     `json:"product_id"`
	VariantID int64     `json:"variant_id"`
	ListingID int64     `json:"listing_id,omitempty"`
	MatchType MatchType `json:"match_type"`
}
