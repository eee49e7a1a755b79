package matching

// DefaultValidationThreshold is the 0..100 score below which a brand or
// model disagreement is flagged for manual review.
const DefaultValidationThreshold = 90

// Validation is the outcome of comparing two spellings of the same field.
type Validation struct {
	Score       int
	NeedsReview bool
}

// Validator compares values scraped from a specification table with the
// ones parsed from a listing title.
type Validator struct {
	threshold int
}

// NewValidator creates a validator. Non-positive thresholds use the default.
func NewValidator(threshold int) *Validator {
	if threshold <= 0 {
		threshold = DefaultValidationThreshold
	}
	return &Validator{
		threshold: threshold,
	}
}

// Threshold returns the accept threshold in use.
func (v *Validator) Threshold() int {
	return v.threshold
}

// ValidateBrand compares two brand spellings after alias resolution.
func (v *Validator) ValidateBrand(specBrand, titleBrand string) Validation {
	a := StandardizeBrand(specBrand)
	b := StandardizeBrand(titleBrand)
	return v.validation(Similarity(a, b))
}

// ValidateModel compares two model names with the brand prefix and network
// suffix removed.
func (v *Validator) ValidateModel(specModel, titleModel, brand string) Validation {
	return v.validation(ModelSimilarity(CleanModelName(specModel), CleanModelName(titleModel), brand))
}

func (v *Validator) validation(score int) Validation {
	return Validation{
		Score:       score,
		NeedsReview: score < v.threshold,
	}
}
