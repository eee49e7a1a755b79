package model

import (
	"math"
	"strings"
)

// NormalizedProduct is one listing after site-specific extraction, in the
// common shape shared by all stores.
type NormalizedProduct struct {
	Brand             string         `json:"brand"`
	ModelName         string         `json:"model_name"`
	ModelNameWith5G   *string        `json:"model_name_with_5g,omitempty"`
	ModelNumber       *string        `json:"model_number,omitempty"`
	CategoryHint      *string        `json:"category_hint,omitempty"`
	Title             string         `json:"title,omitempty"`
	VariantAttributes VariantInput   `json:"variant_attributes"`
	ListingFields     ListingFields  `json:"listing_fields"`
	KeySpecifications map[string]any `json:"key_specifications,omitempty"`
	Images            []string       `json:"images,omitempty"`
}

// VariantInput holds the raw variant attributes as scraped. RAM and storage
// are in GB.
type VariantInput struct {
	RAM              *float64 `json:"ram"`
	Storage          *float64 `json:"storage"`
	Color            *string  `json:"color"`
	DisplaySize      *float64 `json:"display_size"`
	ConnectivityType *string  `json:"connectivity_type"`
}

type ListingFields struct {
	StoreName     string   `json:"store_name"`
	URL           string   `json:"url"`
	Price         *float64 `json:"price"`
	OriginalPrice *float64 `json:"original_price"`
	Rating        *float64 `json:"rating"`
	Availability  string   `json:"availability"`
	ImageURL      string   `json:"image_url"`
	ScrapedAt     string   `json:"scraped_at"`
}

// Identifier returns a readable handle for error lists and logs.
func (p NormalizedProduct) Identifier() string {
	if p.ListingFields.URL != "" {
		if p.ListingFields.StoreName != "" {
			return p.ListingFields.StoreName + ":" + p.ListingFields.URL
		}
		return p.ListingFields.URL
	}
	id := strings.TrimSpace(p.Brand + " " + p.ModelName)
	if id == "" && p.ModelNumber != nil {
		id = *p.ModelNumber
	}
	return id
}

// ModelNumberValue returns the trimmed model number or "".
func (p NormalizedProduct) ModelNumberValue() string {
	if p.ModelNumber == nil {
		return ""
	}
	return strings.TrimSpace(*p.ModelNumber)
}

// AllImages returns the record image URLs with the listing image first.
func (p NormalizedProduct) AllImages() []string {
	var images []string
	if p.ListingFields.ImageURL != "" {
		images = append(images, p.ListingFields.ImageURL)
	}
	return append(images, p.Images...)
}

// GB rounds a float GB value to an int pointer. Non-positive values are
// treated as missing.
func GB(v *float64) *int {
	if v == nil || *v <= 0 {
		return nil
	}
	n := int(math.Round(*v))
	return &n
}
