package model

import "time"

type Brand struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

type ProductStatus string

const (
	ProductStatusActive       ProductStatus = "active"
	ProductStatusDiscontinued ProductStatus = "discontinued"
	ProductStatusComingSoon   ProductStatus = "coming_soon"
)

// Product is the canonical model of a brand. ModelName is stored normalized
// (lowercase, collapsed whitespace).
type Product struct {
	ID             int64          `json:"id"`
	ModelName      string         `json:"model_name"`
	Slug           string         `json:"slug"`
	BrandID        int64          `json:"brand_id"`
	CategoryID     int64          `json:"category_id"`
	ModelNumber    *string        `json:"model_number,omitempty"`
	Specifications map[string]any `json:"specifications,omitempty"`
	Status         ProductStatus  `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ProductUpdate lists the fields an update may set. Nil fields are left as is.
type ProductUpdate struct {
	ModelNumber    *string
	Specifications map[string]any
}

// FuzzyMatch is the best trigram candidate returned by a store.
type FuzzyMatch struct {
	Product    Product `json:"product"`
	Similarity float64 `json:"similarity"`
}

// Attributes is the variant identity tuple. Two variants of a product are
// the same exactly when all fields are equal, nil included.
type Attributes struct {
	RAMGB            *int     `json:"ram_gb"`
	StorageGB        *int     `json:"storage_gb"`
	Color            *string  `json:"color"`
	DisplaySize      *float64 `json:"display_size"`
	ConnectivityType *string  `json:"connectivity_type"`
}

// VariantQuery asks for a variant with exactly the given attributes. When
// IgnoreRAM is set the RAM column is not compared at all.
type VariantQuery struct {
	ProductID  int64
	Attributes Attributes
	IgnoreRAM  bool
}

type Variant struct {
	ID         int64      `json:"id"`
	ProductID  int64      `json:"product_id"`
	Attributes Attributes `json:"attributes"`
	Images     []string   `json:"images"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
