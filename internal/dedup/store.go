package dedup

import (
	"context"

	"phone-catalog-ingest/internal/model"
)

// Find methods return (nil, nil) when nothing matches.

type BrandStore interface {
	FindBrandByName(ctx context.Context, name string) (*model.Brand, error)
	CreateBrand(ctx context.Context, b model.Brand) (model.Brand, error)
}

type CategoryStore interface {
	FindCategoryByName(ctx context.Context, name string) (*model.Category, error)
	CreateCategory(ctx context.Context, c model.Category) (model.Category, error)
}

// ProductStore is the product side of the storage collaborator. Fuzzy
// lookups return the best product whose trigram similarity is strictly
// above threshold. A zero categoryID searches the whole brand.
type ProductStore interface {
	FindProductByModelNumber(ctx context.Context, modelNumber string, brandID int64) (*model.Product, error)
	FindProductsByModelNameIn(ctx context.Context, names []string, brandID int64) ([]model.Product, error)
	FindProductByFuzzyModelNumber(ctx context.Context, modelNumber string, brandID, categoryID int64, threshold float64) (*model.FuzzyMatch, error)
	FindProductByFuzzyModelName(ctx context.Context, modelName string, brandID, categoryID int64, threshold float64) (*model.FuzzyMatch, error)
	CreateProduct(ctx context.Context, p model.Product) (model.Product, error)
	UpdateProduct(ctx context.Context, id int64, upd model.ProductUpdate) error
}

// VariantStore matches variants on exact attribute equality only.
type VariantStore interface {
	FindVariantByExactAttributes(ctx context.Context, q model.VariantQuery) (*model.Variant, error)
	CreateVariant(ctx context.Context, v model.Variant) (model.Variant, error)
	UpdateVariantImages(ctx context.Context, id int64, images []string) error
}

type ListingStore interface {
	FindListingByURL(ctx context.Context, url string) (*model.Listing, error)
	CreateListing(ctx context.Context, l model.Listing) (model.Listing, error)
	UpdateListing(ctx context.Context, l model.Listing) error
}

// Store is the full storage collaborator.
type Store interface {
	BrandStore
	CategoryStore
	ProductStore
	VariantStore
	ListingStore
}
