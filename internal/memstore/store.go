// Package memstore keeps the catalog in memory. It backs dry runs and tests
// and counts every call so callers can check which lookups reached the store.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"phone-catalog-ingest/internal/matching"
	"phone-catalog-ingest/internal/model"
)

const maxSlugAttempts = 5

type Store struct {
	mu sync.Mutex

	nextID     int64
	brands     map[int64]model.Brand
	categories map[int64]model.Category
	products   map[int64]model.Product
	variants   map[int64]model.Variant
	listings   map[int64]model.Listing
	slugs      map[string]struct{}
	calls      map[string]int
	failures   map[string]error
}

// New creates an empty store
func New() *Store {
	return &Store{
		brands:     make(map[int64]model.Brand),
		categories: make(map[int64]model.Category),
		products:   make(map[int64]model.Product),
		variants:   make(map[int64]model.Variant),
		listings:   make(map[int64]model.Listing),
		slugs:      make(map[string]struct{}),
		calls:      make(map[string]int),
		failures:   make(map[string]error),
	}
}

// Calls returns how many times a method was called.
func (s *Store) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// TotalCalls returns the number of calls across all methods.
func (s *Store) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// ResetCalls zeroes the call counters.
func (s *Store) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make(map[string]int)
}

// FailOn makes every later call of method return err. A nil err clears it.
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

// Products returns every product ordered by id.
func (s *Store) Products() []model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Variants returns every variant ordered by id.
func (s *Store) Variants() []model.Variant {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Variant, 0, len(s.variants))
	for _, v := range s.variants {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Product returns a product by id.
func (s *Store) Product(id int64) (model.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	return p, ok
}

// Variant returns a variant by id.
func (s *Store) Variant(id int64) (model.Variant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variants[id]
	return v, ok
}

// call counts a method call and returns its injected failure, if any.
// The caller holds the lock.
func (s *Store) call(method string) error {
	s.calls[method]++
	return s.failures[method]
}

func (s *Store) newID() int64 {
	s.nextID++
	return s.nextID
}

// claimSlug reserves base or the first free "-2", "-3" suffix.
func (s *Store) claimSlug(kind, base string) (string, error) {
	slug := base
	for attempt := 1; attempt <= maxSlugAttempts; attempt++ {
		if attempt > 1 {
			slug = fmt.Sprintf("%s-%d", base, attempt)
		}
		if _, taken := s.slugs[kind+"/"+slug]; !taken {
			s.slugs[kind+"/"+slug] = struct{}{}
			return slug, nil
		}
	}
	return "", fmt.Errorf("slug %q still taken after %d attempts", base, maxSlugAttempts)
}

func (s *Store) FindBrandByName(ctx context.Context, name string) (*model.Brand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("FindBrandByName"); err != nil {
		return nil, err
	}
	for _, b := range s.brands {
		if strings.EqualFold(b.Name, name) {
			return &b, nil
		}
	}
	return nil, nil
}

func (s *Store) CreateBrand(ctx context.Context, b model.Brand) (model.Brand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("CreateBrand"); err != nil {
		return model.Brand{}, err
	}
	slug, err := s.claimSlug("brand", b.Slug)
	if err != nil {
		return model.Brand{}, err
	}
	b.ID = s.newID()
	b.Slug = slug
	b.CreatedAt = time.Now()
	s.brands[b.ID] = b
	return b, nil
}

func (s *Store) FindCategoryByName(ctx context.Context, name string) (*model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("FindCategoryByName"); err != nil {
		return nil, err
	}
	for _, c := range s.categories {
		if strings.EqualFold(c.Name, name) {
			return &c, nil
		}
	}
	return nil, nil
}

func (s *Store) CreateCategory(ctx context.Context, c model.Category) (model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("CreateCategory"); err != nil {
		return model.Category{}, err
	}
	slug, err := s.claimSlug("category", c.Slug)
	if err != nil {
		return model.Category{}, err
	}
	c.ID = s.newID()
	c.Slug = slug
	c.CreatedAt = time.Now()
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) FindProductByModelNumber(ctx context.Context, modelNumber string, brandID int64) (*model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("FindProductByModelNumber"); err != nil {
		return nil, err
	}
	var found *model.Product
	for _, p := range s.products {
		if p.BrandID != brandID || p.ModelNumber == nil || *p.ModelNumber != modelNumber {
			continue
		}
		if found == nil || p.ID < found.ID {
			match := copyProduct(p)
			found = &match
		}
	}
	return found, nil
}

func (s *Store) FindProductsByModelNameIn(ctx context.Context, names []string, brandID int64) ([]model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("FindProductsByModelNameIn"); err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}
	var out []model.Product
	for _, p := range s.products {
		if _, ok := wanted[p.ModelName]; ok && p.BrandID == brandID {
			out = append(out, copyProduct(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FindProductByFuzzyModelNumber(ctx context.Context, modelNumber string, brandID, categoryID int64, threshold float64) (*model.FuzzyMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("FindProductByFuzzyModelNumber"); err != nil {
		return nil, err
	}
	return s.fuzzy(modelNumber, brandID, categoryID, threshold), nil
}

func (s *Store) FindProductByFuzzyModelName(ctx context.Context, modelName string, brandID, categoryID int64, threshold float64) (*model.FuzzyMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("FindProductByFuzzyModelName"); err != nil {
		return nil, err
	}
	return s.fuzzy(modelName, brandID, categoryID, threshold), nil
}

func (s *Store) fuzzy(query string, brandID, categoryID int64, threshold float64) *model.FuzzyMatch {
	var candidates []matching.TrigramCandidate
	for _, p := range s.products {
		if p.BrandID != brandID || categoryID != 0 && p.CategoryID != categoryID {
			continue
		}
		candidates = append(candidates, matching.TrigramCandidate{ID: p.ID, Text: p.ModelName})
	}
	best, score, ok := matching.BestTrigramMatch(query, candidates, threshold)
	if !ok {
		return nil
	}
	return &model.FuzzyMatch{Product: copyProduct(s.products[best.ID]), Similarity: score}
}

func (s *Store) CreateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("CreateProduct"); err != nil {
		return model.Product{}, err
	}
	slug, err := s.claimSlug("product", p.Slug)
	if err != nil {
		return model.Product{}, err
	}
	now := time.Now()
	p.ID = s.newID()
	p.Slug = slug
	if p.Status == "" {
		p.Status = model.ProductStatusActive
	}
	p.CreatedAt, p.UpdatedAt = now, now
	s.products[p.ID] = copyProduct(p)
	return p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, id int64, upd model.ProductUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("UpdateProduct"); err != nil {
		return err
	}
	p, ok := s.products[id]
	if !ok {
		return fmt.Errorf("product %d not found", id)
	}
	if upd.ModelNumber != nil {
		mn := *upd.ModelNumber
		p.ModelNumber = &mn
	}
	if upd.Specifications != nil {
		p.Specifications = upd.Specifications
	}
	p.UpdatedAt = time.Now()
	s.products[id] = p
	return nil
}

func (s *Store) FindVariantByExactAttributes(ctx context.Context, q model.VariantQuery) (*model.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("FindVariantByExactAttributes"); err != nil {
		return nil, err
	}
	var found *model.Variant
	for _, v := range s.variants {
		if v.ProductID != q.ProductID || !sameAttributes(v.Attributes, q.Attributes, q.IgnoreRAM) {
			continue
		}
		if found == nil || v.ID < found.ID {
			match := copyVariant(v)
			found = &match
		}
	}
	return found, nil
}

func (s *Store) CreateVariant(ctx context.Context, v model.Variant) (model.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("CreateVariant"); err != nil {
		return model.Variant{}, err
	}
	now := time.Now()
	v.ID = s.newID()
	if v.Images == nil {
		v.Images = []string{}
	}
	v.CreatedAt, v.UpdatedAt = now, now
	s.variants[v.ID] = copyVariant(v)
	return v, nil
}

func (s *Store) UpdateVariantImages(ctx context.Context, id int64, images []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("UpdateVariantImages"); err != nil {
		return err
	}
	v, ok := s.variants[id]
	if !ok {
		return fmt.Errorf("variant %d not found", id)
	}
	v.Images = append([]string(nil), images...)
	v.UpdatedAt = time.Now()
	s.variants[id] = v
	return nil
}

func (s *Store) FindListingByURL(ctx context.Context, url string) (*model.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("FindListingByURL"); err != nil {
		return nil, err
	}
	for _, l := range s.listings {
		if l.URL == url {
			match := copyListing(l)
			return &match, nil
		}
	}
	return nil, nil
}

func (s *Store) CreateListing(ctx context.Context, l model.Listing) (model.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("CreateListing"); err != nil {
		return model.Listing{}, err
	}
	for _, existing := range s.listings {
		if existing.URL == l.URL {
			return model.Listing{}, fmt.Errorf("listing url %q already exists", l.URL)
		}
	}
	l.ID = s.newID()
	s.listings[l.ID] = copyListing(l)
	return l, nil
}

func (s *Store) UpdateListing(ctx context.Context, l model.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("UpdateListing"); err != nil {
		return err
	}
	if _, ok := s.listings[l.ID]; !ok {
		return fmt.Errorf("listing %d not found", l.ID)
	}
	s.listings[l.ID] = copyListing(l)
	return nil
}

func sameAttributes(a, b model.Attributes, ignoreRAM bool) bool {
	return (ignoreRAM || eqPtr(a.RAMGB, b.RAMGB)) &&
		eqPtr(a.StorageGB, b.StorageGB) &&
		eqPtr(a.Color, b.Color) &&
		eqPtr(a.DisplaySize, b.DisplaySize) &&
		eqPtr(a.ConnectivityType, b.ConnectivityType)
}

func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyProduct(p model.Product) model.Product {
	if p.ModelNumber != nil {
		mn := *p.ModelNumber
		p.ModelNumber = &mn
	}
	return p
}

func copyVariant(v model.Variant) model.Variant {
	v.Images = append([]string(nil), v.Images...)
	return v
}

func copyListing(l model.Listing) model.Listing {
	l.PriceHistory = append([]model.PricePoint(nil), l.PriceHistory...)
	return l
}
