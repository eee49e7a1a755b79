package dedup

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"phone-catalog-ingest/internal/matching"
	"phone-catalog-ingest/internal/model"
	"phone-catalog-ingest/internal/stats"
)

// DefaultFuzzyThreshold is the trigram floor of the fuzzy phases.
const DefaultFuzzyThreshold = 0.4

// Options tunes the Matcher Engine.
type Options struct {
	// FuzzyThreshold is the exclusive 0..1 trigram floor of phases 3 and 4.
	FuzzyThreshold float64
	// ScopeFuzzyToCategory restricts fuzzy candidates to the record category.
	ScopeFuzzyToCategory bool
}

// Engine resolves normalized records to brand, category, product and
// variant ids. One engine serves one batch at a time; Reset clears its
// cache between runs.
type Engine struct {
	store  Store
	cache  *Cache
	stats  *stats.Aggregator
	logger *slog.Logger
	opts   Options
}

// NewEngine creates a matcher over store. Outcomes are counted in agg.
func NewEngine(store Store, agg *stats.Aggregator, logger *slog.Logger, opts Options) *Engine {
	if opts.FuzzyThreshold <= 0 || opts.FuzzyThreshold >= 1 {
		opts.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	if agg == nil {
		agg = stats.NewAggregator("")
	}
	return &Engine{
		store:  store,
		cache:  NewCache(),
		stats:  agg,
		logger: logger,
		opts:   opts,
	}
}

// Cache returns the engine's per-run cache.
func (e *Engine) Cache() *Cache {
	return e.cache
}

// Stats returns the aggregator outcomes are counted in.
func (e *Engine) Stats() *stats.Aggregator {
	return e.stats
}

// Reset starts a new run: the cache is emptied and outcomes go to agg.
func (e *Engine) Reset(agg *stats.Aggregator) {
	e.cache.Reset()
	if agg != nil {
		e.stats = agg
	}
}

// ResolveBrand returns the brand for a raw brand string, creating it on
// first sighting.
func (e *Engine) ResolveBrand(ctx context.Context, raw string) (model.Brand, error) {
	name := matching.StandardizeBrand(raw)
	if name == "" {
		return model.Brand{}, ErrMissingBrand
	}

	if b, ok := e.cache.LookupBrand(name); ok {
		e.stats.RecordCacheHit(stats.EntityBrand)
		e.stats.RecordExisting(stats.EntityBrand)
		return b, nil
	}

	found, err := e.store.FindBrandByName(ctx, name)
	if err != nil {
		return model.Brand{}, &StoreError{Op: "find_brand", Identifier: name, Err: err}
	}
	if found != nil {
		e.cache.RememberBrand(*found)
		e.stats.RecordExisting(stats.EntityBrand)
		return *found, nil
	}

	created, err := e.store.CreateBrand(ctx, model.Brand{
		Name:     name,
		Slug:     matching.Slugify(name),
		IsActive: true,
	})
	if err != nil {
		return model.Brand{}, &StoreError{Op: "create_brand", Identifier: name, Err: err}
	}
	e.logger.Info("Created brand", "brand_id", created.ID, "name", created.Name)
	e.cache.RememberBrand(created)
	e.stats.RecordCreated(stats.EntityBrand)
	return created, nil
}

// ResolveCategory standardizes the hints to a category name and returns the
// category, creating it on first sighting.
func (e *Engine) ResolveCategory(ctx context.Context, hints ...string) (model.Category, error) {
	name := matching.StandardizeCategory(hints...)

	if c, ok := e.cache.LookupCategory(name); ok {
		e.stats.RecordCacheHit(stats.EntityCategory)
		e.stats.RecordExisting(stats.EntityCategory)
		return c, nil
	}

	found, err := e.store.FindCategoryByName(ctx, name)
	if err != nil {
		return model.Category{}, &StoreError{Op: "find_category", Identifier: name, Err: err}
	}
	if found != nil {
		e.cache.RememberCategory(*found)
		e.stats.RecordExisting(stats.EntityCategory)
		return *found, nil
	}

	created, err := e.store.CreateCategory(ctx, model.Category{
		Name: name,
		Slug: matching.Slugify(name),
	})
	if err != nil {
		return model.Category{}, &StoreError{Op: "create_category", Identifier: name, Err: err}
	}
	e.logger.Info("Created category", "category_id", created.ID, "name", created.Name)
	e.cache.RememberCategory(created)
	e.stats.RecordCreated(stats.EntityCategory)
	return created, nil
}

// productInput is the record reduced to the keys the phases compare.
type productInput struct {
	identifier string
	brand      string
	// rawName is set when the record carries any model name text.
	rawName bool
	// name is empty when the model name cleans down to nothing.
	name        string
	modelNumber string
	// promoted is set when modelNumber was taken from the model name.
	promoted bool
}

func newProductInput(rec model.NormalizedProduct) productInput {
	in := productInput{
		identifier:  rec.Identifier(),
		brand:       matching.StandardizeBrand(rec.Brand),
		rawName:     strings.TrimSpace(rec.ModelName) != "",
		name:        matching.NormalizeModelName(rec.ModelName),
		modelNumber: normalizeModelNumber(rec.ModelNumberValue()),
	}
	if in.modelNumber == "" {
		if cleaned := matching.CleanModelName(rec.ModelName); matching.DetectModelNumber(cleaned) {
			in.modelNumber = normalizeModelNumber(cleaned)
			in.promoted = true
		}
	}
	return in
}

// ResolveProduct runs the match phases in order and creates a product when
// none matches. Store errors inside a phase are recorded and the next phase
// runs. Only a missing model name or a failed create is returned as error.
//
// A model name that cleans down to nothing ("Smartphone", "N/A") is never
// used as a key: such a record resolves by its model number alone, through
// phases 1 and 3, and is created under the model number when both miss.
func (e *Engine) ResolveProduct(ctx context.Context, rec model.NormalizedProduct, brandID, categoryID int64) (model.ProductResolution, error) {
	in := newProductInput(rec)
	if !in.rawName || in.name == "" && in.modelNumber == "" {
		return model.ProductResolution{}, ErrMissingIdentifier
	}

	res, product, ok := e.matchProduct(ctx, in, brandID, categoryID)
	if ok {
		e.backfillModelNumber(ctx, in, brandID, product)
		e.stats.RecordMatch(res.MatchType)
		e.stats.RecordExisting(stats.EntityProduct)
		if res.CacheHit {
			e.stats.RecordCacheHit(stats.EntityProduct)
		}
		e.logger.Debug("Matched product",
			"record", in.identifier,
			"product_id", res.ProductID,
			"match_type", res.MatchType,
			"similarity", res.Similarity,
			"cache_hit", res.CacheHit,
		)
		return res, nil
	}

	created, err := e.createProduct(ctx, rec, in, brandID, categoryID)
	if err != nil {
		return model.ProductResolution{}, err
	}
	e.stats.RecordMatch(model.MatchCreated)
	e.stats.RecordCreated(stats.EntityProduct)
	e.logger.Debug("Created product", "record", in.identifier, "product_id", created.ID, "model_name", created.ModelName)
	return model.ProductResolution{ProductID: created.ID, MatchType: model.MatchCreated}, nil
}

func (e *Engine) matchProduct(ctx context.Context, in productInput, brandID, categoryID int64) (model.ProductResolution, ProductRef, bool) {
	// Phase 1: model number exact match
	if in.modelNumber != "" {
		if hit, ok := e.cache.LookupModelNumber(brandID, in.modelNumber); ok {
			return model.ProductResolution{ProductID: hit.ID, MatchType: hitMatchType(hit, model.MatchModelNumber), CacheHit: true}, hit.ProductRef, true
		}
		p, err := e.store.FindProductByModelNumber(ctx, in.modelNumber, brandID)
		if err != nil {
			e.recordStoreError(in, "find_product_by_model_number", err)
		} else if p != nil {
			ref := e.remember(brandID, *p)
			return model.ProductResolution{ProductID: p.ID, MatchType: model.MatchModelNumber}, ref, true
		}
	}

	// Phase 2: model name exact or network variant match
	if in.name != "" {
		if hit, ok := e.cache.LookupModelName(brandID, in.name); ok {
			return model.ProductResolution{ProductID: hit.ID, MatchType: hitMatchType(hit, nameMatchType(hit.ModelName, in.name)), CacheHit: true}, hit.ProductRef, true
		}
		products, err := e.store.FindProductsByModelNameIn(ctx, matching.GenerateSearchVariants(in.name), brandID)
		if err != nil {
			e.recordStoreError(in, "find_products_by_model_name", err)
		} else if p, ok := pickNameMatch(products, in.name); ok {
			ref := e.remember(brandID, p)
			return model.ProductResolution{ProductID: p.ID, MatchType: nameMatchType(p.ModelName, in.name)}, ref, true
		}
	}

	scope := int64(0)
	if e.opts.ScopeFuzzyToCategory {
		scope = categoryID
	}

	// Phase 3: model number against stored model names
	if in.modelNumber != "" {
		m, err := e.store.FindProductByFuzzyModelNumber(ctx, in.modelNumber, brandID, scope, e.opts.FuzzyThreshold)
		if err != nil {
			e.recordStoreError(in, "find_product_by_fuzzy_model_number", err)
		} else if e.acceptFuzzy(m, in.modelNumber) {
			ref := e.rememberFuzzy(brandID, m.Product, in, model.MatchCrossFieldFuzzy)
			return model.ProductResolution{ProductID: m.Product.ID, MatchType: model.MatchCrossFieldFuzzy, Similarity: m.Similarity}, ref, true
		}
	}

	// Phase 4: fuzzy model name
	if in.name != "" {
		m, err := e.store.FindProductByFuzzyModelName(ctx, in.name, brandID, scope, e.opts.FuzzyThreshold)
		if err != nil {
			e.recordStoreError(in, "find_product_by_fuzzy_model_name", err)
		} else if e.acceptFuzzy(m, in.name) {
			ref := e.rememberFuzzy(brandID, m.Product, in, model.MatchFuzzyModelName)
			return model.ProductResolution{ProductID: m.Product.ID, MatchType: model.MatchFuzzyModelName, Similarity: m.Similarity}, ref, true
		}
	}

	return model.ProductResolution{}, ProductRef{}, false
}

// hitMatchType reports the phase that taught the cache a key, or fallback
// for a product's own keys.
func hitMatchType(hit ProductHit, fallback model.MatchType) model.MatchType {
	if hit.Match != "" {
		return hit.Match
	}
	return fallback
}

// acceptFuzzy applies the floor again and refuses to cross the 4G boundary:
// a 4G name never fuzzy-matches a base or 5G product, or the reverse. The
// stores already rank only same-network candidates.
func (e *Engine) acceptFuzzy(m *model.FuzzyMatch, query string) bool {
	if m == nil || m.Similarity <= e.opts.FuzzyThreshold {
		return false
	}
	return matching.SameNetwork(query, m.Product.ModelName)
}

// pickNameMatch prefers the row equal to the input, then the lowest id.
func pickNameMatch(products []model.Product, name string) (model.Product, bool) {
	if len(products) == 0 {
		return model.Product{}, false
	}
	sorted := append([]model.Product(nil), products...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ei := sorted[i].ModelName == name
		ej := sorted[j].ModelName == name
		if ei != ej {
			return ei
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted[0], true
}

func nameMatchType(stored, input string) model.MatchType {
	if stored == input {
		return model.MatchExactName
	}
	return model.MatchVariant
}

func (e *Engine) remember(brandID int64, p model.Product) ProductRef {
	ref := ProductRef{ID: p.ID, ModelName: p.ModelName}
	if p.ModelNumber != nil {
		ref.ModelNumber = *p.ModelNumber
	}
	e.cache.RememberProduct(brandID, ref)
	return ref
}

// rememberFuzzy caches a fuzzy match under the product's own keys and under
// the keys of the record that found it.
func (e *Engine) rememberFuzzy(brandID int64, p model.Product, in productInput, match model.MatchType) ProductRef {
	ref := e.remember(brandID, p)
	e.cache.RememberAlias(brandID, ref, in.name, in.modelNumber, match)
	return ref
}

// backfillModelNumber stores the record's model number on a matched product
// that has none. A model number already on the product is never replaced.
func (e *Engine) backfillModelNumber(ctx context.Context, in productInput, brandID int64, ref ProductRef) {
	if in.modelNumber == "" || in.promoted || ref.ModelNumber != "" {
		return
	}
	mn := in.modelNumber
	if err := e.store.UpdateProduct(ctx, ref.ID, model.ProductUpdate{ModelNumber: &mn}); err != nil {
		e.recordStoreError(in, "update_product", err)
		return
	}
	ref.ModelNumber = mn
	e.cache.RememberProduct(brandID, ref)
	e.logger.Debug("Backfilled model number", "product_id", ref.ID, "model_number", mn)
}

func (e *Engine) createProduct(ctx context.Context, rec model.NormalizedProduct, in productInput, brandID, categoryID int64) (model.Product, error) {
	name := in.name
	if name == "" {
		name = matching.NormalizeText(in.modelNumber)
	}
	p := model.Product{
		ModelName:      name,
		Slug:           productSlug(in.brand, name),
		BrandID:        brandID,
		CategoryID:     categoryID,
		Specifications: rec.KeySpecifications,
		Status:         model.ProductStatusActive,
	}
	if in.modelNumber != "" && !in.promoted {
		mn := in.modelNumber
		p.ModelNumber = &mn
	}

	created, err := e.store.CreateProduct(ctx, p)
	if err != nil {
		return model.Product{}, &StoreError{Op: "create_product", Identifier: in.identifier, Err: err}
	}
	e.remember(brandID, created)
	return created, nil
}

// productSlug prefixes the brand unless the model name already starts with it.
func productSlug(brand, name string) string {
	b := matching.NormalizeText(brand)
	if b == "" || strings.HasPrefix(name, b+" ") || name == b {
		return matching.Slugify(name)
	}
	return matching.Slugify(b, name)
}

// ResolveVariant finds the variant of productID with exactly the record's
// attributes, or creates it. Record images are merged into the variant.
func (e *Engine) ResolveVariant(ctx context.Context, rec model.NormalizedProduct, productID int64, brandName string) (model.VariantResolution, error) {
	identifier := rec.Identifier()
	attrs := VariantAttributes(rec)
	apple := matching.IsApple(brandName)
	ignoreRAM := apple && attrs.RAMGB == nil
	key := VariantKey(productID, attrs, ignoreRAM)
	images := UnionImages(nil, rec.AllImages())

	if ref, ok := e.cache.LookupVariant(key); ok {
		e.mergeImages(ctx, identifier, ref.ID, ref.Images, images)
		e.stats.RecordCacheHit(stats.EntityVariant)
		e.stats.RecordExisting(stats.EntityVariant)
		return model.VariantResolution{VariantID: ref.ID, CacheHit: true}, nil
	}

	found := e.findVariant(ctx, identifier, model.VariantQuery{ProductID: productID, Attributes: attrs, IgnoreRAM: ignoreRAM})
	if found == nil && apple && attrs.RAMGB != nil {
		// Apple pages rarely state RAM; reuse the RAM-less variant.
		fallback := attrs
		fallback.RAMGB = nil
		found = e.findVariant(ctx, identifier, model.VariantQuery{ProductID: productID, Attributes: fallback})
	}
	if found != nil {
		merged := e.mergeImages(ctx, identifier, found.ID, found.Images, images)
		e.cache.RememberVariant(key, VariantRef{ID: found.ID, Images: merged})
		e.stats.RecordExisting(stats.EntityVariant)
		return model.VariantResolution{VariantID: found.ID}, nil
	}

	created, err := e.store.CreateVariant(ctx, model.Variant{
		ProductID:  productID,
		Attributes: attrs,
		Images:     images,
	})
	if err != nil {
		return model.VariantResolution{}, &StoreError{Op: "create_variant", Identifier: identifier, Err: err}
	}
	e.cache.RememberVariant(key, VariantRef{ID: created.ID, Images: created.Images})
	e.stats.RecordCreated(stats.EntityVariant)
	e.logger.Debug("Created variant", "record", identifier, "product_id", productID, "variant_id", created.ID)
	return model.VariantResolution{VariantID: created.ID, Created: true}, nil
}

func (e *Engine) findVariant(ctx context.Context, identifier string, q model.VariantQuery) *model.Variant {
	v, err := e.store.FindVariantByExactAttributes(ctx, q)
	if err != nil {
		e.stats.RecordError(identifier, &StoreError{Op: "find_variant", Identifier: identifier, Err: err})
		e.logger.Warn("Variant lookup failed", "record", identifier, "error", err)
		return nil
	}
	return v
}

// mergeImages unions incoming into existing and writes the result when it
// grew. It returns the merged list.
func (e *Engine) mergeImages(ctx context.Context, identifier string, variantID int64, existing, incoming []string) []string {
	merged := UnionImages(existing, incoming)
	if len(merged) == len(UnionImages(nil, existing)) {
		return merged
	}
	if err := e.store.UpdateVariantImages(ctx, variantID, merged); err != nil {
		e.stats.RecordError(identifier, &StoreError{Op: "update_variant_images", Identifier: identifier, Err: err})
		e.logger.Warn("Variant image update failed", "record", identifier, "variant_id", variantID, "error", err)
		return existing
	}
	e.cache.SetVariantImages(variantID, merged)
	return merged
}

func (e *Engine) recordStoreError(in productInput, op string, err error) {
	e.stats.RecordError(in.identifier, &StoreError{Op: op, Identifier: in.identifier, Err: err})
	e.logger.Warn("Store query failed, trying next phase", "record", in.identifier, "op", op, "error", err)
}

// VariantAttributes builds the identity tuple of a record. Display size and
// connectivity only count for tablets.
func VariantAttributes(rec model.NormalizedProduct) model.Attributes {
	va := rec.VariantAttributes
	attrs := model.Attributes{
		RAMGB:     model.GB(va.RAM),
		StorageGB: model.GB(va.Storage),
	}
	if va.Color != nil {
		if c := matching.StandardizeColor(*va.Color); c != "" {
			attrs.Color = &c
		}
	}

	hint := ""
	if rec.CategoryHint != nil {
		hint = *rec.CategoryHint
	}
	if matching.StandardizeCategory(hint, rec.ModelName) != matching.CategoryTablets {
		return attrs
	}

	if va.DisplaySize != nil && *va.DisplaySize > 0 {
		size := float64(int(*va.DisplaySize*100+0.5)) / 100
		attrs.DisplaySize = &size
	}
	if va.ConnectivityType != nil {
		if c := matching.NormalizeConnectivity(*va.ConnectivityType); c != "" {
			attrs.ConnectivityType = &c
		}
	}
	return attrs
}

// UnionImages appends the URLs of incoming that existing does not hold yet.
func UnionImages(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, list := range [][]string{existing, incoming} {
		for _, url := range list {
			url = strings.TrimSpace(url)
			if url == "" {
				continue
			}
			if _, dup := seen[url]; dup {
				continue
			}
			seen[url] = struct{}{}
			merged = append(merged, url)
		}
	}
	return merged
}
