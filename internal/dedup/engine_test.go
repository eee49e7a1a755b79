package dedup_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phone-catalog-ingest/internal/dedup"
	"phone-catalog-ingest/internal/memstore"
	"phone-catalog-ingest/internal/model"
	"phone-catalog-ingest/internal/stats"
)

var _ dedup.Store = (*memstore.Store)(nil)

type harness struct {
	t      *testing.T
	ctx    context.Context
	store  *memstore.Store
	agg    *stats.Aggregator
	engine *dedup.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memstore.New()
	agg := stats.NewAggregator("test-run")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &harness{
		t:     t,
		ctx:   context.Background(),
		store: store,
		agg:   agg,
		engine: dedup.NewEngine(store, agg, logger, dedup.Options{
			FuzzyThreshold:       0.4,
			ScopeFuzzyToCategory: true,
		}),
	}
}

func strPtr(s string) *string { return &s }

func numPtr(f float64) *float64 { return &f }

func record(brand, name, modelNumber string) model.NormalizedProduct {
	rec := model.NormalizedProduct{Brand: brand, ModelName: name}
	if modelNumber != "" {
		rec.ModelNumber = strPtr(modelNumber)
	}
	return rec
}

// brandAndCategory resolves the record's brand and category ids.
func (h *harness) brandAndCategory(rec model.NormalizedProduct) (model.Brand, model.Category) {
	h.t.Helper()
	brand, err := h.engine.ResolveBrand(h.ctx, rec.Brand)
	require.NoError(h.t, err)
	hint := ""
	if rec.CategoryHint != nil {
		hint = *rec.CategoryHint
	}
	cat, err := h.engine.ResolveCategory(h.ctx, hint, rec.ModelName)
	require.NoError(h.t, err)
	return brand, cat
}

func (h *harness) resolve(rec model.NormalizedProduct) model.ProductResolution {
	h.t.Helper()
	brand, cat := h.brandAndCategory(rec)
	res, err := h.engine.ResolveProduct(h.ctx, rec, brand.ID, cat.ID)
	require.NoError(h.t, err)
	return res
}

func (h *harness) productCalls() int {
	total := 0
	for _, m := range []string{
		"FindProductByModelNumber",
		"FindProductsByModelNameIn",
		"FindProductByFuzzyModelNumber",
		"FindProductByFuzzyModelName",
		"CreateProduct",
		"UpdateProduct",
	} {
		total += h.store.Calls(m)
	}
	return total
}

func TestResolveProduct_Idempotent(t *testing.T) {
	h := newHarness(t)
	rec := record("Samsung", "Galaxy S24 Ultra", "SM-S928B")

	first := h.resolve(rec)
	assert.Equal(t, model.MatchCreated, first.MatchType)

	second := h.resolve(rec)
	assert.Equal(t, first.ProductID, second.ProductID)
	assert.NotEqual(t, model.MatchCreated, second.MatchType)

	// A fresh run against the same store must not create a duplicate.
	h.engine.Reset(nil)
	third := h.resolve(rec)
	assert.Equal(t, first.ProductID, third.ProductID)
	assert.Equal(t, model.MatchModelNumber, third.MatchType)
	assert.False(t, third.CacheHit)
	assert.Len(t, h.store.Products(), 1)
}

func TestResolveProduct_ModelNumberReuse(t *testing.T) {
	h := newHarness(t)

	a := h.resolve(record("Samsung", "Galaxy S24 Ultra", "SM-S928B"))
	b := h.resolve(record("Samsung", "Galaxy S24 Ultra 5G", "SM-S928B"))

	assert.Equal(t, a.ProductID, b.ProductID)
	assert.Equal(t, model.MatchModelNumber, b.MatchType)
	assert.True(t, b.CacheHit)
}

func TestResolveProduct_FiveGFoldingUsesCache(t *testing.T) {
	h := newHarness(t)

	first := h.resolve(record("OnePlus", "OnePlus 12", ""))
	require.Equal(t, model.MatchCreated, first.MatchType)

	h.store.ResetCalls()
	second := h.resolve(record("OnePlus", "OnePlus 12 5g", ""))

	assert.Equal(t, first.ProductID, second.ProductID)
	assert.Equal(t, model.MatchVariant, second.MatchType)
	assert.True(t, second.CacheHit)
	assert.Zero(t, h.productCalls(), "second lookup must be answered by the cache")
}

func TestResolveProduct_FiveGFoldingFromStore(t *testing.T) {
	h := newHarness(t)

	first := h.resolve(record("OnePlus", "OnePlus 12 5G", ""))
	h.engine.Reset(nil)

	second := h.resolve(record("One Plus", "OnePlus 12", ""))
	assert.Equal(t, first.ProductID, second.ProductID)
	assert.Equal(t, model.MatchVariant, second.MatchType)
	assert.False(t, second.CacheHit)

	exact := h.resolve(record("OnePlus", "OnePlus 12 5G", ""))
	assert.Equal(t, model.MatchExactName, exact.MatchType)
}

func TestResolveProduct_FourGIsolation(t *testing.T) {
	t.Run("4G after base", func(t *testing.T) {
		h := newHarness(t)
		base := h.resolve(record("Samsung", "Galaxy A15", ""))
		fourG := h.resolve(record("Samsung", "Galaxy A15 4G", ""))

		assert.NotEqual(t, base.ProductID, fourG.ProductID)
		assert.Equal(t, model.MatchCreated, fourG.MatchType)
	})

	t.Run("5G after 4G from store", func(t *testing.T) {
		h := newHarness(t)
		fourG := h.resolve(record("Samsung", "Galaxy A15 4G", ""))
		h.engine.Reset(nil)
		fiveG := h.resolve(record("Samsung", "Galaxy A15 5G", ""))

		assert.NotEqual(t, fourG.ProductID, fiveG.ProductID)
		assert.Equal(t, model.MatchCreated, fiveG.MatchType)
	})

	t.Run("4G repeats match themselves", func(t *testing.T) {
		h := newHarness(t)
		first := h.resolve(record("Samsung", "Galaxy A15 4G", ""))
		second := h.resolve(record("Samsung", "galaxy a15 4g", ""))
		assert.Equal(t, first.ProductID, second.ProductID)
		assert.Equal(t, model.MatchExactName, second.MatchType)
	})
}

func TestResolveProduct_CrossFieldFallback(t *testing.T) {
	h := newHarness(t)

	created := h.resolve(record("Xiaomi", "Redmi Note 13 Pro", ""))
	require.Equal(t, model.MatchCreated, created.MatchType)

	res := h.resolve(record("Xiaomi", "Smartphone", "Redmi Note 13 Pro"))
	assert.Equal(t, created.ProductID, res.ProductID)
	assert.Equal(t, model.MatchCrossFieldFuzzy, res.MatchType)
	assert.Greater(t, res.Similarity, 0.4)

	p, ok := h.store.Product(created.ProductID)
	require.True(t, ok)
	require.NotNil(t, p.ModelNumber, "model number is backfilled")
	assert.Equal(t, "REDMI NOTE 13 PRO", *p.ModelNumber)

	unrelated := h.resolve(record("Xiaomi", "Smartphone", "ZZ-0000"))
	assert.Equal(t, model.MatchCreated, unrelated.MatchType)
	p, ok = h.store.Product(unrelated.ProductID)
	require.True(t, ok)
	assert.Equal(t, "zz-0000", p.ModelName)
}

func TestResolveProduct_PlaceholderNameUsesModelNumber(t *testing.T) {
	h := newHarness(t)

	a := h.resolve(record("Xiaomi", "Smartphone", "ZZ-0000"))
	b := h.resolve(record("Xiaomi", "Smartphone", "QQ-9999"))
	c := h.resolve(record("Xiaomi", "N/A", "QQ-9999"))

	assert.Equal(t, model.MatchCreated, a.MatchType)
	assert.Equal(t, model.MatchCreated, b.MatchType)
	assert.NotEqual(t, a.ProductID, b.ProductID)
	assert.Equal(t, b.ProductID, c.ProductID)
	assert.Equal(t, model.MatchModelNumber, c.MatchType)
	assert.Len(t, h.store.Products(), 2)

	// The placeholder never reaches the name phases.
	assert.Zero(t, h.store.Calls("FindProductsByModelNameIn"))
	assert.Zero(t, h.store.Calls("FindProductByFuzzyModelName"))

	p, ok := h.store.Product(b.ProductID)
	require.True(t, ok)
	assert.Equal(t, "qq-9999", p.ModelName)
	require.NotNil(t, p.ModelNumber)
	assert.Equal(t, "QQ-9999", *p.ModelNumber)

	brand, cat := h.brandAndCategory(record("Xiaomi", "Smartphone", ""))
	_, err := h.engine.ResolveProduct(h.ctx, record("Xiaomi", "Smartphone", ""), brand.ID, cat.ID)
	assert.ErrorIs(t, err, dedup.ErrMissingIdentifier)
}

func TestResolveProduct_FuzzyModelName(t *testing.T) {
	h := newHarness(t)

	created := h.resolve(record("Samsung", "Galaxy S24 Ultra", ""))
	res := h.resolve(record("Samsung", "Galaxy S24 Ultra Titanium Edition", ""))

	assert.Equal(t, created.ProductID, res.ProductID)
	assert.Equal(t, model.MatchFuzzyModelName, res.MatchType)
	assert.InDelta(t, 0.5, res.Similarity, 1e-9)
}

func TestResolveProduct_PromotedModelNumberNotStored(t *testing.T) {
	h := newHarness(t)

	created := h.resolve(record("Samsung", "S24", ""))
	require.Equal(t, model.MatchCreated, created.MatchType)
	p, ok := h.store.Product(created.ProductID)
	require.True(t, ok)
	assert.Nil(t, p.ModelNumber)

	h.engine.Reset(nil)
	again := h.resolve(record("Samsung", "S24", ""))
	assert.Equal(t, created.ProductID, again.ProductID)
	assert.Equal(t, model.MatchExactName, again.MatchType)
	assert.Zero(t, h.store.Calls("UpdateProduct"))
}

func TestResolveProduct_FuzzyRepeatIsCached(t *testing.T) {
	h := newHarness(t)

	created := h.resolve(record("Samsung", "Galaxy S24 Ultra", ""))
	rec := record("Samsung", "Galaxy S24 Ultra Titanium Edition", "")
	first := h.resolve(rec)
	require.Equal(t, model.MatchFuzzyModelName, first.MatchType)

	before := h.productCalls()
	again := h.resolve(rec)
	assert.Equal(t, created.ProductID, again.ProductID)
	assert.Equal(t, model.MatchFuzzyModelName, again.MatchType)
	assert.True(t, again.CacheHit)
	assert.Equal(t, before, h.productCalls())
}

func TestResolveProduct_FuzzySkipsOtherNetwork(t *testing.T) {
	h := newHarness(t)
	rec := record("Samsung", "Galaxy A15 Lite", "")
	brand, cat := h.brandAndCategory(rec)

	seed := func(name, slug string) model.Product {
		p, err := h.store.CreateProduct(h.ctx, model.Product{ModelName: name, Slug: slug, BrandID: brand.ID, CategoryID: cat.ID})
		require.NoError(t, err)
		return p
	}
	// The 4G name scores higher but sits across the network line.
	seed("galaxy a15 lite 4g", "galaxy-a15-lite-4g")
	plus := seed("galaxy a15 plus", "galaxy-a15-plus")

	res, err := h.engine.ResolveProduct(h.ctx, rec, brand.ID, cat.ID)
	require.NoError(t, err)
	assert.Equal(t, plus.ID, res.ProductID)
	assert.Equal(t, model.MatchFuzzyModelName, res.MatchType)
}

func TestResolveProduct_FuzzyScopedToCategory(t *testing.T) {
	h := newHarness(t)

	rec := record("Samsung", "Galaxy S24 Ultra", "")
	created := h.resolve(rec)
	brand, _ := h.brandAndCategory(rec)

	other, err := h.engine.ResolveProduct(h.ctx, record("Samsung", "Galaxy S24 Ultra Titanium Edition", ""), brand.ID, 9999)
	require.NoError(t, err)
	assert.NotEqual(t, created.ProductID, other.ProductID)
	assert.Equal(t, model.MatchCreated, other.MatchType)
}

func TestResolveProduct_Backfill(t *testing.T) {
	h := newHarness(t)

	created := h.resolve(record("Google", "Pixel 8", ""))
	withNumber := h.resolve(record("Google", "Pixel 8", "GKWS6"))
	assert.Equal(t, created.ProductID, withNumber.ProductID)
	assert.Equal(t, model.MatchExactName, withNumber.MatchType)

	p, _ := h.store.Product(created.ProductID)
	require.NotNil(t, p.ModelNumber)
	assert.Equal(t, "GKWS6", *p.ModelNumber)

	byNumber := h.resolve(record("Google", "Pixel Eight", "gkws6"))
	assert.Equal(t, created.ProductID, byNumber.ProductID)
	assert.Equal(t, model.MatchModelNumber, byNumber.MatchType)

	// An existing model number is never replaced.
	other := h.resolve(record("Google", "Pixel 8", "G9BQD"))
	assert.Equal(t, created.ProductID, other.ProductID)
	p, _ = h.store.Product(created.ProductID)
	assert.Equal(t, "GKWS6", *p.ModelNumber)
}

func TestResolveProduct_NameTieBreak(t *testing.T) {
	h := newHarness(t)
	rec := record("Samsung", "Galaxy S23", "")
	brand, cat := h.brandAndCategory(rec)

	seed := func(name, slug string) model.Product {
		p, err := h.store.CreateProduct(h.ctx, model.Product{ModelName: name, Slug: slug, BrandID: brand.ID, CategoryID: cat.ID})
		require.NoError(t, err)
		return p
	}
	variant := seed("galaxy s23 5g", "galaxy-s23-5g")
	exactLow := seed("galaxy s23", "galaxy-s23")
	seed("galaxy s23", "galaxy-s23")

	res, err := h.engine.ResolveProduct(h.ctx, rec, brand.ID, cat.ID)
	require.NoError(t, err)
	assert.Equal(t, exactLow.ID, res.ProductID)
	assert.Equal(t, model.MatchExactName, res.MatchType)

	h.engine.Reset(nil)
	res, err = h.engine.ResolveProduct(h.ctx, record("Samsung", "Galaxy S23 5G", ""), brand.ID, cat.ID)
	require.NoError(t, err)
	assert.Equal(t, variant.ID, res.ProductID)
	assert.Equal(t, model.MatchExactName, res.MatchType)
}

func TestResolveProduct_MissingIdentifier(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.ResolveProduct(h.ctx, record("Samsung", "   ", "SM-S928B"), 1, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dedup.ErrMissingIdentifier))
	assert.Equal(t, stats.KindMissingIdentifier, stats.ClassifyError(err))
	assert.Zero(t, h.store.TotalCalls())
}

func TestResolveProduct_StoreErrorFallsThrough(t *testing.T) {
	h := newHarness(t)
	h.store.FailOn("FindProductsByModelNameIn", errors.New("connection reset by peer"))

	res := h.resolve(record("Vivo", "V30 Pro", ""))
	assert.Equal(t, model.MatchCreated, res.MatchType)

	errs := h.agg.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, stats.KindStoreQuery, errs[0].Kind)
	assert.Equal(t, "find_products_by_model_name", errs[0].Op)
	assert.Equal(t, "Vivo V30 Pro", errs[0].Identifier)
}

func TestResolveProduct_CreateFailure(t *testing.T) {
	h := newHarness(t)
	rec := record("Vivo", "V30 Pro", "")
	brand, cat := h.brandAndCategory(rec)
	h.store.FailOn("CreateProduct", errors.New("disk full"))

	_, err := h.engine.ResolveProduct(h.ctx, rec, brand.ID, cat.ID)
	require.Error(t, err)

	var storeErr *dedup.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "create_product", storeErr.Op)
}

func TestResolveProduct_Stats(t *testing.T) {
	h := newHarness(t)

	h.resolve(record("OnePlus", "OnePlus 12", ""))
	h.resolve(record("OnePlus", "OnePlus 12 5G", ""))
	h.resolve(record("OnePlus", "OnePlus 12", ""))

	assert.Equal(t, 1, h.agg.Matches(model.MatchCreated))
	assert.Equal(t, 1, h.agg.Matches(model.MatchVariant))
	assert.Equal(t, 1, h.agg.Matches(model.MatchExactName))
	assert.Equal(t, stats.EntityCounts{Created: 1, Existing: 2}, h.agg.Entity(stats.EntityProduct))
	assert.Equal(t, 2, h.agg.CacheHits(stats.EntityProduct))
	assert.Equal(t, stats.EntityCounts{Created: 1, Existing: 2}, h.agg.Entity(stats.EntityBrand))
}

func TestResolveBrand(t *testing.T) {
	h := newHarness(t)

	a, err := h.engine.ResolveBrand(h.ctx, "one plus")
	require.NoError(t, err)
	b, err := h.engine.ResolveBrand(h.ctx, "OnePlus")
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "OnePlus", a.Name)
	assert.Equal(t, "oneplus", a.Slug)
	assert.Equal(t, 1, h.store.Calls("CreateBrand"))

	_, err = h.engine.ResolveBrand(h.ctx, "N/A")
	assert.ErrorIs(t, err, dedup.ErrMissingBrand)
}

func TestResolveCategory(t *testing.T) {
	h := newHarness(t)

	phones, err := h.engine.ResolveCategory(h.ctx, "Mobiles", "Galaxy S24")
	require.NoError(t, err)
	tablets, err := h.engine.ResolveCategory(h.ctx, "", "Galaxy Tab S9")
	require.NoError(t, err)
	again, err := h.engine.ResolveCategory(h.ctx, "smartphones")
	require.NoError(t, err)

	assert.Equal(t, "Smartphones", phones.Name)
	assert.Equal(t, "Tablets", tablets.Name)
	assert.Equal(t, phones.ID, again.ID)
	assert.Equal(t, 2, h.store.Calls("CreateCategory"))
}
