package dedup

import (
	"fmt"
	"strconv"
	"strings"

	"phone-catalog-ingest/internal/matching"
	"phone-catalog-ingest/internal/model"
)

// ProductRef is what the cache remembers about a resolved product.
type ProductRef struct {
	ID          int64
	ModelName   string
	ModelNumber string
}

// ProductHit is a cache answer. Match names the fuzzy phase a key was
// learned from and is empty for a product's own keys.
type ProductHit struct {
	ProductRef
	Match model.MatchType
}

// VariantRef is what the cache remembers about a resolved variant.
type VariantRef struct {
	ID     int64
	Images []string
}

type brandKey struct {
	brandID int64
	key     string
}

type keyEntry struct {
	id    int64
	match model.MatchType
}

// Cache maps lookup keys to ids for the lifetime of one batch run. A key
// keeps the first id written for it. The cache is owned by a single run and
// is not safe for concurrent use.
type Cache struct {
	products     map[int64]*ProductRef
	modelNumbers map[brandKey]keyEntry
	modelNames   map[brandKey]keyEntry
	variants     map[string]int64
	variantRefs  map[int64]*VariantRef
	brands       map[string]model.Brand
	categories   map[string]model.Category
}

// NewCache creates an empty cache
func NewCache() *Cache {
	c := &Cache{}
	c.Reset()
	return c
}

// Reset drops every entry. Called at the start of each run.
func (c *Cache) Reset() {
	c.products = make(map[int64]*ProductRef)
	c.modelNumbers = make(map[brandKey]keyEntry)
	c.modelNames = make(map[brandKey]keyEntry)
	c.variants = make(map[string]int64)
	c.variantRefs = make(map[int64]*VariantRef)
	c.brands = make(map[string]model.Brand)
	c.categories = make(map[string]model.Category)
}

// Len returns the number of product, variant, brand and category keys held.
func (c *Cache) Len() int {
	return len(c.modelNumbers) + len(c.modelNames) + len(c.variants) + len(c.brands) + len(c.categories)
}

// LookupModelNumber finds a product by brand and model number.
func (c *Cache) LookupModelNumber(brandID int64, modelNumber string) (ProductHit, bool) {
	return c.hit(c.modelNumbers, brandKey{brandID, normalizeModelNumber(modelNumber)})
}

// LookupModelName finds a product by brand and model name. Bare and
// explicit-5G spellings share one entry.
func (c *Cache) LookupModelName(brandID int64, modelName string) (ProductHit, bool) {
	return c.hit(c.modelNames, brandKey{brandID, matching.CacheKey(modelName)})
}

func (c *Cache) hit(keys map[brandKey]keyEntry, bk brandKey) (ProductHit, bool) {
	if bk.key == "" {
		return ProductHit{}, false
	}
	entry, ok := keys[bk]
	if !ok {
		return ProductHit{}, false
	}
	return ProductHit{ProductRef: *c.products[entry.id], Match: entry.match}, true
}

// RememberProduct records a product under its own model name key and, when
// known, its model number. Keys already held for another id are kept.
func (c *Cache) RememberProduct(brandID int64, ref ProductRef) {
	if existing, ok := c.products[ref.ID]; ok {
		if existing.ModelNumber == "" {
			existing.ModelNumber = ref.ModelNumber
		}
	} else {
		stored := ref
		c.products[ref.ID] = &stored
	}
	current := c.products[ref.ID]
	c.claimOwn(c.modelNames, brandKey{brandID, matching.CacheKey(current.ModelName)}, ref.ID)
	c.claimOwn(c.modelNumbers, brandKey{brandID, normalizeModelNumber(current.ModelNumber)}, ref.ID)
}

// claimOwn stores a product's own key. A key the same product learned from
// a fuzzy phase becomes its own.
func (c *Cache) claimOwn(keys map[brandKey]keyEntry, bk brandKey, id int64) {
	if entry, taken := keys[bk]; taken && entry.id == id {
		keys[bk] = keyEntry{id: id}
		return
	}
	c.claim(keys, bk, keyEntry{id: id})
}

// RememberAlias records the keys of an incoming record that a fuzzy phase
// resolved to ref, so a repeat of the record is answered here. Either key
// may be empty. Keys already held are kept.
func (c *Cache) RememberAlias(brandID int64, ref ProductRef, modelName, modelNumber string, match model.MatchType) {
	if _, ok := c.products[ref.ID]; !ok {
		stored := ref
		c.products[ref.ID] = &stored
	}
	c.claim(c.modelNames, brandKey{brandID, matching.CacheKey(modelName)}, keyEntry{id: ref.ID, match: match})
	c.claim(c.modelNumbers, brandKey{brandID, normalizeModelNumber(modelNumber)}, keyEntry{id: ref.ID, match: match})
}

func (c *Cache) claim(keys map[brandKey]keyEntry, bk brandKey, entry keyEntry) {
	if bk.key == "" {
		return
	}
	if _, taken := keys[bk]; !taken {
		keys[bk] = entry
	}
}

// LookupVariant finds a variant by its attribute key.
func (c *Cache) LookupVariant(key string) (VariantRef, bool) {
	id, ok := c.variants[key]
	if !ok {
		return VariantRef{}, false
	}
	ref := c.variantRefs[id]
	return VariantRef{ID: ref.ID, Images: append([]string(nil), ref.Images...)}, true
}

// RememberVariant stores a variant under key unless the key is taken.
func (c *Cache) RememberVariant(key string, ref VariantRef) {
	if _, taken := c.variants[key]; taken {
		return
	}
	c.variants[key] = ref.ID
	c.SetVariantImages(ref.ID, ref.Images)
}

// SetVariantImages updates the remembered images of a variant.
func (c *Cache) SetVariantImages(id int64, images []string) {
	ref, ok := c.variantRefs[id]
	if !ok {
		ref = &VariantRef{ID: id}
		c.variantRefs[id] = ref
	}
	ref.Images = append([]string(nil), images...)
}

// LookupBrand finds a brand by canonical name, case-insensitively.
func (c *Cache) LookupBrand(name string) (model.Brand, bool) {
	b, ok := c.brands[strings.ToLower(name)]
	return b, ok
}

// RememberBrand stores a brand unless its name is taken.
func (c *Cache) RememberBrand(b model.Brand) {
	key := strings.ToLower(b.Name)
	if _, taken := c.brands[key]; !taken {
		c.brands[key] = b
	}
}

// LookupCategory finds a category by name, case-insensitively.
func (c *Cache) LookupCategory(name string) (model.Category, bool) {
	cat, ok := c.categories[strings.ToLower(name)]
	return cat, ok
}

// RememberCategory stores a category unless its name is taken.
func (c *Cache) RememberCategory(cat model.Category) {
	key := strings.ToLower(cat.Name)
	if _, taken := c.categories[key]; !taken {
		c.categories[key] = cat
	}
}

// VariantKey builds the cache key of a variant. With ignoreRAM the RAM slot
// is a wildcard so RAM-less Apple records share one entry.
func VariantKey(productID int64, attrs model.Attributes, ignoreRAM bool) string {
	ram := intKey(attrs.RAMGB)
	if ignoreRAM {
		ram = "*"
	}
	return strings.Join([]string{
		strconv.FormatInt(productID, 10),
		ram,
		intKey(attrs.StorageGB),
		stringKey(attrs.Color),
		floatKey(attrs.DisplaySize),
		stringKey(attrs.ConnectivityType),
	}, "|")
}

func intKey(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func floatKey(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func stringKey(v *string) string {
	if v == nil {
		return "-"
	}
	return *v
}

// normalizeModelNumber uppercases and collapses whitespace.
func normalizeModelNumber(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}
