package stats

import (
	"sort"
	"strings"
	"sync"
	"time"

	"phone-catalog-ingest/internal/model"
)

// Entity names the catalog tables counted by the aggregator.
type Entity string

const (
	EntityBrand    Entity = "brand"
	EntityCategory Entity = "category"
	EntityProduct  Entity = "product"
	EntityVariant  Entity = "variant"
	EntityListing  Entity = "listing"
)

// ListingOutcome is what an upsert did to a listing row.
type ListingOutcome string

const (
	ListingCreated   ListingOutcome = "created"
	ListingUpdated   ListingOutcome = "updated"
	ListingUnchanged ListingOutcome = "unchanged"
)

type RecordCounts struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

type EntityCounts struct {
	Created   int `json:"created"`
	Existing  int `json:"existing"`
	Updated   int `json:"updated,omitempty"`
	Unchanged int `json:"unchanged,omitempty"`
}

// State is the serializable content of an aggregator, stored in checkpoints.
type State struct {
	RunID     string                  `json:"run_id"`
	StartedAt time.Time               `json:"started_at"`
	Records   RecordCounts            `json:"records"`
	Entities  map[Entity]EntityCounts `json:"entities"`
	Matches   map[model.MatchType]int `json:"matches"`
	CacheHits map[Entity]int          `json:"cache_hits"`
	Sightings map[int64][]string      `json:"sightings"`
	Errors    []ErrorEntry            `json:"errors"`
	Reviews   []ReviewFlag            `json:"reviews"`
}

// Aggregator accumulates per-run counters. The batch writes from one
// goroutine while the monitor reads, so every access takes the lock.
type Aggregator struct {
	mu sync.RWMutex

	runID         string
	startedAt     time.Time
	records       RecordCounts
	entities      map[Entity]EntityCounts
	matches       map[model.MatchType]int
	cacheHits     map[Entity]int
	sightings     map[int64]map[string]struct{}
	errors        []ErrorEntry
	reviews       []ReviewFlag
	currentRecord string
	lastError     string
}

// NewAggregator creates an empty aggregator for a run.
func NewAggregator(runID string) *Aggregator {
	return &Aggregator{
		runID:     runID,
		startedAt: time.Now(),
		entities:  make(map[Entity]EntityCounts),
		matches:   make(map[model.MatchType]int),
		cacheHits: make(map[Entity]int),
		sightings: make(map[int64]map[string]struct{}),
	}
}

// RunID returns the run identifier.
func (a *Aggregator) RunID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.runID
}

// SetTotal sets the number of records in the batch
func (a *Aggregator) SetTotal(total int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records.Total = total
}

// SetCurrent sets the record being processed
func (a *Aggregator) SetCurrent(identifier string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentRecord = identifier
}

// RecordSuccess counts a fully ingested record.
func (a *Aggregator) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records.Processed++
	a.records.Succeeded++
}

// RecordSkipped counts a record that was deliberately not ingested.
func (a *Aggregator) RecordSkipped() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records.Processed++
	a.records.Skipped++
}

// RecordFailed counts a record that could not be ingested and adds it to
// the error list.
func (a *Aggregator) RecordFailed(identifier string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records.Processed++
	a.records.Failed++
	a.appendError(identifier, err)
}

// RecordError adds a non-fatal error to the error list.
func (a *Aggregator) RecordError(identifier string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.appendError(identifier, err)
}

func (a *Aggregator) appendError(identifier string, err error) {
	entry := NewErrorEntry(identifier, err)
	a.errors = append(a.errors, entry)
	a.lastError = entry.Message
}

// RecordCreated increments the created counter of an entity
func (a *Aggregator) RecordCreated(e Entity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c := a.entities[e]
	c.Created++
	a.entities[e] = c
}

// RecordExisting increments the existing counter of an entity
func (a *Aggregator) RecordExisting(e Entity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c := a.entities[e]
	c.Existing++
	a.entities[e] = c
}

// RecordListing counts a listing upsert.
func (a *Aggregator) RecordListing(outcome ListingOutcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c := a.entities[EntityListing]
	switch outcome {
	case ListingCreated:
		c.Created++
	case ListingUpdated:
		c.Existing++
		c.Updated++
	default:
		c.Existing++
		c.Unchanged++
	}
	a.entities[EntityListing] = c
}

// RecordMatch increments the counter of the phase that resolved a product
func (a *Aggregator) RecordMatch(mt model.MatchType) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.matches[mt]++
}

// RecordCacheHit counts a lookup answered by the dedup cache
func (a *Aggregator) RecordCacheHit(e Entity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cacheHits[e]++
}

// RecordReview adds a manual review flag.
func (a *Aggregator) RecordReview(flag ReviewFlag) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reviews = append(a.reviews, flag)
}

// RecordSighting notes that a product was listed by a store.
func (a *Aggregator) RecordSighting(productID int64, store string) {
	store = strings.ToLower(strings.TrimSpace(store))
	if store == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	stores, ok := a.sightings[productID]
	if !ok {
		stores = make(map[string]struct{})
		a.sightings[productID] = stores
	}
	stores[store] = struct{}{}
}

// Errors returns a copy of the error list.
func (a *Aggregator) Errors() []ErrorEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]ErrorEntry(nil), a.errors...)
}

// Matches returns the per-phase counter of a match type.
func (a *Aggregator) Matches(mt model.MatchType) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.matches[mt]
}

// Entity returns the counters of one entity.
func (a *Aggregator) Entity(e Entity) EntityCounts {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.entities[e]
}

// CacheHits returns the cache hit counter of one entity.
func (a *Aggregator) CacheHits(e Entity) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cacheHits[e]
}

// Records returns the record counters.
func (a *Aggregator) Records() RecordCounts {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.records
}

// State returns a deep copy of the aggregator content.
func (a *Aggregator) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := State{
		RunID:     a.runID,
		StartedAt: a.startedAt,
		Records:   a.records,
		Entities:  make(map[Entity]EntityCounts, len(a.entities)),
		Matches:   make(map[model.MatchType]int, len(a.matches)),
		CacheHits: make(map[Entity]int, len(a.cacheHits)),
		Sightings: make(map[int64][]string, len(a.sightings)),
		Errors:    append([]ErrorEntry(nil), a.errors...),
		Reviews:   append([]ReviewFlag(nil), a.reviews...),
	}
	for k, v := range a.entities {
		s.Entities[k] = v
	}
	for k, v := range a.matches {
		s.Matches[k] = v
	}
	for k, v := range a.cacheHits {
		s.CacheHits[k] = v
	}
	for id, stores := range a.sightings {
		s.Sightings[id] = sortedKeys(stores)
	}
	return s
}

// Restore replaces the aggregator content with a saved state, used when a
// run resumes from a checkpoint.
func (a *Aggregator) Restore(s State) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if s.RunID != "" {
		a.runID = s.RunID
	}
	if !s.StartedAt.IsZero() {
		a.startedAt = s.StartedAt
	}
	total := a.records.Total
	a.records = s.Records
	if total > a.records.Total {
		a.records.Total = total
	}

	a.entities = make(map[Entity]EntityCounts, len(s.Entities))
	for k, v := range s.Entities {
		a.entities[k] = v
	}
	a.matches = make(map[model.MatchType]int, len(s.Matches))
	for k, v := range s.Matches {
		a.matches[k] = v
	}
	a.cacheHits = make(map[Entity]int, len(s.CacheHits))
	for k, v := range s.CacheHits {
		a.cacheHits[k] = v
	}
	a.sightings = make(map[int64]map[string]struct{}, len(s.Sightings))
	for id, stores := range s.Sightings {
		set := make(map[string]struct{}, len(stores))
		for _, st := range stores {
			set[st] = struct{}{}
		}
		a.sightings[id] = set
	}
	a.errors = append([]ErrorEntry(nil), s.Errors...)
	a.reviews = append([]ReviewFlag(nil), s.Reviews...)
}

// GetSnapshot returns a point-in-time view of progress
func (a *Aggregator) GetSnapshot() ProgressSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	elapsed := time.Since(a.startedAt)
	percentage := 0.0
	if a.records.Total > 0 {
		percentage = (float64(a.records.Processed) / float64(a.records.Total)) * 100
	}

	// Calculate ETA
	var eta time.Time
	var remaining time.Duration
	if a.records.Processed > 0 && a.records.Total > a.records.Processed {
		avgPerRecord := elapsed / time.Duration(a.records.Processed)
		remaining = avgPerRecord * time.Duration(a.records.Total-a.records.Processed)
		eta = time.Now().Add(remaining)
	}

	recordsPerSec := 0.0
	if elapsed.Seconds() > 0 {
		recordsPerSec = float64(a.records.Processed) / elapsed.Seconds()
	}

	matches := make(map[model.MatchType]int, len(a.matches))
	for k, v := range a.matches {
		matches[k] = v
	}

	return ProgressSnapshot{
		RunID:         a.runID,
		StartedAt:     a.startedAt,
		Elapsed:       elapsed,
		Records:       a.records,
		Percentage:    percentage,
		CurrentRecord: a.currentRecord,
		LastError:     a.lastError,
		ErrorCount:    len(a.errors),
		ReviewCount:   len(a.reviews),
		Matches:       matches,
		RecordsPerSec: recordsPerSec,
		ETA:           eta,
		Remaining:     remaining,
	}
}

// ProgressSnapshot is a point-in-time snapshot of progress
type ProgressSnapshot struct {
	RunID         string
	StartedAt     time.Time
	Elapsed       time.Duration
	Records       RecordCounts
	Percentage    float64
	CurrentRecord string
	LastError     string
	ErrorCount    int
	ReviewCount   int
	Matches       map[model.MatchType]int
	RecordsPerSec float64
	ETA           time.Time
	Remaining     time.Duration
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
