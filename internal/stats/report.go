package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"phone-catalog-ingest/internal/model"
)

// Overlap describes how many products are listed by more than one store.
type Overlap struct {
	Products           int            `json:"products"`
	MultiStoreProducts int            `json:"multi_store_products"`
	ByStoreCount       map[int]int    `json:"by_store_count"`
	StorePairs         map[string]int `json:"store_pairs"`
	ProductsPerStore   map[string]int `json:"products_per_store"`
}

// Report is the final aggregate of a run.
type Report struct {
	RunID      string                  `json:"run_id"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
	Duration   string                  `json:"duration"`
	Records    RecordCounts            `json:"records"`
	Entities   map[Entity]EntityCounts `json:"entities"`
	Matches    map[model.MatchType]int `json:"matches"`
	CacheHits  map[Entity]int          `json:"cache_hits"`
	Overlap    Overlap                 `json:"overlap"`
	Errors     []ErrorEntry            `json:"errors"`
	Reviews    []ReviewFlag            `json:"reviews"`
}

// Report builds the aggregate report from the current state.
func (a *Aggregator) Report() Report {
	s := a.State()
	now := time.Now()

	matches := make(map[model.MatchType]int, len(model.MatchTypes))
	for _, mt := range model.MatchTypes {
		matches[mt] = s.Matches[mt]
	}

	errs := s.Errors
	if errs == nil {
		errs = []ErrorEntry{}
	}
	reviews := s.Reviews
	if reviews == nil {
		reviews = []ReviewFlag{}
	}

	return Report{
		RunID:      s.RunID,
		StartedAt:  s.StartedAt,
		FinishedAt: now,
		Duration:   now.Sub(s.StartedAt).Round(time.Millisecond).String(),
		Records:    s.Records,
		Entities:   s.Entities,
		Matches:    matches,
		CacheHits:  s.CacheHits,
		Overlap:    ComputeOverlap(s.Sightings),
		Errors:     errs,
		Reviews:    reviews,
	}
}

// ComputeOverlap derives cross-store overlap metrics from the stores each
// product was seen on.
func ComputeOverlap(sightings map[int64][]string) Overlap {
	o := Overlap{
		ByStoreCount:     make(map[int]int),
		StorePairs:       make(map[string]int),
		ProductsPerStore: make(map[string]int),
	}

	for _, stores := range sightings {
		if len(stores) == 0 {
			continue
		}
		sorted := append([]string(nil), stores...)
		sort.Strings(sorted)

		o.Products++
		o.ByStoreCount[len(sorted)]++
		if len(sorted) >= 2 {
			o.MultiStoreProducts++
		}
		for i, st := range sorted {
			o.ProductsPerStore[st]++
			for _, other := range sorted[i+1:] {
				o.StorePairs[st+"+"+other]++
			}
		}
	}
	return o
}

// WriteFile writes the report as indented JSON.
func (r Report) WriteFile(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}
