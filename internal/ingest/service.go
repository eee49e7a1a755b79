// Package ingest runs normalized listing files through the dedup engine and
// keeps the catalog listings up to date.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"phone-catalog-ingest/internal/dedup"
	"phone-catalog-ingest/internal/matching"
	"phone-catalog-ingest/internal/model"
	"phone-catalog-ingest/internal/stats"
)

// ErrSkipped marks a record that is deliberately not ingested.
var ErrSkipped = errors.New("record skipped")

// FailureRecorder persists failed records of a run.
type FailureRecorder interface {
	Record(ctx context.Context, runID string, entry stats.ErrorEntry) error
}

// Config holds configuration for the ingest service
type Config struct {
	FuzzyThreshold       float64
	ScopeFuzzyToCategory bool
	ValidationThreshold  int
	PriceHistoryLimit    int
	CheckpointFile       string
	CheckpointEvery      int
	Resume               bool
	ReportPath           string
	MonitorPort          int
	EnableMonitoring     bool
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		FuzzyThreshold:       dedup.DefaultFuzzyThreshold,
		ScopeFuzzyToCategory: true,
		ValidationThreshold:  matching.DefaultValidationThreshold,
		PriceHistoryLimit:    model.DefaultPriceHistoryLimit,
		CheckpointFile:       "ingest_checkpoint.json",
		CheckpointEvery:      100,
		ReportPath:           "ingest_report.json",
		MonitorPort:          8081,
		EnableMonitoring:     true,
	}
}

// Service orchestrates an ingest run
type Service struct {
	config     Config
	store      dedup.Store
	engine     *dedup.Engine
	validator  *matching.Validator
	checkpoint *CheckpointManager
	failures   FailureRecorder
	ping       PingFunc
	current    atomic.Pointer[stats.Aggregator]
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a new ingest service
func NewService(config Config, store dedup.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if config.CheckpointEvery <= 0 {
		config.CheckpointEvery = 100
	}
	if config.PriceHistoryLimit <= 0 {
		config.PriceHistoryLimit = model.DefaultPriceHistoryLimit
	}
	return &Service{
		config: config,
		store:  store,
		engine: dedup.NewEngine(store, nil, logger, dedup.Options{
			FuzzyThreshold:       config.FuzzyThreshold,
			ScopeFuzzyToCategory: config.ScopeFuzzyToCategory,
		}),
		validator:  matching.NewValidator(config.ValidationThreshold),
		checkpoint: NewCheckpointManager(config.CheckpointFile),
		logger:     logger,
		now:        time.Now,
	}
}

// SetFailureRecorder sets where failed records are persisted
func (s *Service) SetFailureRecorder(r FailureRecorder) {
	s.failures = r
}

// SetPing sets the store health check used by the monitor
func (s *Service) SetPing(ping PingFunc) {
	s.ping = ping
}

// Engine returns the dedup engine
func (s *Service) Engine() *dedup.Engine {
	return s.engine
}

// Stats returns the aggregator of the current or last run, nil before the
// first run.
func (s *Service) Stats() *stats.Aggregator {
	return s.current.Load()
}

// Run ingests the files in order. Records are processed one at a time; the
// cache is reset at the start so each run is independent. A cancelled
// context stops the run between records after saving a checkpoint.
func (s *Service) Run(ctx context.Context, paths []string) (stats.Report, error) {
	var files [][]Record
	total := 0
	for _, path := range paths {
		records, err := LoadFile(path)
		if err != nil {
			return stats.Report{}, err
		}
		files = append(files, records)
		total += len(records)
	}

	cp, cpFile := s.resumePoint(paths)
	runID := uuid.New().String()
	if cp != nil && cp.RunID != "" {
		runID = cp.RunID
	}

	agg := stats.NewAggregator(runID)
	agg.SetTotal(total)
	if cp != nil {
		agg.Restore(cp.Stats)
	}
	s.engine.Reset(agg)
	s.current.Store(agg)

	s.logger.Info("Starting ingest run",
		"run_id", runID,
		"files", len(paths),
		"records", total,
		"resumed", cp != nil,
	)

	if s.config.EnableMonitoring {
		monitor := NewHTTPMonitor(s.config.MonitorPort, s.Stats, s.ping, s.logger)
		monitor.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			monitor.Stop(stopCtx)
		}()
	}

	processed := 0
	last := Checkpoint{RunID: runID}
	if cp != nil {
		last.File, last.Index = cp.File, cp.Index
	}

	for fileIdx, records := range files {
		if cp != nil && fileIdx < cpFile {
			continue
		}
		for _, rec := range records {
			if cp != nil && fileIdx == cpFile && rec.Index <= cp.Index {
				continue
			}
			if err := ctx.Err(); err != nil {
				s.logger.Info("Context cancelled, stopping run", "run_id", runID, "processed", processed)
				s.saveCheckpoint(last, agg)
				return agg.Report(), err
			}

			s.processRecord(ctx, agg, rec)
			processed++
			last.File, last.Index = rec.File, rec.Index

			if processed%s.config.CheckpointEvery == 0 {
				s.saveCheckpoint(last, agg)
			}
		}
	}

	report := agg.Report()
	if s.config.ReportPath != "" {
		if err := report.WriteFile(s.config.ReportPath); err != nil {
			return report, err
		}
		s.logger.Info("Report written", "path", s.config.ReportPath)
	}
	if err := s.checkpoint.Delete(); err != nil {
		s.logger.Warn("Failed to delete checkpoint", "error", err)
	}

	s.printFinalStats(report)
	return report, nil
}

// resumePoint loads the checkpoint when resuming and returns it with the
// position of its file in paths.
func (s *Service) resumePoint(paths []string) (*Checkpoint, int) {
	if !s.config.Resume || !s.checkpoint.Exists() {
		return nil, 0
	}
	cp, err := s.checkpoint.Load()
	if err != nil {
		s.logger.Warn("Failed to load checkpoint, starting fresh", "error", err)
		return nil, 0
	}
	if cp == nil {
		return nil, 0
	}
	for i, path := range paths {
		if path == cp.File {
			s.logger.Info("Resuming from checkpoint",
				"run_id", cp.RunID,
				"file", cp.File,
				"index", cp.Index,
				"saved_at", cp.SavedAt,
			)
			return cp, i
		}
	}
	s.logger.Warn("Checkpoint file not in this run, starting fresh", "file", cp.File)
	return nil, 0
}

func (s *Service) saveCheckpoint(cp Checkpoint, agg *stats.Aggregator) {
	if cp.File == "" {
		return
	}
	cp.Stats = agg.State()
	if err := s.checkpoint.Save(cp); err != nil {
		s.logger.Warn("Failed to save checkpoint", "error", err)
		return
	}
	s.logger.Info("Checkpoint saved", "file", cp.File, "index", cp.Index)
}

// processRecord ingests one record and books its outcome.
func (s *Service) processRecord(ctx context.Context, agg *stats.Aggregator, rec Record) {
	id := rec.Identifier()
	agg.SetCurrent(id)

	if rec.Err != nil {
		s.fail(ctx, agg, id, rec.Err)
		return
	}

	_, err := s.ingest(ctx, agg, rec.Product)
	switch {
	case errors.Is(err, ErrSkipped):
		agg.RecordSkipped()
	case err != nil:
		s.fail(ctx, agg, id, err)
	default:
		agg.RecordSuccess()
	}
}

// Ingest runs a single record through the pipeline of the current run. It
// returns ErrSkipped for accessories.
func (s *Service) Ingest(ctx context.Context, rec model.NormalizedProduct) (model.RecordOutcome, error) {
	agg := s.current.Load()
	if agg == nil {
		agg = stats.NewAggregator(uuid.New().String())
		s.engine.Reset(agg)
		s.current.Store(agg)
	}
	return s.ingest(ctx, agg, rec)
}

func (s *Service) ingest(ctx context.Context, agg *stats.Aggregator, rec model.NormalizedProduct) (model.RecordOutcome, error) {
	hint := ""
	if rec.CategoryHint != nil {
		hint = *rec.CategoryHint
	}
	if matching.IsAccessory(rec.Title, rec.ModelName, hint) {
		s.logger.Debug("Skipping accessory", "record", rec.Identifier(), "title", rec.Title)
		return model.RecordOutcome{}, ErrSkipped
	}

	fillFromTitle(&rec)

	brand, err := s.engine.ResolveBrand(ctx, rec.Brand)
	if err != nil {
		return model.RecordOutcome{}, err
	}
	category, err := s.engine.ResolveCategory(ctx, hint, rec.ModelName)
	if err != nil {
		return model.RecordOutcome{}, err
	}

	s.validate(agg, rec, brand.Name)

	product, err := s.engine.ResolveProduct(ctx, rec, brand.ID, category.ID)
	if err != nil {
		return model.RecordOutcome{}, err
	}
	variant, err := s.engine.ResolveVariant(ctx, rec, product.ProductID, brand.Name)
	if err != nil {
		return model.RecordOutcome{}, err
	}

	outcome := model.RecordOutcome{
		ProductID: product.ProductID,
		VariantID: variant.VariantID,
		MatchType: product.MatchType,
	}

	if rec.ListingFields.URL != "" {
		listingID, err := s.upsertListing(ctx, agg, rec, variant.VariantID)
		if err != nil {
			return outcome, err
		}
		outcome.ListingID = listingID
	}
	agg.RecordSighting(product.ProductID, rec.ListingFields.StoreName)

	return outcome, nil
}

// fillFromTitle completes variant attributes the record left empty with
// values parsed from its title. Present values are never overwritten.
func fillFromTitle(rec *model.NormalizedProduct) {
	if rec.Title == "" {
		return
	}
	hints := matching.ExtractVariantHints(rec.Title)
	va := &rec.VariantAttributes

	if va.RAM == nil && hints.RAMGB != nil {
		ram := float64(*hints.RAMGB)
		va.RAM = &ram
	}
	if va.Storage == nil && hints.StorageGB != nil {
		storage := float64(*hints.StorageGB)
		va.Storage = &storage
	}
	if va.Color == nil && hints.Color != "" {
		color := hints.Color
		va.Color = &color
	}
	if va.DisplaySize == nil && hints.DisplaySize != nil {
		size := *hints.DisplaySize
		va.DisplaySize = &size
	}
	if va.ConnectivityType == nil && hints.ConnectivityType != "" {
		conn := hints.ConnectivityType
		va.ConnectivityType = &conn
	}
}

// validate compares the brand and model of the specification table with
// the record's own and flags disagreements for review.
func (s *Service) validate(agg *stats.Aggregator, rec model.NormalizedProduct, brand string) {
	if len(rec.KeySpecifications) == 0 {
		return
	}
	id := rec.Identifier()

	if specBrand := specString(rec.KeySpecifications, "brand", "Brand", "manufacturer", "Manufacturer"); specBrand != "" {
		if v := s.validator.ValidateBrand(specBrand, rec.Brand); v.NeedsReview {
			agg.RecordReview(stats.ReviewFlag{Identifier: id, Field: "brand", Expected: specBrand, Actual: rec.Brand, Score: v.Score})
			s.logger.Debug("Brand needs review", "record", id, "spec_brand", specBrand, "brand", rec.Brand, "score", v.Score)
		}
	}
	if specModel := specString(rec.KeySpecifications, "model_name", "Model Name", "model", "Model"); specModel != "" {
		if v := s.validator.ValidateModel(specModel, rec.ModelName, brand); v.NeedsReview {
			agg.RecordReview(stats.ReviewFlag{Identifier: id, Field: "model_name", Expected: specModel, Actual: rec.ModelName, Score: v.Score})
			s.logger.Debug("Model needs review", "record", id, "spec_model", specModel, "model_name", rec.ModelName, "score", v.Score)
		}
	}
}

func specString(specs map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := specs[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func (s *Service) fail(ctx context.Context, agg *stats.Aggregator, id string, err error) {
	agg.RecordFailed(id, err)
	s.logger.Warn("Record failed", "record", id, "kind", stats.ClassifyError(err), "error", err)

	if s.failures == nil {
		return
	}
	if rerr := s.failures.Record(ctx, agg.RunID(), stats.NewErrorEntry(id, err)); rerr != nil {
		s.logger.Warn("Failed to save failure record", "record", id, "error", rerr)
	}
}

// printFinalStats logs the final run statistics
func (s *Service) printFinalStats(r stats.Report) {
	s.logger.Info("Ingest completed",
		"run_id", r.RunID,
		"duration", r.Duration,
		"total", r.Records.Total,
		"processed", r.Records.Processed,
		"succeeded", r.Records.Succeeded,
		"failed", r.Records.Failed,
		"skipped", r.Records.Skipped,
		"products_created", r.Entities[stats.EntityProduct].Created,
		"products_existing", r.Entities[stats.EntityProduct].Existing,
		"variants_created", r.Entities[stats.EntityVariant].Created,
		"multi_store_products", r.Overlap.MultiStoreProducts,
		"errors", len(r.Errors),
		"reviews", len(r.Reviews),
	)
}
