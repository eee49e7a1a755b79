package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"phone-catalog-ingest/internal/config"
	"phone-catalog-ingest/internal/database"
	"phone-catalog-ingest/internal/dedup"
	"phone-catalog-ingest/internal/ingest"
	"phone-catalog-ingest/internal/memstore"
	"phone-catalog-ingest/internal/repository"
	"phone-catalog-ingest/internal/sqlitestore"
)

func main() {
	cfg := config.Load()

	var (
		// Store flags
		driver     = flag.String("store", cfg.Store.Driver, "Store driver (postgres, sqlite, memory)")
		sqlitePath = flag.String("sqlite-path", cfg.Store.SQLitePath, "SQLite database file")

		// Database flags
		dbHost     = flag.String("db-host", cfg.Database.Host, "Database host")
		dbPort     = flag.Int("db-port", cfg.Database.Port, "Database port")
		dbName     = flag.String("db-name", cfg.Database.Name, "Database name")
		dbUser     = flag.String("db-user", cfg.Database.User, "Database user")
		dbPassword = flag.String("db-password", cfg.Database.Password, "Database password")
		dbSSLMode  = flag.String("db-sslmode", cfg.Database.SSLMode, "Database SSL mode")

		// Matching flags
		fuzzyThreshold      = flag.Float64("fuzzy-threshold", cfg.Matching.FuzzyThreshold, "Trigram similarity a fuzzy match must exceed (0..1)")
		validationThreshold = flag.Int("validation-threshold", cfg.Matching.ValidationThreshold, "Score below which spec/title disagreements are flagged (0..100)")
		scopeToCategory     = flag.Bool("fuzzy-scope-category", cfg.Matching.ScopeToCategory, "Restrict fuzzy matches to the record's category")

		// Run flags
		historyLimit    = flag.Int("price-history", cfg.Ingest.PriceHistoryLimit, "Price history entries kept per listing")
		checkpointFile  = flag.String("checkpoint-file", cfg.Ingest.CheckpointFile, "Checkpoint file path")
		checkpointEvery = flag.Int("checkpoint-every", cfg.Ingest.CheckpointEvery, "Save checkpoint every N records")
		resume          = flag.Bool("resume", false, "Resume from the checkpoint file")
		reportPath      = flag.String("report", cfg.Ingest.ReportPath, "Run report output path")
		dryRun          = flag.Bool("dry-run", false, "Dry run mode (in-memory store, nothing persisted)")
		monitorPort     = flag.Int("monitor-port", cfg.Ingest.MonitorPort, "HTTP monitoring server port")
		noMonitor       = flag.Bool("no-monitor", false, "Disable HTTP monitoring")
		logLevel        = flag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] file.json [file.json ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		flag.Usage()
		os.Exit(1)
	}
	if *dryRun {
		*driver = config.DriverMemory
	}

	// Setup logger
	logger := setupLogger(*logLevel)

	logger.Info("starting catalog ingest",
		"store", *driver,
		"files", len(files),
		"fuzzy_threshold", *fuzzyThreshold,
		"validation_threshold", *validationThreshold,
		"resume", *resume,
		"dry_run", *dryRun,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down gracefully", "signal", sig)
		cancel()
	}()

	var (
		store    dedup.Store
		recorder ingest.FailureRecorder
		ping     ingest.PingFunc
	)

	switch *driver {
	case config.DriverPostgres:
		if *dbPassword == "" {
			fmt.Fprintln(os.Stderr, "Error: database password is required (use -db-password or DB_PASSWORD env)")
			os.Exit(1)
		}
		dbPool, err := database.Connect(ctx, database.ConnectionConfig{
			Host:     *dbHost,
			Port:     *dbPort,
			Database: *dbName,
			User:     *dbUser,
			Password: *dbPassword,
			SSLMode:  *dbSSLMode,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()
		logger.Info("connected to database", "db_host", *dbHost, "db_name", *dbName)

		store = repository.NewStore(dbPool)
		recorder = repository.NewFailureRepo(dbPool)
		ping = dbPool.Ping

	case config.DriverSQLite:
		sqlite, err := sqlitestore.Open(*sqlitePath)
		if err != nil {
			logger.Error("failed to open sqlite store", "error", err)
			os.Exit(1)
		}
		defer sqlite.Close()
		logger.Info("opened sqlite store", "path", *sqlitePath)

		store = sqlite
		recorder = sqlite
		ping = sqlite.Ping

	case config.DriverMemory:
		store = memstore.New()

	default:
		fmt.Fprintf(os.Stderr, "Error: unknown store driver %q\n", *driver)
		os.Exit(1)
	}

	ingestConfig := ingest.Config{
		FuzzyThreshold:       *fuzzyThreshold,
		ScopeFuzzyToCategory: *scopeToCategory,
		ValidationThreshold:  *validationThreshold,
		PriceHistoryLimit:    *historyLimit,
		CheckpointFile:       *checkpointFile,
		CheckpointEvery:      *checkpointEvery,
		Resume:               *resume,
		ReportPath:           *reportPath,
		MonitorPort:          *monitorPort,
		EnableMonitoring:     !*noMonitor,
	}

	service := ingest.NewService(ingestConfig, store, logger)
	if recorder != nil {
		service.SetFailureRecorder(recorder)
	}
	if ping != nil {
		service.SetPing(ping)
	}

	report, err := service.Run(ctx, files)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("ingest cancelled, checkpoint saved", "checkpoint", *checkpointFile)
			os.Exit(0)
		}
		logger.Error("ingest failed", "error", err)
		os.Exit(1)
	}

	logger.Info("ingest completed successfully",
		"run_id", report.RunID,
		"succeeded", report.Records.Succeeded,
		"failed", report.Records.Failed,
	)
}

// setupLogger creates a structured logger with the specified level
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}
