package config

import (
	"os"
	"strconv"
	"strings"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Config struct {
	Database DatabaseConfig
	Store    StoreConfig
	Matching MatchingConfig
	Ingest   IngestConfig
	LogLevel string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
	MaxConns int
	MinConns int
}

type StoreConfig struct {
	Driver     string
	SQLitePath string
}

// MatchingConfig holds the two independent thresholds: FuzzyThreshold is
// a trigram similarity in [0,1], ValidationThreshold an edit-distance
// score in [0,100].
type MatchingConfig struct {
	FuzzyThreshold      float64
	ValidationThreshold int
	ScopeToCategory     bool
}

type IngestConfig struct {
	PriceHistoryLimit int
	CheckpointFile    string
	CheckpointEvery   int
	MonitorPort       int
	ReportPath        string
}

func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "catalog"),
			User:     getEnv("DB_USER", "catalog"),
			Password: getEnv("DB_PASSWORD", ""),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 10),
			MinConns: getEnvInt("DB_MIN_CONNS", 2),
		},
		Store: StoreConfig{
			Driver:     strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
			SQLitePath: getEnv("SQLITE_PATH", "catalog.db"),
		},
		Matching: MatchingConfig{
			FuzzyThreshold:      getEnvFloat("FUZZY_MATCH_THRESHOLD", 0.4),
			ValidationThreshold: getEnvInt("VALIDATION_THRESHOLD", 90),
			ScopeToCategory:     getEnvBool("FUZZY_SCOPE_CATEGORY", true),
		},
		Ingest: IngestConfig{
			PriceHistoryLimit: getEnvInt("PRICE_HISTORY_LIMIT", 30),
			CheckpointFile:    getEnv("CHECKPOINT_FILE", "ingest_checkpoint.json"),
			CheckpointEvery:   getEnvInt("CHECKPOINT_EVERY", 100),
			MonitorPort:       getEnvInt("MONITOR_PORT", 8081),
			ReportPath:        getEnv("REPORT_PATH", "ingest_report.json"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
