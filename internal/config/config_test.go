package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"STORE_DRIVER", "FUZZY_MATCH_THRESHOLD", "VALIDATION_THRESHOLD", "FUZZY_SCOPE_CATEGORY", "PRICE_HISTORY_LIMIT"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 0.4, cfg.Matching.FuzzyThreshold)
	assert.Equal(t, 90, cfg.Matching.ValidationThreshold)
	assert.True(t, cfg.Matching.ScopeToCategory)
	assert.Equal(t, 30, cfg.Ingest.PriceHistoryLimit)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("FUZZY_MATCH_THRESHOLD", "0.55")
	t.Setenv("VALIDATION_THRESHOLD", "85")
	t.Setenv("FUZZY_SCOPE_CATEGORY", "false")
	t.Setenv("DB_PORT", "not-a-number")

	cfg := Load()
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, 0.55, cfg.Matching.FuzzyThreshold)
	assert.Equal(t, 85, cfg.Matching.ValidationThreshold)
	assert.False(t, cfg.Matching.ScopeToCategory)
	assert.Equal(t, 5432, cfg.Database.Port)
}
