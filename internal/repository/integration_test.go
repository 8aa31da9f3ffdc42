//go:build integration
// +build integration

package repository

import (
	"database/sql"
	"os"
	"strconv"
	"testing"

	"hdf-dwh/internal/config"
	"hdf-dwh/internal/database"
)

// getTestDB opens the integration database, or skips the test when none
// is reachable. Integration tests expect a database that already ran the
// sql/ deployment scripts.
func getTestDB(t *testing.T) *sql.DB {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Host:     testEnv("TEST_DB_HOST", "localhost"),
		Port:     testEnvInt("TEST_DB_PORT", 5432),
		User:     testEnv("TEST_DB_USER", "postgres"),
		Password: testEnv("TEST_DB_PASSWORD", "postgres"),
		Database: testEnv("TEST_DB_NAME", "projet_data_eng"),
		SSLMode:  testEnv("TEST_DB_SSLMODE", "disable"),
	}

	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to database: %v", err)
		return nil
	}
	return db
}

func testEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func testEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
