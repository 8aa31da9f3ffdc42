package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "projet_data_eng", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "backups/", cfg.Backup.Prefix)
	assert.Equal(t, 30, cfg.Backup.RetentionDays)
	assert.Equal(t, "sql", cfg.SQLDir)
	assert.False(t, cfg.FailClosed, "historical default is fail-open")
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DWH_DB_HOST", "db.internal")
	t.Setenv("DWH_DB_PORT", "6432")
	t.Setenv("BACKUP_RETENTION_DAYS", "7")
	t.Setenv("BACKUP_S3_PATH_STYLE", "true")
	t.Setenv("RLS_DEFAULT", "closed")

	cfg := Load()
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6432, cfg.Database.Port)
	assert.Equal(t, 7, cfg.Backup.RetentionDays)
	assert.True(t, cfg.Backup.UsePathStyle)
	assert.True(t, cfg.FailClosed)
}

func TestLoadBadIntFallsBack(t *testing.T) {
	t.Setenv("DWH_DB_PORT", "pas-un-port")

	cfg := Load()
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestGetDSN(t *testing.T) {
	c := DatabaseConfig{
		Host: "localhost", Port: 5432,
		User: "postgres", Password: "secret",
		Database: "projet_data_eng", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=secret dbname=projet_data_eng sslmode=disable",
		c.GetDSN())
}
