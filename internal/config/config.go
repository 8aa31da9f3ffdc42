package config

import (
	"fmt"
	"os"
	"strconv"
)

// DatabaseConfig holds the PostgreSQL connection settings for the warehouse.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN builds a lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// BackupConfig holds the object-storage settings for datalake snapshots.
type BackupConfig struct {
	Endpoint      string // optional, for MinIO / Azurite-style gateways
	Region        string
	Bucket        string
	Prefix        string
	RetentionDays int
	UsePathStyle  bool
}

// Config is the process configuration for every dwh-* command.
type Config struct {
	Database DatabaseConfig
	Redis    struct {
		Addr     string
		Password string
		DB       int
	}
	Log struct {
		Level  string
		Format string
	}
	Backup BackupConfig
	Notify struct {
		WebhookURL string
		TimeoutSec int
	}
	// FailClosed flips the default RLS access decision for logins absent
	// from security.utilisateurs_zones. The historical behaviour is
	// fail-open; keep it unless the product owner says otherwise.
	FailClosed bool
	SQLDir     string
}

// Load reads the configuration from environment variables. Commands call
// godotenv.Load() first, so a local .env file works the same way the old
// terraform.tfvars file did.
func Load() *Config {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DWH_DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DWH_DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DWH_DB_USER", "postgres")
	cfg.Database.Password = getEnv("DWH_DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DWH_DB_NAME", "projet_data_eng")
	cfg.Database.SSLMode = getEnv("DWH_DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DWH_DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DWH_DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Backup.Endpoint = getEnv("BACKUP_S3_ENDPOINT", "")
	cfg.Backup.Region = getEnv("BACKUP_S3_REGION", "eu-west-3")
	cfg.Backup.Bucket = getEnv("BACKUP_S3_BUCKET", "raw")
	cfg.Backup.Prefix = getEnv("BACKUP_S3_PREFIX", "backups/")
	cfg.Backup.RetentionDays = parseInt(getEnv("BACKUP_RETENTION_DAYS", "30"), 30)
	cfg.Backup.UsePathStyle = getEnv("BACKUP_S3_PATH_STYLE", "false") == "true"

	cfg.Notify.WebhookURL = getEnv("ETL_NOTIFY_WEBHOOK", "")
	cfg.Notify.TimeoutSec = parseInt(getEnv("ETL_NOTIFY_TIMEOUT", "10"), 10)

	cfg.FailClosed = getEnv("RLS_DEFAULT", "open") == "closed"
	cfg.SQLDir = getEnv("DWH_SQL_DIR", "sql")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
