package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"hdf-dwh/internal/backup"
	"hdf-dwh/internal/config"
	"hdf-dwh/internal/database"
	"hdf-dwh/internal/logger"
	"hdf-dwh/internal/repository"
)

func main() {
	var (
		dump    = flag.String("dump", "", "path to the pg_dump archive to upload (required)")
		timeout = flag.Duration("timeout", 15*time.Minute, "upload timeout")
	)
	flag.Parse()

	if *dump == "" {
		log.Fatal("Usage: dwh-backup -dump <archive.dump>")
	}

	_ = godotenv.Load()
	cfg := config.Load()

	zlog, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "dwh-backup")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer database.Close(db)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	storage, err := backup.NewS3Storage(ctx, cfg.Backup)
	if err != nil {
		log.Fatalf("Cannot reach object storage: %v", err)
	}

	runner := backup.NewRunner(storage,
		repository.NewPostgresEtlLogsRepository(db),
		clockwork.NewRealClock(), zlog,
		cfg.Backup.Prefix, cfg.Database.Database, cfg.Backup.RetentionDays)

	if err := runner.Run(ctx, *dump); err != nil {
		log.Fatalf("Backup failed: %v", err)
	}
	fmt.Println("Backup complete")
}
