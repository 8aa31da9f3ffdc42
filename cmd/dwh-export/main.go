package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"hdf-dwh/internal/config"
	"hdf-dwh/internal/database"
	"hdf-dwh/internal/logger"
	"hdf-dwh/internal/repository"
	"hdf-dwh/internal/service"
)

func main() {
	var (
		out     = flag.String("out", "", "output .xlsx path (default datamarts_<date>.xlsx)")
		timeout = flag.Duration("timeout", 5*time.Minute, "export timeout")
	)
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	zlog, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "dwh-export")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer database.Close(db)

	path := *out
	if path == "" {
		path = fmt.Sprintf("datamarts_%s.xlsx", time.Now().Format("20060102"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	export := service.NewExportService(repository.NewPostgresDatamartsRepository(db), zlog)
	if err := export.ExportWorkbook(ctx, path); err != nil {
		log.Fatalf("Export failed: %v", err)
	}
	fmt.Printf("Workbook written: %s\n", path)
}
