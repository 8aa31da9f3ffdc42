package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"hdf-dwh/internal/config"
	"hdf-dwh/internal/database"
	"hdf-dwh/internal/logger"
	"hdf-dwh/internal/repository"
	"hdf-dwh/internal/service"
	"hdf-dwh/internal/store"
)

func main() {
	var (
		staging    = flag.Bool("staging", false, "run only the staging step")
		dimensions = flag.Bool("dimensions", false, "run only the dimension step")
		facts      = flag.Bool("facts", false, "run only the fact step")
		refresh    = flag.Bool("refresh", false, "run only the refresh step")
		communes   = flag.String("communes", "data/communes.json", "path to the communes reference file")
		timeout    = flag.Duration("timeout", 30*time.Minute, "overall run timeout")
	)
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	zlog, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "dwh-etl")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer database.Close(db)

	steps := service.PipelineSteps{
		Staging:    *staging,
		Dimensions: *dimensions,
		Facts:      *facts,
		Refresh:    *refresh,
	}
	if !*staging && !*dimensions && !*facts && !*refresh {
		steps = service.FullRun()
	}

	clock := clockwork.NewRealClock()
	geographieRepo := repository.NewPostgresGeographieRepository(db)
	activiteRepo := repository.NewPostgresActiviteRepository(db)
	demographieRepo := repository.NewPostgresDemographieRepository(db)
	faitsRepo := repository.NewPostgresFaitsRepository(db)
	datamartsRepo := repository.NewPostgresDatamartsRepository(db)
	logsRepo := repository.NewPostgresEtlLogsRepository(db)

	scd := service.NewSCDService(activiteRepo, geographieRepo, demographieRepo, logsRepo, clock, zlog)

	var notifier service.Notifier = service.NopNotifier{}
	if cfg.Notify.WebhookURL != "" {
		notifier = service.NewWebhookNotifier(cfg.Notify.WebhookURL,
			time.Duration(cfg.Notify.TimeoutSec)*time.Second, zlog)
	}

	locker := store.NewRedisLocker(store.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB))

	pipeline := service.NewPipeline(geographieRepo, activiteRepo, demographieRepo,
		faitsRepo, datamartsRepo, logsRepo, scd, locker, notifier, clock, zlog)
	pipeline.CommunesPath = *communes

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	report, err := pipeline.Run(ctx, steps)
	if errors.Is(err, service.ErrPipelineLocked) {
		log.Fatalf("Aborted: %v", err)
	}
	if report != nil {
		fmt.Println(report.Summary())
		for _, step := range report.Etapes {
			line := fmt.Sprintf("  %-12s %-7s %8d lignes %8.1fs", step.Etape, step.Statut, step.NbLignes, step.DureeSecondes)
			if step.Erreur != "" {
				line += "  " + step.Erreur
			}
			fmt.Println(line)
		}
	}
	if err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}
}
