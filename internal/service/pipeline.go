package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"hdf-dwh/internal/domain"
	"hdf-dwh/internal/repository"
	"hdf-dwh/internal/store"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// pipelineLockKey guards the whole run: dimension merges must never
// interleave between two orchestrators.
const pipelineLockKey = "hdf-dwh:etl:lock"

// pipelineLockTTL bounds a crashed run; a healthy run releases earlier.
const pipelineLockTTL = 2 * time.Hour

// ErrPipelineLocked is returned when another orchestrator owns the run
// lock.
var ErrPipelineLocked = errors.New("another pipeline run is in progress")

// PipelineSteps selects what a run executes. The zero value runs nothing;
// FullRun() selects everything.
type PipelineSteps struct {
	Staging    bool
	Dimensions bool
	Facts      bool
	Refresh    bool
}

func FullRun() PipelineSteps {
	return PipelineSteps{Staging: true, Dimensions: true, Facts: true, Refresh: true}
}

// Pipeline orchestrates an ETL run: staging snapshot, dimension seeds and
// SCD merge, fact loads, statistics refresh. Every step is bracketed by
// DEBUT/SUCCES (or ERREUR) audit rows; the run report is posted to the
// notifier at the end.
type Pipeline struct {
	geographieRepo  repository.GeographieRepository
	activiteRepo    repository.ActiviteRepository
	demographieRepo repository.DemographieRepository
	faitsRepo       repository.FaitsRepository
	datamartsRepo   repository.DatamartsRepository
	logsRepo        repository.EtlLogsRepository
	scd             SCDService
	locker          store.Locker
	notifier        Notifier
	clock           clockwork.Clock
	logger          *zap.Logger

	// CommunesPath is the reference file staged by the staging step.
	CommunesPath string
}

func NewPipeline(
	geographieRepo repository.GeographieRepository,
	activiteRepo repository.ActiviteRepository,
	demographieRepo repository.DemographieRepository,
	faitsRepo repository.FaitsRepository,
	datamartsRepo repository.DatamartsRepository,
	logsRepo repository.EtlLogsRepository,
	scd SCDService,
	locker store.Locker,
	notifier Notifier,
	clock clockwork.Clock,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		geographieRepo:  geographieRepo,
		activiteRepo:    activiteRepo,
		demographieRepo: demographieRepo,
		faitsRepo:       faitsRepo,
		datamartsRepo:   datamartsRepo,
		logsRepo:        logsRepo,
		scd:             scd,
		locker:          locker,
		notifier:        notifier,
		clock:           clock,
		logger:          logger,
		CommunesPath:    "data/communes.json",
	}
}

// Run executes the selected steps under the advisory lock and returns the
// run report. A step failure stops the run; completed steps stay
// committed.
func (p *Pipeline) Run(ctx context.Context, steps PipelineSteps) (*RunReport, error) {
	runID := uuid.New().String()
	started := p.clock.Now()

	if err := p.locker.Acquire(ctx, pipelineLockKey, runID, pipelineLockTTL); err != nil {
		if errors.Is(err, store.ErrLockHeld) {
			p.logger.Warn("pipeline lock held, aborting", zap.String("run_id", runID))
			return nil, ErrPipelineLocked
		}
		return nil, fmt.Errorf("failed to acquire pipeline lock: %w", err)
	}
	defer func() {
		if err := p.locker.Release(context.WithoutCancel(ctx), pipelineLockKey, runID); err != nil {
			p.logger.Error("failed to release pipeline lock", zap.Error(err))
		}
	}()

	p.logger.Info("pipeline run started", zap.String("run_id", runID))

	report := &RunReport{
		RunID:         runID,
		DateExecution: started,
		Statut:        domain.StatutSucces,
	}

	type step struct {
		name    string
		enabled bool
		run     func(context.Context) (int64, error)
	}
	plan := []step{
		{"STAGING", steps.Staging, p.runStaging},
		{"DIMENSIONS", steps.Dimensions, p.runDimensions},
		{"FAITS", steps.Facts, p.runFacts},
		{"REFRESH", steps.Refresh, p.runRefresh},
	}

	var runErr error
	for _, st := range plan {
		if !st.enabled {
			continue
		}
		rows, dur, err := p.runStep(ctx, st.name, st.run)
		sr := StepReport{Etape: st.name, Statut: domain.StatutSucces, NbLignes: rows, DureeSecondes: dur}
		if err != nil {
			sr.Statut = domain.StatutErreur
			sr.Erreur = err.Error()
			report.Statut = domain.StatutErreur
			runErr = fmt.Errorf("step %s failed: %w", st.name, err)
		}
		report.Etapes = append(report.Etapes, sr)
		if err != nil {
			break
		}
	}

	report.DureeSecondes = p.clock.Since(started).Seconds()
	p.notifier.NotifyRun(ctx, report)
	p.logger.Info("pipeline run finished",
		zap.String("run_id", runID),
		zap.String("statut", report.Statut),
		zap.Float64("duree_secondes", report.DureeSecondes))
	return report, runErr
}

// runStep brackets one step with DEBUT and SUCCES/ERREUR audit rows.
func (p *Pipeline) runStep(ctx context.Context, name string, run func(context.Context) (int64, error)) (int64, float64, error) {
	start := p.clock.Now()
	p.audit(ctx, &domain.LogEntry{
		Etape:  "ETL_" + name,
		Statut: domain.StatutDebut,
	})

	rows, err := run(ctx)
	dur := p.clock.Since(start).Seconds()
	if err != nil {
		p.audit(ctx, &domain.LogEntry{
			Etape:         "ETL_" + name,
			Statut:        domain.StatutErreur,
			DureeSecondes: dur,
			Message:       err.Error(),
		})
		if _, ierr := p.logsRepo.InsertError(ctx, &domain.ErrorEntry{
			Source:        "ETL_" + name,
			TypeErreur:    "PIPELINE",
			MessageErreur: err.Error(),
		}); ierr != nil {
			p.logger.Error("failed to record error entry", zap.Error(ierr))
		}
		return 0, dur, err
	}

	p.audit(ctx, &domain.LogEntry{
		Etape:         "ETL_" + name,
		Statut:        domain.StatutSucces,
		NbLignes:      rows,
		DureeSecondes: dur,
	})
	return rows, dur, nil
}

func (p *Pipeline) audit(ctx context.Context, entry *domain.LogEntry) {
	if err := p.logsRepo.InsertLog(ctx, entry); err != nil {
		p.logger.Error("failed to write audit entry",
			zap.String("etape", entry.Etape), zap.Error(err))
	}
}

// runStaging refreshes the stg.communes snapshot from the reference file.
func (p *Pipeline) runStaging(ctx context.Context) (int64, error) {
	communes, err := LoadCommunesFile(p.CommunesPath)
	if err != nil {
		return 0, err
	}
	return p.geographieRepo.ReplaceStagingCommunes(ctx, communes)
}

// runDimensions seeds the reference dimensions (idempotent) and merges the
// staging snapshot into dim_geographie.
func (p *Pipeline) runDimensions(ctx context.Context) (int64, error) {
	var total int64

	n, err := p.geographieRepo.SeedDepartements(ctx)
	if err != nil {
		return total, err
	}
	total += n

	if n, err = p.activiteRepo.Seed(ctx); err != nil {
		return total, err
	}
	total += n

	if n, err = p.demographieRepo.Seed(ctx); err != nil {
		return total, err
	}
	total += n

	merge, err := p.scd.Type2Merge(ctx)
	if err != nil {
		return total, err
	}
	return total + int64(merge.Versioned+merge.Inserted), nil
}

func (p *Pipeline) runFacts(ctx context.Context) (int64, error) {
	loaders := []struct {
		name string
		run  func(context.Context) (int64, error)
	}{
		{"fait_population", p.faitsRepo.LoadPopulation},
		{"fait_evenements_demo", p.faitsRepo.LoadEvenementsDemo},
		{"fait_entreprises", p.faitsRepo.LoadEntreprises},
		{"fait_revenus", p.faitsRepo.LoadRevenus},
		{"fait_logement", p.faitsRepo.LoadLogement},
		{"fait_emploi", p.faitsRepo.LoadEmploi},
		{"fait_menages", p.faitsRepo.LoadMenages},
	}

	var total int64
	for _, l := range loaders {
		rows, err := l.run(ctx)
		if err != nil {
			return total, fmt.Errorf("%s: %w", l.name, err)
		}
		p.logger.Info("fact table loaded",
			zap.String("table", l.name), zap.Int64("rows", rows))
		total += rows
	}
	return total, nil
}

func (p *Pipeline) runRefresh(ctx context.Context) (int64, error) {
	if err := p.datamartsRepo.RefreshStatistics(ctx); err != nil {
		return 0, err
	}
	counts, err := p.datamartsRepo.Counts(ctx)
	if err != nil {
		return 0, err
	}
	var total int64
	for name, n := range counts {
		p.logger.Info("datamart ready", zap.String("view", name), zap.Int64("rows", n))
		total += n
	}
	return total, nil
}

// LoadCommunesFile reads the communes.json reference file.
func LoadCommunesFile(path string) ([]domain.Commune, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var communes []domain.Commune
	if err := json.Unmarshal(raw, &communes); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return communes, nil
}
