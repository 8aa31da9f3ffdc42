package backup

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"hdf-dwh/internal/domain"
	"hdf-dwh/internal/repository"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// keyTimeLayout is the timestamp embedded in backup keys:
// <prefix><database>_<yyyymmdd_hhmmss>.dump
const keyTimeLayout = "20060102_150405"

// Runner uploads pg_dump archives to the datalake and prunes expired
// ones. Each run writes DEBUT and SUCCES/ERREUR rows to dwh.log_etl with
// target DATABASE.
type Runner struct {
	storage  ObjectStorage
	logsRepo repository.EtlLogsRepository
	clock    clockwork.Clock
	logger   *zap.Logger

	prefix        string
	database      string
	retentionDays int
}

func NewRunner(storage ObjectStorage, logsRepo repository.EtlLogsRepository,
	clock clockwork.Clock, logger *zap.Logger,
	prefix, database string, retentionDays int) *Runner {
	return &Runner{
		storage:       storage,
		logsRepo:      logsRepo,
		clock:         clock,
		logger:        logger,
		prefix:        prefix,
		database:      database,
		retentionDays: retentionDays,
	}
}

// BackupKey builds the object key for a dump taken at t.
func BackupKey(prefix, database string, t time.Time) string {
	return fmt.Sprintf("%s%s_%s.dump", prefix, database, t.UTC().Format(keyTimeLayout))
}

// ParseKeyTime recovers the dump timestamp from an object key. Keys not
// matching the naming scheme return an error and are left alone by the
// retention pass.
func ParseKeyTime(key, database string) (time.Time, error) {
	base := path.Base(key)
	name := strings.TrimSuffix(base, ".dump")
	if name == base {
		return time.Time{}, fmt.Errorf("key %s: not a dump archive", key)
	}
	stamp, ok := strings.CutPrefix(name, database+"_")
	if !ok {
		return time.Time{}, fmt.Errorf("key %s: unexpected database prefix", key)
	}
	t, err := time.Parse(keyTimeLayout, stamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("key %s: bad timestamp: %w", key, err)
	}
	return t, nil
}

// Run uploads the dump at dumpPath and then applies retention.
func (r *Runner) Run(ctx context.Context, dumpPath string) error {
	start := r.clock.Now()
	r.audit(ctx, &domain.LogEntry{
		Etape:      "BACKUP_DATALAKE",
		TableCible: "DATABASE",
		Statut:     domain.StatutDebut,
		Message:    fmt.Sprintf("sauvegarde de %s", r.database),
	})

	key := BackupKey(r.prefix, r.database, start)
	size, err := r.storage.Upload(ctx, dumpPath, key)
	if err != nil {
		r.failure(ctx, start, err)
		return err
	}
	r.logger.Info("dump uploaded",
		zap.String("key", key),
		zap.Int64("size_bytes", size))

	deleted, err := r.applyRetention(ctx)
	if err != nil {
		r.failure(ctx, start, err)
		return err
	}

	r.audit(ctx, &domain.LogEntry{
		Etape:         "BACKUP_DATALAKE",
		TableCible:    "DATABASE",
		Statut:        domain.StatutSucces,
		NbLignes:      1,
		DureeSecondes: r.clock.Since(start).Seconds(),
		Message: fmt.Sprintf("%s envoyé (%d octets), %d archives expirées supprimées",
			key, size, deleted),
	})
	return nil
}

// applyRetention deletes archives older than the retention window.
func (r *Runner) applyRetention(ctx context.Context) (int, error) {
	if r.retentionDays <= 0 {
		return 0, nil
	}
	cutoff := r.clock.Now().UTC().AddDate(0, 0, -r.retentionDays)

	objects, err := r.storage.List(ctx, r.prefix)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, obj := range objects {
		taken, err := ParseKeyTime(obj.Key, r.database)
		if err != nil {
			r.logger.Warn("unrecognized object in backup prefix, kept",
				zap.String("key", obj.Key))
			continue
		}
		if !taken.Before(cutoff) {
			continue
		}
		if err := r.storage.Delete(ctx, obj.Key); err != nil {
			return deleted, err
		}
		r.logger.Info("expired archive deleted", zap.String("key", obj.Key))
		deleted++
	}
	return deleted, nil
}

func (r *Runner) failure(ctx context.Context, start time.Time, cause error) {
	r.logger.Error("backup run failed", zap.Error(cause))
	r.audit(ctx, &domain.LogEntry{
		Etape:         "BACKUP_DATALAKE",
		TableCible:    "DATABASE",
		Statut:        domain.StatutErreur,
		DureeSecondes: r.clock.Since(start).Seconds(),
		Message:       cause.Error(),
	})
	if _, err := r.logsRepo.InsertError(ctx, &domain.ErrorEntry{
		Source:        "BACKUP_DATALAKE",
		TypeErreur:    "BACKUP",
		MessageErreur: cause.Error(),
	}); err != nil {
		r.logger.Error("failed to record error entry", zap.Error(err))
	}
}

func (r *Runner) audit(ctx context.Context, entry *domain.LogEntry) {
	if err := r.logsRepo.InsertLog(ctx, entry); err != nil {
		r.logger.Error("failed to write audit entry", zap.Error(err))
	}
}
