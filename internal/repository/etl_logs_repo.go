package repository

import (
	"context"

	"hdf-dwh/internal/domain"
)

// EtlLogsRepository is the audit-log surface shared by every pipeline
// step and SCD procedure. Log rows are append-only; the resolution flag
// of an error entry is the only mutable field anywhere in these tables.
type EtlLogsRepository interface {
	InsertLog(ctx context.Context, entry *domain.LogEntry) error
	InsertError(ctx context.Context, entry *domain.ErrorEntry) (int64, error)

	// ResolveError flips est_resolu false -> true and stamps
	// date_resolution. A second call returns domain.ErrAlreadyResolved.
	ResolveError(ctx context.Context, erreurID int64) error

	OpenErrors(ctx context.Context) ([]*domain.ErrorEntry, error)
	RecentLogs(ctx context.Context, limit int) ([]*domain.LogEntry, error)
}
