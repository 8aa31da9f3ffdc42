package repository

import (
	"context"
	"time"

	"hdf-dwh/internal/domain"
)

// GeographieChange is the tracked-attribute delta applied by a Type 2
// version change. A nil field means "keep the current value".
type GeographieChange struct {
	CommuneNom  *string
	CommuneCode *string // municipality renumbering
}

// GeographieRepository is the data-access surface of dwh.dim_geographie.
//
// The repository owns the SCD Type 2 state machine: a lineage is ACTIVE or
// CLOSED and the only transition is close-and-replace, executed by
// CloseAndReplace inside a single transaction so the "exactly one active
// row per commune_code" invariant holds even across failures.
type GeographieRepository interface {
	GetActive(ctx context.Context, communeCode string) (*domain.Geographie, error)
	ListActive(ctx context.Context) ([]*domain.Geographie, error)
	History(ctx context.Context, communeCode string) ([]*domain.Geographie, error)

	// CloseAndReplace closes the given active row and inserts its
	// successor (version+1, est_actif, remplace_geo_id set) atomically.
	// Returns the new row.
	CloseAndReplace(ctx context.Context, current *domain.Geographie, change GeographieChange, now time.Time) (*domain.Geographie, error)

	// InsertInitial inserts a brand new version-1 active row, used by the
	// batch merge for staging communes never seen before.
	InsertInitial(ctx context.Context, g *domain.Geographie, now time.Time) (int64, error)

	// LoadStagingCommunes reads the staging snapshot compared by the
	// batch merge.
	LoadStagingCommunes(ctx context.Context) ([]domain.Commune, error)

	// ReplaceStagingCommunes truncates stg.communes and writes a fresh
	// snapshot, in one transaction.
	ReplaceStagingCommunes(ctx context.Context, communes []domain.Commune) (int64, error)

	// ActiveDuplicateCount reports lineages violating the single-active
	// invariant; structural verification expects zero.
	ActiveDuplicateCount(ctx context.Context) (int, error)

	Count(ctx context.Context) (int, error)
	SeedDepartements(ctx context.Context) (int64, error)
	SeedCommunes(ctx context.Context, communes []domain.Commune) (int64, error)
}
