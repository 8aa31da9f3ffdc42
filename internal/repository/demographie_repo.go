package repository

import (
	"context"
	"time"

	"hdf-dwh/internal/domain"
)

// DemographieRepository is the data-access surface of dwh.dim_demographie
// (SCD Type 3 on the PCS label: one previous value kept).
type DemographieRepository interface {
	GetByPcs(ctx context.Context, pcsCode string) (*domain.Demographie, error)

	// UpdatePcsLibelle moves the current label into ancien_pcs_libelle,
	// installs the new one and stamps date_changement_pcs, but only for
	// rows where the label actually differs. Returns rows affected.
	UpdatePcsLibelle(ctx context.Context, pcsCode, newLibelle string, now time.Time) (int64, error)

	Count(ctx context.Context) (int, error)
	Seed(ctx context.Context) (int64, error)
}
