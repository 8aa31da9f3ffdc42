package repository

import (
	"context"
	"time"

	"hdf-dwh/internal/domain"
)

// ActiviteRepository is the data-access surface of dwh.dim_activite
// (SCD Type 1: in-place overwrite, no history in the table itself).
type ActiviteRepository interface {
	GetBySection(ctx context.Context, nafSectionCode string) (*domain.Activite, error)

	// UpdateSectionLibelle overwrites the section label on the '_T'
	// legal-form row, the same row GetBySection reads. Returns rows
	// affected: 0 means the label already had that value.
	UpdateSectionLibelle(ctx context.Context, nafSectionCode, newLibelle string, now time.Time) (int64, error)

	Count(ctx context.Context) (int, error)
	Seed(ctx context.Context) (int64, error)
}
