package repository

import "context"

// FaitsRepository loads the append-only fact tables from staging. Every
// load is an INSERT ... SELECT joining the staging rows to the dimension
// surrogate keys active at load time; rows already present are skipped so
// reruns are idempotent. There is deliberately no update path.
type FaitsRepository interface {
	LoadPopulation(ctx context.Context) (int64, error)
	LoadEvenementsDemo(ctx context.Context) (int64, error)
	LoadEntreprises(ctx context.Context) (int64, error)
	LoadRevenus(ctx context.Context) (int64, error)
	LoadLogement(ctx context.Context) (int64, error)
	LoadEmploi(ctx context.Context) (int64, error)
	LoadMenages(ctx context.Context) (int64, error)

	// OrphanCounts reports fact rows whose dimension keys no longer
	// resolve, per fact table. All values must be zero.
	OrphanCounts(ctx context.Context) (map[string]int64, error)
}
