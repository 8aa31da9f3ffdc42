package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// analyzedTables are ANALYZEd after each fact load.
var analyzedTables = []string{
	"dwh.dim_temps",
	"dwh.dim_geographie",
	"dwh.dim_demographie",
	"dwh.dim_activite",
	"dwh.fait_population",
	"dwh.fait_evenements_demo",
	"dwh.fait_entreprises",
	"dwh.fait_revenus",
	"dwh.fait_logement",
	"dwh.fait_emploi",
	"dwh.fait_menages",
}

// PostgresDatamartsRepository implements DatamartsRepository.
type PostgresDatamartsRepository struct {
	db *sql.DB
}

func NewPostgresDatamartsRepository(db *sql.DB) *PostgresDatamartsRepository {
	return &PostgresDatamartsRepository{db: db}
}

var _ DatamartsRepository = (*PostgresDatamartsRepository)(nil)

func (r *PostgresDatamartsRepository) RefreshStatistics(ctx context.Context) error {
	for _, table := range analyzedTables {
		if _, err := r.db.ExecContext(ctx, "ANALYZE "+table); err != nil {
			return fmt.Errorf("failed to analyze %s: %w", table, err)
		}
	}
	return nil
}

func (r *PostgresDatamartsRepository) Counts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(DatamartViews))
	for _, view := range DatamartViews {
		var n int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM dm.%s", view.Name)
		if err := r.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count dm.%s: %w", view.Name, err)
		}
		counts[view.Name] = n
	}
	return counts, nil
}

func (r *PostgresDatamartsRepository) FetchView(ctx context.Context, name string) ([]string, [][]string, error) {
	known := false
	for _, view := range DatamartViews {
		if view.Name == name {
			known = true
			break
		}
	}
	if !known {
		return nil, nil, fmt.Errorf("unknown datamart view: %s", name)
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM dm.%s", name))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read dm.%s: %w", name, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to describe dm.%s: %w", name, err)
	}

	var result [][]string
	values := make([]sql.NullString, len(columns))
	scan := make([]any, len(columns))
	for i := range values {
		scan[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan dm.%s row: %w", name, err)
		}
		record := make([]string, len(columns))
		for i, v := range values {
			if v.Valid {
				record[i] = v.String
			}
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate dm.%s: %w", name, err)
	}
	return columns, result, nil
}
