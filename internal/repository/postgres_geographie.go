package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hdf-dwh/internal/domain"
)

// PostgresGeographieRepository implements GeographieRepository against
// dwh.dim_geographie.
type PostgresGeographieRepository struct {
	db *sql.DB
}

func NewPostgresGeographieRepository(db *sql.DB) *PostgresGeographieRepository {
	return &PostgresGeographieRepository{db: db}
}

var _ GeographieRepository = (*PostgresGeographieRepository)(nil)

const geographieColumns = `
	geo_id, commune_code, COALESCE(commune_nom, ''), departement_code,
	COALESCE(departement_nom, ''), region_code, region_nom, niveau_geo,
	codes_postaux, population_reference, surface_km2,
	version, est_actif, date_debut_validite, date_fin_validite,
	remplace_geo_id, date_creation, date_modification`

func scanGeographie(row interface{ Scan(...any) error }) (*domain.Geographie, error) {
	var g domain.Geographie
	var codesPostaux sql.NullString
	var population, remplace sql.NullInt64
	var surface sql.NullFloat64
	var fin sql.NullTime
	err := row.Scan(
		&g.GeoID, &g.CommuneCode, &g.CommuneNom, &g.DepartementCode,
		&g.DepartementNom, &g.RegionCode, &g.RegionNom, &g.NiveauGeo,
		&codesPostaux, &population, &surface,
		&g.Version, &g.EstActif, &g.DateDebutValidite, &fin,
		&remplace, &g.DateCreation, &g.DateModification,
	)
	if err != nil {
		return nil, err
	}
	g.CodesPostaux = stringPtr(codesPostaux)
	g.PopulationRef = int64Ptr(population)
	g.SurfaceKm2 = float64Ptr(surface)
	g.DateFinValidite = timePtr(fin)
	g.RemplaceGeoID = int64Ptr(remplace)
	return &g, nil
}

func (r *PostgresGeographieRepository) GetActive(ctx context.Context, communeCode string) (*domain.Geographie, error) {
	if communeCode == "" {
		return nil, fmt.Errorf("commune_code is required")
	}
	query := `SELECT ` + geographieColumns + `
		FROM dwh.dim_geographie
		WHERE commune_code = $1 AND est_actif = TRUE`
	g, err := scanGeographie(r.db.QueryRowContext(ctx, query, communeCode))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNoActiveVersion
		}
		return nil, fmt.Errorf("failed to query active commune %s: %w", communeCode, err)
	}
	return g, nil
}

func (r *PostgresGeographieRepository) ListActive(ctx context.Context) ([]*domain.Geographie, error) {
	query := `SELECT ` + geographieColumns + `
		FROM dwh.dim_geographie
		WHERE est_actif = TRUE AND niveau_geo = 'COMMUNE'
		ORDER BY commune_code`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active communes: %w", err)
	}
	defer rows.Close()

	var result []*domain.Geographie
	for rows.Next() {
		g, err := scanGeographie(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan commune: %w", err)
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

func (r *PostgresGeographieRepository) History(ctx context.Context, communeCode string) ([]*domain.Geographie, error) {
	query := `SELECT ` + geographieColumns + `
		FROM dwh.dim_geographie
		WHERE commune_code = $1
		ORDER BY version`
	rows, err := r.db.QueryContext(ctx, query, communeCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query history of %s: %w", communeCode, err)
	}
	defer rows.Close()

	var result []*domain.Geographie
	for rows.Next() {
		g, err := scanGeographie(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan commune version: %w", err)
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

// CloseAndReplace runs the single SCD Type 2 transition. Close and insert
// share one transaction: if the insert fails nothing is closed, so the
// dimension can never hold an orphaned closure.
func (r *PostgresGeographieRepository) CloseAndReplace(ctx context.Context, current *domain.Geographie, change GeographieChange, now time.Time) (*domain.Geographie, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE dwh.dim_geographie
		SET date_fin_validite = $2, est_actif = FALSE, date_modification = $2
		WHERE geo_id = $1 AND est_actif = TRUE
	`, current.GeoID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to close version %d of %s: %w", current.Version, current.CommuneCode, err)
	}
	closed, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if closed != 1 {
		// Someone else already closed it; the caller lost the race.
		return nil, domain.ErrNoActiveVersion
	}

	newCode := current.CommuneCode
	if change.CommuneCode != nil && *change.CommuneCode != "" {
		newCode = *change.CommuneCode
	}
	newNom := current.CommuneNom
	if change.CommuneNom != nil {
		newNom = *change.CommuneNom
	}

	query := `
		INSERT INTO dwh.dim_geographie
			(commune_code, commune_nom, departement_code, departement_nom,
			 region_code, region_nom, niveau_geo, codes_postaux,
			 population_reference, surface_km2,
			 version, est_actif, date_debut_validite, date_fin_validite,
			 remplace_geo_id, date_creation, date_modification)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, TRUE, $12, NULL, $13, $12, $12)
		RETURNING ` + geographieColumns
	newRow, err := scanGeographie(tx.QueryRowContext(ctx, query,
		newCode, newNom, current.DepartementCode, current.DepartementNom,
		current.RegionCode, current.RegionNom, current.NiveauGeo,
		nullString(current.CodesPostaux),
		nullInt64(current.PopulationRef),
		func() any {
			if current.SurfaceKm2 == nil {
				return nil
			}
			return *current.SurfaceKm2
		}(),
		current.Version+1, now, current.GeoID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert version %d of %s: %w", current.Version+1, newCode, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit version change: %w", err)
	}
	return newRow, nil
}

func (r *PostgresGeographieRepository) InsertInitial(ctx context.Context, g *domain.Geographie, now time.Time) (int64, error) {
	query := `
		INSERT INTO dwh.dim_geographie
			(commune_code, commune_nom, departement_code, departement_nom,
			 region_code, region_nom, niveau_geo, codes_postaux,
			 population_reference, surface_km2,
			 version, est_actif, date_debut_validite, date_creation, date_modification)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, TRUE, $11, $11, $11)
		RETURNING geo_id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		g.CommuneCode, g.CommuneNom, g.DepartementCode, g.DepartementNom,
		g.RegionCode, g.RegionNom, g.NiveauGeo,
		nullString(g.CodesPostaux), nullInt64(g.PopulationRef),
		func() any {
			if g.SurfaceKm2 == nil {
				return nil
			}
			return *g.SurfaceKm2
		}(),
		now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert commune %s: %w", g.CommuneCode, err)
	}
	return id, nil
}

func (r *PostgresGeographieRepository) LoadStagingCommunes(ctx context.Context) ([]domain.Commune, error) {
	query := `
		SELECT commune_code, commune_nom, departement_code,
		       COALESCE(codes_postaux, ''), COALESCE(population, 0),
		       COALESCE(surface_km2, 0)
		FROM stg.communes
		ORDER BY commune_code
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read staging communes: %w", err)
	}
	defer rows.Close()

	var result []domain.Commune
	for rows.Next() {
		var c domain.Commune
		if err := rows.Scan(&c.CommuneCode, &c.CommuneNom, &c.DepartementCode,
			&c.CodesPostaux, &c.Population, &c.SurfaceKm2); err != nil {
			return nil, fmt.Errorf("failed to scan staging commune: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *PostgresGeographieRepository) ReplaceStagingCommunes(ctx context.Context, communes []domain.Commune) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin staging transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `TRUNCATE stg.communes`); err != nil {
		return 0, fmt.Errorf("failed to truncate staging communes: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stg.communes
			(commune_code, commune_nom, departement_code, codes_postaux, population, surface_km2)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare staging insert: %w", err)
	}
	defer stmt.Close()

	var total int64
	for _, c := range communes {
		if _, err := stmt.ExecContext(ctx, c.CommuneCode, c.CommuneNom,
			c.DepartementCode, c.CodesPostaux, c.Population, c.SurfaceKm2); err != nil {
			return 0, fmt.Errorf("failed to stage commune %s: %w", c.CommuneCode, err)
		}
		total++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit staging snapshot: %w", err)
	}
	return total, nil
}

func (r *PostgresGeographieRepository) ActiveDuplicateCount(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT commune_code
			FROM dwh.dim_geographie
			WHERE est_actif = TRUE
			GROUP BY commune_code
			HAVING COUNT(*) > 1
		) d
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count duplicate active lineages: %w", err)
	}
	return n, nil
}

func (r *PostgresGeographieRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dwh.dim_geographie`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count dim_geographie: %w", err)
	}
	return n, nil
}

// SeedDepartements inserts the five Hauts-de-France departments once.
func (r *PostgresGeographieRepository) SeedDepartements(ctx context.Context) (int64, error) {
	query := `
		INSERT INTO dwh.dim_geographie
			(commune_code, commune_nom, departement_code, departement_nom,
			 region_code, region_nom, niveau_geo, version, est_actif, date_debut_validite)
		SELECT d.code, d.nom, d.code, d.nom, '32', 'Hauts-de-France', 'DEPARTEMENT', 1, TRUE, NOW()
		FROM (VALUES
			('02', 'Aisne'),
			('59', 'Nord'),
			('60', 'Oise'),
			('62', 'Pas-de-Calais'),
			('80', 'Somme')
		) AS d(code, nom)
		WHERE NOT EXISTS (
			SELECT 1 FROM dwh.dim_geographie g
			WHERE g.niveau_geo = 'DEPARTEMENT' AND g.departement_code = d.code
		)
	`
	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to seed departements: %w", err)
	}
	return res.RowsAffected()
}

func (r *PostgresGeographieRepository) SeedCommunes(ctx context.Context, communes []domain.Commune) (int64, error) {
	stmt, err := r.db.PrepareContext(ctx, `
		INSERT INTO dwh.dim_geographie
			(commune_code, commune_nom, departement_code, departement_nom,
			 region_code, region_nom, niveau_geo, codes_postaux,
			 population_reference, surface_km2, version, est_actif, date_debut_validite)
		SELECT $1, $2, $3, $4, '32', 'Hauts-de-France', 'COMMUNE', $5, $6, $7, 1, TRUE, NOW()
		WHERE NOT EXISTS (
			SELECT 1 FROM dwh.dim_geographie g
			WHERE g.commune_code = $1 AND g.niveau_geo = 'COMMUNE'
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare commune insert: %w", err)
	}
	defer stmt.Close()

	var total int64
	for _, c := range communes {
		deptNom := domain.Departements[c.DepartementCode]
		res, err := stmt.ExecContext(ctx, c.CommuneCode, c.CommuneNom, c.DepartementCode,
			deptNom, c.CodesPostaux, c.Population, c.SurfaceKm2)
		if err != nil {
			return total, fmt.Errorf("failed to insert commune %s: %w", c.CommuneCode, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}
