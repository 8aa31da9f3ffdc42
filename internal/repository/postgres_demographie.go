package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hdf-dwh/internal/domain"
)

// PostgresDemographieRepository implements DemographieRepository against
// dwh.dim_demographie.
type PostgresDemographieRepository struct {
	db *sql.DB
}

func NewPostgresDemographieRepository(db *sql.DB) *PostgresDemographieRepository {
	return &PostgresDemographieRepository{db: db}
}

var _ DemographieRepository = (*PostgresDemographieRepository)(nil)

func (r *PostgresDemographieRepository) GetByPcs(ctx context.Context, pcsCode string) (*domain.Demographie, error) {
	if pcsCode == "" {
		return nil, fmt.Errorf("pcs_code is required")
	}
	query := `
		SELECT demo_id, sexe_code, sexe_libelle, age_code, age_libelle,
		       age_min, age_max, pcs_code, pcs_libelle, pcs_niveau,
		       ancien_pcs_libelle, date_changement_pcs,
		       date_creation, date_modification
		FROM dwh.dim_demographie
		WHERE pcs_code = $1 AND sexe_code = '_T' AND age_code = '_T'
	`
	var d domain.Demographie
	var sexeLib, ageLib, pcsLib, ancien sql.NullString
	var ageMin, ageMax, niveau sql.NullInt64
	var changement sql.NullTime
	err := r.db.QueryRowContext(ctx, query, pcsCode).Scan(
		&d.DemoID, &d.SexeCode, &sexeLib, &d.AgeCode, &ageLib,
		&ageMin, &ageMax, &d.PcsCode, &pcsLib, &niveau,
		&ancien, &changement, &d.DateCreation, &d.DateModification,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query pcs %s: %w", pcsCode, err)
	}
	d.SexeLibelle = stringPtr(sexeLib)
	d.AgeLibelle = stringPtr(ageLib)
	d.AgeMin = intPtr(ageMin)
	d.AgeMax = intPtr(ageMax)
	d.PcsLibelle = stringPtr(pcsLib)
	d.PcsNiveau = intPtr(niveau)
	d.AncienPcsLibelle = stringPtr(ancien)
	d.DateChangementPcs = timePtr(changement)
	return &d, nil
}

func (r *PostgresDemographieRepository) UpdatePcsLibelle(ctx context.Context, pcsCode, newLibelle string, now time.Time) (int64, error) {
	query := `
		UPDATE dwh.dim_demographie
		SET ancien_pcs_libelle = pcs_libelle,
		    pcs_libelle = $2,
		    date_changement_pcs = $3,
		    date_modification = $3
		WHERE pcs_code = $1
		  AND pcs_libelle IS DISTINCT FROM $2
	`
	res, err := r.db.ExecContext(ctx, query, pcsCode, newLibelle, now)
	if err != nil {
		return 0, fmt.Errorf("failed to update pcs %s: %w", pcsCode, err)
	}
	return res.RowsAffected()
}

func (r *PostgresDemographieRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dwh.dim_demographie`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count dim_demographie: %w", err)
	}
	return n, nil
}

// Seed loads sexes, PCS categories and age brackets once; reruns no-op.
// The shared totals row ('_T', '_T', '_T') is inserted by the first batch
// with all three labels; the later batches leave '_T' alone so the
// (sexe_code, age_code, pcs_code) unique key is hit exactly once.
func (r *PostgresDemographieRepository) Seed(ctx context.Context) (int64, error) {
	var total int64

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO dwh.dim_demographie
			(sexe_code, sexe_libelle, age_code, age_libelle, age_min, age_max,
			 pcs_code, pcs_libelle, pcs_niveau)
		SELECT v.code, v.libelle, '_T', v.age_libelle, v.age_min, v.age_max,
		       '_T', v.pcs_libelle, v.pcs_niveau
		FROM (VALUES
			('M', 'Masculin', NULL::VARCHAR, NULL::INT, NULL::INT, NULL::VARCHAR, NULL::INT),
			('F', 'Feminin', NULL, NULL, NULL, NULL, NULL),
			('_T', 'Total', 'Tous ages', 0, 999, 'Total toutes categories', 1)
		) AS v(code, libelle, age_libelle, age_min, age_max, pcs_libelle, pcs_niveau)
		WHERE NOT EXISTS (
			SELECT 1 FROM dwh.dim_demographie d
			WHERE d.sexe_code = v.code AND d.age_code = '_T' AND d.pcs_code = '_T'
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to seed sexes: %w", err)
	}
	n, _ := res.RowsAffected()
	total += n

	res, err = r.db.ExecContext(ctx, `
		INSERT INTO dwh.dim_demographie (sexe_code, age_code, pcs_code, pcs_libelle, pcs_niveau)
		SELECT '_T', '_T', v.code, v.libelle, 1
		FROM (VALUES
			('1', 'Agriculteurs exploitants'),
			('2', 'Artisans, commercants, chefs d''entreprise'),
			('3', 'Cadres et professions intellectuelles superieures'),
			('4', 'Professions intermediaires'),
			('5', 'Employes'),
			('6', 'Ouvriers'),
			('7', 'Retraites'),
			('9', 'Autres personnes sans activite professionnelle')
		) AS v(code, libelle)
		WHERE NOT EXISTS (
			SELECT 1 FROM dwh.dim_demographie d
			WHERE d.pcs_code = v.code AND d.sexe_code = '_T' AND d.age_code = '_T'
		)
	`)
	if err != nil {
		return total, fmt.Errorf("failed to seed pcs categories: %w", err)
	}
	n, _ = res.RowsAffected()
	total += n

	res, err = r.db.ExecContext(ctx, `
		INSERT INTO dwh.dim_demographie (sexe_code, age_code, age_libelle, age_min, age_max, pcs_code)
		SELECT '_T', v.code, v.libelle, v.age_min, v.age_max, '_T'
		FROM (VALUES
			('Y15T24', '15-24 ans', 15, 24),
			('Y25T54', '25-54 ans', 25, 54),
			('Y_GE55', '55 ans et plus', 55, 999),
			('Y_GE15', '15 ans et plus', 15, 999),
			('Y15T64', '15-64 ans', 15, 64),
			('Y_LT30', 'Moins de 30 ans', 0, 29),
			('Y30T39', '30-39 ans', 30, 39),
			('Y40T49', '40-49 ans', 40, 49),
			('Y50T59', '50-59 ans', 50, 59),
			('Y_GE60', '60 ans et plus', 60, 999),
			('Y60T74', '60-74 ans', 60, 74),
			('Y_GE75', '75 ans et plus', 75, 999)
		) AS v(code, libelle, age_min, age_max)
		WHERE NOT EXISTS (
			SELECT 1 FROM dwh.dim_demographie d
			WHERE d.age_code = v.code AND d.sexe_code = '_T' AND d.pcs_code = '_T'
		)
	`)
	if err != nil {
		return total, fmt.Errorf("failed to seed age brackets: %w", err)
	}
	n, _ = res.RowsAffected()
	total += n

	return total, nil
}
