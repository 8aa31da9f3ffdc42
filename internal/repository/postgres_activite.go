package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hdf-dwh/internal/domain"
)

// PostgresActiviteRepository implements ActiviteRepository against
// dwh.dim_activite.
type PostgresActiviteRepository struct {
	db *sql.DB
}

func NewPostgresActiviteRepository(db *sql.DB) *PostgresActiviteRepository {
	return &PostgresActiviteRepository{db: db}
}

var _ ActiviteRepository = (*PostgresActiviteRepository)(nil)

func (r *PostgresActiviteRepository) GetBySection(ctx context.Context, nafSectionCode string) (*domain.Activite, error) {
	if nafSectionCode == "" {
		return nil, fmt.Errorf("naf_section_code is required")
	}
	query := `
		SELECT activite_id, naf_section_code, naf_section_libelle, secteur_activite,
		       forme_juridique_code, forme_juridique_libelle, type_entreprise,
		       date_creation, date_modification
		FROM dwh.dim_activite
		WHERE naf_section_code = $1 AND forme_juridique_code = '_T'
	`
	var a domain.Activite
	var sectionLib, secteur, formeLib, typeEnt sql.NullString
	err := r.db.QueryRowContext(ctx, query, nafSectionCode).Scan(
		&a.ActiviteID, &a.NafSectionCode, &sectionLib, &secteur,
		&a.FormeJuridiqueCode, &formeLib, &typeEnt,
		&a.DateCreation, &a.DateModification,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query naf section %s: %w", nafSectionCode, err)
	}
	a.NafSectionLibelle = stringPtr(sectionLib)
	a.SecteurActivite = stringPtr(secteur)
	a.FormeJuridiqueLibelle = stringPtr(formeLib)
	a.TypeEntreprise = stringPtr(typeEnt)
	return &a, nil
}

func (r *PostgresActiviteRepository) UpdateSectionLibelle(ctx context.Context, nafSectionCode, newLibelle string, now time.Time) (int64, error) {
	query := `
		UPDATE dwh.dim_activite
		SET naf_section_libelle = $2, date_modification = $3
		WHERE naf_section_code = $1
		  AND forme_juridique_code = '_T'
		  AND naf_section_libelle IS DISTINCT FROM $2
	`
	res, err := r.db.ExecContext(ctx, query, nafSectionCode, newLibelle, now)
	if err != nil {
		return 0, fmt.Errorf("failed to update naf section %s: %w", nafSectionCode, err)
	}
	return res.RowsAffected()
}

func (r *PostgresActiviteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dwh.dim_activite`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count dim_activite: %w", err)
	}
	return n, nil
}

// Seed loads the NAF sections and legal forms once; reruns are no-ops.
func (r *PostgresActiviteRepository) Seed(ctx context.Context) (int64, error) {
	query := `
		INSERT INTO dwh.dim_activite
			(naf_section_code, naf_section_libelle, secteur_activite, forme_juridique_code)
		SELECT v.code, v.libelle, v.secteur, '_T'
		FROM (VALUES
			('A', 'Agriculture, sylviculture et peche', 'Primaire'),
			('B', 'Industries extractives', 'Secondaire'),
			('C', 'Industrie manufacturiere', 'Secondaire'),
			('D', 'Electricite, gaz', 'Secondaire'),
			('E', 'Eau, assainissement, dechets', 'Secondaire'),
			('F', 'Construction', 'Secondaire'),
			('G', 'Commerce, reparation auto', 'Tertiaire'),
			('H', 'Transports et entreposage', 'Tertiaire'),
			('I', 'Hebergement et restauration', 'Tertiaire'),
			('J', 'Information et communication', 'Tertiaire'),
			('K', 'Activites financieres', 'Tertiaire'),
			('L', 'Activites immobilieres', 'Tertiaire'),
			('M', 'Activites scientifiques', 'Tertiaire'),
			('N', 'Services administratifs', 'Tertiaire'),
			('O', 'Administration publique', 'Tertiaire'),
			('P', 'Enseignement', 'Tertiaire'),
			('Q', 'Sante et action sociale', 'Tertiaire'),
			('R', 'Arts et spectacles', 'Tertiaire'),
			('S', 'Autres services', 'Tertiaire'),
			('_T', 'Toutes activites', 'Total')
		) AS v(code, libelle, secteur)
		WHERE NOT EXISTS (
			SELECT 1 FROM dwh.dim_activite a
			WHERE a.naf_section_code = v.code AND a.forme_juridique_code = '_T'
		)
	`
	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to seed naf sections: %w", err)
	}
	sections, _ := res.RowsAffected()

	query = `
		INSERT INTO dwh.dim_activite
			(naf_section_code, forme_juridique_code, forme_juridique_libelle, type_entreprise)
		SELECT '_T', v.code, v.libelle, v.type_ent
		FROM (VALUES
			('10', 'Entrepreneur individuel', 'Micro'),
			('54', 'SARL', 'PME'),
			('57', 'SAS', 'PME'),
			('MICRO', 'Micro-entrepreneur', 'Micro'),
			('ENTIND_X_MICRO', 'EI hors micro', 'TPE'),
			('OTH_SIDE', 'Autres formes', 'Autres'),
			('_T', 'Toutes formes', 'Total')
		) AS v(code, libelle, type_ent)
		WHERE NOT EXISTS (
			SELECT 1 FROM dwh.dim_activite a
			WHERE a.forme_juridique_code = v.code AND a.naf_section_code = '_T'
		)
	`
	res, err = r.db.ExecContext(ctx, query)
	if err != nil {
		return sections, fmt.Errorf("failed to seed legal forms: %w", err)
	}
	formes, _ := res.RowsAffected()
	return sections + formes, nil
}
