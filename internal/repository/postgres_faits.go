package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresFaitsRepository implements FaitsRepository against the dwh fact
// tables, reading from the stg schema.
type PostgresFaitsRepository struct {
	db *sql.DB
}

func NewPostgresFaitsRepository(db *sql.DB) *PostgresFaitsRepository {
	return &PostgresFaitsRepository{db: db}
}

var _ FaitsRepository = (*PostgresFaitsRepository)(nil)

func (r *PostgresFaitsRepository) load(ctx context.Context, name, query string) (int64, error) {
	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to load %s: %w", name, err)
	}
	return res.RowsAffected()
}

func (r *PostgresFaitsRepository) LoadPopulation(ctx context.Context) (int64, error) {
	return r.load(ctx, "fait_population", `
		INSERT INTO dwh.fait_population (temps_id, geo_id, demo_id, population)
		SELECT t.temps_id, g.geo_id, d.demo_id, s.population
		FROM stg.population s
		JOIN dwh.dim_temps t ON t.annee = s.annee
		JOIN dwh.dim_geographie g
		  ON g.commune_code = s.commune_code AND g.est_actif = TRUE
		JOIN dwh.dim_demographie d
		  ON d.sexe_code = s.sexe_code AND d.age_code = s.age_code AND d.pcs_code = '_T'
		WHERE NOT EXISTS (
			SELECT 1 FROM dwh.fait_population f
			WHERE f.temps_id = t.temps_id AND f.geo_id = g.geo_id AND f.demo_id = d.demo_id
		)
	`)
}

func (r *PostgresFaitsRepository) LoadEvenementsDemo(ctx context.Context) (int64, error) {
	return r.load(ctx, "fait_evenements_demo", `
		INSERT INTO dwh.fait_evenements_demo (temps_id, geo_id, naissances, deces, solde_naturel)
		SELECT t.temps_id, g.geo_id, s.naissances, s.deces, s.naissances - s.deces
		FROM stg.evenements_demo s
		JOIN dwh.dim_temps t ON t.annee = s.annee
		JOIN dwh.dim_geographie g
		  ON g.commune_code = s.commune_code AND g.est_actif = TRUE
		WHERE NOT EXISTS (
			SELECT 1 FROM dwh.fait_evenements_demo f
			WHERE f.temps_id = t.temps_id AND f.geo_id = g.geo_id
		)
	`)
}

func (r *PostgresFaitsRepository) LoadEntreprises(ctx context.Context) (int64, error) {
	return r.load(ctx, "fait_entreprises", `
		INSERT INTO dwh.fait_entreprises (temps_id, geo_id, activite_id, nb_entreprises, nb_creations)
		SELECT t.temps_id, g.geo_id, a.activite_id, s.nb_entreprises, s.nb_creations
		FROM stg.entreprises s
		JOIN dwh.dim_temps t ON t.annee = s.annee
		JOIN dwh.dim_geographie g
		  ON g.departement_code = s.departement_code
		 AND g.niveau_geo = 'DEPARTEMENT' AND g.est_actif = TRUE
		JOIN dwh.dim_activite a
		  ON a.naf_section_code = s.naf_section_code AND a.forme_juridique_code = '_T'
		WHERE NOT EXISTS (
			SELECT 1 FROM dwh.fait_entreprises f
			WHERE f.temps_id = t.temps_id AND f.geo_id = g.geo_id AND f.activite_id = a.activite_id
		)
	`)
}

func (r *PostgresFaitsRepository) LoadRevenus(ctx context.Context) (int64, error) {
	return r.load(ctx, "fait_revenus", `
		INSERT INTO dwh.fait_revenus
			(temps_id, geo_id, nb_menages_fiscaux, mediane_revenu, taux_pauvrete)
		SELECT t.temps_id, g.geo_id, s.nb_menages_fiscaux, s.mediane_revenu, s.taux_pauvrete
		FROM stg.revenus s
		JOIN dwh.dim_temps t ON t.annee = s.annee
		JOIN dwh.dim_geographie g
		  ON g.commune_code = s.commune_code AND g.est_actif = TRUE
		WHERE NOT EXISTS (
			SELECT 1 FROM dwh.fait_revenus f
			WHERE f.temps_id = t.temps_id AND f.geo_id = g.geo_id
		)
	`)
}

func (r *PostgresFaitsRepository) LoadLogement(ctx context.Context) (int64, error) {
	return r.load(ctx, "fait_logement", `
		INSERT INTO dwh.fait_logement
			(temps_id, geo_id, nb_logements_total, nb_residences_principales,
			 nb_residences_secondaires, nb_logements_vacants)
		SELECT t.temps_id, g.geo_id, s.nb_logements_total, s.nb_residences_principales,
		       s.nb_residences_secondaires, s.nb_logements_vacants
		FROM stg.logement s
		JOIN dwh.dim_temps t ON t.annee = s.annee
		JOIN dwh.dim_geographie g
		  ON g.commune_code = s.commune_code AND g.est_actif = TRUE
		WHERE NOT EXISTS (
			SELECT 1 FROM dwh.fait_logement f
			WHERE f.temps_id = t.temps_id AND f.geo_id = g.geo_id
		)
	`)
}

func (r *PostgresFaitsRepository) LoadEmploi(ctx context.Context) (int64, error) {
	return r.load(ctx, "fait_emploi", `
		INSERT INTO dwh.fait_emploi
			(temps_id, geo_id, demo_id, population_active,
			 population_en_emploi, population_chomeurs, taux_chomage)
		SELECT t.temps_id, g.geo_id, d.demo_id, s.population_active,
		       s.population_en_emploi, s.population_chomeurs,
		       CASE WHEN s.population_active > 0
		            THEN ROUND(100.0 * s.population_chomeurs / s.population_active, 2)
		            ELSE 0 END
		FROM stg.emploi s
		JOIN dwh.dim_temps t ON t.annee = s.annee
		JOIN dwh.dim_geographie g
		  ON g.commune_code = s.commune_code AND g.est_actif = TRUE
		JOIN dwh.dim_demographie d
		  ON d.sexe_code = s.sexe_code AND d.age_code = s.age_code AND d.pcs_code = '_T'
		WHERE NOT EXISTS (
			SELECT 1 FROM dwh.fait_emploi f
			WHERE f.temps_id = t.temps_id AND f.geo_id = g.geo_id AND f.demo_id = d.demo_id
		)
	`)
}

func (r *PostgresFaitsRepository) LoadMenages(ctx context.Context) (int64, error) {
	return r.load(ctx, "fait_menages", `
		INSERT INTO dwh.fait_menages (temps_id, geo_id, nb_menages, nb_personnes, taille_moyenne_menage)
		SELECT t.temps_id, g.geo_id, s.nb_menages, s.nb_personnes,
		       CASE WHEN s.nb_menages > 0
		            THEN ROUND(s.nb_personnes::numeric / s.nb_menages, 2)
		            ELSE 0 END
		FROM stg.menages s
		JOIN dwh.dim_temps t ON t.annee = s.annee
		JOIN dwh.dim_geographie g
		  ON g.commune_code = s.commune_code AND g.est_actif = TRUE
		WHERE NOT EXISTS (
			SELECT 1 FROM dwh.fait_menages f
			WHERE f.temps_id = t.temps_id AND f.geo_id = g.geo_id
		)
	`)
}

// fact table -> dimension key checks run by OrphanCounts.
var orphanChecks = []struct {
	fact string
	sql  string
}{
	{"fait_population", `
		SELECT COUNT(*) FROM dwh.fait_population f
		LEFT JOIN dwh.dim_temps t ON f.temps_id = t.temps_id
		LEFT JOIN dwh.dim_geographie g ON f.geo_id = g.geo_id
		WHERE t.temps_id IS NULL OR g.geo_id IS NULL`},
	{"fait_evenements_demo", `
		SELECT COUNT(*) FROM dwh.fait_evenements_demo f
		LEFT JOIN dwh.dim_geographie g ON f.geo_id = g.geo_id
		WHERE g.geo_id IS NULL`},
	{"fait_entreprises", `
		SELECT COUNT(*) FROM dwh.fait_entreprises f
		LEFT JOIN dwh.dim_activite a ON f.activite_id = a.activite_id
		WHERE a.activite_id IS NULL`},
	{"fait_emploi", `
		SELECT COUNT(*) FROM dwh.fait_emploi f
		LEFT JOIN dwh.dim_demographie d ON f.demo_id = d.demo_id
		WHERE d.demo_id IS NULL`},
	{"fait_menages", `
		SELECT COUNT(*) FROM dwh.fait_menages f
		LEFT JOIN dwh.dim_geographie g ON f.geo_id = g.geo_id
		WHERE g.geo_id IS NULL`},
}

func (r *PostgresFaitsRepository) OrphanCounts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(orphanChecks))
	for _, check := range orphanChecks {
		var n int64
		if err := r.db.QueryRowContext(ctx, check.sql).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count orphans in %s: %w", check.fact, err)
		}
		counts[check.fact] = n
	}
	return counts, nil
}
