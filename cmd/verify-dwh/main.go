package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"hdf-dwh/internal/config"
	"hdf-dwh/internal/database"
	"hdf-dwh/internal/repository"
)

// Structure checks run against a deployed warehouse. Exit code is the
// number of failed checks.
func main() {
	timeout := flag.Duration("timeout", 2*time.Minute, "verification timeout")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer database.Close(db)
	fmt.Printf("Connected to database: %s\n\n", cfg.Database.Database)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	catalog := repository.NewPostgresCatalogRepository(db)
	geographie := repository.NewPostgresGeographieRepository(db)
	faits := repository.NewPostgresFaitsRepository(db)

	failures := 0
	check := func(name string, ok bool, err error) {
		switch {
		case err != nil:
			fmt.Printf("ERROR %s: %v\n", name, err)
			failures++
		case ok:
			fmt.Printf("OK    %s\n", name)
		default:
			fmt.Printf("FAIL  %s\n", name)
			failures++
		}
	}

	for _, schema := range []string{"stg", "dwh", "dm", "analytics", "security"} {
		ok, err := catalog.SchemaExists(ctx, schema)
		check("schema "+schema, ok, err)
	}

	tables := []string{
		"dim_temps", "dim_geographie", "dim_demographie", "dim_activite",
		"fait_population", "fait_evenements_demo", "fait_entreprises",
		"fait_revenus", "fait_logement", "fait_emploi", "fait_menages",
		"log_etl", "log_erreurs",
	}
	for _, table := range tables {
		ok, err := catalog.TableExists(ctx, "dwh", table)
		check("table dwh."+table, ok, err)
	}

	// SCD support columns.
	columns, err := catalog.ColumnNames(ctx, "dwh", "dim_geographie")
	hasAll := err == nil
	for _, want := range []string{"version", "est_actif", "date_debut_validite",
		"date_fin_validite", "remplace_geo_id"} {
		found := false
		for _, col := range columns {
			if col == want {
				found = true
				break
			}
		}
		hasAll = hasAll && found
	}
	check("dim_geographie SCD columns", hasAll, err)

	columns, err = catalog.ColumnNames(ctx, "dwh", "log_etl")
	hasAll = err == nil
	for _, want := range []string{"cle_naturelle", "ancienne_valeur", "nouvelle_valeur"} {
		found := false
		for _, col := range columns {
			if col == want {
				found = true
				break
			}
		}
		hasAll = hasAll && found
	}
	check("log_etl structured columns", hasAll, err)

	views := map[string][]string{
		"dm": {"dm_demographie_commune", "dm_emploi_departement", "dm_entreprises_secteur",
			"dm_revenus_commune", "dm_logement_commune", "dm_synthese_departement"},
		"analytics": {"v_monitoring_alertes", "v_erreurs_ouvertes", "v_resume_scd",
			"v_historique_geographie", "v_changements_pcs", "v_historique_backups",
			"v_tableau_bord_territorial"},
	}
	for schema, names := range views {
		for _, name := range names {
			ok, err := catalog.ViewExists(ctx, schema, name)
			check("view "+schema+"."+name, ok, err)
		}
	}

	for _, table := range []string{"fait_population", "fait_entreprises", "fait_emploi"} {
		n, err := catalog.ForeignKeyCount(ctx, "dwh", table)
		check(fmt.Sprintf("%s foreign keys", table), n >= 2, err)
	}

	ok, err := catalog.PolicyExists(ctx, "dwh", "dim_geographie", "pol_zone_geographie")
	check("RLS policy pol_zone_geographie", ok, err)

	dupes, err := geographie.ActiveDuplicateCount(ctx)
	check("single active version per commune", dupes == 0, err)

	orphans, err := faits.OrphanCounts(ctx)
	if err != nil {
		check("fact orphan counts", false, err)
	} else {
		for table, n := range orphans {
			check(fmt.Sprintf("%s orphans", table), n == 0, nil)
		}
	}

	fmt.Printf("\n%d check(s) failed\n", failures)
	if failures > 0 {
		os.Exit(1)
	}
}
