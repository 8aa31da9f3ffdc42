//go:build integration
// +build integration

package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDemographieRepository_Seed(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewPostgresDemographieRepository(db)
	ctx := context.Background()

	// First seed fills whatever is missing; a rerun must be a no-op, in
	// particular the shared totals row must not be inserted twice.
	_, err := repo.Seed(ctx)
	require.NoError(t, err)

	rerun, err := repo.Seed(ctx)
	require.NoError(t, err)
	assert.Zero(t, rerun)

	var totals int
	require.NoError(t, db.QueryRow(`
		SELECT COUNT(*) FROM dwh.dim_demographie
		WHERE sexe_code = '_T' AND age_code = '_T' AND pcs_code = '_T'
	`).Scan(&totals))
	assert.Equal(t, 1, totals, "exactly one shared totals row")

	// The totals row carries all three labels.
	var sexeLib, ageLib, pcsLib string
	require.NoError(t, db.QueryRow(`
		SELECT sexe_libelle, age_libelle, pcs_libelle FROM dwh.dim_demographie
		WHERE sexe_code = '_T' AND age_code = '_T' AND pcs_code = '_T'
	`).Scan(&sexeLib, &ageLib, &pcsLib))
	assert.Equal(t, "Total", sexeLib)
	assert.Equal(t, "Tous ages", ageLib)
	assert.Equal(t, "Total toutes categories", pcsLib)

	var dupes int
	require.NoError(t, db.QueryRow(`
		SELECT COUNT(*) FROM (
			SELECT sexe_code, age_code, pcs_code FROM dwh.dim_demographie
			GROUP BY sexe_code, age_code, pcs_code HAVING COUNT(*) > 1
		) d
	`).Scan(&dupes))
	assert.Zero(t, dupes)

	// The totals row is the one the Type 3 procedure reads.
	row, err := repo.GetByPcs(ctx, "_T")
	require.NoError(t, err)
	require.NotNil(t, row.PcsLibelle)
	assert.Equal(t, "Total toutes categories", *row.PcsLibelle)
}
