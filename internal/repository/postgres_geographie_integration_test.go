//go:build integration
// +build integration

package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hdf-dwh/internal/domain"
)

const testCommuneCode = "99991"

func cleanupTestCommune(t *testing.T, db *sql.DB) {
	t.Helper()
	// The whole lineage goes in one statement; the self-referencing FK is
	// checked after the delete.
	if _, err := db.Exec(`DELETE FROM dwh.dim_geographie WHERE commune_code = $1`, testCommuneCode); err != nil {
		t.Logf("cleanup failed: %v", err)
	}
}

func insertTestCommune(t *testing.T, repo *PostgresGeographieRepository) *domain.Geographie {
	t.Helper()
	ctx := context.Background()

	_, err := repo.InsertInitial(ctx, &domain.Geographie{
		CommuneCode:     testCommuneCode,
		CommuneNom:      "Commune-Test",
		DepartementCode: "59",
		DepartementNom:  "Nord",
		RegionCode:      "32",
		RegionNom:       "Hauts-de-France",
		NiveauGeo:       "COMMUNE",
		Version:         1,
		EstActif:        true,
	}, time.Now())
	require.NoError(t, err)

	current, err := repo.GetActive(ctx, testCommuneCode)
	require.NoError(t, err)
	return current
}

func TestPostgresGeographieRepository_CloseAndReplace(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()
	defer cleanupTestCommune(t, db)
	cleanupTestCommune(t, db)

	repo := NewPostgresGeographieRepository(db)
	ctx := context.Background()
	current := insertTestCommune(t, repo)

	nom := "Commune-Test-Renommée"
	next, err := repo.CloseAndReplace(ctx, current, GeographieChange{CommuneNom: &nom}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 2, next.Version)
	assert.True(t, next.EstActif)
	assert.Equal(t, nom, next.CommuneNom)
	require.NotNil(t, next.RemplaceGeoID)
	assert.Equal(t, current.GeoID, *next.RemplaceGeoID)

	// The old row is closed, the new one is the only active version.
	history, err := repo.History(ctx, testCommuneCode)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.False(t, history[0].EstActif)
	assert.NotNil(t, history[0].DateFinValidite)

	active, err := repo.GetActive(ctx, testCommuneCode)
	require.NoError(t, err)
	assert.Equal(t, next.GeoID, active.GeoID)

	dupes, err := repo.ActiveDuplicateCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, dupes)
}

func TestPostgresGeographieRepository_CloseAndReplaceStaleRow(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()
	defer cleanupTestCommune(t, db)
	cleanupTestCommune(t, db)

	repo := NewPostgresGeographieRepository(db)
	ctx := context.Background()
	current := insertTestCommune(t, repo)

	nom := "Version-2"
	_, err := repo.CloseAndReplace(ctx, current, GeographieChange{CommuneNom: &nom}, time.Now())
	require.NoError(t, err)

	// Replaying against the already-closed row must fail without leaving
	// a second active version behind.
	nom = "Version-Fantôme"
	_, err = repo.CloseAndReplace(ctx, current, GeographieChange{CommuneNom: &nom}, time.Now())
	require.Error(t, err)

	dupes, err := repo.ActiveDuplicateCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, dupes)
}

func TestPostgresGeographieRepository_GetActiveUnknown(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewPostgresGeographieRepository(db)
	_, err := repo.GetActive(context.Background(), "00000")
	assert.ErrorIs(t, err, domain.ErrNoActiveVersion)
}
