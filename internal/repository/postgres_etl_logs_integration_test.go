//go:build integration
// +build integration

package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hdf-dwh/internal/domain"
)

func TestPostgresEtlLogsRepository_InsertLog(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()
	defer db.Exec(`DELETE FROM dwh.log_etl WHERE etape = 'TEST_ETAPE'`)

	repo := NewPostgresEtlLogsRepository(db)
	ctx := context.Background()

	key, ancien, nouveau := "62617", "Ancien-Nom", "Nouveau-Nom"
	require.NoError(t, repo.InsertLog(ctx, &domain.LogEntry{
		Etape:          "TEST_ETAPE",
		TableCible:     "dwh.dim_geographie",
		Statut:         domain.StatutSucces,
		NbLignes:       2,
		DureeSecondes:  1.5,
		Message:        "test",
		CleNaturelle:   &key,
		AncienneValeur: &ancien,
		NouvelleValeur: &nouveau,
	}))

	// The change detail lands in real columns, not in the message.
	var cle, ancienne, nouvelle, utilisateur string
	err := db.QueryRow(`
		SELECT cle_naturelle, ancienne_valeur, nouvelle_valeur, utilisateur
		FROM dwh.log_etl WHERE etape = 'TEST_ETAPE'
		ORDER BY log_id DESC LIMIT 1
	`).Scan(&cle, &ancienne, &nouvelle, &utilisateur)
	require.NoError(t, err)
	assert.Equal(t, "62617", cle)
	assert.Equal(t, "Ancien-Nom", ancienne)
	assert.Equal(t, "Nouveau-Nom", nouvelle)
	assert.NotEmpty(t, utilisateur, "utilisateur defaults to the session user")
}

func TestPostgresEtlLogsRepository_ResolveErrorOnce(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()
	defer db.Exec(`DELETE FROM dwh.log_erreurs WHERE source = 'TEST_SOURCE'`)

	repo := NewPostgresEtlLogsRepository(db)
	ctx := context.Background()

	id, err := repo.InsertError(ctx, &domain.ErrorEntry{
		Source:        "TEST_SOURCE",
		TypeErreur:    "TEST",
		MessageErreur: "boom",
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	require.NoError(t, repo.ResolveError(ctx, id))

	// Second resolution is rejected; est_resolu flips exactly once.
	err = repo.ResolveError(ctx, id)
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)

	err = repo.ResolveError(ctx, id+100000)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
