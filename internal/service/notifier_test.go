package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hdf-dwh/internal/domain"
)

func sampleReport() *RunReport {
	return &RunReport{
		RunID:         "4a1c2f3e",
		DateExecution: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
		Statut:        domain.StatutSucces,
		DureeSecondes: 42.5,
		Etapes: []StepReport{
			{Etape: "STAGING", Statut: domain.StatutSucces, NbLignes: 4460, DureeSecondes: 3.1},
			{Etape: "DIMENSIONS", Statut: domain.StatutSucces, NbLignes: 4465, DureeSecondes: 12.0},
		},
	}
}

func TestWebhookNotifierPostsReport(t *testing.T) {
	var received RunReport
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(srv.URL, 5*time.Second, zap.NewNop())
	notifier.NotifyRun(context.Background(), sampleReport())

	assert.Equal(t, "4a1c2f3e", received.RunID)
	assert.Equal(t, domain.StatutSucces, received.Statut)
	require.Len(t, received.Etapes, 2)
	assert.Equal(t, "STAGING", received.Etapes[0].Etape)
	assert.Equal(t, int64(4460), received.Etapes[0].NbLignes)
}

func TestWebhookNotifierSwallowsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	// Delivery failures must never surface to the pipeline.
	notifier := NewWebhookNotifier(srv.URL, time.Second, zap.NewNop())
	notifier.NotifyRun(context.Background(), sampleReport())
}

func TestNopNotifier(t *testing.T) {
	NopNotifier{}.NotifyRun(context.Background(), sampleReport())
}

func TestRunReportSummary(t *testing.T) {
	report := sampleReport()
	report.Etapes = append(report.Etapes, StepReport{
		Etape: "FAITS", Statut: domain.StatutErreur, Erreur: "insert failed",
	})

	s := report.Summary()
	assert.Contains(t, s, "4a1c2f3e")
	assert.Contains(t, s, "2 étapes réussies")
	assert.Contains(t, s, "1 en échec")
}
