package service

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hdf-dwh/internal/domain"
	"hdf-dwh/internal/repository"
)

// ---- in-memory fakes ----

type fakeActiviteRepo struct {
	rows map[string]*domain.Activite // by naf_section_code, '_T' form row
}

func (f *fakeActiviteRepo) GetBySection(_ context.Context, code string) (*domain.Activite, error) {
	row, ok := f.rows[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *row
	return &clone, nil
}

func (f *fakeActiviteRepo) UpdateSectionLibelle(_ context.Context, code, libelle string, now time.Time) (int64, error) {
	row, ok := f.rows[code]
	if !ok {
		return 0, nil
	}
	if row.NafSectionLibelle != nil && *row.NafSectionLibelle == libelle {
		return 0, nil
	}
	row.NafSectionLibelle = &libelle
	row.DateModification = now
	return 1, nil
}

func (f *fakeActiviteRepo) Count(context.Context) (int, error)  { return len(f.rows), nil }
func (f *fakeActiviteRepo) Seed(context.Context) (int64, error) { return 0, nil }

type fakeGeographieRepo struct {
	lineages map[string][]*domain.Geographie // by commune_code, ordered by version
	staging  []domain.Commune
	nextID   int64
}

func (f *fakeGeographieRepo) active(code string) *domain.Geographie {
	for _, g := range f.lineages[code] {
		if g.EstActif {
			return g
		}
	}
	return nil
}

func (f *fakeGeographieRepo) GetActive(_ context.Context, code string) (*domain.Geographie, error) {
	if g := f.active(code); g != nil {
		clone := *g
		return &clone, nil
	}
	return nil, domain.ErrNoActiveVersion
}

func (f *fakeGeographieRepo) ListActive(context.Context) ([]*domain.Geographie, error) {
	var out []*domain.Geographie
	for code := range f.lineages {
		if g := f.active(code); g != nil {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeGeographieRepo) History(_ context.Context, code string) ([]*domain.Geographie, error) {
	return f.lineages[code], nil
}

func (f *fakeGeographieRepo) CloseAndReplace(_ context.Context, current *domain.Geographie, change repository.GeographieChange, now time.Time) (*domain.Geographie, error) {
	stored := f.active(current.CommuneCode)
	if stored == nil || stored.GeoID != current.GeoID {
		return nil, domain.ErrNoActiveVersion
	}
	stored.EstActif = false
	fin := now
	stored.DateFinValidite = &fin

	next := *stored
	f.nextID++
	next.GeoID = f.nextID
	next.Version = stored.Version + 1
	next.EstActif = true
	next.DateDebutValidite = now
	next.DateFinValidite = nil
	prev := stored.GeoID
	next.RemplaceGeoID = &prev
	if change.CommuneNom != nil {
		next.CommuneNom = *change.CommuneNom
	}
	if change.CommuneCode != nil {
		next.CommuneCode = *change.CommuneCode
	}
	f.lineages[next.CommuneCode] = append(f.lineages[next.CommuneCode], &next)
	return &next, nil
}

func (f *fakeGeographieRepo) InsertInitial(_ context.Context, g *domain.Geographie, now time.Time) (int64, error) {
	f.nextID++
	clone := *g
	clone.GeoID = f.nextID
	clone.Version = 1
	clone.EstActif = true
	clone.DateDebutValidite = now
	f.lineages[clone.CommuneCode] = append(f.lineages[clone.CommuneCode], &clone)
	return clone.GeoID, nil
}

func (f *fakeGeographieRepo) LoadStagingCommunes(context.Context) ([]domain.Commune, error) {
	return f.staging, nil
}

func (f *fakeGeographieRepo) ReplaceStagingCommunes(_ context.Context, communes []domain.Commune) (int64, error) {
	f.staging = communes
	return int64(len(communes)), nil
}

func (f *fakeGeographieRepo) ActiveDuplicateCount(context.Context) (int, error) {
	dupes := 0
	for _, lineage := range f.lineages {
		active := 0
		for _, g := range lineage {
			if g.EstActif {
				active++
			}
		}
		if active > 1 {
			dupes++
		}
	}
	return dupes, nil
}

func (f *fakeGeographieRepo) Count(context.Context) (int, error) {
	n := 0
	for _, lineage := range f.lineages {
		n += len(lineage)
	}
	return n, nil
}

func (f *fakeGeographieRepo) SeedDepartements(context.Context) (int64, error) { return 0, nil }
func (f *fakeGeographieRepo) SeedCommunes(context.Context, []domain.Commune) (int64, error) {
	return 0, nil
}

type fakeDemographieRepo struct {
	rows map[string]*domain.Demographie // by pcs_code, '_T' totals row
}

func (f *fakeDemographieRepo) GetByPcs(_ context.Context, code string) (*domain.Demographie, error) {
	row, ok := f.rows[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *row
	return &clone, nil
}

func (f *fakeDemographieRepo) UpdatePcsLibelle(_ context.Context, code, libelle string, now time.Time) (int64, error) {
	row, ok := f.rows[code]
	if !ok {
		return 0, nil
	}
	if row.PcsLibelle != nil && *row.PcsLibelle == libelle {
		return 0, nil
	}
	row.AncienPcsLibelle = row.PcsLibelle
	row.PcsLibelle = &libelle
	row.DateChangementPcs = &now
	return 1, nil
}

func (f *fakeDemographieRepo) Count(context.Context) (int, error)  { return len(f.rows), nil }
func (f *fakeDemographieRepo) Seed(context.Context) (int64, error) { return 0, nil }

type fakeLogsRepo struct {
	logs   []*domain.LogEntry
	errors []*domain.ErrorEntry
}

func (f *fakeLogsRepo) InsertLog(_ context.Context, entry *domain.LogEntry) error {
	f.logs = append(f.logs, entry)
	return nil
}

func (f *fakeLogsRepo) InsertError(_ context.Context, entry *domain.ErrorEntry) (int64, error) {
	f.errors = append(f.errors, entry)
	return int64(len(f.errors)), nil
}

func (f *fakeLogsRepo) ResolveError(_ context.Context, id int64) error {
	if id < 1 || id > int64(len(f.errors)) {
		return domain.ErrNotFound
	}
	if f.errors[id-1].EstResolu {
		return domain.ErrAlreadyResolved
	}
	f.errors[id-1].EstResolu = true
	return nil
}

func (f *fakeLogsRepo) OpenErrors(context.Context) ([]*domain.ErrorEntry, error) {
	var open []*domain.ErrorEntry
	for _, e := range f.errors {
		if !e.EstResolu {
			open = append(open, e)
		}
	}
	return open, nil
}

func (f *fakeLogsRepo) RecentLogs(_ context.Context, limit int) ([]*domain.LogEntry, error) {
	if limit > len(f.logs) {
		limit = len(f.logs)
	}
	return f.logs[len(f.logs)-limit:], nil
}

func (f *fakeLogsRepo) lastLog() *domain.LogEntry {
	if len(f.logs) == 0 {
		return nil
	}
	return f.logs[len(f.logs)-1]
}

// ---- fixtures ----

func str(s string) *string { return &s }

func newTestSCD(t *testing.T) (SCDService, *fakeActiviteRepo, *fakeGeographieRepo, *fakeDemographieRepo, *fakeLogsRepo, *clockwork.FakeClock) {
	t.Helper()

	activite := &fakeActiviteRepo{rows: map[string]*domain.Activite{
		"C": {ActiviteID: 3, NafSectionCode: "C",
			NafSectionLibelle:  str("Industrie"),
			FormeJuridiqueCode: "_T"},
	}}

	geographie := &fakeGeographieRepo{
		lineages: map[string][]*domain.Geographie{
			"62617": {{
				GeoID: 101, CommuneCode: "62617", CommuneNom: "Noyelles-Godault",
				DepartementCode: "62", DepartementNom: "Pas-de-Calais",
				RegionCode: "32", RegionNom: "Hauts-de-France",
				NiveauGeo: "COMMUNE", Version: 1, EstActif: true,
			}},
		},
		nextID: 200,
	}

	demographie := &fakeDemographieRepo{rows: map[string]*domain.Demographie{
		"3": {DemoID: 7, SexeCode: "_T", AgeCode: "_T", PcsCode: "3",
			PcsLibelle: str("Cadres et professions intellectuelles supérieures")},
	}}

	logs := &fakeLogsRepo{}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	svc := NewSCDService(activite, geographie, demographie, logs, clock, zap.NewNop())
	return svc, activite, geographie, demographie, logs, clock
}

// ---- Type 1 ----

func TestType1OverwriteReplacesLabel(t *testing.T) {
	svc, activite, _, _, logs, _ := newTestSCD(t)
	ctx := context.Background()

	res, err := svc.Type1Overwrite(ctx, "C", "Industrie manufacturière")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.NbLignes)
	assert.Equal(t, "Industrie", res.AncienneValeur)
	assert.Equal(t, "Industrie manufacturière", res.NouvelleValeur)

	// In-place overwrite: the table keeps only the new value.
	assert.Equal(t, "Industrie manufacturière", *activite.rows["C"].NafSectionLibelle)

	// The structured audit entry carries both values.
	entry := logs.lastLog()
	require.NotNil(t, entry)
	assert.Equal(t, domain.StatutSucces, entry.Statut)
	assert.Equal(t, "Industrie", *entry.AncienneValeur)
	assert.Equal(t, "Industrie manufacturière", *entry.NouvelleValeur)
	assert.Equal(t, "C", *entry.CleNaturelle)
}

func TestType1OverwriteUnknownKey(t *testing.T) {
	svc, _, _, _, logs, _ := newTestSCD(t)

	_, err := svc.Type1Overwrite(context.Background(), "Z", "Inconnu")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	entry := logs.lastLog()
	require.NotNil(t, entry)
	assert.Equal(t, domain.StatutWarning, entry.Statut)
}

func TestType1OverwriteNoChange(t *testing.T) {
	svc, _, _, _, logs, _ := newTestSCD(t)

	_, err := svc.Type1Overwrite(context.Background(), "C", "Industrie")
	assert.ErrorIs(t, err, domain.ErrNoChange)
	assert.Empty(t, logs.logs, "a no-op must not be persisted")
}

// ---- Type 2 ----

func TestType2HistorizeCreatesVersion(t *testing.T) {
	svc, _, geographie, _, logs, clock := newTestSCD(t)
	ctx := context.Background()

	res, err := svc.Type2Historize(ctx, "62617", "Noyelles-Godault-Modifié", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.NewVersion)

	lineage := geographie.lineages["62617"]
	require.Len(t, lineage, 2)

	closed, current := lineage[0], lineage[1]
	assert.False(t, closed.EstActif)
	require.NotNil(t, closed.DateFinValidite)
	assert.Equal(t, clock.Now(), *closed.DateFinValidite)
	assert.Equal(t, "Noyelles-Godault", closed.CommuneNom)

	assert.True(t, current.EstActif)
	assert.Equal(t, 2, current.Version)
	assert.Nil(t, current.DateFinValidite)
	assert.Equal(t, "Noyelles-Godault-Modifié", current.CommuneNom)
	require.NotNil(t, current.RemplaceGeoID)
	assert.Equal(t, closed.GeoID, *current.RemplaceGeoID)

	dupes, _ := geographie.ActiveDuplicateCount(ctx)
	assert.Zero(t, dupes)

	entry := logs.lastLog()
	require.NotNil(t, entry)
	assert.Equal(t, "Noyelles-Godault", *entry.AncienneValeur)
	assert.Equal(t, "Noyelles-Godault-Modifié", *entry.NouvelleValeur)
}

func TestType2HistorizeNoActiveVersion(t *testing.T) {
	svc, _, _, _, logs, _ := newTestSCD(t)

	_, err := svc.Type2Historize(context.Background(), "99999", "Nulle-Part", nil)
	assert.ErrorIs(t, err, domain.ErrNoActiveVersion)

	entry := logs.lastLog()
	require.NotNil(t, entry)
	assert.Equal(t, domain.StatutWarning, entry.Statut)
}

func TestType2HistorizeNoChange(t *testing.T) {
	svc, _, geographie, _, _, _ := newTestSCD(t)

	_, err := svc.Type2Historize(context.Background(), "62617", "Noyelles-Godault", nil)
	assert.ErrorIs(t, err, domain.ErrNoChange)
	assert.Len(t, geographie.lineages["62617"], 1, "no version must be created")
}

func TestType2HistorizeRepeatedChanges(t *testing.T) {
	svc, _, geographie, _, _, _ := newTestSCD(t)
	ctx := context.Background()

	for i, nom := range []string{"Nom-2", "Nom-3", "Nom-4"} {
		res, err := svc.Type2Historize(ctx, "62617", nom, nil)
		require.NoError(t, err)
		assert.Equal(t, i+2, res.NewVersion, "version increments by one per change")
	}

	dupes, _ := geographie.ActiveDuplicateCount(ctx)
	assert.Zero(t, dupes, "exactly one active row per commune")
}

func TestType2MergeVersionsChangedAndInsertsUnknown(t *testing.T) {
	svc, _, geographie, _, _, _ := newTestSCD(t)
	ctx := context.Background()

	geographie.staging = []domain.Commune{
		{CommuneCode: "62617", CommuneNom: "Noyelles-Godault-Nouveau", DepartementCode: "62"},
		{CommuneCode: "59350", CommuneNom: "Lille", DepartementCode: "59", Population: 236_234},
	}

	res, err := svc.Type2Merge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Compared)
	assert.Equal(t, 1, res.Versioned)
	assert.Equal(t, 1, res.Inserted)
	assert.Zero(t, res.Failed)

	assert.Len(t, geographie.lineages["62617"], 2)
	require.Len(t, geographie.lineages["59350"], 1)
	assert.Equal(t, 1, geographie.lineages["59350"][0].Version)

	// Rerunning against the same snapshot is a no-op.
	res, err = svc.Type2Merge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Unchanged)
	assert.Zero(t, res.Versioned+res.Inserted)
}

// ---- Type 3 ----

func TestType3TrackPrevious(t *testing.T) {
	svc, _, _, demographie, logs, clock := newTestSCD(t)
	ctx := context.Background()

	res, err := svc.Type3TrackPrevious(ctx, "3", "Cadres supérieurs")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.NbLignes)

	row := demographie.rows["3"]
	assert.Equal(t, "Cadres supérieurs", *row.PcsLibelle)
	assert.Equal(t, "Cadres et professions intellectuelles supérieures", *row.AncienPcsLibelle)
	require.NotNil(t, row.DateChangementPcs)
	assert.Equal(t, clock.Now(), *row.DateChangementPcs)

	entry := logs.lastLog()
	require.NotNil(t, entry)
	assert.Equal(t, domain.StatutSucces, entry.Statut)

	// A second rename keeps only the immediately previous value.
	_, err = svc.Type3TrackPrevious(ctx, "3", "Cadres")
	require.NoError(t, err)
	assert.Equal(t, "Cadres supérieurs", *row.AncienPcsLibelle)
}

func TestType3UnknownKey(t *testing.T) {
	svc, _, _, _, logs, _ := newTestSCD(t)

	_, err := svc.Type3TrackPrevious(context.Background(), "9", "Inexistant")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, domain.StatutWarning, logs.lastLog().Statut)
}

func TestType3NoChange(t *testing.T) {
	svc, _, _, demographie, logs, _ := newTestSCD(t)

	_, err := svc.Type3TrackPrevious(context.Background(), "3",
		"Cadres et professions intellectuelles supérieures")
	assert.ErrorIs(t, err, domain.ErrNoChange)
	assert.Nil(t, demographie.rows["3"].AncienPcsLibelle)
	assert.Empty(t, logs.logs)
}
