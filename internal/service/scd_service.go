package service

import (
	"context"
	"errors"
	"fmt"

	"hdf-dwh/internal/domain"
	"hdf-dwh/internal/repository"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// SCDService runs the slowly-changing-dimension procedures of the
// warehouse. Each procedure does its own change detection, applies the
// mutation through the repository and writes the structured audit rows.
//
// Missing keys return domain.ErrNotFound / domain.ErrNoActiveVersion after
// a WARNING audit row; an unchanged value returns domain.ErrNoChange with
// no audit row (debug log only).
type SCDService interface {
	// Type1Overwrite overwrites the NAF section label of dim_activite
	// in place. The old value survives only in the audit log.
	Type1Overwrite(ctx context.Context, nafSectionCode, newLibelle string) (*SCDResult, error)

	// Type2Historize closes the active dim_geographie row of the commune
	// and inserts its successor in one transaction.
	Type2Historize(ctx context.Context, communeCode, newNom string, newCode *string) (*SCDResult, error)

	// Type2Merge compares the staging commune snapshot against the
	// active dimension rows: changed communes are versioned, unknown
	// communes inserted as version 1.
	Type2Merge(ctx context.Context) (*MergeResult, error)

	// Type3TrackPrevious updates the PCS label of dim_demographie,
	// keeping the displaced value in ancien_pcs_libelle.
	Type3TrackPrevious(ctx context.Context, pcsCode, newLibelle string) (*SCDResult, error)
}

// SCDResult reports one applied change.
type SCDResult struct {
	TableCible     string
	CleNaturelle   string
	AncienneValeur string
	NouvelleValeur string
	NbLignes       int64
	// NewVersion is set by Type 2 changes only.
	NewVersion int
}

// MergeResult summarizes a Type2Merge run.
type MergeResult struct {
	Compared  int
	Versioned int
	Inserted  int
	Unchanged int
	Failed    int
}

type scdService struct {
	activiteRepo    repository.ActiviteRepository
	geographieRepo  repository.GeographieRepository
	demographieRepo repository.DemographieRepository
	logsRepo        repository.EtlLogsRepository
	clock           clockwork.Clock
	logger          *zap.Logger
}

// NewSCDService creates the SCD engine. The clock drives validity
// timestamps and durations; production passes clockwork.NewRealClock().
func NewSCDService(
	activiteRepo repository.ActiviteRepository,
	geographieRepo repository.GeographieRepository,
	demographieRepo repository.DemographieRepository,
	logsRepo repository.EtlLogsRepository,
	clock clockwork.Clock,
	logger *zap.Logger,
) SCDService {
	return &scdService{
		activiteRepo:    activiteRepo,
		geographieRepo:  geographieRepo,
		demographieRepo: demographieRepo,
		logsRepo:        logsRepo,
		clock:           clock,
		logger:          logger,
	}
}

// audit writes one log_etl row. Audit failures are logged and swallowed:
// a change that committed must not be reported as failed because the
// bookkeeping insert broke.
func (s *scdService) audit(ctx context.Context, entry *domain.LogEntry) {
	if err := s.logsRepo.InsertLog(ctx, entry); err != nil {
		s.logger.Error("failed to write audit entry",
			zap.String("etape", entry.Etape),
			zap.String("table_cible", entry.TableCible),
			zap.Error(err))
	}
}

func (s *scdService) warnNotFound(ctx context.Context, etape, table, key, detail string) {
	s.logger.Warn("scd target key not found",
		zap.String("etape", etape),
		zap.String("table_cible", table),
		zap.String("cle_naturelle", key))
	s.audit(ctx, &domain.LogEntry{
		Etape:        etape,
		TableCible:   table,
		Statut:       domain.StatutWarning,
		Message:      detail,
		CleNaturelle: &key,
	})
}

func (s *scdService) Type1Overwrite(ctx context.Context, nafSectionCode, newLibelle string) (*SCDResult, error) {
	const etape = "SCD1_DIM_ACTIVITE"
	const table = "dwh.dim_activite"
	start := s.clock.Now()

	current, err := s.activiteRepo.GetBySection(ctx, nafSectionCode)
	if errors.Is(err, domain.ErrNotFound) {
		s.warnNotFound(ctx, etape, table, nafSectionCode,
			fmt.Sprintf("section NAF %s inconnue, aucune mise à jour", nafSectionCode))
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	old := ""
	if current.NafSectionLibelle != nil {
		old = *current.NafSectionLibelle
	}
	if old == newLibelle {
		s.logger.Debug("scd1 no-op, label unchanged",
			zap.String("naf_section_code", nafSectionCode),
			zap.String("libelle", newLibelle))
		return nil, domain.ErrNoChange
	}

	rows, err := s.activiteRepo.UpdateSectionLibelle(ctx, nafSectionCode, newLibelle, s.clock.Now())
	if err != nil {
		s.failure(ctx, etape, table, "scd1 update failed", err)
		return nil, err
	}
	if rows == 0 {
		// Raced with a concurrent overwrite installing the same label.
		s.logger.Debug("scd1 update affected no rows",
			zap.String("naf_section_code", nafSectionCode))
		return nil, domain.ErrNoChange
	}

	res := &SCDResult{
		TableCible:     table,
		CleNaturelle:   nafSectionCode,
		AncienneValeur: old,
		NouvelleValeur: newLibelle,
		NbLignes:       rows,
	}
	s.audit(ctx, &domain.LogEntry{
		Etape:          etape,
		TableCible:     table,
		Statut:         domain.StatutSucces,
		NbLignes:       rows,
		DureeSecondes:  s.clock.Since(start).Seconds(),
		Message:        fmt.Sprintf("section %s: libellé remplacé", nafSectionCode),
		CleNaturelle:   &res.CleNaturelle,
		AncienneValeur: &res.AncienneValeur,
		NouvelleValeur: &res.NouvelleValeur,
	})
	s.logger.Info("scd1 overwrite applied",
		zap.String("naf_section_code", nafSectionCode),
		zap.String("ancien", old),
		zap.String("nouveau", newLibelle))
	return res, nil
}

func (s *scdService) Type2Historize(ctx context.Context, communeCode, newNom string, newCode *string) (*SCDResult, error) {
	const etape = "SCD2_DIM_GEOGRAPHIE"
	const table = "dwh.dim_geographie"
	start := s.clock.Now()

	current, err := s.geographieRepo.GetActive(ctx, communeCode)
	if errors.Is(err, domain.ErrNoActiveVersion) {
		s.warnNotFound(ctx, etape, table, communeCode,
			fmt.Sprintf("commune %s sans version active, aucune mise à jour", communeCode))
		return nil, domain.ErrNoActiveVersion
	}
	if err != nil {
		return nil, err
	}

	change := repository.GeographieChange{}
	if newNom != "" && newNom != current.CommuneNom {
		change.CommuneNom = &newNom
	}
	if newCode != nil && *newCode != current.CommuneCode {
		change.CommuneCode = newCode
	}
	if change.CommuneNom == nil && change.CommuneCode == nil {
		s.logger.Debug("scd2 no-op, attributes unchanged",
			zap.String("commune_code", communeCode))
		return nil, domain.ErrNoChange
	}

	next, err := s.geographieRepo.CloseAndReplace(ctx, current, change, s.clock.Now())
	if err != nil {
		s.failure(ctx, etape, table, fmt.Sprintf("scd2 versioning of %s failed", communeCode), err)
		return nil, err
	}

	res := &SCDResult{
		TableCible:     table,
		CleNaturelle:   communeCode,
		AncienneValeur: current.CommuneNom,
		NouvelleValeur: next.CommuneNom,
		NbLignes:       2, // one closed, one inserted
		NewVersion:     next.Version,
	}
	s.audit(ctx, &domain.LogEntry{
		Etape:          etape,
		TableCible:     table,
		Statut:         domain.StatutSucces,
		NbLignes:       res.NbLignes,
		DureeSecondes:  s.clock.Since(start).Seconds(),
		Message:        fmt.Sprintf("commune %s: version %d -> %d", communeCode, current.Version, next.Version),
		CleNaturelle:   &res.CleNaturelle,
		AncienneValeur: &res.AncienneValeur,
		NouvelleValeur: &res.NouvelleValeur,
	})
	s.logger.Info("scd2 version created",
		zap.String("commune_code", communeCode),
		zap.Int("version", next.Version),
		zap.Int64("remplace_geo_id", current.GeoID))
	return res, nil
}

func (s *scdService) Type2Merge(ctx context.Context) (*MergeResult, error) {
	const etape = "SCD2_MERGE_GEOGRAPHIE"
	const table = "dwh.dim_geographie"
	start := s.clock.Now()

	s.audit(ctx, &domain.LogEntry{
		Etape:      etape,
		TableCible: table,
		Statut:     domain.StatutDebut,
		Message:    "fusion du snapshot staging dans la dimension géographie",
	})

	staging, err := s.geographieRepo.LoadStagingCommunes(ctx)
	if err != nil {
		s.failure(ctx, etape, table, "failed to load staging snapshot", err)
		return nil, err
	}

	res := &MergeResult{Compared: len(staging)}
	for _, c := range staging {
		current, err := s.geographieRepo.GetActive(ctx, c.CommuneCode)
		switch {
		case errors.Is(err, domain.ErrNoActiveVersion):
			fresh := communeToGeographie(c)
			if _, err := s.geographieRepo.InsertInitial(ctx, fresh, s.clock.Now()); err != nil {
				res.Failed++
				s.mergeFailure(ctx, etape, c.CommuneCode, err)
				continue
			}
			res.Inserted++
		case err != nil:
			res.Failed++
			s.mergeFailure(ctx, etape, c.CommuneCode, err)
		case current.CommuneNom != c.CommuneNom:
			nom := c.CommuneNom
			if _, err := s.geographieRepo.CloseAndReplace(ctx, current,
				repository.GeographieChange{CommuneNom: &nom}, s.clock.Now()); err != nil {
				res.Failed++
				s.mergeFailure(ctx, etape, c.CommuneCode, err)
				continue
			}
			res.Versioned++
		default:
			res.Unchanged++
		}
	}

	statut := domain.StatutSucces
	if res.Failed > 0 {
		statut = domain.StatutWarning
	}
	s.audit(ctx, &domain.LogEntry{
		Etape:         etape,
		TableCible:    table,
		Statut:        statut,
		NbLignes:      int64(res.Versioned + res.Inserted),
		DureeSecondes: s.clock.Since(start).Seconds(),
		Message: fmt.Sprintf("%d comparées, %d versionnées, %d insérées, %d inchangées, %d en échec",
			res.Compared, res.Versioned, res.Inserted, res.Unchanged, res.Failed),
	})
	s.logger.Info("scd2 merge finished",
		zap.Int("compared", res.Compared),
		zap.Int("versioned", res.Versioned),
		zap.Int("inserted", res.Inserted),
		zap.Int("unchanged", res.Unchanged),
		zap.Int("failed", res.Failed))
	return res, nil
}

func (s *scdService) Type3TrackPrevious(ctx context.Context, pcsCode, newLibelle string) (*SCDResult, error) {
	const etape = "SCD3_DIM_DEMOGRAPHIE"
	const table = "dwh.dim_demographie"
	start := s.clock.Now()

	current, err := s.demographieRepo.GetByPcs(ctx, pcsCode)
	if errors.Is(err, domain.ErrNotFound) {
		s.warnNotFound(ctx, etape, table, pcsCode,
			fmt.Sprintf("catégorie PCS %s inconnue, aucune mise à jour", pcsCode))
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	old := ""
	if current.PcsLibelle != nil {
		old = *current.PcsLibelle
	}
	if old == newLibelle {
		s.logger.Debug("scd3 no-op, label unchanged",
			zap.String("pcs_code", pcsCode))
		return nil, domain.ErrNoChange
	}

	rows, err := s.demographieRepo.UpdatePcsLibelle(ctx, pcsCode, newLibelle, s.clock.Now())
	if err != nil {
		s.failure(ctx, etape, table, "scd3 update failed", err)
		return nil, err
	}
	if rows == 0 {
		s.logger.Debug("scd3 update affected no rows",
			zap.String("pcs_code", pcsCode))
		return nil, domain.ErrNoChange
	}

	res := &SCDResult{
		TableCible:     table,
		CleNaturelle:   pcsCode,
		AncienneValeur: old,
		NouvelleValeur: newLibelle,
		NbLignes:       rows,
	}
	s.audit(ctx, &domain.LogEntry{
		Etape:          etape,
		TableCible:     table,
		Statut:         domain.StatutSucces,
		NbLignes:       rows,
		DureeSecondes:  s.clock.Since(start).Seconds(),
		Message:        fmt.Sprintf("PCS %s: libellé remplacé, ancien conservé", pcsCode),
		CleNaturelle:   &res.CleNaturelle,
		AncienneValeur: &res.AncienneValeur,
		NouvelleValeur: &res.NouvelleValeur,
	})
	s.logger.Info("scd3 previous value tracked",
		zap.String("pcs_code", pcsCode),
		zap.String("ancien", old),
		zap.String("nouveau", newLibelle))
	return res, nil
}

// failure records an engine failure in both log tables.
func (s *scdService) failure(ctx context.Context, etape, table, msg string, cause error) {
	s.logger.Error(msg, zap.String("etape", etape), zap.Error(cause))
	s.audit(ctx, &domain.LogEntry{
		Etape:      etape,
		TableCible: table,
		Statut:     domain.StatutErreur,
		Message:    fmt.Sprintf("%s: %v", msg, cause),
	})
	if _, err := s.logsRepo.InsertError(ctx, &domain.ErrorEntry{
		Source:        etape,
		TypeErreur:    "SCD_ENGINE",
		MessageErreur: cause.Error(),
	}); err != nil {
		s.logger.Error("failed to record error entry", zap.Error(err))
	}
}

func (s *scdService) mergeFailure(ctx context.Context, etape, communeCode string, cause error) {
	s.logger.Error("scd2 merge key failed",
		zap.String("commune_code", communeCode),
		zap.Error(cause))
	if _, err := s.logsRepo.InsertError(ctx, &domain.ErrorEntry{
		Source:        etape,
		TypeErreur:    "SCD_MERGE",
		MessageErreur: fmt.Sprintf("commune %s: %v", communeCode, cause),
	}); err != nil {
		s.logger.Error("failed to record error entry", zap.Error(err))
	}
}

// communeToGeographie builds a version-1 dimension row from a staging
// commune.
func communeToGeographie(c domain.Commune) *domain.Geographie {
	g := &domain.Geographie{
		CommuneCode:     c.CommuneCode,
		CommuneNom:      c.CommuneNom,
		DepartementCode: c.DepartementCode,
		DepartementNom:  domain.Departements[c.DepartementCode],
		RegionCode:      "32",
		RegionNom:       "Hauts-de-France",
		NiveauGeo:       "COMMUNE",
		Version:         1,
		EstActif:        true,
	}
	if c.CodesPostaux != "" {
		cp := c.CodesPostaux
		g.CodesPostaux = &cp
	}
	if c.Population > 0 {
		pop := c.Population
		g.PopulationRef = &pop
	}
	if c.SurfaceKm2 > 0 {
		surf := c.SurfaceKm2
		g.SurfaceKm2 = &surf
	}
	return g
}
