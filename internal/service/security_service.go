package service

import (
	"context"
	"fmt"

	"hdf-dwh/internal/domain"
	"hdf-dwh/internal/repository"

	"go.uber.org/zap"
)

// RLS modes stored in security.parametres_rls.
const (
	RLSModeOuvert = "OUVERT" // unmapped logins see everything
	RLSModeFerme  = "FERME"  // unmapped logins see nothing
)

// SecurityService owns the security schema: loading the generated agency
// network and mirroring the row-level-security predicate for tooling and
// tests.
type SecurityService interface {
	// Load replaces the whole security dataset (agences, employes,
	// utilisateurs_zones) with the given generated network.
	Load(ctx context.Context, agences []*domain.Agence, employes []*domain.Employe, zones []*domain.Zone) error

	// Reset empties the security dataset without reloading it.
	Reset(ctx context.Context) error

	// CreateUsers creates a login role per collaborator that does not
	// already exist, granting role_consultant. Returns created count.
	CreateUsers(ctx context.Context, employes []*domain.Employe, password string) (int, error)

	// Decide evaluates the RLS predicate for a login against a
	// department, exactly as the database policy does. Decisions that
	// fall through to the unrestricted branch are logged.
	Decide(ctx context.Context, login, departementCode string) (*domain.AccessDecision, error)

	Counts(ctx context.Context) (agences, employes, zones int, err error)

	// Mode reads the active RLS mode; SetMode switches it.
	Mode(ctx context.Context) (string, error)
	SetMode(ctx context.Context, mode string) error

	// TrackConnections snapshots the active sessions into the
	// connection history and returns the last days of it.
	TrackConnections(ctx context.Context, days int) ([]*domain.Connexion, error)
}

type securityService struct {
	securityRepo repository.SecurityRepository
	logsRepo     repository.EtlLogsRepository
	logger       *zap.Logger
}

func NewSecurityService(securityRepo repository.SecurityRepository, logsRepo repository.EtlLogsRepository, logger *zap.Logger) SecurityService {
	return &securityService{
		securityRepo: securityRepo,
		logsRepo:     logsRepo,
		logger:       logger,
	}
}

func (s *securityService) Load(ctx context.Context, agences []*domain.Agence, employes []*domain.Employe, zones []*domain.Zone) error {
	if err := s.securityRepo.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset security schema: %w", err)
	}
	nbAgences, err := s.securityRepo.InsertAgences(ctx, agences)
	if err != nil {
		return fmt.Errorf("failed to load agences: %w", err)
	}
	nbEmployes, err := s.securityRepo.InsertEmployes(ctx, employes)
	if err != nil {
		return fmt.Errorf("failed to load employes: %w", err)
	}
	nbZones, err := s.securityRepo.InsertZones(ctx, zones)
	if err != nil {
		return fmt.Errorf("failed to load zones: %w", err)
	}

	if err := s.logsRepo.InsertLog(ctx, &domain.LogEntry{
		Etape:      "LOAD_SECURITY",
		TableCible: "security.*",
		Statut:     domain.StatutSucces,
		NbLignes:   int64(nbAgences + nbEmployes + nbZones),
		Message: fmt.Sprintf("%d agences, %d employés, %d zones chargés",
			nbAgences, nbEmployes, nbZones),
	}); err != nil {
		s.logger.Error("failed to write audit entry", zap.Error(err))
	}
	s.logger.Info("security dataset loaded",
		zap.Int("agences", nbAgences),
		zap.Int("employes", nbEmployes),
		zap.Int("zones", nbZones))
	return nil
}

func (s *securityService) Reset(ctx context.Context) error {
	if err := s.securityRepo.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset security schema: %w", err)
	}
	if err := s.logsRepo.InsertLog(ctx, &domain.LogEntry{
		Etape:      "RESET_SECURITY",
		TableCible: "security.*",
		Statut:     domain.StatutSucces,
		Message:    "tables agences, employes et utilisateurs_zones vidées",
	}); err != nil {
		s.logger.Error("failed to write audit entry", zap.Error(err))
	}
	s.logger.Info("security dataset reset")
	return nil
}

func (s *securityService) CreateUsers(ctx context.Context, employes []*domain.Employe, password string) (int, error) {
	existing, err := s.securityRepo.ExistingPrincipals(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list existing principals: %w", err)
	}

	created := 0
	for _, e := range employes {
		if existing[e.LoginSQL] {
			s.logger.Debug("login already exists, skipped", zap.String("login", e.LoginSQL))
			continue
		}
		if err := s.securityRepo.CreateConsultantUser(ctx, e.LoginSQL, password); err != nil {
			return created, fmt.Errorf("failed to create user %s: %w", e.LoginSQL, err)
		}
		created++
	}
	s.logger.Info("consultant users created", zap.Int("created", created),
		zap.Int("skipped", len(employes)-created))
	return created, nil
}

// Decide mirrors the database predicate:
//   - a zone row matching the department -> visible
//   - a zone row with NULL department    -> visible (region-wide)
//   - no zone rows at all               -> the configured default;
//     OUVERT grants everything (fail-open, logged), FERME denies.
func (s *securityService) Decide(ctx context.Context, login, departementCode string) (*domain.AccessDecision, error) {
	zones, err := s.securityRepo.ZonesForLogin(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("failed to read zones for %s: %w", login, err)
	}

	decision := &domain.AccessDecision{Login: login, Departement: departementCode}
	if len(zones) == 0 {
		mode, err := s.securityRepo.GetRLSMode(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read rls mode: %w", err)
		}
		decision.Unrestricted = mode != RLSModeFerme
		decision.Visible = decision.Unrestricted
		if decision.Unrestricted {
			s.logger.Warn("rls decision fell through to unrestricted access",
				zap.String("login", login),
				zap.String("departement", departementCode))
		}
		return decision, nil
	}

	for _, z := range zones {
		if z.DepartementCode == nil || *z.DepartementCode == departementCode {
			decision.Visible = true
			break
		}
	}
	return decision, nil
}

func (s *securityService) Counts(ctx context.Context) (int, int, int, error) {
	return s.securityRepo.Counts(ctx)
}

func (s *securityService) Mode(ctx context.Context) (string, error) {
	return s.securityRepo.GetRLSMode(ctx)
}

func (s *securityService) TrackConnections(ctx context.Context, days int) ([]*domain.Connexion, error) {
	inserted, err := s.securityRepo.SnapshotConnections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot sessions: %w", err)
	}
	s.logger.Info("connection snapshot stored", zap.Int("nouvelles", inserted))
	return s.securityRepo.RecentConnections(ctx, days)
}

func (s *securityService) SetMode(ctx context.Context, mode string) error {
	if mode != RLSModeOuvert && mode != RLSModeFerme {
		return fmt.Errorf("invalid rls mode %q (want %s or %s)", mode, RLSModeOuvert, RLSModeFerme)
	}
	if err := s.securityRepo.SetRLSMode(ctx, mode); err != nil {
		return err
	}
	s.logger.Info("rls mode changed", zap.String("mode", mode))
	return nil
}
