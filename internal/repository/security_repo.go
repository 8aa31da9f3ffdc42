package repository

import (
	"context"

	"hdf-dwh/internal/domain"
)

// SecurityRepository is the data-access surface of the security schema:
// the agency network, the employee hierarchy and the login -> zone
// mapping the RLS policy evaluates.
type SecurityRepository interface {
	// Reset empties agences/employes/utilisateurs_zones and restarts the
	// identity sequences, in foreign-key order.
	Reset(ctx context.Context) error

	InsertAgences(ctx context.Context, agences []*domain.Agence) (int, error)

	// InsertEmployes inserts the hierarchy in order. On input, ManagerID
	// holds a 1-based position in the slice (the generator cannot know
	// database identities); the repository remaps it to the real
	// employe_id while inserting.
	InsertEmployes(ctx context.Context, employes []*domain.Employe) (int, error)

	InsertZones(ctx context.Context, zones []*domain.Zone) (int, error)

	ZonesForLogin(ctx context.Context, login string) ([]*domain.Zone, error)

	// ExistingPrincipals lists the database roles able to log in, so the
	// user-creation pass can skip logins that already exist.
	ExistingPrincipals(ctx context.Context) (map[string]bool, error)

	// CreateConsultantUser creates a login role and grants it
	// role_consultant. Each creation runs in its own transaction.
	CreateConsultantUser(ctx context.Context, login, password string) error

	Counts(ctx context.Context) (agences, employes, zones int, err error)

	// RLS mode stored in security.parametres_rls: "OUVERT" (fail-open,
	// historical default) or "FERME" (fail-closed).
	GetRLSMode(ctx context.Context) (string, error)
	SetRLSMode(ctx context.Context, mode string) error

	// SnapshotConnections copies the current session list into
	// security.historique_connexions, skipping sessions already
	// recorded. Returns new rows.
	SnapshotConnections(ctx context.Context) (int, error)

	RecentConnections(ctx context.Context, days int) ([]*domain.Connexion, error)
}
