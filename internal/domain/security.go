package domain

import "time"

// Hierarchy levels of the agency network.
const (
	NiveauDirecteurRegional    = "DIRECTEUR_REGIONAL"
	NiveauDirecteurDepartement = "DIRECTEUR_DEPARTEMENT"
	NiveauDirecteurAgence      = "DIRECTEUR_AGENCE"
	NiveauCollaborateur        = "COLLABORATEUR"
)

// Agence is one row of security.agences: a commune above the agency
// population threshold, sized by headcount.
type Agence struct {
	AgenceID         int64
	CommuneCode      string
	Ville            string
	DepartementCode  string
	DepartementNom   string
	Region           string
	Population       int64
	TailleAgence     string // GRANDE, MOYENNE, PETITE
	NbCollaborateurs int
}

// Employe is one row of security.employes. ManagerID references another
// employe row; the regional director has none.
type Employe struct {
	EmployeID          int64
	Nom                string
	Prenom             string
	LoginSQL           string
	Email              string
	Poste              string
	NiveauHierarchique string
	AgenceID           *int64
	DepartementCode    *string
	ManagerID          *int64
}

// Zone maps a SQL login to an authorized department. A NULL department
// grants the whole region. A login with no Zone row at all falls through
// to the configured default (historically: unrestricted).
type Zone struct {
	ZoneID          int64
	LoginSQL        string
	DepartementCode *string
}

// Connexion is one row of security.historique_connexions, fed by
// snapshots of the server session list. (login_sql, heure_connexion)
// dedups repeated snapshots of the same session.
type Connexion struct {
	ConnexionID    int64
	LoginSQL       string
	HeureConnexion time.Time
	StatutSession  string
	PosteClient    *string
	Application    *string
	SnapshotDt     time.Time
}

// AccessDecision is the outcome of evaluating the RLS predicate for one
// login and one geography row, used by tooling and tests to mirror what
// the database policy enforces.
type AccessDecision struct {
	Login       string
	Departement string
	Visible     bool
	// Unrestricted is true when the decision fell through to the
	// "no mapping row" branch. Every such decision is logged.
	Unrestricted bool
}
