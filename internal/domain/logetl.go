package domain

import "time"

// Pipeline step statuses written to dwh.log_etl.
const (
	StatutDebut   = "DEBUT"
	StatutSucces  = "SUCCES"
	StatutErreur  = "ERREUR"
	StatutWarning = "WARNING"
)

// LogEntry is an append-only audit record of one pipeline step.
//
// CleNaturelle / AncienneValeur / NouvelleValeur carry the SCD change
// detail as real columns; Message stays human-readable only. Consumers
// must never have to parse Message to recover structure.
type LogEntry struct {
	LogID          int64
	DateExecution  time.Time
	Etape          string
	TableCible     string
	Statut         string
	NbLignes       int64
	DureeSecondes  float64
	Message        string
	Utilisateur    string
	CleNaturelle   *string
	AncienneValeur *string
	NouvelleValeur *string
}

// ErrorEntry is an append-only record of an engine or pipeline failure.
// EstResolu is the only mutable field and flips false -> true once.
type ErrorEntry struct {
	ErreurID       int64
	DateErreur     time.Time
	Source         string
	TypeErreur     string
	MessageErreur  string
	StackTrace     *string
	EstResolu      bool
	DateResolution *time.Time
}
