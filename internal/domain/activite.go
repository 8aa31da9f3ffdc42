package domain

import "time"

// Activite is one row of dwh.dim_activite (NAF sections and legal forms).
// The dimension is maintained SCD Type 1: updates overwrite the label in
// place and only the audit log keeps the old value. Exactly one row exists
// per (NafSectionCode, FormeJuridiqueCode) pair.
type Activite struct {
	ActiviteID            int64
	NafSectionCode        string
	NafSectionLibelle     *string
	SecteurActivite       *string
	FormeJuridiqueCode    string
	FormeJuridiqueLibelle *string
	TypeEntreprise        *string
	DateCreation          time.Time
	DateModification      time.Time
}
