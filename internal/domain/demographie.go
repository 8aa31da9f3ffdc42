package domain

import "time"

// Demographie is one row of dwh.dim_demographie (sex, age bracket, PCS
// socio-professional category). The PCS label is maintained SCD Type 3:
// AncienPcsLibelle keeps exactly the previous value and
// DateChangementPcs the moment it was displaced. No deeper history.
type Demographie struct {
	DemoID            int64
	SexeCode          string
	SexeLibelle       *string
	AgeCode           string
	AgeLibelle        *string
	AgeMin            *int
	AgeMax            *int
	PcsCode           string
	PcsLibelle        *string
	PcsNiveau         *int
	AncienPcsLibelle  *string
	DateChangementPcs *time.Time
	DateCreation      time.Time
	DateModification  time.Time
}
