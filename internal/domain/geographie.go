package domain

import "time"

// Geographie is one row of dwh.dim_geographie, the commune/department
// dimension historized with SCD Type 2.
//
// For a given CommuneCode at most one row has EstActif = true. Closed rows
// (DateFinValidite set) are immutable. RemplaceGeoID links a version to the
// row it replaced; it is set in the same transaction that closes the old
// row, so the lineage never depends on timestamps.
type Geographie struct {
	GeoID             int64
	CommuneCode       string
	CommuneNom        string
	DepartementCode   string
	DepartementNom    string
	RegionCode        string
	RegionNom         string
	NiveauGeo         string // DEPARTEMENT or COMMUNE
	CodesPostaux      *string
	PopulationRef     *int64
	SurfaceKm2        *float64
	Version           int
	EstActif          bool
	DateDebutValidite time.Time
	DateFinValidite   *time.Time
	RemplaceGeoID     *int64
	DateCreation      time.Time
	DateModification  time.Time
}

// Commune is one entry of the communes.json reference file, the input of
// both the geography dimension load and the RLS agency generator.
type Commune struct {
	CommuneCode     string   `json:"commune_code"`
	CommuneNom      string   `json:"commune_nom"`
	DepartementCode string   `json:"departement_code"`
	CodesPostaux    string   `json:"codes_postaux"`
	Population      int64    `json:"population"`
	SurfaceKm2      float64  `json:"surface_km2"`
	Longitude       *float64 `json:"longitude"`
	Latitude        *float64 `json:"latitude"`
}

// Departement codes of the Hauts-de-France region, the fixed perimeter of
// this warehouse.
var Departements = map[string]string{
	"02": "Aisne",
	"59": "Nord",
	"60": "Oise",
	"62": "Pas-de-Calais",
	"80": "Somme",
}
