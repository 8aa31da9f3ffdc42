package domain

// Fact tables of the dwh schema. Fact rows are append-only: they are
// inserted by the load pipeline with the dimension surrogate keys valid at
// load time and never updated afterwards.
//
// The loaders work set-at-a-time (INSERT ... SELECT from staging), so only
// the tables whose rows are also built row-by-row in Go get a struct here.

// FaitPopulation is one row of dwh.fait_population.
type FaitPopulation struct {
	FaitID     int64
	TempsID    int64
	GeoID      int64
	DemoID     int64
	Population int64
}

// FaitEmploi is one row of dwh.fait_emploi.
type FaitEmploi struct {
	FaitID             int64
	TempsID            int64
	GeoID              int64
	DemoID             int64
	PopulationActive   int64
	PopulationEnEmploi int64
	PopulationChomeurs int64
	TauxChomage        float64
}

// FaitMenages is one row of dwh.fait_menages.
type FaitMenages struct {
	FaitID              int64
	TempsID             int64
	GeoID               int64
	NbMenages           int64
	NbPersonnes         int64
	TailleMoyenneMenage float64
}
