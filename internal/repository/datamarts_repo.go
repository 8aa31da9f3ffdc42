package repository

import "context"

// DatamartView is one exportable view of the dm schema.
type DatamartView struct {
	// Name is the view name without the schema qualifier.
	Name string
	// Sheet is the worksheet title used by the Excel export.
	Sheet string
}

// DatamartViews lists the dm schema views in export order. FetchView only
// accepts names from this list.
var DatamartViews = []DatamartView{
	{Name: "dm_demographie_commune", Sheet: "Démographie"},
	{Name: "dm_emploi_departement", Sheet: "Emploi"},
	{Name: "dm_entreprises_secteur", Sheet: "Entreprises"},
	{Name: "dm_revenus_commune", Sheet: "Revenus"},
	{Name: "dm_logement_commune", Sheet: "Logement"},
	{Name: "dm_synthese_departement", Sheet: "Synthèse"},
}

// DatamartsRepository serves the dm schema: statistics refresh after fact
// loads, row counts for the pipeline summary, and whole-view reads for the
// Excel export.
type DatamartsRepository interface {
	// RefreshStatistics runs ANALYZE on the dwh dimension and fact tables
	// so the planner sees the freshly loaded volumes.
	RefreshStatistics(ctx context.Context) error

	// Counts returns the row count of every datamart view.
	Counts(ctx context.Context) (map[string]int64, error)

	// FetchView returns the column names and all rows of one datamart
	// view, cells rendered as strings. The name must come from
	// DatamartViews.
	FetchView(ctx context.Context, name string) (columns []string, rows [][]string, err error)
}
