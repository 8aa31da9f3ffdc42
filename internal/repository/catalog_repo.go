package repository

import "context"

// CatalogRepository answers structural questions against the Postgres
// system catalogs. verify-dwh is its only consumer.
type CatalogRepository interface {
	SchemaExists(ctx context.Context, schema string) (bool, error)
	TableExists(ctx context.Context, schema, table string) (bool, error)
	ViewExists(ctx context.Context, schema, view string) (bool, error)
	ColumnNames(ctx context.Context, schema, table string) ([]string, error)
	// PolicyExists reports whether a row-security policy with the given
	// name is attached to the table.
	PolicyExists(ctx context.Context, schema, table, policy string) (bool, error)
	// ForeignKeyCount counts FK constraints declared on the table.
	ForeignKeyCount(ctx context.Context, schema, table string) (int, error)
}
