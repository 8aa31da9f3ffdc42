package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresCatalogRepository implements CatalogRepository over
// information_schema and pg_catalog.
type PostgresCatalogRepository struct {
	db *sql.DB
}

func NewPostgresCatalogRepository(db *sql.DB) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{db: db}
}

var _ CatalogRepository = (*PostgresCatalogRepository)(nil)

func (r *PostgresCatalogRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var found bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}

func (r *PostgresCatalogRepository) SchemaExists(ctx context.Context, schema string) (bool, error) {
	found, err := r.exists(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`,
		schema)
	if err != nil {
		return false, fmt.Errorf("failed to check schema %s: %w", schema, err)
	}
	return found, nil
}

func (r *PostgresCatalogRepository) TableExists(ctx context.Context, schema, table string) (bool, error) {
	found, err := r.exists(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2 AND table_type = 'BASE TABLE'
		)`, schema, table)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s.%s: %w", schema, table, err)
	}
	return found, nil
}

func (r *PostgresCatalogRepository) ViewExists(ctx context.Context, schema, view string) (bool, error) {
	found, err := r.exists(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM information_schema.views
			WHERE table_schema = $1 AND table_name = $2
		)`, schema, view)
	if err != nil {
		return false, fmt.Errorf("failed to check view %s.%s: %w", schema, view, err)
	}
	return found, nil
}

func (r *PostgresCatalogRepository) ColumnNames(ctx context.Context, schema, table string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = $1 AND table_name = $2
		 ORDER BY ordinal_position`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns of %s.%s: %w", schema, table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column name: %w", err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate columns of %s.%s: %w", schema, table, err)
	}
	return columns, nil
}

func (r *PostgresCatalogRepository) PolicyExists(ctx context.Context, schema, table, policy string) (bool, error) {
	found, err := r.exists(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM pg_policies
			WHERE schemaname = $1 AND tablename = $2 AND policyname = $3
		)`, schema, table, policy)
	if err != nil {
		return false, fmt.Errorf("failed to check policy %s on %s.%s: %w", policy, schema, table, err)
	}
	return found, nil
}

func (r *PostgresCatalogRepository) ForeignKeyCount(ctx context.Context, schema, table string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM information_schema.table_constraints
		 WHERE table_schema = $1 AND table_name = $2 AND constraint_type = 'FOREIGN KEY'`,
		schema, table).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count foreign keys on %s.%s: %w", schema, table, err)
	}
	return n, nil
}
