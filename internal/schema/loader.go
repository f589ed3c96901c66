package schema

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LoadAll populates the registry from information_schema for every table in
// the public schema, skipping the service's own internal tables.
func (r *Registry) LoadAll(ctx context.Context, pool *pgxpool.Pool) error {
	rows, err := pool.Query(ctx, `
		SELECT table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'public'
		ORDER BY table_name, ordinal_position`)
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}
	defer rows.Close()

	tables := make(map[string]Table)
	for rows.Next() {
		var tableName, columnName, dataType string
		if err := rows.Scan(&tableName, &columnName, &dataType); err != nil {
			return fmt.Errorf("failed to scan catalog row: %w", err)
		}
		if isInternalTable(tableName) {
			continue
		}
		t, ok := tables[tableName]
		if !ok {
			t = Table{Name: tableName, Fields: make(map[string]FieldType)}
			tables[tableName] = t
		}
		t.Fields[columnName] = MapColumnType(dataType)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate catalog rows: %w", err)
	}

	for _, t := range tables {
		r.Register(t)
	}
	return nil
}

// LoadTable refreshes a single table's schema from the catalog. Returns
// false if the table does not exist.
func (r *Registry) LoadTable(ctx context.Context, pool *pgxpool.Pool, name string) (bool, error) {
	if isInternalTable(name) {
		return false, nil
	}
	rows, err := pool.Query(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, name)
	if err != nil {
		return false, fmt.Errorf("failed to read catalog: %w", err)
	}
	defer rows.Close()

	t := Table{Name: name, Fields: make(map[string]FieldType)}
	for rows.Next() {
		var columnName, dataType string
		if err := rows.Scan(&columnName, &dataType); err != nil {
			return false, fmt.Errorf("failed to scan catalog row: %w", err)
		}
		t.Fields[columnName] = MapColumnType(dataType)
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("failed to iterate catalog rows: %w", err)
	}
	if len(t.Fields) == 0 {
		return false, nil
	}
	r.Register(t)
	return true, nil
}

func isInternalTable(name string) bool {
	return name == "migration_ledger" || name == "schema_migrations"
}
