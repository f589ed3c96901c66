package schema

import (
	"strings"
	"sync"
)

// FieldType is the declared type of a table field. The translator checks
// operator compatibility against these, not against raw Postgres types.
type FieldType string

const (
	Text     FieldType = "text"
	Numeric  FieldType = "numeric"
	Boolean  FieldType = "boolean"
	Temporal FieldType = "temporal"
	Any      FieldType = "any"
)

// Table declares the queryable fields of one table.
type Table struct {
	Name   string
	Fields map[string]FieldType
}

// FieldType returns the declared type for a field, if present.
func (t Table) FieldType(name string) (FieldType, bool) {
	ft, ok := t.Fields[name]
	return ft, ok
}

// Registry maps table names to their declared schemas. Caller modules
// register their tables at startup; the loader can also populate it from
// the live database catalog.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]Table
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]Table)}
}

// Register adds or replaces a table schema
func (r *Registry) Register(t Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[t.Name] = t
}

// Lookup returns the schema for a table name
func (r *Registry) Lookup(name string) (Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[name]
	return t, ok
}

// Tables returns the registered table names
func (r *Registry) Tables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	return names
}

// MapColumnType maps a Postgres data type (as reported by
// information_schema.columns) onto the field type lattice.
func MapColumnType(dataType string) FieldType {
	switch strings.ToLower(dataType) {
	case "text", "character varying", "character", "varchar", "char", "uuid", "name", "citext":
		return Text
	case "smallint", "integer", "bigint", "numeric", "decimal", "real", "double precision",
		"int2", "int4", "int8", "float4", "float8", "money", "serial", "bigserial":
		return Numeric
	case "boolean", "bool":
		return Boolean
	case "timestamp without time zone", "timestamp with time zone", "timestamptz",
		"timestamp", "date", "time without time zone", "time with time zone", "time", "interval":
		return Temporal
	default:
		// json, jsonb, bytea, arrays, enums: queryable with Eq/Exists only
		return Any
	}
}
