// Package query executes translated plans against the storage backend.
package query

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grobertson/Rosey-Robot-sub001/internal/expr"
	"github.com/grobertson/Rosey-Robot-sub001/internal/logger"
	"github.com/grobertson/Rosey-Robot-sub001/internal/metrics"
	"github.com/grobertson/Rosey-Robot-sub001/internal/plan"
	"github.com/grobertson/Rosey-Robot-sub001/internal/schema"
)

// Row is one materialized result row keyed by column name.
type Row map[string]any

// Executor runs search/update/aggregate operations over the shared pool.
// Operations are safe for arbitrary concurrent use; atomicity of the
// read-modify-write update operators comes from the single-statement plans,
// not from any locking here.
type Executor struct {
	pool     *pgxpool.Pool
	registry *schema.Registry
	log      *slog.Logger
}

// NewExecutor creates an executor over the given pool and schema registry
func NewExecutor(pool *pgxpool.Pool, registry *schema.Registry) *Executor {
	return &Executor{
		pool:     pool,
		registry: registry,
		log:      logger.With("component", "query"),
	}
}

// resolveTable looks a table up in the registry, falling back to a live
// catalog read for tables created after startup (e.g. by a migration).
func (e *Executor) resolveTable(ctx context.Context, name string) (schema.Table, error) {
	if t, ok := e.registry.Lookup(name); ok {
		return t, nil
	}
	if e.pool != nil {
		found, err := e.registry.LoadTable(ctx, e.pool, name)
		if err != nil {
			return schema.Table{}, execError("schema lookup", err)
		}
		if found {
			t, _ := e.registry.Lookup(name)
			return t, nil
		}
	}
	return schema.Table{}, expr.UnknownTable(name)
}

// Search runs a filtered, sorted, paginated read and materializes every
// matching row.
func (e *Executor) Search(ctx context.Context, table string, f *expr.Filter, s expr.Sort, limit, offset *int) ([]Row, error) {
	t, err := e.resolveTable(ctx, table)
	if err != nil {
		return nil, err
	}
	stmt, err := plan.Search(t, f, s, limit, offset)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := e.pool.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		metrics.ObserveQuery("search", "error", time.Since(start))
		return nil, execError("search", err)
	}
	result, err := collectRows(rows)
	if err != nil {
		metrics.ObserveQuery("search", "error", time.Since(start))
		return nil, execError("search", err)
	}
	metrics.ObserveQuery("search", "ok", time.Since(start))
	e.log.Debug("search executed", "table", table, "rows", len(result), "duration", time.Since(start))
	return result, nil
}

// Update runs filter+update as one statement and returns the number of
// rows modified. Each matched row receives every assignment or none.
func (e *Executor) Update(ctx context.Context, table string, f *expr.Filter, u *expr.Update) (int64, error) {
	t, err := e.resolveTable(ctx, table)
	if err != nil {
		return 0, err
	}
	stmt, err := plan.Update(t, f, u)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	tag, err := e.pool.Exec(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		metrics.ObserveQuery("update", "error", time.Since(start))
		return 0, execError("update", err)
	}
	metrics.ObserveQuery("update", "ok", time.Since(start))
	e.log.Debug("update executed", "table", table, "affected", tag.RowsAffected(), "duration", time.Since(start))
	return tag.RowsAffected(), nil
}

// Aggregate runs filter+aggregate as one statement and returns the single
// result row of named aggregate values.
func (e *Executor) Aggregate(ctx context.Context, table string, f *expr.Filter, agg *expr.Aggregate) (Row, error) {
	t, err := e.resolveTable(ctx, table)
	if err != nil {
		return nil, err
	}
	stmt, err := plan.Aggregate(t, f, agg)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := e.pool.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		metrics.ObserveQuery("aggregate", "error", time.Since(start))
		return nil, execError("aggregate", err)
	}
	result, err := collectRows(rows)
	if err != nil {
		metrics.ObserveQuery("aggregate", "error", time.Since(start))
		return nil, execError("aggregate", err)
	}
	metrics.ObserveQuery("aggregate", "ok", time.Since(start))
	if len(result) == 0 {
		return Row{}, nil
	}
	return result[0], nil
}

func collectRows(rows pgx.Rows) ([]Row, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	result := make([]Row, 0, 16)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(Row, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
