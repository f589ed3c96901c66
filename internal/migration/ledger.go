package migration

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ledger reads and writes the durable migration_ledger table. Every
// apply/rollback attempt appends its own record; nothing is ever updated
// or deleted, so the full history stays auditable. A namespace's current
// version derives from the latest successful record per version: failed
// attempts are audit entries only, since their transaction changed nothing.
type Ledger struct {
	pool *pgxpool.Pool
}

// NewLedger creates a ledger over the given pool
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// CurrentVersion computes max(version) over versions whose latest
// successful record is applied; 0 when the namespace has never been
// migrated.
func (l *Ledger) CurrentVersion(ctx context.Context, namespace string) (uint32, error) {
	var version uint32
	err := l.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM (
		     SELECT DISTINCT ON (version) version, status
		     FROM migration_ledger
		     WHERE namespace = $1 AND status IN ($2, $3)
		     ORDER BY version, id DESC
		 ) latest
		 WHERE status = $2`,
		namespace, StatusApplied, StatusRolledBack,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read current version: %w", err)
	}
	return version, nil
}

// Entries returns every ledger record for a namespace, ascending by
// version and then by insertion order within a version.
func (l *Ledger) Entries(ctx context.Context, namespace string) ([]LedgerEntry, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT attempt_id, namespace, version, name, checksum, applied_at,
		        applied_by, status, COALESCE(error_message, ''), duration_ms
		 FROM migration_ledger
		 WHERE namespace = $1
		 ORDER BY version, id`,
		namespace,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.AttemptID, &e.Namespace, &e.Version, &e.Name, &e.Checksum,
			&e.AppliedAt, &e.AppliedBy, &e.Status, &e.ErrorMessage, &e.DurationMS); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger rows: %w", err)
	}
	return entries, nil
}

const insertLedgerSQL = `
	INSERT INTO migration_ledger
		(attempt_id, namespace, version, name, checksum, applied_at, applied_by, status, error_message, duration_ms)
	VALUES ($1, $2, $3, $4, $5, now(), $6, $7, NULLIF($8, ''), $9)`

// RecordTx appends a ledger entry inside the caller's transaction, so the
// record commits or discards together with the migration itself.
func (l *Ledger) RecordTx(ctx context.Context, tx pgx.Tx, e LedgerEntry) error {
	_, err := tx.Exec(ctx, insertLedgerSQL,
		e.AttemptID, e.Namespace, e.Version, e.Name, e.Checksum, e.AppliedBy, e.Status, e.ErrorMessage, e.DurationMS)
	if err != nil {
		return fmt.Errorf("failed to write ledger record: %w", err)
	}
	return nil
}

// Record appends a ledger entry in its own transaction. Used for failure
// records, whose migration transaction was already aborted.
func (l *Ledger) Record(ctx context.Context, e LedgerEntry) error {
	_, err := l.pool.Exec(ctx, insertLedgerSQL,
		e.AttemptID, e.Namespace, e.Version, e.Name, e.Checksum, e.AppliedBy, e.Status, e.ErrorMessage, e.DurationMS)
	if err != nil {
		return fmt.Errorf("failed to write ledger record: %w", err)
	}
	return nil
}
