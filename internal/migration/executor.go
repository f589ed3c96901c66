package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grobertson/Rosey-Robot-sub001/internal/logger"
	"github.com/grobertson/Rosey-Robot-sub001/internal/metrics"
)

// ErrMigrationInProgress is returned when another apply/rollback request
// already holds the namespace's lock. This is contention, not a defect;
// callers may retry later.
var ErrMigrationInProgress = errors.New("a migration is already in progress for this namespace")

// TxOutcome is the explicit fate of a migration transaction, chosen by the
// transaction body. Dry-run discards unconditionally, as a visible branch
// rather than a control-flow side effect.
type TxOutcome int

const (
	TxCommit TxOutcome = iota
	TxDiscard
)

// Executor applies and rolls back namespace migration sequences. Requests
// to distinct namespaces run concurrently; requests to the same namespace
// are serialized by a non-blocking per-namespace lock.
type Executor struct {
	pool      *pgxpool.Pool
	ledger    *Ledger
	source    Source
	locks     *namespaceLocks
	appliedBy string
	log       *slog.Logger
}

// NewExecutor creates an executor over the pool and migration source.
// appliedBy identifies this process in ledger records.
func NewExecutor(pool *pgxpool.Pool, source Source, appliedBy string) *Executor {
	return &Executor{
		pool:      pool,
		ledger:    NewLedger(pool),
		source:    source,
		locks:     newNamespaceLocks(),
		appliedBy: appliedBy,
		log:       logger.With("component", "migration"),
	}
}

// Apply brings a namespace forward to the target version. Each pending
// migration runs in its own transaction with its ledger record; the first
// failure stops the sequence, leaving earlier migrations committed.
// Dry-run executes identically but discards every transaction and writes
// no ledger records.
func (e *Executor) Apply(ctx context.Context, namespace string, target Target, dryRun bool) (*Report, error) {
	if !e.locks.tryAcquire(namespace) {
		return nil, ErrMigrationInProgress
	}
	defer e.locks.release(namespace)

	set, err := e.source.Discover(ctx, namespace)
	if err != nil {
		return nil, err
	}
	current, err := e.ledger.CurrentVersion(ctx, namespace)
	if err != nil {
		return nil, err
	}
	targetVersion := target.ToVersion(set)
	e.warnOnDrift(ctx, namespace, set)

	pending := Pending(set, current, targetVersion)
	e.log.Info("applying migrations",
		"namespace", namespace, "current", current, "target", targetVersion,
		"pending", len(pending), "dry_run", dryRun)

	return e.run(ctx, namespace, pending, DirectionUp, dryRun), nil
}

// Rollback reverts a namespace down to (but not including) the target
// version, executing backward scripts in descending version order.
func (e *Executor) Rollback(ctx context.Context, namespace string, targetVersion uint32, dryRun bool) (*Report, error) {
	if !e.locks.tryAcquire(namespace) {
		return nil, ErrMigrationInProgress
	}
	defer e.locks.release(namespace)

	set, err := e.source.Discover(ctx, namespace)
	if err != nil {
		return nil, err
	}
	current, err := e.ledger.CurrentVersion(ctx, namespace)
	if err != nil {
		return nil, err
	}

	sequence := ForRollback(set, current, targetVersion)
	e.log.Info("rolling back migrations",
		"namespace", namespace, "current", current, "target", targetVersion,
		"count", len(sequence), "dry_run", dryRun)

	return e.run(ctx, namespace, sequence, DirectionDown, dryRun), nil
}

// Status reports the namespace's current version, pending migrations,
// ledger history, and checksum drift.
func (e *Executor) Status(ctx context.Context, namespace string) (*StatusReport, error) {
	set, err := e.source.Discover(ctx, namespace)
	if err != nil {
		return nil, err
	}
	current, err := e.ledger.CurrentVersion(ctx, namespace)
	if err != nil {
		return nil, err
	}
	entries, err := e.ledger.Entries(ctx, namespace)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{
		Namespace:      namespace,
		CurrentVersion: current,
		Pending:        []VersionName{},
		Applied:        entries,
	}
	for _, m := range Pending(set, current, Latest.ToVersion(set)) {
		report.Pending = append(report.Pending, VersionName{Version: m.Version, Name: m.Name})
	}
	report.Drift = detectDrift(entries, set)
	return report, nil
}

func (e *Executor) run(ctx context.Context, namespace string, sequence []Migration, dir Direction, dryRun bool) *Report {
	report := &Report{
		Namespace: namespace,
		Direction: dir,
		DryRun:    dryRun,
		Completed: []Result{},
	}
	for _, m := range sequence {
		attemptID := uuid.NewString()
		start := time.Now()
		err := e.executeOne(ctx, m, dir, dryRun, attemptID)
		duration := time.Since(start)

		result := Result{
			AttemptID:  attemptID,
			Version:    m.Version,
			Name:       m.Name,
			Success:    err == nil,
			DurationMS: uint32(duration.Milliseconds()),
		}
		if err != nil {
			result.Error = err.Error()
			report.Failed = &result
			metrics.ObserveMigration(namespace, string(dir), "error", duration)
			e.log.Error("migration failed",
				"namespace", namespace, "version", m.Version, "direction", dir,
				"attempt", attemptID, "error", err)
			if !dryRun {
				// The migration's own transaction was aborted, so the
				// failure record needs its own. Appended alongside any
				// earlier records; it never rewrites the version's state.
				entry := e.ledgerEntry(m, attemptID, StatusFailed, err.Error(), duration)
				if recErr := e.ledger.Record(ctx, entry); recErr != nil {
					e.log.Error("failed to record migration failure",
						"namespace", namespace, "version", m.Version, "error", recErr)
				}
			}
			break
		}

		metrics.ObserveMigration(namespace, string(dir), "ok", duration)
		e.log.Info("migration executed",
			"namespace", namespace, "version", m.Version, "direction", dir,
			"attempt", attemptID, "duration", duration, "dry_run", dryRun)
		report.Completed = append(report.Completed, result)
	}
	return report
}

// executeOne runs a single migration in one transaction. On success the
// ledger record is written inside the same transaction before commit, so
// the schema change and its record are atomic.
func (e *Executor) executeOne(ctx context.Context, m Migration, dir Direction, dryRun bool, attemptID string) error {
	start := time.Now()
	return e.withTx(ctx, func(tx pgx.Tx) (TxOutcome, error) {
		script, status := m.Forward, StatusApplied
		if dir == DirectionDown {
			script, status = m.Backward, StatusRolledBack
		}
		if script == "" {
			return TxDiscard, fmt.Errorf("version %d has no %s script", m.Version, dir)
		}
		if _, err := tx.Exec(ctx, script); err != nil {
			return TxDiscard, err
		}
		if dryRun {
			return TxDiscard, nil
		}
		entry := e.ledgerEntry(m, attemptID, status, "", time.Since(start))
		if err := e.ledger.RecordTx(ctx, tx, entry); err != nil {
			return TxDiscard, err
		}
		return TxCommit, nil
	})
}

// withTx runs fn in a transaction and settles it per the returned outcome.
// An error from fn always aborts.
func (e *Executor) withTx(ctx context.Context, fn func(pgx.Tx) (TxOutcome, error)) error {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	outcome, err := fn(tx)
	if err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if outcome == TxDiscard {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			return fmt.Errorf("failed to discard transaction: %w", err)
		}
		return nil
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (e *Executor) ledgerEntry(m Migration, attemptID string, status Status, errMsg string, d time.Duration) LedgerEntry {
	return LedgerEntry{
		AttemptID:    attemptID,
		Namespace:    m.Namespace,
		Version:      m.Version,
		Name:         m.Name,
		Checksum:     m.Checksum,
		AppliedBy:    e.appliedBy,
		Status:       status,
		ErrorMessage: errMsg,
		DurationMS:   uint32(d.Milliseconds()),
	}
}

func (e *Executor) warnOnDrift(ctx context.Context, namespace string, set []Migration) {
	entries, err := e.ledger.Entries(ctx, namespace)
	if err != nil {
		e.log.Warn("failed to check checksum drift", "namespace", namespace, "error", err)
		return
	}
	for _, d := range detectDrift(entries, set) {
		e.log.Warn("migration script changed after being applied",
			"namespace", namespace, "version", d.Version,
			"recorded", d.RecordedChecksum, "current", d.CurrentChecksum)
	}
}

// detectDrift compares checksums for versions that are currently applied.
// The ledger is append-only, so each version's state is its latest
// successful record; failed attempts change nothing and are skipped.
func detectDrift(entries []LedgerEntry, set []Migration) []Drift {
	byVersion := make(map[uint32]Migration, len(set))
	for _, m := range set {
		byVersion[m.Version] = m
	}
	latest := make(map[uint32]LedgerEntry)
	for _, e := range entries {
		if e.Status == StatusFailed {
			continue
		}
		latest[e.Version] = e
	}
	var drift []Drift
	for version, e := range latest {
		if e.Status != StatusApplied {
			continue
		}
		m, ok := byVersion[version]
		if !ok || m.Checksum == e.Checksum {
			continue
		}
		drift = append(drift, Drift{
			Version:          e.Version,
			Name:             e.Name,
			RecordedChecksum: e.Checksum,
			CurrentChecksum:  m.Checksum,
		})
	}
	sort.Slice(drift, func(i, j int) bool { return drift[i].Version < drift[j].Version })
	return drift
}
