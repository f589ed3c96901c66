package migration

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grobertson/Rosey-Robot-sub001/internal/database"
)

// Integration tests need a reachable Postgres with the internal schema
// bootstrapped. They skip when ROSEY_TEST_DATABASE_URL is unset.

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("ROSEY_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("ROSEY_TEST_DATABASE_URL not set")
	}
	db, err := database.Connect(dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(db.Close)
	return db.Pool
}

func testNamespace(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func cleanupNamespace(t *testing.T, pool *pgxpool.Pool, namespace string, tables ...string) {
	t.Cleanup(func() {
		ctx := context.Background()
		for _, table := range tables {
			_, _ = pool.Exec(ctx, "DROP TABLE IF EXISTS "+table)
		}
		_, _ = pool.Exec(ctx, "DELETE FROM migration_ledger WHERE namespace = $1", namespace)
	})
}

func tableExists(t *testing.T, pool *pgxpool.Pool, table string) bool {
	t.Helper()
	var exists bool
	err := pool.QueryRow(context.Background(),
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)", table).Scan(&exists)
	if err != nil {
		t.Fatalf("table existence check: %v", err)
	}
	return exists
}

func sourceWith(t *testing.T, migrations ...Migration) *MemorySource {
	t.Helper()
	s := NewMemorySource()
	for _, m := range migrations {
		if err := s.Register(m); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	return s
}

func TestExecutorApplyAndStatus(t *testing.T) {
	pool := testPool(t)
	ns := testNamespace("apply")
	table := ns + "_items"
	cleanupNamespace(t, pool, ns, table)

	src := sourceWith(t,
		mig(ns, 1, "create_items",
			"CREATE TABLE "+table+" (id BIGINT PRIMARY KEY, label TEXT)",
			"DROP TABLE "+table),
		mig(ns, 2, "seed_items",
			"INSERT INTO "+table+" (id, label) VALUES (1, 'first')",
			"DELETE FROM "+table+" WHERE id = 1"),
	)
	e := NewExecutor(pool, src, "test")
	ctx := context.Background()

	report, err := e.Apply(ctx, ns, Latest, false)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if report.Failed != nil {
		t.Fatalf("unexpected failure: %+v", report.Failed)
	}
	if len(report.Completed) != 2 {
		t.Fatalf("expected two completed migrations, got %+v", report.Completed)
	}
	for _, result := range report.Completed {
		if result.AttemptID == "" {
			t.Errorf("version %d result is missing its attempt id", result.Version)
		}
	}
	if !tableExists(t, pool, table) {
		t.Fatal("forward script did not take effect")
	}

	status, err := e.Status(ctx, ns)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.CurrentVersion != 2 {
		t.Errorf("current version = %d, want 2", status.CurrentVersion)
	}
	if len(status.Pending) != 0 {
		t.Errorf("expected no pending migrations, got %+v", status.Pending)
	}
	if len(status.Applied) != 2 {
		t.Errorf("expected two ledger entries, got %+v", status.Applied)
	}
	for _, entry := range status.Applied {
		if entry.Status != StatusApplied {
			t.Errorf("version %d status = %q", entry.Version, entry.Status)
		}
		if entry.AppliedBy != "test" {
			t.Errorf("version %d applied_by = %q", entry.Version, entry.AppliedBy)
		}
		if entry.AttemptID == "" {
			t.Errorf("version %d ledger record is missing its attempt id", entry.Version)
		}
	}

	// a second apply at the same target is a no-op
	report, err = e.Apply(ctx, ns, Latest, false)
	if err != nil {
		t.Fatalf("re-apply: %v", err)
	}
	if len(report.Completed) != 0 {
		t.Errorf("re-apply must run nothing, got %+v", report.Completed)
	}
}

func TestExecutorDryRunHasNoEffect(t *testing.T) {
	pool := testPool(t)
	ns := testNamespace("dryrun")
	table := ns + "_items"
	cleanupNamespace(t, pool, ns, table)

	src := sourceWith(t,
		mig(ns, 1, "create_items", "CREATE TABLE "+table+" (id BIGINT)", "DROP TABLE "+table))
	e := NewExecutor(pool, src, "test")
	ctx := context.Background()

	report, err := e.Apply(ctx, ns, Latest, true)
	if err != nil {
		t.Fatalf("dry-run apply: %v", err)
	}
	if !report.DryRun || len(report.Completed) != 1 || report.Failed != nil {
		t.Fatalf("unexpected report: %+v", report)
	}
	if tableExists(t, pool, table) {
		t.Error("dry-run must not leave schema changes behind")
	}

	status, err := e.Status(ctx, ns)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.CurrentVersion != 0 {
		t.Errorf("dry-run must not advance the version, got %d", status.CurrentVersion)
	}
	if len(status.Applied) != 0 {
		t.Errorf("dry-run must write no ledger records, got %+v", status.Applied)
	}
}

func TestExecutorPartialFailureStopsSequence(t *testing.T) {
	pool := testPool(t)
	ns := testNamespace("partial")
	table := ns + "_items"
	cleanupNamespace(t, pool, ns, table)

	src := sourceWith(t,
		mig(ns, 1, "create_items", "CREATE TABLE "+table+" (id BIGINT)", "DROP TABLE "+table),
		mig(ns, 2, "broken", "THIS IS NOT SQL", ""),
		mig(ns, 3, "never_runs", "INSERT INTO "+table+" (id) VALUES (1)", ""),
	)
	e := NewExecutor(pool, src, "test")
	ctx := context.Background()

	report, err := e.Apply(ctx, ns, Latest, false)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(report.Completed) != 1 || report.Completed[0].Version != 1 {
		t.Errorf("expected version 1 committed, got %+v", report.Completed)
	}
	if report.Failed == nil || report.Failed.Version != 2 {
		t.Fatalf("expected version 2 to fail, got %+v", report.Failed)
	}
	if report.Failed.Error == "" {
		t.Error("failed result must carry the error message")
	}

	status, err := e.Status(ctx, ns)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.CurrentVersion != 1 {
		t.Errorf("earlier migrations stay committed, current = %d, want 1", status.CurrentVersion)
	}
	var failedRecorded bool
	for _, entry := range status.Applied {
		if entry.Version == 2 && entry.Status == StatusFailed {
			failedRecorded = true
			if entry.ErrorMessage == "" {
				t.Error("failed ledger record must carry the error message")
			}
		}
		if entry.Version == 3 {
			t.Error("version 3 must not run after a failure")
		}
	}
	if !failedRecorded {
		t.Error("the failure must be recorded in the ledger")
	}
}

func TestExecutorRollback(t *testing.T) {
	pool := testPool(t)
	ns := testNamespace("rollback")
	table := ns + "_items"
	cleanupNamespace(t, pool, ns, table)

	src := sourceWith(t,
		mig(ns, 1, "create_items",
			"CREATE TABLE "+table+" (id BIGINT)", "DROP TABLE "+table),
		mig(ns, 2, "seed",
			"INSERT INTO "+table+" (id) VALUES (1)", "DELETE FROM "+table+" WHERE id = 1"),
	)
	e := NewExecutor(pool, src, "test")
	ctx := context.Background()

	if _, err := e.Apply(ctx, ns, Latest, false); err != nil {
		t.Fatalf("apply: %v", err)
	}

	report, err := e.Rollback(ctx, ns, 0, false)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if report.Failed != nil {
		t.Fatalf("unexpected failure: %+v", report.Failed)
	}
	if len(report.Completed) != 2 || report.Completed[0].Version != 2 || report.Completed[1].Version != 1 {
		t.Errorf("rollback must run descending, got %+v", report.Completed)
	}
	if tableExists(t, pool, table) {
		t.Error("backward scripts did not take effect")
	}

	status, err := e.Status(ctx, ns)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.CurrentVersion != 0 {
		t.Errorf("current version after full rollback = %d, want 0", status.CurrentVersion)
	}
	if len(status.Pending) != 2 {
		t.Errorf("rolled-back migrations are pending again, got %+v", status.Pending)
	}
}

func TestExecutorRollbackWithoutBackwardScript(t *testing.T) {
	pool := testPool(t)
	ns := testNamespace("noback")
	table := ns + "_items"
	cleanupNamespace(t, pool, ns, table)

	src := sourceWith(t,
		mig(ns, 1, "create_items", "CREATE TABLE "+table+" (id BIGINT)", ""))
	e := NewExecutor(pool, src, "test")
	ctx := context.Background()

	if _, err := e.Apply(ctx, ns, Latest, false); err != nil {
		t.Fatalf("apply: %v", err)
	}
	report, err := e.Rollback(ctx, ns, 0, false)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if report.Failed == nil || report.Failed.Version != 1 {
		t.Fatalf("a migration without a backward script must fail to revert, got %+v", report)
	}
	if report.Failed.AttemptID == "" {
		t.Error("failed result must carry its attempt id")
	}

	// The failed revert changed nothing, so the version stays applied and
	// the original applied record survives alongside the failure record.
	status, err := e.Status(ctx, ns)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.CurrentVersion != 1 {
		t.Errorf("current version after failed rollback = %d, want 1", status.CurrentVersion)
	}
	if len(status.Pending) != 0 {
		t.Errorf("an applied version must not show as pending, got %+v", status.Pending)
	}
	var appliedSeen, failureSeen bool
	for _, entry := range status.Applied {
		if entry.Version != 1 {
			continue
		}
		switch entry.Status {
		case StatusApplied:
			appliedSeen = true
		case StatusFailed:
			failureSeen = true
			if entry.ErrorMessage == "" {
				t.Error("failure record must carry the error message")
			}
		}
	}
	if !appliedSeen {
		t.Error("the applied record must survive a failed rollback attempt")
	}
	if !failureSeen {
		t.Error("the failed attempt must be recorded")
	}

	// A retry still selects the version for revert.
	report, err = e.Rollback(ctx, ns, 0, false)
	if err != nil {
		t.Fatalf("retry rollback: %v", err)
	}
	if report.Failed == nil || report.Failed.Version != 1 {
		t.Errorf("retry must still select version 1, got %+v", report)
	}
}

func TestDetectDriftUsesLatestEffectiveRecord(t *testing.T) {
	set := []Migration{
		{Namespace: "n", Version: 1, Name: "a", Checksum: "changed"},
		{Namespace: "n", Version: 2, Name: "b", Checksum: "changed"},
	}
	entries := []LedgerEntry{
		// v1: applied, then a failed rollback attempt; state stays applied
		{Version: 1, Name: "a", Status: StatusApplied, Checksum: "original"},
		{Version: 1, Name: "a", Status: StatusFailed, Checksum: "original"},
		// v2: applied, then rolled back; no longer applied
		{Version: 2, Name: "b", Status: StatusApplied, Checksum: "original"},
		{Version: 2, Name: "b", Status: StatusRolledBack, Checksum: "original"},
	}
	drift := detectDrift(entries, set)
	if len(drift) != 1 || drift[0].Version != 1 {
		t.Fatalf("expected drift only for the still-applied version 1, got %+v", drift)
	}
	if drift[0].RecordedChecksum != "original" || drift[0].CurrentChecksum != "changed" {
		t.Errorf("unexpected drift checksums: %+v", drift[0])
	}
}

// blockingSource parks Discover until released, which holds the namespace
// lock open for a deterministic contention window.
type blockingSource struct {
	inner   Source
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *blockingSource) Discover(ctx context.Context, namespace string) ([]Migration, error) {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.inner.Discover(ctx, namespace)
}

func TestExecutorConcurrentApplyRejected(t *testing.T) {
	pool := testPool(t)
	ns := testNamespace("lock")
	cleanupNamespace(t, pool, ns)

	src := &blockingSource{
		inner:   NewMemorySource(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	e := NewExecutor(pool, src, "test")
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := e.Apply(ctx, ns, Latest, false)
		done <- err
	}()

	<-src.entered
	if _, err := e.Apply(ctx, ns, Latest, false); err != ErrMigrationInProgress {
		t.Errorf("expected ErrMigrationInProgress, got %v", err)
	}
	close(src.release)

	if err := <-done; err != nil {
		t.Fatalf("first apply: %v", err)
	}
	// lock released once the first request finished
	if _, err := e.Apply(ctx, ns, Latest, false); err != nil {
		t.Errorf("apply after release: %v", err)
	}
}
