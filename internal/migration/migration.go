// Package migration applies and reverts versioned schema changes per
// namespace, with one transaction per migration and a durable ledger of
// every attempt.
package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Status is a ledger record's lifecycle state.
type Status string

const (
	StatusApplied    Status = "applied"
	StatusRolledBack Status = "rolled_back"
	StatusFailed     Status = "failed"
)

// Migration is one versioned, checksummed schema change for a namespace.
// Migrations are read-only after discovery.
type Migration struct {
	Namespace string
	Version   uint32
	Name      string
	Forward   string
	Backward  string
	Checksum  string
}

// Checksum hashes a forward script; a mismatch against the ledger means
// the script changed after it was applied.
func Checksum(script string) string {
	sum := sha256.Sum256([]byte(script))
	return hex.EncodeToString(sum[:])
}

// LedgerEntry is one durable record of an apply/rollback attempt.
// Records are append-only, one per attempt, never updated or deleted.
type LedgerEntry struct {
	AttemptID    string    `json:"attempt_id"`
	Namespace    string    `json:"namespace"`
	Version      uint32    `json:"version"`
	Name         string    `json:"name"`
	Checksum     string    `json:"checksum"`
	AppliedAt    time.Time `json:"applied_at"`
	AppliedBy    string    `json:"applied_by"`
	Status       Status    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	DurationMS   uint32    `json:"duration_ms"`
}

// Result reports one migration execution inside an apply/rollback request.
// AttemptID matches the ledger record written for the attempt, if any.
type Result struct {
	AttemptID  string `json:"attempt_id"`
	Version    uint32 `json:"version"`
	Name       string `json:"name"`
	Success    bool   `json:"success"`
	DurationMS uint32 `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// Direction selects forward or backward execution.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Report is the outcome of one apply/rollback request. Completed holds the
// migrations that committed before any failure; Failed is nil when the
// whole sequence succeeded.
type Report struct {
	Namespace string    `json:"namespace"`
	Direction Direction `json:"direction"`
	DryRun    bool      `json:"dry_run"`
	Completed []Result  `json:"completed"`
	Failed    *Result   `json:"failed,omitempty"`
}

// VersionName identifies a pending migration in a status report.
type VersionName struct {
	Version uint32 `json:"version"`
	Name    string `json:"name"`
}

// Drift flags an applied version whose current script content no longer
// matches the checksum recorded at apply time.
type Drift struct {
	Version          uint32 `json:"version"`
	Name             string `json:"name"`
	RecordedChecksum string `json:"recorded_checksum"`
	CurrentChecksum  string `json:"current_checksum"`
}

// StatusReport is the full migration state of one namespace.
type StatusReport struct {
	Namespace      string        `json:"namespace"`
	CurrentVersion uint32        `json:"current_version"`
	Pending        []VersionName `json:"pending"`
	Applied        []LedgerEntry `json:"applied"`
	Drift          []Drift       `json:"drift,omitempty"`
}
