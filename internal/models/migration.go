package models

import "github.com/grobertson/Rosey-Robot-sub001/internal/migration"

// MigrationRequest is the request body for apply/rollback operations.
// Target is a version number, or "latest" for apply.
type MigrationRequest struct {
	Target string `json:"target"`
	DryRun bool   `json:"dry_run"`
}

// MigrationOutcome classifies an apply/rollback response.
type MigrationOutcome string

const (
	OutcomeSuccess        MigrationOutcome = "success"
	OutcomePartialFailure MigrationOutcome = "partial_failure"
	OutcomeRejected       MigrationOutcome = "rejected"
)

// MigrationResponse is the response body for apply/rollback operations.
type MigrationResponse struct {
	Outcome       MigrationOutcome   `json:"outcome"`
	DryRun        bool               `json:"dry_run,omitempty"`
	Applied       []migration.Result `json:"applied,omitempty"`
	RolledBack    []migration.Result `json:"rolled_back,omitempty"`
	FailedVersion *uint32            `json:"failed_version,omitempty"`
	Error         string             `json:"error,omitempty"`
	Reason        string             `json:"reason,omitempty"`
}

// FromReport builds the response for a finished apply/rollback request.
func FromReport(report *migration.Report) MigrationResponse {
	resp := MigrationResponse{
		Outcome: OutcomeSuccess,
		DryRun:  report.DryRun,
	}
	if report.Direction == migration.DirectionDown {
		resp.RolledBack = report.Completed
	} else {
		resp.Applied = report.Completed
	}
	if report.Failed != nil {
		resp.Outcome = OutcomePartialFailure
		v := report.Failed.Version
		resp.FailedVersion = &v
		resp.Error = report.Failed.Error
	}
	return resp
}

// Rejected builds the response for a request that lost the namespace lock.
func Rejected() MigrationResponse {
	return MigrationResponse{Outcome: OutcomeRejected, Reason: "MigrationInProgress"}
}
