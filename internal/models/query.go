package models

import (
	"encoding/json"

	"github.com/grobertson/Rosey-Robot-sub001/internal/query"
)

// SearchRequest is the request body for search operations. Filter, sort
// and aggregate are raw declarative documents; parsing and validation
// belong to the core, not the transport.
type SearchRequest struct {
	Filter    json.RawMessage `json:"filter,omitempty"`
	Sort      json.RawMessage `json:"sort,omitempty"`
	Limit     *int            `json:"limit,omitempty"`
	Offset    *int            `json:"offset,omitempty"`
	Aggregate json.RawMessage `json:"aggregate,omitempty"`
}

// SearchResponse carries the materialized row set
type SearchResponse struct {
	Rows []query.Row `json:"rows"`
}

// AggregateResponse carries the single row of named aggregate values
type AggregateResponse struct {
	Result query.Row `json:"result"`
}

// UpdateRequest is the request body for atomic update operations
type UpdateRequest struct {
	Filter json.RawMessage `json:"filter,omitempty"`
	Update json.RawMessage `json:"update"`
}

// UpdateResponse reports how many rows were modified
type UpdateResponse struct {
	AffectedCount int64 `json:"affected_count"`
}

// ErrorDetail is the structured error payload: a reason code plus a
// human-readable summary, never backend query text.
type ErrorDetail struct {
	Kind     string `json:"kind"`
	Detail   string `json:"detail"`
	Field    string `json:"field,omitempty"`
	Operator string `json:"operator,omitempty"`
	Code     string `json:"code,omitempty"`
}

// ErrorResponse wraps an ErrorDetail
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}
