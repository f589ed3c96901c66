package query

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ExecutionError is a storage-layer failure during a valid request. It
// carries a structured reason code plus a summary; backend query text is
// never included.
type ExecutionError struct {
	Op     string `json:"op"`
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail"`
	Err    error  `json:"-"`
}

func (e *ExecutionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s failed (%s): %s", e.Op, e.Code, e.Detail)
	}
	return fmt.Sprintf("%s failed: %s", e.Op, e.Detail)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func execError(op string, err error) *ExecutionError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &ExecutionError{Op: op, Code: pgErr.Code, Detail: pgErr.Message, Err: err}
	}
	return &ExecutionError{Op: op, Detail: err.Error(), Err: err}
}
