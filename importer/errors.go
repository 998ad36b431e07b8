package importer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionNotFound is returned when an import session is unknown or expired.
var ErrSessionNotFound = errors.New("import session not found or expired")

// HeaderNotFoundError means no row contained both required header columns.
// The import must be aborted.
type HeaderNotFoundError struct {
	MachineColumn string
	OrderColumn   string
	RowsScanned   int
}

func (e *HeaderNotFoundError) Error() string {
	return fmt.Sprintf("header row not found: no row among %d contains both %q and %q",
		e.RowsScanned, e.MachineColumn, e.OrderColumn)
}

// ValidationIssue is one problem in the source data. Row is 1-based as the
// user sees it in the spreadsheet.
type ValidationIssue struct {
	Row     int    `json:"row"`
	Column  string `json:"column"`
	Message string `json:"message"`
}

func (v ValidationIssue) String() string {
	if v.Column == "" {
		return fmt.Sprintf("row %d: %s", v.Row, v.Message)
	}
	return fmt.Sprintf("row %d, %s: %s", v.Row, v.Column, v.Message)
}

// ValidationErrors is the full list of blocking issues found in one parse.
type ValidationErrors []ValidationIssue

func (v ValidationErrors) Error() string {
	if len(v) == 1 {
		return "validation failed: " + v[0].String()
	}
	parts := make([]string, len(v))
	for i, issue := range v {
		parts[i] = issue.String()
	}
	return fmt.Sprintf("validation failed with %d issues: %s", len(v), strings.Join(parts, "; "))
}

// CommitError reports a failed chunk. Chunks before FailedAtChunk stay committed.
type CommitError struct {
	Result CommitResult
	Err    error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("import partially committed: chunk %d of %d failed after %d rows: %v",
		e.Result.FailedAtChunk, e.Result.Chunks, e.Result.CommittedRows, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }
