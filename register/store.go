/*
store.go - Register persistence interface

PURPOSE:
  Defines the storage contract for register rows. Implementations live in
  store/sqlite (production) and store/memory (tests).

DESIGN:
  No update operation exists. The set of rows for a recorder is always
  exactly "whatever the most recent successful posting produced", or
  empty. Both Post (pre-clean) and Unpost use DeleteByRecorder;
  everything else is batch insert and read.

ERRORS:
  Inserting a payroll row that collides with an existing booking must
  surface DuplicateBookingError (wrapping ErrDuplicateBooking) rather than
  a generic failure, so the posting engine can map it to a conflict the
  operator can resolve.

SEE ALSO:
  - store/sqlite/sqlite.go: production implementation
  - store/memory/memory.go: in-memory implementation
*/
package register

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateBooking is returned when a payroll insert collides with
	// the (object, estimate, employee, work_date) uniqueness constraint.
	ErrDuplicateBooking = errors.New("duplicate payroll booking")
)

// DuplicateBookingError names the colliding payroll tuple.
type DuplicateBookingError struct {
	ObjectID   int64
	EstimateID int64
	EmployeeID int64
	WorkDate   string // YYYY-MM-DD
}

func (e *DuplicateBookingError) Error() string {
	return fmt.Sprintf("employee %d already booked on %s (object %d, estimate %d)",
		e.EmployeeID, e.WorkDate, e.ObjectID, e.EstimateID)
}

func (e *DuplicateBookingError) Unwrap() error {
	return ErrDuplicateBooking
}

// =============================================================================
// STORE - Register row persistence
// =============================================================================

// Store persists register rows. All writes happen within the posting
// engine's transaction; reads reflect committed state when called outside
// one.
type Store interface {
	// DeleteByRecorder removes every row, in both registers, tagged with
	// the given recorder. Used by Post (pre-clean) and Unpost.
	DeleteByRecorder(ctx context.Context, rec RecorderRef) error

	// InsertWorkExecution inserts rows all-or-nothing.
	InsertWorkExecution(ctx context.Context, rows []WorkExecutionRow) error

	// InsertPayroll inserts rows all-or-nothing. Returns a
	// DuplicateBookingError if any row violates payroll uniqueness.
	InsertPayroll(ctx context.Context, rows []PayrollRow) error

	// WorkExecutionByRecorder returns the rows a recorder produced,
	// ordered by line number.
	WorkExecutionByRecorder(ctx context.Context, rec RecorderRef) ([]WorkExecutionRow, error)

	// PayrollByRecorder returns the payroll rows a recorder produced,
	// ordered by line number then work date.
	PayrollByRecorder(ctx context.Context, rec RecorderRef) ([]PayrollRow, error)

	// WorkExecutionByEstimate returns all rows for an estimate dimension,
	// across recorders. Feed for the work balance query.
	WorkExecutionByEstimate(ctx context.Context, estimateID int64) ([]WorkExecutionRow, error)

	// PayrollInPeriod returns all payroll rows in a calendar month.
	// Feed for the payroll summary query.
	PayrollInPeriod(ctx context.Context, p Period) ([]PayrollRow, error)
}
