/*
errors.go - Error taxonomy for the posting engine

PURPOSE:
  All posting failures fall into four categories, and every error names
  the document (and line or dimension) that triggered it:

  1. Validation - bad or missing references, out-of-range values
  2. State      - posting an already-posted document, unposting a draft
  3. Conflict   - payroll uniqueness violation against another posting
  4. Storage    - transport/timeout/transaction failure, safe to retry

PROPAGATION POLICY:
  Every failure aborts the enclosing transaction; the engine never
  partially commits and never retries internally. Retry is the caller's
  responsibility, and retrying a failed Post is always safe because no
  state changed.

USAGE:
  if errors.Is(err, posting.ErrState) { ... }

  var ve *posting.ValidationError
  if errors.As(err, &ve) { log(ve.LineNo) }
*/
package posting

import (
	"errors"
	"fmt"
	"time"

	"github.com/sitebook/posting-engine/register"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDocumentNotFound is returned when the referenced document does
	// not exist or has been soft-deleted.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrValidation is the category for bad references and out-of-range
	// values. Wrapped by ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrState is the category for operations against the wrong posted
	// state. Wrapped by StateError.
	ErrState = errors.New("invalid document state")

	// ErrConflict is the category for payroll uniqueness violations.
	// Wrapped by ConflictError.
	ErrConflict = errors.New("register conflict")
)

// =============================================================================
// STRUCTURED ERRORS - Carry the offending document/line/dimension
// =============================================================================

// ValidationError identifies the line and field that failed validation.
type ValidationError struct {
	Ref    register.RecorderRef
	LineNo int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.LineNo > 0 {
		return fmt.Sprintf("%s line %d: %s %s", e.Ref, e.LineNo, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s %s", e.Ref, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StateError reports an operation against the wrong posted state, e.g.
// posting an already-posted document.
type StateError struct {
	Ref    register.RecorderRef
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Ref, e.Reason)
}

func (e *StateError) Unwrap() error { return ErrState }

// ConflictError names the payroll tuple that collided with a row from
// some other posted timesheet.
type ConflictError struct {
	Ref        register.RecorderRef
	ObjectID   int64
	EstimateID int64
	EmployeeID int64
	WorkDate   time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: employee %d already booked on %s (object %d, estimate %d)",
		e.Ref, e.EmployeeID, e.WorkDate.Format("2006-01-02"), e.ObjectID, e.EstimateID)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// StorageError wraps transport, timeout and transaction failures. The
// enclosing transaction rolled back, so the operation is safe to retry.
type StorageError struct {
	Op  string
	Ref register.RecorderRef
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Ref, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error is transient and the same call
// might succeed on retry.
func IsRetryable(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// IsClientError returns true if the error is due to invalid caller input
// or state, not a system failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrState) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrDocumentNotFound)
}

// IsNotFound returns true if the error indicates a missing document.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDocumentNotFound)
}
