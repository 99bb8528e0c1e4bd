/*
engine.go - The posting engine

PURPOSE:
  Turns mutable draft documents into immutable register movements, and
  guarantees the movements always reflect exactly the current posted
  state of their source document - never more, never less, under retries
  and concurrent attempts alike.

POSTING (single transaction):
  1. Load document and lines
  2. Validate against the catalog and document-type rules
  3. Recompute header totals from current lines
  4. Delete any register rows already tagged with this recorder,
     clearing whatever a prior partial run may have left
  5. Insert freshly built rows
  6. Compare-and-set the posted flag, stamp posted_at
  7. Commit; any failure in 2-6 rolls the whole transaction back

UNPOSTING reverses state only: delete rows by recorder, clear the flag.
Header and line data is untouched - posting only ever copied it outward.

CONCURRENCY:
  The posted flag is the gate. SetPostedState applies only when the flag
  holds the opposite value, inside the same transaction as the row
  writes, so of two concurrent posts on one document exactly one commits;
  the other observes the flag and fails fast with a StateError. Different
  documents never contend: rows are scoped by recorder identity.

RE-POSTING:
  Posting an already-posted document is rejected, never silently
  re-applied. Unpost followed by Post is the only way to refresh register
  rows after editing, and an unchanged document re-posts to byte-identical
  rows and totals (ids aside).

SEE ALSO:
  - validate.go: type-specific rules
  - rows.go: movement construction
  - register/balance.go: the read side
*/
package posting

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sitebook/posting-engine/document"
	"github.com/sitebook/posting-engine/register"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine orchestrates Post and Unpost over a transactional store and the
// read-only catalog gateway.
type Engine struct {
	store   TxStore
	catalog Catalog
	logger  *zap.Logger
	now     func() time.Time
}

func NewEngine(store TxStore, catalog Catalog, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:   store,
		catalog: catalog,
		logger:  logger,
		now:     time.Now,
	}
}

// PostedSummary reports what a successful posting produced.
type PostedSummary struct {
	Ref               register.RecorderRef
	PostedAt          time.Time
	WorkExecutionRows int
	PayrollRows       int
}

// =============================================================================
// POST
// =============================================================================

// Post validates the draft document, materializes its register rows and
// marks it posted, all in one transaction. On any failure the document
// remains draft and no rows exist for it.
func (e *Engine) Post(ctx context.Context, ref register.RecorderRef) (*PostedSummary, error) {
	var summary *PostedSummary

	err := e.store.WithTx(ctx, func(s Store) error {
		doc, err := s.LoadDocument(ctx, ref)
		if err != nil {
			return err
		}
		head := doc.Head()
		if head.IsPosted {
			return &StateError{Ref: ref, Reason: "already posted"}
		}

		if err := e.validate(ctx, doc); err != nil {
			return err
		}

		recomputeTotals(doc)
		if err := s.SaveTotals(ctx, doc); err != nil {
			return &StorageError{Op: "save totals", Ref: ref, Err: err}
		}

		if err := s.DeleteByRecorder(ctx, ref); err != nil {
			return &StorageError{Op: "pre-clean registers", Ref: ref, Err: err}
		}

		workRows, payrollRows := RowsFor(doc)
		if len(workRows) > 0 {
			if err := s.InsertWorkExecution(ctx, workRows); err != nil {
				return &StorageError{Op: "insert work execution rows", Ref: ref, Err: err}
			}
		}
		if len(payrollRows) > 0 {
			if err := s.InsertPayroll(ctx, payrollRows); err != nil {
				return e.mapPayrollError(ref, err)
			}
		}

		postedAt := e.now().UTC()
		changed, err := s.SetPostedState(ctx, ref, true, &postedAt)
		if err != nil {
			return &StorageError{Op: "set posted state", Ref: ref, Err: err}
		}
		if !changed {
			// A concurrent posting won the flag between load and write.
			return &StateError{Ref: ref, Reason: "already posted"}
		}

		summary = &PostedSummary{
			Ref:               ref,
			PostedAt:          postedAt,
			WorkExecutionRows: len(workRows),
			PayrollRows:       len(payrollRows),
		}
		return nil
	})
	if err != nil {
		return nil, e.categorize("post", ref, err)
	}

	e.logger.Info("document posted",
		zap.String("recorder", ref.String()),
		zap.Int("work_execution_rows", summary.WorkExecutionRows),
		zap.Int("payroll_rows", summary.PayrollRows),
	)
	return summary, nil
}

// =============================================================================
// UNPOST
// =============================================================================

// Unpost deletes the document's register rows and returns it to draft.
// Fails with a StateError if the document is not currently posted.
func (e *Engine) Unpost(ctx context.Context, ref register.RecorderRef) error {
	err := e.store.WithTx(ctx, func(s Store) error {
		doc, err := s.LoadDocument(ctx, ref)
		if err != nil {
			return err
		}
		if !doc.Head().IsPosted {
			return &StateError{Ref: ref, Reason: "not posted"}
		}

		if err := s.DeleteByRecorder(ctx, ref); err != nil {
			return &StorageError{Op: "delete registers", Ref: ref, Err: err}
		}

		changed, err := s.SetPostedState(ctx, ref, false, nil)
		if err != nil {
			return &StorageError{Op: "clear posted state", Ref: ref, Err: err}
		}
		if !changed {
			return &StateError{Ref: ref, Reason: "not posted"}
		}
		return nil
	})
	if err != nil {
		return e.categorize("unpost", ref, err)
	}

	e.logger.Info("document unposted", zap.String("recorder", ref.String()))
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func recomputeTotals(doc document.Document) {
	switch d := doc.(type) {
	case *document.Estimate:
		d.Totals = document.ComputeEstimateTotals(d.Lines)
	case *document.DailyReport:
		d.Totals = document.ComputeDailyReportTotals(d.Lines)
	case *document.Timesheet:
		d.Totals = document.ComputeTimesheetTotals(d.Lines)
	}
}

// mapPayrollError converts the store's uniqueness violation into a
// ConflictError naming the colliding tuple.
func (e *Engine) mapPayrollError(ref register.RecorderRef, err error) error {
	var dup *register.DuplicateBookingError
	if errors.As(err, &dup) {
		workDate, _ := time.Parse("2006-01-02", dup.WorkDate)
		return &ConflictError{
			Ref:        ref,
			ObjectID:   dup.ObjectID,
			EstimateID: dup.EstimateID,
			EmployeeID: dup.EmployeeID,
			WorkDate:   workDate,
		}
	}
	return &StorageError{Op: "insert payroll rows", Ref: ref, Err: err}
}

// categorize ensures every returned error belongs to the taxonomy:
// anything not already classified is a transient storage failure.
func (e *Engine) categorize(op string, ref register.RecorderRef, err error) error {
	if IsClientError(err) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Ref: ref, Err: err}
}
