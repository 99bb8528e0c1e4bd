/*
validate.go - Type-specific document validation

PURPOSE:
  Runs before any write in a posting transaction. Any failure aborts the
  posting with no side effects, and the error names the offending line.

RULES:
  Estimate:    every non-group line references an existing work;
               quantity >= 0, price >= 0.
  DailyReport: the referenced estimate is itself posted; every line's
               work appears among that estimate's work references;
               actual labor >= 0; executors exist.
  Timesheet:   every employee reference exists; each day entry is a
               valid day of the document's month with hours in [0, 24].
*/
package posting

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sitebook/posting-engine/document"
	"github.com/sitebook/posting-engine/register"
)

var maxDayHours = decimal.NewFromInt(24)

func (e *Engine) validate(ctx context.Context, doc document.Document) error {
	switch d := doc.(type) {
	case *document.Estimate:
		return e.validateEstimate(ctx, d)
	case *document.DailyReport:
		return e.validateDailyReport(ctx, d)
	case *document.Timesheet:
		return e.validateTimesheet(ctx, d)
	}
	return &ValidationError{Ref: doc.Ref(), Field: "type", Reason: "unknown document kind"}
}

func (e *Engine) validateEstimate(ctx context.Context, est *document.Estimate) error {
	ref := est.Ref()
	for _, l := range est.Lines {
		if l.IsGroup() {
			continue
		}
		exists, err := e.catalog.WorkExists(ctx, *l.WorkID)
		if err != nil {
			return &StorageError{Op: "work lookup", Ref: ref, Err: err}
		}
		if !exists {
			return &ValidationError{Ref: ref, LineNo: l.LineNo, Field: "work", Reason: "does not exist"}
		}
		if l.Quantity.IsNegative() {
			return &ValidationError{Ref: ref, LineNo: l.LineNo, Field: "quantity", Reason: "must not be negative"}
		}
		if l.Price.IsNegative() {
			return &ValidationError{Ref: ref, LineNo: l.LineNo, Field: "price", Reason: "must not be negative"}
		}
	}
	return nil
}

func (e *Engine) validateDailyReport(ctx context.Context, rep *document.DailyReport) error {
	ref := rep.Ref()

	posted, err := e.catalog.IsEstimatePosted(ctx, rep.EstimateID)
	if err != nil {
		return &StorageError{Op: "estimate lookup", Ref: ref, Err: err}
	}
	if !posted {
		return &ValidationError{Ref: ref, Field: "estimate", Reason: "is not posted"}
	}

	estimated, err := e.catalog.EstimateWorkReferences(ctx, rep.EstimateID)
	if err != nil {
		return &StorageError{Op: "estimate works lookup", Ref: ref, Err: err}
	}

	for _, l := range rep.Lines {
		if !estimated[l.WorkID] {
			return &ValidationError{Ref: ref, LineNo: l.LineNo, Field: "work", Reason: "not present in the estimate"}
		}
		if l.ActualLabor.IsNegative() {
			return &ValidationError{Ref: ref, LineNo: l.LineNo, Field: "actual_labor", Reason: "must not be negative"}
		}
		for _, executor := range l.ExecutorIDs {
			exists, err := e.catalog.EmployeeExists(ctx, executor)
			if err != nil {
				return &StorageError{Op: "employee lookup", Ref: ref, Err: err}
			}
			if !exists {
				return &ValidationError{Ref: ref, LineNo: l.LineNo, Field: "executor", Reason: "does not exist"}
			}
		}
	}
	return nil
}

func (e *Engine) validateTimesheet(ctx context.Context, ts *document.Timesheet) error {
	ref := ts.Ref()
	period := register.PeriodOf(ts.Date)

	for _, l := range ts.Lines {
		exists, err := e.catalog.EmployeeExists(ctx, l.EmployeeID)
		if err != nil {
			return &StorageError{Op: "employee lookup", Ref: ref, Err: err}
		}
		if !exists {
			return &ValidationError{Ref: ref, LineNo: l.LineNo, Field: "employee", Reason: "does not exist"}
		}
		if l.HourlyRate.IsNegative() {
			return &ValidationError{Ref: ref, LineNo: l.LineNo, Field: "hourly_rate", Reason: "must not be negative"}
		}
		for day, hours := range l.Hours {
			if day < 1 || day > period.Days() {
				return &ValidationError{Ref: ref, LineNo: l.LineNo, Field: "day", Reason: "outside the document month"}
			}
			if hours.IsNegative() || hours.GreaterThan(maxDayHours) {
				return &ValidationError{Ref: ref, LineNo: l.LineNo, Field: "hours", Reason: "must be between 0 and 24"}
			}
		}
	}
	return nil
}
