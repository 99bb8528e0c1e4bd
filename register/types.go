/*
Package register provides the accumulation registers: append-only tables
of dated, dimensioned movements produced by posted documents.

PURPOSE:
  Register rows are the immutable record of what a posted document
  contributed. Balances are always computed by summing rows - there is
  no separate "balance" field that can get out of sync.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: rows are never updated in place, only inserted and
     deleted as a batch per recorder.
  2. RECORDER-SCOPED: every row is tagged with the (type, id) of the
     document that produced it, and only the posting engine writes rows.
  3. EXACTLY ONE SIDE: each work execution row carries either income
     (estimate) or expense (daily report) measures, never both.

KEY CONCEPTS IN THIS FILE (types.go):
  - RecorderRef: identity of the producing document
  - WorkExecutionRow: planned vs executed work movements
  - PayrollRow: hours worked per employee per calendar day
  - Period: a calendar month, the payroll aggregation window

SEE ALSO:
  - store.go: persistence interface
  - balance.go: balance queries computed from rows
*/
package register

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// RECORDER - Identity of the document that produced a row
// =============================================================================

// RecorderType is the tagged-union discriminator for the three document
// kinds that can produce register rows.
type RecorderType string

const (
	RecorderEstimate    RecorderType = "estimate"
	RecorderDailyReport RecorderType = "daily_report"
	RecorderTimesheet   RecorderType = "timesheet"
)

// Valid reports whether t is one of the known recorder types.
func (t RecorderType) Valid() bool {
	switch t {
	case RecorderEstimate, RecorderDailyReport, RecorderTimesheet:
		return true
	}
	return false
}

// RecorderRef identifies the source document of a register row.
type RecorderRef struct {
	Type RecorderType
	ID   int64
}

func (r RecorderRef) String() string {
	return fmt.Sprintf("%s/%d", r.Type, r.ID)
}

// RowID is the storage identity of a single register row. Row ids carry
// no meaning; rows are addressed by recorder and dimensions.
type RowID string

func NewRowID() RowID {
	return RowID(uuid.NewString())
}

// =============================================================================
// WORK EXECUTION REGISTER - planned (income) vs executed (expense) work
// =============================================================================

// WorkExecutionRow is one movement in the work execution register.
// Estimates post income measures, daily reports post expense measures;
// the other side is always zero.
type WorkExecutionRow struct {
	ID       RowID
	Recorder RecorderRef
	LineNo   int

	// Dimensions
	Period     time.Time
	ObjectID   int64
	EstimateID int64
	WorkID     int64

	// Measures
	QuantityIncome  decimal.Decimal
	QuantityExpense decimal.Decimal
	SumIncome       decimal.Decimal
	SumExpense      decimal.Decimal
}

// =============================================================================
// PAYROLL REGISTER - hours and amounts per employee per work day
// =============================================================================

// PayrollRow is one movement in the payroll register.
//
// INVARIANT: at most one row per (ObjectID, EstimateID, EmployeeID,
// WorkDate) across all recorders - an employee cannot be booked twice on
// the same calendar day for the same object and estimate. The store
// enforces this and surfaces violations as DuplicateBookingError.
type PayrollRow struct {
	ID       RowID
	Recorder RecorderRef
	LineNo   int

	// Dimensions
	Period     time.Time // first day of the work month
	ObjectID   int64
	EstimateID int64
	EmployeeID int64
	WorkDate   time.Time

	// Measures
	HoursWorked decimal.Decimal
	Amount      decimal.Decimal
}

// =============================================================================
// PERIOD - A calendar month
// =============================================================================

// Period is the payroll aggregation window: one calendar month.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod parses "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q (want YYYY-MM): %w", s, err)
	}
	return PeriodOf(t), nil
}

// Start returns the first instant of the period (first day, UTC midnight).
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last instant of the period's last day.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// Days returns the number of days in the period.
func (p Period) Days() int {
	return p.Start().AddDate(0, 1, -1).Day()
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return t.Year() == p.Year && t.Month() == p.Month
}

func (p Period) String() string {
	return p.Start().Format("2006-01")
}

// MustParseDecimal parses s, returning zero on malformed input. Used when
// scanning values that the store itself wrote.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
