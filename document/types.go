/*
Package document defines the three draft document kinds and their line
payloads.

PURPOSE:
  Documents are the mutable, operator-edited side of the system. A draft
  can be edited any number of times; once posted it is read-only until
  unposted. Posting never mutates a document beyond recomputing its
  denormalized header totals.

KEY CONCEPTS IN THIS FILE (types.go):
  - Header: identity, date, posted/draft flag shared by all kinds
  - Estimate: planned works with quantities, prices and labor rates
  - DailyReport: actual execution against a posted estimate
  - Timesheet: per-employee hours by day of month

DERIVED FIELDS:
  Line-level derived values (sum, planned labor, deviation percent, total
  hours) are methods, never stored fields - they cannot drift from their
  inputs. Header totals ARE stored (denormalized for list views) and are
  recomputed from lines at posting time.

SEE ALSO:
  - totals.go: pure header-total computation
  - posting/engine.go: consumes documents, produces register rows
*/
package document

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitebook/posting-engine/register"
)

// =============================================================================
// HEADER - shared by all document kinds
// =============================================================================

// Header is the common part of every document.
//
// INVARIANT: PostedAt != nil exactly when IsPosted.
type Header struct {
	ID       int64
	Number   string
	Date     time.Time
	ObjectID int64

	IsPosted bool
	PostedAt *time.Time

	// Soft-deletion, permitted only while draft.
	Deleted bool

	CreatedAt time.Time
}

// Document is any of the three postable kinds.
type Document interface {
	Ref() register.RecorderRef
	Head() *Header
	// Clone returns a deep copy; stores hand out clones so callers can
	// never mutate persisted state in place.
	Clone() Document
}

// =============================================================================
// ESTIMATE - planned works
// =============================================================================

// EstimateLine is one planned work, or a group header when WorkID is nil.
// Group rows carry no quantity or price.
type EstimateLine struct {
	LineNo     int
	WorkID     *int64
	GroupTitle string

	Quantity  decimal.Decimal
	Price     decimal.Decimal
	LaborRate decimal.Decimal

	MaterialQuantity decimal.Decimal
	MaterialPrice    decimal.Decimal
}

func (l EstimateLine) IsGroup() bool { return l.WorkID == nil }

// Sum returns quantity × price.
func (l EstimateLine) Sum() decimal.Decimal {
	return l.Quantity.Mul(l.Price)
}

// PlannedLabor returns quantity × labor rate.
func (l EstimateLine) PlannedLabor() decimal.Decimal {
	return l.Quantity.Mul(l.LaborRate)
}

// MaterialSum returns material quantity × material price.
func (l EstimateLine) MaterialSum() decimal.Decimal {
	return l.MaterialQuantity.Mul(l.MaterialPrice)
}

// EstimateTotals are the denormalized header sums over non-group lines.
type EstimateTotals struct {
	TotalSum         decimal.Decimal
	TotalLabor       decimal.Decimal
	TotalMaterialSum decimal.Decimal
}

type Estimate struct {
	Header
	Lines  []EstimateLine
	Totals EstimateTotals
}

func (e *Estimate) Ref() register.RecorderRef {
	return register.RecorderRef{Type: register.RecorderEstimate, ID: e.ID}
}

func (e *Estimate) Head() *Header { return &e.Header }

func (e *Estimate) Clone() Document {
	c := *e
	c.Lines = make([]EstimateLine, len(e.Lines))
	copy(c.Lines, e.Lines)
	for i, l := range e.Lines {
		if l.WorkID != nil {
			id := *l.WorkID
			c.Lines[i].WorkID = &id
		}
	}
	if e.PostedAt != nil {
		t := *e.PostedAt
		c.PostedAt = &t
	}
	return &c
}

// =============================================================================
// DAILY REPORT - actual execution against a posted estimate
// =============================================================================

// DailyReportLine records actual labor against one estimated work.
// PlannedLabor and Price are copied from the estimate at fill time so the
// report stays comparable even if the estimate is later unposted and
// edited.
type DailyReportLine struct {
	LineNo int
	WorkID int64

	Price        decimal.Decimal
	PlannedLabor decimal.Decimal
	ActualLabor  decimal.Decimal

	MaterialPlanned decimal.Decimal
	MaterialActual  decimal.Decimal

	ExecutorIDs []int64
}

// DeviationPercent returns (actual − planned) / planned × 100.
// When planned labor is zero the deviation is undefined; this returns the
// zero sentinel rather than dividing.
func (l DailyReportLine) DeviationPercent() decimal.Decimal {
	return deviationPercent(l.PlannedLabor, l.ActualLabor)
}

// MaterialDeviationPercent applies the same formula and sentinel to the
// material consumption mirror fields.
func (l DailyReportLine) MaterialDeviationPercent() decimal.Decimal {
	return deviationPercent(l.MaterialPlanned, l.MaterialActual)
}

// ActualSum returns actual labor valued at the copied estimate price.
func (l DailyReportLine) ActualSum() decimal.Decimal {
	return l.ActualLabor.Mul(l.Price)
}

func deviationPercent(planned, actual decimal.Decimal) decimal.Decimal {
	if planned.IsZero() {
		return decimal.Zero
	}
	return actual.Sub(planned).Div(planned).Mul(decimal.NewFromInt(100))
}

type DailyReportTotals struct {
	TotalPlannedLabor decimal.Decimal
	TotalActualLabor  decimal.Decimal
}

type DailyReport struct {
	Header
	EstimateID int64
	Lines      []DailyReportLine
	Totals     DailyReportTotals
}

func (d *DailyReport) Ref() register.RecorderRef {
	return register.RecorderRef{Type: register.RecorderDailyReport, ID: d.ID}
}

func (d *DailyReport) Head() *Header { return &d.Header }

func (d *DailyReport) Clone() Document {
	c := *d
	c.Lines = make([]DailyReportLine, len(d.Lines))
	copy(c.Lines, d.Lines)
	for i, l := range d.Lines {
		c.Lines[i].ExecutorIDs = append([]int64(nil), l.ExecutorIDs...)
	}
	if d.PostedAt != nil {
		t := *d.PostedAt
		c.PostedAt = &t
	}
	return &c
}

// =============================================================================
// TIMESHEET - hours per employee per day of month
// =============================================================================

// TimesheetLine holds one employee's hours keyed by day of month (1-31).
type TimesheetLine struct {
	LineNo     int
	EmployeeID int64
	HourlyRate decimal.Decimal
	Hours      map[int]decimal.Decimal
}

// TotalHours returns the sum of all day entries.
func (l TimesheetLine) TotalHours() decimal.Decimal {
	total := decimal.Zero
	for _, h := range l.Hours {
		total = total.Add(h)
	}
	return total
}

// TotalAmount returns total hours × hourly rate.
func (l TimesheetLine) TotalAmount() decimal.Decimal {
	return l.TotalHours().Mul(l.HourlyRate)
}

type TimesheetTotals struct {
	TotalHours  decimal.Decimal
	TotalAmount decimal.Decimal
}

type Timesheet struct {
	Header
	EstimateID int64
	Lines      []TimesheetLine
	Totals     TimesheetTotals
}

func (t *Timesheet) Ref() register.RecorderRef {
	return register.RecorderRef{Type: register.RecorderTimesheet, ID: t.ID}
}

func (t *Timesheet) Head() *Header { return &t.Header }

func (t *Timesheet) Clone() Document {
	c := *t
	c.Lines = make([]TimesheetLine, len(t.Lines))
	copy(c.Lines, t.Lines)
	for i, l := range t.Lines {
		hours := make(map[int]decimal.Decimal, len(l.Hours))
		for day, h := range l.Hours {
			hours[day] = h
		}
		c.Lines[i].Hours = hours
	}
	if t.PostedAt != nil {
		pt := *t.PostedAt
		c.PostedAt = &pt
	}
	return &c
}
