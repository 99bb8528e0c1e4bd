/*
rows.go - Movement construction

PURPOSE:
  Maps document lines to register rows. This is the posting convention in
  one place:

    Estimate     -> work execution INCOME rows, one per non-group line
                    (quantity, quantity × price)
    DailyReport  -> work execution EXPENSE rows, one per line
                    (actual labor, actual labor × copied price)
    Timesheet    -> payroll rows, one per non-zero day entry
                    (hours, hours × hourly rate)

  Construction is deterministic apart from the generated row ids: posting
  the same unchanged document twice produces field-for-field identical
  rows. The nightly register audit relies on this by rebuilding rows and
  comparing against what is stored.
*/
package posting

import (
	"sort"
	"time"

	"github.com/sitebook/posting-engine/document"
	"github.com/sitebook/posting-engine/register"
)

// RowsFor builds the register rows the document would produce when
// posted. Exactly one of the returned slices is non-empty per kind.
func RowsFor(doc document.Document) ([]register.WorkExecutionRow, []register.PayrollRow) {
	switch d := doc.(type) {
	case *document.Estimate:
		return estimateRows(d), nil
	case *document.DailyReport:
		return dailyReportRows(d), nil
	case *document.Timesheet:
		return nil, timesheetRows(d)
	}
	return nil, nil
}

func estimateRows(e *document.Estimate) []register.WorkExecutionRow {
	var rows []register.WorkExecutionRow
	for _, l := range e.Lines {
		if l.IsGroup() {
			continue
		}
		rows = append(rows, register.WorkExecutionRow{
			ID:             register.NewRowID(),
			Recorder:       e.Ref(),
			LineNo:         l.LineNo,
			Period:         e.Date,
			ObjectID:       e.ObjectID,
			EstimateID:     e.ID,
			WorkID:         *l.WorkID,
			QuantityIncome: l.Quantity,
			SumIncome:      l.Sum(),
		})
	}
	return rows
}

func dailyReportRows(d *document.DailyReport) []register.WorkExecutionRow {
	var rows []register.WorkExecutionRow
	for _, l := range d.Lines {
		rows = append(rows, register.WorkExecutionRow{
			ID:              register.NewRowID(),
			Recorder:        d.Ref(),
			LineNo:          l.LineNo,
			Period:          d.Date,
			ObjectID:        d.ObjectID,
			EstimateID:      d.EstimateID,
			WorkID:          l.WorkID,
			QuantityExpense: l.ActualLabor,
			SumExpense:      l.ActualSum(),
		})
	}
	return rows
}

func timesheetRows(t *document.Timesheet) []register.PayrollRow {
	period := register.PeriodOf(t.Date)

	var rows []register.PayrollRow
	for _, l := range t.Lines {
		days := make([]int, 0, len(l.Hours))
		for day := range l.Hours {
			days = append(days, day)
		}
		sort.Ints(days)

		for _, day := range days {
			hours := l.Hours[day]
			if hours.IsZero() {
				continue
			}
			rows = append(rows, register.PayrollRow{
				ID:          register.NewRowID(),
				Recorder:    t.Ref(),
				LineNo:      l.LineNo,
				Period:      period.Start(),
				ObjectID:    t.ObjectID,
				EstimateID:  t.EstimateID,
				EmployeeID:  l.EmployeeID,
				WorkDate:    time.Date(period.Year, period.Month, day, 0, 0, 0, 0, time.UTC),
				HoursWorked: hours,
				Amount:      hours.Mul(l.HourlyRate),
			})
		}
	}
	return rows
}
