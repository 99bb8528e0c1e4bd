/*
totals.go - Pure header-total computation

PURPOSE:
  Denormalized header totals must always equal the sum over current
  lines at the moment of posting. The posting engine never trusts a
  previously stored total; it calls these functions and persists the
  result inside the posting transaction.

  All three are pure: lines in, totals out, no hidden state. Posting the
  same unchanged document twice therefore produces identical totals.
*/
package document

import "github.com/shopspring/decimal"

// ComputeEstimateTotals sums non-group lines. Group rows carry no
// quantity or price and contribute nothing.
func ComputeEstimateTotals(lines []EstimateLine) EstimateTotals {
	totals := EstimateTotals{
		TotalSum:         decimal.Zero,
		TotalLabor:       decimal.Zero,
		TotalMaterialSum: decimal.Zero,
	}
	for _, l := range lines {
		if l.IsGroup() {
			continue
		}
		totals.TotalSum = totals.TotalSum.Add(l.Sum())
		totals.TotalLabor = totals.TotalLabor.Add(l.PlannedLabor())
		totals.TotalMaterialSum = totals.TotalMaterialSum.Add(l.MaterialSum())
	}
	return totals
}

// ComputeDailyReportTotals sums planned and actual labor over all lines.
func ComputeDailyReportTotals(lines []DailyReportLine) DailyReportTotals {
	totals := DailyReportTotals{
		TotalPlannedLabor: decimal.Zero,
		TotalActualLabor:  decimal.Zero,
	}
	for _, l := range lines {
		totals.TotalPlannedLabor = totals.TotalPlannedLabor.Add(l.PlannedLabor)
		totals.TotalActualLabor = totals.TotalActualLabor.Add(l.ActualLabor)
	}
	return totals
}

// ComputeTimesheetTotals sums hours and amounts over all lines.
func ComputeTimesheetTotals(lines []TimesheetLine) TimesheetTotals {
	totals := TimesheetTotals{
		TotalHours:  decimal.Zero,
		TotalAmount: decimal.Zero,
	}
	for _, l := range lines {
		totals.TotalHours = totals.TotalHours.Add(l.TotalHours())
		totals.TotalAmount = totals.TotalAmount.Add(l.TotalAmount())
	}
	return totals
}
