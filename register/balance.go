/*
balance.go - Read-only aggregation over register rows

PURPOSE:
  Answers the two operator questions this subsystem exists for:
  "how much of each estimated work remains to execute?" and
  "what does each employee earn this month?".

KEY INSIGHT:
  Balance is derived, never stored. Rows are summed on every query, so a
  balance can never disagree with the rows that are actually committed.
  Income comes from posted estimates, expense from posted daily reports;
  the net is "planned minus actually executed".

CONSISTENCY:
  Queries reflect committed state only. No caching - same-transaction-or-
  later reads are sufficient for this subsystem.

SEE ALSO:
  - store.go: the row feeds these queries sum over
  - posting/engine.go: the only writer of the rows
*/
package register

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// WORK BALANCE - per work within one estimate
// =============================================================================

// WorkBalance is the net movement for one work under one estimate.
type WorkBalance struct {
	WorkID int64

	QuantityIncome  decimal.Decimal
	QuantityExpense decimal.Decimal
	SumIncome       decimal.Decimal
	SumExpense      decimal.Decimal

	// Income minus expense: planned minus executed.
	BalanceQuantity decimal.Decimal
	BalanceSum      decimal.Decimal
}

// PayrollSummary is the aggregated payroll for one employee in a period.
type PayrollSummary struct {
	EmployeeID  int64
	TotalHours  decimal.Decimal
	TotalAmount decimal.Decimal
}

// =============================================================================
// BALANCE SERVICE
// =============================================================================

// BalanceService computes balances by replaying register rows.
type BalanceService struct {
	Store Store
}

func NewBalanceService(store Store) *BalanceService {
	return &BalanceService{Store: store}
}

// WorkBalance groups the work execution register by work for one
// estimate and nets income against expense.
func (s *BalanceService) WorkBalance(ctx context.Context, estimateID int64) ([]WorkBalance, error) {
	rows, err := s.Store.WorkExecutionByEstimate(ctx, estimateID)
	if err != nil {
		return nil, err
	}

	byWork := make(map[int64]*WorkBalance)
	for _, row := range rows {
		wb, ok := byWork[row.WorkID]
		if !ok {
			wb = &WorkBalance{
				WorkID:          row.WorkID,
				QuantityIncome:  decimal.Zero,
				QuantityExpense: decimal.Zero,
				SumIncome:       decimal.Zero,
				SumExpense:      decimal.Zero,
			}
			byWork[row.WorkID] = wb
		}
		wb.QuantityIncome = wb.QuantityIncome.Add(row.QuantityIncome)
		wb.QuantityExpense = wb.QuantityExpense.Add(row.QuantityExpense)
		wb.SumIncome = wb.SumIncome.Add(row.SumIncome)
		wb.SumExpense = wb.SumExpense.Add(row.SumExpense)
	}

	balances := make([]WorkBalance, 0, len(byWork))
	for _, wb := range byWork {
		wb.BalanceQuantity = wb.QuantityIncome.Sub(wb.QuantityExpense)
		wb.BalanceSum = wb.SumIncome.Sub(wb.SumExpense)
		balances = append(balances, *wb)
	}

	sort.Slice(balances, func(i, j int) bool {
		return balances[i].WorkID < balances[j].WorkID
	})
	return balances, nil
}

// PayrollSummary groups the payroll register by employee for one
// calendar month.
func (s *BalanceService) PayrollSummary(ctx context.Context, p Period) ([]PayrollSummary, error) {
	rows, err := s.Store.PayrollInPeriod(ctx, p)
	if err != nil {
		return nil, err
	}

	byEmployee := make(map[int64]*PayrollSummary)
	for _, row := range rows {
		ps, ok := byEmployee[row.EmployeeID]
		if !ok {
			ps = &PayrollSummary{
				EmployeeID:  row.EmployeeID,
				TotalHours:  decimal.Zero,
				TotalAmount: decimal.Zero,
			}
			byEmployee[row.EmployeeID] = ps
		}
		ps.TotalHours = ps.TotalHours.Add(row.HoursWorked)
		ps.TotalAmount = ps.TotalAmount.Add(row.Amount)
	}

	summaries := make([]PayrollSummary, 0, len(byEmployee))
	for _, ps := range byEmployee {
		summaries = append(summaries, *ps)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].EmployeeID < summaries[j].EmployeeID
	})
	return summaries, nil
}
