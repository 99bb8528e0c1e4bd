package document_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/sitebook/posting-engine/document"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeEstimateTotalsSkipsGroupRows(t *testing.T) {
	work := int64(10)
	lines := []document.EstimateLine{
		{LineNo: 1, GroupTitle: "Groundwork"},
		{LineNo: 2, WorkID: &work, Quantity: dec("10"), Price: dec("100"), LaborRate: dec("2"),
			MaterialQuantity: dec("4"), MaterialPrice: dec("25")},
		{LineNo: 3, WorkID: &work, Quantity: dec("5"), Price: dec("40"), LaborRate: dec("1")},
	}

	totals := document.ComputeEstimateTotals(lines)

	assert.True(t, totals.TotalSum.Equal(dec("1200")))       // 1000 + 200
	assert.True(t, totals.TotalLabor.Equal(dec("25")))       // 20 + 5
	assert.True(t, totals.TotalMaterialSum.Equal(dec("100"))) // 4 × 25
}

func TestComputeDailyReportTotals(t *testing.T) {
	lines := []document.DailyReportLine{
		{LineNo: 1, PlannedLabor: dec("60"), ActualLabor: dec("66")},
		{LineNo: 2, PlannedLabor: dec("40"), ActualLabor: dec("30")},
	}

	totals := document.ComputeDailyReportTotals(lines)

	assert.True(t, totals.TotalPlannedLabor.Equal(dec("100")))
	assert.True(t, totals.TotalActualLabor.Equal(dec("96")))
}

func TestComputeTimesheetTotals(t *testing.T) {
	lines := []document.TimesheetLine{
		{LineNo: 1, HourlyRate: dec("25"), Hours: map[int]decimal.Decimal{
			2: dec("8"), 3: dec("6"),
		}},
		{LineNo: 2, HourlyRate: dec("30"), Hours: map[int]decimal.Decimal{
			2: dec("4"),
		}},
	}

	totals := document.ComputeTimesheetTotals(lines)

	assert.True(t, totals.TotalHours.Equal(dec("18")))
	assert.True(t, totals.TotalAmount.Equal(dec("470"))) // 14×25 + 4×30
}

func TestDeviationPercent(t *testing.T) {
	l := document.DailyReportLine{PlannedLabor: dec("60"), ActualLabor: dec("66")}
	assert.True(t, l.DeviationPercent().Equal(dec("10")))

	under := document.DailyReportLine{PlannedLabor: dec("60"), ActualLabor: dec("45")}
	assert.True(t, under.DeviationPercent().Equal(dec("-25")))
}

func TestDeviationPercentZeroPlanned(t *testing.T) {
	// Division by a zero plan is undefined; the zero sentinel stands in.
	l := document.DailyReportLine{PlannedLabor: dec("0"), ActualLabor: dec("10")}
	assert.True(t, l.DeviationPercent().IsZero())

	m := document.DailyReportLine{MaterialPlanned: dec("0"), MaterialActual: dec("3")}
	assert.True(t, m.MaterialDeviationPercent().IsZero())
}
