package posting_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebook/posting-engine/document"
	"github.com/sitebook/posting-engine/posting"
	"github.com/sitebook/posting-engine/register"
	"github.com/sitebook/posting-engine/store/memory"
)

// =============================================================================
// FIXTURES
// =============================================================================

const (
	objectID    = int64(1)
	workDig     = int64(10)
	workPour    = int64(11)
	empMason    = int64(100)
	empLaborer  = int64(101)
	marchTenth  = "2026-03-10"
	marchNumber = "EST-001"
)

func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	st := memory.New()
	st.AddObject(objectID, "warehouse")
	st.AddWork(workDig, "excavation")
	st.AddWork(workPour, "foundation concrete")
	st.AddEmployee(empMason, "mason")
	st.AddEmployee(empLaborer, "laborer")
	return st
}

func newEngine(st *memory.Store) *posting.Engine {
	return posting.NewEngine(st, st, nil)
}

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newEstimate(t *testing.T, number string) *document.Estimate {
	t.Helper()
	dig, pour := workDig, workPour
	est := &document.Estimate{
		Header: document.Header{
			Number:   number,
			Date:     date(t, marchTenth),
			ObjectID: objectID,
		},
		Lines: []document.EstimateLine{
			{LineNo: 1, GroupTitle: "Groundwork"},
			{LineNo: 2, WorkID: &dig, Quantity: dec("120"), Price: dec("45"), LaborRate: dec("0.5")},
			{LineNo: 3, WorkID: &pour, Quantity: dec("60"), Price: dec("210"), LaborRate: dec("1.5"),
				MaterialQuantity: dec("62"), MaterialPrice: dec("95")},
		},
	}
	return est
}

func postEstimate(t *testing.T, st *memory.Store, e *posting.Engine) register.RecorderRef {
	t.Helper()
	est := newEstimate(t, marchNumber)
	st.PutDocument(est)
	_, err := e.Post(context.Background(), est.Ref())
	require.NoError(t, err)
	return est.Ref()
}

func newDailyReport(t *testing.T, estimateID int64, number string) *document.DailyReport {
	t.Helper()
	return &document.DailyReport{
		Header: document.Header{
			Number:   number,
			Date:     date(t, "2026-03-12"),
			ObjectID: objectID,
		},
		EstimateID: estimateID,
		Lines: []document.DailyReportLine{
			{LineNo: 1, WorkID: workDig, Price: dec("45"), PlannedLabor: dec("60"),
				ActualLabor: dec("66"), ExecutorIDs: []int64{empLaborer}},
		},
	}
}

func newTimesheet(t *testing.T, estimateID int64, number string, employeeID int64, hours map[int]decimal.Decimal) *document.Timesheet {
	t.Helper()
	return &document.Timesheet{
		Header: document.Header{
			Number:   number,
			Date:     date(t, "2026-03-01"),
			ObjectID: objectID,
		},
		EstimateID: estimateID,
		Lines: []document.TimesheetLine{
			{LineNo: 1, EmployeeID: employeeID, HourlyRate: dec("25"), Hours: hours},
		},
	}
}

// =============================================================================
// POSTING
// =============================================================================

func TestPostEstimate(t *testing.T) {
	// GIVEN a draft estimate with a group row and two work rows
	st := seedStore(t)
	engine := newEngine(st)
	est := newEstimate(t, marchNumber)
	st.PutDocument(est)
	ctx := context.Background()

	// WHEN it is posted
	summary, err := engine.Post(ctx, est.Ref())
	require.NoError(t, err)

	// THEN one income row exists per work row, none for the group
	assert.Equal(t, 2, summary.WorkExecutionRows)
	assert.Equal(t, 0, summary.PayrollRows)

	rows, err := st.WorkExecutionByRecorder(ctx, est.Ref())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, workDig, rows[0].WorkID)
	assert.True(t, rows[0].QuantityIncome.Equal(dec("120")))
	assert.True(t, rows[0].SumIncome.Equal(dec("5400"))) // 120 × 45
	assert.True(t, rows[0].QuantityExpense.IsZero())
	assert.True(t, rows[0].SumExpense.IsZero())

	assert.Equal(t, workPour, rows[1].WorkID)
	assert.True(t, rows[1].SumIncome.Equal(dec("12600"))) // 60 × 210

	// AND the document is marked posted with recomputed totals
	doc, err := st.LoadDocument(ctx, est.Ref())
	require.NoError(t, err)
	posted := doc.(*document.Estimate)
	assert.True(t, posted.IsPosted)
	require.NotNil(t, posted.PostedAt)
	assert.True(t, posted.Totals.TotalSum.Equal(dec("18000")))       // 5400 + 12600
	assert.True(t, posted.Totals.TotalLabor.Equal(dec("150")))       // 60 + 90
	assert.True(t, posted.Totals.TotalMaterialSum.Equal(dec("5890"))) // 62 × 95
}

func TestPostAlreadyPostedFails(t *testing.T) {
	st := seedStore(t)
	engine := newEngine(st)
	ref := postEstimate(t, st, engine)
	ctx := context.Background()

	// WHEN the posted document is posted again
	_, err := engine.Post(ctx, ref)

	// THEN the attempt is rejected and rows are not duplicated
	require.ErrorIs(t, err, posting.ErrState)
	rows, err := st.WorkExecutionByRecorder(ctx, ref)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestPostUnknownDocument(t *testing.T) {
	st := seedStore(t)
	engine := newEngine(st)

	_, err := engine.Post(context.Background(), register.RecorderRef{Type: register.RecorderEstimate, ID: 999})
	assert.True(t, posting.IsNotFound(err))
}

func TestPostValidationFailureLeavesNoTrace(t *testing.T) {
	// GIVEN an estimate referencing a work that does not exist
	st := seedStore(t)
	engine := newEngine(st)
	ghost := int64(777)
	est := newEstimate(t, marchNumber)
	est.Lines[1].WorkID = &ghost
	st.PutDocument(est)
	ctx := context.Background()

	// WHEN posting fails validation
	_, err := engine.Post(ctx, est.Ref())

	// THEN the error names the line and nothing was written
	var ve *posting.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 2, ve.LineNo)
	assert.Equal(t, "work", ve.Field)

	rows, err := st.WorkExecutionByRecorder(ctx, est.Ref())
	require.NoError(t, err)
	assert.Empty(t, rows)

	doc, err := st.LoadDocument(ctx, est.Ref())
	require.NoError(t, err)
	assert.False(t, doc.Head().IsPosted)
}

func TestPostDailyReport(t *testing.T) {
	// GIVEN a posted estimate and a draft daily report against it
	st := seedStore(t)
	engine := newEngine(st)
	estRef := postEstimate(t, st, engine)
	rep := newDailyReport(t, estRef.ID, "DR-001")
	st.PutDocument(rep)
	ctx := context.Background()

	// WHEN the report is posted
	summary, err := engine.Post(ctx, rep.Ref())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.WorkExecutionRows)

	// THEN the row carries expense measures valued at the copied price
	rows, err := st.WorkExecutionByRecorder(ctx, rep.Ref())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].QuantityExpense.Equal(dec("66")))
	assert.True(t, rows[0].SumExpense.Equal(dec("2970"))) // 66 × 45
	assert.True(t, rows[0].QuantityIncome.IsZero())
	assert.Equal(t, estRef.ID, rows[0].EstimateID)
}

func TestPostDailyReportRequiresPostedEstimate(t *testing.T) {
	// GIVEN a draft (unposted) estimate
	st := seedStore(t)
	engine := newEngine(st)
	est := newEstimate(t, marchNumber)
	st.PutDocument(est)
	rep := newDailyReport(t, est.ID, "DR-001")
	st.PutDocument(rep)

	_, err := engine.Post(context.Background(), rep.Ref())

	var ve *posting.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "estimate", ve.Field)
}

func TestPostDailyReportRejectsUnestimatedWork(t *testing.T) {
	st := seedStore(t)
	engine := newEngine(st)
	estRef := postEstimate(t, st, engine)

	st.AddWork(12, "painting") // exists, but not on the estimate
	rep := newDailyReport(t, estRef.ID, "DR-001")
	rep.Lines[0].WorkID = 12
	st.PutDocument(rep)

	_, err := engine.Post(context.Background(), rep.Ref())

	var ve *posting.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "work", ve.Field)
}

// =============================================================================
// TIMESHEETS AND PAYROLL
// =============================================================================

func TestPostTimesheet(t *testing.T) {
	// GIVEN a timesheet with two day entries and one zero entry
	st := seedStore(t)
	engine := newEngine(st)
	estRef := postEstimate(t, st, engine)
	ts := newTimesheet(t, estRef.ID, "TS-001", empMason, map[int]decimal.Decimal{
		2: dec("8"),
		3: dec("0"),
		5: dec("6.5"),
	})
	st.PutDocument(ts)
	ctx := context.Background()

	// WHEN it is posted
	summary, err := engine.Post(ctx, ts.Ref())
	require.NoError(t, err)

	// THEN zero-hour days produce no row
	assert.Equal(t, 2, summary.PayrollRows)

	rows, err := st.PayrollByRecorder(ctx, ts.Ref())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2026-03-02", rows[0].WorkDate.Format("2006-01-02"))
	assert.True(t, rows[0].HoursWorked.Equal(dec("8")))
	assert.True(t, rows[0].Amount.Equal(dec("200"))) // 8 × 25
	assert.True(t, rows[1].Amount.Equal(dec("162.5")))
}

func TestPostTimesheetValidatesDaysAndHours(t *testing.T) {
	st := seedStore(t)
	engine := newEngine(st)
	estRef := postEstimate(t, st, engine)
	ctx := context.Background()

	tests := []struct {
		name  string
		hours map[int]decimal.Decimal
		field string
	}{
		{"day outside month", map[int]decimal.Decimal{32: dec("8")}, "day"},
		{"hours above 24", map[int]decimal.Decimal{2: dec("25")}, "hours"},
		{"negative hours", map[int]decimal.Decimal{2: dec("-1")}, "hours"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTimesheet(t, estRef.ID, "TS-"+tc.name, empMason, tc.hours)
			st.PutDocument(ts)

			_, err := engine.Post(ctx, ts.Ref())

			var ve *posting.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestDuplicateBookingConflict(t *testing.T) {
	// GIVEN a posted timesheet booking the mason on March 2nd
	st := seedStore(t)
	engine := newEngine(st)
	estRef := postEstimate(t, st, engine)
	ctx := context.Background()

	first := newTimesheet(t, estRef.ID, "TS-001", empMason, map[int]decimal.Decimal{2: dec("8")})
	st.PutDocument(first)
	_, err := engine.Post(ctx, first.Ref())
	require.NoError(t, err)

	// AND a second timesheet booking the same employee on the same day
	// plus another, non-colliding day
	second := newTimesheet(t, estRef.ID, "TS-002", empMason, map[int]decimal.Decimal{
		2: dec("4"),
		3: dec("8"),
	})
	st.PutDocument(second)

	// WHEN the second is posted
	_, err = engine.Post(ctx, second.Ref())

	// THEN the conflict names the colliding tuple
	var ce *posting.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, empMason, ce.EmployeeID)
	assert.Equal(t, "2026-03-02", ce.WorkDate.Format("2006-01-02"))

	// AND nothing from the second timesheet survives, not even the
	// non-colliding day
	rows, err := st.PayrollByRecorder(ctx, second.Ref())
	require.NoError(t, err)
	assert.Empty(t, rows)

	doc, err := st.LoadDocument(ctx, second.Ref())
	require.NoError(t, err)
	assert.False(t, doc.Head().IsPosted)
}

func TestDifferentEmployeesSameDayDoNotConflict(t *testing.T) {
	st := seedStore(t)
	engine := newEngine(st)
	estRef := postEstimate(t, st, engine)
	ctx := context.Background()

	first := newTimesheet(t, estRef.ID, "TS-001", empMason, map[int]decimal.Decimal{2: dec("8")})
	st.PutDocument(first)
	_, err := engine.Post(ctx, first.Ref())
	require.NoError(t, err)

	second := newTimesheet(t, estRef.ID, "TS-002", empLaborer, map[int]decimal.Decimal{2: dec("8")})
	st.PutDocument(second)
	_, err = engine.Post(ctx, second.Ref())
	require.NoError(t, err)
}

// =============================================================================
// UNPOSTING AND RE-POSTING
// =============================================================================

func TestUnpostRemovesOnlyOwnRows(t *testing.T) {
	// GIVEN a posted estimate and a posted daily report
	st := seedStore(t)
	engine := newEngine(st)
	estRef := postEstimate(t, st, engine)
	rep := newDailyReport(t, estRef.ID, "DR-001")
	st.PutDocument(rep)
	ctx := context.Background()
	_, err := engine.Post(ctx, rep.Ref())
	require.NoError(t, err)

	// WHEN the daily report is unposted
	require.NoError(t, engine.Unpost(ctx, rep.Ref()))

	// THEN its rows are gone and the estimate's remain
	repRows, err := st.WorkExecutionByRecorder(ctx, rep.Ref())
	require.NoError(t, err)
	assert.Empty(t, repRows)

	estRows, err := st.WorkExecutionByRecorder(ctx, estRef)
	require.NoError(t, err)
	assert.Len(t, estRows, 2)

	// AND the report is draft again
	doc, err := st.LoadDocument(ctx, rep.Ref())
	require.NoError(t, err)
	assert.False(t, doc.Head().IsPosted)
	assert.Nil(t, doc.Head().PostedAt)
}

func TestUnpostDraftFails(t *testing.T) {
	st := seedStore(t)
	engine := newEngine(st)
	est := newEstimate(t, marchNumber)
	st.PutDocument(est)

	err := engine.Unpost(context.Background(), est.Ref())
	require.ErrorIs(t, err, posting.ErrState)
}

func TestRepostProducesIdenticalRows(t *testing.T) {
	// GIVEN a posted, unposted, re-posted unchanged estimate
	st := seedStore(t)
	engine := newEngine(st)
	ref := postEstimate(t, st, engine)
	ctx := context.Background()

	before, err := st.WorkExecutionByRecorder(ctx, ref)
	require.NoError(t, err)

	require.NoError(t, engine.Unpost(ctx, ref))
	_, err = engine.Post(ctx, ref)
	require.NoError(t, err)

	after, err := st.WorkExecutionByRecorder(ctx, ref)
	require.NoError(t, err)

	// THEN the rows match field for field, row ids aside
	require.Equal(t, len(before), len(after))
	for i := range before {
		assert.NotEqual(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].LineNo, after[i].LineNo)
		assert.Equal(t, before[i].WorkID, after[i].WorkID)
		assert.True(t, before[i].QuantityIncome.Equal(after[i].QuantityIncome))
		assert.True(t, before[i].SumIncome.Equal(after[i].SumIncome))
	}
}

// =============================================================================
// BALANCES
// =============================================================================

func TestWorkBalance(t *testing.T) {
	// GIVEN a posted estimate and a posted daily report executing part
	// of one work
	st := seedStore(t)
	engine := newEngine(st)
	estRef := postEstimate(t, st, engine)
	rep := newDailyReport(t, estRef.ID, "DR-001")
	st.PutDocument(rep)
	ctx := context.Background()
	_, err := engine.Post(ctx, rep.Ref())
	require.NoError(t, err)

	// WHEN the balance is computed
	balances, err := register.NewBalanceService(st).WorkBalance(ctx, estRef.ID)
	require.NoError(t, err)
	require.Len(t, balances, 2)

	// THEN the executed work nets planned minus executed
	dig := balances[0]
	assert.Equal(t, workDig, dig.WorkID)
	assert.True(t, dig.QuantityIncome.Equal(dec("120")))
	assert.True(t, dig.QuantityExpense.Equal(dec("66")))
	assert.True(t, dig.BalanceQuantity.Equal(dec("54")))
	assert.True(t, dig.BalanceSum.Equal(dec("2430"))) // 5400 − 2970

	// AND the untouched work keeps its full planned balance
	pour := balances[1]
	assert.Equal(t, workPour, pour.WorkID)
	assert.True(t, pour.BalanceQuantity.Equal(dec("60")))
	assert.True(t, pour.BalanceSum.Equal(dec("12600")))
}

func TestPayrollSummary(t *testing.T) {
	// GIVEN two posted timesheets in March and one in April
	st := seedStore(t)
	engine := newEngine(st)
	estRef := postEstimate(t, st, engine)
	ctx := context.Background()

	march1 := newTimesheet(t, estRef.ID, "TS-001", empMason, map[int]decimal.Decimal{
		2: dec("8"), 3: dec("8"),
	})
	st.PutDocument(march1)
	_, err := engine.Post(ctx, march1.Ref())
	require.NoError(t, err)

	march2 := newTimesheet(t, estRef.ID, "TS-002", empLaborer, map[int]decimal.Decimal{2: dec("6")})
	st.PutDocument(march2)
	_, err = engine.Post(ctx, march2.Ref())
	require.NoError(t, err)

	april := newTimesheet(t, estRef.ID, "TS-003", empMason, map[int]decimal.Decimal{2: dec("8")})
	april.Date = date(t, "2026-04-01")
	st.PutDocument(april)
	_, err = engine.Post(ctx, april.Ref())
	require.NoError(t, err)

	// WHEN March is summarized
	period, err := register.ParsePeriod("2026-03")
	require.NoError(t, err)
	summaries, err := register.NewBalanceService(st).PayrollSummary(ctx, period)
	require.NoError(t, err)

	// THEN only March rows contribute, grouped by employee
	require.Len(t, summaries, 2)
	assert.Equal(t, empMason, summaries[0].EmployeeID)
	assert.True(t, summaries[0].TotalHours.Equal(dec("16")))
	assert.True(t, summaries[0].TotalAmount.Equal(dec("400")))
	assert.Equal(t, empLaborer, summaries[1].EmployeeID)
	assert.True(t, summaries[1].TotalHours.Equal(dec("6")))
}
