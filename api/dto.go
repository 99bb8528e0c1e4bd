/*
dto.go - Wire types for the HTTP API

PURPOSE:
  Keeps JSON shapes decoupled from the domain types. Requests are parsed
  and converted into documents here; responses are built from documents
  and register rows, including the derived line values (sums, planned
  labor, deviation percents) that clients render but never send.

CONVENTIONS:
  - Dates are "YYYY-MM-DD" strings, periods are "YYYY-MM"
  - Decimals ride as JSON strings; shopspring/decimal accepts both
    string and number on input
  - Timesheet hours are a {"day": hours} object keyed by day of month
*/
package api

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitebook/posting-engine/document"
	"github.com/sitebook/posting-engine/register"
	"github.com/sitebook/posting-engine/store/sqlite"
)

const dateFormat = "2006-01-02"

// =============================================================================
// REQUESTS
// =============================================================================

type estimateLineRequest struct {
	LineNo           int             `json:"line_no"`
	WorkID           *int64          `json:"work_id,omitempty"`
	GroupTitle       string          `json:"group_title,omitempty"`
	Quantity         decimal.Decimal `json:"quantity"`
	Price            decimal.Decimal `json:"price"`
	LaborRate        decimal.Decimal `json:"labor_rate"`
	MaterialQuantity decimal.Decimal `json:"material_quantity"`
	MaterialPrice    decimal.Decimal `json:"material_price"`
}

type createEstimateRequest struct {
	Number   string                `json:"number"`
	Date     string                `json:"date"`
	ObjectID int64                 `json:"object_id"`
	Lines    []estimateLineRequest `json:"lines"`
}

func (r createEstimateRequest) toDocument() (*document.Estimate, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return nil, err
	}
	est := &document.Estimate{
		Header: document.Header{Number: r.Number, Date: date, ObjectID: r.ObjectID},
	}
	for _, l := range r.Lines {
		est.Lines = append(est.Lines, document.EstimateLine{
			LineNo:           l.LineNo,
			WorkID:           l.WorkID,
			GroupTitle:       l.GroupTitle,
			Quantity:         l.Quantity,
			Price:            l.Price,
			LaborRate:        l.LaborRate,
			MaterialQuantity: l.MaterialQuantity,
			MaterialPrice:    l.MaterialPrice,
		})
	}
	est.Totals = document.ComputeEstimateTotals(est.Lines)
	return est, nil
}

type dailyReportLineRequest struct {
	LineNo          int             `json:"line_no"`
	WorkID          int64           `json:"work_id"`
	Price           decimal.Decimal `json:"price"`
	PlannedLabor    decimal.Decimal `json:"planned_labor"`
	ActualLabor     decimal.Decimal `json:"actual_labor"`
	MaterialPlanned decimal.Decimal `json:"material_planned"`
	MaterialActual  decimal.Decimal `json:"material_actual"`
	ExecutorIDs     []int64         `json:"executor_ids"`
}

type createDailyReportRequest struct {
	Number     string                   `json:"number"`
	Date       string                   `json:"date"`
	ObjectID   int64                    `json:"object_id"`
	EstimateID int64                    `json:"estimate_id"`
	Lines      []dailyReportLineRequest `json:"lines"`
}

func (r createDailyReportRequest) toDocument() (*document.DailyReport, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return nil, err
	}
	rep := &document.DailyReport{
		Header:     document.Header{Number: r.Number, Date: date, ObjectID: r.ObjectID},
		EstimateID: r.EstimateID,
	}
	for _, l := range r.Lines {
		rep.Lines = append(rep.Lines, document.DailyReportLine{
			LineNo:          l.LineNo,
			WorkID:          l.WorkID,
			Price:           l.Price,
			PlannedLabor:    l.PlannedLabor,
			ActualLabor:     l.ActualLabor,
			MaterialPlanned: l.MaterialPlanned,
			MaterialActual:  l.MaterialActual,
			ExecutorIDs:     l.ExecutorIDs,
		})
	}
	rep.Totals = document.ComputeDailyReportTotals(rep.Lines)
	return rep, nil
}

type timesheetLineRequest struct {
	LineNo     int                        `json:"line_no"`
	EmployeeID int64                      `json:"employee_id"`
	HourlyRate decimal.Decimal            `json:"hourly_rate"`
	Hours      map[string]decimal.Decimal `json:"hours"`
}

type createTimesheetRequest struct {
	Number     string                 `json:"number"`
	Date       string                 `json:"date"`
	ObjectID   int64                  `json:"object_id"`
	EstimateID int64                  `json:"estimate_id"`
	Lines      []timesheetLineRequest `json:"lines"`
}

func (r createTimesheetRequest) toDocument() (*document.Timesheet, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return nil, err
	}
	ts := &document.Timesheet{
		Header:     document.Header{Number: r.Number, Date: date, ObjectID: r.ObjectID},
		EstimateID: r.EstimateID,
	}
	for _, l := range r.Lines {
		hours := make(map[int]decimal.Decimal, len(l.Hours))
		for dayStr, h := range l.Hours {
			day, err := strconv.Atoi(dayStr)
			if err != nil {
				return nil, fmt.Errorf("invalid day key %q: want a day of month", dayStr)
			}
			hours[day] = h
		}
		ts.Lines = append(ts.Lines, document.TimesheetLine{
			LineNo:     l.LineNo,
			EmployeeID: l.EmployeeID,
			HourlyRate: l.HourlyRate,
			Hours:      hours,
		})
	}
	ts.Totals = document.ComputeTimesheetTotals(ts.Lines)
	return ts, nil
}

type catalogEntryRequest struct {
	Name     string `json:"name"`
	Unit     string `json:"unit,omitempty"`
	Position string `json:"position,omitempty"`
	Address  string `json:"address,omitempty"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type documentSummaryResponse struct {
	Type       string `json:"type"`
	ID         int64  `json:"id"`
	Number     string `json:"number"`
	Date       string `json:"date"`
	ObjectID   int64  `json:"object_id"`
	EstimateID int64  `json:"estimate_id,omitempty"`
	IsPosted   bool   `json:"is_posted"`
	PostedAt   string `json:"posted_at,omitempty"`
}

func toSummaryResponse(d sqlite.DocumentSummary) documentSummaryResponse {
	resp := documentSummaryResponse{
		Type:       string(d.Ref.Type),
		ID:         d.Ref.ID,
		Number:     d.Number,
		Date:       d.Date.Format(dateFormat),
		ObjectID:   d.ObjectID,
		EstimateID: d.EstimateID,
		IsPosted:   d.IsPosted,
	}
	if d.PostedAt != nil {
		resp.PostedAt = d.PostedAt.Format(time.RFC3339)
	}
	return resp
}

type estimateLineResponse struct {
	LineNo           int             `json:"line_no"`
	WorkID           *int64          `json:"work_id,omitempty"`
	GroupTitle       string          `json:"group_title,omitempty"`
	Quantity         decimal.Decimal `json:"quantity"`
	Price            decimal.Decimal `json:"price"`
	LaborRate        decimal.Decimal `json:"labor_rate"`
	MaterialQuantity decimal.Decimal `json:"material_quantity"`
	MaterialPrice    decimal.Decimal `json:"material_price"`
	Sum              decimal.Decimal `json:"sum"`
	PlannedLabor     decimal.Decimal `json:"planned_labor"`
	MaterialSum      decimal.Decimal `json:"material_sum"`
}

type estimateResponse struct {
	documentSummaryResponse
	Lines  []estimateLineResponse `json:"lines"`
	Totals struct {
		TotalSum         decimal.Decimal `json:"total_sum"`
		TotalLabor       decimal.Decimal `json:"total_labor"`
		TotalMaterialSum decimal.Decimal `json:"total_material_sum"`
	} `json:"totals"`
}

func toEstimateResponse(e *document.Estimate) estimateResponse {
	resp := estimateResponse{documentSummaryResponse: headerResponse(e, 0)}
	for _, l := range e.Lines {
		resp.Lines = append(resp.Lines, estimateLineResponse{
			LineNo:           l.LineNo,
			WorkID:           l.WorkID,
			GroupTitle:       l.GroupTitle,
			Quantity:         l.Quantity,
			Price:            l.Price,
			LaborRate:        l.LaborRate,
			MaterialQuantity: l.MaterialQuantity,
			MaterialPrice:    l.MaterialPrice,
			Sum:              l.Sum(),
			PlannedLabor:     l.PlannedLabor(),
			MaterialSum:      l.MaterialSum(),
		})
	}
	resp.Totals.TotalSum = e.Totals.TotalSum
	resp.Totals.TotalLabor = e.Totals.TotalLabor
	resp.Totals.TotalMaterialSum = e.Totals.TotalMaterialSum
	return resp
}

type dailyReportLineResponse struct {
	LineNo                   int             `json:"line_no"`
	WorkID                   int64           `json:"work_id"`
	Price                    decimal.Decimal `json:"price"`
	PlannedLabor             decimal.Decimal `json:"planned_labor"`
	ActualLabor              decimal.Decimal `json:"actual_labor"`
	MaterialPlanned          decimal.Decimal `json:"material_planned"`
	MaterialActual           decimal.Decimal `json:"material_actual"`
	ExecutorIDs              []int64         `json:"executor_ids,omitempty"`
	ActualSum                decimal.Decimal `json:"actual_sum"`
	DeviationPercent         decimal.Decimal `json:"deviation_percent"`
	MaterialDeviationPercent decimal.Decimal `json:"material_deviation_percent"`
}

type dailyReportResponse struct {
	documentSummaryResponse
	Lines  []dailyReportLineResponse `json:"lines"`
	Totals struct {
		TotalPlannedLabor decimal.Decimal `json:"total_planned_labor"`
		TotalActualLabor  decimal.Decimal `json:"total_actual_labor"`
	} `json:"totals"`
}

func toDailyReportResponse(d *document.DailyReport) dailyReportResponse {
	resp := dailyReportResponse{documentSummaryResponse: headerResponse(d, d.EstimateID)}
	for _, l := range d.Lines {
		resp.Lines = append(resp.Lines, dailyReportLineResponse{
			LineNo:                   l.LineNo,
			WorkID:                   l.WorkID,
			Price:                    l.Price,
			PlannedLabor:             l.PlannedLabor,
			ActualLabor:              l.ActualLabor,
			MaterialPlanned:          l.MaterialPlanned,
			MaterialActual:           l.MaterialActual,
			ExecutorIDs:              l.ExecutorIDs,
			ActualSum:                l.ActualSum(),
			DeviationPercent:         l.DeviationPercent(),
			MaterialDeviationPercent: l.MaterialDeviationPercent(),
		})
	}
	resp.Totals.TotalPlannedLabor = d.Totals.TotalPlannedLabor
	resp.Totals.TotalActualLabor = d.Totals.TotalActualLabor
	return resp
}

type timesheetLineResponse struct {
	LineNo      int                        `json:"line_no"`
	EmployeeID  int64                      `json:"employee_id"`
	HourlyRate  decimal.Decimal            `json:"hourly_rate"`
	Hours       map[string]decimal.Decimal `json:"hours"`
	TotalHours  decimal.Decimal            `json:"total_hours"`
	TotalAmount decimal.Decimal            `json:"total_amount"`
}

type timesheetResponse struct {
	documentSummaryResponse
	Lines  []timesheetLineResponse `json:"lines"`
	Totals struct {
		TotalHours  decimal.Decimal `json:"total_hours"`
		TotalAmount decimal.Decimal `json:"total_amount"`
	} `json:"totals"`
}

func toTimesheetResponse(t *document.Timesheet) timesheetResponse {
	resp := timesheetResponse{documentSummaryResponse: headerResponse(t, t.EstimateID)}
	for _, l := range t.Lines {
		hours := make(map[string]decimal.Decimal, len(l.Hours))
		for day, h := range l.Hours {
			hours[strconv.Itoa(day)] = h
		}
		resp.Lines = append(resp.Lines, timesheetLineResponse{
			LineNo:      l.LineNo,
			EmployeeID:  l.EmployeeID,
			HourlyRate:  l.HourlyRate,
			Hours:       hours,
			TotalHours:  l.TotalHours(),
			TotalAmount: l.TotalAmount(),
		})
	}
	resp.Totals.TotalHours = t.Totals.TotalHours
	resp.Totals.TotalAmount = t.Totals.TotalAmount
	return resp
}

func headerResponse(doc document.Document, estimateID int64) documentSummaryResponse {
	head := doc.Head()
	resp := documentSummaryResponse{
		Type:       string(doc.Ref().Type),
		ID:         head.ID,
		Number:     head.Number,
		Date:       head.Date.Format(dateFormat),
		ObjectID:   head.ObjectID,
		EstimateID: estimateID,
		IsPosted:   head.IsPosted,
	}
	if head.PostedAt != nil {
		resp.PostedAt = head.PostedAt.Format(time.RFC3339)
	}
	return resp
}

// toDocumentResponse dispatches on the concrete document kind.
func toDocumentResponse(doc document.Document) any {
	switch d := doc.(type) {
	case *document.Estimate:
		return toEstimateResponse(d)
	case *document.DailyReport:
		return toDailyReportResponse(d)
	case *document.Timesheet:
		return toTimesheetResponse(d)
	}
	return nil
}

type postedResponse struct {
	Type              string `json:"type"`
	ID                int64  `json:"id"`
	PostedAt          string `json:"posted_at"`
	WorkExecutionRows int    `json:"work_execution_rows"`
	PayrollRows       int    `json:"payroll_rows"`
}

type workBalanceResponse struct {
	WorkID          int64           `json:"work_id"`
	QuantityIncome  decimal.Decimal `json:"quantity_income"`
	QuantityExpense decimal.Decimal `json:"quantity_expense"`
	SumIncome       decimal.Decimal `json:"sum_income"`
	SumExpense      decimal.Decimal `json:"sum_expense"`
	BalanceQuantity decimal.Decimal `json:"balance_quantity"`
	BalanceSum      decimal.Decimal `json:"balance_sum"`
}

func toWorkBalanceResponse(b register.WorkBalance) workBalanceResponse {
	return workBalanceResponse{
		WorkID:          b.WorkID,
		QuantityIncome:  b.QuantityIncome,
		QuantityExpense: b.QuantityExpense,
		SumIncome:       b.SumIncome,
		SumExpense:      b.SumExpense,
		BalanceQuantity: b.BalanceQuantity,
		BalanceSum:      b.BalanceSum,
	}
}

type payrollSummaryResponse struct {
	EmployeeID  int64           `json:"employee_id"`
	TotalHours  decimal.Decimal `json:"total_hours"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type workExecutionRowResponse struct {
	Recorder        string          `json:"recorder"`
	LineNo          int             `json:"line_no"`
	Period          string          `json:"period"`
	ObjectID        int64           `json:"object_id"`
	EstimateID      int64           `json:"estimate_id"`
	WorkID          int64           `json:"work_id"`
	QuantityIncome  decimal.Decimal `json:"quantity_income"`
	QuantityExpense decimal.Decimal `json:"quantity_expense"`
	SumIncome       decimal.Decimal `json:"sum_income"`
	SumExpense      decimal.Decimal `json:"sum_expense"`
}

func toWorkExecutionRowResponse(r register.WorkExecutionRow) workExecutionRowResponse {
	return workExecutionRowResponse{
		Recorder:        r.Recorder.String(),
		LineNo:          r.LineNo,
		Period:          r.Period.Format(dateFormat),
		ObjectID:        r.ObjectID,
		EstimateID:      r.EstimateID,
		WorkID:          r.WorkID,
		QuantityIncome:  r.QuantityIncome,
		QuantityExpense: r.QuantityExpense,
		SumIncome:       r.SumIncome,
		SumExpense:      r.SumExpense,
	}
}

type payrollRowResponse struct {
	Recorder    string          `json:"recorder"`
	LineNo      int             `json:"line_no"`
	Period      string          `json:"period"`
	ObjectID    int64           `json:"object_id"`
	EstimateID  int64           `json:"estimate_id"`
	EmployeeID  int64           `json:"employee_id"`
	WorkDate    string          `json:"work_date"`
	HoursWorked decimal.Decimal `json:"hours_worked"`
	Amount      decimal.Decimal `json:"amount"`
}

func toPayrollRowResponse(r register.PayrollRow) payrollRowResponse {
	return payrollRowResponse{
		Recorder:    r.Recorder.String(),
		LineNo:      r.LineNo,
		Period:      r.Period.Format("2006-01"),
		ObjectID:    r.ObjectID,
		EstimateID:  r.EstimateID,
		EmployeeID:  r.EmployeeID,
		WorkDate:    r.WorkDate.Format(dateFormat),
		HoursWorked: r.HoursWorked,
		Amount:      r.Amount,
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}
