/*
Package audit implements the nightly register consistency check.

PURPOSE:
  Register rows are built deterministically from their source document,
  so for every posted document the stored rows must match a fresh
  rebuild field for field (row ids aside). The auditor rebuilds and
  compares; a mismatch means rows were touched outside the posting
  engine, or a posting partially survived a crash, and is logged loudly
  for an operator to repair with unpost/post.

SCHEDULING:
  Runs on a cron schedule (default nightly) and can be invoked on
  demand with RunOnce.
*/
package audit

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/sitebook/posting-engine/posting"
	"github.com/sitebook/posting-engine/register"
	"github.com/sitebook/posting-engine/store/sqlite"
)

// DefaultSchedule runs the audit at 02:30 every night.
const DefaultSchedule = "30 2 * * *"

// Mismatch reports one posted document whose stored rows disagree with
// a rebuild.
type Mismatch struct {
	Ref    register.RecorderRef
	Detail string
}

// Report summarizes one audit run.
type Report struct {
	CheckedDocuments int
	Mismatches       []Mismatch
}

// Auditor periodically verifies that register rows match their source
// documents.
type Auditor struct {
	store    *sqlite.Store
	logger   *zap.Logger
	schedule string
	cron     *cron.Cron
}

func New(store *sqlite.Store, logger *zap.Logger, schedule string) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Auditor{store: store, logger: logger, schedule: schedule}
}

// Start registers the cron job and begins scheduling.
func (a *Auditor) Start() error {
	a.cron = cron.New()
	_, err := a.cron.AddFunc(a.schedule, func() {
		report, err := a.RunOnce(context.Background())
		if err != nil {
			a.logger.Error("register audit failed", zap.Error(err))
			return
		}
		if len(report.Mismatches) > 0 {
			for _, m := range report.Mismatches {
				a.logger.Error("register rows disagree with document",
					zap.String("recorder", m.Ref.String()),
					zap.String("detail", m.Detail),
				)
			}
			return
		}
		a.logger.Info("register audit clean",
			zap.Int("documents", report.CheckedDocuments))
	})
	if err != nil {
		return fmt.Errorf("failed to schedule register audit: %w", err)
	}
	a.cron.Start()
	return nil
}

// Stop halts scheduling. Does not interrupt a run in progress.
func (a *Auditor) Stop() {
	if a.cron != nil {
		a.cron.Stop()
	}
}

// RunOnce audits every posted document once.
func (a *Auditor) RunOnce(ctx context.Context) (*Report, error) {
	refs, err := a.store.PostedRefs(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{CheckedDocuments: len(refs)}
	for _, ref := range refs {
		detail, err := a.checkDocument(ctx, ref)
		if err != nil {
			return nil, err
		}
		if detail != "" {
			report.Mismatches = append(report.Mismatches, Mismatch{Ref: ref, Detail: detail})
		}
	}
	return report, nil
}

// checkDocument rebuilds the document's rows and compares them with the
// stored ones. Returns an empty string when they agree.
func (a *Auditor) checkDocument(ctx context.Context, ref register.RecorderRef) (string, error) {
	doc, err := a.store.LoadDocument(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", ref, err)
	}
	wantWork, wantPayroll := posting.RowsFor(doc)

	gotWork, err := a.store.WorkExecutionByRecorder(ctx, ref)
	if err != nil {
		return "", err
	}
	if detail := compareWorkRows(wantWork, gotWork); detail != "" {
		return detail, nil
	}

	gotPayroll, err := a.store.PayrollByRecorder(ctx, ref)
	if err != nil {
		return "", err
	}
	return comparePayrollRows(wantPayroll, gotPayroll), nil
}

// Both rebuild and store order rows by line number (payroll also by work
// date), so comparison is positional.

func compareWorkRows(want, got []register.WorkExecutionRow) string {
	if len(want) != len(got) {
		return fmt.Sprintf("work execution: want %d rows, have %d", len(want), len(got))
	}
	for i := range want {
		w, g := want[i], got[i]
		switch {
		case w.LineNo != g.LineNo,
			!w.Period.Equal(g.Period),
			w.ObjectID != g.ObjectID,
			w.EstimateID != g.EstimateID,
			w.WorkID != g.WorkID,
			!w.QuantityIncome.Equal(g.QuantityIncome),
			!w.QuantityExpense.Equal(g.QuantityExpense),
			!w.SumIncome.Equal(g.SumIncome),
			!w.SumExpense.Equal(g.SumExpense):
			return fmt.Sprintf("work execution: row %d (line %d) differs from rebuild", i, g.LineNo)
		}
	}
	return ""
}

func comparePayrollRows(want, got []register.PayrollRow) string {
	if len(want) != len(got) {
		return fmt.Sprintf("payroll: want %d rows, have %d", len(want), len(got))
	}
	for i := range want {
		w, g := want[i], got[i]
		switch {
		case w.LineNo != g.LineNo,
			!w.Period.Equal(g.Period),
			w.ObjectID != g.ObjectID,
			w.EstimateID != g.EstimateID,
			w.EmployeeID != g.EmployeeID,
			!w.WorkDate.Equal(g.WorkDate),
			!w.HoursWorked.Equal(g.HoursWorked),
			!w.Amount.Equal(g.Amount):
			return fmt.Sprintf("payroll: row %d (line %d) differs from rebuild", i, g.LineNo)
		}
	}
	return ""
}
