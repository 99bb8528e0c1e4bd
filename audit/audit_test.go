package audit_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebook/posting-engine/audit"
	"github.com/sitebook/posting-engine/document"
	"github.com/sitebook/posting-engine/posting"
	"github.com/sitebook/posting-engine/register"
	"github.com/sitebook/posting-engine/store/sqlite"
)

func postedEstimate(t *testing.T, store *sqlite.Store) *document.Estimate {
	t.Helper()
	ctx := context.Background()

	object := &sqlite.Object{Name: "warehouse"}
	require.NoError(t, store.CreateObject(ctx, object))
	work := &sqlite.Work{Name: "excavation", Unit: "m3"}
	require.NoError(t, store.CreateWork(ctx, work))

	est := &document.Estimate{
		Header: document.Header{
			Number:   "EST-001",
			Date:     time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
			ObjectID: object.ID,
		},
		Lines: []document.EstimateLine{
			{LineNo: 1, WorkID: &work.ID, Quantity: decimal.NewFromInt(120),
				Price: decimal.NewFromInt(45), LaborRate: decimal.NewFromFloat(0.5)},
		},
	}
	require.NoError(t, store.CreateEstimate(ctx, est))

	engine := posting.NewEngine(store, store, nil)
	_, err := engine.Post(ctx, est.Ref())
	require.NoError(t, err)
	return est
}

func TestAuditCleanAfterPosting(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer store.Close()
	postedEstimate(t, store)

	report, err := audit.New(store, nil, "").RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.CheckedDocuments)
	assert.Empty(t, report.Mismatches)
}

func TestAuditDetectsTamperedRows(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer store.Close()
	est := postedEstimate(t, store)
	ctx := context.Background()

	// Remove the document's rows behind the engine's back
	require.NoError(t, store.DeleteByRecorder(ctx, est.Ref()))
	require.NoError(t, store.InsertWorkExecution(ctx, []register.WorkExecutionRow{{
		ID:             register.NewRowID(),
		Recorder:       est.Ref(),
		LineNo:         1,
		Period:         est.Date,
		ObjectID:       est.ObjectID,
		EstimateID:     est.ID,
		WorkID:         *est.Lines[0].WorkID,
		QuantityIncome: decimal.NewFromInt(999), // tampered measure
		SumIncome:      decimal.NewFromInt(999),
	}}))

	report, err := audit.New(store, nil, "").RunOnce(ctx)
	require.NoError(t, err)
	require.Len(t, report.Mismatches, 1)
	assert.Equal(t, est.Ref(), report.Mismatches[0].Ref)
}
