/*
Package sqlite provides the SQLite-backed implementation of the posting
storage interfaces.

INTERFACES IMPLEMENTED:
  posting.TxStore:  documents + register rows under one transaction
  posting.Catalog:  read-only lookups for works, employees, estimates

KEY TABLES:
  documents:               headers of all three kinds (tagged by doc_type)
  estimate_lines,
  daily_report_lines,
  timesheet_lines:         per-kind line payloads
  work_execution_register: planned/executed work movements
  payroll_register:        hours per employee per work day
  works, employees, objects: minimal catalogs

APPEND-ONLY ENFORCEMENT:
  No UPDATE statements exist for either register table. Rows are inserted
  and deleted by recorder, nothing else.

INDEXES:
  idx_unique_payroll_booking enforces at most one payroll row per
  (object, estimate, employee, work_date); violations surface as
  register.DuplicateBookingError so the engine can report the colliding
  tuple. Recorder and dimension indexes back the delete-by-recorder and
  balance queries.

CONCURRENCY:
  Opened in WAL mode with a busy timeout. WithTx serializes writer
  transactions with a mutex; reads go through database/sql's pool and do
  not block on it. The posted-flag compare-and-set (SetPostedState) is
  the cross-process gate.

USAGE:
  store, err := sqlite.New("./data/sitebook.db")     // or ":memory:"

SEE ALSO:
  - posting/store.go: interface definitions
  - store/memory/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/sitebook/posting-engine/document"
	"github.com/sitebook/posting-engine/posting"
	"github.com/sitebook/posting-engine/register"
)

const (
	dateFormat = "2006-01-02"
)

// ErrDuplicateNumber is returned when a document number is already used
// by another document of the same kind.
var ErrDuplicateNumber = errors.New("document number already in use")

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements the posting storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	q  querier // db outside a transaction, *sql.Tx inside
	mu *sync.Mutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, q: db, mu: &sync.Mutex{}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Documents (headers of all three kinds)
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		doc_type TEXT NOT NULL,
		number TEXT NOT NULL,
		doc_date TEXT NOT NULL,
		object_id INTEGER NOT NULL,
		estimate_id INTEGER,
		is_posted INTEGER NOT NULL DEFAULT 0,
		posted_at TEXT,
		deleted INTEGER NOT NULL DEFAULT 0,
		total_sum TEXT NOT NULL DEFAULT '0',
		total_labor TEXT NOT NULL DEFAULT '0',
		total_material_sum TEXT NOT NULL DEFAULT '0',
		total_actual_labor TEXT NOT NULL DEFAULT '0',
		total_hours TEXT NOT NULL DEFAULT '0',
		total_amount TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_number
		ON documents(doc_type, number);
	CREATE INDEX IF NOT EXISTS idx_documents_posted
		ON documents(doc_type, is_posted);

	-- Line payloads per kind
	CREATE TABLE IF NOT EXISTS estimate_lines (
		document_id INTEGER NOT NULL,
		line_no INTEGER NOT NULL,
		work_id INTEGER,
		group_title TEXT NOT NULL DEFAULT '',
		quantity TEXT NOT NULL DEFAULT '0',
		price TEXT NOT NULL DEFAULT '0',
		labor_rate TEXT NOT NULL DEFAULT '0',
		material_quantity TEXT NOT NULL DEFAULT '0',
		material_price TEXT NOT NULL DEFAULT '0',
		PRIMARY KEY (document_id, line_no)
	);

	CREATE TABLE IF NOT EXISTS daily_report_lines (
		document_id INTEGER NOT NULL,
		line_no INTEGER NOT NULL,
		work_id INTEGER NOT NULL,
		price TEXT NOT NULL DEFAULT '0',
		planned_labor TEXT NOT NULL DEFAULT '0',
		actual_labor TEXT NOT NULL DEFAULT '0',
		material_planned TEXT NOT NULL DEFAULT '0',
		material_actual TEXT NOT NULL DEFAULT '0',
		executors_json TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (document_id, line_no)
	);

	CREATE TABLE IF NOT EXISTS timesheet_lines (
		document_id INTEGER NOT NULL,
		line_no INTEGER NOT NULL,
		employee_id INTEGER NOT NULL,
		hourly_rate TEXT NOT NULL DEFAULT '0',
		hours_json TEXT NOT NULL DEFAULT '{}',
		PRIMARY KEY (document_id, line_no)
	);

	-- Work execution register (append-only)
	CREATE TABLE IF NOT EXISTS work_execution_register (
		id TEXT PRIMARY KEY,
		recorder_type TEXT NOT NULL,
		recorder_id INTEGER NOT NULL,
		line_no INTEGER NOT NULL,
		period TEXT NOT NULL,
		object_id INTEGER NOT NULL,
		estimate_id INTEGER NOT NULL,
		work_id INTEGER NOT NULL,
		quantity_income TEXT NOT NULL DEFAULT '0',
		quantity_expense TEXT NOT NULL DEFAULT '0',
		sum_income TEXT NOT NULL DEFAULT '0',
		sum_expense TEXT NOT NULL DEFAULT '0'
	);

	CREATE INDEX IF NOT EXISTS idx_workreg_recorder
		ON work_execution_register(recorder_type, recorder_id);
	CREATE INDEX IF NOT EXISTS idx_workreg_estimate
		ON work_execution_register(estimate_id, work_id);

	-- Payroll register (append-only)
	CREATE TABLE IF NOT EXISTS payroll_register (
		id TEXT PRIMARY KEY,
		recorder_type TEXT NOT NULL,
		recorder_id INTEGER NOT NULL,
		line_no INTEGER NOT NULL,
		period TEXT NOT NULL,
		object_id INTEGER NOT NULL,
		estimate_id INTEGER NOT NULL,
		employee_id INTEGER NOT NULL,
		work_date TEXT NOT NULL,
		hours_worked TEXT NOT NULL DEFAULT '0',
		amount TEXT NOT NULL DEFAULT '0'
	);

	-- CRITICAL: an employee cannot be booked twice on the same calendar
	-- day for the same object and estimate, across all timesheets.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_payroll_booking
		ON payroll_register(object_id, estimate_id, employee_id, work_date);

	CREATE INDEX IF NOT EXISTS idx_payroll_recorder
		ON payroll_register(recorder_type, recorder_id);
	CREATE INDEX IF NOT EXISTS idx_payroll_period
		ON payroll_register(period);

	-- Catalogs
	CREATE TABLE IF NOT EXISTS works (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		unit TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS employees (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		position TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS objects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT ''
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS (posting.TxStore)
// =============================================================================

// WithTx executes fn within a database transaction. Writer transactions
// are serialized; fn's store reads its own uncommitted writes.
func (s *Store) WithTx(ctx context.Context, fn func(st posting.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	txStore := &Store{db: s.db, q: tx, mu: s.mu}
	if err := fn(txStore); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// DOCUMENT CREATION
// =============================================================================

// CreateEstimate inserts a draft estimate with its lines and assigns its
// id. Totals are stored as provided; the posting engine recomputes them
// at posting time.
func (s *Store) CreateEstimate(ctx context.Context, e *document.Estimate) error {
	id, err := s.insertHeader(ctx, register.RecorderEstimate, &e.Header, nil)
	if err != nil {
		return err
	}
	e.ID = id

	for _, l := range e.Lines {
		var workID any
		if l.WorkID != nil {
			workID = *l.WorkID
		}
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO estimate_lines
			(document_id, line_no, work_id, group_title, quantity, price, labor_rate, material_quantity, material_price)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, l.LineNo, workID, l.GroupTitle,
			l.Quantity.String(), l.Price.String(), l.LaborRate.String(),
			l.MaterialQuantity.String(), l.MaterialPrice.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert estimate line %d: %w", l.LineNo, err)
		}
	}
	return nil
}

// CreateDailyReport inserts a draft daily report with its lines.
func (s *Store) CreateDailyReport(ctx context.Context, d *document.DailyReport) error {
	id, err := s.insertHeader(ctx, register.RecorderDailyReport, &d.Header, &d.EstimateID)
	if err != nil {
		return err
	}
	d.ID = id

	for _, l := range d.Lines {
		executors, _ := json.Marshal(l.ExecutorIDs)
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO daily_report_lines
			(document_id, line_no, work_id, price, planned_labor, actual_labor, material_planned, material_actual, executors_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, l.LineNo, l.WorkID, l.Price.String(),
			l.PlannedLabor.String(), l.ActualLabor.String(),
			l.MaterialPlanned.String(), l.MaterialActual.String(),
			string(executors),
		)
		if err != nil {
			return fmt.Errorf("failed to insert daily report line %d: %w", l.LineNo, err)
		}
	}
	return nil
}

// CreateTimesheet inserts a draft timesheet with its lines.
func (s *Store) CreateTimesheet(ctx context.Context, t *document.Timesheet) error {
	id, err := s.insertHeader(ctx, register.RecorderTimesheet, &t.Header, &t.EstimateID)
	if err != nil {
		return err
	}
	t.ID = id

	for _, l := range t.Lines {
		hours := make(map[string]string, len(l.Hours))
		for day, h := range l.Hours {
			hours[strconv.Itoa(day)] = h.String()
		}
		hoursJSON, _ := json.Marshal(hours)
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO timesheet_lines
			(document_id, line_no, employee_id, hourly_rate, hours_json)
			VALUES (?, ?, ?, ?, ?)`,
			t.ID, l.LineNo, l.EmployeeID, l.HourlyRate.String(), string(hoursJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to insert timesheet line %d: %w", l.LineNo, err)
		}
	}
	return nil
}

func (s *Store) insertHeader(ctx context.Context, docType register.RecorderType, head *document.Header, estimateID *int64) (int64, error) {
	if head.CreatedAt.IsZero() {
		head.CreatedAt = time.Now().UTC()
	}
	var estimate any
	if estimateID != nil {
		estimate = *estimateID
	}

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO documents (doc_type, number, doc_date, object_id, estimate_id, is_posted, deleted, created_at)
		VALUES (?, ?, ?, ?, ?, 0, 0, ?)`,
		string(docType), head.Number, head.Date.Format(dateFormat),
		head.ObjectID, estimate, head.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, fmt.Errorf("%w: %s %q", ErrDuplicateNumber, docType, head.Number)
		}
		return 0, fmt.Errorf("failed to insert document header: %w", err)
	}
	return res.LastInsertId()
}

// =============================================================================
// DOCUMENT STORE (posting.DocumentStore)
// =============================================================================

// LoadDocument returns the document with its lines, or
// posting.ErrDocumentNotFound.
func (s *Store) LoadDocument(ctx context.Context, ref register.RecorderRef) (document.Document, error) {
	head, estimateID, totals, err := s.loadHeader(ctx, ref)
	if err != nil {
		return nil, err
	}

	switch ref.Type {
	case register.RecorderEstimate:
		lines, err := s.loadEstimateLines(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		return &document.Estimate{
			Header: *head,
			Lines:  lines,
			Totals: document.EstimateTotals{
				TotalSum:         totals[0],
				TotalLabor:       totals[1],
				TotalMaterialSum: totals[2],
			},
		}, nil

	case register.RecorderDailyReport:
		lines, err := s.loadDailyReportLines(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		return &document.DailyReport{
			Header:     *head,
			EstimateID: estimateID,
			Lines:      lines,
			Totals: document.DailyReportTotals{
				TotalPlannedLabor: totals[1],
				TotalActualLabor:  totals[3],
			},
		}, nil

	case register.RecorderTimesheet:
		lines, err := s.loadTimesheetLines(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		return &document.Timesheet{
			Header:     *head,
			EstimateID: estimateID,
			Lines:      lines,
			Totals: document.TimesheetTotals{
				TotalHours:  totals[4],
				TotalAmount: totals[5],
			},
		}, nil
	}
	return nil, posting.ErrDocumentNotFound
}

// loadHeader returns the header plus the six totals columns in table
// order: sum, labor, material_sum, actual_labor, hours, amount.
func (s *Store) loadHeader(ctx context.Context, ref register.RecorderRef) (*document.Header, int64, [6]decimal.Decimal, error) {
	var (
		head       document.Header
		totals     [6]decimal.Decimal
		docDate    string
		postedAt   sql.NullString
		estimateID sql.NullInt64
		createdAt  string
		totalStrs  [6]string
	)

	err := s.q.QueryRowContext(ctx, `
		SELECT id, number, doc_date, object_id, estimate_id, is_posted, posted_at, deleted,
		       total_sum, total_labor, total_material_sum, total_actual_labor, total_hours, total_amount,
		       created_at
		FROM documents
		WHERE id = ? AND doc_type = ? AND deleted = 0`,
		ref.ID, string(ref.Type),
	).Scan(
		&head.ID, &head.Number, &docDate, &head.ObjectID, &estimateID, &head.IsPosted, &postedAt, &head.Deleted,
		&totalStrs[0], &totalStrs[1], &totalStrs[2], &totalStrs[3], &totalStrs[4], &totalStrs[5],
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, 0, totals, posting.ErrDocumentNotFound
	}
	if err != nil {
		return nil, 0, totals, fmt.Errorf("failed to load document header: %w", err)
	}

	head.Date, _ = time.Parse(dateFormat, docDate)
	head.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if postedAt.Valid {
		t, _ := time.Parse(time.RFC3339, postedAt.String)
		head.PostedAt = &t
	}
	for i, str := range totalStrs {
		totals[i] = register.MustParseDecimal(str)
	}
	return &head, estimateID.Int64, totals, nil
}

func (s *Store) loadEstimateLines(ctx context.Context, docID int64) ([]document.EstimateLine, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT line_no, work_id, group_title, quantity, price, labor_rate, material_quantity, material_price
		FROM estimate_lines WHERE document_id = ? ORDER BY line_no`, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to load estimate lines: %w", err)
	}
	defer rows.Close()

	var lines []document.EstimateLine
	for rows.Next() {
		var (
			l        document.EstimateLine
			workID   sql.NullInt64
			decimals [5]string
		)
		if err := rows.Scan(&l.LineNo, &workID, &l.GroupTitle,
			&decimals[0], &decimals[1], &decimals[2], &decimals[3], &decimals[4]); err != nil {
			return nil, err
		}
		if workID.Valid {
			id := workID.Int64
			l.WorkID = &id
		}
		l.Quantity = register.MustParseDecimal(decimals[0])
		l.Price = register.MustParseDecimal(decimals[1])
		l.LaborRate = register.MustParseDecimal(decimals[2])
		l.MaterialQuantity = register.MustParseDecimal(decimals[3])
		l.MaterialPrice = register.MustParseDecimal(decimals[4])
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (s *Store) loadDailyReportLines(ctx context.Context, docID int64) ([]document.DailyReportLine, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT line_no, work_id, price, planned_labor, actual_labor, material_planned, material_actual, executors_json
		FROM daily_report_lines WHERE document_id = ? ORDER BY line_no`, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily report lines: %w", err)
	}
	defer rows.Close()

	var lines []document.DailyReportLine
	for rows.Next() {
		var (
			l         document.DailyReportLine
			decimals  [5]string
			executors string
		)
		if err := rows.Scan(&l.LineNo, &l.WorkID,
			&decimals[0], &decimals[1], &decimals[2], &decimals[3], &decimals[4], &executors); err != nil {
			return nil, err
		}
		l.Price = register.MustParseDecimal(decimals[0])
		l.PlannedLabor = register.MustParseDecimal(decimals[1])
		l.ActualLabor = register.MustParseDecimal(decimals[2])
		l.MaterialPlanned = register.MustParseDecimal(decimals[3])
		l.MaterialActual = register.MustParseDecimal(decimals[4])
		json.Unmarshal([]byte(executors), &l.ExecutorIDs)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (s *Store) loadTimesheetLines(ctx context.Context, docID int64) ([]document.TimesheetLine, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT line_no, employee_id, hourly_rate, hours_json
		FROM timesheet_lines WHERE document_id = ? ORDER BY line_no`, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to load timesheet lines: %w", err)
	}
	defer rows.Close()

	var lines []document.TimesheetLine
	for rows.Next() {
		var (
			l         document.TimesheetLine
			rate      string
			hoursJSON string
		)
		if err := rows.Scan(&l.LineNo, &l.EmployeeID, &rate, &hoursJSON); err != nil {
			return nil, err
		}
		l.HourlyRate = register.MustParseDecimal(rate)

		raw := make(map[string]string)
		json.Unmarshal([]byte(hoursJSON), &raw)
		l.Hours = make(map[int]decimal.Decimal, len(raw))
		for dayStr, h := range raw {
			day, err := strconv.Atoi(dayStr)
			if err != nil {
				continue
			}
			l.Hours[day] = register.MustParseDecimal(h)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// SaveTotals persists the recomputed header totals of doc.
func (s *Store) SaveTotals(ctx context.Context, doc document.Document) error {
	ref := doc.Ref()

	var query string
	var args []any
	switch d := doc.(type) {
	case *document.Estimate:
		query = `UPDATE documents SET total_sum = ?, total_labor = ?, total_material_sum = ? WHERE id = ? AND doc_type = ?`
		args = []any{d.Totals.TotalSum.String(), d.Totals.TotalLabor.String(), d.Totals.TotalMaterialSum.String()}
	case *document.DailyReport:
		query = `UPDATE documents SET total_labor = ?, total_actual_labor = ? WHERE id = ? AND doc_type = ?`
		args = []any{d.Totals.TotalPlannedLabor.String(), d.Totals.TotalActualLabor.String()}
	case *document.Timesheet:
		query = `UPDATE documents SET total_hours = ?, total_amount = ? WHERE id = ? AND doc_type = ?`
		args = []any{d.Totals.TotalHours.String(), d.Totals.TotalAmount.String()}
	default:
		return fmt.Errorf("unknown document kind %T", doc)
	}

	args = append(args, ref.ID, string(ref.Type))
	_, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to save totals: %w", err)
	}
	return nil
}

// SetPostedState flips the posted flag only when it currently holds the
// opposite value. The WHERE clause is the compare-and-set; rows affected
// tells the caller whether it won.
func (s *Store) SetPostedState(ctx context.Context, ref register.RecorderRef, posted bool, at *time.Time) (bool, error) {
	var postedAt any
	if at != nil {
		postedAt = at.UTC().Format(time.RFC3339)
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE documents SET is_posted = ?, posted_at = ?
		WHERE id = ? AND doc_type = ? AND is_posted = ? AND deleted = 0`,
		posted, postedAt, ref.ID, string(ref.Type), !posted,
	)
	if err != nil {
		return false, fmt.Errorf("failed to set posted state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SoftDelete marks a draft document deleted. Posted documents must be
// unposted first.
func (s *Store) SoftDelete(ctx context.Context, ref register.RecorderRef) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE documents SET deleted = 1
		WHERE id = ? AND doc_type = ? AND is_posted = 0 AND deleted = 0`,
		ref.ID, string(ref.Type),
	)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, _, _, err := s.loadHeader(ctx, ref); err != nil {
			return err
		}
		return &posting.StateError{Ref: ref, Reason: "posted documents cannot be deleted"}
	}
	return nil
}

// DocumentSummary is a list-view projection of a document header.
type DocumentSummary struct {
	Ref        register.RecorderRef
	Number     string
	Date       time.Time
	ObjectID   int64
	EstimateID int64
	IsPosted   bool
	PostedAt   *time.Time
}

// ListDocuments returns headers of one kind, newest first.
func (s *Store) ListDocuments(ctx context.Context, docType register.RecorderType) ([]DocumentSummary, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, number, doc_date, object_id, estimate_id, is_posted, posted_at
		FROM documents
		WHERE doc_type = ? AND deleted = 0
		ORDER BY doc_date DESC, id DESC`, string(docType))
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var result []DocumentSummary
	for rows.Next() {
		var (
			d          DocumentSummary
			docDate    string
			estimateID sql.NullInt64
			postedAt   sql.NullString
		)
		if err := rows.Scan(&d.Ref.ID, &d.Number, &docDate, &d.ObjectID, &estimateID, &d.IsPosted, &postedAt); err != nil {
			return nil, err
		}
		d.Ref.Type = docType
		d.Date, _ = time.Parse(dateFormat, docDate)
		d.EstimateID = estimateID.Int64
		if postedAt.Valid {
			t, _ := time.Parse(time.RFC3339, postedAt.String)
			d.PostedAt = &t
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// PostedRefs returns the recorder refs of all posted documents. Feed for
// the register consistency audit.
func (s *Store) PostedRefs(ctx context.Context) ([]register.RecorderRef, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT doc_type, id FROM documents
		WHERE is_posted = 1 AND deleted = 0
		ORDER BY doc_type, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list posted documents: %w", err)
	}
	defer rows.Close()

	var refs []register.RecorderRef
	for rows.Next() {
		var (
			docType string
			id      int64
		)
		if err := rows.Scan(&docType, &id); err != nil {
			return nil, err
		}
		refs = append(refs, register.RecorderRef{Type: register.RecorderType(docType), ID: id})
	}
	return refs, rows.Err()
}

// =============================================================================
// REGISTER STORE (register.Store)
// =============================================================================

// DeleteByRecorder removes every register row produced by rec.
func (s *Store) DeleteByRecorder(ctx context.Context, rec register.RecorderRef) error {
	if _, err := s.q.ExecContext(ctx,
		"DELETE FROM work_execution_register WHERE recorder_type = ? AND recorder_id = ?",
		string(rec.Type), rec.ID); err != nil {
		return fmt.Errorf("failed to delete work execution rows: %w", err)
	}
	if _, err := s.q.ExecContext(ctx,
		"DELETE FROM payroll_register WHERE recorder_type = ? AND recorder_id = ?",
		string(rec.Type), rec.ID); err != nil {
		return fmt.Errorf("failed to delete payroll rows: %w", err)
	}
	return nil
}

// InsertWorkExecution inserts rows; all-or-nothing within the caller's
// transaction.
func (s *Store) InsertWorkExecution(ctx context.Context, rows []register.WorkExecutionRow) error {
	for _, row := range rows {
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO work_execution_register
			(id, recorder_type, recorder_id, line_no, period, object_id, estimate_id, work_id,
			 quantity_income, quantity_expense, sum_income, sum_expense)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(row.ID), string(row.Recorder.Type), row.Recorder.ID, row.LineNo,
			row.Period.Format(dateFormat), row.ObjectID, row.EstimateID, row.WorkID,
			row.QuantityIncome.String(), row.QuantityExpense.String(),
			row.SumIncome.String(), row.SumExpense.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert work execution row: %w", err)
		}
	}
	return nil
}

// InsertPayroll inserts rows; a collision with the booking uniqueness
// index surfaces as register.DuplicateBookingError naming the tuple.
func (s *Store) InsertPayroll(ctx context.Context, rows []register.PayrollRow) error {
	for _, row := range rows {
		workDate := row.WorkDate.Format(dateFormat)
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO payroll_register
			(id, recorder_type, recorder_id, line_no, period, object_id, estimate_id, employee_id,
			 work_date, hours_worked, amount)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(row.ID), string(row.Recorder.Type), row.Recorder.ID, row.LineNo,
			row.Period.Format(dateFormat), row.ObjectID, row.EstimateID, row.EmployeeID,
			workDate, row.HoursWorked.String(), row.Amount.String(),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return &register.DuplicateBookingError{
					ObjectID:   row.ObjectID,
					EstimateID: row.EstimateID,
					EmployeeID: row.EmployeeID,
					WorkDate:   workDate,
				}
			}
			return fmt.Errorf("failed to insert payroll row: %w", err)
		}
	}
	return nil
}

const workExecutionColumns = `
	id, recorder_type, recorder_id, line_no, period, object_id, estimate_id, work_id,
	quantity_income, quantity_expense, sum_income, sum_expense`

// WorkExecutionByRecorder returns the rows rec produced, by line number.
func (s *Store) WorkExecutionByRecorder(ctx context.Context, rec register.RecorderRef) ([]register.WorkExecutionRow, error) {
	return s.queryWorkExecution(ctx, `
		SELECT `+workExecutionColumns+`
		FROM work_execution_register
		WHERE recorder_type = ? AND recorder_id = ?
		ORDER BY line_no`, string(rec.Type), rec.ID)
}

// WorkExecutionByEstimate returns all rows for an estimate dimension.
func (s *Store) WorkExecutionByEstimate(ctx context.Context, estimateID int64) ([]register.WorkExecutionRow, error) {
	return s.queryWorkExecution(ctx, `
		SELECT `+workExecutionColumns+`
		FROM work_execution_register
		WHERE estimate_id = ?
		ORDER BY work_id, recorder_type, recorder_id, line_no`, estimateID)
}

func (s *Store) queryWorkExecution(ctx context.Context, query string, args ...any) ([]register.WorkExecutionRow, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query work execution register: %w", err)
	}
	defer rows.Close()

	var result []register.WorkExecutionRow
	for rows.Next() {
		var (
			row      register.WorkExecutionRow
			id       string
			recType  string
			period   string
			measures [4]string
		)
		if err := rows.Scan(&id, &recType, &row.Recorder.ID, &row.LineNo, &period,
			&row.ObjectID, &row.EstimateID, &row.WorkID,
			&measures[0], &measures[1], &measures[2], &measures[3]); err != nil {
			return nil, err
		}
		row.ID = register.RowID(id)
		row.Recorder.Type = register.RecorderType(recType)
		row.Period, _ = time.Parse(dateFormat, period)
		row.QuantityIncome = register.MustParseDecimal(measures[0])
		row.QuantityExpense = register.MustParseDecimal(measures[1])
		row.SumIncome = register.MustParseDecimal(measures[2])
		row.SumExpense = register.MustParseDecimal(measures[3])
		result = append(result, row)
	}
	return result, rows.Err()
}

const payrollColumns = `
	id, recorder_type, recorder_id, line_no, period, object_id, estimate_id, employee_id,
	work_date, hours_worked, amount`

// PayrollByRecorder returns the payroll rows rec produced.
func (s *Store) PayrollByRecorder(ctx context.Context, rec register.RecorderRef) ([]register.PayrollRow, error) {
	return s.queryPayroll(ctx, `
		SELECT `+payrollColumns+`
		FROM payroll_register
		WHERE recorder_type = ? AND recorder_id = ?
		ORDER BY line_no, work_date`, string(rec.Type), rec.ID)
}

// PayrollInPeriod returns all payroll rows in a calendar month.
func (s *Store) PayrollInPeriod(ctx context.Context, p register.Period) ([]register.PayrollRow, error) {
	return s.queryPayroll(ctx, `
		SELECT `+payrollColumns+`
		FROM payroll_register
		WHERE period = ?
		ORDER BY employee_id, work_date`, p.Start().Format(dateFormat))
}

func (s *Store) queryPayroll(ctx context.Context, query string, args ...any) ([]register.PayrollRow, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payroll register: %w", err)
	}
	defer rows.Close()

	var result []register.PayrollRow
	for rows.Next() {
		var (
			row      register.PayrollRow
			id       string
			recType  string
			period   string
			workDate string
			hours    string
			amount   string
		)
		if err := rows.Scan(&id, &recType, &row.Recorder.ID, &row.LineNo, &period,
			&row.ObjectID, &row.EstimateID, &row.EmployeeID,
			&workDate, &hours, &amount); err != nil {
			return nil, err
		}
		row.ID = register.RowID(id)
		row.Recorder.Type = register.RecorderType(recType)
		row.Period, _ = time.Parse(dateFormat, period)
		row.WorkDate, _ = time.Parse(dateFormat, workDate)
		row.HoursWorked = register.MustParseDecimal(hours)
		row.Amount = register.MustParseDecimal(amount)
		result = append(result, row)
	}
	return result, rows.Err()
}

// =============================================================================
// CATALOG GATEWAY (posting.Catalog)
// =============================================================================

func (s *Store) WorkExists(ctx context.Context, workID int64) (bool, error) {
	return s.exists(ctx, "SELECT COUNT(*) FROM works WHERE id = ?", workID)
}

func (s *Store) EmployeeExists(ctx context.Context, employeeID int64) (bool, error) {
	return s.exists(ctx, "SELECT COUNT(*) FROM employees WHERE id = ?", employeeID)
}

func (s *Store) exists(ctx context.Context, query string, id int64) (bool, error) {
	var count int
	if err := s.q.QueryRowContext(ctx, query, id).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// EstimateWorkReferences returns the work ids on the estimate's
// non-group lines.
func (s *Store) EstimateWorkReferences(ctx context.Context, estimateID int64) (map[int64]bool, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT DISTINCT work_id FROM estimate_lines
		WHERE document_id = ? AND work_id IS NOT NULL`, estimateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query estimate work references: %w", err)
	}
	defer rows.Close()

	refs := make(map[int64]bool)
	for rows.Next() {
		var workID int64
		if err := rows.Scan(&workID); err != nil {
			return nil, err
		}
		refs[workID] = true
	}
	return refs, rows.Err()
}

func (s *Store) IsEstimatePosted(ctx context.Context, estimateID int64) (bool, error) {
	var posted bool
	err := s.q.QueryRowContext(ctx, `
		SELECT is_posted FROM documents
		WHERE id = ? AND doc_type = ? AND deleted = 0`,
		estimateID, string(register.RecorderEstimate),
	).Scan(&posted)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return posted, nil
}

// =============================================================================
// CATALOG ENTRIES (minimal CRUD backing the gateway)
// =============================================================================

type Work struct {
	ID   int64
	Name string
	Unit string
}

type Employee struct {
	ID       int64
	Name     string
	Position string
}

type Object struct {
	ID      int64
	Name    string
	Address string
}

func (s *Store) CreateWork(ctx context.Context, w *Work) error {
	res, err := s.q.ExecContext(ctx, "INSERT INTO works (name, unit) VALUES (?, ?)", w.Name, w.Unit)
	if err != nil {
		return fmt.Errorf("failed to create work: %w", err)
	}
	w.ID, err = res.LastInsertId()
	return err
}

func (s *Store) ListWorks(ctx context.Context) ([]Work, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT id, name, unit FROM works ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var works []Work
	for rows.Next() {
		var w Work
		if err := rows.Scan(&w.ID, &w.Name, &w.Unit); err != nil {
			return nil, err
		}
		works = append(works, w)
	}
	return works, rows.Err()
}

func (s *Store) CreateEmployee(ctx context.Context, e *Employee) error {
	res, err := s.q.ExecContext(ctx, "INSERT INTO employees (name, position) VALUES (?, ?)", e.Name, e.Position)
	if err != nil {
		return fmt.Errorf("failed to create employee: %w", err)
	}
	e.ID, err = res.LastInsertId()
	return err
}

func (s *Store) ListEmployees(ctx context.Context) ([]Employee, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT id, name, position FROM employees ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []Employee
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.Position); err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func (s *Store) CreateObject(ctx context.Context, o *Object) error {
	res, err := s.q.ExecContext(ctx, "INSERT INTO objects (name, address) VALUES (?, ?)", o.Name, o.Address)
	if err != nil {
		return fmt.Errorf("failed to create object: %w", err)
	}
	o.ID, err = res.LastInsertId()
	return err
}

func (s *Store) ListObjects(ctx context.Context) ([]Object, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT id, name, address FROM objects ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var objects []Object
	for rows.Next() {
		var o Object
		if err := rows.Scan(&o.ID, &o.Name, &o.Address); err != nil {
			return nil, err
		}
		objects = append(objects, o)
	}
	return objects, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
