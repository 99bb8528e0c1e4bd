/*
Package memory provides an in-memory implementation of the posting
store and catalog interfaces, for tests and local experiments.

TRANSACTIONS:
  WithTx is simulated with snapshot + restore: the state is copied before
  fn runs and put back if fn fails. Transactions are serialized with a
  dedicated mutex so two posts on the same document cannot interleave,
  matching the exclusive gate the SQLite store gets from its database
  transaction.

SEE ALSO:
  - store/sqlite/sqlite.go: the production implementation
*/
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sitebook/posting-engine/document"
	"github.com/sitebook/posting-engine/posting"
	"github.com/sitebook/posting-engine/register"
)

// Store keeps documents, register rows and a minimal catalog in maps.
// Implements posting.TxStore and posting.Catalog.
type Store struct {
	txMu sync.Mutex   // serializes WithTx bodies
	mu   sync.RWMutex // guards the maps below

	nextID      int64
	docs        map[register.RecorderRef]document.Document
	workRows    []register.WorkExecutionRow
	payrollRows []register.PayrollRow

	works     map[int64]string
	employees map[int64]string
	objects   map[int64]string
}

func New() *Store {
	return &Store{
		docs:      make(map[register.RecorderRef]document.Document),
		works:     make(map[int64]string),
		employees: make(map[int64]string),
		objects:   make(map[int64]string),
	}
}

// =============================================================================
// SEEDING (tests)
// =============================================================================

// PutDocument stores a deep copy of doc, assigning an id if it has none.
// Returns the stored id.
func (m *Store) PutDocument(doc document.Document) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	head := doc.Head()
	if head.ID == 0 {
		m.nextID++
		head.ID = m.nextID
	} else if head.ID > m.nextID {
		m.nextID = head.ID
	}
	m.docs[doc.Ref()] = doc.Clone()
	return head.ID
}

func (m *Store) AddWork(id int64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.works[id] = name
}

func (m *Store) AddEmployee(id int64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[id] = name
}

func (m *Store) AddObject(id int64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[id] = name
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn against the store and restores the pre-fn snapshot if
// fn fails.
func (m *Store) WithTx(_ context.Context, fn func(s posting.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	docs        map[register.RecorderRef]document.Document
	workRows    []register.WorkExecutionRow
	payrollRows []register.PayrollRow
}

func (m *Store) snapshot() snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make(map[register.RecorderRef]document.Document, len(m.docs))
	for ref, doc := range m.docs {
		docs[ref] = doc.Clone()
	}
	return snapshot{
		docs:        docs,
		workRows:    append([]register.WorkExecutionRow(nil), m.workRows...),
		payrollRows: append([]register.PayrollRow(nil), m.payrollRows...),
	}
}

func (m *Store) restore(s snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = s.docs
	m.workRows = s.workRows
	m.payrollRows = s.payrollRows
}

// =============================================================================
// DOCUMENT STORE (posting.DocumentStore)
// =============================================================================

func (m *Store) LoadDocument(_ context.Context, ref register.RecorderRef) (document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[ref]
	if !ok || doc.Head().Deleted {
		return nil, posting.ErrDocumentNotFound
	}
	return doc.Clone(), nil
}

func (m *Store) SaveTotals(_ context.Context, doc document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.docs[doc.Ref()]
	if !ok {
		return posting.ErrDocumentNotFound
	}
	switch d := doc.(type) {
	case *document.Estimate:
		stored.(*document.Estimate).Totals = d.Totals
	case *document.DailyReport:
		stored.(*document.DailyReport).Totals = d.Totals
	case *document.Timesheet:
		stored.(*document.Timesheet).Totals = d.Totals
	}
	return nil
}

func (m *Store) SetPostedState(_ context.Context, ref register.RecorderRef, posted bool, at *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[ref]
	if !ok {
		return false, posting.ErrDocumentNotFound
	}
	head := doc.Head()
	if head.IsPosted == posted {
		return false, nil
	}
	head.IsPosted = posted
	head.PostedAt = at
	return true, nil
}

// =============================================================================
// REGISTER STORE (register.Store)
// =============================================================================

func (m *Store) DeleteByRecorder(_ context.Context, rec register.RecorderRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.workRows[:0]
	for _, row := range m.workRows {
		if row.Recorder != rec {
			work = append(work, row)
		}
	}
	m.workRows = work

	payroll := m.payrollRows[:0]
	for _, row := range m.payrollRows {
		if row.Recorder != rec {
			payroll = append(payroll, row)
		}
	}
	m.payrollRows = payroll
	return nil
}

func (m *Store) InsertWorkExecution(_ context.Context, rows []register.WorkExecutionRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workRows = append(m.workRows, rows...)
	return nil
}

func (m *Store) InsertPayroll(_ context.Context, rows []register.PayrollRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	type booking struct {
		object, estimate, employee int64
		workDate                   string
	}
	seen := make(map[booking]bool, len(m.payrollRows))
	for _, row := range m.payrollRows {
		seen[booking{row.ObjectID, row.EstimateID, row.EmployeeID, row.WorkDate.Format("2006-01-02")}] = true
	}

	for _, row := range rows {
		key := booking{row.ObjectID, row.EstimateID, row.EmployeeID, row.WorkDate.Format("2006-01-02")}
		if seen[key] {
			return &register.DuplicateBookingError{
				ObjectID:   key.object,
				EstimateID: key.estimate,
				EmployeeID: key.employee,
				WorkDate:   key.workDate,
			}
		}
		seen[key] = true
	}

	m.payrollRows = append(m.payrollRows, rows...)
	return nil
}

func (m *Store) WorkExecutionByRecorder(_ context.Context, rec register.RecorderRef) ([]register.WorkExecutionRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []register.WorkExecutionRow
	for _, row := range m.workRows {
		if row.Recorder == rec {
			result = append(result, row)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].LineNo < result[j].LineNo })
	return result, nil
}

func (m *Store) PayrollByRecorder(_ context.Context, rec register.RecorderRef) ([]register.PayrollRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []register.PayrollRow
	for _, row := range m.payrollRows {
		if row.Recorder == rec {
			result = append(result, row)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].LineNo != result[j].LineNo {
			return result[i].LineNo < result[j].LineNo
		}
		return result[i].WorkDate.Before(result[j].WorkDate)
	})
	return result, nil
}

func (m *Store) WorkExecutionByEstimate(_ context.Context, estimateID int64) ([]register.WorkExecutionRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []register.WorkExecutionRow
	for _, row := range m.workRows {
		if row.EstimateID == estimateID {
			result = append(result, row)
		}
	}
	return result, nil
}

func (m *Store) PayrollInPeriod(_ context.Context, p register.Period) ([]register.PayrollRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []register.PayrollRow
	for _, row := range m.payrollRows {
		if p.Contains(row.Period) {
			result = append(result, row)
		}
	}
	return result, nil
}

// =============================================================================
// CATALOG GATEWAY (posting.Catalog)
// =============================================================================

func (m *Store) WorkExists(_ context.Context, workID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.works[workID]
	return ok, nil
}

func (m *Store) EmployeeExists(_ context.Context, employeeID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.employees[employeeID]
	return ok, nil
}

func (m *Store) EstimateWorkReferences(_ context.Context, estimateID int64) (map[int64]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	refs := make(map[int64]bool)
	doc, ok := m.docs[register.RecorderRef{Type: register.RecorderEstimate, ID: estimateID}]
	if !ok {
		return refs, nil
	}
	est, ok := doc.(*document.Estimate)
	if !ok {
		return refs, nil
	}
	for _, l := range est.Lines {
		if l.WorkID != nil {
			refs[*l.WorkID] = true
		}
	}
	return refs, nil
}

func (m *Store) IsEstimatePosted(_ context.Context, estimateID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[register.RecorderRef{Type: register.RecorderEstimate, ID: estimateID}]
	if !ok {
		return false, nil
	}
	return doc.Head().IsPosted, nil
}
