/*
store.go - Storage and catalog contracts consumed by the posting engine

PURPOSE:
  The engine orchestrates three collaborators it does not implement:
  the document store (headers, lines, posted flag), the register store
  (movement rows) and the read-only catalog gateway. One transactional
  store binds the first two so a posting commits or rolls back as a unit.
*/
package posting

import (
	"context"
	"time"

	"github.com/sitebook/posting-engine/document"
	"github.com/sitebook/posting-engine/register"
)

// =============================================================================
// DOCUMENT STORE
// =============================================================================

// DocumentStore persists documents and their posted state.
type DocumentStore interface {
	// LoadDocument returns the document with its lines, or
	// ErrDocumentNotFound. Implementations return a copy; mutating it
	// does not affect stored state.
	LoadDocument(ctx context.Context, ref register.RecorderRef) (document.Document, error)

	// SaveTotals persists the document's recomputed header totals. The
	// only mutation posting ever applies to its source document.
	SaveTotals(ctx context.Context, doc document.Document) error

	// SetPostedState flips the posted flag with compare-and-set
	// semantics: the write applies only if the flag currently holds the
	// opposite value. Returns false when the flag was already in the
	// requested state, which a concurrent poster uses to fail fast.
	SetPostedState(ctx context.Context, ref register.RecorderRef, posted bool, at *time.Time) (bool, error)
}

// =============================================================================
// CATALOG GATEWAY (external, read-only)
// =============================================================================

// Catalog is the read-only gateway to already-validated catalog entities.
type Catalog interface {
	WorkExists(ctx context.Context, workID int64) (bool, error)
	EmployeeExists(ctx context.Context, employeeID int64) (bool, error)

	// EstimateWorkReferences returns the set of work ids referenced by
	// the estimate's non-group lines.
	EstimateWorkReferences(ctx context.Context, estimateID int64) (map[int64]bool, error)

	IsEstimatePosted(ctx context.Context, estimateID int64) (bool, error)
}

// =============================================================================
// COMBINED TRANSACTIONAL STORE
// =============================================================================

// Store is everything a posting touches: the document side and the
// register side.
type Store interface {
	DocumentStore
	register.Store
}

// TxStore executes a function atomically: if fn returns an error, every
// write it performed is rolled back.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(s Store) error) error
}
