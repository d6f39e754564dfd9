package workflow

import (
	stdcontext "context"

	"github.com/flowkeep/flowkeep/pkg/domain"
)

// RevisionStore is the persistence contract for workflows and their
// revisions. Every method is a single transaction; the concrete
// implementation lives in pkg/store/sqlite.
type RevisionStore interface {
	// SaveFirst inserts version 1 for (namespace,id). Returns AlreadyExists
	// if the workflow already has a version 1.
	SaveFirst(ctx stdcontext.Context, rev WithSource) (WithSource, error)

	// SaveNext atomically assigns maxVersion+1 and stores rev under it.
	// Returns NotFound if the workflow does not exist.
	SaveNext(ctx stdcontext.Context, namespace, id string, rev WithSource) (WithSource, error)

	// UpdateInactive replaces name/description/parameters/steps and source
	// text for an existing, inactive revision. Returns ActiveConflict if the
	// stored revision is active, NotFound if it does not exist.
	UpdateInactive(ctx stdcontext.Context, rev WithSource) (WithSource, error)

	// SetActive is the CAS lifecycle operation: it succeeds only if the
	// stored UpdatedAt equals expectedUpdatedAt, then flips Active and bumps
	// UpdatedAt, patching the source text's active/updatedAt fields in
	// place. Returns OptimisticLockConflict on mismatch, NotFound if absent.
	SetActive(ctx stdcontext.Context, id RevisionID, expectedUpdatedAt domain.Timestamp, active bool) (WithSource, error)

	// Get reads one revision without its source text.
	Get(ctx stdcontext.Context, id RevisionID) (Revision, error)

	// GetWithSource reads one revision including its source text.
	GetWithSource(ctx stdcontext.Context, id RevisionID) (WithSource, error)

	// ListByWorkflow returns revisions for (namespace,id) ordered by version
	// ascending. When activeOnly is non-nil and true, returns NotFound if no
	// active revision exists.
	ListByWorkflow(ctx stdcontext.Context, namespace, id string, activeOnly *bool) ([]Revision, error)

	// DeleteRevision removes one revision. Returns ActiveConflict if active,
	// NotFound if absent.
	DeleteRevision(ctx stdcontext.Context, id RevisionID) error

	// DeleteWorkflow removes every revision of (namespace,id). Returns
	// ActiveConflict if any revision is active. Idempotent: deleting an
	// unknown workflow succeeds.
	DeleteWorkflow(ctx stdcontext.Context, namespace, id string) error

	// ListWorkflows returns the distinct (namespace,id) pairs under
	// namespace.
	ListWorkflows(ctx stdcontext.Context, namespace string) ([]ID, error)
}
