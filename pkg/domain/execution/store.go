package execution

import (
	stdcontext "context"

	"github.com/flowkeep/flowkeep/pkg/domain"
)

// WorkflowFilter narrows FindByWorkflow to a specific revision version
// and/or execution status; nil fields mean "any".
type WorkflowFilter struct {
	Version *int
	Status  *Status
	Limit   int
	Offset  int
}

// Store is the persistence contract for executions and their step results.
// SaveStepResult is append-only and never updates a row;
// UpdateExecutionStatus is the only mutator of a WorkflowExecution row.
type Store interface {
	CreateExecution(ctx stdcontext.Context, exec WorkflowExecution) error

	// UpdateExecutionStatus sets status (and errorMessage, if status is
	// FAILED) plus completedAt/lastUpdatedAt. It is the sole writer of a
	// WorkflowExecution row after creation.
	UpdateExecutionStatus(ctx stdcontext.Context, id domain.NanoID, status Status, errorMessage string) error

	FindByID(ctx stdcontext.Context, id domain.NanoID) (WorkflowExecution, error)

	// SaveStepResult persists one append-only ExecutionStepResult row.
	SaveStepResult(ctx stdcontext.Context, result StepResult) error

	// FindStepResultsByExecutionID returns the durable trace ordered by
	// StepIndex ascending.
	FindStepResultsByExecutionID(ctx stdcontext.Context, id domain.NanoID) ([]StepResult, error)

	// FindByStatus returns every execution currently in the given status,
	// oldest first. Used by the startup orphan sweep.
	FindByStatus(ctx stdcontext.Context, status Status) ([]WorkflowExecution, error)

	// FindByWorkflow lists executions of (namespace,workflowID) honoring
	// filter, sorted by StartedAt descending. filter.Limit must be clamped
	// to [1,100] by the caller before this is invoked.
	FindByWorkflow(ctx stdcontext.Context, namespace, workflowID string, filter WorkflowFilter) ([]WorkflowExecution, error)

	CountByWorkflow(ctx stdcontext.Context, namespace, workflowID string, filter WorkflowFilter) (int, error)
}
