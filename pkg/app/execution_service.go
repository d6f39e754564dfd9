package app

import (
	stdcontext "context"
	"regexp"

	"github.com/flowkeep/flowkeep/pkg/domain"
	"github.com/flowkeep/flowkeep/pkg/domain/execution"
	workflowdomain "github.com/flowkeep/flowkeep/pkg/domain/workflow"
	"github.com/flowkeep/flowkeep/pkg/engine"
	"github.com/flowkeep/flowkeep/pkg/logger"
	"github.com/flowkeep/flowkeep/pkg/validation"
)

var executionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{21}$`)

// ExecutionService orchestrates the run-a-revision use case: validate the
// caller's parameters against the revision's schema, hand the validated set
// to the engine, and expose the durable trace for reads.
type ExecutionService struct {
	revisions  workflowdomain.RevisionStore
	executions execution.Store
	engine     *engine.Engine
}

// NewExecutionService creates a new execution application service.
func NewExecutionService(revisions workflowdomain.RevisionStore, executions execution.Store, eng *engine.Engine) *ExecutionService {
	return &ExecutionService{revisions: revisions, executions: executions, engine: eng}
}

// ExecutionTrace pairs an execution record with its ordered step results.
type ExecutionTrace struct {
	Execution execution.WorkflowExecution
	Steps     []execution.StepResult
}

// Execute validates params against the revision's parameter schema and runs
// the revision. Validation failures are returned as a single aggregated
// ParameterValidation error; values are never logged, only counts.
func (s *ExecutionService) Execute(ctx stdcontext.Context, id workflowdomain.RevisionID, params map[string]interface{}) (execution.WorkflowExecution, error) {
	if err := id.Validate(); err != nil {
		return execution.WorkflowExecution{}, err
	}
	rev, err := s.revisions.Get(ctx, id)
	if err != nil {
		return execution.WorkflowExecution{}, err
	}

	result := validation.Validate(params, rev.Parameters)
	if !result.Valid() {
		logger.WarnC(logger.CategoryValidation, "rejected execution request",
			"workflow", id.Namespace+"/"+id.ID, "version", id.Version, "errors", len(result.Errors))
		return execution.WorkflowExecution{}, validation.DomainError(result)
	}

	exec, err := s.engine.Run(ctx, id, result.Validated)
	if err != nil {
		return execution.WorkflowExecution{}, err
	}
	logger.InfoC(logger.CategoryEngine, "execution finished",
		"executionId", exec.ExecutionID.String(), "status", string(exec.Status))
	return exec, nil
}

// GetTrace returns an execution plus its step results. Returns
// MalformedIdentifier if executionID is not a 21-character NanoID, NotFound
// if no such execution exists.
func (s *ExecutionService) GetTrace(ctx stdcontext.Context, executionID string) (ExecutionTrace, error) {
	if !executionIDPattern.MatchString(executionID) {
		return ExecutionTrace{}, domain.NewMalformedIdentifier("execution id must be a 21-character nanoid")
	}
	id := domain.NanoID(executionID)
	exec, err := s.executions.FindByID(ctx, id)
	if err != nil {
		return ExecutionTrace{}, err
	}
	steps, err := s.executions.FindStepResultsByExecutionID(ctx, id)
	if err != nil {
		return ExecutionTrace{}, err
	}
	return ExecutionTrace{Execution: exec, Steps: steps}, nil
}

// ListByWorkflow lists executions of a workflow, newest first. limit is
// clamped to [1,100]; a negative offset is treated as zero.
func (s *ExecutionService) ListByWorkflow(ctx stdcontext.Context, namespace, workflowID string, filter execution.WorkflowFilter) ([]execution.WorkflowExecution, int, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	execs, err := s.executions.FindByWorkflow(ctx, namespace, workflowID, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.executions.CountByWorkflow(ctx, namespace, workflowID, filter)
	if err != nil {
		return nil, 0, err
	}
	return execs, total, nil
}
