package engine

import (
	stdcontext "context"

	"github.com/flowkeep/flowkeep/pkg/domain"
	"github.com/flowkeep/flowkeep/pkg/domain/execution"
	"github.com/flowkeep/flowkeep/pkg/domain/workflow"
)

// Engine drives a stored revision's step tree against validated input
// parameters, producing a durable WorkflowExecution plus its checkpointed
// ExecutionStepResult trace.
type Engine struct {
	revisions  workflow.RevisionStore
	executions execution.Store
	sink       workflow.LogSink
	bus        domain.EventBus
}

// New builds an Engine. sink may be nil, in which case LogTask steps write
// to whatever sink (if any) the caller has already attached to the context.
// bus may be nil; when set, the engine publishes execution lifecycle and
// per-step checkpoint events on it.
func New(revisions workflow.RevisionStore, executions execution.Store, sink workflow.LogSink, bus domain.EventBus) *Engine {
	return &Engine{revisions: revisions, executions: executions, sink: sink, bus: bus}
}

// Run loads the revision identified by id, executes it against
// validatedParams, and returns the finished WorkflowExecution record.
// validatedParams must already have passed through pkg/validation — Run does
// not validate.
func (e *Engine) Run(ctx stdcontext.Context, id workflow.RevisionID, validatedParams map[string]interface{}) (execution.WorkflowExecution, error) {
	rev, err := e.revisions.Get(ctx, id)
	if err != nil {
		return execution.WorkflowExecution{}, err
	}

	if e.sink != nil {
		ctx = workflow.WithLogSink(ctx, e.sink)
	}

	startedAt := domain.Now()
	exec := execution.WorkflowExecution{
		ExecutionID:     domain.NewExecutionID(),
		RevisionNS:      id.Namespace,
		RevisionWFID:    id.ID,
		RevisionVersion: id.Version,
		InputParameters: validatedParams,
		Status:          execution.StatusRunning,
		StartedAt:       startedAt,
		LastUpdatedAt:   startedAt,
	}
	if err := e.executions.CreateExecution(ctx, exec); err != nil {
		return execution.WorkflowExecution{}, err
	}
	e.publish(domain.EventExecutionStarted, exec.ExecutionID, map[string]interface{}{
		"executionId": exec.ExecutionID.String(),
		"status":      string(exec.Status),
	})

	runner := &stepExecutor{store: e.executions, executionID: exec.ExecutionID, bus: e.bus}
	execCtx := execution.NewContext(validatedParams)
	status, _, runErr := runner.ExecuteSequence(ctx, rev.Steps, execCtx)

	finalStatus := execution.StatusCompleted
	errMsg := ""
	switch {
	case status == execution.StepFailed && runErr != nil:
		finalStatus = execution.StatusFailed
		errMsg = runErr.Error()
	case status == execution.StepFailed:
		finalStatus = execution.StatusFailed
		errMsg = "one or more steps failed"
	}

	if err := e.executions.UpdateExecutionStatus(ctx, exec.ExecutionID, finalStatus, errMsg); err != nil {
		return execution.WorkflowExecution{}, err
	}

	completedAt := domain.Now()
	exec.Status = finalStatus
	exec.ErrorMessage = errMsg
	exec.CompletedAt = completedAt
	exec.LastUpdatedAt = completedAt

	eventType := domain.EventExecutionCompleted
	if finalStatus == execution.StatusFailed {
		eventType = domain.EventExecutionFailed
	}
	e.publish(eventType, exec.ExecutionID, map[string]interface{}{
		"executionId":  exec.ExecutionID.String(),
		"status":       string(finalStatus),
		"errorMessage": errMsg,
	})
	return exec, nil
}

func (e *Engine) publish(eventType domain.EventType, executionID domain.NanoID, data map[string]interface{}) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(domain.NewEvent(eventType, executionID.String(), data))
}
