// Package engine implements the execution engine: given a revision and
// validated inputs, it walks the step tree with a checkpointed StepExecutor,
// persisting one ExecutionStepResult per step immediately after it runs.
package engine

import (
	stdcontext "context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/flowkeep/flowkeep/pkg/domain"
	"github.com/flowkeep/flowkeep/pkg/domain/execution"
	"github.com/flowkeep/flowkeep/pkg/domain/workflow"
)

// executionFailure is the guard's uniform representation of a step's
// failure, whether it returned an error or panicked. stack is populated
// only for the panic case.
type executionFailure struct {
	errorType string
	message   string
	stack     string
}

func (e *executionFailure) Error() string { return e.message }

// stepExecutor is the concrete StepExecutor every Step.Execute call
// receives. It owns the monotonically increasing stepIndex for one
// execution.
type stepExecutor struct {
	store       execution.Store
	executionID domain.NanoID
	bus         domain.EventBus

	mu        sync.Mutex
	stepIndex int
}

func (s *stepExecutor) nextIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.stepIndex
	s.stepIndex++
	return idx
}

// ExecuteAndPersist runs one step inside the panic/error guard, then
// checkpoints its result independently of the execution row's own status.
func (s *stepExecutor) ExecuteAndPersist(ctx stdcontext.Context, step workflow.Step, execCtx execution.Context) (execution.StepStatus, execution.Context, error) {
	idx := s.nextIndex()
	stepID := fmt.Sprintf("step-%d", idx)
	startedAt := domain.Now()

	status, nextCtx, failure := s.guard(ctx, step, execCtx)

	result := execution.StepResult{
		ResultID:    domain.NewResultID(),
		ExecutionID: s.executionID,
		StepIndex:   idx,
		StepID:      stepID,
		StepType:    step.Type(),
		Status:      status,
		StartedAt:   startedAt,
		CompletedAt: domain.Now(),
	}

	var resultErr error
	if failure != nil {
		result.ErrorMessage = failure.message
		result.ErrorDetails = &execution.ErrorInfo{ErrorType: failure.errorType, StackTrace: failure.stack}
		resultErr = failure
	}

	if err := s.store.SaveStepResult(ctx, result); err != nil {
		return status, nextCtx, err
	}
	if s.bus != nil {
		s.bus.Publish(domain.NewEvent(domain.EventExecutionStepDone, s.executionID.String(), map[string]interface{}{
			"executionId": s.executionID.String(),
			"stepIndex":   result.StepIndex,
			"stepId":      result.StepID,
			"stepType":    result.StepType,
			"status":      string(result.Status),
		}))
	}
	return status, nextCtx, resultErr
}

// ExecuteSequence runs steps in order, stopping at the first FAILED step.
// Steps after a failure are never executed and never appear in the trace.
func (s *stepExecutor) ExecuteSequence(ctx stdcontext.Context, steps []workflow.Step, execCtx execution.Context) (execution.StepStatus, execution.Context, error) {
	current := execCtx
	for _, step := range steps {
		status, next, err := s.ExecuteAndPersist(ctx, step, current)
		current = next
		if status == execution.StepFailed {
			return execution.StepFailed, current, err
		}
	}
	return execution.StepCompleted, current, nil
}

// guard converts both returned errors and panics from step.Execute into a
// FAILED status plus an *executionFailure. It never lets a step failure
// escape as a Go panic.
func (s *stepExecutor) guard(ctx stdcontext.Context, step workflow.Step, execCtx execution.Context) (status execution.StepStatus, nextCtx execution.Context, failure *executionFailure) {
	nextCtx = execCtx
	defer func() {
		if rec := recover(); rec != nil {
			status = execution.StepFailed
			nextCtx = execCtx
			failure = &executionFailure{
				errorType: "panic",
				message:   fmt.Sprintf("step %s panicked: %v", step.Type(), rec),
				stack:     string(debug.Stack()),
			}
		}
	}()

	result, next, err := step.Execute(ctx, execCtx, s)
	if err != nil {
		return execution.StepFailed, next, &executionFailure{
			errorType: fmt.Sprintf("%T", err),
			message:   err.Error(),
		}
	}
	return result, next, nil
}
