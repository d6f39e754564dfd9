package engine

import (
	stdcontext "context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/flowkeep/flowkeep/pkg/domain"
	"github.com/flowkeep/flowkeep/pkg/domain/execution"
	"github.com/flowkeep/flowkeep/pkg/domain/workflow"
)

// ---------------------------------------------------------------------------
// in-memory fakes
// ---------------------------------------------------------------------------

type fakeRevisionStore struct {
	revisions map[workflow.RevisionID]workflow.Revision
}

func (f *fakeRevisionStore) Get(_ stdcontext.Context, id workflow.RevisionID) (workflow.Revision, error) {
	rev, ok := f.revisions[id]
	if !ok {
		return workflow.Revision{}, domain.NewNotFound("revision not found")
	}
	return rev, nil
}

func (f *fakeRevisionStore) SaveFirst(stdcontext.Context, workflow.WithSource) (workflow.WithSource, error) {
	panic("not used")
}
func (f *fakeRevisionStore) SaveNext(stdcontext.Context, string, string, workflow.WithSource) (workflow.WithSource, error) {
	panic("not used")
}
func (f *fakeRevisionStore) UpdateInactive(stdcontext.Context, workflow.WithSource) (workflow.WithSource, error) {
	panic("not used")
}
func (f *fakeRevisionStore) SetActive(stdcontext.Context, workflow.RevisionID, domain.Timestamp, bool) (workflow.WithSource, error) {
	panic("not used")
}
func (f *fakeRevisionStore) GetWithSource(stdcontext.Context, workflow.RevisionID) (workflow.WithSource, error) {
	panic("not used")
}
func (f *fakeRevisionStore) ListByWorkflow(stdcontext.Context, string, string, *bool) ([]workflow.Revision, error) {
	panic("not used")
}
func (f *fakeRevisionStore) DeleteRevision(stdcontext.Context, workflow.RevisionID) error {
	panic("not used")
}
func (f *fakeRevisionStore) DeleteWorkflow(stdcontext.Context, string, string) error {
	panic("not used")
}
func (f *fakeRevisionStore) ListWorkflows(stdcontext.Context, string) ([]workflow.ID, error) {
	panic("not used")
}

type fakeExecutionStore struct {
	mu         sync.Mutex
	executions map[domain.NanoID]execution.WorkflowExecution
	results    map[domain.NanoID][]execution.StepResult
}

func newFakeExecutionStore() *fakeExecutionStore {
	return &fakeExecutionStore{
		executions: map[domain.NanoID]execution.WorkflowExecution{},
		results:    map[domain.NanoID][]execution.StepResult{},
	}
}

func (f *fakeExecutionStore) CreateExecution(_ stdcontext.Context, exec execution.WorkflowExecution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executions[exec.ExecutionID] = exec
	return nil
}

func (f *fakeExecutionStore) UpdateExecutionStatus(_ stdcontext.Context, id domain.NanoID, status execution.Status, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	exec, ok := f.executions[id]
	if !ok {
		return domain.NewNotFound("execution not found")
	}
	exec.Status = status
	exec.ErrorMessage = errorMessage
	now := domain.Now()
	exec.LastUpdatedAt = now
	if status.IsTerminal() {
		exec.CompletedAt = now
	}
	f.executions[id] = exec
	return nil
}

func (f *fakeExecutionStore) FindByID(_ stdcontext.Context, id domain.NanoID) (execution.WorkflowExecution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	exec, ok := f.executions[id]
	if !ok {
		return execution.WorkflowExecution{}, domain.NewNotFound("execution not found")
	}
	return exec, nil
}

func (f *fakeExecutionStore) SaveStepResult(_ stdcontext.Context, result execution.StepResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[result.ExecutionID] = append(f.results[result.ExecutionID], result)
	return nil
}

func (f *fakeExecutionStore) FindStepResultsByExecutionID(_ stdcontext.Context, id domain.NanoID) ([]execution.StepResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]execution.StepResult(nil), f.results[id]...), nil
}

func (f *fakeExecutionStore) FindByStatus(_ stdcontext.Context, status execution.Status) ([]execution.WorkflowExecution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []execution.WorkflowExecution
	for _, exec := range f.executions {
		if exec.Status == status {
			out = append(out, exec)
		}
	}
	return out, nil
}

func (f *fakeExecutionStore) FindByWorkflow(stdcontext.Context, string, string, execution.WorkflowFilter) ([]execution.WorkflowExecution, error) {
	panic("not used")
}
func (f *fakeExecutionStore) CountByWorkflow(stdcontext.Context, string, string, execution.WorkflowFilter) (int, error) {
	panic("not used")
}

// failingStep always returns an error from Execute.
type failingStep struct{}

func (failingStep) Type() string                         { return "FailingTask" }
func (failingStep) Encode() map[string]interface{}       { return map[string]interface{}{} }
func (failingStep) Execute(stdcontext.Context, execution.Context, workflow.StepExecutor) (execution.StepStatus, execution.Context, error) {
	return execution.StepFailed, execution.Context{}, errors.New("boom")
}

// panickyStep panics from Execute.
type panickyStep struct{}

func (panickyStep) Type() string                   { return "PanickyTask" }
func (panickyStep) Encode() map[string]interface{} { return map[string]interface{}{} }
func (panickyStep) Execute(stdcontext.Context, execution.Context, workflow.StepExecutor) (execution.StepStatus, execution.Context, error) {
	panic("unexpected condition")
}

// memorySink collects LogTask output.
type memorySink struct {
	mu       sync.Mutex
	messages []string
}

func (s *memorySink) Log(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
}

// ---------------------------------------------------------------------------
// tests
// ---------------------------------------------------------------------------

func testRevisionID() workflow.RevisionID {
	return workflow.RevisionID{Namespace: "n", ID: "w", Version: 1}
}

func setup(steps []workflow.Step) (*Engine, *fakeExecutionStore, *memorySink) {
	id := testRevisionID()
	revisions := &fakeRevisionStore{revisions: map[workflow.RevisionID]workflow.Revision{
		id: {
			Namespace:   id.Namespace,
			ID:          id.ID,
			Version:     id.Version,
			Name:        "W",
			Description: "D",
			Steps:       steps,
		},
	}}
	executions := newFakeExecutionStore()
	sink := &memorySink{}
	return New(revisions, executions, sink, nil), executions, sink
}

func TestRunSingleLogTask(t *testing.T) {
	eng, store, sink := setup([]workflow.Step{&workflow.LogTask{Message: "hi"}})

	exec, err := eng.Run(stdcontext.Background(), testRevisionID(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if exec.Status != execution.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", exec.Status)
	}
	if len(exec.ExecutionID) != domain.DefaultNanoIDLength {
		t.Errorf("execution id %q is not a 21-char nanoid", exec.ExecutionID)
	}
	if exec.CompletedAt.IsZero() {
		t.Error("completedAt not set on terminal execution")
	}

	results, _ := store.FindStepResultsByExecutionID(stdcontext.Background(), exec.ExecutionID)
	if len(results) != 1 {
		t.Fatalf("expected 1 step result, got %d", len(results))
	}
	r := results[0]
	if r.StepIndex != 0 || r.StepType != "LogTask" || r.Status != execution.StepCompleted {
		t.Errorf("unexpected step result %+v", r)
	}
	if r.CompletedAt.Before(r.StartedAt.Time) {
		t.Error("completedAt before startedAt")
	}

	if len(sink.messages) != 1 || sink.messages[0] != "hi" {
		t.Errorf("sink messages = %v", sink.messages)
	}
}

func TestRunFailFastSequence(t *testing.T) {
	eng, store, sink := setup([]workflow.Step{
		&workflow.LogTask{Message: "good"},
		failingStep{},
		&workflow.LogTask{Message: "never"},
	})

	exec, err := eng.Run(stdcontext.Background(), testRevisionID(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if exec.Status != execution.StatusFailed {
		t.Errorf("status = %s, want FAILED", exec.Status)
	}
	if exec.ErrorMessage == "" {
		t.Error("errorMessage must be set on FAILED execution")
	}

	results, _ := store.FindStepResultsByExecutionID(stdcontext.Background(), exec.ExecutionID)
	if len(results) != 2 {
		t.Fatalf("expected exactly 2 step results, got %d", len(results))
	}
	if results[0].StepIndex != 0 || results[0].Status != execution.StepCompleted {
		t.Errorf("step 0: %+v", results[0])
	}
	if results[1].StepIndex != 1 || results[1].Status != execution.StepFailed {
		t.Errorf("step 1: %+v", results[1])
	}
	if results[1].ErrorDetails == nil || results[1].ErrorDetails.ErrorType == "" {
		t.Error("failed step must carry errorDetails.errorType")
	}

	for _, msg := range sink.messages {
		if msg == "never" {
			t.Error("step after failure must not run")
		}
	}
}

func TestRunPanicIsDowngradedToFailedStep(t *testing.T) {
	eng, store, _ := setup([]workflow.Step{panickyStep{}})

	exec, err := eng.Run(stdcontext.Background(), testRevisionID(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("Run must not propagate step panics: %v", err)
	}
	if exec.Status != execution.StatusFailed {
		t.Errorf("status = %s, want FAILED", exec.Status)
	}

	results, _ := store.FindStepResultsByExecutionID(stdcontext.Background(), exec.ExecutionID)
	if len(results) != 1 {
		t.Fatalf("expected 1 step result, got %d", len(results))
	}
	details := results[0].ErrorDetails
	if details == nil || details.ErrorType != "panic" || details.StackTrace == "" {
		t.Errorf("panic details missing: %+v", details)
	}
}

func TestRunIfBranching(t *testing.T) {
	steps := []workflow.Step{
		&workflow.If{
			Condition: "${deploy}",
			IfTrue:    &workflow.LogTask{Message: "deploying"},
			IfFalse:   &workflow.LogTask{Message: "skipping"},
		},
	}

	tests := []struct {
		name   string
		params map[string]interface{}
		want   string
	}{
		{name: "true branch", params: map[string]interface{}{"deploy": "true"}, want: "deploying"},
		{name: "false branch", params: map[string]interface{}{"deploy": "false"}, want: "skipping"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, store, sink := setup(steps)
			exec, err := eng.Run(stdcontext.Background(), testRevisionID(), tt.params)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if exec.Status != execution.StatusCompleted {
				t.Errorf("status = %s", exec.Status)
			}
			if len(sink.messages) != 1 || sink.messages[0] != tt.want {
				t.Errorf("sink = %v, want [%s]", sink.messages, tt.want)
			}
			// Both the If composite and the chosen branch are checkpointed.
			results, _ := store.FindStepResultsByExecutionID(stdcontext.Background(), exec.ExecutionID)
			if len(results) != 2 {
				t.Errorf("expected 2 step results (If + branch), got %d", len(results))
			}
		})
	}
}

func TestRunIfWithoutElseCompletes(t *testing.T) {
	eng, store, sink := setup([]workflow.Step{
		&workflow.If{
			Condition: "${missing}",
			IfTrue:    &workflow.LogTask{Message: "taken"},
		},
	})

	exec, err := eng.Run(stdcontext.Background(), testRevisionID(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if exec.Status != execution.StatusCompleted {
		t.Errorf("status = %s", exec.Status)
	}
	if len(sink.messages) != 0 {
		t.Errorf("no branch should run, sink = %v", sink.messages)
	}
	results, _ := store.FindStepResultsByExecutionID(stdcontext.Background(), exec.ExecutionID)
	if len(results) != 1 {
		t.Errorf("only the If itself should be checkpointed, got %d results", len(results))
	}
}

func TestRunCheckpointDensity(t *testing.T) {
	eng, store, _ := setup([]workflow.Step{
		&workflow.Sequence{Steps: []workflow.Step{
			&workflow.LogTask{Message: "a"},
			&workflow.LogTask{Message: "b"},
		}},
		&workflow.LogTask{Message: "c"},
	})

	exec, err := eng.Run(stdcontext.Background(), testRevisionID(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	results, _ := store.FindStepResultsByExecutionID(stdcontext.Background(), exec.ExecutionID)

	seen := map[int]bool{}
	for _, r := range results {
		if seen[r.StepIndex] {
			t.Errorf("duplicate stepIndex %d", r.StepIndex)
		}
		seen[r.StepIndex] = true
	}
	for i := 0; i < len(results); i++ {
		if !seen[i] {
			t.Errorf("stepIndex set has a gap at %d (got %d results)", i, len(results))
		}
	}
}

func TestRunUnknownRevision(t *testing.T) {
	eng, _, _ := setup([]workflow.Step{&workflow.LogTask{Message: "hi"}})

	_, err := eng.Run(stdcontext.Background(), workflow.RevisionID{Namespace: "n", ID: "w", Version: 99}, nil)
	kind, ok := domain.KindOf(err)
	if !ok || kind != domain.KindNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestSweepOrphans(t *testing.T) {
	store := newFakeExecutionStore()
	ctx := stdcontext.Background()

	for i, status := range []execution.Status{execution.StatusRunning, execution.StatusRunning, execution.StatusCompleted} {
		store.CreateExecution(ctx, execution.WorkflowExecution{
			ExecutionID: domain.NanoID(fmt.Sprintf("exec-%d------------000", i)),
			Status:      status,
			StartedAt:   domain.Now(),
		})
	}

	swept, err := SweepOrphans(ctx, store)
	if err != nil {
		t.Fatalf("SweepOrphans: %v", err)
	}
	if swept != 2 {
		t.Errorf("swept = %d, want 2", swept)
	}

	remaining, _ := store.FindByStatus(ctx, execution.StatusRunning)
	if len(remaining) != 0 {
		t.Errorf("%d executions still RUNNING after sweep", len(remaining))
	}
	failed, _ := store.FindByStatus(ctx, execution.StatusFailed)
	for _, exec := range failed {
		if exec.ErrorMessage != orphanFailureMessage {
			t.Errorf("orphan message = %q", exec.ErrorMessage)
		}
	}
}
