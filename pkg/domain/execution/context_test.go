package execution

import "testing"

func TestContextWithStepOutputDoesNotMutate(t *testing.T) {
	base := NewContext(map[string]interface{}{"in": 1})

	derived := base.WithStepOutput("step-a", "out-a")
	further := derived.WithStepOutput("step-b", "out-b")

	if _, ok := base.StepOutput("step-a"); ok {
		t.Error("base context gained a step output")
	}
	if _, ok := derived.StepOutput("step-b"); ok {
		t.Error("derived context gained a later step output")
	}

	if v, ok := further.StepOutput("step-a"); !ok || v != "out-a" {
		t.Errorf("step-a = %v, %v", v, ok)
	}
	if v, ok := further.StepOutput("step-b"); !ok || v != "out-b" {
		t.Errorf("step-b = %v, %v", v, ok)
	}
	if v, ok := further.InputParameter("in"); !ok || v != 1 {
		t.Errorf("input parameter lost: %v, %v", v, ok)
	}
}

func TestContextWithStepOutputReplaces(t *testing.T) {
	ctx := NewContext(nil).WithStepOutput("s", "old").WithStepOutput("s", "new")
	if v, _ := ctx.StepOutput("s"); v != "new" {
		t.Errorf("step output = %v, want new", v)
	}
}

func TestStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, false},
		{StatusRunning, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusCancelled, true},
	}
	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.want {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}
