// Package execution defines the execution-side bounded context: the
// immutable ExecutionContext threaded through a run, the WorkflowExecution
// and ExecutionStepResult records the engine persists, and the StepStatus
// vocabulary shared by both.
package execution

// Context is the immutable carrier of input parameters and step outputs
// threaded through a workflow run. New contexts are produced by
// WithStepOutput — the struct itself is never mutated in place.
type Context struct {
	inputParameters map[string]interface{}
	stepOutputs     map[string]interface{}
}

// NewContext builds the initial ExecutionContext for a run from validated
// input parameters. stepOutputs starts empty.
func NewContext(inputParameters map[string]interface{}) Context {
	return Context{
		inputParameters: inputParameters,
		stepOutputs:     map[string]interface{}{},
	}
}

// InputParameter looks up a validated input parameter by name.
func (c Context) InputParameter(name string) (interface{}, bool) {
	v, ok := c.inputParameters[name]
	return v, ok
}

// InputParameters returns a read-only view of all input parameters.
func (c Context) InputParameters() map[string]interface{} {
	return c.inputParameters
}

// StepOutput looks up a previously recorded step output by step ID.
func (c Context) StepOutput(stepID string) (interface{}, bool) {
	v, ok := c.stepOutputs[stepID]
	return v, ok
}

// WithStepOutput returns a new Context with one additional (or replaced)
// step output. It never mutates the receiver: the step-output map is
// copied.
func (c Context) WithStepOutput(stepID string, value interface{}) Context {
	next := Context{
		inputParameters: c.inputParameters,
		stepOutputs:     make(map[string]interface{}, len(c.stepOutputs)+1),
	}
	for k, v := range c.stepOutputs {
		next.stepOutputs[k] = v
	}
	next.stepOutputs[stepID] = value
	return next
}
