package workflow

import (
	stdcontext "context"
	"fmt"

	"github.com/flowkeep/flowkeep/pkg/domain"
	"github.com/flowkeep/flowkeep/pkg/domain/execution"
)

// ---------------------------------------------------------------------------
// LogSink — where LogTask writes. The default sink, installed by
// cmd/flowkeepd, routes through pkg/logger; tests inject an in-memory sink
// via WithLogSink.
// ---------------------------------------------------------------------------

// LogSink receives messages emitted by LogTask steps.
type LogSink interface {
	Log(message string)
}

type logSinkContextKey struct{}

// WithLogSink attaches a LogSink to ctx for LogTask steps to write to.
func WithLogSink(ctx stdcontext.Context, sink LogSink) stdcontext.Context {
	return stdcontext.WithValue(ctx, logSinkContextKey{}, sink)
}

// noopLogSink is used when no sink has been attached to the context.
type noopLogSink struct{}

func (noopLogSink) Log(string) {}

func logSinkFromContext(ctx stdcontext.Context) LogSink {
	if sink, ok := ctx.Value(logSinkContextKey{}).(LogSink); ok && sink != nil {
		return sink
	}
	return noopLogSink{}
}

// ---------------------------------------------------------------------------
// Sequence — walks children via the executor, stopping on first FAILED
// ---------------------------------------------------------------------------

// Sequence orchestrates an ordered list of child steps.
type Sequence struct {
	Steps []Step
}

func (s *Sequence) Type() string { return "Sequence" }

func (s *Sequence) Encode() map[string]interface{} {
	encoded := make([]interface{}, len(s.Steps))
	for i, child := range s.Steps {
		m := child.Encode()
		m["type"] = child.Type()
		encoded[i] = m
	}
	return map[string]interface{}{"steps": encoded}
}

func (s *Sequence) Execute(ctx stdcontext.Context, execCtx execution.Context, exec StepExecutor) (execution.StepStatus, execution.Context, error) {
	return exec.ExecuteSequence(ctx, s.Steps, execCtx)
}

func decodeSequence(fields map[string]interface{}) (Step, error) {
	rawSteps, _ := fields["steps"].([]interface{})
	children := make([]Step, 0, len(rawSteps))
	for _, raw := range rawSteps {
		child, err := DecodeStep(raw)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return &Sequence{Steps: children}, nil
}

// ---------------------------------------------------------------------------
// If — evaluates a condition, runs the matching branch via the executor
// ---------------------------------------------------------------------------

// If evaluates Condition and executes IfTrue or IfFalse (if present).
type If struct {
	Condition string
	IfTrue    Step
	IfFalse   Step // nil if absent
}

func (s *If) Type() string { return "If" }

func (s *If) Encode() map[string]interface{} {
	ifTrue := s.IfTrue.Encode()
	ifTrue["type"] = s.IfTrue.Type()
	out := map[string]interface{}{
		"condition": s.Condition,
		"ifTrue":    ifTrue,
	}
	if s.IfFalse != nil {
		ifFalse := s.IfFalse.Encode()
		ifFalse["type"] = s.IfFalse.Type()
		out["ifFalse"] = ifFalse
	}
	return out
}

func (s *If) Execute(ctx stdcontext.Context, execCtx execution.Context, exec StepExecutor) (execution.StepStatus, execution.Context, error) {
	if EvaluateCondition(s.Condition, execCtx) {
		return exec.ExecuteAndPersist(ctx, s.IfTrue, execCtx)
	}
	if s.IfFalse != nil {
		return exec.ExecuteAndPersist(ctx, s.IfFalse, execCtx)
	}
	return execution.StepCompleted, execCtx, nil
}

func decodeIf(fields map[string]interface{}) (Step, error) {
	condition, _ := fields["condition"].(string)
	rawTrue, ok := fields["ifTrue"]
	if !ok {
		return nil, domain.NewInvalidRevision("If step requires an ifTrue branch")
	}
	ifTrue, err := DecodeStep(rawTrue)
	if err != nil {
		return nil, err
	}
	var ifFalse Step
	if rawFalse, ok := fields["ifFalse"]; ok && rawFalse != nil {
		ifFalse, err = DecodeStep(rawFalse)
		if err != nil {
			return nil, err
		}
	}
	return &If{Condition: condition, IfTrue: ifTrue, IfFalse: ifFalse}, nil
}

// ---------------------------------------------------------------------------
// LogTask — leaf step that emits a message to the configured sink
// ---------------------------------------------------------------------------

// LogTask emits Message to the sink attached to ctx and always completes.
type LogTask struct {
	Message string
}

func (s *LogTask) Type() string { return "LogTask" }

func (s *LogTask) Encode() map[string]interface{} {
	return map[string]interface{}{"message": s.Message}
}

func (s *LogTask) Execute(ctx stdcontext.Context, execCtx execution.Context, _ StepExecutor) (execution.StepStatus, execution.Context, error) {
	logSinkFromContext(ctx).Log(s.Message)
	return execution.StepCompleted, execCtx, nil
}

func decodeLogTask(fields map[string]interface{}) (Step, error) {
	message, ok := fields["message"].(string)
	if !ok {
		return nil, domain.NewInvalidRevision("LogTask step requires a string message")
	}
	return &LogTask{Message: message}, nil
}

// ---------------------------------------------------------------------------
// DecodeStep — polymorphic decode entry point used by both Sequence/If and
// the document parser (pkg/parser)
// ---------------------------------------------------------------------------

// DecodeStep decodes one step document (a map with a "type" discriminator)
// into a Step via the step-type registry.
func DecodeStep(raw interface{}) (Step, error) {
	m, ok := toStringMap(raw)
	if !ok {
		return nil, domain.NewParseError("step must be a mapping", nil)
	}
	typeName, ok := m["type"].(string)
	if !ok || typeName == "" {
		return nil, domain.NewParseError("step is missing a \"type\" discriminator", nil)
	}
	decoder, ok := LookupStepType(typeName)
	if !ok {
		return nil, domain.NewParseError(fmt.Sprintf("unknown step type %q", typeName), nil)
	}
	fields := make(map[string]interface{}, len(m))
	for k, v := range m {
		if k == "type" {
			continue
		}
		fields[k] = v
	}
	return decoder(fields)
}

// toStringMap normalizes the map shapes both yaml.v3 (map[string]interface{}
// for mapping nodes decoded into interface{}) and encoding/json
// (map[string]interface{}) produce, plus yaml.v3's occasional
// map[interface{}]interface{} when decoding through an untyped interface{}.
func toStringMap(raw interface{}) (map[string]interface{}, bool) {
	switch m := raw.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, v := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = v
		}
		return out, true
	default:
		return nil, false
	}
}
