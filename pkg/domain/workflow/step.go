package workflow

import (
	stdcontext "context"
	"sync"

	"github.com/flowkeep/flowkeep/pkg/domain/execution"
)

// Step is the closed-at-compile-time sum type extended at runtime through
// the step-type registry. Composites (Sequence, If) orchestrate children;
// leaves (LogTask, extensions) perform work. Execute never runs a child
// directly — it always calls back into the StepExecutor capability so every
// step, nested or not, is checkpointed by the engine.
type Step interface {
	// Type returns the wire discriminator for this step (e.g. "Sequence").
	Type() string
	// Encode returns the step's variant-specific fields for serialization,
	// not including the "type" discriminator itself.
	Encode() map[string]interface{}
	// Execute runs the step against execCtx, delegating any child steps to
	// exec so they are individually checkpointed.
	Execute(ctx stdcontext.Context, execCtx execution.Context, exec StepExecutor) (execution.StepStatus, execution.Context, error)
}

// StepExecutor is the narrow capability interface steps depend on instead of
// the concrete engine, breaking the model → engine dependency cycle. The
// engine (pkg/engine) is the only implementation; it threads checkpointing
// (persisting an ExecutionStepResult per step) through both methods.
type StepExecutor interface {
	// ExecuteAndPersist runs one step, checkpoints its result, and returns
	// the resulting status and context.
	ExecuteAndPersist(ctx stdcontext.Context, step Step, execCtx execution.Context) (execution.StepStatus, execution.Context, error)
	// ExecuteSequence runs steps in order via ExecuteAndPersist, stopping at
	// the first FAILED step.
	ExecuteSequence(ctx stdcontext.Context, steps []Step, execCtx execution.Context) (execution.StepStatus, execution.Context, error)
}

// StepDecoder builds a Step from its decoded variant-specific fields (the
// "type" discriminator has already been stripped by the caller).
type StepDecoder func(fields map[string]interface{}) (Step, error)

// ---------------------------------------------------------------------------
// Step-type registry — process-wide, write-once-at-init, read-mostly
// ---------------------------------------------------------------------------

var (
	stepTypeMu       sync.RWMutex
	stepTypeRegistry = map[string]StepDecoder{}
)

// RegisterStepType adds a step type to the global registry. Registration is
// idempotent: the first registration of a given type name wins, and later
// registrations of the same name are rejected (the caller is expected to log
// the rejection — see pkg/logger usage in cmd/flowkeepd).
func RegisterStepType(typeName string, decoder StepDecoder) (registered bool) {
	stepTypeMu.Lock()
	defer stepTypeMu.Unlock()
	if _, exists := stepTypeRegistry[typeName]; exists {
		return false
	}
	stepTypeRegistry[typeName] = decoder
	return true
}

// LookupStepType resolves a type discriminator to its decoder, if registered.
func LookupStepType(typeName string) (StepDecoder, bool) {
	stepTypeMu.RLock()
	defer stepTypeMu.RUnlock()
	d, ok := stepTypeRegistry[typeName]
	return d, ok
}

// RegisteredStepTypes returns the currently registered type names, for
// diagnostics and the admin CLI.
func RegisteredStepTypes() []string {
	stepTypeMu.RLock()
	defer stepTypeMu.RUnlock()
	names := make([]string, 0, len(stepTypeRegistry))
	for name := range stepTypeRegistry {
		names = append(names, name)
	}
	return names
}

func init() {
	RegisterStepType("Sequence", decodeSequence)
	RegisterStepType("If", decodeIf)
	RegisterStepType("LogTask", decodeLogTask)
}
