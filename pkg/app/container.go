// Package app provides application services that orchestrate domain
// operations. These services sit between the API layer and the domain
// layer, coordinating use cases across bounded contexts.
package app

import (
	"github.com/flowkeep/flowkeep/pkg/domain"
	"github.com/flowkeep/flowkeep/pkg/domain/execution"
	workflowdomain "github.com/flowkeep/flowkeep/pkg/domain/workflow"
	"github.com/flowkeep/flowkeep/pkg/engine"
)

// ---------------------------------------------------------------------------
// Application container — dependency injection root
// ---------------------------------------------------------------------------

// Container holds all application services and their dependencies.
// It acts as a composition root for dependency injection.
type Container struct {
	// Domain event bus
	EventBus domain.EventBus

	// Stores
	Revisions  workflowdomain.RevisionStore
	Executions execution.Store

	// Application services
	Workflows *WorkflowService
	Runs      *ExecutionService
}

// NewContainer creates a fully wired application container. sink receives
// LogTask output; pass nil to discard it.
func NewContainer(
	eventBus domain.EventBus,
	revisions workflowdomain.RevisionStore,
	executions execution.Store,
	sink workflowdomain.LogSink,
) *Container {
	eng := engine.New(revisions, executions, sink, eventBus)
	return &Container{
		EventBus:   eventBus,
		Revisions:  revisions,
		Executions: executions,
		Workflows:  NewWorkflowService(revisions, eventBus),
		Runs:       NewExecutionService(revisions, executions, eng),
	}
}
