// Event bridge — wires the domain event bus into the WebSocket hub so that
// every execution checkpoint and terminal status change fans out to the
// clients streaming that execution.
package api

import (
	"github.com/flowkeep/flowkeep/pkg/domain"
	"github.com/flowkeep/flowkeep/pkg/logger"
)

// EventBridge connects the domain event bus to the WebSocket hub for live
// execution updates.
type EventBridge struct {
	bus domain.EventBus
	hub *WSHub
}

// NewEventBridge creates a bridge that forwards execution events to
// WebSocket clients.
func NewEventBridge(bus domain.EventBus, hub *WSHub) *EventBridge {
	return &EventBridge{bus: bus, hub: hub}
}

// Run subscribes the bridge to the execution lifecycle events. Handlers run
// synchronously on the publisher's goroutine and only enqueue onto the
// hub's buffered channel, so a slow WebSocket client never stalls the
// engine's checkpoint loop.
func (eb *EventBridge) Run() {
	if eb.bus == nil {
		return
	}
	for _, eventType := range []domain.EventType{
		domain.EventExecutionStarted,
		domain.EventExecutionStepDone,
		domain.EventExecutionCompleted,
		domain.EventExecutionFailed,
	} {
		eb.bus.Subscribe(eventType, eb.forward)
	}
	logger.InfoC(logger.CategoryEventBus, "event bridge started")
}

func (eb *EventBridge) forward(event domain.Event) {
	eb.hub.Broadcast(event.AggregateID(), string(event.EventType()), event.Payload())
}
