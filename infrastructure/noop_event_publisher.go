package infrastructure

import (
	"context"

	"gambler/settlement/domain/events"
)

// NoopEventPublisher publishes nothing to a bus. Local handlers still run so
// WebSocket pushes work with EVENT_BUS=none.
type NoopEventPublisher struct {
	*localHandlers
}

// NewNoopEventPublisher creates a new no-op event publisher
func NewNoopEventPublisher() *NoopEventPublisher {
	return &NoopEventPublisher{localHandlers: newLocalHandlers()}
}

// Publish only invokes local handlers
func (n *NoopEventPublisher) Publish(event events.Event) error {
	n.dispatch(context.Background(), event)
	return nil
}
