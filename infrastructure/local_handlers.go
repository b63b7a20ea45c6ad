package infrastructure

import (
	"context"
	"sync"

	"gambler/settlement/domain/events"

	log "github.com/sirupsen/logrus"
)

// LocalHandler handles an event inside the publishing process
type LocalHandler func(context.Context, events.Event) error

// localHandlers fans events out to in-process subscribers such as the WebSocket hub
type localHandlers struct {
	mu       sync.RWMutex
	byType   map[events.EventType][]LocalHandler
	wildcard []LocalHandler
}

func newLocalHandlers() *localHandlers {
	return &localHandlers{byType: make(map[events.EventType][]LocalHandler)}
}

// RegisterLocalHandler registers a handler invoked for every event of eventType
func (h *localHandlers) RegisterLocalHandler(eventType events.EventType, handler LocalHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byType[eventType] = append(h.byType[eventType], handler)
	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(h.byType[eventType]),
	}).Info("Registered local event handler")
}

// RegisterLocalHandlerForAll registers a handler invoked for every event
func (h *localHandlers) RegisterLocalHandlerForAll(handler LocalHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.wildcard = append(h.wildcard, handler)
}

// dispatch runs the handlers for event. Handler errors are logged and never stop the publish.
func (h *localHandlers) dispatch(ctx context.Context, event events.Event) {
	h.mu.RLock()
	handlers := append(append([]LocalHandler(nil), h.byType[event.Type()]...), h.wildcard...)
	h.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			log.WithFields(log.Fields{
				"eventType": event.Type(),
				"error":     err,
			}).Error("Local event handler failed")
		}
	}
}
