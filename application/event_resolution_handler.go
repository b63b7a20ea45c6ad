package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gambler/settlement/domain/errs"
	"gambler/settlement/domain/interfaces"
	"gambler/settlement/infrastructure"

	log "github.com/sirupsen/logrus"
)

// settleTimeout bounds one event settlement triggered from the bus
const settleTimeout = 30 * time.Second

// EventResultMessage reports the winning outcome of a real-world event
type EventResultMessage struct {
	EventID        string `json:"eventId"`
	WinningOutcome string `json:"winningOutcome"`
}

// EventResolutionHandler settles event bets when results arrive on the bus
type EventResolutionHandler struct {
	coordinator interfaces.SettlementCoordinator
}

// NewEventResolutionHandler creates a new event resolution handler
func NewEventResolutionHandler(coordinator interfaces.SettlementCoordinator) *EventResolutionHandler {
	return &EventResolutionHandler{coordinator: coordinator}
}

// RegisterEventResultSubscription subscribes the handler to the event results subject
func RegisterEventResultSubscription(subscriber MessageSubscriber, handler *EventResolutionHandler) error {
	return subscriber.Subscribe(infrastructure.SubjectEventResults, func(data []byte) error {
		ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
		defer cancel()
		return handler.HandleMessage(ctx, data)
	})
}

// HandleMessage decodes an event result and settles it. Malformed messages and
// conflicts are dropped; transient failures are returned so the bus redelivers.
func (h *EventResolutionHandler) HandleMessage(ctx context.Context, data []byte) error {
	msg, err := decodeEventResult(data)
	if err != nil {
		log.WithError(err).Warn("Dropping malformed event result message")
		return nil
	}

	resolved, err := h.coordinator.SettleEvent(ctx, msg.EventID, msg.WinningOutcome)
	if err != nil {
		if errs.IsTransient(err) {
			return err
		}
		log.WithFields(log.Fields{
			"eventId":        msg.EventID,
			"winningOutcome": msg.WinningOutcome,
			"resolved":       len(resolved),
			"error":          err,
		}).Error("Event settlement finished with errors")
		return nil
	}

	log.WithFields(log.Fields{
		"eventId":        msg.EventID,
		"winningOutcome": msg.WinningOutcome,
		"resolved":       len(resolved),
	}).Info("Settled event from result message")
	return nil
}

// decodeEventResult accepts a bare result or one wrapped in an event envelope
func decodeEventResult(data []byte) (*EventResultMessage, error) {
	var msg EventResultMessage
	if envelope, err := infrastructure.UnmarshalEventEnvelope(data); err == nil && len(envelope.Payload) > 0 {
		data = envelope.Payload
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode event result: %w", err)
	}

	msg.EventID = strings.TrimSpace(msg.EventID)
	msg.WinningOutcome = strings.TrimSpace(msg.WinningOutcome)
	if msg.EventID == "" || msg.WinningOutcome == "" {
		return nil, fmt.Errorf("event result requires eventId and winningOutcome")
	}
	return &msg, nil
}
