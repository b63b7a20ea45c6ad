package infrastructure

import (
	"encoding/json"
	"fmt"

	"gambler/settlement/domain/events"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// sourceService identifies this process in every envelope it emits
const sourceService = "settlement-engine"

// headerEventType carries the event type next to the payload on both buses
const headerEventType = "eventType"

// EventEnvelope wraps a domain event for the wire
type EventEnvelope struct {
	EventID       string
	EventType     string
	Timestamp     *timestamppb.Timestamp
	SourceService string
	Payload       json.RawMessage
}

// envelopeWire is the JSON shape of an envelope. The timestamp uses the
// protobuf JSON mapping (RFC 3339, UTC, normalized nanos).
type envelopeWire struct {
	EventID       string          `json:"eventId"`
	EventType     string          `json:"eventType"`
	Timestamp     json.RawMessage `json:"timestamp,omitempty"`
	SourceService string          `json:"sourceService"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEventEnvelope serializes event into a fresh envelope
func NewEventEnvelope(event events.Event) (*EventEnvelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	return &EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     string(event.Type()),
		Timestamp:     timestamppb.Now(),
		SourceService: sourceService,
		Payload:       payload,
	}, nil
}

// Marshal encodes the envelope as JSON
func (e *EventEnvelope) Marshal() ([]byte, error) {
	wire := envelopeWire{
		EventID:       e.EventID,
		EventType:     e.EventType,
		SourceService: e.SourceService,
		Payload:       e.Payload,
	}
	if e.Timestamp != nil {
		if err := e.Timestamp.CheckValid(); err != nil {
			return nil, fmt.Errorf("invalid envelope timestamp: %w", err)
		}
		ts, err := protojson.Marshal(e.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal envelope timestamp: %w", err)
		}
		wire.Timestamp = ts
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event envelope: %w", err)
	}
	return data, nil
}

// UnmarshalEventEnvelope decodes an envelope received from the bus
func UnmarshalEventEnvelope(data []byte) (*EventEnvelope, error) {
	var wire envelopeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}

	envelope := &EventEnvelope{
		EventID:       wire.EventID,
		EventType:     wire.EventType,
		SourceService: wire.SourceService,
		Payload:       wire.Payload,
	}
	if len(wire.Timestamp) > 0 && string(wire.Timestamp) != "null" {
		envelope.Timestamp = &timestamppb.Timestamp{}
		if err := protojson.Unmarshal(wire.Timestamp, envelope.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal envelope timestamp: %w", err)
		}
	}
	return envelope, nil
}
