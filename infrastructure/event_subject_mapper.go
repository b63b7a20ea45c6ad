package infrastructure

import (
	"fmt"

	"gambler/settlement/domain/events"
)

// Subject on which external systems report real-world event results
const SubjectEventResults = "settlement.events.results"

// EventSubjectMapper handles mapping between domain events and bus subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

var subjectsByType = map[events.EventType]string{
	events.EventTypeWagerPlaced:       "settlement.wagers.placed",
	events.EventTypeWagerFunded:       "settlement.wagers.funded",
	events.EventTypeWagerResolved:     "settlement.wagers.resolved",
	events.EventTypeWagerFailed:       "settlement.wagers.failed",
	events.EventTypeRoundEnded:        "settlement.rounds.ended",
	events.EventTypeReferralCredited:  "settlement.referrals.credited",
	events.EventTypeReferralWithdrawn: "settlement.referrals.withdrawn",
}

// MapEventToSubject converts a domain event to its corresponding subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	if subject, ok := subjectsByType[event.Type()]; ok {
		return subject
	}
	// Fallback for unknown event types
	return fmt.Sprintf("settlement.unknown.%s", event.Type())
}

// MapSubjectToEventType converts a subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	for eventType, s := range subjectsByType {
		if s == subject {
			return eventType
		}
	}
	return events.EventType(subject)
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		"settlement.wagers.placed",
		"settlement.wagers.funded",
		"settlement.wagers.resolved",
		"settlement.wagers.failed",
		"settlement.rounds.ended",
		"settlement.referrals.credited",
		"settlement.referrals.withdrawn",
	}
}
