package infrastructure

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gambler/settlement/domain/events"
	"gambler/settlement/infrastructure/observability"

	log "github.com/sirupsen/logrus"
)

// publishTimeout bounds a single bus publish
const publishTimeout = 5 * time.Second

// natsPublisher is the part of NATSClient the event publisher needs
type natsPublisher interface {
	PublishEnvelope(ctx context.Context, subject string, envelope *EventEnvelope) error
	EnsureStream(streamName string, subjects []string) error
}

// NATSEventPublisher publishes domain events to NATS JetStream
type NATSEventPublisher struct {
	*localHandlers
	natsClient    natsPublisher
	subjectMapper *EventSubjectMapper
}

// NewNATSEventPublisher creates a new NATS event publisher
func NewNATSEventPublisher(natsClient natsPublisher, subjectMapper *EventSubjectMapper) *NATSEventPublisher {
	return &NATSEventPublisher{
		localHandlers: newLocalHandlers(),
		natsClient:    natsClient,
		subjectMapper: subjectMapper,
	}
}

// Publish runs local handlers then publishes the event to its subject
func (p *NATSEventPublisher) Publish(event events.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	p.dispatch(ctx, event)

	subject := p.subjectMapper.MapEventToSubject(event)

	envelope, err := NewEventEnvelope(event)
	if err != nil {
		return err
	}

	if err := p.natsClient.PublishEnvelope(ctx, subject, envelope); err != nil {
		observability.EventsPublished.WithLabelValues(string(event.Type()), observability.ResultError).Inc()
		// No stream bound to the subject yet; the event has no consumers
		if strings.Contains(err.Error(), "no response from stream") {
			return nil
		}
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}
	observability.EventsPublished.WithLabelValues(string(event.Type()), observability.ResultOK).Inc()

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"eventId":   envelope.EventID,
		"subject":   subject,
	}).Debug("Successfully published event to NATS")

	return nil
}

// EnsureDomainEventStream ensures the stream covering every published subject exists
func (p *NATSEventPublisher) EnsureDomainEventStream() error {
	subjects := append(p.subjectMapper.GetAllSubjects(), SubjectEventResults)
	return p.natsClient.EnsureStream(domainEventStream, subjects)
}
