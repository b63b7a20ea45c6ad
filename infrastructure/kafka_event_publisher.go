package infrastructure

import (
	"context"
	"fmt"
	"time"

	"gambler/settlement/domain/events"
	"gambler/settlement/infrastructure/observability"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// kafkaWriter is the part of kafka.Writer the publisher needs
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventPublisher publishes domain events to a single Kafka topic.
// Messages are keyed by player so one player's events stay ordered.
type KafkaEventPublisher struct {
	*localHandlers
	writer kafkaWriter
}

// NewKafkaWriter creates a writer for the configured brokers and topic
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// NewKafkaEventPublisher creates a new Kafka event publisher
func NewKafkaEventPublisher(writer kafkaWriter) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		localHandlers: newLocalHandlers(),
		writer:        writer,
	}
}

// Publish runs local handlers then writes the event envelope to Kafka
func (p *KafkaEventPublisher) Publish(event events.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	p.dispatch(ctx, event)

	envelope, err := NewEventEnvelope(event)
	if err != nil {
		return err
	}
	data, err := envelope.Marshal()
	if err != nil {
		return err
	}

	var key []byte
	if scoped, ok := event.(events.PlayerScoped); ok {
		key = []byte(scoped.Player())
	}

	msg := kafka.Message{
		Key:   key,
		Value: data,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(event.Type())},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		observability.EventsPublished.WithLabelValues(string(event.Type()), observability.ResultError).Inc()
		return fmt.Errorf("failed to publish event to Kafka: %w", err)
	}
	observability.EventsPublished.WithLabelValues(string(event.Type()), observability.ResultOK).Inc()

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"eventId":   envelope.EventID,
	}).Debug("Successfully published event to Kafka")

	return nil
}

// Close flushes and closes the writer
func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}
