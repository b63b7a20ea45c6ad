package infrastructure

import (
	"context"
	"errors"
	"sync"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// kafkaReader is the part of kafka.Reader the subscriber needs
type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSubscriber consumes topics named after bus subjects with one consumer group.
// Offsets are committed only after the handler succeeds.
type KafkaSubscriber struct {
	ctx       context.Context
	newReader func(topic string) kafkaReader
	mu        sync.Mutex
	readers   []kafkaReader
	wg        sync.WaitGroup
}

// NewKafkaSubscriber creates a subscriber whose consumers run until ctx is done
func NewKafkaSubscriber(ctx context.Context, brokers []string, groupID string) *KafkaSubscriber {
	return &KafkaSubscriber{
		ctx: ctx,
		newReader: func(topic string) kafkaReader {
			return kafka.NewReader(kafka.ReaderConfig{
				Brokers:  brokers,
				GroupID:  groupID,
				Topic:    topic,
				MinBytes: 1,
				MaxBytes: 10e6,
			})
		},
	}
}

// Subscribe starts a consumer for subject
func (s *KafkaSubscriber) Subscribe(subject string, handler func([]byte) error) error {
	reader := s.newReader(subject)

	s.mu.Lock()
	s.readers = append(s.readers, reader)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.consume(subject, reader, handler)
	}()

	log.WithField("topic", subject).Info("Subscribed to Kafka topic")
	return nil
}

func (s *KafkaSubscriber) consume(topic string, reader kafkaReader, handler func([]byte) error) {
	for {
		msg, err := reader.FetchMessage(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			log.WithFields(log.Fields{
				"topic": topic,
				"error": err,
			}).Error("Failed to fetch Kafka message")
			return
		}

		if err := handler(msg.Value); err != nil {
			// uncommitted messages are redelivered after a rebalance or restart
			log.WithFields(log.Fields{
				"topic":  topic,
				"offset": msg.Offset,
				"error":  err,
			}).Error("Failed to process message")
			continue
		}

		if err := reader.CommitMessages(s.ctx, msg); err != nil {
			log.WithError(err).Error("Failed to commit Kafka offset")
		}
	}
}

// Close stops every consumer and waits for them to exit
func (s *KafkaSubscriber) Close() error {
	s.mu.Lock()
	readers := s.readers
	s.readers = nil
	s.mu.Unlock()

	var errList []error
	for _, r := range readers {
		if err := r.Close(); err != nil {
			errList = append(errList, err)
		}
	}
	s.wg.Wait()
	return errors.Join(errList...)
}
