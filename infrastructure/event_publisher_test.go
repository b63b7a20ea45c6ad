package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"gambler/settlement/domain/events"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNATS struct {
	mu        sync.Mutex
	published map[string][][]byte
	streams   map[string][]string
	err       error
}

func newFakeNATS() *fakeNATS {
	return &fakeNATS{published: make(map[string][][]byte), streams: make(map[string][]string)}
}

func (f *fakeNATS) PublishEnvelope(ctx context.Context, subject string, envelope *EventEnvelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	data, err := envelope.Marshal()
	if err != nil {
		return err
	}
	f.published[subject] = append(f.published[subject], data)
	return nil
}

func (f *fakeNATS) EnsureStream(streamName string, subjects []string) error {
	f.streams[streamName] = subjects
	return nil
}

type fakeKafkaWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeKafkaWriter) Close() error {
	f.closed = true
	return nil
}

type unknownEvent struct{}

func (unknownEvent) Type() events.EventType { return "mystery" }

func TestEventSubjectMapper(t *testing.T) {
	mapper := NewEventSubjectMapper()

	tests := []struct {
		event   events.Event
		subject string
	}{
		{events.WagerPlacedEvent{}, "settlement.wagers.placed"},
		{events.WagerResolvedEvent{}, "settlement.wagers.resolved"},
		{events.RoundEndedEvent{}, "settlement.rounds.ended"},
		{events.ReferralWithdrawnEvent{}, "settlement.referrals.withdrawn"},
		{unknownEvent{}, "settlement.unknown.mystery"},
	}
	for _, tt := range tests {
		t.Run(string(tt.event.Type()), func(t *testing.T) {
			subject := mapper.MapEventToSubject(tt.event)
			assert.Equal(t, tt.subject, subject)
		})
	}

	assert.Equal(t, events.EventTypeWagerFailed, mapper.MapSubjectToEventType("settlement.wagers.failed"))
	assert.Len(t, mapper.GetAllSubjects(), len(subjectsByType))
	for _, subject := range subjectsByType {
		assert.Contains(t, mapper.GetAllSubjects(), subject)
	}
}

func TestNATSEventPublisher_Publish(t *testing.T) {
	client := newFakeNATS()
	publisher := NewNATSEventPublisher(client, NewEventSubjectMapper())

	var seen []events.EventType
	publisher.RegisterLocalHandler(events.EventTypeWagerResolved, func(ctx context.Context, e events.Event) error {
		seen = append(seen, e.Type())
		return errors.New("handler failures do not stop the publish")
	})

	event := events.WagerResolvedEvent{WagerID: 7, PlayerID: "0xabc", PayoutAmount: 1940, Won: true}
	require.NoError(t, publisher.Publish(event))

	assert.Equal(t, []events.EventType{events.EventTypeWagerResolved}, seen)
	require.Len(t, client.published["settlement.wagers.resolved"], 1)

	envelope, err := UnmarshalEventEnvelope(client.published["settlement.wagers.resolved"][0])
	require.NoError(t, err)
	assert.Equal(t, "wager.resolved", envelope.EventType)
	assert.Equal(t, sourceService, envelope.SourceService)
	assert.NotEmpty(t, envelope.EventID)

	var payload events.WagerResolvedEvent
	require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
	assert.Equal(t, event, payload)
}

func TestNATSEventPublisher_Errors(t *testing.T) {
	client := newFakeNATS()
	publisher := NewNATSEventPublisher(client, NewEventSubjectMapper())

	client.err = errors.New("nats: no response from stream")
	assert.NoError(t, publisher.Publish(events.WagerFundedEvent{WagerID: 1}))

	client.err = errors.New("nats: connection closed")
	assert.Error(t, publisher.Publish(events.WagerFundedEvent{WagerID: 1}))
}

func TestNATSEventPublisher_EnsureDomainEventStream(t *testing.T) {
	client := newFakeNATS()
	publisher := NewNATSEventPublisher(client, NewEventSubjectMapper())

	require.NoError(t, publisher.EnsureDomainEventStream())
	subjects := client.streams[domainEventStream]
	assert.Contains(t, subjects, SubjectEventResults)
	assert.Contains(t, subjects, "settlement.wagers.placed")
}

func TestKafkaEventPublisher_Publish(t *testing.T) {
	writer := &fakeKafkaWriter{}
	publisher := NewKafkaEventPublisher(writer)

	require.NoError(t, publisher.Publish(events.ReferralCreditedEvent{WagerID: 3, ReferrerID: "0xref", RefereeID: "0xpal", Amount: 10}))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, []byte("0xref"), msg.Key)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "referral.credited", string(msg.Headers[0].Value))

	envelope, err := UnmarshalEventEnvelope(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, "referral.credited", envelope.EventType)

	require.NoError(t, publisher.Publish(unknownEvent{}))
	assert.Nil(t, writer.messages[1].Key)

	writer.err = errors.New("leader not available")
	assert.Error(t, publisher.Publish(events.WagerFundedEvent{WagerID: 1}))

	require.NoError(t, publisher.Close())
	assert.True(t, writer.closed)
}

func TestNoopEventPublisher_RunsLocalHandlers(t *testing.T) {
	publisher := NewNoopEventPublisher()

	var players []string
	publisher.RegisterLocalHandlerForAll(func(ctx context.Context, e events.Event) error {
		if scoped, ok := e.(events.PlayerScoped); ok {
			players = append(players, scoped.Player())
		}
		return nil
	})

	require.NoError(t, publisher.Publish(events.WagerPlacedEvent{PlayerID: "0xa"}))
	require.NoError(t, publisher.Publish(events.RoundEndedEvent{PlayerID: "0xb"}))
	assert.Equal(t, []string{"0xa", "0xb"}, players)
}

type capturingPublisher struct {
	published []events.Event
	failOn    events.EventType
}

func (c *capturingPublisher) Publish(event events.Event) error {
	if event.Type() == c.failOn {
		return errors.New("bus down")
	}
	c.published = append(c.published, event)
	return nil
}

func TestTransactionalPublisher(t *testing.T) {
	t.Run("flush publishes in order", func(t *testing.T) {
		bus := &capturingPublisher{}
		tp := NewTransactionalPublisher(bus)

		require.NoError(t, tp.Publish(events.WagerPlacedEvent{WagerID: 1}))
		require.NoError(t, tp.Publish(events.WagerFundedEvent{WagerID: 1}))
		assert.Empty(t, bus.published)

		require.NoError(t, tp.Flush(context.Background()))
		require.Len(t, bus.published, 2)
		assert.Equal(t, events.EventTypeWagerPlaced, bus.published[0].Type())
		assert.Equal(t, events.EventTypeWagerFunded, bus.published[1].Type())

		require.NoError(t, tp.Flush(context.Background()))
		assert.Len(t, bus.published, 2)
	})

	t.Run("discard drops pending events", func(t *testing.T) {
		bus := &capturingPublisher{}
		tp := NewTransactionalPublisher(bus)

		require.NoError(t, tp.Publish(events.WagerPlacedEvent{WagerID: 1}))
		tp.Discard()
		require.NoError(t, tp.Flush(context.Background()))
		assert.Empty(t, bus.published)
	})

	t.Run("failed event does not block the rest", func(t *testing.T) {
		bus := &capturingPublisher{failOn: events.EventTypeWagerPlaced}
		tp := NewTransactionalPublisher(bus)

		require.NoError(t, tp.Publish(events.WagerPlacedEvent{WagerID: 1}))
		require.NoError(t, tp.Publish(events.WagerFundedEvent{WagerID: 1}))
		require.NoError(t, tp.Flush(context.Background()))
		require.Len(t, bus.published, 1)
		assert.Equal(t, events.EventTypeWagerFunded, bus.published[0].Type())
	})
}
