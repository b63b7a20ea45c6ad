package infrastructure

import (
	"errors"
	"testing"
	"time"

	"gambler/settlement/domain/events"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJSMsg struct {
	delivered  uint64
	acked      bool
	terminated bool
	nakDelay   time.Duration
}

func (m *fakeJSMsg) Ack(...nats.AckOpt) error {
	m.acked = true
	return nil
}

func (m *fakeJSMsg) NakWithDelay(delay time.Duration, _ ...nats.AckOpt) error {
	m.nakDelay = delay
	return nil
}

func (m *fakeJSMsg) Term(...nats.AckOpt) error {
	m.terminated = true
	return nil
}

func (m *fakeJSMsg) Metadata() (*nats.MsgMetadata, error) {
	return &nats.MsgMetadata{NumDelivered: m.delivered}, nil
}

func TestNATSClient_Deliver(t *testing.T) {
	client := NewNATSClient("nats://unused:4222", NATSOptions{AckWait: 10 * time.Second, MaxDeliver: 3})
	failing := func([]byte) error { return errors.New("store unavailable") }

	tests := []struct {
		name       string
		handler    func([]byte) error
		delivered  uint64
		acked      bool
		terminated bool
		nakDelay   time.Duration
	}{
		{"handled", func([]byte) error { return nil }, 1, true, false, 0},
		{"first failure", failing, 1, false, false, time.Second},
		{"second failure backs off", failing, 2, false, false, 2 * time.Second},
		{"final delivery", failing, 3, false, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &fakeJSMsg{delivered: tt.delivered}
			var got []byte
			handler := func(data []byte) error {
				got = data
				return tt.handler(data)
			}

			client.deliver(SubjectEventResults, msg, []byte(`{"eventId":"evt-1"}`), handler)

			assert.Equal(t, `{"eventId":"evt-1"}`, string(got))
			assert.Equal(t, tt.acked, msg.acked)
			assert.Equal(t, tt.terminated, msg.terminated)
			assert.Equal(t, tt.nakDelay, msg.nakDelay)
		})
	}
}

func TestRedeliveryDelay(t *testing.T) {
	assert.Equal(t, time.Second, redeliveryDelay(time.Minute, 0))
	assert.Equal(t, 4*time.Second, redeliveryDelay(time.Minute, 3))
	assert.Equal(t, 5*time.Second, redeliveryDelay(5*time.Second, 4))
	assert.Equal(t, time.Second<<16, redeliveryDelay(0, 40))
}

func TestNewNATSClient_Defaults(t *testing.T) {
	client := NewNATSClient("nats://unused:4222", NATSOptions{MaxDeliver: 7})

	assert.Equal(t, 7, client.opts.MaxDeliver)
	assert.Equal(t, DefaultNATSOptions().AckWait, client.opts.AckWait)
	assert.Equal(t, DefaultNATSOptions().StreamMaxAge, client.opts.StreamMaxAge)
}

func TestNATSClient_NotConnected(t *testing.T) {
	client := NewNATSClient("nats://unused:4222", DefaultNATSOptions())

	assert.ErrorIs(t, client.Subscribe(SubjectEventResults, func([]byte) error { return nil }), errNATSNotConnected)
	assert.ErrorIs(t, client.EnsureStream(domainEventStream, []string{SubjectEventResults}), errNATSNotConnected)
	assert.NoError(t, client.Close())
}

func TestConsumerName(t *testing.T) {
	assert.Equal(t, "settlement-engine_events_results", consumerName(SubjectEventResults))
	assert.Equal(t, "settlement-engine_wagers_any", consumerName("settlement.wagers.*"))
	assert.Equal(t, "settlement-engine_all", consumerName("settlement.>"))
}

func TestMissingSubjects(t *testing.T) {
	have := []string{"settlement.wagers.placed", SubjectEventResults}

	assert.Empty(t, missingSubjects(have, []string{SubjectEventResults}))
	assert.Equal(t, []string{"settlement.rounds.ended"},
		missingSubjects(have, []string{"settlement.wagers.placed", "settlement.rounds.ended"}))
}

func TestEnvelopeMsg(t *testing.T) {
	envelope, err := NewEventEnvelope(events.WagerFundedEvent{WagerID: 4, PlayerID: "0xabc"})
	require.NoError(t, err)

	msg, err := envelopeMsg("settlement.wagers.funded", envelope)
	require.NoError(t, err)

	assert.Equal(t, "settlement.wagers.funded", msg.Subject)
	assert.Equal(t, envelope.EventID, msg.Header.Get(nats.MsgIdHdr))
	assert.Equal(t, "wager.funded", msg.Header.Get(headerEventType))

	decoded, err := UnmarshalEventEnvelope(msg.Data)
	require.NoError(t, err)
	assert.Equal(t, envelope.EventID, decoded.EventID)
}

func TestEventEnvelope_TimestampRoundTrip(t *testing.T) {
	envelope, err := NewEventEnvelope(events.WagerFundedEvent{WagerID: 4})
	require.NoError(t, err)
	envelope.Timestamp.Seconds = 1_800_000_000
	envelope.Timestamp.Nanos = 500_000_000

	data, err := envelope.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"timestamp":"2027-01-15T08:00:00.500Z"`)

	decoded, err := UnmarshalEventEnvelope(data)
	require.NoError(t, err)
	require.NotNil(t, decoded.Timestamp)
	assert.True(t, envelope.Timestamp.AsTime().Equal(decoded.Timestamp.AsTime()))

	bare, err := UnmarshalEventEnvelope([]byte(`{"eventId":"evt-1","winningOutcome":"home"}`))
	require.NoError(t, err)
	assert.Nil(t, bare.Timestamp)
	assert.Empty(t, bare.Payload)

	_, err = UnmarshalEventEnvelope([]byte(`{"eventId":"e","timestamp":"yesterday"}`))
	assert.Error(t, err)
}
