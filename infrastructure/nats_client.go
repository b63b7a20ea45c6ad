package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Stream holding every subject this service publishes or consumes
const domainEventStream = "settlement_events"

// Window in which JetStream drops a republished envelope with the same id
const duplicateWindow = 2 * time.Minute

var errNATSNotConnected = errors.New("not connected to NATS JetStream")

// NATSOptions tunes delivery on the settlement stream
type NATSOptions struct {
	AckWait      time.Duration
	MaxDeliver   int
	StreamMaxAge time.Duration
}

// DefaultNATSOptions returns the delivery policy used when nothing is configured
func DefaultNATSOptions() NATSOptions {
	return NATSOptions{
		AckWait:      30 * time.Second,
		MaxDeliver:   5,
		StreamMaxAge: 7 * 24 * time.Hour,
	}
}

// NATSClient publishes settlement envelopes to JetStream and runs one durable
// queue consumer per inbound subject. Every engine instance joins the same
// queue, so each event result is applied by exactly one of them.
type NATSClient struct {
	servers string
	opts    NATSOptions

	mu            sync.Mutex
	nc            *nats.Conn
	js            nats.JetStreamContext
	subscriptions []*nats.Subscription
}

// NewNATSClient creates a client; zero option fields fall back to the defaults
func NewNATSClient(servers string, opts NATSOptions) *NATSClient {
	defaults := DefaultNATSOptions()
	if opts.AckWait <= 0 {
		opts.AckWait = defaults.AckWait
	}
	if opts.MaxDeliver <= 0 {
		opts.MaxDeliver = defaults.MaxDeliver
	}
	if opts.StreamMaxAge <= 0 {
		opts.StreamMaxAge = defaults.StreamMaxAge
	}
	return &NATSClient{servers: servers, opts: opts}
}

// Connect dials NATS and opens the JetStream context
func (c *NATSClient) Connect(ctx context.Context) error {
	opts := []nats.Option{
		nats.Name(sourceService),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("server", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			fields := log.Fields{"error": err}
			if sub != nil {
				fields["subject"] = sub.Subject
			}
			log.WithFields(fields).Error("NATS async error")
		}),
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}

	nc, err := nats.Connect(c.servers, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	c.mu.Lock()
	c.nc, c.js = nc, js
	c.mu.Unlock()

	log.WithFields(log.Fields{
		"servers":    c.servers,
		"ackWait":    c.opts.AckWait,
		"maxDeliver": c.opts.MaxDeliver,
	}).Info("Connected to NATS JetStream")
	return nil
}

func (c *NATSClient) jetStream() (nats.JetStreamContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.js == nil {
		return nil, errNATSNotConnected
	}
	return c.js, nil
}

// EnsureStream creates the settlement stream, or widens an existing one so it
// covers every subject in subjects
func (c *NATSClient) EnsureStream(streamName string, subjects []string) error {
	js, err := c.jetStream()
	if err != nil {
		return err
	}

	info, err := js.StreamInfo(streamName)
	switch {
	case err == nil:
		missing := missingSubjects(info.Config.Subjects, subjects)
		if len(missing) == 0 {
			return nil
		}
		cfg := info.Config
		cfg.Subjects = append(cfg.Subjects, missing...)
		if _, err := js.UpdateStream(&cfg); err != nil {
			return fmt.Errorf("failed to add subjects to stream %s: %w", streamName, err)
		}
		log.WithFields(log.Fields{
			"stream":   streamName,
			"subjects": missing,
		}).Info("Added subjects to JetStream stream")
		return nil
	case !errors.Is(err, nats.ErrStreamNotFound):
		return fmt.Errorf("failed to look up stream %s: %w", streamName, err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:        streamName,
		Description: "Wager lifecycle and settlement events",
		Subjects:    subjects,
		Retention:   nats.LimitsPolicy,
		Storage:     nats.FileStorage,
		MaxAge:      c.opts.StreamMaxAge,
		Duplicates:  duplicateWindow,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", streamName, err)
	}
	log.WithFields(log.Fields{
		"stream":   streamName,
		"subjects": subjects,
	}).Info("Created JetStream stream")
	return nil
}

func missingSubjects(have, want []string) []string {
	var missing []string
	for _, s := range want {
		if !slices.Contains(have, s) {
			missing = append(missing, s)
		}
	}
	return missing
}

// PublishEnvelope publishes envelope to subject. The envelope id doubles as the
// JetStream message id, so a repeated flush inside the duplicate window is
// stored once.
func (c *NATSClient) PublishEnvelope(ctx context.Context, subject string, envelope *EventEnvelope) error {
	js, err := c.jetStream()
	if err != nil {
		return err
	}
	msg, err := envelopeMsg(subject, envelope)
	if err != nil {
		return err
	}
	if _, err := js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", envelope.EventType, subject, err)
	}
	return nil
}

func envelopeMsg(subject string, envelope *EventEnvelope) (*nats.Msg, error) {
	data, err := envelope.Marshal()
	if err != nil {
		return nil, err
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, envelope.EventID)
	msg.Header.Set(headerEventType, envelope.EventType)
	return msg, nil
}

// consumerName is the durable queue name for subject,
// e.g. settlement.events.results -> settlement-engine_events_results
func consumerName(subject string) string {
	name := strings.TrimPrefix(subject, "settlement.")
	name = strings.NewReplacer(".", "_", "*", "any", ">", "all").Replace(name)
	return sourceService + "_" + name
}

// Subscribe joins the durable queue consumer for subject. A nil handler result
// acks the message; an error schedules a backed-off redelivery until the
// configured delivery limit, after which the message is terminated.
func (c *NATSClient) Subscribe(subject string, handler func([]byte) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.js == nil {
		return errNATSNotConnected
	}

	queue := consumerName(subject)
	sub, err := c.js.QueueSubscribe(subject, queue,
		func(msg *nats.Msg) {
			c.deliver(subject, msg, msg.Data, handler)
		},
		nats.Durable(queue),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.DeliverAll(),
		nats.AckWait(c.opts.AckWait),
		nats.MaxDeliver(c.opts.MaxDeliver),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	c.subscriptions = append(c.subscriptions, sub)
	log.WithFields(log.Fields{
		"subject": subject,
		"queue":   queue,
	}).Info("Joined NATS queue consumer")
	return nil
}

// ackable is the acknowledgement surface of a JetStream message
type ackable interface {
	Ack(opts ...nats.AckOpt) error
	NakWithDelay(delay time.Duration, opts ...nats.AckOpt) error
	Term(opts ...nats.AckOpt) error
	Metadata() (*nats.MsgMetadata, error)
}

func (c *NATSClient) deliver(subject string, msg ackable, data []byte, handler func([]byte) error) {
	err := handler(data)
	if err == nil {
		if ackErr := msg.Ack(); ackErr != nil {
			log.WithError(ackErr).Error("Failed to ack NATS message")
		}
		return
	}

	attempt := uint64(1)
	if meta, metaErr := msg.Metadata(); metaErr == nil && meta.NumDelivered > 0 {
		attempt = meta.NumDelivered
	}
	fields := log.Fields{
		"subject": subject,
		"attempt": attempt,
		"error":   err,
	}

	if attempt >= uint64(c.opts.MaxDeliver) {
		log.WithFields(fields).Error("Dropping message after final delivery")
		if termErr := msg.Term(); termErr != nil {
			log.WithError(termErr).Error("Failed to terminate NATS message")
		}
		return
	}

	delay := redeliveryDelay(c.opts.AckWait, attempt)
	log.WithFields(fields).WithField("retryIn", delay).Warn("Message handling failed, redelivering")
	if nakErr := msg.NakWithDelay(delay); nakErr != nil {
		log.WithError(nakErr).Error("Failed to nak NATS message")
	}
}

// redeliveryDelay doubles from one second per attempt, capped at the ack wait
func redeliveryDelay(ackWait time.Duration, attempt uint64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Second << min(attempt-1, 16)
	if ackWait > 0 && delay > ackWait {
		delay = ackWait
	}
	return delay
}

// Close drops the connection. Durable consumers are left on the server so the
// next instance resumes from their ack floor.
func (c *NATSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subscriptions = nil
	if c.nc != nil {
		c.nc.Close()
		c.nc, c.js = nil, nil
		log.Info("NATS connection closed")
	}
	return nil
}
