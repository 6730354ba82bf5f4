package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"

	perr "github.com/next-trace/scg-pubsub/contract/errors"
	cpub "github.com/next-trace/scg-pubsub/contract/pubsub"
)

// Config configures the Kafka backend.
type Config struct {
	Brokers  []string
	ClientID string
}

// Client implements the contract Client over franz-go. Producers share one
// produce client; each subscription owns its own consumer-group client so
// that the subscription name maps to a durable group cursor.
type Client struct {
	cfg  Config
	prod *kgo.Client
}

var _ cpub.Client = (*Client)(nil)

// NewClient builds the shared produce client and returns it with a cleanup.
func NewClient(cfg Config) (*Client, func(), error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil, fmt.Errorf("%w: kafka brokers required", perr.ErrConnectFailed)
	}

	opts := []kgo.Opt{kgo.SeedBrokers(cfg.Brokers...)}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}

	cl, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: kafka client init: %w", perr.ErrConnectFailed, err)
	}

	c := &Client{cfg: cfg, prod: cl}
	cleanup := func() { _ = c.Close() }

	return c, cleanup, nil
}

// CreateProducer returns a topic-bound wrapper over the shared produce client.
func (c *Client) CreateProducer(ctx context.Context, topic string) (cpub.Producer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if topic == "" {
		return nil, fmt.Errorf("kafka create producer: %w", perr.ErrTopicRequired)
	}

	return &producer{cl: c.prod, topic: topic}, nil
}

// Subscribe joins the consumer group named by subscription on topic, with
// auto-commits disabled; offsets advance only on Ack.
func (c *Client) Subscribe(ctx context.Context, topic, subscription string) (cpub.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if topic == "" {
		return nil, fmt.Errorf("kafka subscribe: %w", perr.ErrTopicRequired)
	}

	if subscription == "" {
		return nil, fmt.Errorf("kafka subscribe %q: %w", topic, perr.ErrSubscriptionRequired)
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(c.cfg.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumerGroup(subscription),
		kgo.DisableAutoCommit(),
	}
	if c.cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(c.cfg.ClientID))
	}

	cl, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka subscribe %q/%q: %w", topic, subscription, errors.Join(perr.ErrSubscribeFailed, err))
	}

	return &groupSubscription{
		cl:      cl,
		topic:   topic,
		name:    subscription,
		pending: make(map[string]*kgo.Record),
	}, nil
}

// Close closes the shared produce client.
func (c *Client) Close() error {
	if c.prod != nil {
		c.prod.Close()
	}

	return nil
}

type producer struct {
	cl    *kgo.Client
	topic string
}

func (p *producer) Send(ctx context.Context, payload []byte) error {
	rec := &kgo.Record{Topic: p.topic, Value: payload}

	if err := p.cl.ProduceSync(ctx, rec).FirstErr(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("kafka produce to %q: %w", p.topic, errors.Join(perr.ErrSendFailed, err))
	}

	return nil
}

// Close is a no-op; the produce client is shared and closed by the Client.
func (p *producer) Close() error { return nil }

type groupSubscription struct {
	cl    *kgo.Client
	topic string
	name  string

	mu      sync.Mutex
	pending map[string]*kgo.Record
	closed  bool
}

// Receive polls for exactly one record.
func (s *groupSubscription) Receive(ctx context.Context) (cpub.Message, error) {
	for {
		if s.isClosed() {
			return cpub.Message{}, fmt.Errorf("kafka receive %q/%q: %w", s.topic, s.name, perr.ErrSubscriptionClosed)
		}

		fetches := s.cl.PollRecords(ctx, 1)
		if fetches.IsClientClosed() {
			return cpub.Message{}, fmt.Errorf("kafka receive %q/%q: %w", s.topic, s.name, perr.ErrSubscriptionClosed)
		}

		if err := ctx.Err(); err != nil {
			return cpub.Message{}, err
		}

		if fetchErrs := fetches.Errors(); len(fetchErrs) > 0 {
			return cpub.Message{}, fmt.Errorf("kafka receive %q/%q: %w", s.topic, s.name, fetchErrs[0].Err)
		}

		var rec *kgo.Record

		fetches.EachRecord(func(r *kgo.Record) {
			if rec == nil {
				rec = r
			}
		})

		if rec == nil {
			continue
		}

		id := fmt.Sprintf("%s/%d/%d", rec.Topic, rec.Partition, rec.Offset)

		s.mu.Lock()
		s.pending[id] = rec
		s.mu.Unlock()

		return cpub.Message{ID: id, Payload: rec.Value}, nil
	}
}

// Ack commits the record's offset for the group.
func (s *groupSubscription) Ack(ctx context.Context, msg cpub.Message) error {
	s.mu.Lock()
	rec, ok := s.pending[msg.ID]
	delete(s.pending, msg.ID)
	s.mu.Unlock()

	if !ok {
		return nil
	}

	if err := s.cl.CommitRecords(ctx, rec); err != nil {
		return fmt.Errorf("kafka commit %q/%q message %s: %w", s.topic, s.name, msg.ID, err)
	}

	return nil
}

// Close closes the group client, unblocking a pending poll.
func (s *groupSubscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}

	s.closed = true
	s.mu.Unlock()

	s.cl.Close()

	return nil
}

func (s *groupSubscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}
