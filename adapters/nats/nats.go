package nats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	perr "github.com/next-trace/scg-pubsub/contract/errors"
	cpub "github.com/next-trace/scg-pubsub/contract/pubsub"
)

// Config configures the NATS connection.
type Config struct {
	URL           string
	Name          string
	ConnTimeout   time.Duration
	MaxReconnects int
}

// Client implements the contract Client over NATS JetStream. Durable pull
// consumers provide the topic+subscription+ack semantics: the subject is the
// topic and the durable name is the subscription cursor.
type Client struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

var _ cpub.Client = (*Client)(nil)

// NewClient dials NATS and returns a client and a cleanup.
func NewClient(cfg Config) (*Client, func(), error) {
	if cfg.URL == "" {
		return nil, nil, fmt.Errorf("%w: nats url required", perr.ErrConnectFailed)
	}

	opts := []nats.Option{}
	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}

	if cfg.ConnTimeout > 0 {
		opts = append(opts, nats.Timeout(cfg.ConnTimeout))
	}

	if cfg.MaxReconnects != 0 {
		opts = append(opts, nats.MaxReconnects(cfg.MaxReconnects))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: nats connect: %w", perr.ErrConnectFailed, err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()

		return nil, nil, fmt.Errorf("%w: nats jetstream: %w", perr.ErrConnectFailed, err)
	}

	c := &Client{nc: nc, js: js}
	cleanup := func() { _ = c.Close() }

	return c, cleanup, nil
}

// CreateProducer returns an outbound channel publishing to the topic subject.
func (c *Client) CreateProducer(ctx context.Context, topic string) (cpub.Producer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if topic == "" {
		return nil, fmt.Errorf("nats create producer: %w", perr.ErrTopicRequired)
	}

	return &producer{js: c.js, topic: topic}, nil
}

// Subscribe opens a durable pull subscription on the topic subject.
func (c *Client) Subscribe(ctx context.Context, topic, subscription string) (cpub.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if topic == "" {
		return nil, fmt.Errorf("nats subscribe: %w", perr.ErrTopicRequired)
	}

	if subscription == "" {
		return nil, fmt.Errorf("nats subscribe %q: %w", topic, perr.ErrSubscriptionRequired)
	}

	sub, err := c.js.PullSubscribe(topic, subscription)
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %q/%q: %w", topic, subscription, errors.Join(perr.ErrSubscribeFailed, err))
	}

	return &pullSubscription{
		sub:     sub,
		topic:   topic,
		name:    subscription,
		pending: make(map[string]*nats.Msg),
	}, nil
}

// Close drains and closes the NATS connection.
func (c *Client) Close() error {
	if c.nc != nil && !c.nc.IsClosed() {
		_ = c.nc.Drain() //nolint:errcheck // best-effort shutdown; cannot return error here
		c.nc.Close()
	}

	return nil
}

type producer struct {
	js    nats.JetStreamContext
	topic string
}

func (p *producer) Send(ctx context.Context, payload []byte) error {
	if _, err := p.js.Publish(p.topic, payload, nats.Context(ctx)); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("nats publish to %q: %w", p.topic, errors.Join(perr.ErrSendFailed, err))
	}

	return nil
}

// Close is a no-op; the subject-bound producer holds no resources beyond the
// shared connection.
func (p *producer) Close() error { return nil }

type pullSubscription struct {
	sub   *nats.Subscription
	topic string
	name  string

	mu      sync.Mutex
	pending map[string]*nats.Msg
	closed  bool
}

// Receive fetches the next message, one at a time.
func (s *pullSubscription) Receive(ctx context.Context) (cpub.Message, error) {
	for {
		if s.isClosed() {
			return cpub.Message{}, fmt.Errorf("nats receive %q/%q: %w", s.topic, s.name, perr.ErrSubscriptionClosed)
		}

		msgs, err := s.sub.Fetch(1, nats.Context(ctx))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}

			if s.isClosed() || errors.Is(err, nats.ErrBadSubscription) || errors.Is(err, nats.ErrConnectionClosed) {
				return cpub.Message{}, fmt.Errorf("nats receive %q/%q: %w",
					s.topic, s.name, errors.Join(perr.ErrSubscriptionClosed, err))
			}

			if cerr := ctx.Err(); cerr != nil {
				return cpub.Message{}, cerr
			}

			return cpub.Message{}, fmt.Errorf("nats receive %q/%q: %w", s.topic, s.name, err)
		}

		if len(msgs) == 0 {
			continue
		}

		msg := msgs[0]
		id := messageID(msg)

		s.mu.Lock()
		s.pending[id] = msg
		s.mu.Unlock()

		return cpub.Message{ID: id, Payload: msg.Data}, nil
	}
}

// Ack acknowledges the pending message matching msg.ID. Unknown IDs are
// treated as already acknowledged.
func (s *pullSubscription) Ack(ctx context.Context, msg cpub.Message) error {
	s.mu.Lock()
	m, ok := s.pending[msg.ID]
	delete(s.pending, msg.ID)
	s.mu.Unlock()

	if !ok {
		return nil
	}

	if err := m.Ack(nats.Context(ctx)); err != nil {
		return fmt.Errorf("nats ack %q/%q message %s: %w", s.topic, s.name, msg.ID, err)
	}

	return nil
}

// Close drains the subscription, unblocking a pending Fetch.
func (s *pullSubscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}

	s.closed = true
	s.mu.Unlock()

	return s.sub.Drain()
}

func (s *pullSubscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

func messageID(m *nats.Msg) string {
	if meta, err := m.Metadata(); err == nil {
		return fmt.Sprintf("%d.%d", meta.Sequence.Stream, meta.Sequence.Consumer)
	}

	return m.Reply
}
