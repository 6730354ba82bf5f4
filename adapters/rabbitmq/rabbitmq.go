package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	perr "github.com/next-trace/scg-pubsub/contract/errors"
	cpub "github.com/next-trace/scg-pubsub/contract/pubsub"
)

// Config configures the AMQP connection.
type Config struct {
	URL         string
	ConnTimeout time.Duration
}

// Client implements the contract Client over one AMQP connection. Producers
// and subscriptions each own their channel.
type Client struct {
	conn *amqp.Connection
}

var _ cpub.Client = (*Client)(nil)

// NewClient dials RabbitMQ and returns a client and a cleanup.
func NewClient(cfg Config) (*Client, func(), error) {
	if cfg.URL == "" {
		return nil, nil, fmt.Errorf("%w: rabbitmq url required", perr.ErrConnectFailed)
	}

	conn, err := amqp.DialConfig(cfg.URL, amqp.Config{
		Locale:     "en_US",
		Properties: amqp.Table{"product": "scg-pubsub"},
		Dial:       amqp.DefaultDial(cfg.ConnTimeout),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: rabbitmq dial: %w", perr.ErrConnectFailed, err)
	}

	c := &Client{conn: conn}
	cleanup := func() { _ = c.Close() }

	return c, cleanup, nil
}

// CreateProducer opens a channel and declares the topic's fanout exchange.
func (c *Client) CreateProducer(ctx context.Context, topic string) (cpub.Producer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if topic == "" {
		return nil, fmt.Errorf("rabbitmq create producer: %w", perr.ErrTopicRequired)
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq channel for %q: %w", topic, errors.Join(perr.ErrProducerFailed, err))
	}

	if err := declareTopicExchange(ch, topic); err != nil {
		_ = ch.Close()

		return nil, fmt.Errorf("rabbitmq declare exchange %q: %w", topic, errors.Join(perr.ErrProducerFailed, err))
	}

	return &producer{ch: ch, topic: topic}, nil
}

// Subscribe binds a durable queue named topic.subscription to the topic's
// fanout exchange and starts consuming it with manual acks and a prefetch
// of one in-flight message.
func (c *Client) Subscribe(ctx context.Context, topic, subscription string) (cpub.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if topic == "" {
		return nil, fmt.Errorf("rabbitmq subscribe: %w", perr.ErrTopicRequired)
	}

	if subscription == "" {
		return nil, fmt.Errorf("rabbitmq subscribe %q: %w", topic, perr.ErrSubscriptionRequired)
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq channel for %q/%q: %w",
			topic, subscription, errors.Join(perr.ErrSubscribeFailed, err))
	}

	deliveries, err := bindAndConsume(ch, topic, subscription)
	if err != nil {
		_ = ch.Close()

		return nil, fmt.Errorf("rabbitmq subscribe %q/%q: %w",
			topic, subscription, errors.Join(perr.ErrSubscribeFailed, err))
	}

	return &queueSubscription{
		ch:         ch,
		deliveries: deliveries,
		topic:      topic,
		name:       subscription,
		pending:    make(map[string]amqp.Delivery),
	}, nil
}

// Close closes the AMQP connection and with it every channel.
func (c *Client) Close() error {
	if c.conn != nil && !c.conn.IsClosed() {
		return c.conn.Close()
	}

	return nil
}

func declareTopicExchange(ch *amqp.Channel, topic string) error {
	return ch.ExchangeDeclare(
		topic,
		"fanout",
		true,
		false,
		false,
		false,
		nil,
	)
}

func bindAndConsume(ch *amqp.Channel, topic, subscription string) (<-chan amqp.Delivery, error) {
	if err := declareTopicExchange(ch, topic); err != nil {
		return nil, err
	}

	queue := topic + "." + subscription
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, err
	}

	if err := ch.QueueBind(queue, "", topic, false, nil); err != nil {
		return nil, err
	}

	// prefetch of one: the next delivery waits for the previous ack
	if err := ch.Qos(1, 0, false); err != nil {
		return nil, err
	}

	return ch.Consume(queue, "", false, false, false, false, nil)
}

type producer struct {
	ch    *amqp.Channel
	topic string
}

func (p *producer) Send(ctx context.Context, payload []byte) error {
	err := p.ch.PublishWithContext(
		ctx,
		p.topic,
		"",
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         payload,
		},
	)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("rabbitmq publish to %q: %w", p.topic, errors.Join(perr.ErrSendFailed, err))
	}

	return nil
}

func (p *producer) Close() error { return p.ch.Close() }

type queueSubscription struct {
	ch         *amqp.Channel
	deliveries <-chan amqp.Delivery
	topic      string
	name       string

	mu      sync.Mutex
	pending map[string]amqp.Delivery
	closed  bool
}

func (s *queueSubscription) Receive(ctx context.Context) (cpub.Message, error) {
	select {
	case d, ok := <-s.deliveries:
		if !ok {
			return cpub.Message{}, fmt.Errorf("rabbitmq receive %q/%q: %w", s.topic, s.name, perr.ErrSubscriptionClosed)
		}

		id := strconv.FormatUint(d.DeliveryTag, 10)

		s.mu.Lock()
		s.pending[id] = d
		s.mu.Unlock()

		return cpub.Message{ID: id, Payload: d.Body}, nil
	case <-ctx.Done():
		return cpub.Message{}, ctx.Err()
	}
}

func (s *queueSubscription) Ack(ctx context.Context, msg cpub.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	d, ok := s.pending[msg.ID]
	delete(s.pending, msg.ID)
	s.mu.Unlock()

	if !ok {
		return nil
	}

	if err := d.Ack(false); err != nil {
		return fmt.Errorf("rabbitmq ack %q/%q message %s: %w", s.topic, s.name, msg.ID, err)
	}

	return nil
}

// Close closes the channel, which also closes the delivery stream and
// unblocks a pending Receive.
func (s *queueSubscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}

	s.closed = true
	s.mu.Unlock()

	return s.ch.Close()
}
