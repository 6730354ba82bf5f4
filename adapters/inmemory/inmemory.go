package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	perr "github.com/next-trace/scg-pubsub/contract/errors"
	cpub "github.com/next-trace/scg-pubsub/contract/pubsub"
)

// Broker is an in-process messaging backend with durable per-subscription
// cursors. It implements the contract Client and is intended for tests and
// examples; every published message is fanned out to the queue of each
// subscription that exists on the topic at publish time.
type Broker struct {
	mu     sync.Mutex
	topics map[string]*topicState
	closed bool
}

type topicState struct {
	subs map[string]*subscription
}

// Ensure Broker implements the client contract.
var _ cpub.Client = (*Broker)(nil)

// New creates an empty in-memory broker.
func New() *Broker {
	return &Broker{topics: make(map[string]*topicState)}
}

// CreateProducer opens an outbound channel bound to topic.
func (b *Broker) CreateProducer(ctx context.Context, topic string) (cpub.Producer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if topic == "" {
		return nil, fmt.Errorf("inmemory create producer: %w", perr.ErrTopicRequired)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("inmemory create producer for %q: %w", topic, perr.ErrClientClosed)
	}

	return &producer{broker: b, topic: topic}, nil
}

// Subscribe attaches to the named durable cursor on topic, creating it on
// first use. Re-subscribing under the same name reopens the existing cursor
// with its undelivered backlog intact.
func (b *Broker) Subscribe(ctx context.Context, topic, name string) (cpub.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if topic == "" {
		return nil, fmt.Errorf("inmemory subscribe: %w", perr.ErrTopicRequired)
	}

	if name == "" {
		return nil, fmt.Errorf("inmemory subscribe %q: %w", topic, perr.ErrSubscriptionRequired)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("inmemory subscribe %q/%q: %w", topic, name, perr.ErrClientClosed)
	}

	ts := b.topics[topic]
	if ts == nil {
		ts = &topicState{subs: make(map[string]*subscription)}
		b.topics[topic] = ts
	}

	sub := ts.subs[name]
	if sub == nil {
		sub = newSubscription(topic, name)
		ts.subs[name] = sub
	} else {
		sub.reopen()
	}

	return sub, nil
}

// Close closes every subscription and rejects further operations.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, ts := range b.topics {
		for _, sub := range ts.subs {
			sub.shutdown()
		}
	}

	return nil
}

// AckedIDs reports the acknowledged message IDs of a subscription, in ack
// order. Test helper.
func (b *Broker) AckedIDs(topic, name string) []string {
	b.mu.Lock()
	ts := b.topics[topic]
	var sub *subscription
	if ts != nil {
		sub = ts.subs[name]
	}
	b.mu.Unlock()

	if sub == nil {
		return nil
	}

	return sub.ackedIDs()
}

func (b *Broker) publish(topic string, payload []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return "", fmt.Errorf("inmemory send to %q: %w", topic, perr.ErrClientClosed)
	}

	id := uuid.NewString()

	if ts := b.topics[topic]; ts != nil {
		for _, sub := range ts.subs {
			sub.push(cpub.Message{ID: id, Payload: append([]byte(nil), payload...)})
		}
	}

	return id, nil
}

type producer struct {
	broker *Broker
	topic  string

	mu     sync.Mutex
	closed bool
}

func (p *producer) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()

	if closed {
		return fmt.Errorf("inmemory send to %q: %w", p.topic, perr.ErrSendFailed)
	}

	_, err := p.broker.publish(p.topic, payload)

	return err
}

func (p *producer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	return nil
}
