package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	perr "github.com/next-trace/scg-pubsub/contract/errors"
	cpub "github.com/next-trace/scg-pubsub/contract/pubsub"
)

// Publisher memoizes one Producer per topic over a shared Client and exposes
// a single Send operation that serializes arbitrary values to JSON.
//
// Publisher is concurrency-safe: concurrent first sends to the same topic
// resolve to exactly one producer. Entries live until Close; a failed send
// does not evict its producer.
type Publisher struct {
	mu        sync.RWMutex
	client    cpub.Client
	producers map[string]cpub.Producer
	logger    *slog.Logger
}

// NewPublisher constructs a Publisher over the shared client handle.
// A nil logger falls back to slog.Default.
func NewPublisher(client cpub.Client, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Publisher{
		client:    client,
		producers: make(map[string]cpub.Producer),
		logger:    logger,
	}
}

// Send serializes value to JSON and submits it to topic, creating and
// caching the topic's producer on first use.
//
// A value that cannot be represented as JSON is a local error returned to
// the caller before any producer is touched; no partial send occurs.
// Producer-creation and send failures carry the backend error joined with
// the matching coded error.
func (p *Publisher) Send(ctx context.Context, topic string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if topic == "" {
		return fmt.Errorf("send: %w", perr.ErrTopicRequired)
	}

	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("send to %q serialize: %w", topic, errors.Join(perr.ErrSerializationFailed, err))
	}

	prod, err := p.producer(ctx, topic)
	if err != nil {
		return err
	}

	if err := prod.Send(ctx, body); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		p.logger.ErrorContext(ctx, "send failed", "topic", topic, "error", err)

		return fmt.Errorf("send to %q: %w", topic, errors.Join(perr.ErrSendFailed, err))
	}

	return nil
}

// producer returns the cached producer for topic, creating it on first use.
// Creation happens under the write lock so concurrent first sends to a new
// topic cannot leak duplicate producers. A failed creation caches nothing.
func (p *Publisher) producer(ctx context.Context, topic string) (cpub.Producer, error) {
	p.mu.RLock()
	prod, ok := p.producers[topic]
	p.mu.RUnlock()

	if ok {
		return prod, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if prod, ok := p.producers[topic]; ok {
		return prod, nil
	}

	if p.client == nil {
		return nil, fmt.Errorf("create producer for %q: %w", topic, perr.ErrClientRequired)
	}

	prod, err := p.client.CreateProducer(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("create producer for %q: %w", topic, errors.Join(perr.ErrProducerFailed, err))
	}

	p.producers[topic] = prod

	return prod, nil
}

// Close closes every cached producer and empties the cache.
// All close errors are aggregated with errors.Join.
func (p *Publisher) Close() error {
	p.mu.Lock()
	prods := p.producers
	p.producers = make(map[string]cpub.Producer)
	p.mu.Unlock()

	var errs []error

	for topic, prod := range prods {
		if err := prod.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close producer for %q: %w", topic, err))
		}
	}

	return errors.Join(errs...)
}
