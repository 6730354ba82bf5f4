package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	perr "github.com/next-trace/scg-pubsub/contract/errors"
	cpub "github.com/next-trace/scg-pubsub/contract/pubsub"
)

// Consumer states. Transitions are one-way:
// created -> subscribing -> running -> stopped, with a failed subscribe
// falling back from subscribing to created.
const (
	stateCreated int32 = iota
	stateSubscribing
	stateRunning
	stateStopped
)

// Consumer continuously delivers messages from one topic+subscription pair
// to a Handler. Each iteration receives one message, decodes it as JSON,
// dispatches it synchronously, and acknowledges it — unconditionally, even
// when decoding or the handler failed. Decode, handler, and acknowledgement
// errors are logged and never terminate the loop, so a single poison
// payload cannot stall the subscription.
//
// Receives are issued one at a time: the next receive only happens after
// the previous acknowledgement attempt, an effective prefetch of one.
type Consumer[T any] struct {
	client       cpub.Client
	topic        string
	subscription string
	handler      cpub.Handler[T]
	logger       *slog.Logger

	mu    sync.Mutex // guards state transitions, sub, and done
	state atomic.Int32
	sub   cpub.Subscription
	done  chan struct{}
}

// NewConsumer constructs a consumer for topic under the named durable
// subscription. The handler is the single pluggable capability; everything
// else (receive, decode, ack, error policy) belongs to the loop.
func NewConsumer[T any](
	client cpub.Client,
	topic, subscription string,
	handler cpub.Handler[T],
	logger *slog.Logger,
) (*Consumer[T], error) {
	if client == nil {
		return nil, fmt.Errorf("new consumer: %w", perr.ErrClientRequired)
	}

	if topic == "" {
		return nil, fmt.Errorf("new consumer: %w", perr.ErrTopicRequired)
	}

	if subscription == "" {
		return nil, fmt.Errorf("new consumer %q: %w", topic, perr.ErrSubscriptionRequired)
	}

	if handler == nil {
		return nil, fmt.Errorf("new consumer %q/%q: %w", topic, subscription, perr.ErrHandlerRequired)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer[T]{
		client:       client,
		topic:        topic,
		subscription: subscription,
		handler:      handler,
		logger:       logger,
	}, nil
}

// Start subscribes to the backend and launches the loop goroutine exactly
// once. A failed subscribe leaves the consumer in its created state and
// returns the error, so the caller may retry. Starting a running consumer
// fails with ErrConsumerStarted; a stopped consumer cannot be restarted.
func (c *Consumer[T]) Start(ctx context.Context) error {
	c.mu.Lock()

	switch c.state.Load() {
	case stateCreated:
		c.state.Store(stateSubscribing)
		c.mu.Unlock()
	case stateStopped:
		c.mu.Unlock()
		return fmt.Errorf("start consumer %q/%q: %w", c.topic, c.subscription, perr.ErrConsumerStopped)
	default:
		c.mu.Unlock()
		return fmt.Errorf("start consumer %q/%q: %w", c.topic, c.subscription, perr.ErrConsumerStarted)
	}

	sub, err := c.client.Subscribe(ctx, c.topic, c.subscription)
	if err != nil {
		c.state.CompareAndSwap(stateSubscribing, stateCreated)

		return fmt.Errorf("subscribe %q/%q: %w", c.topic, c.subscription, errors.Join(perr.ErrSubscribeFailed, err))
	}

	c.mu.Lock()

	if !c.state.CompareAndSwap(stateSubscribing, stateRunning) {
		// stopped while the subscribe call was in flight
		c.mu.Unlock()
		_ = sub.Close()

		return fmt.Errorf("start consumer %q/%q: %w", c.topic, c.subscription, perr.ErrConsumerStopped)
	}

	c.sub = sub
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.run(ctx)

	return nil
}

// Stop transitions the consumer to stopped, closes the subscription to
// unblock a pending receive, and waits for the loop to drain. It is
// idempotent; there is no restart path.
func (c *Consumer[T]) Stop() error {
	c.mu.Lock()
	prev := c.state.Swap(stateStopped)
	sub, done := c.sub, c.done
	c.mu.Unlock()

	if prev != stateRunning || sub == nil {
		return nil
	}

	err := sub.Close()
	<-done

	if err != nil {
		return fmt.Errorf("stop consumer %q/%q: %w", c.topic, c.subscription, err)
	}

	return nil
}

// run is the receive -> decode -> dispatch -> ack loop. The running flag is
// checked only at the top of each iteration; a blocked receive is unblocked
// by Stop closing the subscription.
func (c *Consumer[T]) run(ctx context.Context) {
	defer close(c.done)

	for c.state.Load() == stateRunning {
		msg, err := c.sub.Receive(ctx)
		if err != nil {
			if c.state.Load() != stateRunning || errors.Is(err, perr.ErrSubscriptionClosed) || ctx.Err() != nil {
				return
			}

			c.logger.ErrorContext(ctx, "receive failed",
				"topic", c.topic, "subscription", c.subscription, "error", err)

			continue
		}

		c.dispatch(ctx, msg)

		// Ack is unconditional once a message was received: decode and
		// handler failures still acknowledge, permanently dropping the
		// message rather than redelivering it.
		if err := c.sub.Ack(ctx, msg); err != nil {
			c.logger.ErrorContext(ctx, "ack failed",
				"topic", c.topic, "subscription", c.subscription, "message_id", msg.ID, "error", err)
		}
	}
}

// dispatch decodes the payload and hands it to the handler. Failures are
// logged only; the caller acknowledges regardless.
func (c *Consumer[T]) dispatch(ctx context.Context, msg cpub.Message) {
	var value T
	if err := json.Unmarshal(msg.Payload, &value); err != nil {
		c.logger.ErrorContext(ctx, "decode failed",
			"topic", c.topic, "subscription", c.subscription, "message_id", msg.ID, "error", err)

		return
	}

	if err := c.handle(ctx, value); err != nil {
		c.logger.ErrorContext(ctx, "handler failed",
			"topic", c.topic, "subscription", c.subscription, "message_id", msg.ID, "error", err)
	}
}

// handle invokes the handler with panic recovery so a misbehaving handler
// cannot bypass acknowledgement or kill the loop.
func (c *Consumer[T]) handle(ctx context.Context, value T) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			err = fmt.Errorf("panic in handler: %v", rvr)
		}
	}()

	return c.handler.Handle(ctx, value)
}
