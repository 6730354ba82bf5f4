package inmemory

import (
	"context"
	"fmt"
	"sync"

	perr "github.com/next-trace/scg-pubsub/contract/errors"
	cpub "github.com/next-trace/scg-pubsub/contract/pubsub"
)

// subscription is one durable cursor: a FIFO backlog that survives Close so
// a later re-subscribe under the same name resumes where it left off.
type subscription struct {
	topic string
	name  string

	mu    sync.Mutex
	cond  *sync.Cond
	queue []cpub.Message
	acked []string
	// closed detaches the subscription; the backlog keeps accumulating.
	closed bool
}

var _ cpub.Subscription = (*subscription)(nil)

func newSubscription(topic, name string) *subscription {
	s := &subscription{topic: topic, name: name}
	s.cond = sync.NewCond(&s.mu)

	return s
}

// Receive blocks until a message is queued, the subscription is closed, or
// the context is cancelled.
func (s *subscription) Receive(ctx context.Context) (cpub.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return cpub.Message{}, err
		}

		if s.closed {
			return cpub.Message{}, fmt.Errorf("inmemory receive %q/%q: %w", s.topic, s.name, perr.ErrSubscriptionClosed)
		}

		if len(s.queue) > 0 {
			msg := s.queue[0]
			s.queue = s.queue[1:]

			return msg, nil
		}

		s.wait(ctx)
	}
}

// wait parks on the condition variable while also honoring context
// cancellation. The watcher takes the lock before broadcasting so a wakeup
// cannot be lost between the caller's state check and cond.Wait.
func (s *subscription) wait(ctx context.Context) {
	done := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		case <-done:
		}
	}()

	s.cond.Wait()
	close(done)
}

// Ack records the acknowledgement. The in-memory broker never redelivers a
// popped message, so ack here is bookkeeping for assertions.
func (s *subscription) Ack(ctx context.Context, msg cpub.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.acked = append(s.acked, msg.ID)
	s.mu.Unlock()

	return nil
}

// Close detaches the subscription and unblocks any pending Receive. The
// cursor and its backlog remain on the broker.
func (s *subscription) Close() error {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()

	return nil
}

func (s *subscription) push(msg cpub.Message) {
	s.mu.Lock()
	s.queue = append(s.queue, msg)
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *subscription) reopen() {
	s.mu.Lock()
	s.closed = false
	s.mu.Unlock()
}

func (s *subscription) shutdown() {
	_ = s.Close()
}

func (s *subscription) ackedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.acked...)
}
