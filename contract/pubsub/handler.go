package pubsub

import "context"

// Handler processes one decoded message of type T. It is the single
// capability a concrete consumer supplies; the loop owns everything else
// (receive, decode, acknowledge).
//
// A returned error (or a panic) is caught and logged by the consumer loop
// and does not affect acknowledgement. Implementations must be safe for
// sequential reuse; the loop never invokes a handler concurrently with
// itself for the same consumer.
type Handler[T any] interface {
	Handle(ctx context.Context, msg T) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc[T any] func(ctx context.Context, msg T) error

func (f HandlerFunc[T]) Handle(ctx context.Context, msg T) error { return f(ctx, msg) }
