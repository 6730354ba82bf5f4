package pubsub

import (
	"context"
	"io"
)

// Message is a single delivery from the messaging backend: a broker-assigned
// identifier and the raw payload bytes. Payloads are UTF-8 encoded JSON by
// convention; decoding is the consumer's concern, not the transport's.
type Message struct {
	ID      string
	Payload []byte
}

// Producer is an outbound channel bound to a single topic.
// Implementations must be safe for concurrent use by multiple goroutines.
type Producer interface {
	// Send submits raw payload bytes to the producer's topic.
	Send(ctx context.Context, payload []byte) error

	io.Closer
}

// Subscription is an inbound channel for one topic+subscription pair.
//
// Receive blocks until the next message is available. Close unblocks a
// pending Receive, which then fails with the subscription-closed coded
// error so a cooperative consumer loop can wind down without waiting for
// traffic.
type Subscription interface {
	// Receive blocks for the next available message.
	Receive(ctx context.Context) (Message, error)

	// Ack tells the backend the message was processed and must not be
	// redelivered on this subscription.
	Ack(ctx context.Context, msg Message) error

	io.Closer
}

// Client is the process-wide handle to the messaging backend. It is created
// once from a configured service address by the composition root and shared
// by every producer cache and consumer loop in the process.
//
// This keeps the core decoupled from concrete transports while enabling
// simple injection of user-provided backends (Kafka, NATS, RabbitMQ,
// in-memory, etc.).
type Client interface {
	// CreateProducer opens an outbound channel bound to topic.
	CreateProducer(ctx context.Context, topic string) (Producer, error)

	// Subscribe opens an inbound channel for topic under the named durable
	// subscription cursor.
	Subscribe(ctx context.Context, topic, subscription string) (Subscription, error)

	io.Closer
}
