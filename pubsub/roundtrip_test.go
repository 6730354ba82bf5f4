package pubsub_test

import (
	"context"
	"testing"

	"github.com/next-trace/scg-pubsub/adapters/inmemory"
	cpub "github.com/next-trace/scg-pubsub/contract/pubsub"
	"github.com/next-trace/scg-pubsub/pubsub"
)

// End-to-end over the in-memory broker: publisher cache on one side,
// consumer loop on the other.

func Test_RoundTrip_PublishConsume(t *testing.T) {
	b := inmemory.New()
	defer func() { _ = b.Close() }()

	rec := &recorded{}

	consumer, err := pubsub.NewConsumer[payload](b, "orders", "sub1", cpub.HandlerFunc[payload](func(_ context.Context, v payload) error {
		rec.add(v)
		return nil
	}), nil)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}

	if err := consumer.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	t.Cleanup(func() { _ = consumer.Stop() })

	pub := pubsub.NewPublisher(b, nil)
	defer func() { _ = pub.Close() }()

	if err := pub.Send(context.Background(), "orders", payload{A: 1}); err != nil {
		t.Fatalf("send: %v", err)
	}

	waitUntil(t, func() bool { return len(b.AckedIDs("orders", "sub1")) == 1 })

	if rec.count() != 1 {
		t.Fatalf("handler calls=%d", rec.count())
	}

	rec.mu.Lock()
	got := rec.values[0]
	rec.mu.Unlock()

	if got.A != 1 {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
}

func Test_RoundTrip_RawNonJSONIsDroppedButAcked(t *testing.T) {
	b := inmemory.New()
	defer func() { _ = b.Close() }()

	rec := &recorded{}

	consumer, err := pubsub.NewConsumer[payload](b, "orders", "sub1", cpub.HandlerFunc[payload](func(_ context.Context, v payload) error {
		rec.add(v)
		return nil
	}), nil)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}

	if err := consumer.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	t.Cleanup(func() { _ = consumer.Stop() })

	// bypass the publisher: raw bytes straight through the backend
	prod, err := b.CreateProducer(context.Background(), "orders")
	if err != nil {
		t.Fatalf("create producer: %v", err)
	}

	if err := prod.Send(context.Background(), []byte("not-json")); err != nil {
		t.Fatalf("send: %v", err)
	}

	waitUntil(t, func() bool { return len(b.AckedIDs("orders", "sub1")) == 1 })

	if rec.count() != 0 {
		t.Fatalf("handler must not see malformed payloads, calls=%d", rec.count())
	}
}
