package memory_test

import (
	"context"
	"testing"

	"github.com/next-trace/scg-pubsub/memory"
)

func TestNew_RoundTrip(t *testing.T) {
	client, cleanup := memory.New()
	defer cleanup()

	sub, err := client.Subscribe(context.Background(), "orders", "sub1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	prod, err := client.CreateProducer(context.Background(), "orders")
	if err != nil {
		t.Fatalf("create producer: %v", err)
	}

	if err := prod.Send(context.Background(), []byte(`{"a":1}`)); err != nil {
		t.Fatalf("send: %v", err)
	}

	msg, err := sub.Receive(context.Background())
	if err != nil {
		t.Fatalf("receive: %v", err)
	}

	if string(msg.Payload) != `{"a":1}` {
		t.Fatalf("payload=%s", msg.Payload)
	}

	if err := sub.Ack(context.Background(), msg); err != nil {
		t.Fatalf("ack: %v", err)
	}
}
