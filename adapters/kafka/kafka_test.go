package kafka_test

import (
	"context"
	"errors"
	"testing"

	"github.com/next-trace/scg-pubsub/adapters/kafka"
	perr "github.com/next-trace/scg-pubsub/contract/errors"
)

func TestNewClient_NoBrokers(t *testing.T) {
	_, _, err := kafka.NewClient(kafka.Config{})
	if err == nil {
		t.Fatalf("expected error")
	}

	if !errors.Is(err, perr.ErrConnectFailed) {
		t.Fatalf("want ErrConnectFailed, got %v", err)
	}
}

func TestClient_Validation(t *testing.T) {
	// kgo clients do not dial eagerly, so construction succeeds without a broker.
	cl, cleanup, err := kafka.NewClient(kafka.Config{Brokers: []string{"localhost:9092"}, ClientID: "scg-pubsub-test"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer cleanup()

	if _, err := cl.CreateProducer(context.Background(), ""); !errors.Is(err, perr.ErrTopicRequired) {
		t.Fatalf("want ErrTopicRequired, got %v", err)
	}

	if _, err := cl.Subscribe(context.Background(), "", "sub1"); !errors.Is(err, perr.ErrTopicRequired) {
		t.Fatalf("want ErrTopicRequired, got %v", err)
	}

	if _, err := cl.Subscribe(context.Background(), "orders", ""); !errors.Is(err, perr.ErrSubscriptionRequired) {
		t.Fatalf("want ErrSubscriptionRequired, got %v", err)
	}
}
