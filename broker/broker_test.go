package broker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/next-trace/scg-pubsub/broker"
	"github.com/next-trace/scg-pubsub/config"
	perr "github.com/next-trace/scg-pubsub/contract/errors"
)

func TestConnect_Memory(t *testing.T) {
	client, cleanup, err := broker.Connect(context.Background(), config.Config{Address: "memory://"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	defer cleanup()

	sub, err := client.Subscribe(context.Background(), "orders", "sub1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	prod, err := client.CreateProducer(context.Background(), "orders")
	if err != nil {
		t.Fatalf("create producer: %v", err)
	}

	if err := prod.Send(context.Background(), []byte(`"ping"`)); err != nil {
		t.Fatalf("send: %v", err)
	}

	msg, err := sub.Receive(context.Background())
	if err != nil {
		t.Fatalf("receive: %v", err)
	}

	if string(msg.Payload) != `"ping"` {
		t.Fatalf("payload=%s", msg.Payload)
	}
}

func TestConnect_EmptyAddress(t *testing.T) {
	if _, _, err := broker.Connect(context.Background(), config.Config{}); !errors.Is(err, perr.ErrAddressRequired) {
		t.Fatalf("want ErrAddressRequired, got %v", err)
	}
}

func TestConnect_UnknownScheme(t *testing.T) {
	_, _, err := broker.Connect(context.Background(), config.Config{Address: "ftp://broker.local"})
	if !errors.Is(err, perr.ErrUnknownScheme) {
		t.Fatalf("want ErrUnknownScheme, got %v", err)
	}
}

func TestConnect_MalformedAddress(t *testing.T) {
	_, _, err := broker.Connect(context.Background(), config.Config{Address: "://missing-scheme"})
	if !errors.Is(err, perr.ErrConnectFailed) {
		t.Fatalf("want ErrConnectFailed, got %v", err)
	}
}

func TestConnect_KafkaNoBrokers(t *testing.T) {
	_, _, err := broker.Connect(context.Background(), config.Config{Address: "kafka://"})
	if !errors.Is(err, perr.ErrConnectFailed) {
		t.Fatalf("want ErrConnectFailed, got %v", err)
	}
}
