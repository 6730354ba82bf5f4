package nats_test

import (
	"errors"
	"testing"

	"github.com/next-trace/scg-pubsub/adapters/nats"
	perr "github.com/next-trace/scg-pubsub/contract/errors"
)

func TestNewClient_EmptyURL(t *testing.T) {
	_, _, err := nats.NewClient(nats.Config{})
	if err == nil {
		t.Fatalf("expected error")
	}

	if !errors.Is(err, perr.ErrConnectFailed) {
		t.Fatalf("want ErrConnectFailed, got %v", err)
	}
}
