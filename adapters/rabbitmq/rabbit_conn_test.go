package rabbitmq_test

import (
	"errors"
	"testing"

	"github.com/next-trace/scg-pubsub/adapters/rabbitmq"
	perr "github.com/next-trace/scg-pubsub/contract/errors"
)

func TestNewClient_EmptyURL(t *testing.T) {
	_, _, err := rabbitmq.NewClient(rabbitmq.Config{URL: "", ConnTimeout: 0})
	if err == nil {
		t.Fatalf("expected error for empty URL")
	}

	if !errors.Is(err, perr.ErrConnectFailed) {
		t.Fatalf("want ErrConnectFailed, got %v", err)
	}
}
