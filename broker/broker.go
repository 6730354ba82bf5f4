// Package broker maps a configured backend address onto a concrete adapter
// by URL scheme, so composition roots stay independent of the transport.
package broker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/next-trace/scg-pubsub/adapters/inmemory"
	"github.com/next-trace/scg-pubsub/adapters/kafka"
	natsadapter "github.com/next-trace/scg-pubsub/adapters/nats"
	"github.com/next-trace/scg-pubsub/adapters/rabbitmq"
	"github.com/next-trace/scg-pubsub/config"
	perr "github.com/next-trace/scg-pubsub/contract/errors"
	cpub "github.com/next-trace/scg-pubsub/contract/pubsub"
)

// Connect builds the client for the configured address and returns it with
// a cleanup. Supported schemes: memory, nats, amqp, amqps, kafka (with a
// comma-separated broker list in the host part).
func Connect(ctx context.Context, cfg config.Config) (cpub.Client, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	if cfg.Address == "" {
		return nil, nil, fmt.Errorf("connect: %w", perr.ErrAddressRequired)
	}

	u, err := url.Parse(cfg.Address)
	if err != nil {
		return nil, nil, fmt.Errorf("parse address %q: %w", cfg.Address, errors.Join(perr.ErrConnectFailed, err))
	}

	switch u.Scheme {
	case "memory":
		b := inmemory.New()
		return b, func() { _ = b.Close() }, nil
	case "nats":
		return connectNATS(cfg)
	case "amqp", "amqps":
		return connectRabbit(cfg)
	case "kafka":
		return connectKafka(cfg, u)
	default:
		return nil, nil, fmt.Errorf("address %q: %w", cfg.Address, perr.ErrUnknownScheme)
	}
}

func connectNATS(cfg config.Config) (cpub.Client, func(), error) {
	c, cleanup, err := natsadapter.NewClient(natsadapter.Config{
		URL:           cfg.Address,
		Name:          cfg.Name,
		ConnTimeout:   cfg.ConnTimeout,
		MaxReconnects: cfg.MaxReconnects,
	})
	if err != nil {
		return nil, nil, err
	}

	return c, cleanup, nil
}

func connectRabbit(cfg config.Config) (cpub.Client, func(), error) {
	c, cleanup, err := rabbitmq.NewClient(rabbitmq.Config{
		URL:         cfg.Address,
		ConnTimeout: cfg.ConnTimeout,
	})
	if err != nil {
		return nil, nil, err
	}

	return c, cleanup, nil
}

func connectKafka(cfg config.Config, u *url.URL) (cpub.Client, func(), error) {
	var brokers []string
	if u.Host != "" {
		brokers = strings.Split(u.Host, ",")
	}

	c, cleanup, err := kafka.NewClient(kafka.Config{Brokers: brokers, ClientID: cfg.Name})
	if err != nil {
		return nil, nil, err
	}

	return c, cleanup, nil
}
