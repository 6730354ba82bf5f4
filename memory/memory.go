package memory

import (
	"github.com/next-trace/scg-pubsub/adapters/inmemory"
	cpub "github.com/next-trace/scg-pubsub/contract/pubsub"
)

// New constructs an in-memory backed client and returns it as a contract
// Client along with a cleanup function that closes the broker.
func New() (cpub.Client, func()) { //nolint:ireturn
	b := inmemory.New()
	cleanup := func() { _ = b.Close() }

	return b, cleanup
}
