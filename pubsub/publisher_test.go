package pubsub_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	perr "github.com/next-trace/scg-pubsub/contract/errors"
	cpub "github.com/next-trace/scg-pubsub/contract/pubsub"
	"github.com/next-trace/scg-pubsub/pubsub"
)

// fakes

type fakeProducer struct {
	mu     sync.Mutex
	sends  [][]byte
	err    error
	closed bool
}

func (f *fakeProducer) Send(_ context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sends = append(f.sends, payload)

	return f.err
}

func (f *fakeProducer) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()

	return nil
}

func (f *fakeProducer) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.sends)
}

type fakeClient struct {
	mu        sync.Mutex
	creates   map[string]int
	producers map[string]*fakeProducer
	createErr error
}

func (f *fakeClient) CreateProducer(_ context.Context, topic string) (cpub.Producer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.creates == nil {
		f.creates = map[string]int{}
	}
	f.creates[topic]++

	if f.createErr != nil {
		return nil, f.createErr
	}

	if f.producers == nil {
		f.producers = map[string]*fakeProducer{}
	}

	p, ok := f.producers[topic]
	if !ok {
		p = &fakeProducer{}
		f.producers[topic] = p
	}

	return p, nil
}

func (f *fakeClient) Subscribe(context.Context, string, string) (cpub.Subscription, error) {
	return nil, errors.New("not used")
}

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) createCount(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.creates[topic]
}

type payload struct {
	A int `json:"a"`
}

func Test_Publisher_OneProducerPerTopic(t *testing.T) {
	fc := &fakeClient{}
	p := pubsub.NewPublisher(fc, nil)

	if err := p.Send(context.Background(), "orders", payload{A: 1}); err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := p.Send(context.Background(), "invoices", payload{A: 2}); err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := p.Send(context.Background(), "orders", payload{A: 3}); err != nil {
		t.Fatalf("send: %v", err)
	}

	if got := fc.createCount("orders"); got != 1 {
		t.Fatalf("orders creates=%d", got)
	}

	if got := fc.createCount("invoices"); got != 1 {
		t.Fatalf("invoices creates=%d", got)
	}

	if got := fc.producers["orders"].sendCount(); got != 2 {
		t.Fatalf("orders sends=%d", got)
	}
}

func Test_Publisher_EmptyTopic(t *testing.T) {
	p := pubsub.NewPublisher(&fakeClient{}, nil)

	if err := p.Send(context.Background(), "", payload{}); !errors.Is(err, perr.ErrTopicRequired) {
		t.Fatalf("want ErrTopicRequired, got %v", err)
	}
}

func Test_Publisher_SerializationError_NoProducerTouched(t *testing.T) {
	fc := &fakeClient{}
	p := pubsub.NewPublisher(fc, nil)

	err := p.Send(context.Background(), "orders", func() {})
	if !errors.Is(err, perr.ErrSerializationFailed) {
		t.Fatalf("want ErrSerializationFailed, got %v", err)
	}

	if got := fc.createCount("orders"); got != 0 {
		t.Fatalf("expected no producer creation, got %d", got)
	}
}

func Test_Publisher_CreateFailure_NotCached(t *testing.T) {
	fc := &fakeClient{createErr: errors.New("broker down")}
	p := pubsub.NewPublisher(fc, nil)

	if err := p.Send(context.Background(), "orders", payload{A: 1}); !errors.Is(err, perr.ErrProducerFailed) {
		t.Fatalf("want ErrProducerFailed, got %v", err)
	}

	// A failed creation caches nothing; the next send tries again.
	fc.mu.Lock()
	fc.createErr = nil
	fc.mu.Unlock()

	if err := p.Send(context.Background(), "orders", payload{A: 2}); err != nil {
		t.Fatalf("send after recovery: %v", err)
	}

	if got := fc.createCount("orders"); got != 2 {
		t.Fatalf("creates=%d", got)
	}
}

func Test_Publisher_SendFailure_EntryStaysCached(t *testing.T) {
	fc := &fakeClient{producers: map[string]*fakeProducer{"orders": {err: errors.New("broken pipe")}}}
	p := pubsub.NewPublisher(fc, nil)

	if err := p.Send(context.Background(), "orders", payload{A: 1}); !errors.Is(err, perr.ErrSendFailed) {
		t.Fatalf("want ErrSendFailed, got %v", err)
	}

	// No eviction on send failure: the same producer is reused.
	_ = p.Send(context.Background(), "orders", payload{A: 2})

	if got := fc.createCount("orders"); got != 1 {
		t.Fatalf("creates=%d", got)
	}

	if got := fc.producers["orders"].sendCount(); got != 2 {
		t.Fatalf("sends=%d", got)
	}
}

func Test_Publisher_ConcurrentFirstSend_SingleCreate(t *testing.T) {
	fc := &fakeClient{}
	p := pubsub.NewPublisher(fc, nil)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := p.Send(context.Background(), "orders", payload{A: 1}); err != nil {
				t.Errorf("send: %v", err)
			}
		}()
	}

	wg.Wait()

	if got := fc.createCount("orders"); got != 1 {
		t.Fatalf("creates=%d, want exactly one", got)
	}

	if got := fc.producers["orders"].sendCount(); got != 25 {
		t.Fatalf("sends=%d", got)
	}
}

func Test_Publisher_NilClient(t *testing.T) {
	p := pubsub.NewPublisher(nil, nil)

	if err := p.Send(context.Background(), "orders", payload{}); !errors.Is(err, perr.ErrClientRequired) {
		t.Fatalf("want ErrClientRequired, got %v", err)
	}
}

func Test_Publisher_Close_ClosesAllProducers(t *testing.T) {
	fc := &fakeClient{}
	p := pubsub.NewPublisher(fc, nil)

	_ = p.Send(context.Background(), "orders", payload{A: 1})
	_ = p.Send(context.Background(), "invoices", payload{A: 2})

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	for topic, prod := range fc.producers {
		if !prod.closed {
			t.Fatalf("producer for %q not closed", topic)
		}
	}
}
