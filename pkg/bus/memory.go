package bus

import (
	"context"
	"sync"

	"github.com/Combine-Capital/ctxlog/pkg/errors"
	"google.golang.org/protobuf/proto"
)

// MemoryEventBus is an in-memory implementation of EventBus using Go
// channels. It is designed for testing and development, not for production.
// Messages are delivered asynchronously within the same process.
type MemoryEventBus struct {
	mu            sync.RWMutex
	subscriptions map[string][]subscription
	closed        bool
}

type subscription struct {
	handler HandlerFunc
	ch      chan proto.Message
	done    chan struct{}
}

// NewMemory creates a new in-memory event bus.
func NewMemory() *MemoryEventBus {
	return &MemoryEventBus{
		subscriptions: make(map[string][]subscription),
	}
}

// Publish sends a message to all subscribers of the given topic.
// Returns an error if the bus is closed.
func (m *MemoryEventBus) Publish(ctx context.Context, topic string, message proto.Message) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return errors.New("BUS_CLOSED", "event bus is closed")
	}

	subs, ok := m.subscriptions[topic]
	if !ok || len(subs) == 0 {
		// No subscribers for this topic, silently succeed.
		return nil
	}

	// Clone the message so subscribers never share mutable state.
	cloned := proto.Clone(message)

	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub.ch <- cloned:
		case <-sub.done:
			continue
		}
	}

	return nil
}

// Subscribe registers a handler for the given topic. The handler runs in a
// separate goroutine; attach WithScope so each delivery gets its own log
// context, and WithErrorRouting so failures reach the classifier.
func (m *MemoryEventBus) Subscribe(ctx context.Context, topic string, handler HandlerFunc, options ...SubscribeOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.New("BUS_CLOSED", "event bus is closed")
	}

	opts := buildOptions(options)
	if len(opts.middlewares) > 0 {
		handler = applyMiddleware(handler, opts.middlewares)
	}

	sub := subscription{
		handler: handler,
		ch:      make(chan proto.Message, 100),
		done:    make(chan struct{}),
	}

	m.subscriptions[topic] = append(m.subscriptions[topic], sub)

	go m.runHandler(ctx, sub)

	return nil
}

// runHandler processes messages for a subscription. Handler errors are the
// responsibility of the error routing middleware; whatever escapes the
// middleware chain is dropped.
func (m *MemoryEventBus) runHandler(ctx context.Context, sub subscription) {
	defer close(sub.done)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.ch:
			if !ok {
				return
			}
			_ = sub.handler(ctx, msg)
		}
	}
}

// Close shuts down the event bus and closes all subscriptions.
func (m *MemoryEventBus) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true

	for _, subs := range m.subscriptions {
		for _, sub := range subs {
			close(sub.ch)
		}
	}

	m.subscriptions = make(map[string][]subscription)

	return nil
}

// Check reports whether the bus can accept messages.
func (m *MemoryEventBus) Check(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return errors.New("BUS_CLOSED", "event bus is closed")
	}

	return nil
}
