// Package bus provides publish/subscribe messaging for protobuf events with
// log-context propagation. It supports an in-memory backend for testing and
// NATS JetStream for production.
//
// Each delivery runs inside its own log scope, so fields set by the handler
// are isolated per message and every log record carries the delivery's
// request id. Handler failures are routed through the error classifier via
// the WithErrorRouting option, which applies the same loggability and
// transport rules as the HTTP and gRPC adapters.
//
// Example usage with the in-memory backend:
//
//	b := bus.NewMemory()
//	defer b.Close()
//
//	err := b.Subscribe(ctx, bus.TopicName("order_created"),
//	    func(ctx context.Context, msg proto.Message) error {
//	        logctx.Set(ctx, "order_id", orderID(msg))
//	        return processOrder(ctx, msg)
//	    },
//	    bus.WithScope(),
//	    bus.WithLogging(logger),
//	    bus.WithErrorRouting(classifier),
//	    bus.WithRetry(3, time.Second),
//	)
//
// Example usage with NATS JetStream:
//
//	cfg := config.EventBusConfig{
//	    Backend:    "jetstream",
//	    Servers:    []string{"nats://localhost:4222"},
//	    StreamName: "EVENTS",
//	}
//
//	b, err := bus.NewJetStream(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer b.Close()
package bus

import (
	"context"

	"google.golang.org/protobuf/proto"
)

// EventBus defines the interface for publishing and subscribing to protobuf
// events. All methods respect context cancellation and timeout.
type EventBus interface {
	// Publish sends a protobuf message to the specified topic. The message
	// is serialized to wire format and, where the backend supports headers,
	// the current scope's request and trace identifiers travel with it.
	Publish(ctx context.Context, topic string, message proto.Message) error

	// Subscribe registers a handler for messages on the specified topic.
	// Middleware options wrap the handler with scope creation, retry,
	// logging, error routing and metrics.
	Subscribe(ctx context.Context, topic string, handler HandlerFunc, options ...SubscribeOption) error

	// Close releases all resources and gracefully shuts down the event bus.
	Close() error
}

// HandlerFunc is the function signature for event handlers. A returned
// domain error is treated as permanent by the retry and redelivery logic;
// generic errors are considered transient.
type HandlerFunc func(ctx context.Context, message proto.Message) error

// SubscribeOption modifies subscription behavior by adding middleware.
type SubscribeOption func(*subscribeOptions)

type subscribeOptions struct {
	middlewares []Middleware
}

// Middleware wraps a HandlerFunc to add cross-cutting concerns.
type Middleware func(HandlerFunc) HandlerFunc

// applyMiddleware applies all middleware to the handler in reverse order
// so that the first middleware added is the outermost wrapper.
func applyMiddleware(handler HandlerFunc, middlewares []Middleware) HandlerFunc {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

func buildOptions(opts []SubscribeOption) *subscribeOptions {
	options := &subscribeOptions{
		middlewares: make([]Middleware, 0),
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
