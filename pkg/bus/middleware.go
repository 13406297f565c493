package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"

	"github.com/Combine-Capital/ctxlog/pkg/errors"
	"github.com/Combine-Capital/ctxlog/pkg/logctx"
	"github.com/Combine-Capital/ctxlog/pkg/logging"
	"github.com/Combine-Capital/ctxlog/pkg/metrics"
	"github.com/Combine-Capital/ctxlog/pkg/retry"
)

// WithScope runs each delivery inside its own log scope with a generated
// request id and the rpc component. It is a no-op on backends that already
// seed a scope per delivery, such as JetStream. Attach it first so every
// other middleware and the handler see the scope.
//
// Example:
//
//	b.Subscribe(ctx, topic, handler, bus.WithScope())
func WithScope() SubscribeOption {
	return func(opts *subscribeOptions) {
		middleware := func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, msg proto.Message) error {
				if logctx.FromContext(ctx) != nil {
					return next(ctx, msg)
				}

				ctx = logctx.WithScope(ctx, logctx.NewScope())
				logctx.Set(ctx, logging.FieldRequestID, uuid.NewString())
				logctx.Set(ctx, logging.FieldComponent, logging.ComponentRPC)
				return next(ctx, msg)
			}
		}
		opts.middlewares = append(opts.middlewares, middleware)
	}
}

// WithRetry wraps a handler with retry logic for transient errors.
// Domain errors are not retried.
//
// Example:
//
//	b.Subscribe(ctx, topic, handler, bus.WithRetry(3, time.Second))
func WithRetry(maxAttempts int, initialDelay time.Duration) SubscribeOption {
	return func(opts *subscribeOptions) {
		middleware := func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, msg proto.Message) error {
				cfg := retry.Config{
					MaxAttempts:  uint(maxAttempts),
					InitialDelay: initialDelay,
					MaxDelay:     30 * time.Second,
					Multiplier:   2.0,
					Policy:       retry.PolicyTransient,
				}

				return retry.Do(ctx, cfg, func() error {
					return next(ctx, msg)
				})
			}
		}
		opts.middlewares = append(opts.middlewares, middleware)
	}
}

// WithLogging logs the start and completion of message processing with the
// delivery's scope fields attached. Failures are not logged here; route
// them through WithErrorRouting so the classifier's loggability rules apply.
//
// Example:
//
//	b.Subscribe(ctx, topic, handler, bus.WithLogging(logger))
func WithLogging(logger *logging.Logger) SubscribeOption {
	return func(opts *subscribeOptions) {
		middleware := func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, msg proto.Message) error {
				msgType := fmt.Sprintf("%T", msg)

				logger.Debug(ctx, "event received", logging.WithMeta(logging.Fields{
					"message_type": msgType,
				}))

				start := time.Now()
				err := next(ctx, msg)

				if err == nil {
					logger.Info(ctx, "event processed", logging.WithMeta(logging.Fields{
						"message_type":        msgType,
						logging.FieldDuration: time.Since(start).Milliseconds(),
					}))
				}

				return err
			}
		}
		opts.middlewares = append(opts.middlewares, middleware)
	}
}

// WithErrorRouting routes handler failures through the error classifier,
// applying the same loggability and transport rules as the HTTP and gRPC
// adapters. The returned error wraps the original, so domain errors still
// short-circuit retry and redelivery.
//
// Example:
//
//	b.Subscribe(ctx, topic, handler, bus.WithErrorRouting(classifier))
func WithErrorRouting(c *errors.Classifier) SubscribeOption {
	return func(opts *subscribeOptions) {
		middleware := func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, msg proto.Message) error {
				if err := next(ctx, msg); err != nil {
					return c.Message(ctx, err)
				}
				return nil
			}
		}
		opts.middlewares = append(opts.middlewares, middleware)
	}
}

var (
	busMetricsOnce  sync.Once
	eventsProcessed *metrics.Counter
	eventDuration   *metrics.Histogram
)

func busMetrics() (*metrics.Counter, *metrics.Histogram) {
	busMetricsOnce.Do(func() {
		eventsProcessed, _ = metrics.NewCounter(metrics.CounterOpts{
			Namespace: "ctxlog",
			Subsystem: "bus",
			Name:      "events_processed_total",
			Help:      "Number of bus events processed, by message type and outcome.",
			Labels:    []string{"message_type", "outcome"},
		})
		eventDuration, _ = metrics.NewHistogram(metrics.HistogramOpts{
			Namespace: "ctxlog",
			Subsystem: "bus",
			Name:      "event_duration_seconds",
			Help:      "Bus event processing duration in seconds, by message type.",
			Labels:    []string{"message_type"},
		})
	})
	return eventsProcessed, eventDuration
}

// WithMetrics records the duration and outcome of message processing.
//
// Example:
//
//	b.Subscribe(ctx, topic, handler, bus.WithMetrics())
func WithMetrics() SubscribeOption {
	return func(opts *subscribeOptions) {
		middleware := func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, msg proto.Message) error {
				processed, duration := busMetrics()

				start := time.Now()
				err := next(ctx, msg)

				msgType := fmt.Sprintf("%T", msg)
				outcome := "success"
				if err != nil {
					outcome = "failure"
				}
				if processed != nil {
					processed.Inc(msgType, outcome)
				}
				if duration != nil {
					duration.Observe(time.Since(start).Seconds(), msgType)
				}

				return err
			}
		}
		opts.middlewares = append(opts.middlewares, middleware)
	}
}

// WithErrorHandler wraps a handler with custom error handling. The
// errorHandler is invoked when the wrapped handler returns an error. If it
// returns nil, the error is considered handled and won't propagate.
func WithErrorHandler(errorHandler func(context.Context, proto.Message, error) error) SubscribeOption {
	return func(opts *subscribeOptions) {
		middleware := func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, msg proto.Message) error {
				if err := next(ctx, msg); err != nil {
					return errorHandler(ctx, msg, err)
				}
				return nil
			}
		}
		opts.middlewares = append(opts.middlewares, middleware)
	}
}

// WithRecovery converts handler panics into internal domain errors so a
// poisoned message cannot kill the consumer goroutine.
//
// Example:
//
//	b.Subscribe(ctx, topic, handler, bus.WithRecovery())
func WithRecovery() SubscribeOption {
	return func(opts *subscribeOptions) {
		middleware := func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, msg proto.Message) (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = errors.Newf("HANDLER_PANIC", "handler panicked: %v", r)
					}
				}()
				return next(ctx, msg)
			}
		}
		opts.middlewares = append(opts.middlewares, middleware)
	}
}

// WithTimeout bounds handler execution. A handler that outlives the timeout
// keeps running in its goroutine, but the delivery is treated as failed.
//
// Example:
//
//	b.Subscribe(ctx, topic, handler, bus.WithTimeout(30*time.Second))
func WithTimeout(timeout time.Duration) SubscribeOption {
	return func(opts *subscribeOptions) {
		middleware := func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, msg proto.Message) error {
				ctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()

				done := make(chan error, 1)
				go func() {
					done <- next(ctx, msg)
				}()

				select {
				case err := <-done:
					return err
				case <-ctx.Done():
					return fmt.Errorf("handler timeout exceeded: %w", ctx.Err())
				}
			}
		}
		opts.middlewares = append(opts.middlewares, middleware)
	}
}
