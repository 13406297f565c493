package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/Combine-Capital/ctxlog/pkg/config"
	"github.com/Combine-Capital/ctxlog/pkg/errors"
	"github.com/Combine-Capital/ctxlog/pkg/logctx"
	"github.com/Combine-Capital/ctxlog/pkg/logging"
	"github.com/Combine-Capital/ctxlog/pkg/tracing"
)

// JetStreamEventBus is a NATS JetStream implementation of EventBus.
// It provides distributed, persistent messaging with at-least-once delivery.
// Request and trace identifiers from the publisher's scope travel as message
// headers, and every delivery runs inside a fresh scope seeded from them.
type JetStreamEventBus struct {
	nc          *nats.Conn
	js          jetstream.JetStream
	cfg         config.EventBusConfig
	consumers   []jetstream.ConsumeContext
	consumersMu sync.Mutex
	closed      bool
	closedMu    sync.RWMutex
}

// NewJetStream creates a new NATS JetStream event bus. It connects to the
// NATS servers and creates or updates the configured stream.
func NewJetStream(ctx context.Context, cfg config.EventBusConfig) (*JetStreamEventBus, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.NewInvalidInput("BUS_CONFIG", "at least one NATS server is required")
	}

	if cfg.StreamName == "" {
		return nil, errors.NewInvalidInput("BUS_CONFIG", "stream name is required")
	}

	nc, err := nats.Connect(
		cfg.Servers[0],
		nats.MaxReconnects(-1),
		nats.ReconnectWait(1*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	bus := &JetStreamEventBus{
		nc:        nc,
		js:        js,
		cfg:       cfg,
		consumers: make([]jetstream.ConsumeContext, 0),
	}

	if err := bus.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	return bus, nil
}

// ensureStream creates or updates the JetStream stream.
func (j *JetStreamEventBus) ensureStream(ctx context.Context) error {
	wildcard := topicPrefix + ".>"

	stream, err := j.js.Stream(ctx, j.cfg.StreamName)
	if err == nil {
		info, err := stream.Info(ctx)
		if err != nil {
			return fmt.Errorf("failed to get stream info: %w", err)
		}

		hasWildcard := false
		for _, subj := range info.Config.Subjects {
			if subj == wildcard {
				hasWildcard = true
				break
			}
		}

		if !hasWildcard {
			_, err = j.js.UpdateStream(ctx, jetstream.StreamConfig{
				Name:     j.cfg.StreamName,
				Subjects: append(info.Config.Subjects, wildcard),
			})
			if err != nil {
				return fmt.Errorf("failed to update stream: %w", err)
			}
		}

		return nil
	}

	_, err = j.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        j.cfg.StreamName,
		Description: "Service events stream",
		Subjects:    []string{wildcard},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// Publish sends a protobuf message to the specified topic. The current
// scope's request id and trace identifiers are attached as message headers
// so consumers join the same logical request.
func (j *JetStreamEventBus) Publish(ctx context.Context, topic string, message proto.Message) error {
	j.closedMu.RLock()
	defer j.closedMu.RUnlock()

	if j.closed {
		return errors.New("BUS_CLOSED", "event bus is closed")
	}

	data, err := proto.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	_, err = j.js.PublishMsg(ctx, &nats.Msg{
		Subject: topic,
		Data:    data,
		Header:  j.publishHeaders(ctx),
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to publish message: %w", err)
	}

	return nil
}

// publishHeaders captures the scope's propagation identifiers as NATS
// headers. An empty header set is returned when the context has no scope.
func (j *JetStreamEventBus) publishHeaders(ctx context.Context) nats.Header {
	h := nats.Header{}

	if id := logctx.GetString(ctx, logging.FieldRequestID); id != "" {
		h.Set(tracing.HeaderRequestID, id)
	}
	if traceID := logctx.GetString(ctx, logging.FieldTraceID); traceID != "" {
		spanID := logctx.GetString(ctx, logging.FieldSpanID)
		h.Set(tracing.HeaderTraceparent, tracing.FormatTraceparent(traceID, spanID, ""))
	}

	return h
}

// Subscribe creates a durable consumer and starts consuming messages from
// the topic. Each delivery runs in a fresh scope seeded from the message
// headers, with component set to rpc and a request id generated when the
// publisher supplied none.
func (j *JetStreamEventBus) Subscribe(ctx context.Context, topic string, handler HandlerFunc, options ...SubscribeOption) error {
	j.closedMu.RLock()
	defer j.closedMu.RUnlock()

	if j.closed {
		return errors.New("BUS_CLOSED", "event bus is closed")
	}

	opts := buildOptions(options)
	if len(opts.middlewares) > 0 {
		handler = applyMiddleware(handler, opts.middlewares)
	}

	consumerName := j.getConsumerName(topic)

	consumer, err := j.js.CreateOrUpdateConsumer(ctx, j.cfg.StreamName, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		FilterSubject: topic,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    j.getMaxDeliver(),
		AckWait:       j.getAckWait(),
		MaxAckPending: j.getMaxAckPending(),
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		deliveryCtx := j.deliveryContext(ctx, topic, msg)

		// The payload type is not recoverable from the wire format alone,
		// so handlers receive the raw bytes and unmarshal to their
		// expected message type.
		err := handler(deliveryCtx, &RawMessage{Data: msg.Data()})
		if err == nil {
			msg.Ack()
			return
		}

		// Domain errors are deterministic outcomes; redelivering the
		// message cannot change them. Generic errors get another try.
		if errors.IsDomain(err) {
			msg.Ack()
		} else {
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	j.consumersMu.Lock()
	j.consumers = append(j.consumers, consumeCtx)
	j.consumersMu.Unlock()

	return nil
}

// deliveryContext builds the per-delivery context: a fresh scope carrying
// the propagated request id, trace identifiers and the rpc component.
func (j *JetStreamEventBus) deliveryContext(ctx context.Context, topic string, msg jetstream.Msg) context.Context {
	ctx = logctx.WithScope(ctx, logctx.NewScope())

	requestID := msg.Headers().Get(tracing.HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logctx.Set(ctx, logging.FieldRequestID, requestID)
	logctx.Set(ctx, logging.FieldComponent, logging.ComponentRPC)
	logctx.Set(ctx, logging.FieldAction, ParseEventType(topic))

	if tp := msg.Headers().Get(tracing.HeaderTraceparent); tp != "" {
		if ids, ok := tracing.ParseTraceparent(tp); ok {
			logctx.Set(ctx, logging.FieldTraceID, ids.TraceID)
			logctx.Set(ctx, logging.FieldParentSpanID, ids.ParentSpanID)
		}
	}

	return ctx
}

func (j *JetStreamEventBus) getConsumerName(topic string) string {
	if j.cfg.ConsumerName != "" {
		return fmt.Sprintf("%s-%s", j.cfg.ConsumerName, ParseEventType(topic))
	}
	return fmt.Sprintf("consumer-%s", ParseEventType(topic))
}

func (j *JetStreamEventBus) getMaxDeliver() int {
	if j.cfg.MaxDeliver > 0 {
		return j.cfg.MaxDeliver
	}
	return 3
}

func (j *JetStreamEventBus) getAckWait() time.Duration {
	if j.cfg.AckWait > 0 {
		return j.cfg.AckWait
	}
	return 30 * time.Second
}

func (j *JetStreamEventBus) getMaxAckPending() int {
	if j.cfg.MaxAckPending > 0 {
		return j.cfg.MaxAckPending
	}
	return 1000
}

// Close gracefully shuts down the event bus, stopping all consumers and
// closing the NATS connection.
func (j *JetStreamEventBus) Close() error {
	j.closedMu.Lock()
	defer j.closedMu.Unlock()

	if j.closed {
		return nil
	}

	j.closed = true

	j.consumersMu.Lock()
	for _, consumer := range j.consumers {
		consumer.Stop()
	}
	j.consumers = nil
	j.consumersMu.Unlock()

	if j.nc != nil {
		j.nc.Drain()
		j.nc.Close()
	}

	return nil
}

// Check verifies connectivity to the NATS server.
func (j *JetStreamEventBus) Check(ctx context.Context) error {
	j.closedMu.RLock()
	defer j.closedMu.RUnlock()

	if j.closed {
		return errors.New("BUS_CLOSED", "event bus is closed")
	}

	if j.nc == nil {
		return errors.New("BUS_DISCONNECTED", "NATS connection is nil")
	}

	status := j.nc.Status()
	if status != nats.CONNECTED {
		return errors.Newf("BUS_DISCONNECTED", "NATS connection not connected: status=%v", status)
	}

	if _, err := j.nc.RTT(); err != nil {
		return errors.New("BUS_DISCONNECTED", "NATS RTT check failed").WithCause(err)
	}

	return nil
}

// RawMessage is a wrapper for raw protobuf bytes when the type is unknown.
// Handlers should unmarshal Data into their expected message type.
type RawMessage struct {
	Data []byte
}

// Reset implements proto.Message.
func (r *RawMessage) Reset() {
	r.Data = nil
}

// String implements proto.Message.
func (r *RawMessage) String() string {
	return fmt.Sprintf("RawMessage{%d bytes}", len(r.Data))
}

// ProtoMessage implements proto.Message.
func (r *RawMessage) ProtoMessage() {}

// ProtoReflect implements protoreflect.Message.
func (r *RawMessage) ProtoReflect() protoreflect.Message {
	return nil
}
