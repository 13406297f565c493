package bus

import (
	"context"
	"testing"
	"time"

	"github.com/Combine-Capital/ctxlog/pkg/config"
	"github.com/Combine-Capital/ctxlog/pkg/errors"
	"github.com/Combine-Capital/ctxlog/pkg/logctx"
	"github.com/Combine-Capital/ctxlog/pkg/logging"
	"github.com/Combine-Capital/ctxlog/pkg/tracing"
)

func TestNewJetStreamRequiresServers(t *testing.T) {
	_, err := NewJetStream(context.Background(), config.EventBusConfig{
		StreamName: "EVENTS",
	})
	if err == nil {
		t.Fatal("expected error without servers")
	}
	if !errors.IsDomain(err) {
		t.Errorf("expected domain error, got %v", err)
	}
}

func TestNewJetStreamRequiresStreamName(t *testing.T) {
	_, err := NewJetStream(context.Background(), config.EventBusConfig{
		Servers: []string{"nats://localhost:4222"},
	})
	if err == nil {
		t.Fatal("expected error without stream name")
	}
	if !errors.IsDomain(err) {
		t.Errorf("expected domain error, got %v", err)
	}
}

func TestPublishHeadersFromScope(t *testing.T) {
	ctx := logctx.WithScope(context.Background(), logctx.NewScope())
	logctx.Set(ctx, logging.FieldRequestID, "req-1")
	logctx.Set(ctx, logging.FieldTraceID, "0af7651916cd43dd8448eb211c80319c")
	logctx.Set(ctx, logging.FieldSpanID, "b7ad6b7169203331")

	h := (&JetStreamEventBus{}).publishHeaders(ctx)

	if got := h.Get(tracing.HeaderRequestID); got != "req-1" {
		t.Errorf("request id header = %q, want req-1", got)
	}
	tp := h.Get(tracing.HeaderTraceparent)
	ids, ok := tracing.ParseTraceparent(tp)
	if !ok {
		t.Fatalf("traceparent header %q does not parse", tp)
	}
	if ids.TraceID != "0af7651916cd43dd8448eb211c80319c" {
		t.Errorf("trace id = %q", ids.TraceID)
	}
}

func TestPublishHeadersWithoutScope(t *testing.T) {
	h := (&JetStreamEventBus{}).publishHeaders(context.Background())
	if len(h) != 0 {
		t.Errorf("expected empty headers without a scope, got %v", h)
	}
}

func TestConsumerDefaults(t *testing.T) {
	j := &JetStreamEventBus{}

	if got := j.getMaxDeliver(); got != 3 {
		t.Errorf("max deliver default = %d, want 3", got)
	}
	if got := j.getAckWait(); got != 30*time.Second {
		t.Errorf("ack wait default = %v, want 30s", got)
	}
	if got := j.getMaxAckPending(); got != 1000 {
		t.Errorf("max ack pending default = %d, want 1000", got)
	}

	j.cfg.MaxDeliver = 5
	if got := j.getMaxDeliver(); got != 5 {
		t.Errorf("max deliver = %d, want 5", got)
	}
}

func TestConsumerName(t *testing.T) {
	j := &JetStreamEventBus{}
	if got := j.getConsumerName(TopicName("order_created")); got != "consumer-order_created" {
		t.Errorf("consumer name = %q", got)
	}

	j.cfg.ConsumerName = "billing"
	if got := j.getConsumerName(TopicName("order_created")); got != "billing-order_created" {
		t.Errorf("consumer name = %q", got)
	}
}
