package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/Combine-Capital/ctxlog/pkg/errors"
)

func TestMemoryEventBus_PublishSubscribe(t *testing.T) {
	b := NewMemory()
	defer b.Close()

	ctx := context.Background()
	topic := TopicName("test_event")

	var received atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)

	handler := HandlerFunc(func(ctx context.Context, msg proto.Message) error {
		v := msg.(*wrapperspb.StringValue)
		if v.Value != "order-123" {
			t.Errorf("expected order-123, got %s", v.Value)
		}
		received.Add(1)
		wg.Done()
		return nil
	})

	if err := b.Subscribe(ctx, topic, handler); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	if err := b.Publish(ctx, topic, wrapperspb.String("order-123")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	wg.Wait()

	if received.Load() != 1 {
		t.Errorf("expected 1 message received, got %d", received.Load())
	}
}

func TestMemoryEventBus_MultipleSubscribers(t *testing.T) {
	b := NewMemory()
	defer b.Close()

	ctx := context.Background()
	topic := TopicName("test_event")

	var sub1Count, sub2Count atomic.Int32
	var wg sync.WaitGroup
	wg.Add(2)

	handler1 := HandlerFunc(func(ctx context.Context, msg proto.Message) error {
		sub1Count.Add(1)
		wg.Done()
		return nil
	})

	handler2 := HandlerFunc(func(ctx context.Context, msg proto.Message) error {
		sub2Count.Add(1)
		wg.Done()
		return nil
	})

	if err := b.Subscribe(ctx, topic, handler1); err != nil {
		t.Fatalf("Subscribe 1 failed: %v", err)
	}
	if err := b.Subscribe(ctx, topic, handler2); err != nil {
		t.Fatalf("Subscribe 2 failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	if err := b.Publish(ctx, topic, wrapperspb.String("multi")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	wg.Wait()

	if sub1Count.Load() != 1 {
		t.Errorf("subscriber 1: expected 1 message, got %d", sub1Count.Load())
	}
	if sub2Count.Load() != 1 {
		t.Errorf("subscriber 2: expected 1 message, got %d", sub2Count.Load())
	}
}

func TestMemoryEventBus_Close(t *testing.T) {
	b := NewMemory()

	ctx := context.Background()
	topic := TopicName("test_event")

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	err := b.Publish(ctx, topic, wrapperspb.String("closed"))
	if err == nil {
		t.Error("expected error when publishing to closed bus")
	}
	if !errors.IsDomain(err) {
		t.Error("expected domain error for closed bus")
	}

	handler := HandlerFunc(func(ctx context.Context, msg proto.Message) error {
		return nil
	})
	if err := b.Subscribe(ctx, topic, handler); err == nil {
		t.Error("expected error when subscribing to closed bus")
	}
}

func TestMemoryEventBus_NoSubscribers(t *testing.T) {
	b := NewMemory()
	defer b.Close()

	ctx := context.Background()

	if err := b.Publish(ctx, TopicName("nonexistent"), wrapperspb.String("nobody")); err != nil {
		t.Errorf("publish with no subscribers should succeed, got error: %v", err)
	}
}

func TestMemoryEventBus_HandlerError(t *testing.T) {
	b := NewMemory()
	defer b.Close()

	ctx := context.Background()
	topic := TopicName("error_test")

	var wg sync.WaitGroup
	wg.Add(1)

	handler := HandlerFunc(func(ctx context.Context, msg proto.Message) error {
		defer wg.Done()
		return errors.New("SIMULATED", "simulated error")
	})

	if err := b.Subscribe(ctx, topic, handler); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	// Handler will error but the bus keeps running.
	if err := b.Publish(ctx, topic, wrapperspb.String("boom")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	wg.Wait()
}

func TestMemoryEventBus_DoubleClose(t *testing.T) {
	b := NewMemory()

	if err := b.Close(); err != nil {
		t.Fatalf("first close failed: %v", err)
	}

	if err := b.Close(); err != nil {
		t.Errorf("second close should not error, got: %v", err)
	}
}
