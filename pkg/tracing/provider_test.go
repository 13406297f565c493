package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TestActiveSpanPristineGlobalCachesUnavailable verifies the process-default
// global provider (otel's internal delegate, before any SetTracerProvider
// call) counts as no SDK: the lookup fails even with a valid span context in
// the context, and the unavailable flag is cached on the first lookup.
func TestActiveSpanPristineGlobalCachesUnavailable(t *testing.T) {
	if _, isSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider); isSDK {
		t.Skip("a real provider was already installed globally")
	}

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{0x01},
		SpanID:  trace.SpanID{0x01},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	var p Provider
	if _, _, ok := p.ActiveSpan(ctx); ok {
		t.Error("ActiveSpan ok = true without an installed SDK")
	}
	if !p.unavailable.Load() {
		t.Error("unavailable flag not cached after the first no-SDK lookup")
	}
	if _, _, ok := p.ActiveSpan(ctx); ok {
		t.Error("ActiveSpan retried after unavailable was cached")
	}
}

// TestNoSDKInstalled verifies the provider-shape checks directly.
func TestNoSDKInstalled(t *testing.T) {
	if !noSDKInstalled(noop.NewTracerProvider()) {
		t.Error("noop provider not recognized as no SDK")
	}
	if !noSDKInstalled(nil) {
		t.Error("nil provider not recognized as no SDK")
	}

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	if noSDKInstalled(tp) {
		t.Error("real SDK provider misreported as no SDK")
	}
}
