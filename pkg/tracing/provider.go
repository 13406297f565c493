// Package tracing exposes the distributed-trace identifiers consumed by the
// logging core. It does not create spans: it reads the active span installed
// by whatever OpenTelemetry SDK the host application configured, and parses
// or synthesizes W3C trace-context headers at transport boundaries.
package tracing

import (
	"context"
	"reflect"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Provider resolves trace identifiers from the ambient OpenTelemetry setup.
// The zero value is ready to use. Once a lookup finds no usable tracer
// provider, the provider caches that fact and never retries.
type Provider struct {
	unavailable atomic.Bool
}

// ActiveSpan returns the trace and span id of the active span in ctx.
// ok is false when tracing is unavailable or no span is recording.
func (p *Provider) ActiveSpan(ctx context.Context) (traceID, spanID string, ok bool) {
	if p.unavailable.Load() {
		return "", "", false
	}

	if noSDKInstalled(otel.GetTracerProvider()) {
		// No SDK installed for this process; don't check again.
		p.unavailable.Store(true)
		return "", "", false
	}

	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", "", false
	}
	return sc.TraceID().String(), sc.SpanID().String(), true
}

// noSDKInstalled reports whether the global tracer provider is one of the
// two no-SDK shapes: an explicit noop provider, or otel's uninitialized
// global delegate (what GetTracerProvider returns before SetTracerProvider
// has ever been called). The delegate type is unexported, so it is
// recognized by its package path.
func noSDKInstalled(tp trace.TracerProvider) bool {
	if _, isNoop := tp.(noop.TracerProvider); isNoop {
		return true
	}

	t := reflect.TypeOf(tp)
	if t == nil {
		return true
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.PkgPath() == "go.opentelemetry.io/otel/internal/global"
}
