package tracing

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"google.golang.org/grpc/metadata"
)

// Wire-level trace headers. Traceparent/tracestate follow the W3C trace
// context format; the x-* headers are the discrete fallback and the values
// written back on every response.
const (
	HeaderTraceparent  = "traceparent"
	HeaderTracestate   = "tracestate"
	HeaderRequestID    = "x-request-id"
	HeaderTraceID      = "x-trace-id"
	HeaderSpanID       = "x-span-id"
	HeaderParentSpanID = "x-parent-span-id"
)

// Identifiers is the set of trace identifiers recovered from inbound headers.
type Identifiers struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	Flags        string
}

// ParseTraceparent parses a W3C traceparent header value of the shape
// version-traceId-parentSpanId-traceFlags. Values with fewer than four
// hyphen-delimited parts are rejected.
func ParseTraceparent(value string) (Identifiers, bool) {
	parts := strings.Split(strings.TrimSpace(value), "-")
	if len(parts) < 4 {
		return Identifiers{}, false
	}
	if parts[1] == "" || parts[2] == "" {
		return Identifiers{}, false
	}
	return Identifiers{
		TraceID:      parts[1],
		ParentSpanID: parts[2],
		Flags:        parts[3],
	}, true
}

// FormatTraceparent synthesizes a version-00 traceparent header value.
// Flags defaults to "01" (sampled) when empty.
func FormatTraceparent(traceID, spanID, flags string) string {
	if flags == "" {
		flags = "01"
	}
	return "00-" + traceID + "-" + spanID + "-" + flags
}

// FromHeaders recovers trace identifiers from inbound request headers,
// preferring the W3C traceparent header and falling back to the discrete
// x-trace-id / x-span-id / x-parent-span-id headers.
func FromHeaders(h http.Header) (Identifiers, bool) {
	if tp := h.Get(HeaderTraceparent); tp != "" {
		if ids, ok := ParseTraceparent(tp); ok {
			return ids, true
		}
	}

	ids := Identifiers{
		TraceID:      h.Get(HeaderTraceID),
		SpanID:       h.Get(HeaderSpanID),
		ParentSpanID: h.Get(HeaderParentSpanID),
	}
	if ids.TraceID == "" {
		return Identifiers{}, false
	}
	return ids, true
}

// WriteHeaders writes the response trace headers: x-request-id, x-trace-id,
// x-span-id and a synthesized traceparent.
func WriteHeaders(h http.Header, requestID string, ids Identifiers) {
	if requestID != "" {
		h.Set(HeaderRequestID, requestID)
	}
	if ids.TraceID == "" {
		return
	}
	h.Set(HeaderTraceID, ids.TraceID)
	if ids.SpanID != "" {
		h.Set(HeaderSpanID, ids.SpanID)
	}
	h.Set(HeaderTraceparent, FormatTraceparent(ids.TraceID, ids.SpanID, ids.Flags))
}

// HTTPCarrier adapts http.Header to the otel TextMapCarrier interface.
type HTTPCarrier http.Header

// Get returns the value associated with the passed key.
func (c HTTPCarrier) Get(key string) string {
	return http.Header(c).Get(key)
}

// Set stores the key-value pair.
func (c HTTPCarrier) Set(key, value string) {
	http.Header(c).Set(key, value)
}

// Keys lists the keys stored in this carrier.
func (c HTTPCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// GRPCCarrier adapts gRPC metadata to the otel TextMapCarrier interface.
type GRPCCarrier struct {
	md *metadata.MD
}

// NewGRPCCarrier wraps the given metadata for propagation.
func NewGRPCCarrier(md *metadata.MD) *GRPCCarrier {
	return &GRPCCarrier{md: md}
}

// Get returns the first value associated with the passed key.
func (c *GRPCCarrier) Get(key string) string {
	values := c.md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Set stores the key-value pair.
func (c *GRPCCarrier) Set(key, value string) {
	c.md.Set(key, value)
}

// Keys lists the keys stored in this carrier.
func (c *GRPCCarrier) Keys() []string {
	keys := make([]string, 0, len(*c.md))
	for k := range *c.md {
		keys = append(keys, k)
	}
	return keys
}

// ExtractHTTP returns a context enriched with trace information extracted
// from HTTP request headers via the global otel propagator.
func ExtractHTTP(ctx context.Context, header http.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, HTTPCarrier(header))
}

// InjectHTTP injects the context's trace information into HTTP headers via
// the global otel propagator.
func InjectHTTP(ctx context.Context, header http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, HTTPCarrier(header))
}

// ExtractGRPC returns a context enriched with trace information extracted
// from gRPC metadata.
func ExtractGRPC(ctx context.Context, md *metadata.MD) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, NewGRPCCarrier(md))
}

// InjectGRPC injects the context's trace information into gRPC metadata.
func InjectGRPC(ctx context.Context, md *metadata.MD) {
	otel.GetTextMapPropagator().Inject(ctx, NewGRPCCarrier(md))
}
