package logging

import (
	"bytes"
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/Combine-Capital/ctxlog/pkg/logctx"
	"github.com/Combine-Capital/ctxlog/pkg/tracing"
)

func TestUnaryInterceptorScopeAndRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(t, &buf)
	interceptor := UnaryServerInterceptor(logger)

	md := metadata.Pairs(
		tracing.HeaderRequestID, "rpc-req-1",
		tracing.HeaderTraceparent, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
	)
	ctx := metadata.NewIncomingContext(context.Background(), md)

	resp, err := interceptor(ctx, "req", &grpc.UnaryServerInfo{FullMethod: "/orders.Orders/Place"},
		func(ctx context.Context, req any) (any, error) {
			if got := logctx.GetString(ctx, FieldRequestID); got != "rpc-req-1" {
				t.Errorf("handler request_id = %q, want rpc-req-1", got)
			}
			if got := logctx.GetString(ctx, FieldComponent); got != ComponentRPC {
				t.Errorf("handler component = %q, want rpc", got)
			}
			return "ok", nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "ok" {
		t.Errorf("resp = %v", resp)
	}

	recs := decodeRecords(t, &buf)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	for _, rec := range recs {
		if rec["request_id"] != "rpc-req-1" {
			t.Errorf("request_id = %v", rec["request_id"])
		}
		if rec["component"] != ComponentRPC {
			t.Errorf("component = %v", rec["component"])
		}
		if rec["operation_id"] != "/orders.Orders/Place" {
			t.Errorf("operation_id = %v", rec["operation_id"])
		}
		if rec["trace_id"] != "4bf92f3577b34da6a3ce929d0e0e4736" {
			t.Errorf("trace_id = %v", rec["trace_id"])
		}
	}
	if recs[0]["message"] != "rpc started" || recs[1]["message"] != "rpc completed" {
		t.Errorf("messages = %v, %v", recs[0]["message"], recs[1]["message"])
	}
	if _, ok := recs[1]["duration_ms"]; !ok {
		t.Error("duration_ms missing from completion record")
	}
}

func TestUnaryInterceptorGeneratesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(t, &buf)
	interceptor := UnaryServerInterceptor(logger)

	_, err := interceptor(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: "/x.Y/Z"},
		func(ctx context.Context, req any) (any, error) {
			if logctx.GetString(ctx, FieldRequestID) == "" {
				t.Error("request_id not generated without inbound metadata")
			}
			return nil, nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUnaryInterceptorErrorCompletion(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(t, &buf)
	interceptor := UnaryServerInterceptor(logger)

	_, err := interceptor(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: "/x.Y/Z"},
		func(ctx context.Context, req any) (any, error) {
			return nil, status.Error(codes.NotFound, "missing")
		})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("handler error changed: %v", err)
	}

	recs := decodeRecords(t, &buf)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	completed := recs[1]
	if completed["level"] != "error" {
		t.Errorf("completion level = %v, want error", completed["level"])
	}
	if completed["rpc_code"] != "NotFound" {
		t.Errorf("rpc_code = %v", completed["rpc_code"])
	}
}

func TestStreamInterceptorScopedContext(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(t, &buf)
	interceptor := StreamServerInterceptor(logger)

	ss := &stubServerStream{ctx: context.Background()}
	err := interceptor(nil, ss, &grpc.StreamServerInfo{FullMethod: "/x.Y/Watch", IsServerStream: true},
		func(srv any, stream grpc.ServerStream) error {
			if logctx.GetString(stream.Context(), FieldComponent) != ComponentRPC {
				t.Error("stream handler context not scoped")
			}
			return nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recs := decodeRecords(t, &buf)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0]["message"] != "rpc stream started" {
		t.Errorf("first message = %v", recs[0]["message"])
	}
}

type stubServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *stubServerStream) Context() context.Context { return s.ctx }
