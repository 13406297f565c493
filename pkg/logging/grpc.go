package logging

import (
	"context"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/Combine-Capital/ctxlog/pkg/logctx"
	"github.com/Combine-Capital/ctxlog/pkg/tracing"
)

// rpcContext opens the remote-call scope: fresh context bag, request id,
// component tag and trace identifiers from inbound metadata.
func rpcContext(ctx context.Context, fullMethod string) context.Context {
	scope := logctx.NewScope()
	ctx = logctx.WithScope(ctx, scope)

	requestID := uuid.NewString()
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(tracing.HeaderRequestID); len(vals) > 0 && vals[0] != "" {
			requestID = vals[0]
		}
		if vals := md.Get(tracing.HeaderTraceparent); len(vals) > 0 {
			if ids, ok := tracing.ParseTraceparent(vals[0]); ok {
				scope.Set(FieldTraceID, ids.TraceID)
				scope.Set(FieldParentSpanID, ids.ParentSpanID)
			}
		} else if vals := md.Get(tracing.HeaderTraceID); len(vals) > 0 && vals[0] != "" {
			scope.Set(FieldTraceID, vals[0])
		}
		ctx = tracing.ExtractGRPC(ctx, &md)
	}

	scope.Set(FieldRequestID, requestID)
	scope.Set(FieldComponent, ComponentRPC)
	scope.Set(FieldOperationID, fullMethod)
	return ctx
}

// UnaryServerInterceptor is the remote-call transport adapter for unary
// RPCs: it opens a context scope per invocation and logs the call start and
// its outcome. Error shaping belongs to the classifier interceptors in
// pkg/errors; this interceptor only observes.
func UnaryServerInterceptor(logger *Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		ctx = rpcContext(ctx, info.FullMethod)

		logger.Info(ctx, "rpc started")

		resp, err := handler(ctx, req)

		meta := Fields{FieldDuration: time.Since(start).Milliseconds()}
		if err != nil {
			st, _ := status.FromError(err)
			meta["rpc_code"] = st.Code().String()
			logger.Error(ctx, "rpc completed", WithMeta(meta))
		} else {
			logger.Info(ctx, "rpc completed", WithMeta(meta))
		}

		return resp, err
	}
}

// StreamServerInterceptor is the remote-call transport adapter for
// streaming RPCs.
func StreamServerInterceptor(logger *Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		ctx := rpcContext(ss.Context(), info.FullMethod)

		logger.Info(ctx, "rpc stream started", WithMeta(Fields{
			"is_client_stream": info.IsClientStream,
			"is_server_stream": info.IsServerStream,
		}))

		err := handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})

		meta := Fields{FieldDuration: time.Since(start).Milliseconds()}
		if err != nil {
			st, _ := status.FromError(err)
			meta["rpc_code"] = st.Code().String()
			logger.Error(ctx, "rpc stream completed", WithMeta(meta))
		} else {
			logger.Info(ctx, "rpc stream completed", WithMeta(meta))
		}

		return err
	}
}

// wrappedServerStream carries the scoped context to the handler.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
