package errors

import (
	"context"
	"net/http"

	"google.golang.org/grpc"
)

// RecoveryMiddleware returns an HTTP middleware that recovers from handler
// panics and routes them through the classifier as generic failures.
func RecoveryMiddleware(c *Classifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					c.HTTP(w, r, normalize(p))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// UnaryRecoveryInterceptor returns a gRPC unary interceptor that recovers
// from handler panics and re-raises them as classified status errors.
func UnaryRecoveryInterceptor(c *Classifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if p := recover(); p != nil {
				err = c.RPC(ctx, normalize(p))
			}
		}()

		return handler(ctx, req)
	}
}

// UnaryErrorInterceptor returns a gRPC unary interceptor that routes handler
// errors through the classifier, re-raising them as transport-native status
// errors. Chain it inside the logging interceptor so completion records see
// the final status code.
func UnaryErrorInterceptor(c *Classifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			return resp, c.RPC(ctx, err)
		}
		return resp, nil
	}
}

// StreamErrorInterceptor returns a gRPC stream interceptor that routes
// handler errors through the classifier.
func StreamErrorInterceptor(c *Classifier) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := handler(srv, ss); err != nil {
			return c.RPC(ss.Context(), err)
		}
		return nil
	}
}

// StreamRecoveryInterceptor returns a gRPC stream interceptor that recovers
// from handler panics and re-raises them as classified status errors.
func StreamRecoveryInterceptor(c *Classifier) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = c.RPC(ss.Context(), normalize(p))
			}
		}()

		return handler(srv, ss)
	}
}
