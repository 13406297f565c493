package errors

import (
	"context"
	"fmt"

	"github.com/Combine-Capital/ctxlog/pkg/logging"
)

// Classifier inspects caught failures, decides loggability, emits enriched
// error records and shapes transport-appropriate responses. It is the single
// point where the loggable flag is read; the log emitter never inspects it.
type Classifier struct {
	logger *logging.Logger
}

// NewClassifier creates a classifier emitting through the given logger.
func NewClassifier(logger *logging.Logger) *Classifier {
	return &Classifier{logger: logger}
}

// Generic failure payload for clients. Internal details never leak.
const (
	genericCode    = "INTERNAL_ERROR"
	genericMessage = "internal server error"
)

// classify runs the single-pass, two-branch state machine for one caught
// failure. The transport kind is decided once, at the catch site, and is
// never re-derived per branch. It returns the domain error when the failure
// is one, or nil for the generic branch.
func (c *Classifier) classify(ctx context.Context, transport string, err error) *DomainError {
	if derr := AsDomain(err); derr != nil {
		derr.SetTransportIfUnset(transport)

		if derr.Loggable {
			meta := logging.Fields{
				logging.FieldErrorCode:  derr.Code,
				logging.FieldTransport:  derr.Transport,
				logging.FieldStatusCode: derr.Status(),
			}
			if len(derr.Meta) > 0 {
				meta["error_meta"] = derr.Meta
			}
			c.logger.Error(ctx, derr, logging.WithMeta(meta))
		}
		return derr
	}

	// Generic branch: always logged, never suppressed.
	c.logger.Error(ctx, err, logging.WithMeta(logging.Fields{
		logging.FieldErrorMessage: err.Error(),
		logging.FieldTransport:    transport,
	}))
	return nil
}

// normalize wraps a recovered non-error value into a generic failure.
func normalize(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("%v", v)
}

// RPC classifies a failure caught on a remote-call unit of work and returns
// the transport-native error to propagate. It never returns nil for a
// non-nil input: remote-call failures are re-raised, not swallowed.
func (c *Classifier) RPC(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	if derr := c.classify(ctx, logging.ComponentRPC, err); derr != nil {
		return toStatusError(derr)
	}
	return genericStatusError()
}

// Message classifies a failure caught on a message-event unit of work and
// returns the wrapped error to hand to the bus's error channel.
func (c *Classifier) Message(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	if derr := c.classify(ctx, logging.ComponentRPC, err); derr != nil {
		return &TransportError{
			Transport: derr.Transport,
			Payload:   derr.RPCPayload(),
			cause:     err,
		}
	}
	return &TransportError{
		Transport: logging.ComponentRPC,
		Payload:   map[string]any{"code": genericCode, "message": genericMessage},
		cause:     err,
	}
}

// Websocket classifies a failure caught on a websocket unit of work and
// returns the wrapped error to send over the socket's error channel.
func (c *Classifier) Websocket(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	if derr := c.classify(ctx, logging.ComponentWebsocket, err); derr != nil {
		return &TransportError{
			Transport: derr.Transport,
			Payload:   derr.RPCPayload(),
			cause:     err,
		}
	}
	return &TransportError{
		Transport: logging.ComponentWebsocket,
		Payload:   map[string]any{"code": genericCode, "message": genericMessage},
		cause:     err,
	}
}
