// Package websocket provides the websocket transport adapter for the logging
// core. The server side upgrades HTTP requests with gorilla/websocket, runs
// every inbound message in its own log scope (component=websocket) and routes
// handler failures through the error classifier, which shapes the error frame
// sent back over the socket. The client side wraps gorilla/websocket with
// auto-reconnect and ping/pong keepalive.
//
// Example server usage:
//
//	srv := websocket.NewServer(logger, classifier, websocket.Options{})
//	srv.Register("subscribe", func(ctx context.Context, conn *websocket.Conn, msg *websocket.Message) error {
//	    logctx.Set(ctx, "channel", channelOf(msg))
//	    return subscribe(ctx, conn, msg)
//	})
//	http.Handle("/ws", srv)
package websocket

import (
	"context"
	"encoding/json"
)

// Message represents an inbound frame with type-based routing information.
// Frames that are not JSON objects with a type field have Type empty and are
// only available through Raw.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Raw     []byte          `json:"-"`
}

// HandlerFunc processes one inbound message. The context carries the
// message's log scope; fields set on it appear on every record the handler
// emits. A returned error is classified and sent back as an error frame.
type HandlerFunc func(ctx context.Context, conn *Conn, msg *Message) error

// parseMessage parses a raw frame into a Message. Type stays empty when the
// frame is not a typed JSON object.
func parseMessage(data []byte) *Message {
	msg := &Message{Raw: data}

	var typed struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &typed); err == nil && typed.Type != "" {
		msg.Type = typed.Type
		msg.Payload = typed.Payload
	}

	return msg
}
