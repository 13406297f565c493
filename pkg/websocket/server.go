package websocket

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Combine-Capital/ctxlog/pkg/errors"
	"github.com/Combine-Capital/ctxlog/pkg/logctx"
	"github.com/Combine-Capital/ctxlog/pkg/logging"
	"github.com/Combine-Capital/ctxlog/pkg/tracing"
)

// Options configures the server-side websocket adapter. Zero values get
// sensible defaults.
type Options struct {
	ReadLimit       int64
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	ReadBufferSize  int
	WriteBufferSize int

	// CheckOrigin overrides the upgrader's origin check. The default
	// accepts all origins; production deployments should set this.
	CheckOrigin func(r *http.Request) bool
}

func (o Options) withDefaults() Options {
	if o.PingInterval == 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.PongWait == 0 {
		o.PongWait = 60 * time.Second
	}
	if o.WriteWait == 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.ReadBufferSize == 0 {
		o.ReadBufferSize = 1024
	}
	if o.WriteBufferSize == 0 {
		o.WriteBufferSize = 1024
	}
	return o
}

// Server upgrades HTTP requests to websocket connections and dispatches
// inbound messages to registered handlers. Every message runs in a fresh log
// scope tagged component=websocket, and handler failures are routed through
// the classifier before an error frame goes back over the socket.
type Server struct {
	upgrader   websocket.Upgrader
	opts       Options
	handlers   *HandlerRegistry
	logger     *logging.Logger
	classifier *errors.Classifier
}

// NewServer creates a websocket server emitting through the given logger and
// routing failures through the given classifier.
func NewServer(logger *logging.Logger, classifier *errors.Classifier, opts Options) *Server {
	opts = opts.withDefaults()

	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}

	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  opts.ReadBufferSize,
			WriteBufferSize: opts.WriteBufferSize,
			CheckOrigin:     checkOrigin,
		},
		opts:       opts,
		handlers:   NewHandlerRegistry(),
		logger:     logger,
		classifier: classifier,
	}
}

// Register registers a handler for a specific message type.
func (s *Server) Register(messageType string, handler HandlerFunc) {
	s.handlers.Register(messageType, handler)
}

// ServeHTTP upgrades the request and serves the connection until the peer
// disconnects. It implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := connectionRequestID(r)

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		s.logger.Warn(r.Context(), "websocket upgrade failed", logging.WithMeta(logging.Fields{
			logging.FieldErrorMessage: err.Error(),
		}))
		return
	}

	conn := &Conn{
		ws:        ws,
		writeWait: s.opts.WriteWait,
		requestID: requestID,
	}

	s.serve(r.Context(), conn)
}

// connectionRequestID resolves the connection-level request id: the request
// scope's id when the HTTP logging middleware ran, the inbound header
// otherwise, a generated id as the last resort.
func connectionRequestID(r *http.Request) string {
	if id := logctx.GetString(r.Context(), logging.FieldRequestID); id != "" {
		return id
	}
	if id := r.Header.Get(tracing.HeaderRequestID); id != "" {
		return id
	}
	return uuid.NewString()
}

// serve runs the connection's read loop and keepalive pinger.
func (s *Server) serve(ctx context.Context, conn *Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.connLog(ctx, conn, "websocket connected")
	defer s.connLog(ctx, conn, "websocket disconnected")
	defer conn.ws.Close()

	if s.opts.ReadLimit > 0 {
		conn.ws.SetReadLimit(s.opts.ReadLimit)
	}
	conn.ws.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	conn.ws.SetPongHandler(func(string) error {
		conn.ws.SetReadDeadline(time.Now().Add(s.opts.PongWait))
		return nil
	})

	go s.pinger(ctx, conn)

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			return
		}
		s.dispatch(ctx, conn, parseMessage(data))
	}
}

// pinger sends keepalive pings until the connection context ends.
func (s *Server) pinger(ctx context.Context, conn *Conn) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}

// dispatch runs one inbound message inside its own scope. The scope carries
// a per-message request id, the connection id as parent_request_id and the
// websocket component tag. Failures, panics included, are classified and the
// shaped payload goes back over the socket as an error frame.
func (s *Server) dispatch(ctx context.Context, conn *Conn, msg *Message) {
	ctx = logctx.WithScope(ctx, logctx.NewScope())
	logctx.Set(ctx, logging.FieldRequestID, uuid.NewString())
	logctx.Set(ctx, logging.FieldParentRequestID, conn.requestID)
	logctx.Set(ctx, logging.FieldComponent, logging.ComponentWebsocket)
	if msg.Type != "" {
		logctx.Set(ctx, logging.FieldAction, msg.Type)
	}

	err := s.handle(ctx, conn, msg)
	if err == nil {
		return
	}

	routed := s.classifier.Websocket(ctx, err)
	var terr *errors.TransportError
	if errors.As(routed, &terr) {
		conn.SendJSON(map[string]any{
			"type":    "error",
			"payload": terr.Payload,
		})
	}
}

func (s *Server) handle(ctx context.Context, conn *Conn, msg *Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("websocket handler panic: %v", r)
		}
	}()
	return s.handlers.Handle(ctx, conn, msg)
}

// connLog emits a connection lifecycle record tagged with the connection id.
func (s *Server) connLog(ctx context.Context, conn *Conn, msg string) {
	s.logger.Info(ctx, msg, logging.WithMeta(logging.Fields{
		logging.FieldRequestID: conn.requestID,
		logging.FieldComponent: logging.ComponentWebsocket,
	}))
}
