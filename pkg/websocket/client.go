package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Combine-Capital/ctxlog/pkg/errors"
)

// ClientConfig configures the reconnecting websocket client.
type ClientConfig struct {
	URL     string
	Headers map[string]string

	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	// ReconnectMaxAttempts bounds reconnection attempts; 0 means the
	// default of 5, a negative value disables reconnection.
	ReconnectMaxAttempts int

	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration

	ReadBufferSize  int
	WriteBufferSize int
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.ReconnectInitialDelay == 0 {
		c.ReconnectInitialDelay = 1 * time.Second
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 32 * time.Second
	}
	if c.ReconnectMaxAttempts == 0 {
		c.ReconnectMaxAttempts = 5
	}
	if c.PingInterval == 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PongWait == 0 {
		c.PongWait = 60 * time.Second
	}
	if c.WriteWait == 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = 1024
	}
	if c.WriteBufferSize == 0 {
		c.WriteBufferSize = 1024
	}
	return c
}

// Client is a websocket client with auto-reconnect and ping/pong keepalive.
type Client struct {
	config     ClientConfig
	conn       *websocket.Conn
	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
	reconnectC chan struct{}
	connected  bool
	wg         sync.WaitGroup
}

// Dial connects to the configured URL and starts the keepalive and
// reconnect loops.
func Dial(ctx context.Context, cfg ClientConfig) (*Client, error) {
	cfg = cfg.withDefaults()
	if cfg.URL == "" {
		return nil, errors.NewInvalidInput("WS_CONFIG", "url is required")
	}

	clientCtx, cancel := context.WithCancel(ctx)

	c := &Client{
		config:     cfg,
		ctx:        clientCtx,
		cancel:     cancel,
		reconnectC: make(chan struct{}, 1),
	}

	if err := c.connect(); err != nil {
		cancel()
		return nil, fmt.Errorf("initial connection failed: %w", err)
	}

	c.wg.Add(2)
	go c.pingLoop()
	go c.reconnectLoop()

	return c, nil
}

// connect establishes a websocket connection to the server.
func (c *Client) connect() error {
	dialer := &websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   c.config.ReadBufferSize,
		WriteBufferSize:  c.config.WriteBufferSize,
	}

	headers := http.Header{}
	for key, value := range c.config.Headers {
		headers.Set(key, value)
	}

	conn, _, err := dialer.DialContext(c.ctx, c.config.URL, headers)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	return nil
}

// reconnect attempts to reconnect with exponential backoff.
func (c *Client) reconnect() error {
	if c.config.ReconnectMaxAttempts < 0 {
		return errors.New("WS_RECONNECT_DISABLED", "reconnection is disabled")
	}

	attempts := 0
	delay := c.config.ReconnectInitialDelay

	for {
		select {
		case <-c.ctx.Done():
			return c.ctx.Err()
		default:
		}

		if attempts >= c.config.ReconnectMaxAttempts {
			return errors.New("WS_RECONNECT_EXHAUSTED", "max reconnect attempts reached")
		}

		if attempts > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-c.ctx.Done():
				timer.Stop()
				return c.ctx.Err()
			case <-timer.C:
			}
		}

		if err := c.connect(); err == nil {
			return nil
		}

		attempts++
		delay *= 2
		if delay > c.config.ReconnectMaxDelay {
			delay = c.config.ReconnectMaxDelay
		}
	}
}

// reconnectLoop monitors for reconnection requests.
func (c *Client) reconnectLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.reconnectC:
			c.mu.Lock()
			if c.conn != nil {
				c.conn.Close()
				c.conn = nil
			}
			c.connected = false
			c.mu.Unlock()

			c.reconnect()
		}
	}
}

// pingLoop sends ping frames at the configured interval.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()

			if conn == nil {
				continue
			}

			conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.triggerReconnect()
			}
		}
	}
}

// SendJSON marshals v and sends it as a text frame.
func (c *Client) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return c.Send(ctx, data)
}

// Send sends a text frame to the server.
func (c *Client) Send(ctx context.Context, data []byte) error {
	c.mu.RLock()
	conn := c.conn
	connected := c.connected
	c.mu.RUnlock()

	if !connected || conn == nil {
		return fmt.Errorf("not connected")
	}

	if err := conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
		c.triggerReconnect()
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.triggerReconnect()
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

// Receive blocks until a frame arrives and returns it parsed.
func (c *Client) Receive(ctx context.Context) (*Message, error) {
	c.mu.RLock()
	conn := c.conn
	connected := c.connected
	c.mu.RUnlock()

	if !connected || conn == nil {
		return nil, fmt.Errorf("not connected")
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			c.triggerReconnect()
		}
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	return parseMessage(data), nil
}

// Close gracefully closes the client connection.
func (c *Client) Close() error {
	c.cancel()
	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
		c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

		err := c.conn.Close()
		c.conn = nil
		c.connected = false
		return err
	}

	return nil
}

// IsConnected returns true if the connection is active.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// triggerReconnect signals the reconnect loop. A pending signal is enough.
func (c *Client) triggerReconnect() {
	select {
	case c.reconnectC <- struct{}{}:
	default:
	}
}
