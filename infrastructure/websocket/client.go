package websocket

import (
	"chat-signal/contract"
	"chat-signal/domain/event"
	"chat-signal/errors"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ClientOptions bounds one connection.
type ClientOptions struct {
	BufferSize     int
	MaxMessageSize int64
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.BufferSize <= 0 {
		o.BufferSize = 64
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 64 * 1024
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 60 * time.Second
	}
	return o
}

// pingPeriod must stay below PongTimeout.
func (o ClientOptions) pingPeriod() time.Duration {
	return (o.PongTimeout * 9) / 10
}

// Client is one authenticated websocket connection.
// Outbound events go through a bounded buffer drained by WritePump; a client
// that cannot keep up is disconnected rather than slowing down its senders.
type Client struct {
	id     uuid.UUID
	userID string
	conn   *websocket.Conn
	log    *slog.Logger
	opts   ClientOptions

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

var _ contract.ConnectionHandle = (*Client)(nil)

func NewClient(conn *websocket.Conn, userID string, opts ClientOptions, log *slog.Logger) *Client {
	id := uuid.New()
	opts = opts.withDefaults()
	return &Client{
		id:     id,
		userID: userID,
		conn:   conn,
		log:    log.With("conn_id", id, "user_id", userID),
		opts:   opts,
		send:   make(chan []byte, opts.BufferSize),
		done:   make(chan struct{}),
	}
}

func (c *Client) ID() uuid.UUID { return c.id }

// UserID is the identity authenticated during the handshake.
func (c *Client) UserID() string { return c.userID }

// Send never blocks. A full buffer closes the connection and returns
// errors.ErrBackpressure.
func (c *Client) Send(e event.Event) error {
	data, err := encodeEnvelope(e)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return errors.ErrConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		c.log.Warn("Outbound buffer full, closing connection", "event", e.Name())
		c.Close()
		return errors.ErrBackpressure
	}
}

// Close is idempotent. WritePump sends a close frame and tears down the socket.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// ReadPump reads frames until the connection fails or is closed and hands
// each one to handle, sequentially. It must run in a single goroutine.
func (c *Client) ReadPump(handle func(data []byte)) {
	defer func() {
		c.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Connection lost", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		handle(data)
	}
}

// WritePump drains the outbound buffer and keeps the connection alive with
// pings. It must run in a single goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug("Write failed", "error", err)
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.opts.WriteTimeout))
			return
		}
	}
}

// flush writes what is already buffered, best-effort and within one write
// timeout, before closing.
func (c *Client) flush() {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	for {
		select {
		case data := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func encodeEnvelope(e event.Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: e.Name(), Payload: payload})
}
