package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/redraskal/gateway/pkg/route"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 54 * time.Second
	sendBuffer   = 64
)

var (
	// ErrClosed is returned when sending on a closed connection.
	ErrClosed = errors.New("websocket: connection closed")
	// ErrSlowConsumer is returned when the send buffer is full.
	ErrSlowConsumer = errors.New("websocket: send buffer full")
)

type outbound struct {
	typ  websocket.MessageType
	data []byte
}

// ConnOptions describes the upgrade request a connection came from.
type ConnOptions struct {
	Header      http.Header
	Pathname    string
	Subprotocol string
	// PingInterval defaults to 54s. Negative disables pings.
	PingInterval time.Duration
}

// Conn is an accepted connection with a buffered write pump. It implements
// route.Socket.
type Conn struct {
	conn *websocket.Conn
	hub  *Hub
	opts ConnOptions

	send      chan outbound
	done      chan struct{}
	closeOnce sync.Once

	mu    sync.RWMutex
	state map[string]any
}

var _ route.Socket = (*Conn)(nil)

// NewConn wraps c. Call Start to run the write pump.
func NewConn(c *websocket.Conn, hub *Hub, opts ConnOptions) *Conn {
	if opts.Header == nil {
		opts.Header = http.Header{}
	}
	if opts.PingInterval == 0 {
		opts.PingInterval = pingInterval
	}
	return &Conn{
		conn:  c,
		hub:   hub,
		opts:  opts,
		send:  make(chan outbound, sendBuffer),
		done:  make(chan struct{}),
		state: make(map[string]any),
	}
}

// Start runs the write pump until the connection closes or ctx is done.
func (c *Conn) Start(ctx context.Context) {
	go c.writePump(ctx)
}

func (c *Conn) writePump(ctx context.Context) {
	var ping <-chan time.Time
	if c.opts.PingInterval > 0 {
		ticker := time.NewTicker(c.opts.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case msg := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, msg.typ, msg.data)
			cancel()
			if err != nil {
				c.Close(int(websocket.StatusInternalError), "write failed")
				return
			}
		case <-ping:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				c.Close(int(websocket.StatusGoingAway), "ping failed")
				return
			}
		case <-c.done:
			return
		case <-ctx.Done():
			c.Close(int(websocket.StatusGoingAway), "server shutting down")
			return
		}
	}
}

// Read blocks for the next message.
func (c *Conn) Read(ctx context.Context) (route.MessageType, []byte, error) {
	typ, data, err := c.conn.Read(ctx)
	if err != nil {
		return 0, nil, err
	}
	if typ == websocket.MessageBinary {
		return route.MessageBinary, data, nil
	}
	return route.MessageText, data, nil
}

// Send queues a text message.
func (c *Conn) Send(ctx context.Context, msg string) error {
	return c.enqueue(ctx, outbound{typ: websocket.MessageText, data: []byte(msg)})
}

// SendBinary queues a binary message.
func (c *Conn) SendBinary(ctx context.Context, data []byte) error {
	return c.enqueue(ctx, outbound{typ: websocket.MessageBinary, data: data})
}

func (c *Conn) enqueue(ctx context.Context, msg outbound) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// trySend queues without blocking; a full buffer drops the connection.
func (c *Conn) trySend(msg outbound) error {
	select {
	case <-c.done:
		return ErrClosed
	case c.send <- msg:
		return nil
	default:
		c.Close(int(websocket.StatusTryAgainLater), "slow consumer")
		return ErrSlowConsumer
	}
}

// Close closes the connection once. Later calls return nil.
func (c *Conn) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.hub != nil {
			c.hub.Remove(c)
		}
		err = c.conn.Close(websocket.StatusCode(code), reason)
	})
	return err
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Subscribe adds the connection to topic.
func (c *Conn) Subscribe(topic string) {
	if c.hub != nil {
		c.hub.Subscribe(c, topic)
	}
}

// Unsubscribe removes the connection from topic.
func (c *Conn) Unsubscribe(topic string) {
	if c.hub != nil {
		c.hub.Unsubscribe(c, topic)
	}
}

// Publish sends msg to every other subscriber of topic.
func (c *Conn) Publish(ctx context.Context, topic, msg string) {
	if c.hub != nil {
		c.hub.publish(topic, msg, c)
	}
}

func (c *Conn) Header() http.Header { return c.opts.Header }
func (c *Conn) Pathname() string    { return c.opts.Pathname }
func (c *Conn) Subprotocol() string { return c.opts.Subprotocol }

func (c *Conn) Get(key string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state[key]
}

func (c *Conn) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state[key] = value
}
