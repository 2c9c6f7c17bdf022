// Package pspclient is the pharmacy-side client library for the PSP relay.
// It maintains the WebSocket connection, surfaces delivered notifications on
// a channel, and exposes the drain and clear commands of the consumer
// subprotocol.
package pspclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"psprelay/pkg/backoff"
)

// Subprotocol command frames, matching the relay's session handler.
const (
	commandRequestQueued = "request queued"
	commandClearQueue    = "clear queue"
)

const (
	writeWait   = 10 * time.Second
	dialTimeout = 10 * time.Second
)

// ErrClosed is returned by commands after Close.
var ErrClosed = errors.New("pspclient: client is closed")

// ErrNotConnected is returned by commands while a reconnect is in progress.
var ErrNotConnected = errors.New("pspclient: not connected")

// Message is one delivered notification.
type Message struct {
	ID             string `json:"messageId"`
	DeliveryOption string `json:"deliveryOption"`
	TransactionID  string `json:"transactionId"`
	Note           string `json:"note"`
	Payload        []byte `json:"payload"`
}

// Config holds client configuration.
type Config struct {
	// URL is the relay base URL with ws or wss scheme, e.g. "ws://localhost:8080".
	URL string

	// TelematikID identifies the pharmacy this client consumes for.
	TelematikID string

	// Token is sent as X-Authorization during the handshake. Required by
	// wss deployments; ignored by the plain-ws test configuration.
	Token string

	// Reconnect enables automatic redial with exponential backoff after a
	// connection loss. Queued messages survive the gap on the relay side.
	Reconnect bool
	Backoff   backoff.Config

	// Buffer is the Messages channel capacity (default: 64).
	Buffer int

	Logger *slog.Logger
}

// Client is a consumer connection to the relay.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn

	msgs      chan Message
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Dial connects to the relay and starts consuming frames.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.TelematikID == "" {
		return nil, errors.New("pspclient: TelematikID is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.With("component", "pspclient")
	}
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 64
	}

	c := &Client{
		cfg:    cfg,
		logger: logger.With("telematikId", cfg.TelematikID),
		msgs:   make(chan Message, buffer),
		closed: make(chan struct{}),
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.conn = conn

	c.wg.Add(1)
	go c.run(conn)
	return c, nil
}

// Messages returns the channel of delivered notifications. It is closed when
// the client shuts down for good.
func (c *Client) Messages() <-chan Message {
	return c.msgs
}

// RequestQueued asks the relay to drain the mailbox into this connection.
func (c *Client) RequestQueued() error {
	return c.command(commandRequestQueued)
}

// ClearQueue asks the relay to discard all queued messages without
// delivering them.
func (c *Client) ClearQueue() error {
	return c.command(commandClearQueue)
}

// Close shuts the client down. Safe to call multiple times.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			_ = c.conn.Close()
		}
		c.mu.Unlock()
	})
	c.wg.Wait()
	return nil
}

func (c *Client) command(cmd string) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, []byte(cmd))
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	url := strings.TrimSuffix(c.cfg.URL, "/") + "/ws/" + c.cfg.TelematikID

	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("X-Authorization", c.cfg.Token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("pspclient: dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("pspclient: dial %s: %w", url, err)
	}
	return conn, nil
}

// run reads frames until the connection dies, optionally redialing.
func (c *Client) run(conn *websocket.Conn) {
	defer func() {
		close(c.msgs)
		c.wg.Done()
	}()

	for {
		c.readUntilError(conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()

		if !c.cfg.Reconnect || c.isClosed() {
			return
		}

		conn = c.redial()
		if conn == nil {
			return
		}
	}
}

func (c *Client) readUntilError(conn *websocket.Conn) {
	for {
		var m Message
		if err := conn.ReadJSON(&m); err != nil {
			if !c.isClosed() && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("Connection lost", "error", err)
			}
			return
		}

		select {
		case c.msgs <- m:
		case <-c.closed:
			return
		}
	}
}

// redial reconnects with exponential backoff until it succeeds or the
// client is closed.
func (c *Client) redial() *websocket.Conn {
	for attempt := 1; ; attempt++ {
		select {
		case <-c.closed:
			return nil
		case <-time.After(backoff.Exponential(attempt, c.cfg.Backoff)):
		}

		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		conn, err := c.dial(ctx)
		cancel()
		if err != nil {
			c.logger.Warn("Reconnect failed", "attempt", attempt, "error", err)
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		// Close raced the dial: drop the fresh connection.
		if c.isClosed() {
			_ = conn.Close()
			return nil
		}

		c.logger.Info("Reconnected", "attempt", attempt)
		return conn
	}
}

func (c *Client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}
