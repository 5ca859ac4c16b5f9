// Package stream maintains a websocket tick feed for instruments with
// active alerts, so direct price and volume conditions react between
// full scans.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kaizumaki/kabuscan/pkg/config"
	"github.com/kaizumaki/kabuscan/pkg/logger"
)

const (
	reconnectDelay    = 5 * time.Second
	maxReconnectDelay = 5 * time.Minute

	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

// Tick is one real-time price/volume update.
type Tick struct {
	Code      string    `json:"code"`
	Price     float64   `json:"price"`
	Volume    int64     `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// TickHandler receives every decoded tick. Handlers must not block.
type TickHandler func(ctx context.Context, tick Tick)

// Client manages the websocket tick feed connection.
type Client struct {
	config  config.StreamConfig
	logger  *logger.Logger
	handler TickHandler

	conn   *websocket.Conn
	connMu sync.RWMutex

	subscribed map[string]bool
	subMu      sync.RWMutex

	stopCh       chan struct{}
	doneCh       chan struct{}
	reconnecting bool
	reconnectMu  sync.Mutex
}

// NewClient creates a tick feed client.
func NewClient(cfg config.StreamConfig, log *logger.Logger, handler TickHandler) *Client {
	return &Client{
		config:     cfg,
		logger:     log,
		handler:    handler,
		subscribed: make(map[string]bool),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start connects and launches the read and ping loops.
func (c *Client) Start(ctx context.Context) error {
	c.logger.Info("Starting tick feed client")

	if err := c.connect(ctx); err != nil {
		return fmt.Errorf("initial connection failed: %w", err)
	}

	go c.readLoop(ctx)
	go c.pingLoop(ctx)

	return nil
}

// Stop closes the connection and waits for the read loop.
func (c *Client) Stop() {
	c.logger.Info("Stopping tick feed client")

	close(c.stopCh)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.connMu.Unlock()

	<-c.doneCh
}

// connect establishes the websocket connection and replays the current
// subscription set.
func (c *Client) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.logger.WithField("url", c.config.URL).Debug("Connecting to tick feed")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.conn = conn
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c.logger.Info("Connected to tick feed")

	c.subMu.RLock()
	codes := make([]string, 0, len(c.subscribed))
	for code := range c.subscribed {
		codes = append(codes, code)
	}
	c.subMu.RUnlock()

	for _, code := range codes {
		if err := conn.WriteJSON(subscribeMessage(code, true)); err != nil {
			c.logger.WithError(err).WithField("code", code).Error("Failed to resubscribe")
		}
	}

	return nil
}

// Subscribe starts streaming ticks for a code.
func (c *Client) Subscribe(code string) {
	c.subMu.Lock()
	already := c.subscribed[code]
	c.subscribed[code] = true
	c.subMu.Unlock()

	if already {
		return
	}
	c.writeControlMessage(code, true)
}

// Unsubscribe stops streaming ticks for a code.
func (c *Client) Unsubscribe(code string) {
	c.subMu.Lock()
	_, had := c.subscribed[code]
	delete(c.subscribed, code)
	c.subMu.Unlock()

	if !had {
		return
	}
	c.writeControlMessage(code, false)
}

// Subscribed returns the currently streamed codes.
func (c *Client) Subscribed() []string {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	codes := make([]string, 0, len(c.subscribed))
	for code := range c.subscribed {
		codes = append(codes, code)
	}
	return codes
}

func (c *Client) writeControlMessage(code string, subscribe bool) {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil {
		return
	}

	if err := conn.WriteJSON(subscribeMessage(code, subscribe)); err != nil {
		c.logger.WithError(err).WithField("code", code).Error("Failed to send subscription message")
	}
}

func subscribeMessage(code string, subscribe bool) map[string]interface{} {
	action := "subscribe"
	if !subscribe {
		action = "unsubscribe"
	}
	return map[string]interface{}{
		"action": action,
		"code":   code,
	}
}

// readLoop reads ticks until stopped, reconnecting on errors.
func (c *Client) readLoop(ctx context.Context) {
	defer close(c.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		default:
		}

		c.connMu.RLock()
		conn := c.conn
		c.connMu.RUnlock()

		if conn == nil {
			time.Sleep(1 * time.Second)
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.stopCh:
				return
			default:
			}
			c.logger.WithError(err).Error("Failed to read tick")
			c.handleDisconnect(ctx)
			continue
		}

		if err := c.handleMessage(ctx, message); err != nil {
			c.logger.WithError(err).Error("Failed to handle tick")
		}
	}
}

func (c *Client) handleMessage(ctx context.Context, message []byte) error {
	var tick Tick
	if err := json.Unmarshal(message, &tick); err != nil {
		return fmt.Errorf("unmarshal tick: %w", err)
	}
	if tick.Code == "" {
		return fmt.Errorf("tick missing code")
	}
	if tick.Timestamp.IsZero() {
		tick.Timestamp = time.Now()
	}

	c.handler(ctx, tick)
	return nil
}

// handleDisconnect reconnects with exponential backoff.
func (c *Client) handleDisconnect(ctx context.Context) {
	c.reconnectMu.Lock()
	if c.reconnecting {
		c.reconnectMu.Unlock()
		return
	}
	c.reconnecting = true
	c.reconnectMu.Unlock()

	defer func() {
		c.reconnectMu.Lock()
		c.reconnecting = false
		c.reconnectMu.Unlock()
	}()

	c.logger.Warn("Tick feed disconnected, attempting to reconnect")

	delay := reconnectDelay
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-time.After(delay):
		}

		if err := c.connect(ctx); err != nil {
			c.logger.WithError(err).WithField("delay", delay).Error("Reconnect failed, retrying")
			delay *= 2
			if delay > maxReconnectDelay {
				delay = maxReconnectDelay
			}
			continue
		}

		c.logger.Info("Reconnected to tick feed")
		return
	}
}

// pingLoop keeps the connection alive.
func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.connMu.RLock()
			conn := c.conn
			c.connMu.RUnlock()

			if conn == nil {
				continue
			}

			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				c.logger.WithError(err).Error("Failed to send ping")
			}
		}
	}
}
