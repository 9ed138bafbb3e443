// Package transport connects to the collaboration/build service push channel
// and hands every received frame to a handler in arrival order.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"pkt.systems/pslog"
)

const (
	defaultReconnectMin = 500 * time.Millisecond
	defaultReconnectMax = 30 * time.Second
	defaultReadTimeout  = 90 * time.Second
	writeTimeout        = 10 * time.Second
)

// Handler receives one frame. Frames are delivered sequentially.
type Handler func(ctx context.Context, frame []byte)

// Config configures the push channel client.
type Config struct {
	URL          string
	Token        string
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	ReadTimeout  time.Duration
	Dialer       *websocket.Dialer
}

// Client maintains one websocket connection, reconnecting with capped backoff.
type Client struct {
	cfg     Config
	handle  Handler
	dialer  *websocket.Dialer
	frames  atomic.Uint64
	dials   atomic.Uint64
	mu      sync.Mutex
	current *websocket.Conn
}

// New validates cfg and returns a Client.
func New(cfg Config, handle Handler) (*Client, error) {
	cfg.URL = strings.TrimSpace(cfg.URL)
	if cfg.URL == "" {
		return nil, errors.New("transport url is required")
	}
	if !strings.HasPrefix(cfg.URL, "ws://") && !strings.HasPrefix(cfg.URL, "wss://") {
		return nil, fmt.Errorf("transport url must use ws:// or wss://: %q", cfg.URL)
	}
	if handle == nil {
		return nil, errors.New("transport handler is required")
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = defaultReconnectMin
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = defaultReconnectMax
		if cfg.ReconnectMax < cfg.ReconnectMin {
			cfg.ReconnectMax = cfg.ReconnectMin
		}
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &Client{cfg: cfg, handle: handle, dialer: dialer}, nil
}

// Run connects and reads until ctx is done. It returns nil on cancellation.
func (c *Client) Run(ctx context.Context) error {
	log := pslog.Ctx(ctx).With("transport_url", c.cfg.URL)
	backoff := c.cfg.ReconnectMin
	for {
		if ctx.Err() != nil {
			return nil
		}
		conn, err := c.dial(ctx)
		if err != nil {
			log.Warn("transport connect failed", "err", err, "retry_in", backoff)
		} else {
			log.Info("transport connected")
			backoff = c.cfg.ReconnectMin
			err = c.read(ctx, conn)
			if ctx.Err() != nil {
				log.Info("transport stopped")
				return nil
			}
			log.Warn("transport disconnected", "err", err, "retry_in", backoff)
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		backoff *= 2
		if backoff > c.cfg.ReconnectMax {
			backoff = c.cfg.ReconnectMax
		}
	}
}

// Frames returns the number of frames handed to the handler.
func (c *Client) Frames() uint64 {
	return c.frames.Load()
}

// Dials returns the number of successful connections.
func (c *Client) Dials() uint64 {
	return c.dials.Load()
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", c.cfg.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	c.dials.Add(1)
	return conn, nil
}

func (c *Client) read(ctx context.Context, conn *websocket.Conn) error {
	c.mu.Lock()
	c.current = conn
	c.mu.Unlock()
	connCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		c.mu.Lock()
		c.current = nil
		c.mu.Unlock()
		_ = conn.Close()
	}()

	go func() {
		<-connCtx.Done()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
		_ = conn.Close()
	}()
	go c.ping(connCtx, conn)

	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})
	for {
		messageType, frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		if len(frame) == 0 {
			continue
		}
		c.frames.Add(1)
		c.handle(ctx, frame)
	}
}

func (c *Client) ping(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.ReadTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
