package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ErrNotConnected is returned by writes after the connection has gone away.
var ErrNotConnected = errors.New("not connected")

// FrameHandler receives one inbound text frame. The receipt instant is
// captured before any decoding so decode time is never attributed to the
// network. A non-nil error is fatal and ends the read loop.
type FrameHandler func(receipt time.Time, raw []byte) error

// ErrorHandler receives transport-reported errors. Never fatal on its own.
type ErrorHandler func(text string)

// CloseHandler receives the close status code and reason from the peer.
type CloseHandler func(code int, reason string)

// Client wraps a single websocket connection to the feed. It does not
// reconnect: once the connection drops, writes fail with ErrNotConnected and
// the read loop has already returned.
type Client struct {
	url     string
	mu      sync.RWMutex
	conn    *websocket.Conn
	open    bool
	closing bool
}

// Dial establishes the websocket connection.
func Dial(ctx context.Context, rawURL string) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed URL: %w", err)
	}

	log.Info().Str("url", rawURL).Msg("Connecting to feed")

	dialer := websocket.Dialer{HandshakeTimeout: 30 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket connection failed: %w", err)
	}

	return &Client{url: rawURL, conn: conn, open: true}, nil
}

// Subscribe sends an orderbook subscription for one market and returns the
// exact serialized bytes so the caller can log them.
func (c *Client) Subscribe(market string) ([]byte, error) {
	raw, err := json.Marshal(NewSubscribeRequest(market))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal subscription: %w", err)
	}
	if err := c.writeText(raw); err != nil {
		return nil, fmt.Errorf("failed to send subscription for %s: %w", market, err)
	}
	return raw, nil
}

// Ping sends the keep-alive frame and returns the bytes sent.
func (c *Client) Ping() ([]byte, error) {
	if err := c.writeText(PingFrame); err != nil {
		return nil, fmt.Errorf("failed to send ping: %w", err)
	}
	return PingFrame, nil
}

func (c *Client) writeText(raw []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return ErrNotConnected
	}
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

// IsConnected reports whether the connection is still open.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.open
}

// ReadLoop delivers inbound frames to onFrame until the connection ends or
// onFrame fails. Peer-initiated closes go to onClose and other transport
// errors to onError; both end the loop with a nil return. Only an onFrame
// error (a protocol violation by taxonomy) is returned to the caller.
func (c *Client) ReadLoop(ctx context.Context, onFrame FrameHandler, onError ErrorHandler, onClose CloseHandler) error {
	for {
		messageType, raw, err := c.conn.ReadMessage()
		receipt := time.Now()
		if err != nil {
			c.markClosed()
			if ctx.Err() != nil || c.isClosing() {
				return nil
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				onClose(ce.Code, ce.Text)
				return nil
			}
			onError(err.Error())
			return nil
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if err := onFrame(receipt, raw); err != nil {
			return err
		}
	}
}

// Close performs the closing handshake with the given status code and reason,
// then tears down the connection. Safe to call more than once.
func (c *Client) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return nil
	}
	c.open = false
	c.closing = true

	msg := websocket.FormatCloseMessage(code, reason)
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	writeErr := c.conn.WriteMessage(websocket.CloseMessage, msg)
	closeErr := c.conn.Close()

	log.Info().Int("code", code).Str("reason", reason).Msg("Feed connection closed")

	if writeErr != nil {
		return fmt.Errorf("failed to send close frame: %w", writeErr)
	}
	return closeErr
}

// markClosed tears down the connection after the read loop saw it die.
func (c *Client) markClosed() {
	c.mu.Lock()
	if c.open {
		c.open = false
		_ = c.conn.Close()
	}
	c.mu.Unlock()
}

func (c *Client) isClosing() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closing
}
