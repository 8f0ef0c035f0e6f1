// Package notify maintains the WebSocket change channel. Mutations
// announce "something changed for user X" and other sessions react by
// scheduling a reconciliation pass; no payload beyond the user crosses
// the wire, so a missed or garbled frame costs nothing but latency.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/tidwall/gjson"
)

const (
	// pingAfter is how long the connection may sit idle before the event
	// loop sends a ping.
	pingAfter = 10 * time.Second

	// disconnectAfter is how long without any inbound frame before the
	// connection is treated as dead and redialed.
	disconnectAfter = 120 * time.Second

	// heartbeatCheckAt is the event loop's heartbeat tick interval.
	heartbeatCheckAt = 20 * time.Second

	reconnectMin = 5 * time.Second
	reconnectMax = 5 * time.Minute

	// jitterDivisor controls the range of random jitter added to
	// reconnect backoff: jitter is uniform in [0, backoff/jitterDivisor).
	jitterDivisor = 2

	// reconnectBackoffMultiplier is the exponential growth factor
	// applied to the reconnect backoff after each consecutive failure.
	reconnectBackoffMultiplier = 2

	// wsReadLimit caps inbound frames. Signal frames are tiny JSON.
	wsReadLimit = 64 * 1024

	// outboundChanSize buffers announcements while the event loop is
	// busy. A full buffer drops the announcement; polling covers it.
	outboundChanSize = 64

	// inboundChanSize is the buffer size for the channel carrying frames
	// from the reader goroutine to the event loop.
	inboundChanSize = 64
)

// wsConn abstracts the WebSocket connection so Client can be tested
// without a real server. *websocket.Conn satisfies this interface.
type wsConn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
	SetReadLimit(n int64)
}

// Config carries the connection parameters and callbacks for a Client.
type Config struct {
	// URL is the wss endpoint of the notify service.
	URL   string
	User  string
	Token string

	// OnSignal fires when a change frame for a subscribed user arrives.
	OnSignal func(user string)

	// OnConnect fires after every successful (re)connect, so the engine
	// can run an immediate catch-up pass for whatever was missed while
	// offline. May be nil.
	OnConnect func()
}

// Client is the notify channel client.
//
// Architecture: a reader goroutine feeds inboundCh with raw frames. A
// single event loop goroutine (Listen) processes inbound frames, queued
// announcements, and heartbeat ticks. All writes to the connection
// happen from the event loop, so no write mutex is needed.
type Client struct {
	cfg    Config
	logger *slog.Logger

	conn       wsConn
	inboundCh  chan inboundMsg
	outbound   chan []byte
	connCancel context.CancelFunc

	lastMessage time.Time
}

type inboundMsg struct {
	data []byte
	err  error
}

// NewClient creates a notify client. Listen must be called to connect.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		cfg:      cfg,
		logger:   logger,
		outbound: make(chan []byte, outboundChanSize),
	}
}

// NotifyChanged queues a change announcement for a user. Never blocks;
// if the outbound buffer is full or the connection is down the frame is
// dropped, and the receivers' poll cycle covers the gap.
func (c *Client) NotifyChanged(user string) {
	frame, err := json.Marshal(map[string]string{"op": "announce", "user": user})
	if err != nil {
		return
	}

	select {
	case c.outbound <- frame:
	default:
		c.logger.Debug("dropping change announcement, outbound buffer full",
			slog.String("user", user),
		)
	}
}

// connect dials the notify service and subscribes to the user's channel.
func (c *Client) connect(ctx context.Context) error {
	if c.connCancel != nil {
		c.connCancel()
	}

	c.logger.Debug("connecting", slog.String("url", c.cfg.URL))

	conn, _, err := websocket.Dial(ctx, c.cfg.URL, &websocket.DialOptions{ //nolint:bodyclose // websocket.Dial closes the response body internally
		HTTPHeader: http.Header{
			"Authorization": []string{"Bearer " + c.cfg.Token},
		},
	})
	if err != nil {
		return fmt.Errorf("dialing notify service: %w", err)
	}

	conn.SetReadLimit(wsReadLimit)
	c.conn = conn

	sub, err := json.Marshal(map[string]string{"op": "subscribe", "user": c.cfg.User})
	if err != nil {
		return fmt.Errorf("marshalling subscribe frame: %w", err)
	}

	if err := conn.Write(ctx, websocket.MessageText, sub); err != nil {
		conn.Close(websocket.StatusInternalError, "subscribe failed")
		return fmt.Errorf("subscribing: %w", err)
	}

	c.lastMessage = time.Now()

	return nil
}

// startReader spawns the reader goroutine for the current connection.
// The channel is replaced on each call so a stale reader cannot feed
// frames from an old connection into the new loop.
func (c *Client) startReader(connCtx context.Context) {
	ch := make(chan inboundMsg, inboundChanSize)
	c.inboundCh = ch
	conn := c.conn

	go func() {
		for {
			_, data, err := conn.Read(connCtx)
			select {
			case ch <- inboundMsg{data: data, err: err}:
			case <-connCtx.Done():
				return
			}

			if err != nil {
				return
			}
		}
	}()
}

// Listen connects and runs the event loop with automatic reconnection
// and jittered exponential backoff. Returns only on context cancellation.
func (c *Client) Listen(ctx context.Context) error {
	backoff := reconnectMin

	for {
		if err := c.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			c.logger.Warn("notify connect failed",
				slog.String("error", err.Error()),
				slog.Duration("backoff", backoff),
			)

			if err := sleepWithJitter(ctx, backoff); err != nil {
				return err
			}

			backoff = min(backoff*reconnectBackoffMultiplier, reconnectMax)

			continue
		}

		backoff = reconnectMin

		connCtx, connCancel := context.WithCancel(ctx)
		c.connCancel = connCancel
		c.startReader(connCtx)

		if c.cfg.OnConnect != nil {
			c.cfg.OnConnect()
		}

		err := c.eventLoop(ctx)
		connCancel()

		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("notify connection lost, reconnecting",
			slog.String("error", err.Error()),
		)
	}
}

// eventLoop is the single event loop for one connection. It selects on
// inbound frames, queued announcements, and the heartbeat ticker.
// Returns on read error or heartbeat timeout.
func (c *Client) eventLoop(ctx context.Context) error {
	ticker := time.NewTicker(heartbeatCheckAt)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.conn.Close(websocket.StatusNormalClosure, "shutting down")
			return ctx.Err()

		case msg := <-c.inboundCh:
			if msg.err != nil {
				return msg.err
			}

			c.lastMessage = time.Now()
			c.handleFrame(msg.data)

		case frame := <-c.outbound:
			if err := c.conn.Write(ctx, websocket.MessageText, frame); err != nil {
				return fmt.Errorf("writing announcement: %w", err)
			}

		case <-ticker.C:
			elapsed := time.Since(c.lastMessage)
			if elapsed > disconnectAfter {
				c.conn.Close(websocket.StatusGoingAway, "heartbeat timeout")
				return fmt.Errorf("no frames for %s", elapsed.Round(time.Second))
			}

			if elapsed > pingAfter {
				ping, _ := json.Marshal(map[string]string{"op": "ping"})
				if err := c.conn.Write(ctx, websocket.MessageText, ping); err != nil {
					return fmt.Errorf("writing ping: %w", err)
				}
			}
		}
	}
}

// handleFrame peeks the op field without binding the whole frame to a
// struct; unknown ops are ignored so the service can grow the protocol
// without breaking old clients.
func (c *Client) handleFrame(data []byte) {
	switch op := gjson.GetBytes(data, "op").String(); op {
	case "change":
		user := gjson.GetBytes(data, "user").String()
		if user == "" {
			return
		}

		c.logger.Debug("change signal", slog.String("user", user))

		if c.cfg.OnSignal != nil {
			c.cfg.OnSignal(user)
		}

	case "pong", "subscribed":
		// Heartbeat and handshake acks carry no information.

	default:
		c.logger.Debug("ignoring unknown frame", slog.String("op", op))
	}
}

func sleepWithJitter(ctx context.Context, backoff time.Duration) error {
	jitter := time.Duration(rand.Int63n(int64(backoff) / jitterDivisor)) //nolint:gosec // G404: math/rand is fine for reconnect jitter, no security impact

	timer := time.NewTimer(backoff + jitter)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
