package deriv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/vaultbot/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	handshakeTimeout = 15 * time.Second
)

// Handler receives inbound frames and the terminal close notification for a
// single connection. OnMessage is called from the read goroutine, one frame
// at a time. OnClose is called exactly once after the read loop exits.
type Handler interface {
	OnMessage(raw []byte)
	OnClose(err error)
}

// Client is one websocket session to the API. It does not reconnect; a new
// Client is dialed for every session.
type Client struct {
	conn    *websocket.Conn
	handler Handler

	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

// Dial opens a session and starts its read and ping loops.
func Dial(ctx context.Context, url string, h Handler) (*Client, error) {
	if url == "" {
		url = DefaultURL
	}
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("deriv/ws: connect: %w", err)
	}

	c := &Client{
		conn:    conn,
		handler: h,
		done:    make(chan struct{}),
	}

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// Send marshals req and writes it as one text frame.
func (c *Client) Send(req Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("deriv/ws: marshal request: %w", err)
	}

	select {
	case <-c.done:
		return fmt.Errorf("deriv/ws: send: %w", domain.ErrWSDisconnect)
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("deriv/ws: send: %w", err)
	}
	return nil
}

// Close sends a close frame and tears the connection down. The handler still
// receives OnClose once the read loop notices.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		c.writeMu.Unlock()

		err = c.conn.Close()
	})
	return err
}

func (c *Client) readLoop() {
	var readErr error
	defer func() {
		_ = c.Close()
		c.handler.OnClose(readErr)
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				readErr = nil
			default:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					readErr = fmt.Errorf("deriv/ws: %w", domain.ErrWSDisconnect)
				} else {
					readErr = fmt.Errorf("deriv/ws: read: %w", errors.Join(domain.ErrWSDisconnect, err))
				}
			}
			return
		}
		c.handler.OnMessage(message)
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
