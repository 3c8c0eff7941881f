package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
	"github.com/dukerupert/praxisbackup/internal/auth"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Client is one operator watching backup runs. The stream is one-way: a
// data frame from the operator closes the connection.
type Client struct {
	hub    *Hub
	conn   *ws.Conn
	send   chan []byte
	method auth.Method
}

func NewClient(hub *Hub, conn *ws.Conn, method auth.Method) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		method: method,
	}
}

// Run streams run events until the operator disconnects or ctx ends. The
// first message is the outcome of the previous run when one is known.
func (c *Client) Run(ctx context.Context) {
	ctx = c.conn.CloseRead(ctx)

	c.hub.Register(c)
	defer c.hub.Unregister(c)
	c.hub.logger.Info("operator connected", "method", c.method, "clients", c.hub.ClientCount())
	defer c.hub.logger.Info("operator disconnected", "method", c.method)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.Close(ws.StatusGoingAway, "server shutting down")
				return
			}
			if err := c.write(ctx, msg); err != nil {
				c.hub.logger.Debug("websocket write", "error", err)
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) write(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, ws.MessageText, msg)
}
