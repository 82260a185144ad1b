// Package ws is the websocket transport: it authenticates upgrades, binds a
// principal to each connection, and pumps frames between the socket and the
// broker.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/taskrooms/taskrooms/internal/broker"
	"github.com/taskrooms/taskrooms/internal/model"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum inbound frame size.
	maxMessageSize = 8192
)

// Client is one live websocket connection. It implements broker.Conn: the
// broker enqueues outbound events on a bounded channel and the write pump
// drains it; a full channel marks the consumer stalled and the connection is
// torn down instead of blocking fanout.
type Client struct {
	id     string
	user   *model.User
	conn   *websocket.Conn
	send   chan broker.Event
	broker *broker.Broker
	log    zerolog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(id string, user *model.User, conn *websocket.Conn, b *broker.Broker, log zerolog.Logger, sendBuffer int) *Client {
	return &Client{
		id:     id,
		user:   user,
		conn:   conn,
		send:   make(chan broker.Event, sendBuffer),
		broker: b,
		log:    log,
		done:   make(chan struct{}),
	}
}

func (c *Client) ID() string             { return c.id }
func (c *Client) Principal() *model.User { return c.user }

// Send enqueues an event without blocking. A full buffer means the peer has
// stopped draining; the connection is closed and false is returned so the
// broker skips it.
func (c *Client) Send(evt broker.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- evt:
		return true
	default:
		c.close()
		return false
	}
}

// close tears the connection down once; the read pump unblocks and runs
// disconnect cleanup.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// readPump reads frames and dispatches them to the broker synchronously: one
// goroutine per connection keeps per-client server-arrival order.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.broker.Disconnect(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Str("conn", c.id).Err(err).Msg("websocket read failed")
			}
			return
		}
		c.broker.Dispatch(ctx, c, frame)
	}
}

// writePump drains the send channel to the socket with write deadlines and
// keepalive pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case evt := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
			return
		}
	}
}
