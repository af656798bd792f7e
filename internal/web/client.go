package web

import (
	"strings"
	"sync"
	"time"

	"github.com/codefionn/bookshelf/internal/command"
	"github.com/codefionn/bookshelf/internal/session"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	msgShuttingDown = "Server shutting down"
)

// Client is one websocket connection with its own protocol session
type Client struct {
	ID      string
	server  *Server
	conn    *websocket.Conn
	send    chan string
	session *session.Session

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a new WebSocket client
func NewClient(id string, server *Server, conn *websocket.Conn) *Client {
	return &Client{
		ID:      id,
		server:  server,
		conn:    conn,
		send:    make(chan string, 16),
		session: session.New(id, server.opts.MaxMessageBytes),
		done:    make(chan struct{}),
	}
}

// ReadPump runs each text frame through the dispatcher in order
func (c *Client) ReadPump() {
	log := c.server.log
	defer func() {
		if r := recover(); r != nil {
			log.Error("Client %s panicked: %v", c.ID, r)
		}
		c.server.hub.Unregister(c)
		c.conn.Close()
		log.Debug("Client %s closed after %v", c.ID, time.Since(c.session.CreatedAt()).Round(time.Millisecond))
	}()

	c.conn.SetReadLimit(int64(c.server.opts.MaxMessageBytes))
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := c.server.ctx
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn("WebSocket read error on %s: %v", c.ID, err)
			}
			return
		}
		msg := string(message)
		if strings.TrimSpace(msg) == "" {
			continue
		}

		if c.server.opts.OnKill != nil && command.IsKill(msg) {
			log.Info("Client %s requested shutdown", c.ID)
			c.reply(msgShuttingDown)
			go c.server.opts.OnKill()
			continue
		}

		c.reply(c.server.dispatcher.Dispatch(ctx, msg, c.session))
	}
}

// WritePump writes replies and keeps the connection alive with pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.flushQueued()
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
				c.server.log.Warn("Failed to write to %s: %v", c.ID, err)
				c.close()
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// reply queues a response, giving up once the client is closed.
func (c *Client) reply(response string) {
	select {
	case c.send <- command.Terminate(response):
	case <-c.done:
	}
}

// flushQueued writes replies that were queued before the client closed.
func (c *Client) flushQueued() {
	for {
		select {
		case message := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}
