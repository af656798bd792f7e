package socketserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/codefionn/bookshelf/internal/command"
	"github.com/codefionn/bookshelf/internal/config"
	"github.com/codefionn/bookshelf/internal/consts"
	"github.com/codefionn/bookshelf/internal/session"
)

// Transport-level responses.
const (
	msgServerFull   = "Server is full"
	msgShuttingDown = "Server shutting down"
)

// Client represents a connected socket client
type Client struct {
	// Connection identifier
	ID string

	conn    net.Conn
	server  *Server
	session *session.Session

	// Control
	mu       sync.Mutex
	closed   bool
	stopOnce sync.Once
}

// NewClient creates a new client instance
func NewClient(id string, conn net.Conn, server *Server) *Client {
	return &Client{
		ID:      id,
		conn:    conn,
		server:  server,
		session: session.New(id, server.opts.MaxMessageBytes),
	}
}

// Serve runs the read-dispatch-write loop until the peer disconnects, a
// transport error occurs, or ctx is cancelled.
func (c *Client) Serve(ctx context.Context) {
	c.server.hub.RegisterClient(c)
	defer c.Close()
	defer func() {
		if r := recover(); r != nil {
			c.server.log.Error("Client %s: panic while handling message: %v\n%s", c.ID, r, debug.Stack())
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		msg, ok := c.readMessage()
		if !ok {
			return
		}
		if strings.TrimSpace(msg) == "" {
			continue
		}

		if command.IsKill(msg) {
			c.server.log.Info("Client %s requested shutdown", c.ID)
			_ = c.write(msgShuttingDown)
			go c.server.Stop()
			return
		}

		response := c.server.dispatcher.Dispatch(ctx, msg, c.session)
		if err := c.write(response); err != nil {
			if !isClosedError(err) {
				c.server.log.Warn("Client %s: write failed: %v", c.ID, err)
			}
			return
		}
	}
}

// readMessage performs one read into the session buffer. An oversized
// message is drained and then truncated or rejected per the overflow policy;
// a rejected message yields "" after the rejection has been sent.
func (c *Client) readMessage() (string, bool) {
	buf := c.session.Buffer()

	if timeout := c.server.opts.ReadTimeout; timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return "", false
		}
	}

	n, err := c.conn.Read(buf)
	if n == 0 && err != nil {
		c.logReadError(err)
		return "", false
	}

	if n == len(buf) {
		if drained := c.drain(); drained > 0 {
			policy := c.server.opts.OverflowPolicy
			c.server.metrics.MessageOversized(policy)
			c.server.log.Warn("Client %s: message exceeds %d bytes (%d more drained), policy %s",
				c.ID, len(buf), drained, policy)
			if policy == config.OverflowReject {
				if err := c.write(fmt.Sprintf("Message exceeds %d bytes", len(buf))); err != nil {
					return "", false
				}
				return "", true
			}
		}
	}

	return string(buf[:n]), true
}

// drain discards whatever else of the current burst is immediately
// readable and returns how many bytes it dropped.
func (c *Client) drain() int {
	scratch := make([]byte, 1024)
	total := 0
	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(consts.OverflowDrainTimeout)); err != nil {
			break
		}
		n, err := c.conn.Read(scratch)
		total += n
		if err != nil {
			break
		}
	}
	_ = c.conn.SetReadDeadline(time.Time{})
	return total
}

func (c *Client) write(response string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(consts.WriteTimeout)); err != nil {
		return err
	}
	_, err := io.WriteString(c.conn, command.Terminate(response))
	return err
}

func (c *Client) logReadError(err error) {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF):
		c.server.log.Info("Client %s disconnected", c.ID)
	case isClosedError(err):
		c.server.log.Debug("Client %s connection closed", c.ID)
	case errors.As(err, &netErr) && netErr.Timeout():
		c.server.log.Info("Client %s idle for %v, closing", c.ID, c.server.opts.ReadTimeout)
	default:
		c.server.log.Warn("Error reading from client %s: %v", c.ID, err)
	}
}

// Close closes the connection and unregisters the client. Safe to call more than once.
func (c *Client) Close() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.server.hub.UnregisterClient(c)
		if c.conn != nil {
			c.conn.Close()
		}
		c.server.log.Debug("Client %s closed after %v", c.ID, time.Since(c.session.CreatedAt()).Round(time.Millisecond))
	})
}

// IsClosed reports whether Close has been called.
func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
