package socketclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// ConnectionState represents the current state of the connection
type ConnectionState int

const (
	// StateDisconnected indicates the client is not connected
	StateDisconnected ConnectionState = iota
	// StateConnecting indicates a dial is in progress
	StateConnecting
	// StateConnected indicates the client is connected
	StateConnected
	// StateClosed indicates the client has been closed
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrNotConnected is returned by Send before Connect or after Close.
var ErrNotConnected = errors.New("not connected")

// Config holds client configuration
type Config struct {
	// Addr is the host:port of the server
	Addr string
	// ConnectTimeout is the timeout for the initial dial
	ConnectTimeout time.Duration
	// RequestTimeout bounds a whole request/response exchange
	RequestTimeout time.Duration
	// QuietPeriod is how long the reader waits for more bytes after a
	// newline-terminated chunk before treating the reply as complete
	QuietPeriod time.Duration
	// WriteTimeout is the timeout for writing a request
	WriteTimeout time.Duration
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Addr:           "localhost:7777",
		ConnectTimeout: 10 * time.Second,
		RequestTimeout: 30 * time.Second,
		QuietPeriod:    75 * time.Millisecond,
		WriteTimeout:   10 * time.Second,
	}
}

// Client represents a protocol client. Requests are serialized; it is safe
// for concurrent use.
type Client struct {
	config *Config

	conn   net.Conn
	connMu sync.Mutex
	state  atomic.Int32 // ConnectionState
}

// NewClient creates a client for addr with default settings
func NewClient(addr string) *Client {
	cfg := DefaultConfig()
	cfg.Addr = addr
	return NewClientWithConfig(cfg)
}

// NewClientWithConfig creates a client with custom configuration
func NewClientWithConfig(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	return &Client{config: config}
}

// Connect dials the server
func (c *Client) Connect(ctx context.Context) error {
	if state := c.GetState(); state != StateDisconnected {
		return fmt.Errorf("cannot connect: client is %s", state)
	}
	c.setState(StateConnecting)

	dialer := net.Dialer{Timeout: c.config.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.config.Addr)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("failed to connect to %s: %w", c.config.Addr, err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.setState(StateConnected)
	return nil
}

// Send writes one message and returns the reply without its final newline.
func (c *Client) Send(ctx context.Context, message string) (string, error) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil || c.GetState() != StateConnected {
		return "", ErrNotConnected
	}

	deadline := time.Now().Add(c.config.RequestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
		return "", err
	}
	if _, err := c.conn.Write([]byte(message)); err != nil {
		c.dropLocked()
		return "", fmt.Errorf("failed to send: %w", err)
	}

	reply, err := c.readReply(ctx, deadline)
	if err != nil {
		c.dropLocked()
		return "", err
	}
	return string(bytes.TrimSuffix(reply, []byte("\n"))), nil
}

// readReply reads until the data ends in a newline and the connection then
// stays quiet for the configured period.
func (c *Client) readReply(ctx context.Context, deadline time.Time) ([]byte, error) {
	var reply []byte
	chunk := make([]byte, 4096)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		readDeadline := deadline
		complete := len(reply) > 0 && reply[len(reply)-1] == '\n'
		if complete {
			readDeadline = time.Now().Add(c.config.QuietPeriod)
		}
		if err := c.conn.SetReadDeadline(readDeadline); err != nil {
			return nil, err
		}

		n, err := c.conn.Read(chunk)
		reply = append(reply, chunk[:n]...)
		if err == nil {
			continue
		}

		var netErr net.Error
		if complete && n == 0 && errors.As(err, &netErr) && netErr.Timeout() {
			return reply, nil
		}
		if len(reply) > 0 && reply[len(reply)-1] == '\n' && !(errors.As(err, &netErr) && netErr.Timeout()) {
			// Server closed right after replying, e.g. after the shutdown command.
			return reply, nil
		}
		return nil, fmt.Errorf("failed to read reply: %w", err)
	}
}

// dropLocked closes the connection after a transport failure.
func (c *Client) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.setState(StateDisconnected)
}

// Close closes the connection
func (c *Client) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.setState(StateClosed)
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// IsConnected returns whether the client is connected
func (c *Client) IsConnected() bool {
	return c.GetState() == StateConnected
}

// GetState returns the current connection state
func (c *Client) GetState() ConnectionState {
	return ConnectionState(c.state.Load())
}

func (c *Client) setState(state ConnectionState) {
	c.state.Store(int32(state))
}
