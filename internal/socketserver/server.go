package socketserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/codefionn/bookshelf/internal/command"
	"github.com/codefionn/bookshelf/internal/config"
	"github.com/codefionn/bookshelf/internal/consts"
	"github.com/codefionn/bookshelf/internal/logger"
	"github.com/codefionn/bookshelf/internal/metrics"
)

// Options configures the TCP server.
type Options struct {
	Addr            string
	MaxConnections  int
	MaxMessageBytes int
	OverflowPolicy  string
	// ReadTimeout closes connections idle for longer; 0 disables it.
	ReadTimeout time.Duration
}

// OptionsFromConfig extracts the server options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Addr:            cfg.ListenAddr(),
		MaxConnections:  cfg.MaxConnections,
		MaxMessageBytes: cfg.MaxMessageBytes,
		OverflowPolicy:  cfg.OverflowPolicy,
		ReadTimeout:     cfg.ReadTimeout(),
	}
}

// Server represents the TCP protocol server
type Server struct {
	opts       Options
	dispatcher *command.Dispatcher
	hub        *Hub
	listener   net.Listener
	metrics    *metrics.Metrics
	log        *logger.Logger

	// Connection tracking
	connMu    sync.RWMutex
	clients   map[string]*Client
	connCount int
	wg        sync.WaitGroup

	// Control
	mu       sync.Mutex
	running  bool
	baseCtx  context.Context
	cancel   context.CancelFunc
	stopChan chan struct{}
	stopOnce sync.Once

	// Connection ID counter
	connIDCounter int
	connIDMu      sync.Mutex
}

// NewServer creates a new TCP server dispatching to d. m may be nil.
func NewServer(opts Options, d *command.Dispatcher, m *metrics.Metrics) *Server {
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = consts.DefaultMaxConnections
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = consts.DefaultMaxMessageBytes
	}
	if opts.OverflowPolicy == "" {
		opts.OverflowPolicy = config.OverflowTruncate
	}
	return &Server{
		opts:       opts,
		dispatcher: d,
		hub:        NewHub(),
		metrics:    m,
		log:        logger.Global().WithPrefix("socket"),
		clients:    make(map[string]*Client),
		stopChan:   make(chan struct{}),
	}
}

// Start binds the listener and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	select {
	case <-s.stopChan:
		s.mu.Unlock()
		return fmt.Errorf("server has been stopped")
	default:
	}

	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	s.listener = listener
	s.baseCtx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.mu.Unlock()

	// Start hub in background
	go s.hub.Run()

	// Start connection accept loop
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop()
	}()

	s.log.Info("Server started on %s (max connections: %d, max message: %d bytes, overflow: %s)",
		listener.Addr(), s.opts.MaxConnections, s.opts.MaxMessageBytes, s.opts.OverflowPolicy)
	return nil
}

// Run starts the server and blocks until it stops, either through Stop,
// a client's shutdown command, or ctx.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		s.Stop()
	case <-s.stopChan:
	}
	s.wg.Wait()
	return nil
}

// Stop closes the listener, which wakes the accept loop, and every client
// connection. It is safe to call more than once and from any goroutine.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.log.Info("Stopping server...")

		s.mu.Lock()
		s.running = false
		close(s.stopChan)
		if s.cancel != nil {
			s.cancel()
		}
		listener := s.listener
		s.mu.Unlock()

		if listener != nil {
			if err := listener.Close(); err != nil && !isClosedError(err) {
				s.log.Error("Error closing listener: %v", err)
			}
		}

		s.hub.Shutdown()

		s.connMu.RLock()
		remaining := make([]*Client, 0, len(s.clients))
		for _, c := range s.clients {
			remaining = append(remaining, c)
		}
		s.connMu.RUnlock()
		for _, c := range remaining {
			c.Close()
		}

		s.log.Info("Server stopped")
	})
}

// Done is closed once Stop has begun.
func (s *Server) Done() <-chan struct{} {
	return s.stopChan
}

// Wait blocks until the accept loop and every connection goroutine have returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// acceptLoop accepts incoming connections until the listener is closed.
func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if isClosedError(err) || !s.IsRunning() {
				s.log.Debug("Listener closed, exiting accept loop")
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			s.log.Error("Error accepting connection: %v", err)
			continue
		}

		if !s.checkConnectionLimit() {
			s.log.Warn("Connection limit reached, rejecting connection from %s", conn.RemoteAddr())
			s.metrics.ConnectionRejected()
			s.reject(conn)
			continue
		}

		clientID := s.generateConnectionID()
		client := NewClient(clientID, conn, s)

		s.trackClient(clientID, client)
		s.metrics.ConnectionOpened()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrackClient(clientID)
			defer s.metrics.ConnectionClosed()
			client.Serve(s.baseCtx)
		}()

		s.log.Info("New connection accepted: %s from %s (total: %d)", clientID, conn.RemoteAddr(), s.GetClientCount())
	}
}

func (s *Server) reject(conn net.Conn) {
	_ = conn.SetWriteDeadline(time.Now().Add(consts.WriteTimeout))
	_, _ = conn.Write([]byte(command.Terminate(msgServerFull)))
	conn.Close()
}

// checkConnectionLimit checks if we can accept more connections
func (s *Server) checkConnectionLimit() bool {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return s.connCount < s.opts.MaxConnections
}

// trackClient adds a client to tracking
func (s *Server) trackClient(clientID string, client *Client) {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	s.clients[clientID] = client
	s.connCount++
}

// untrackClient removes a client from tracking
func (s *Server) untrackClient(clientID string) {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if _, ok := s.clients[clientID]; ok {
		delete(s.clients, clientID)
		s.connCount--
	}
}

// generateConnectionID generates a unique connection ID
func (s *Server) generateConnectionID() string {
	s.connIDMu.Lock()
	defer s.connIDMu.Unlock()

	s.connIDCounter++
	return fmt.Sprintf("conn_%d", s.connIDCounter)
}

// GetClientCount returns the number of connected clients
func (s *Server) GetClientCount() int {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return s.connCount
}

// IsRunning returns whether the server is running
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// isClosedError checks if an error indicates a closed listener or connection
func isClosedError(err error) bool {
	return err != nil && errors.Is(err, net.ErrClosed)
}
