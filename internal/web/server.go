package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/codefionn/bookshelf/internal/command"
	"github.com/codefionn/bookshelf/internal/consts"
	"github.com/codefionn/bookshelf/internal/logger"
	"github.com/codefionn/bookshelf/internal/metrics"
	"github.com/codefionn/bookshelf/internal/pprof"
	"github.com/codefionn/bookshelf/internal/store"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// ConnectionCounter reports live protocol connections.
type ConnectionCounter interface {
	GetClientCount() int
}

// StatsSource reports store totals.
type StatsSource interface {
	Stats() store.Stats
}

// Options configures the admin server
type Options struct {
	Addr            string
	EnablePprof     bool
	MaxMessageBytes int
	// AllowedOrigins lists extra browser origins (scheme://host[:port])
	// allowed to open /ws. Same-origin and non-browser clients are always
	// allowed.
	AllowedOrigins []string
	// OnKill is called when a websocket client sends the shutdown command.
	// Nil disables the command on this transport.
	OnKill func()
}

// Health is the body of GET /health
type Health struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Accounts    int    `json:"accounts"`
}

// Server is the admin HTTP server
type Server struct {
	opts       Options
	router     *httprouter.Router
	httpServer *http.Server
	listener   net.Listener
	hub        *Hub
	dispatcher *command.Dispatcher
	conns      ConnectionCounter
	stats      StatsSource
	metrics    *metrics.Metrics
	log        *logger.Logger

	upgrader websocket.Upgrader

	// ctx is handed to the dispatcher for websocket commands and is
	// cancelled by Stop.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
}

// NewServer creates the admin server. conns and m may be nil.
func NewServer(opts Options, d *command.Dispatcher, conns ConnectionCounter, stats StatsSource, m *metrics.Metrics) *Server {
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = consts.DefaultMaxMessageBytes
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts:       opts,
		router:     httprouter.New(),
		hub:        NewHub(),
		dispatcher: d,
		conns:      conns,
		stats:      stats,
		metrics:    m,
		log:        logger.Global().WithPrefix("web"),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.handleWebSocket)

	if s.metrics != nil {
		s.router.Handler(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	if s.opts.EnablePprof {
		pprof.Register(s.router)
	}
}

// Start listens on the configured address and serves in the background
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("admin server already started")
	}

	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		ErrorLog:     logger.StdLogger(s.log, slog.LevelError),
	}
	s.started = true

	go s.hub.Run()

	go func() {
		s.log.Info("Admin server listening on %s", listener.Addr())
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server error: %v", err)
		}
	}()

	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes websocket clients and shuts the HTTP server down
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
	if !s.started {
		return nil
	}
	s.started = false

	s.log.Info("Stopping admin server...")
	s.hub.Stop()

	// Hijacked websocket connections are not tracked by Shutdown.
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	health := Health{Status: "ok"}
	if s.conns != nil {
		health.Connections = s.conns.GetClientCount()
	}
	health.Connections += s.hub.ClientCount()
	if s.stats != nil {
		health.Accounts = s.stats.Stats().Accounts
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.log.Warn("Failed to encode health: %v", err)
	}
}

// checkOrigin rejects browser pages served from another origin unless the
// origin is listed in Options.AllowedOrigins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	allowed := slices.ContainsFunc(s.opts.AllowedOrigins, func(o string) bool {
		return strings.EqualFold(strings.TrimSuffix(o, "/"), origin)
	})
	if !allowed {
		s.log.Warn("Rejected websocket from origin %s", origin)
	}
	return allowed
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("Failed to upgrade WebSocket: %v", err)
		return
	}

	client := NewClient(s.hub.NextID(), s, conn)
	if !s.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
