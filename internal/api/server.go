// Package api provides the HTTP status API and WebSocket message stream for
// the sensor network proxy.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/sensor-net-proxy/internal/bridges/mysensors"
	"github.com/nerrad567/sensor-net-proxy/internal/infrastructure/config"
	"github.com/nerrad567/sensor-net-proxy/internal/infrastructure/logging"
	"github.com/nerrad567/sensor-net-proxy/internal/inventory"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Loop is the part of the event loop the API drives.
// *mysensors.Loop satisfies it.
type Loop interface {
	Submit(ctx context.Context, msg mysensors.Message) (int, error)
	Stats() mysensors.LoopStats
}

// GatewayLister lists registered gateways. *mysensors.Registry satisfies it.
type GatewayLister interface {
	Gateways() []mysensors.GatewayEndpoint
}

// NodeStore is the node inventory. *inventory.Registry satisfies it.
type NodeStore interface {
	ListNodes() []inventory.Node
	GetNode(ctx context.Context, id int) (*inventory.Node, error)
	DeleteNode(ctx context.Context, id int) error
	Count() int
}

// HealthChecker is implemented by every backing service with a health check
// (MQTT, SQLite, InfluxDB).
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Loop     Loop
	Gateways GatewayLister
	Nodes    NodeStore                // optional: nil when the inventory is disabled
	Checks   map[string]HealthChecker // optional: named component checks
	DBStats  func() sql.DBStats       // optional
	Hub      *Hub                     // optional: created by Start when nil
	Version  string
}

// Server is the HTTP API server for the proxy.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	loop      Loop
	gateways  GatewayLister
	nodes     NodeStore
	checks    map[string]HealthChecker
	dbStats   func() sql.DBStats
	version   string
	startTime time.Time

	server      *http.Server
	listener    net.Listener
	hub         *Hub
	externalHub bool
	cancel      context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Loop == nil {
		return nil, errors.New("event loop is required")
	}
	if deps.Gateways == nil {
		return nil, errors.New("gateway registry is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		loop:      deps.Loop,
		gateways:  deps.Gateways,
		nodes:     deps.Nodes,
		checks:    deps.Checks,
		dbStats:   deps.DBStats,
		version:   deps.Version,
		startTime: time.Now(),
	}

	// The hub is usually created in main and shared with the inbound
	// pipeline, which publishes into it.
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	}

	return s, nil
}

// Hub returns the WebSocket hub. Nil before Start unless one was injected.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// The listener is bound synchronously so a port conflict is reported to the
// caller; requests are served in a background goroutine until Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port)),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	s.logger.Info("API server listening", "address", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return errors.New("api server not started")
	}
	return nil
}
