package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Quantum-Fiend/PolyAutomate/internal/analytics"
	"github.com/Quantum-Fiend/PolyAutomate/internal/audit"
	"github.com/Quantum-Fiend/PolyAutomate/internal/auth"
	"github.com/Quantum-Fiend/PolyAutomate/internal/execution"
	"github.com/Quantum-Fiend/PolyAutomate/internal/infrastructure/config"
	"github.com/Quantum-Fiend/PolyAutomate/internal/infrastructure/logging"
	"github.com/Quantum-Fiend/PolyAutomate/internal/plugin"
	"github.com/Quantum-Fiend/PolyAutomate/internal/task"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// EngineStatus reports the automation engine's announced availability.
// Implemented by the engine link; optional.
type EngineStatus interface {
	EngineOnline() bool
}

// HTTPMetricsWriter records per-request telemetry. Implemented by the
// influxdb client; optional.
type HTTPMetricsWriter interface {
	WriteHTTPMetric(method, route string, status int, durationMS float64)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Security   config.SecurityConfig
	Logger     *logging.Logger
	Users      auth.UserRepository
	Tasks      *task.Registry
	Tracker    *execution.Tracker
	Executions execution.Repository
	Plugins    plugin.Repository
	Analytics  *analytics.Service
	Audit      *audit.Recorder   // optional
	Engine     EngineStatus      // optional
	Metrics    HTTPMetricsWriter // optional
	Version    string
}

// Server is the HTTP API server for PolyAutomate.
//
// It manages the HTTP listener, routes, middleware, the WebSocket hub,
// and the single-use WebSocket ticket store. The server is created with
// New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	secCfg     config.SecurityConfig
	logger     *logging.Logger
	users      auth.UserRepository
	tasks      *task.Registry
	tracker    *execution.Tracker
	executions execution.Repository
	plugins    plugin.Repository
	analytics  *analytics.Service
	audit      *audit.Recorder
	engine     EngineStatus
	metrics    HTTPMetricsWriter
	version    string
	startedAt  time.Time

	server  *http.Server
	hub     *Hub
	tickets *ticketStore
	cancel  context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if deps.Tasks == nil {
		return nil, fmt.Errorf("task registry is required")
	}
	if deps.Tracker == nil {
		return nil, fmt.Errorf("execution tracker is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		logger:     deps.Logger,
		users:      deps.Users,
		tasks:      deps.Tasks,
		tracker:    deps.Tracker,
		executions: deps.Executions,
		plugins:    deps.Plugins,
		analytics:  deps.Analytics,
		audit:      deps.Audit,
		engine:     deps.Engine,
		metrics:    deps.Metrics,
		version:    deps.Version,
		tickets:    newTicketStore(),
	}
	s.hub = NewHub(deps.WS, deps.Logger, s.authorizeJoin)

	return s, nil
}

// Hub returns the server's WebSocket hub so other components (the
// execution tracker) can publish events through it.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and ticket cleanup goroutines, builds the
// router, and launches the HTTP listener in the background. The server
// can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.startedAt = time.Now().UTC()

	go s.hub.Run(srvCtx)
	go s.tickets.cleanLoop(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub, ticket cleanup)
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

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
