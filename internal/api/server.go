// Package api provides the HTTP REST API and WebSocket event feed for
// VoltGuard.
//
// It exposes device state, power control, schedule management and energy
// reports to dashboard clients, and runs the hub that pushes device
// snapshots, activity logs, alerts and schedule events to them in real
// time.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/voltguard/voltguard-core/internal/alert"
	"github.com/voltguard/voltguard-core/internal/device"
	"github.com/voltguard/voltguard-core/internal/energy"
	"github.com/voltguard/voltguard-core/internal/forecast"
	"github.com/voltguard/voltguard-core/internal/infrastructure/config"
	"github.com/voltguard/voltguard-core/internal/infrastructure/database"
	"github.com/voltguard/voltguard-core/internal/infrastructure/logging"
	"github.com/voltguard/voltguard-core/internal/platform"
	"github.com/voltguard/voltguard-core/internal/schedule"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Dispatcher delivers power commands. Satisfied by *platform.Dispatcher.
type Dispatcher interface {
	Send(ctx context.Context, deviceID string, action platform.Action) (platform.Result, error)
}

// Enumerator resolves the managed device set for group commands.
type Enumerator func(ctx context.Context) ([]string, error)

// DetailFetcher pulls a device's latest state from the platform REST API
// for on-demand detail requests. Satisfied by *platform.Client.
type DetailFetcher interface {
	FetchTelemetry(ctx context.Context, deviceID string, keys []string) (map[string]string, error)
	FetchPowerAttribute(ctx context.Context, deviceID string) (string, error)
}

// Predictor serves consumption forecasts. Satisfied by *forecast.Client.
type Predictor interface {
	Predict(ctx context.Context, deviceID string) (*forecast.Prediction, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Logger     *logging.Logger
	Store      *device.Store
	Dispatcher Dispatcher
	Enumerate  Enumerator
	Alerts     *alert.Engine
	Rules      schedule.Repository
	Energy     *energy.Tracker
	Fetcher    DetailFetcher // Optional: on-demand device detail refresh
	Forecast   Predictor     // Optional: consumption predictions
	DB         *database.DB  // Optional: included in health reporting
	Keys       []string      // Telemetry keys for on-demand fetches
	Version    string
}

// Server is the HTTP API server for VoltGuard.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	store      *device.Store
	dispatcher Dispatcher
	enumerate  Enumerator
	alerts     *alert.Engine
	rules      schedule.Repository
	energy     *energy.Tracker
	fetcher    DetailFetcher
	forecaster Predictor
	db         *database.DB
	keys       []string
	version    string
	server     *http.Server
	hub        *Hub
	cancel     context.CancelFunc
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("device store is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	var registry ThresholdRegistry
	if deps.Alerts != nil {
		registry = deps.Alerts
	}

	return &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		hub:        NewHub(deps.WS, registry, deps.Logger),
		logger:     deps.Logger,
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		enumerate:  deps.Enumerate,
		alerts:     deps.Alerts,
		rules:      deps.Rules,
		energy:     deps.Energy,
		fetcher:    deps.Fetcher,
		forecaster: deps.Forecast,
		db:         deps.DB,
		keys:       deps.Keys,
		version:    deps.Version,
	}, nil
}

// Hub returns the server's WebSocket hub. The hub is created in New so
// request handlers and the wiring in main share one instance without
// any initialization race. Exposed so the ingestion router, scheduler
// and alert engine can be wired to the same hub the server serves.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It builds the router, starts the WebSocket hub, and launches the HTTP
// listener in a background goroutine. The server is stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	hub := s.Hub()
	go hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then
// forcefully closes remaining connections.
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
