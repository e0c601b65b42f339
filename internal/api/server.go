// Package api provides the HTTP REST API for the Fire TV gateway.
//
// It exposes device registry CRUD, the pairing flow, command intake, app
// management, command history and statistics to dashboards and scripts.
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

	"github.com/hms-homelab/hms-firetv/internal/apps"
	"github.com/hms-homelab/hms-firetv/internal/device"
	"github.com/hms-homelab/hms-firetv/internal/dispatch"
	"github.com/hms-homelab/hms-firetv/internal/history"
	"github.com/hms-homelab/hms-firetv/internal/infrastructure/config"
	"github.com/hms-homelab/hms-firetv/internal/infrastructure/logging"
	"github.com/hms-homelab/hms-firetv/internal/lightning"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Executor runs commands against devices. *dispatch.Dispatcher satisfies it.
type Executor interface {
	Execute(ctx context.Context, deviceID, command string, params map[string]any) (dispatch.Result, error)
	InvalidateClient(deviceID string)
}

// HistoryStore reads command history and statistics.
// *history.Repository satisfies it.
type HistoryStore interface {
	ListForDevice(ctx context.Context, deviceID string, limit, offset int) ([]history.Record, error)
	SystemStats(ctx context.Context) (*history.SystemStats, error)
	DeviceStats(ctx context.Context) ([]history.DeviceStats, error)
}

// AppStore manages per-device app rows. *apps.Repository satisfies it.
type AppStore interface {
	ListForDevice(ctx context.Context, deviceID string) ([]apps.App, error)
	Add(ctx context.Context, app *apps.App) error
	Remove(ctx context.Context, deviceID, packageName string) error
	SetFavorite(ctx context.Context, deviceID, packageName string, favorite bool) error
	RemoveAll(ctx context.Context, deviceID string) error
	ListPopular(ctx context.Context, category string) ([]apps.PopularApp, error)
	SeedFromPopular(ctx context.Context, deviceID, category string) error
}

// RosterSyncer keeps the MQTT side in step with registry changes.
// *bridge.Bridge satisfies it. Optional: nil disables syncing.
type RosterSyncer interface {
	SyncDevice(ctx context.Context, dev *device.Device) error
	DropDevice(ctx context.Context, deviceID string) error
}

// pairingClient is the slice of the protocol client the pairing flow needs.
type pairingClient interface {
	DisplayPIN(ctx context.Context, friendlyName string) (string, error)
	VerifyPIN(ctx context.Context, pin string) (string, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Lightning config.LightningConfig
	Logger    *logging.Logger
	Devices   device.Repository
	Executor  Executor
	History   HistoryStore
	Apps      AppStore
	Bridge    RosterSyncer // optional
	Version   string
}

// Server is the HTTP API server for the Fire TV gateway.
//
// It manages the HTTP listener, routes and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	lightning config.LightningConfig
	logger    *logging.Logger
	devices   device.Repository
	executor  Executor
	history   HistoryStore
	apps      AppStore
	bridge    RosterSyncer
	version   string
	server    *http.Server

	// pairing builds a protocol client for the pairing endpoints; tests
	// substitute fakes.
	pairing func(cfg lightning.Config) pairingClient
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, registry, dispatcher)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device repository is required")
	}
	if deps.Executor == nil {
		return nil, fmt.Errorf("command executor is required")
	}

	return &Server{
		cfg:       deps.Config,
		lightning: deps.Lightning,
		logger:    deps.Logger,
		devices:   deps.Devices,
		executor:  deps.Executor,
		history:   deps.History,
		apps:      deps.Apps,
		bridge:    deps.Bridge,
		version:   deps.Version,
		pairing: func(cfg lightning.Config) pairingClient {
			return lightning.NewClient(cfg)
		},
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(_ context.Context) error {
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
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server listening", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
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
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
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

// lightningConfig builds the protocol client config for one device, filling
// gaps from the gateway defaults.
func (s *Server) lightningConfig(dev *device.Device) lightning.Config {
	apiKey := dev.APIKey
	if apiKey == "" {
		apiKey = s.lightning.APIKey
	}
	return lightning.Config{
		Address:        dev.IPAddress,
		APIKey:         apiKey,
		ClientToken:    dev.ClientToken,
		ControlPort:    s.lightning.ControlPort,
		WakePort:       s.lightning.WakePort,
		WakeTimeout:    time.Duration(s.lightning.Timeouts.Wake) * time.Second,
		HealthTimeout:  time.Duration(s.lightning.Timeouts.Health) * time.Second,
		CommandTimeout: time.Duration(s.lightning.Timeouts.Command) * time.Second,
	}
}
