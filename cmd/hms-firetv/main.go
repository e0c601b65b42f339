// HMS FireTV - Fire TV gateway for the home automation stack.
//
// The gateway bridges Fire TV devices speaking the Lightning protocol onto
// two fronts: a REST API for dashboards and scripts, and MQTT topics for
// Home Assistant. Commands from either side funnel through one dispatcher
// that wakes sleeping devices, talks to the TV and records the outcome.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/hms-homelab/hms-firetv/migrations"

	"github.com/hms-homelab/hms-firetv/internal/api"
	"github.com/hms-homelab/hms-firetv/internal/apps"
	"github.com/hms-homelab/hms-firetv/internal/bridge"
	"github.com/hms-homelab/hms-firetv/internal/device"
	"github.com/hms-homelab/hms-firetv/internal/dispatch"
	"github.com/hms-homelab/hms-firetv/internal/history"
	"github.com/hms-homelab/hms-firetv/internal/infrastructure/config"
	"github.com/hms-homelab/hms-firetv/internal/infrastructure/database"
	"github.com/hms-homelab/hms-firetv/internal/infrastructure/logging"
	"github.com/hms-homelab/hms-firetv/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting HMS FireTV",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration. A missing file falls back to built-in defaults
	// plus environment overrides, so the gateway runs in a bare container.
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading config: %w", err)
		}
		log.Warn("config file not found, using defaults", "path", configPath)
		cfg = config.Default()
	} else {
		log.Info("configuration loaded", "path", configPath)
	}

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Connect to PostgreSQL
	pool := database.New(ctx, cfg.Database)
	pool.SetLogger(log)
	defer func() {
		log.Info("closing database pool")
		pool.Shutdown()
	}()
	log.Info("database pool ready",
		"host", cfg.Database.Host,
		"connections", pool.IdleCount(),
	)

	// Run migrations
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection for migrations: %w", err)
	}
	err = database.Migrate(ctx, conn)
	conn.Release()
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete")

	// Repositories
	deviceRepo := device.NewPostgresRepository(pool)
	historyRepo := history.NewRepository(pool)
	appRepo := apps.NewRepository(pool)

	// Async history logger; writes flow to PostgreSQL off the command path
	histLogger := history.NewLogger(cfg.History.QueueSize, historyRepo.Insert)
	histLogger.SetLogger(log)
	defer func() {
		log.Info("draining history queue", "dropped", histLogger.Dropped())
		histLogger.Stop()
	}()

	// Command dispatcher
	dispatcher := dispatch.New(deviceRepo, histLogger, dispatch.Options{
		ControlPort:    cfg.Lightning.ControlPort,
		WakePort:       cfg.Lightning.WakePort,
		WakeTimeout:    time.Duration(cfg.Lightning.Timeouts.Wake) * time.Second,
		HealthTimeout:  time.Duration(cfg.Lightning.Timeouts.Health) * time.Second,
		CommandTimeout: time.Duration(cfg.Lightning.Timeouts.Command) * time.Second,
		Settle:         cfg.Lightning.GetWakeSettle(),
		CacheCapacity:  cfg.Cache.Capacity,
		CacheTTL:       time.Duration(cfg.Cache.TTL) * time.Second,
	})
	dispatcher.SetLogger(log)

	// MQTT bridge for Home Assistant
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT broker: %w", err)
	}
	mqttClient.SetLogger(log)
	defer func() {
		log.Info("disconnecting from MQTT broker")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT client", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"host", cfg.MQTT.Broker.Host,
		"port", cfg.MQTT.Broker.Port,
	)

	haBridge := bridge.New(mqttClient, deviceRepo, dispatcher, byte(cfg.MQTT.QoS), log)
	if err := haBridge.Start(ctx); err != nil {
		return fmt.Errorf("starting MQTT bridge: %w", err)
	}
	defer haBridge.Stop()

	// Re-establish roster subscriptions after broker reconnects.
	mqttClient.SetOnConnect(func() {
		rctx, rcancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer rcancel()
		if err := haBridge.Resubscribe(rctx); err != nil {
			log.Warn("roster resubscribe after reconnect failed", "error", err)
		}
	})

	// REST API
	apiServer, err := api.New(api.Deps{
		Config:    cfg.API,
		Lightning: cfg.Lightning,
		Logger:    log,
		Devices:   deviceRepo,
		Executor:  dispatcher,
		History:   historyRepo,
		Apps:      appRepo,
		Bridge:    haBridge,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("HMS FireTV running",
		"api", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		"devices_topic", cfg.MQTT.Topics.Prefix,
	)

	// Block until shutdown signal
	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}

// getConfigPath returns the config file path from the environment or the
// default location.
func getConfigPath() string {
	if path := os.Getenv("HMSFIRETV_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
