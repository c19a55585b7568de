// VoltGuard Core - Real-Time Device State & Automation Engine
//
// This is the main entry point for the VoltGuard Core application.
// VoltGuard supervises a fleet of smart power plugs on an upstream IoT
// cloud platform:
//   - Live telemetry ingestion over the platform's subscription socket
//   - Current-threshold alerting with automatic shutdown
//   - Calendar-based automation schedules
//   - Hourly energy accounting and cost reporting
//
// State flows one way: platform -> ingestion -> store -> API/WebSocket.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/voltguard/voltguard-core/migrations"

	"github.com/voltguard/voltguard-core/internal/alert"
	"github.com/voltguard/voltguard-core/internal/api"
	"github.com/voltguard/voltguard-core/internal/device"
	"github.com/voltguard/voltguard-core/internal/energy"
	"github.com/voltguard/voltguard-core/internal/forecast"
	"github.com/voltguard/voltguard-core/internal/infrastructure/config"
	"github.com/voltguard/voltguard-core/internal/infrastructure/database"
	"github.com/voltguard/voltguard-core/internal/infrastructure/influxdb"
	"github.com/voltguard/voltguard-core/internal/infrastructure/logging"
	"github.com/voltguard/voltguard-core/internal/ingest"
	"github.com/voltguard/voltguard-core/internal/platform"
	"github.com/voltguard/voltguard-core/internal/schedule"
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
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting VoltGuard Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Connect to the forecast service (optional). A connection failure is
	// tolerated: predictions return ErrNotConnected until it recovers.
	var forecastClient *forecast.Client
	forecastClient, err = forecast.New(cfg.Forecast, log)
	switch {
	case errors.Is(err, forecast.ErrDisabled):
		log.Info("forecast service disabled")
		forecastClient = nil
	case err != nil:
		return fmt.Errorf("creating forecast client: %w", err)
	default:
		if connErr := forecastClient.Connect(ctx); connErr != nil {
			log.Warn("forecast service unreachable, predictions unavailable", "error", connErr)
		} else {
			log.Info("forecast service connected", "url", cfg.Forecast.URL)
		}
		defer func() {
			if closeErr := forecastClient.Close(); closeErr != nil {
				log.Error("error closing forecast connection", "error", closeErr)
			}
		}()
	}

	// Platform REST client and command dispatcher share the credential.
	client := platform.NewClient(cfg.Platform, log)
	dispatcher := platform.NewDispatcher(cfg.Platform, log)

	// A bad credential or an unreachable platform is never fatal: the
	// ingestion router and refresh poller each revalidate on their own
	// timers and recover once the platform accepts the token again.
	if verifyErr := client.VerifyToken(ctx); verifyErr != nil {
		log.Warn("platform credential check failed at startup, ingestion will keep retrying",
			"url", cfg.Platform.URL, "error", verifyErr)
	} else {
		log.Info("platform credential verified", "url", cfg.Platform.URL)
	}

	// enumerate resolves the managed device set: group, then tenant, then
	// the statically configured device.
	enumerate := func(ctx context.Context) ([]string, error) {
		return client.ListDevices(ctx, cfg.Platform.GroupID, cfg.Platform.DeviceID)
	}

	// Device state store with deterministic metadata assignment.
	store := device.NewStore(cfg.Platform.TelemetryKeys, device.NewAssigner(), log)

	// Energy tracker: sealed hours go to InfluxDB and the forecast model.
	var energySink energy.Sink
	if influxClient != nil {
		energySink = influxClient
	}
	var feedback energy.Feedback
	if forecastClient != nil {
		feedback = forecastClient
	}
	tracker := energy.NewTracker(cfg.Energy.PricePerKWh, energySink, feedback, log)

	// Alert engine; its notifier is bound once the websocket hub exists.
	alerts := alert.New(dispatcher, nil, cfg.Alert.SingleTrigger, log)

	// Schedule repository backed by SQLite.
	rules := schedule.NewSQLiteRepository(db.DB)

	// API server and websocket hub.
	var predictor api.Predictor
	if forecastClient != nil {
		predictor = forecastClient
	}
	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log,
		Store:      store,
		Dispatcher: dispatcher,
		Enumerate:  enumerate,
		Alerts:     alerts,
		Rules:      rules,
		Energy:     tracker,
		Fetcher:    client,
		Forecast:   predictor,
		DB:         db,
		Keys:       cfg.Platform.TelemetryKeys,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	hub := server.Hub()
	alerts.SetNotifier(hub)

	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Telemetry ingestion: subscription socket plus periodic REST sweep.
	var metrics ingest.MetricsSink
	if influxClient != nil {
		metrics = influxClient
	}
	router := ingest.NewRouter(cfg.Platform, client, enumerate, store, alerts, tracker, metrics, hub, log)
	go router.Run(ctx)

	refresher := ingest.NewRefresher(
		client,
		enumerate,
		store,
		hub,
		cfg.Platform.TelemetryKeys,
		cfg.Refresh.GetInterval(),
		log,
	)
	go refresher.Run(ctx)

	// Schedule executor polls rules against the wall clock.
	executor := schedule.NewExecutor(
		rules,
		dispatcher,
		schedule.Enumerator(enumerate),
		hub,
		cfg.Scheduler.GetPollInterval(),
		cfg.Scheduler.GetDeviceDelay(),
		log,
	)
	go executor.Run(ctx)

	// Verify infrastructure connections are healthy
	if err := healthCheck(ctx, db, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (drains in-flight requests, closes websocket clients)
	// 2. Forecast connection (if enabled)
	// 3. InfluxDB (if enabled, flushes pending writes)
	// 4. Database

	log.Info("VoltGuard Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses VOLTGUARD_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("VOLTGUARD_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies infrastructure connections are healthy.
// The platform itself is excluded: its availability is a runtime concern
// handled by the ingestion reconnect loop, not a startup gate.
func healthCheck(ctx context.Context, db *database.DB, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
