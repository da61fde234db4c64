// PolyAutomate - Task Automation Control Plane
//
// This is the main entry point for the PolyAutomate control plane. It
// owns users, tasks, execution state, and the plugin catalogue, and
// talks to the script execution engine over MQTT:
//   - REST API + WebSocket fan-out for user interfaces
//   - Owner-scoped task and execution storage in SQLite
//   - Execution lifecycle tracking driven by engine reports
//   - Optional InfluxDB telemetry for execution and API metrics
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/Quantum-Fiend/PolyAutomate/migrations"

	"github.com/Quantum-Fiend/PolyAutomate/internal/analytics"
	"github.com/Quantum-Fiend/PolyAutomate/internal/api"
	"github.com/Quantum-Fiend/PolyAutomate/internal/audit"
	"github.com/Quantum-Fiend/PolyAutomate/internal/auth"
	"github.com/Quantum-Fiend/PolyAutomate/internal/enginelink"
	"github.com/Quantum-Fiend/PolyAutomate/internal/execution"
	"github.com/Quantum-Fiend/PolyAutomate/internal/infrastructure/config"
	"github.com/Quantum-Fiend/PolyAutomate/internal/infrastructure/database"
	"github.com/Quantum-Fiend/PolyAutomate/internal/infrastructure/influxdb"
	"github.com/Quantum-Fiend/PolyAutomate/internal/infrastructure/logging"
	"github.com/Quantum-Fiend/PolyAutomate/internal/infrastructure/mqtt"
	"github.com/Quantum-Fiend/PolyAutomate/internal/plugin"
	"github.com/Quantum-Fiend/PolyAutomate/internal/task"
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
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting PolyAutomate",
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

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Initialise repositories and services
	users := auth.NewUserRepository(db.DB)

	taskRegistry := task.NewRegistry(task.NewRepository(db.DB))
	taskRegistry.SetLogger(log)

	execRepo := execution.NewRepository(db.DB)

	// Telemetry writer is only wired when InfluxDB is enabled; a nil
	// interface keeps the tracker's fast path allocation-free.
	var execMetrics execution.MetricsWriter
	if influxClient != nil {
		execMetrics = influxClient
	}
	tracker := execution.NewTracker(execRepo, nil, nil, execMetrics)
	tracker.SetLogger(log)

	plugins := plugin.NewRepository(db.DB)
	auditor := audit.NewRecorder(audit.NewRepository(db.DB))
	auditor.SetLogger(log)

	// Engine link: dispatches executions to the engine and feeds its
	// progress reports back into the tracker.
	link := enginelink.NewLink(mqttClient, tracker)
	link.SetLogger(log)
	tracker.SetDispatcher(link)

	// API server owns the WebSocket hub; the tracker publishes
	// execution events through it.
	deps := api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Logger:     log,
		Users:      users,
		Tasks:      taskRegistry,
		Tracker:    tracker,
		Executions: execRepo,
		Plugins:    plugins,
		Analytics:  analytics.NewService(db.DB),
		Audit:      auditor,
		Engine:     link,
		Version:    version,
	}
	if influxClient != nil {
		deps.Metrics = influxClient
	}

	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	tracker.SetEvents(server.Hub())

	if startErr := link.Start(); startErr != nil {
		return fmt.Errorf("starting engine link: %w", startErr)
	}
	log.Info("engine link started")

	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT
	// 4. Database

	log.Info("PolyAutomate stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses POLYAUTOMATE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("POLYAUTOMATE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
