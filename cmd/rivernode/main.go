// rivernode is the per-site daemon of the river control system.
//
// Each node owns one connection to the shared store, keeps its status row
// fresh, and serves device arbitration and reading history to the control
// logic running on the site. The coordinator node additionally
// reinitialises the shared store on boot.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	_ "github.com/riverwatch/rivercore/migrations"

	"github.com/riverwatch/rivercore/internal/infrastructure/config"
	"github.com/riverwatch/rivercore/internal/infrastructure/influxdb"
	"github.com/riverwatch/rivercore/internal/infrastructure/logging"
	"github.com/riverwatch/rivercore/internal/infrastructure/mqtt"
	"github.com/riverwatch/rivercore/internal/remote"
	"github.com/riverwatch/rivercore/internal/store"
	"github.com/riverwatch/rivercore/internal/telemetry"
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

// storeStartupTimeout bounds how long boot waits for the first store
// session before giving up. The store host may still be booting (it is
// often the same power cycle after an outage), so this is generous.
const storeStartupTimeout = 5 * time.Minute

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
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting rivernode",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Secrets (broker credentials, influx token) come from the
	// environment; a .env file is a convenience for dev machines.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("could not load .env file", "error", err)
	}

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
		"site", cfg.Node.SiteID,
		"coordinator", cfg.IsCoordinator(),
	)

	// Start the store connection actor. It owns the database handle;
	// everything else in the process is a client of it. The worker gets
	// its own context so the farewell status write can still go through
	// the live session after the shutdown signal lands.
	conn, err := store.New(cfg, log)
	if err != nil {
		return fmt.Errorf("creating store connection: %w", err)
	}
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	go conn.Run(workerCtx)

	if err := waitForStore(ctx, conn); err != nil {
		return err
	}
	log.Info("store session established", "host", cfg.Store.Host)

	if err := conn.Initialise(ctx); err != nil {
		return fmt.Errorf("initialising store: %w", err)
	}
	log.Info("store initialised")

	if cfg.IsCoordinator() {
		tick, err := conn.LatestTick(ctx)
		switch {
		case errors.Is(err, store.ErrNoData):
			log.Info("no persisted tick, starting from zero")
		case err != nil:
			log.Warn("could not restore tick", "error", err)
		default:
			log.Info("restored system tick", "tick", tick)
		}
	}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			// The broker is a live view, not the system of record.
			// Run without it rather than hold the node down.
			log.Warn("MQTT unavailable, running without live telemetry", "error", err)
			mqttClient = nil
		} else {
			defer func() {
				log.Info("disconnecting from MQTT")
				if closeErr := mqttClient.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			}()
			mqttClient.SetLogger(log)
			mqttClient.SetOnConnect(func() {
				log.Info("MQTT reconnected")
			})
			mqttClient.SetOnDisconnect(func(err error) {
				log.Warn("MQTT disconnected", "error", err)
			})
			log.Info("MQTT connected",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Host, cfg.MQTT.Port),
				"client_id", cfg.MQTT.ClientID,
			)

			// Control messages for this site's devices arrive over the
			// broker and go through the same arbitration as local callers.
			if err := remote.New(conn, log).Attach(mqttClient, byte(cfg.MQTT.QoS)); err != nil {
				log.Warn("could not attach remote control listener", "error", err)
			} else {
				log.Info("remote control listener attached")
			}
		}
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			log.Warn("InfluxDB unavailable, running without history mirror", "error", err)
			influxClient = nil
		} else {
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
				"bucket", cfg.InfluxDB.Bucket,
			)
		}
	} else {
		log.Info("InfluxDB disabled")
	}

	recorder := buildRecorder(cfg, conn, log, mqttClient, influxClient)

	if err := recorder.RecordStatus(ctx, "Up", "Monitoring", store.NoneValue); err != nil {
		log.Warn("could not record boot status", "error", err)
	}
	if err := conn.LogEvent(ctx, "Node online", store.SeverityInfo); err != nil {
		log.Warn("could not log boot event", "error", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	shutdownStore(conn, log, stopWorker)

	log.Info("rivernode stopped")
	return nil
}

// shutdownStore records the farewell status while the worker session is
// still up, then stops the worker and waits for it to exit. The write gets
// its own budget because the signal context is already cancelled.
func shutdownStore(conn *store.Connection, log *logging.Logger, stopWorker func()) {
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.UpdateStatus(stopCtx, "Down", "Stopped", store.NoneValue); err != nil {
		log.Warn("could not record shutdown status", "error", err)
	}

	stopWorker()
	for conn.Running() {
		select {
		case <-stopCtx.Done():
			log.Warn("store worker did not stop in time")
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// buildRecorder wires the telemetry fan-out from whichever sinks came up.
func buildRecorder(cfg *config.Config, conn *store.Connection, log *logging.Logger, mqttClient *mqtt.Client, influxClient *influxdb.Client) *telemetry.Recorder {
	opts := []telemetry.Option{}
	if mqttClient != nil {
		opts = append(opts, telemetry.WithBroker(mqttClient, byte(cfg.MQTT.QoS)))
	}
	if influxClient != nil {
		opts = append(opts, telemetry.WithMetrics(influxClient))
	}
	return telemetry.New(conn, log, opts...)
}

// waitForStore blocks until the connection actor has a live session.
func waitForStore(ctx context.Context, conn *store.Connection) error {
	deadline := time.Now().Add(storeStartupTimeout)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		if conn.IsReady() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("store did not come up within %v", storeStartupTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// getConfigPath returns the configuration file path.
// Uses RIVERCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("RIVERCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
