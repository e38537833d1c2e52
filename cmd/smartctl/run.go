package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-smartctl/internal/controller"
	"github.com/nerrad567/gray-logic-smartctl/internal/engine"
	"github.com/nerrad567/gray-logic-smartctl/internal/entity"
	"github.com/nerrad567/gray-logic-smartctl/internal/history"
	"github.com/nerrad567/gray-logic-smartctl/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-smartctl/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-smartctl/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-smartctl/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-smartctl/internal/metrics"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run every configured controller until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
}

// run is the service lifecycle, separated from the command for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Global flags
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts *rootOptions) error { //nolint:gocognit,gocyclo // service wiring: each step has its own deferred cleanup
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting smartctl",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, configPath, err := opts.load()
	if err != nil {
		return err
	}
	log.Info("configuration loaded", "path", configPath, "controllers", len(cfg.Controllers))

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(cfg.Database)
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

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
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	var influxClient *influxdb.Client
	var telemetry engine.Telemetry
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
		telemetry = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	var ctlMetrics controller.Metrics
	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector()
		server := metrics.NewServer(cfg.Metrics, collector.Registry(), log)
		if startErr := server.Start(); startErr != nil {
			return fmt.Errorf("starting metrics server: %w", startErr)
		}
		defer func() {
			log.Info("stopping metrics server")
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error stopping metrics server", "error", closeErr)
			}
		}()
		ctlMetrics = collector
	}

	var repo history.Repository
	if cfg.History.Enabled {
		repo = history.NewSQLiteRepository(db.DB)
	}

	qos := mqttClient.QoS()
	store := entity.NewStore()
	feed := entity.NewMQTTFeed(mqttClient, store, qos)
	if feedErr := feed.Start(); feedErr != nil {
		return fmt.Errorf("starting entity feed: %w", feedErr)
	}
	defer func() {
		if stopErr := feed.Stop(); stopErr != nil {
			log.Warn("error stopping entity feed", "error", stopErr)
		}
	}()

	eng, err := engine.New(cfg, engine.Deps{
		Host: controller.Host{
			Reader:     store,
			Subscriber: store,
			Caller:     entity.NewMQTTCaller(mqttClient, qos),
		},
		Logger:    log,
		Metrics:   ctlMetrics,
		History:   repo,
		Telemetry: telemetry,
		Publisher: mqttClient,
		QoS:       qos,
		Entities:  store,
	})
	if err != nil {
		return fmt.Errorf("building controllers: %w", err)
	}
	if startErr := eng.Start(ctx); startErr != nil {
		return fmt.Errorf("starting controllers: %w", startErr)
	}
	defer func() {
		log.Info("stopping controllers")
		eng.Stop()
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

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
