// Gray Logic Insteon - PowerLinc lighting bridge
//
// This is the main entry point for the Insteon bridge service. It opens the
// PowerLinc modem, maps each configured dimmable light to the Gray Logic MQTT
// topic tree, keeps an event log in SQLite, and optionally writes light
// levels to InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-insteon/migrations"

	"github.com/nerrad567/gray-logic-insteon/internal/bridges/insteon"
	"github.com/nerrad567/gray-logic-insteon/internal/history"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the service together and blocks until ctx is cancelled.
// Deferred cleanups run in reverse order: bridge, modem, InfluxDB, MQTT,
// then the database.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic Insteon",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

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
	mqttClient.SetLogger(log.Component("mqtt"))
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
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

	var historyRepo *history.SQLiteRepository
	if cfg.Insteon.History.Enabled {
		historyRepo = history.NewSQLiteRepository(db.DB)
	}

	if cfg.Insteon.Enabled {
		bridge, modem, startErr := startInsteonBridge(ctx, cfg, mqttClient, influxClient, historyRepo, log)
		if startErr != nil {
			return fmt.Errorf("starting Insteon bridge: %w", startErr)
		}
		defer func() {
			log.Info("closing PowerLinc modem")
			if closeErr := modem.Close(); closeErr != nil {
				log.Error("error closing modem", "error", closeErr)
			}
		}()
		defer func() {
			log.Info("stopping Insteon bridge")
			bridge.Stop()
		}()
	} else {
		log.Info("Insteon bridge disabled")
	}

	var wg sync.WaitGroup
	if historyRepo != nil && cfg.Insteon.History.RetentionDays > 0 {
		pruneCtx, stopPruner := context.WithCancel(ctx)
		defer func() {
			stopPruner()
			wg.Wait()
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			runHistoryPruner(pruneCtx, historyRepo, db,
				cfg.GetHistoryRetention(), cfg.GetPruneInterval(), log.Component("history"))
		}()
		log.Info("history pruning enabled",
			"retention_days", cfg.Insteon.History.RetentionDays,
			"interval", cfg.GetPruneInterval(),
		)
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	log.Info("Gray Logic Insteon stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthChecker is satisfied by every infrastructure client.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// healthCheck verifies all infrastructure connections are working.
// The InfluxDB client may be nil when metrics are disabled.
func healthCheck(ctx context.Context, db, mqttClient healthChecker, influxClient *influxdb.Client) error {
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

// startInsteonBridge loads the bridge configuration, opens the modem and
// starts the bridge. The caller owns both returned values.
func startInsteonBridge(
	ctx context.Context,
	cfg *config.Config,
	mqttClient *mqtt.Client,
	influxClient *influxdb.Client,
	historyRepo *history.SQLiteRepository,
	log *logging.Logger,
) (*insteon.Bridge, *insteon.Modem, error) {
	bridgeCfg, err := insteon.LoadConfig(cfg.Insteon.ConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading Insteon bridge config: %w", err)
	}
	log.Info("Insteon bridge config loaded",
		"path", cfg.Insteon.ConfigFile,
		"devices", len(bridgeCfg.Devices),
	)

	modemCfg := bridgeCfg.ToModemConfig()
	modem, err := insteon.OpenModem(modemCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("opening modem: %w", err)
	}
	modem.SetLogger(log.Component("modem"))
	log.Info("PowerLinc modem opened", "port", modemCfg.Port, "baud", modemCfg.BaudRate)

	opts := insteon.BridgeOptions{
		Config:     bridgeCfg,
		MQTTClient: &mqttBridgeAdapter{client: mqttClient, log: log},
		Modem:      modem,
		Version:    version,
		Logger:     log.Component("insteon"),
	}
	if historyRepo != nil {
		opts.History = &historyAdapter{repo: historyRepo}
	}
	if influxClient != nil {
		opts.Metrics = influxClient
	}

	bridge, err := insteon.NewBridge(opts)
	if err != nil {
		_ = modem.Close()
		return nil, nil, fmt.Errorf("creating Insteon bridge: %w", err)
	}

	if err := bridge.Start(ctx); err != nil {
		bridge.Stop()
		_ = modem.Close()
		return nil, nil, fmt.Errorf("starting Insteon bridge: %w", err)
	}
	log.Info("Insteon bridge started", "bridge_id", bridgeCfg.Bridge.ID)

	return bridge, modem, nil
}

// historyPruner is the part of the history repository the pruner uses.
type historyPruner interface {
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// optimizer is satisfied by *database.DB.
type optimizer interface {
	Optimize(ctx context.Context) error
}

// runHistoryPruner deletes events older than retention every interval
// until ctx is cancelled. The first pass runs immediately.
func runHistoryPruner(ctx context.Context, repo historyPruner, db optimizer, retention, interval time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		pruneHistory(ctx, repo, db, retention, log)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func pruneHistory(ctx context.Context, repo historyPruner, db optimizer, retention time.Duration, log *logging.Logger) {
	cutoff := time.Now().Add(-retention)
	removed, err := repo.Prune(ctx, cutoff)
	if err != nil {
		log.Error("history prune failed", "error", err)
		return
	}
	if removed == 0 {
		return
	}

	log.Info("history pruned", "removed", removed, "cutoff", cutoff.UTC().Format(time.RFC3339))
	if err := db.Optimize(ctx); err != nil {
		log.Warn("database optimize failed", "error", err)
	}
}

// mqttBridgeAdapter adapts *mqtt.Client to the insteon.MQTTClient interface.
// The bridge's handlers never fail, so Subscribe wraps them to return nil.
type mqttBridgeAdapter struct {
	client *mqtt.Client
	log    *logging.Logger
}

func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}

// Disconnect is a no-op: the shared client is closed by run's deferred cleanup.
func (a *mqttBridgeAdapter) Disconnect(_ uint) {
	if a.log != nil {
		a.log.Debug("bridge disconnect ignored, MQTT client is shared")
	}
}

// eventStore is the part of the history repository the bridge writes to.
type eventStore interface {
	Record(ctx context.Context, ev *history.Event) error
	Recent(ctx context.Context, deviceID string, limit int) ([]history.Event, error)
}

// historyAdapter adapts the history repository to insteon.EventRecorder.
type historyAdapter struct {
	repo eventStore
}

func (a *historyAdapter) RecordEvent(ctx context.Context, rec insteon.EventRecord) error {
	return a.repo.Record(ctx, &history.Event{
		ID:        rec.ID,
		DeviceID:  rec.DeviceID,
		Address:   rec.Address,
		Event:     rec.Event,
		Origin:    rec.Origin,
		Group:     rec.Group,
		Level:     rec.Level,
		Cmd1:      int(rec.Cmd1),
		Cmd2:      int(rec.Cmd2),
		CreatedAt: rec.Timestamp,
	})
}

func (a *historyAdapter) RecentEvents(ctx context.Context, deviceID string, limit int) ([]insteon.EventRecord, error) {
	events, err := a.repo.Recent(ctx, deviceID, limit)
	if err != nil {
		return nil, err
	}

	records := make([]insteon.EventRecord, 0, len(events))
	for _, ev := range events {
		records = append(records, insteon.EventRecord{
			ID:        ev.ID,
			DeviceID:  ev.DeviceID,
			Address:   ev.Address,
			Event:     ev.Event,
			Origin:    ev.Origin,
			Group:     ev.Group,
			Level:     ev.Level,
			Cmd1:      byte(ev.Cmd1), //nolint:gosec // stored from a byte
			Cmd2:      byte(ev.Cmd2), //nolint:gosec // stored from a byte
			Timestamp: ev.CreatedAt,
		})
	}
	return records, nil
}
