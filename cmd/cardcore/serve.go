package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ccoveille/go-safecast"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/api"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/audit"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/bridge"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/card"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/cardfile"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/cardstore"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/control"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/hardware"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/infrastructure/config"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/infrastructure/database"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/infrastructure/influxdb"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/infrastructure/logging"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/infrastructure/mqtt"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/rtc"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/telemetry"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/migrations"
)

// run is the controller's main loop.
//
// It loads configuration, opens the config store, builds the engine and its
// I/O-side workers, and blocks until ctx is cancelled or a worker fails.
// Every resource is closed in reverse order on the way out.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting cardcore",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"site_id", cfg.Site.ID,
		"site_name", cfg.Site.Name,
		"hardware", cfg.Engine.Hardware,
	)

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLogged(log, "database", db.Close)
	log.Info("database ready", "path", cfg.Database.Path)

	// Resolve the startup configuration: stored revision, else the layout
	// file, else the factory profile.
	layout := layoutOf(cfg)
	repo := cardstore.NewSQLiteRepository(db.DB)
	if err := seedFromFile(ctx, repo, cfg.Engine.LayoutFile, layout, log); err != nil {
		return err
	}
	configs := cardstore.NewRegistry(repo)
	configs.SetLogger(log.Component("cardstore"))
	rev, err := configs.Load(ctx, layout)
	if err != nil {
		return fmt.Errorf("loading card configuration: %w", err)
	}

	clock := clockwork.NewRealClock()
	qos, err := safecast.ToUint8(cfg.MQTT.QoS)
	if err != nil {
		return fmt.Errorf("mqtt.qos: %w", err)
	}

	// Connect to MQTT (if enabled)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.ConnectWithRetry(ctx, cfg.MQTT, log)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer closeLogged(log, "MQTT", mqttClient.Close)

		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT connected", "broker", cfg.MQTT.Broker.Host)
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected", "broker", cfg.MQTT.Broker.Host, "port", cfg.MQTT.Broker.Port)
	} else {
		log.Info("MQTT disabled")
	}

	var (
		io     hardware.IO
		mqttIO *hardware.MQTTIO
	)
	switch cfg.Engine.Hardware {
	case config.HardwareMQTT:
		mqttIO = hardware.NewMQTTIO(mqttClient, qos, clock)
		mqttIO.SetLogger(log.Component("hardware"))
		if err := mqttIO.Subscribe(); err != nil {
			return fmt.Errorf("subscribing hardware topics: %w", err)
		}
		io = mqttIO
	default:
		io = hardware.NewSimulated(clock)
	}

	ctrl, err := control.New(control.Options{
		Layout:        layout,
		Cards:         rev.Cards,
		IO:            io,
		Clock:         clock,
		ScanInterval:  cfg.ScanInterval(),
		SlowInterval:  cfg.SlowInterval(),
		QueueCapacity: cfg.Engine.QueueCapacity,
		PauseTimeout:  cfg.PauseTimeout(),
		Logger:        log.Component("control"),
	})
	if err != nil {
		return fmt.Errorf("creating controller: %w", err)
	}
	log.Info("controller ready",
		"cards", layout.Total(),
		"revision", rev.ID,
		"scan_interval", cfg.ScanInterval(),
	)

	sched := rtc.NewScheduler(ctrl, clock, cfg.Location())
	sched.SetLogger(log.Component("rtc"))
	sched.SetChannels(rev.Channels)

	auditRepo := audit.NewSQLiteRepository(db.DB)
	auditor := audit.NewAuditor(ctrl, auditRepo)
	auditor.SetLogger(log.Component("audit"))

	// Cancelling on the way out stops workers already started when a later
	// step fails.
	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(workCtx)
	g.Go(func() error { return ctrl.Run(gctx) })
	g.Go(func() error {
		return sched.Run(gctx, time.Duration(cfg.RTC.PollInterval)*time.Second)
	})
	if mqttIO != nil {
		g.Go(func() error { return mqttIO.Run(gctx) })
	}

	// Start MQTT bridge (if MQTT is enabled)
	if mqttClient != nil {
		br := bridge.New(mqttClient, ctrl, auditor, bridge.Options{QoS: qos, Clock: clock})
		br.SetLogger(log.Component("bridge"))
		if err := br.Subscribe(); err != nil {
			return fmt.Errorf("starting MQTT bridge: %w", err)
		}
		g.Go(func() error { return br.Run(gctx) })
		log.Info("MQTT bridge started")
	}

	// Connect to InfluxDB (if enabled)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.ConnectWithRetry(ctx, cfg.InfluxDB, log.Warn)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer closeLogged(log, "InfluxDB", influxClient.Close)

		influxClient.SetOnError(func(err error) {
			log.Warn("InfluxDB write error", "error", err)
		})
		pub := telemetry.New(influxClient, ctrl, cfg.Site.ID,
			time.Duration(cfg.InfluxDB.SampleInterval)*time.Second, clock)
		g.Go(func() error { return pub.Run(gctx) })
		log.Info("telemetry started", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start API server (if enabled)
	if cfg.API.Enabled {
		srv, err := api.New(api.Deps{
			Config:    cfg.API,
			WS:        cfg.WebSocket,
			Security:  cfg.Security,
			Logger:    log.Component("api"),
			Engine:    ctrl,
			Commands:  auditor,
			Configs:   configs,
			Schedules: sched,
			Audit:     auditRepo,
			Clock:     clock,
			Version:   version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := srv.Start(gctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer closeLogged(log, "API server", srv.Close)
	} else {
		log.Info("API disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	err = g.Wait()
	log.Info("shutdown signal received, cleaning up")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("cardcore stopped")
	return nil
}

// openStore opens the configured database without migrating it.
func openStore(cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// openDatabase opens the config store and applies pending migrations.
func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// layoutOf converts the configured card counts.
func layoutOf(cfg *config.Config) card.Layout {
	l := cfg.Engine.Layout
	return card.Layout{DI: l.DI, DO: l.DO, AI: l.AI, SIO: l.SIO, Math: l.Math, RTC: l.RTC}
}

// seedFromFile imports path into an empty config store. A store that
// already holds a revision is left alone.
func seedFromFile(ctx context.Context, repo cardstore.Repository, path string, layout card.Layout, log *logging.Logger) error {
	if path == "" {
		return nil
	}
	_, err := repo.Latest(ctx)
	switch {
	case err == nil:
		log.Debug("config store populated, layout file ignored", "path", path)
		return nil
	case !errors.Is(err, cardstore.ErrNotFound):
		return fmt.Errorf("checking config store: %w", err)
	}

	rev, err := importLayout(ctx, repo, path, layout)
	if err != nil {
		return err
	}
	log.Info("layout file imported", "path", path, "revision", rev.ID, "channels", len(rev.Channels))
	return nil
}

// importLayout parses the layout file at path, checks it against layout and
// stores it as a new revision.
func importLayout(ctx context.Context, repo cardstore.Repository, path string, layout card.Layout) (*cardstore.Revision, error) {
	rev, err := cardfile.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading layout file: %w", err)
	}
	if err := rev.Validate(layout); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rev.Source = cardstore.SourceFile
	if err := repo.Save(ctx, rev); err != nil {
		return nil, fmt.Errorf("storing layout file: %w", err)
	}
	return rev, nil
}

// healthCheck verifies all infrastructure connections are healthy.
// The MQTT and InfluxDB clients may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// closeLogged runs closeFn and logs a failure.
func closeLogged(log *logging.Logger, name string, closeFn func() error) {
	log.Info("closing " + name)
	if err := closeFn(); err != nil {
		log.Error("error closing "+name, "error", err)
	}
}

// loadConfig loads configuration for the one-shot subcommands, which log
// nothing and report errors on stderr.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("configuration file %s not found", path)
		}
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}
