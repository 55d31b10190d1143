package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AaronLay10/ReelEngine/internal/api"
	"github.com/AaronLay10/ReelEngine/internal/config"
	"github.com/AaronLay10/ReelEngine/internal/events"
	"github.com/AaronLay10/ReelEngine/internal/logger"
	"github.com/AaronLay10/ReelEngine/internal/mqtt"
	"github.com/AaronLay10/ReelEngine/internal/playback"
	"github.com/AaronLay10/ReelEngine/internal/sessions"
	"github.com/AaronLay10/ReelEngine/internal/storage/postgres"
	"github.com/AaronLay10/ReelEngine/internal/storage/sqlite"
	"github.com/AaronLay10/ReelEngine/internal/version"
)

// store is what the server needs from a persistence backend.
type store interface {
	events.Store
	sessions.Recorder
	Close() error
}

func main() {
	configPath := flag.String("config", "reel.yaml", "path to reel.yaml")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Server.LogMode, cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("reelserver failed", "error", err)
		log.Sync()
		os.Exit(1)
	}
}

// loadConfig reads path, falling back to defaults when the file does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hostname, _ := os.Hostname()
	events.Emit("info", "system.startup", "reelserver starting", map[string]interface{}{
		"service":  "reelserver",
		"version":  version.Version,
		"hostname": hostname,
		"pid":      os.Getpid(),
	})

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
		events.SetStore(st)
		log.Info("event store connected", "driver", cfg.StoreDriver())
	}

	catalog := sessions.NewCatalog()
	n, err := catalog.LoadDir(cfg.ScenarioDir())
	if err != nil {
		log.Warn("some scenarios failed to load", "dir", cfg.ScenarioDir(), "error", err)
	}
	log.Info("scenario catalog loaded", "dir", cfg.ScenarioDir(), "scenarios", n)

	var mgr *sessions.Manager
	metrics := api.NewMetrics(func() int { return mgr.Count() })

	opts := []sessions.Option{
		sessions.WithLogger(log),
		sessions.WithMaxSessions(cfg.Playback.MaxSessions),
		sessions.WithInputObserver(metrics.ObserveInput),
		sessions.WithFrameSink(metrics.ObserveFrame),
	}
	if tol, ok := cfg.Tolerance(); ok {
		opts = append(opts, sessions.WithTolerance(tol))
	}
	if st != nil {
		opts = append(opts, sessions.WithRecorder(st))
	}

	var (
		client  *mqtt.Client
		bridge  *mqtt.Bridge
		monitor *mqtt.Monitor
	)
	if cfg.MQTT.Enabled {
		clientID := cfg.MQTT.ClientID
		if clientID == "" {
			clientID = "reelserver-" + hostname
		}
		client = mqtt.NewClient(mqtt.BrokerURL(cfg.MQTT.Broker), clientID, cfg.MQTTTimeout())
		monitor = mqtt.NewMonitor(cfg.PlayerTimeout())
		opts = append(opts, sessions.WithFrameSink(func(id string, f playback.Frame) {
			bridge.PublishFrame(id, f)
		}))
	}

	mgr = sessions.NewManager(catalog, opts...)
	if client != nil {
		bridge = mqtt.NewBridge(client, mgr, cfg.TopicPrefix(), monitor, log.With("component", "mqtt"))
	}

	restored, err := mgr.Restore(ctx)
	if err != nil {
		log.Warn("session restore incomplete", "error", err)
	}
	log.Info("sessions restored", "count", restored)

	if err := api.InitAuth(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	api.InitTLS()

	srv := api.NewServer(mgr, metrics, log.With("component", "api"))
	srv.SetCatalogReady(true)
	srv.SetStoreStatus(st != nil, cfg.StoreDriver() == config.StoreNone)
	srv.SetMQTTStatus(false, !cfg.MQTT.Enabled)
	if monitor != nil {
		srv.SetPresence(monitor)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.Port())
	})

	if client != nil {
		g.Go(func() error {
			return runMQTT(gctx, client, bridge, monitor, srv, log)
		})
	}

	err = g.Wait()
	events.Emit("info", "system.shutdown", "reelserver stopping", map[string]interface{}{
		"sessions": mgr.Count(),
	})
	return err
}

// runMQTT connects the player bridge and keeps the readiness flag current
// until ctx is cancelled. A broker that is down at startup is retried by the
// client; playback over HTTP keeps working meanwhile.
func runMQTT(ctx context.Context, client *mqtt.Client, bridge *mqtt.Bridge, monitor *mqtt.Monitor, srv *api.Server, log *logger.Logger) error {
	if err := client.Connect(); err != nil {
		log.Warn("mqtt connect failed, retrying in background", "error", err)
	}
	if err := bridge.Start(ctx); err != nil {
		log.Warn("mqtt bridge subscribe failed", "error", err)
	}
	monitor.Start(time.Second)
	defer monitor.Stop()
	defer client.Disconnect()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		srv.SetMQTTStatus(client.IsConnected(), false)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func openStore(cfg *config.Config) (store, error) {
	switch cfg.StoreDriver() {
	case config.StorePostgres:
		dsn, err := config.ResolveDSN(cfg)
		if err != nil {
			return nil, err
		}
		c, err := postgres.New(dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return c, nil
	case config.StoreSQLite:
		s, err := sqlite.Open(cfg.SQLitePath())
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		return s, nil
	default:
		return nil, nil
	}
}
