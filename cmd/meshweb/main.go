// Command meshweb serves the browser client for Meshtastic radios.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MatusOllah/slogcolor"
	"github.com/kabili207/mesh-web-client/pkg/config"
	"github.com/kabili207/mesh-web-client/pkg/connection"
	"github.com/kabili207/mesh-web-client/pkg/device"
	"github.com/kabili207/mesh-web-client/pkg/discovery"
	"github.com/kabili207/mesh-web-client/pkg/routes"
	"github.com/kabili207/mesh-web-client/pkg/sinks"
	"github.com/kabili207/mesh-web-client/pkg/store"
	"golang.org/x/time/rate"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ./config.yaml or /etc/meshweb/config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("error loading config", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slogcolor.NewHandler(os.Stderr, &slogcolor.Options{
		Level:      level,
		TimeFormat: time.DateTime,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Configuration, logger *slog.Logger) error {
	registry := device.NewRegistry(logger)
	defer registry.Close()

	events := connection.NewDispatcher(logger, 0)

	if cfg.Database.Path != "" {
		db, err := store.Open(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer db.Close()
		events.AddSink(sinks.NewHistory(store.NewStores(db), cfg.Database.HistoryLimit, logger))
		logger.Info("message history enabled", "path", cfg.Database.Path)
	}

	if cfg.MQTT.Enabled {
		mirror, err := sinks.NewMQTTMirror(cfg.MQTT, logger)
		if err != nil {
			return err
		}
		defer mirror.Close()
		events.AddSink(sinks.IgnoreNodes(mirror, cfg.IgnoreNodes))
	}

	if cfg.Influx.Enabled {
		influx := sinks.NewInfluxTelemetry(cfg.Influx, logger)
		defer influx.Close()
		events.AddSink(sinks.IgnoreNodes(influx, cfg.IgnoreNodes))
	}

	go events.Run(ctx)

	opts := connection.Options{
		Logger:         logger,
		SendBurst:      cfg.Radio.SendBurst,
		Heartbeat:      cfg.Radio.Heartbeat,
		ReconnectDelay: cfg.Radio.ReconnectDelay,
		AckTimeout:     cfg.Radio.AckTimeout,
		Events:         events,
	}
	if cfg.Radio.SendInterval > 0 {
		opts.SendRate = rate.Every(cfg.Radio.SendInterval)
	}
	var managerOpts []connection.ManagerOption
	if cfg.Radio.ConnectTimeout > 0 {
		managerOpts = append(managerOpts, connection.WithConnectTimeout(cfg.Radio.ConnectTimeout))
	}
	manager := connection.NewManager(registry, opts, managerOpts...)

	var scanners []discovery.Scanner
	if cfg.Discovery.BLE {
		scanners = append(scanners, discovery.NewBLEScanner(cfg.Discovery.BLETimeout))
	}
	if cfg.Discovery.Serial {
		scanners = append(scanners, discovery.NewSerialScanner(cfg.Discovery.USBOnly))
	}
	if cfg.Discovery.MDNS {
		scanners = append(scanners, discovery.NewMDNSScanner(logger, cfg.Discovery.MDNSTimeout))
	}
	finder := discovery.NewService(logger, cfg.Discovery.CacheTTL, scanners...)
	defer finder.Close()

	for _, target := range cfg.AutoConnect {
		go func() {
			if _, err := manager.Connect(ctx, target); err != nil {
				logger.Warn("auto-connect failed", "target", target.String(), "error", err)
			}
		}()
	}

	router, err := routes.NewWebRouter(cfg, registry, manager, finder, logger)
	if err != nil {
		return err
	}
	return router.ListenAndServe(ctx)
}
