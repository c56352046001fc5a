// Command hblib-demo runs a simulated bridge of lightbulb accessories on an
// in-memory host, with a shell that plays the client app.
//
// Usage:
//
//	hblib-demo [flags]
//
// Flags:
//
//	-config string        YAML configuration file
//	-cache string         Accessory cache path (default "hblib-cache.json")
//	-store string         Cache store: json, sqlite (default "json")
//	-log-level int        Platform log level 0-3 (overrides the config file)
//	-ui-port int          Serve the UI API on this port (overrides the config file)
//	-mqtt string          MQTT broker URL for state publishing (overrides the config file)
//	-exchange-log string  Capture host exchanges to this CBOR file
//
// Examples:
//
//	# Two lamps, with the UI API on port 8581
//	hblib-demo -config demo.yaml -ui-port 8581
//
//	# Keep the cache in SQLite and capture exchanges
//	hblib-demo -store sqlite -cache hblib.db -exchange-log exchanges.cbor
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/chzyer/readline"

	"github.com/ebaauw/homebridge-lib-go/pkg/delegate"
	"github.com/ebaauw/homebridge-lib-go/pkg/host/memhost"
	hblog "github.com/ebaauw/homebridge-lib-go/pkg/log"
	"github.com/ebaauw/homebridge-lib-go/pkg/persistence"
	"github.com/ebaauw/homebridge-lib-go/pkg/statepub"
	"github.com/ebaauw/homebridge-lib-go/pkg/uiserver"
)

type flags struct {
	config      string
	cache       string
	store       string
	logLevel    int
	uiPort      int
	mqtt        string
	exchangeLog string
}

func main() {
	var f flags
	flag.StringVar(&f.config, "config", "", "YAML configuration file")
	flag.StringVar(&f.cache, "cache", "hblib-cache.json", "Accessory cache path")
	flag.StringVar(&f.store, "store", "json", "Cache store: json, sqlite")
	flag.IntVar(&f.logLevel, "log-level", -1, "Platform log level 0-3 (overrides the config file)")
	flag.IntVar(&f.uiPort, "ui-port", 0, "Serve the UI API on this port (overrides the config file)")
	flag.StringVar(&f.mqtt, "mqtt", "", "MQTT broker URL for state publishing (overrides the config file)")
	flag.StringVar(&f.exchangeLog, "exchange-log", "", "Capture host exchanges to this CBOR file")
	flag.Parse()

	if err := run(f); err != nil {
		fmt.Fprintf(os.Stderr, "hblib-demo: %v\n", err)
		os.Exit(1)
	}
}

func run(f flags) error {
	cfg, err := loadConfig(f.config)
	if err != nil {
		return err
	}
	if f.logLevel >= 0 {
		cfg.LogLevel = f.logLevel
	}
	if f.uiPort != 0 {
		cfg.UIPort = f.uiPort
	}
	if f.mqtt != "" {
		cfg.MQTT.Broker = f.mqtt
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "hblib> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("create readline: %w", err)
	}
	defer rl.Close()

	level := slog.LevelInfo
	if cfg.LogLevel > 0 {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(rl.Stderr(), &slog.HandlerOptions{Level: level}))

	store, closeStore, err := openStore(f.store, f.cache)
	if err != nil {
		return err
	}
	defer closeStore()

	bridge := memhost.New(store, logger)
	restored, err := bridge.Load()
	if err != nil {
		return err
	}
	logger.Info("cache loaded", "accessories", restored, "store", f.store)

	exchange, closeExchange, err := openExchangeLog(f.exchangeLog, logger)
	if err != nil {
		return err
	}
	defer closeExchange()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	platform, err := delegate.NewPlatform(bridge, delegate.PlatformConfig{
		Name:           cfg.Name,
		Logger:         logger,
		LogLevel:       cfg.LogLevel,
		UIPort:         cfg.UIPort,
		ExchangeLogger: exchange,
		Heartbeat:      cfg.Heartbeat,
		Shutdown:       func(error) { cancel() },
	})
	if err != nil {
		return err
	}

	if cfg.MQTT.Broker != "" {
		pub, err := statepub.Connect(cfg.MQTT, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		defer pub.Attach(platform)()
	}

	for _, d := range cfg.Devices {
		if _, err := newLightbulb(platform, d); err != nil {
			return fmt.Errorf("device %s: %w", d.ID, err)
		}
	}
	platform.Initialise()

	errc := make(chan error, 2)
	go func() { errc <- platform.Run(ctx) }()
	if cfg.UIPort != 0 {
		l, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.UIPort))
		if err != nil {
			return fmt.Errorf("ui server: %w", err)
		}
		go func() { errc <- uiserver.New(platform, logger).Serve(ctx, l) }()
	}

	newShell(bridge, platform, rl.Stdout()).Run(ctx, rl)
	cancel()
	if err := <-errc; err != nil {
		logger.Warn("shutdown", "error", err)
	}
	if err := bridge.Save(); err != nil {
		return fmt.Errorf("save cache: %w", err)
	}
	return nil
}

func openStore(kind, path string) (persistence.Store, func(), error) {
	switch kind {
	case "json":
		return persistence.NewFileStore(path), func() {}, nil
	case "sqlite":
		s, err := persistence.OpenSQLiteStore(path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q (want json or sqlite)", kind)
	}
}

// openExchangeLog mirrors exchanges to the operational log, and to a CBOR
// file when path is set.
func openExchangeLog(path string, logger *slog.Logger) (hblog.Logger, func(), error) {
	adapter := hblog.NewSlogAdapter(logger)
	if path == "" {
		return adapter, func() {}, nil
	}
	fl, err := hblog.NewFileLogger(path)
	if err != nil {
		return nil, nil, err
	}
	return hblog.NewMultiLogger(adapter, fl), func() { _ = fl.Close() }, nil
}
