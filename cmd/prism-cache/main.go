// Command prism-cache runs the RESP server described in internal/server,
// wiring together configuration, logging, the provider registry, the
// cache, and a periodic provider health sweep.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/a-agmon/prism-cache/internal/cache"
	"github.com/a-agmon/prism-cache/internal/config"
	"github.com/a-agmon/prism-cache/internal/dispatcher"
	"github.com/a-agmon/prism-cache/internal/facade"
	"github.com/a-agmon/prism-cache/internal/health"
	"github.com/a-agmon/prism-cache/internal/provider"
	"github.com/a-agmon/prism-cache/internal/provider/delta"
	"github.com/a-agmon/prism-cache/internal/provider/mock"
	"github.com/a-agmon/prism-cache/internal/provider/relational"
	"github.com/a-agmon/prism-cache/internal/server"
	"github.com/a-agmon/prism-cache/internal/telemetry"
	"github.com/a-agmon/prism-cache/internal/telemetry/logruslog"
	"github.com/a-agmon/prism-cache/internal/telemetry/zaplog"
)

// Exit codes per the external interfaces contract.
const (
	exitOK             = 0
	exitConfigError    = 1
	exitBindFailure    = 2
	exitProviderFailure = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}

	logger, err := buildLogger(cfg.Logging.Backend, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}

	registry, err := buildRegistry(cfg.Database.Providers, logger)
	if err != nil {
		logger.Error("provider initialization failed", telemetry.Fields{"error": err.Error()})
		return exitProviderFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("providers registered", telemetry.Fields{"names": registry.SortedNames()})

	if failures := registry.HealthCheck(ctx); len(failures) > 0 {
		for name, err := range failures {
			logger.Warn("provider failed startup health check", telemetry.Fields{"provider": name, "error": err.Error()})
		}
	}

	c := cache.New(cache.Options{
		MaxEntries:     cfg.Cache.MaxEntries,
		TTL:            cfg.TTL(),
		RequestTimeout: cfg.RequestTimeout(),
		Logger:         logger,
	})

	sweeper, err := health.NewSweeper(cfg.Database.HealthCheckInterval, registry, logger)
	if err != nil {
		logger.Error("invalid health_check_interval", telemetry.Fields{"error": err.Error()})
		return exitConfigError
	}
	sweeper.Start()
	defer sweeper.Stop()

	f := facade.New(registry, c)
	d := dispatcher.New(f)
	srv := server.New(server.Options{
		BindAddress:     cfg.Server.BindAddress,
		Dispatcher:      d,
		Logger:          logger,
		ShutdownTimeout: cfg.ShutdownTimeout(),
	})

	if err := srv.Serve(ctx); err != nil {
		logger.Error("server exited with error", telemetry.Fields{"error": err.Error()})
		return exitBindFailure
	}
	return exitOK
}

func buildLogger(backend, level string) (telemetry.Logger, error) {
	switch backend {
	case "logrus":
		return logruslog.New(level), nil
	case "zap", "":
		return zaplog.New(level)
	default:
		return nil, fmt.Errorf("%w: unknown logging.backend %q", errUnknownBackend, backend)
	}
}

var errUnknownBackend = fmt.Errorf("unknown logging backend")

func buildRegistry(providers []config.ProviderConfig, logger telemetry.Logger) (*provider.Registry, error) {
	b := provider.NewBuilder()
	for _, p := range providers {
		adapter, err := buildAdapter(p, logger)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", p.Name, err)
		}
		if err := b.Add(p.Name, adapter); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

func buildAdapter(p config.ProviderConfig, logger telemetry.Logger) (provider.Adapter, error) {
	switch provider.Kind(p.Provider) {
	case provider.KindMock:
		return mock.New(p.Name, p.Settings)
	case provider.KindRelational:
		return relational.New(p.Name, p.Settings, logger)
	case provider.KindDeltaTable:
		opener := delta.NewSQLTableOpener(p.Settings["delta_driver"], p.Settings["delta_dsn"])
		return delta.New(p.Name, p.Settings, opener)
	default:
		return nil, fmt.Errorf("%w: unknown provider kind %q", provider.ErrConfiguration, p.Provider)
	}
}
