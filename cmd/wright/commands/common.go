package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wrightpm/wright/pkg/installer"
	"github.com/wrightpm/wright/pkg/pkgdb"
	"github.com/wrightpm/wright/pkg/telemetry"
	"github.com/wrightpm/wright/pkg/wrightcfg"
)

// loadConfig reads wright.toml from configPath, falling back to
// wrightcfg.DefaultConfig when the file is absent.
func loadConfig() (*wrightcfg.Config, error) {
	return wrightcfg.LoadConfig(configPath)
}

// openStore opens the package database named by cfg.Paths.DBPath and
// applies any pending migrations.
func openStore(cfg *wrightcfg.Config) (*pkgdb.Store, error) {
	store, err := pkgdb.New(pkgdb.Config{Path: cfg.Paths.DBPath})
	if err != nil {
		return nil, fmt.Errorf("open package database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate package database: %w", err)
	}
	return store, nil
}

// newInstaller wires an installer.Installer against the live root.
func newInstaller(store *pkgdb.Store) *installer.Installer {
	return &installer.Installer{
		Log:   componentLogger("installer"),
		Store: store,
		Root:  rootDir,
	}
}

func componentLogger(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}

// setUpTelemetry reconfigures the global logger from wright.toml's
// [logging] table and starts the metrics server and tracer provider
// wright.toml's [telemetry] table (or --metrics-addr) calls for. It runs
// once, in the root command's PersistentPreRunE, before any subcommand's
// RunE.
func setUpTelemetry() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := telemetry.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}
	log.Logger = logger

	addr := metricsAddr
	if addr == "" {
		addr = cfg.Telemetry.MetricsAddr
	}
	metricsShutdown, err := telemetry.Serve(addr)
	if err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}
	tracerShutdown, err := telemetry.InitTracer(cfg.Telemetry.TraceExporter)
	if err != nil {
		return fmt.Errorf("configure tracer: %w", err)
	}
	telemetryShutdown = append(telemetryShutdown, metricsShutdown, tracerShutdown)
	return nil
}
