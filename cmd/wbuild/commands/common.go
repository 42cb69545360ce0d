package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wrightpm/wright/pkg/buildcache"
	"github.com/wrightpm/wright/pkg/builder"
	"github.com/wrightpm/wright/pkg/executor"
	"github.com/wrightpm/wright/pkg/fhspolicy"
	"github.com/wrightpm/wright/pkg/plan"
	"github.com/wrightpm/wright/pkg/telemetry"
	"github.com/wrightpm/wright/pkg/wrightcfg"
)

func loadConfig() (*wrightcfg.Config, error) {
	return wrightcfg.LoadConfig(configPath)
}

func loadPlans(cfg *wrightcfg.Config) (*plan.Cache, error) {
	cache, err := plan.NewCache(cfg.Paths.HoldTree)
	if err != nil {
		return nil, fmt.Errorf("load hold tree %s: %w", cfg.Paths.HoldTree, err)
	}
	return cache, nil
}

// newBuilder wires a builder.Builder from wright.toml's paths: executor
// definitions from /etc/wright/executors, the compiled-in FHS policy
// (overridable from /etc/wright/fhs-policy.rego), and the build cache
// under cfg.Paths.CacheDir/builds.
func newBuilder(ctx context.Context, cfg *wrightcfg.Config) (*builder.Builder, error) {
	defs, err := wrightcfg.LoadExecutors("/etc/wright/executors")
	if err != nil {
		return nil, fmt.Errorf("load executor definitions: %w", err)
	}
	registry := executor.NewRegistry(defs)

	regoSource, err := wrightcfg.LoadFHSPolicy("/etc/wright/fhs-policy.rego")
	if err != nil {
		return nil, fmt.Errorf("load fhs policy: %w", err)
	}
	fhsEngine, err := fhspolicy.NewEngine(ctx, regoSource)
	if err != nil {
		return nil, fmt.Errorf("compile fhs policy: %w", err)
	}

	return &builder.Builder{
		Log:      componentLogger("builder"),
		Fetcher:  builder.NewDefaultFetcher(),
		Runner:   &executor.Runner{Log: componentLogger("executor")},
		Registry: registry,
		Cache:    &buildcache.Store{Dir: filepath.Join(cfg.Paths.CacheDir, "builds")},
		FHS:      fhsEngine,
	}, nil
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
