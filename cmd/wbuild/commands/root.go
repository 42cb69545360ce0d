package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	configPath  string
	arch        string
	metricsAddr string

	telemetryShutdown []func(context.Context) error
)

// Execute runs the root command, then flushes the metrics server and
// tracer provider setUpTelemetry started.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	runErr := rootCmd.ExecuteContext(ctx)
	for _, shutdown := range telemetryShutdown {
		_ = shutdown(context.Background())
	}
	return runErr
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wbuild",
		Short: "wbuild - constructor CLI for wright plans",
		Long: `wbuild turns declarative plan files into compressed wright.tar.zst
archives: it resolves the dependency graph, resolves cycles via an MVP
bootstrap pass, schedules jobs across dockyard workers under the resource
scheduler, and drives each package through fetch/extract/build/package.`,
		Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return setUpTelemetry() },
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/wright/wright.toml", "config file path")
	rootCmd.PersistentFlags().StringVar(&arch, "arch", "x86_64", "target architecture")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "prometheus metrics listen address (overrides telemetry.metrics_addr; empty disables)")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newFetchCommand())
	rootCmd.AddCommand(newDepsCommand())
	rootCmd.AddCommand(newChecksumCommand())

	return rootCmd
}
