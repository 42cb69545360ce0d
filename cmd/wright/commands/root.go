package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/wrightpm/wright/pkg/telemetry"
)

var (
	// Global flags
	configPath  string
	rootDir     string
	jsonOutput  bool
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
		Use:   "wright",
		Short: "wright - administrator CLI for the wright package manager",
		Long: `wright manages installed packages on a live root: install, upgrade,
remove, and query compressed wright.tar.zst archives built by wbuild,
against a durable SQLite record of packages, files, dependencies, and
transactions.`,
		Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return setUpTelemetry() },
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/wright/wright.toml", "config file path")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "/", "live filesystem root")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "prometheus metrics listen address (overrides telemetry.metrics_addr; empty disables)")

	rootCmd.AddCommand(newInstallCommand())
	rootCmd.AddCommand(newUpgradeCommand())
	rootCmd.AddCommand(newRemoveCommand())
	rootCmd.AddCommand(newSysupgradeCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newQueryCommand())
	rootCmd.AddCommand(newSearchCommand())
	rootCmd.AddCommand(newFilesCommand())
	rootCmd.AddCommand(newOwnerCommand())
	rootCmd.AddCommand(newVerifyCommand())
	rootCmd.AddCommand(newDepsCommand())
	rootCmd.AddCommand(newDoctorCommand())
	rootCmd.AddCommand(newAssumeCommand())
	rootCmd.AddCommand(newUnassumeCommand())

	return rootCmd
}
