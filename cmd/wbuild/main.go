package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wrightpm/wright/cmd/wbuild/commands"
	"github.com/wrightpm/wright/pkg/dockyard"
	"github.com/wrightpm/wright/pkg/wrighterrors"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	// A wbuild process re-exec'd by its own dockyard package (the "self
	// re-exec after Unshare" step) never reaches cobra: it performs mount
	// setup from inside the new namespaces, then execs the stage command
	// and does not return.
	if dockyard.IsReExecInit() {
		if err := dockyard.RunReExecInit(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	setupLogging()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("received interrupt signal, cancelling build")
		cancel()
	}()

	if err := commands.Execute(ctx, Version, Commit, BuildDate); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(wrighterrors.ExitCode(err))
	}
}

// setupLogging installs a bootstrap console logger for output emitted
// before wright.toml is parsed (flag errors, config load failures).
// commands.Execute reconfigures log.Logger from [logging] once flags and
// config are available.
func setupLogging() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch os.Getenv("WRIGHT_LOG_LEVEL") {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
