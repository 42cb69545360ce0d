// Package telemetry wires wright's ambient observability stack: a
// zerolog.Logger built from wright.toml's [logging] table, Prometheus
// counters/histograms for the orchestrator and installer exposed on an
// optional metrics HTTP endpoint, and OpenTelemetry spans wrapping
// construction jobs and installer transactions.
//
// Grounded on the teacher's pkg/telemetry package (zerolog + Prometheus +
// OpenTelemetry wired the same way), trimmed to the logging/metrics/
// tracing surface wright.toml actually configures — the teacher's
// multi-environment Config and event-publishing subsystem have no
// counterpart here.
package telemetry

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/wrightpm/wright/pkg/wrightcfg"
)

// NewLogger builds a zerolog.Logger from the [logging] table: Output
// selects stdout, stderr, or a file path; Format "json" leaves the
// writer as-is, anything else wraps it in a zerolog.ConsoleWriter.
func NewLogger(cfg wrightcfg.LoggingConfig) (zerolog.Logger, error) {
	var w io.Writer
	switch cfg.Output {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Logger{}, err
		}
		w = f
	}
	if cfg.Format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}
