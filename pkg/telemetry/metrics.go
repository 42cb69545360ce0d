package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	buildsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wright", Subsystem: "orchestrator", Name: "builds_started_total",
		Help: "Construction jobs admitted to a dockyard worker, by phase.",
	}, []string{"phase"})

	buildsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wright", Subsystem: "orchestrator", Name: "builds_finished_total",
		Help: "Construction jobs that finished, by phase and outcome.",
	}, []string{"phase", "outcome"})

	buildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wright", Subsystem: "orchestrator", Name: "build_duration_seconds",
		Help:    "Wall-clock duration of one construction job.",
		Buckets: prometheus.DefBuckets,
	}, []string{"phase"})

	installTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wright", Subsystem: "installer", Name: "transactions_total",
		Help: "Installer transactions, by operation and outcome.",
	}, []string{"operation", "outcome"})
)

// RecordBuildStart counts one job admitted for the given phase ("mvp" or
// "full").
func RecordBuildStart(phase string) {
	buildsStarted.WithLabelValues(phase).Inc()
}

// RecordBuildResult observes one job's duration and counts its outcome.
func RecordBuildResult(phase string, dur time.Duration, err error) {
	buildDuration.WithLabelValues(phase).Observe(dur.Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	buildsFinished.WithLabelValues(phase, outcome).Inc()
}

// RecordInstall counts one installer transaction (operation: install,
// upgrade, or remove).
func RecordInstall(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	installTransactions.WithLabelValues(operation, outcome).Inc()
}

// Serve starts the Prometheus metrics HTTP endpoint on addr and returns a
// shutdown func. A blank addr disables the server and returns a no-op
// shutdown, matching wright.toml's "empty disables the metrics HTTP
// server" contract for telemetry.metrics_addr / --metrics-addr.
func Serve(addr string) (shutdown func(context.Context) error, err error) {
	if addr == "" {
		return func(context.Context) error { return nil }, nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Str("addr", addr).Msg("telemetry: metrics server stopped")
		}
	}()

	return srv.Shutdown, nil
}
