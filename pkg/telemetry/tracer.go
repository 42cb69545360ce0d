package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// InitTracer configures the global OpenTelemetry tracer provider per
// wright.toml's telemetry.trace_exporter ("stdout" or "none"/""), and
// returns a shutdown func that flushes and closes it. Any other value is
// treated as "none": every orchestrator/installer span becomes a no-op
// rather than failing the run over a telemetry misconfiguration.
func InitTracer(exporter string) (shutdown func(context.Context) error, err error) {
	if exporter != "stdout" {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// tracer is the package-wide tracer used by StartBuildSpan/StartInstallSpan.
// Until InitTracer installs a real provider, otel's default global provider
// makes every span a no-op.
func tracer() trace.Tracer { return otel.Tracer("wright") }

// StartBuildSpan starts a span for one construction job.
func StartBuildSpan(ctx context.Context, name, phase string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "build."+phase, trace.WithAttributes(
		attribute.String("package", name),
	))
}

// StartInstallSpan starts a span for one installer transaction.
func StartInstallSpan(ctx context.Context, operation, subject string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "install."+operation, trace.WithAttributes(
		attribute.String("subject", subject),
	))
}
