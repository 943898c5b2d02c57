// Package observability sets up OpenTelemetry tracing and the metrics
// pipeline exposed on /metrics.
package observability

import (
	"context"
	"errors"
	"fmt"

	"resumable-chat/backend/pkg/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

// Shutdown flushes and stops the providers.
type Shutdown func(ctx context.Context) error

// Setup installs the global tracer and meter providers. Spans are exported
// to stdout only when tracing is enabled; OpenTelemetry metrics are bridged
// into the default Prometheus registry.
func Setup(ctx context.Context, cfg *config.Config) (Shutdown, error) {
	// resource.Default carries the SDK's own semconv schema URL, so merging
	// it with a resource pinned to another schema fails; attributes stay
	// schemaless instead
	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.Observability.ServiceName),
			semconv.DeploymentEnvironmentName(cfg.Server.Env),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	var shutdowns []Shutdown

	if cfg.Observability.Tracing {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("init stdouttrace exporter: %w", err)
		}
		tp := trace.NewTracerProvider(
			trace.WithBatcher(exp),
			trace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		shutdowns = append(shutdowns, tp.Shutdown)
	}

	exp, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("init prometheus exporter: %w", err)
	}
	mp := metric.NewMeterProvider(metric.WithReader(exp), metric.WithResource(res))
	otel.SetMeterProvider(mp)
	shutdowns = append(shutdowns, mp.Shutdown)

	return func(ctx context.Context) error {
		var errs []error
		for _, s := range shutdowns {
			errs = append(errs, s(ctx))
		}
		return errors.Join(errs...)
	}, nil
}
