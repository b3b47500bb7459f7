// Package telemetry installs the process-wide OpenTelemetry providers. Meters
// are exported through the Prometheus registry served on /metrics; spans go
// to an OTLP collector when one is configured.
package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.uber.org/multierr"
)

// ShutdownFunc flushes and stops the installed providers
type ShutdownFunc func(ctx context.Context) error

// Options configures Start
type Options struct {
	ServiceName string
	Version     string

	// Registerer receives the otel metric exporter. Nil disables metric export.
	Registerer prometheus.Registerer

	// TraceEndpoint is an OTLP gRPC collector address such as localhost:4317.
	// Empty keeps spans in process so trace context still propagates.
	TraceEndpoint string
}

// Start builds the meter and tracer providers and sets them as the otel
// globals, together with the W3C trace context propagator.
func Start(ctx context.Context, opts Options) (ShutdownFunc, error) {
	res := newResource(opts)

	mp, err := newMeterProvider(res, opts.Registerer)
	if err != nil {
		return nil, err
	}

	tp, err := newTracerProvider(ctx, res, opts.TraceEndpoint)
	if err != nil {
		return nil, multierr.Append(err, mp.Shutdown(ctx))
	}

	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return func(ctx context.Context) error {
		return multierr.Combine(mp.Shutdown(ctx), tp.Shutdown(ctx))
	}, nil
}

func newResource(opts Options) *resource.Resource {
	name := opts.ServiceName
	if name == "" {
		name = "mcp-pdf-overlay"
	}
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(name),
		semconv.ServiceVersionKey.String(opts.Version),
	)
}

func newMeterProvider(res *resource.Resource, reg prometheus.Registerer) (*metric.MeterProvider, error) {
	options := []metric.Option{metric.WithResource(res)}
	if reg != nil {
		exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
		if err != nil {
			return nil, fmt.Errorf("creating prometheus exporter: %w", err)
		}
		options = append(options, metric.WithReader(exporter))
	}
	return metric.NewMeterProvider(options...), nil
}

func newTracerProvider(ctx context.Context, res *resource.Resource, endpoint string) (*trace.TracerProvider, error) {
	options := []trace.TracerProviderOption{trace.WithResource(res)}
	if endpoint != "" {
		exporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("creating trace exporter: %w", err)
		}
		options = append(options, trace.WithBatcher(exporter))
	}
	return trace.NewTracerProvider(options...), nil
}
