package bridge

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "beacon-dispatch"

type otelConfig struct {
	serviceName    string
	serviceVersion string
	zipkinURL      string
}

// OTelOption configures SetupOTel.
type OTelOption func(*otelConfig)

// WithServiceName sets the service name reported on exported spans.
func WithServiceName(name string) OTelOption {
	return func(c *otelConfig) {
		c.serviceName = name
	}
}

// WithServiceVersion sets the service version reported on exported spans.
func WithServiceVersion(version string) OTelOption {
	return func(c *otelConfig) {
		c.serviceVersion = version
	}
}

// WithZipkinExporter turns span export on, batching spans to the Zipkin
// collector at url. Without it SetupOTel hands back a no-op tracer.
func WithZipkinExporter(url string) OTelOption {
	return func(c *otelConfig) {
		c.zipkinURL = url
	}
}

// SetupOTel builds the tracer used with Tracing. The returned cleanup
// flushes and shuts the provider down; call it on the way out.
func SetupOTel(ctx context.Context, opts ...OTelOption) (trace.Tracer, func(), error) {
	cfg := otelConfig{
		serviceName:    "beacon-service",
		serviceVersion: "1.0.0",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.zipkinURL == "" {
		return noop.NewTracerProvider().Tracer(tracerName), func() {}, nil
	}

	exporter, err := zipkin.New(cfg.zipkinURL)
	if err != nil {
		return nil, nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.serviceName),
			semconv.ServiceVersionKey.String(cfg.serviceVersion),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	cleanup := func() {
		if err := tp.Shutdown(ctx); err != nil {
			slog.Error("Failed to shut down tracer provider", "error", err)
		}
	}
	return tp.Tracer(tracerName), cleanup, nil
}
