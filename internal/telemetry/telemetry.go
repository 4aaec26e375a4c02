// Package telemetry bootstraps the OpenTelemetry trace and metric providers.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// DefaultServiceName is reported when the config leaves it empty.
const DefaultServiceName = "enginehealth"

const exportInterval = 30 * time.Second

// Provider owns the SDK trace and meter providers.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	exporting      bool
}

// Option configures Setup.
type Option func(*setupOptions)

type setupOptions struct {
	readers   []sdkmetric.Reader
	setGlobal bool
}

// WithMetricReader adds a metric reader alongside any OTLP exporter.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *setupOptions) { o.readers = append(o.readers, r) }
}

// WithoutGlobal leaves the otel global providers untouched.
func WithoutGlobal() Option {
	return func(o *setupOptions) { o.setGlobal = false }
}

// Setup creates trace and meter providers. With an empty OTLPEndpoint nothing
// is exported but instruments and spans still work.
func Setup(ctx context.Context, cfg types.TelemetryConfig, logger *slog.Logger, opts ...Option) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	o := setupOptions{setGlobal: true}
	for _, opt := range opts {
		opt(&o)
	}

	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(attribute.String("service.name", name)),
		resource.WithProcessPID(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	p := &Provider{exporting: cfg.OTLPEndpoint != ""}

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	metricOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range o.readers {
		metricOpts = append(metricOpts, sdkmetric.WithReader(r))
	}

	if p.exporting {
		spanExp, err := otlptracegrpc.New(ctx, traceExporterOptions(cfg)...)
		if err != nil {
			return nil, fmt.Errorf("creating OTLP trace exporter: %w", err)
		}
		metricExp, err := otlpmetricgrpc.New(ctx, metricExporterOptions(cfg)...)
		if err != nil {
			_ = spanExp.Shutdown(ctx)
			return nil, fmt.Errorf("creating OTLP metric exporter: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(spanExp, sdktrace.WithBatchTimeout(5*time.Second)))
		metricOpts = append(metricOpts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(exportInterval)),
		))
		logger.Info("telemetry export enabled", "endpoint", cfg.OTLPEndpoint, "service", name)
	} else {
		logger.Debug("no OTLP endpoint configured, telemetry is not exported")
	}

	p.tracerProvider = sdktrace.NewTracerProvider(traceOpts...)
	p.meterProvider = sdkmetric.NewMeterProvider(metricOpts...)

	if o.setGlobal {
		otel.SetTracerProvider(p.tracerProvider)
		otel.SetMeterProvider(p.meterProvider)
	}
	return p, nil
}

func traceExporterOptions(cfg types.TelemetryConfig) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return opts
}

func metricExporterOptions(cfg types.TelemetryConfig) []otlpmetricgrpc.Option {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	return opts
}

// Exporting reports whether an OTLP endpoint is configured.
func (p *Provider) Exporting() bool { return p.exporting }

// Meter returns a meter from the SDK provider.
func (p *Provider) Meter(name string) metric.Meter { return p.meterProvider.Meter(name) }

// Tracer returns a tracer from the SDK provider.
func (p *Provider) Tracer(name string) trace.Tracer { return p.tracerProvider.Tracer(name) }

// Shutdown flushes and stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutting down tracer provider: %w", err))
	}
	if err := p.meterProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutting down meter provider: %w", err))
	}
	return errors.Join(errs...)
}
