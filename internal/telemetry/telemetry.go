package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Telemetry owns the tracer and meter providers of the process.
type Telemetry struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	instanceID     string

	shutdowns    []func(context.Context) error
	shutdownOnce sync.Once
	shutdownErr  error
}

// Option is a function that configures the telemetry setup
type Option func(*telemetryConfig)

type telemetryConfig struct {
	config     *Config
	instanceID string
	setGlobal  bool
}

// WithTelemetryConfig sets the telemetry configuration
func WithTelemetryConfig(cfg *Config) Option {
	return func(tc *telemetryConfig) {
		tc.config = cfg
	}
}

// WithInstanceID sets the service.instance.id resource attribute. A random
// id is generated when unset.
func WithInstanceID(id string) Option {
	return func(tc *telemetryConfig) {
		tc.instanceID = id
	}
}

// withoutGlobals keeps the providers out of the otel globals; used by tests.
func withoutGlobals() Option {
	return func(tc *telemetryConfig) {
		tc.setGlobal = false
	}
}

// New creates the providers described by the configuration. Disabled
// signals get no-op providers. The caller must call Shutdown to flush
// pending telemetry.
func New(ctx context.Context, opts ...Option) (*Telemetry, error) {
	cfg := &telemetryConfig{setGlobal: true}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.instanceID == "" {
		cfg.instanceID = uuid.NewString()
	}

	t := &Telemetry{
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
		instanceID:     cfg.instanceID,
	}

	c := cfg.config
	if c == nil || !c.Enabled {
		slog.Debug("Telemetry disabled")
		return t, nil
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry configuration: %w", err)
	}
	if !c.tracingEnabled() && !c.metricsEnabled() {
		slog.Info("Telemetry enabled without tracing or metrics")
		return t, nil
	}

	res, err := newResource(ctx, c, cfg.instanceID)
	if err != nil {
		return nil, err
	}

	if c.tracingEnabled() {
		tp, err := newTracerProvider(ctx, c, res)
		if err != nil {
			return nil, err
		}
		t.tracerProvider = tp
		t.shutdowns = append(t.shutdowns, tp.Shutdown)
		if cfg.setGlobal {
			otel.SetTracerProvider(tp)
			otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
				propagation.TraceContext{},
				propagation.Baggage{},
			))
		}
	}

	if c.metricsEnabled() {
		mp, err := newMeterProvider(ctx, c, res)
		if err != nil {
			_ = t.Shutdown(ctx)
			return nil, err
		}
		t.meterProvider = mp
		t.shutdowns = append(t.shutdowns, mp.Shutdown)
		if cfg.setGlobal {
			otel.SetMeterProvider(mp)
		}
	}

	if c.Insecure {
		slog.Warn("Telemetry is exported over unencrypted HTTP")
	}
	slog.Info("Telemetry initialized",
		"service_name", c.GetServiceName(),
		"service_version", c.GetServiceVersion(),
		"instance_id", cfg.instanceID,
		"endpoint", c.GetEndpoint(),
		"tracing", c.tracingEnabled(),
		"metrics", c.metricsEnabled())
	return t, nil
}

func newResource(ctx context.Context, c *Config, instanceID string) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(c.GetServiceName()),
			semconv.ServiceVersion(c.GetServiceVersion()),
			semconv.ServiceInstanceID(instanceID),
		),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

func newTracerProvider(ctx context.Context, c *Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(c.GetEndpoint())}
	if c.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.Tracing.GetSampling()))),
	), nil
}

func newMeterProvider(ctx context.Context, c *Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(c.GetEndpoint())}
	if c.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(c.Metrics.GetInterval()))),
	), nil
}

// TracerProvider returns the configured tracer provider
func (t *Telemetry) TracerProvider() trace.TracerProvider {
	return t.tracerProvider
}

// MeterProvider returns the configured meter provider
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	return t.meterProvider
}

// InstanceID returns the service.instance.id reported with every signal
func (t *Telemetry) InstanceID() string {
	return t.instanceID
}

// Shutdown flushes and stops the SDK providers. Later calls return the
// result of the first one.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	t.shutdownOnce.Do(func() {
		var errs []error
		for i := len(t.shutdowns) - 1; i >= 0; i-- {
			if err := t.shutdowns[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			t.shutdownErr = fmt.Errorf("failed to shutdown telemetry: %w", err)
		}
	})
	return t.shutdownErr
}
