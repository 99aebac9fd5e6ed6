package observability

import (
	"context"
	"errors"
	"os"

	"sportstrivia/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Providers holds what SetupObservability created so callers can flush on exit
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *metric.MeterProvider
	Logger         *Logger
}

// Shutdown flushes and stops the providers that were created
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	if p.TracerProvider != nil {
		errs = append(errs, p.TracerProvider.Shutdown(ctx))
	}
	if p.MeterProvider != nil {
		errs = append(errs, p.MeterProvider.Shutdown(ctx))
	}
	if p.Logger != nil {
		// Sync on stdout/stderr returns EINVAL on some platforms.
		_ = p.Logger.Sync()
	}
	return errors.Join(errs...)
}

// SetupObservability initializes tracing, metrics, and logging for a service
func SetupObservability(cfg *config.OpenTelemetryConfig, serviceName string, logLevel string) (result0 *Providers, err error) {
	if serviceName != "" {
		cfg.ServiceName = serviceName
	}

	if err := os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName); err != nil {
		return nil, err
	}
	if err := os.Setenv("OTEL_SERVICE_VERSION", cfg.ServiceVersion); err != nil {
		return nil, err
	}

	p := &Providers{Logger: NewLoggerWithLevel(cfg, ParseLevel(logLevel))}

	if cfg.EnableTracing {
		tp, err := InitStandardTracing(cfg)
		if err != nil {
			return nil, err
		}
		otel.SetTracerProvider(tp)
		InitPropagation()
		InitGlobalTracer()
		p.TracerProvider = tp

		p.Logger.Info(context.Background(), "Tracing enabled", map[string]interface{}{"service_name": cfg.ServiceName})
	}

	if cfg.EnableMetrics {
		mp, err := InitMetrics(cfg)
		if err != nil {
			return nil, err
		}
		otel.SetMeterProvider(mp)
		p.MeterProvider = mp
	}

	return p, nil
}
