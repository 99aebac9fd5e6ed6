package observability

import (
	"context"

	"sportstrivia/internal/config"
	contextutils "sportstrivia/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics builds a meter provider exporting over OTLP grpc or http
func InitMetrics(cfg *config.OpenTelemetryConfig) (result0 *metric.MeterProvider, err error) {
	ctx := context.Background()

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var exporter metric.Exporter
	switch cfg.Protocol {
	case "grpc":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint), otlpmetricgrpc.WithHeaders(cfg.Headers)}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err = otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otlp grpc metric exporter: %w", err)
		}
	case "http":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint), otlpmetrichttp.WithHeaders(cfg.Headers)}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err = otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otlp http metric exporter: %w", err)
		}
	default:
		return nil, contextutils.NewAppError(contextutils.ErrorCodeInternalError, contextutils.SeverityError,
			"unsupported otel protocol", cfg.Protocol)
	}

	return metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter)),
		metric.WithResource(res),
	), nil
}

// QuestionMetrics holds the counters recorded by the question supply path.
// It reads the global meter provider, so it is a no-op until one is installed.
type QuestionMetrics struct {
	served      otelmetric.Int64Counter
	generations otelmetric.Int64Counter
	preloads    otelmetric.Int64Counter
}

// NewQuestionMetrics creates the instruments on the global meter
func NewQuestionMetrics() *QuestionMetrics {
	meter := otel.Meter("sportstrivia")
	m := &QuestionMetrics{}
	// Creation only fails for invalid instrument names.
	m.served, _ = meter.Int64Counter("trivia.questions.served",
		otelmetric.WithDescription("Questions returned to players, by source"))
	m.generations, _ = meter.Int64Counter("trivia.generation.attempts",
		otelmetric.WithDescription("Generation attempts, by outcome"))
	m.preloads, _ = meter.Int64Counter("trivia.preload.tasks",
		otelmetric.WithDescription("Preload generation tasks, by outcome"))
	return m
}

// QuestionServed counts a question returned by the selection path
func (m *QuestionMetrics) QuestionServed(ctx context.Context, category, source string) {
	if m == nil || m.served == nil {
		return
	}
	m.served.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("category", category),
		attribute.String("source", source),
	))
}

// GenerationAttempt counts one pass of the generation loop
func (m *QuestionMetrics) GenerationAttempt(ctx context.Context, category, result string) {
	if m == nil || m.generations == nil {
		return
	}
	m.generations.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("category", category),
		attribute.String("result", result),
	))
}

// PreloadTask counts one preload generation task
func (m *QuestionMetrics) PreloadTask(ctx context.Context, category, result string) {
	if m == nil || m.preloads == nil {
		return
	}
	m.preloads.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("category", category),
		attribute.String("result", result),
	))
}
