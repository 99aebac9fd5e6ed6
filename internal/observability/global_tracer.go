package observability

import (
	"context"
	"fmt"

	"sportstrivia/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "sportstrivia"

var globalTracer trace.Tracer

// InitGlobalTracer binds the package tracer to the current global provider
func InitGlobalTracer() {
	globalTracer = otel.Tracer(tracerName)
}

// GetGlobalTracer returns the package tracer, creating it on first use
func GetGlobalTracer() trace.Tracer {
	if globalTracer == nil {
		globalTracer = otel.Tracer(tracerName)
	}
	return globalTracer
}

// TraceFunction starts a span named "<service>.<function>"
func TraceFunction(ctx context.Context, serviceName, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	spanName := fmt.Sprintf("%s.%s", serviceName, functionName)
	return GetGlobalTracer().Start(ctx, spanName, trace.WithAttributes(attributes...))
}

// FinishSpan ends a span and records any error pointed to by errPtr.
// Use with a named error return: `defer observability.FinishSpan(span, &err)`
func FinishSpan(span trace.Span, errPtr *error) {
	if span == nil {
		return
	}
	if errPtr != nil && *errPtr != nil {
		span.RecordError(*errPtr, trace.WithStackTrace(true))
		span.SetStatus(codes.Error, (*errPtr).Error())
	}
	span.End()
}

// TraceBankFunction traces question bank operations
func TraceBankFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "bank", functionName, attributes...)
}

// TraceDedupFunction traces dedup checks
func TraceDedupFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "dedup", functionName, attributes...)
}

// TraceGeneratorFunction traces question generation and LLM calls
func TraceGeneratorFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "generator", functionName, attributes...)
}

// TraceSelectionFunction traces the selection policy
func TraceSelectionFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "selection", functionName, attributes...)
}

// TracePreloadFunction traces preload runs
func TracePreloadFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "preload", functionName, attributes...)
}

// TraceWorkerFunction traces worker runs
func TraceWorkerFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "worker", functionName, attributes...)
}

// TraceHandlerFunction traces HTTP handlers
func TraceHandlerFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "handler", functionName, attributes...)
}

// TraceDatabaseFunction traces database setup and maintenance
func TraceDatabaseFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "database", functionName, attributes...)
}

// AttributeCategory tags a span with the question category
func AttributeCategory(category models.Category) attribute.KeyValue {
	return attribute.String("question.category", string(category))
}

// AttributeDifficulty tags a span with the point value
func AttributeDifficulty(points int) attribute.KeyValue {
	return attribute.Int("question.difficulty", points)
}

// AttributeQuestionID tags a span with a question id
func AttributeQuestionID(id string) attribute.KeyValue {
	return attribute.String("question.id", id)
}

// AttributeLimit tags a span with a query limit
func AttributeLimit(limit int) attribute.KeyValue {
	return attribute.Int("limit", limit)
}

// AttributeAttempt tags a span with the generation attempt number
func AttributeAttempt(attempt int) attribute.KeyValue {
	return attribute.Int("generation.attempt", attempt)
}
