package tracing

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// SpanOperation names a traced cache operation.
type SpanOperation string

const (
	SpanOperationCacheLoad       SpanOperation = "cache.load"
	SpanOperationCacheFetch      SpanOperation = "cache.fetch"
	SpanOperationCacheInvalidate SpanOperation = "cache.invalidate"
)

// StartClientSpan opens a client span for an outbound data service request
// and injects the trace context into req's headers. The caller must end the
// returned span.
func StartClientSpan(ctx context.Context, req *http.Request, resource string) (context.Context, trace.Span) {
	tracer := otel.Tracer("dataservice")
	ctx, span := tracer.Start(ctx, fmt.Sprintf("HTTP %s %s", req.Method, resource),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.url", req.URL.String()),
			attribute.String("dataservice.resource", resource),
		),
	)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	return ctx, span
}

// SetHTTPStatus records the response status on span and flags 5xx responses.
func SetHTTPStatus(span trace.Span, status int) {
	span.SetAttributes(attribute.Int("http.status_code", status))
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}

// StartCacheSpan opens a span for a query cache operation on key.
func StartCacheSpan(ctx context.Context, operation SpanOperation, key string) (context.Context, trace.Span) {
	tracer := otel.Tracer("query")
	return tracer.Start(ctx, fmt.Sprintf("CACHE %s %s", operation, key),
		trace.WithAttributes(
			attribute.String("cache.operation", string(operation)),
			attribute.String("cache.key", key),
		),
	)
}

// RecordError marks span as failed. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// RecordSuccess marks span as successful.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}
