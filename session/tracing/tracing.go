// Package tracing decorates an [http.RoundTripper] with an OpenTelemetry
// client span per request and an optional request id header, so scrape
// traffic can be correlated with server-side logs.
package tracing

import (
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// RequestIDHeader carries the per-request id when enabled.
const RequestIDHeader = "X-Request-ID"

type roundTripper struct {
	tracer    trace.Tracer
	requestID bool
	next      http.RoundTripper
}

// NewRoundTripper wraps next. A nil tracer falls back to a no-op tracer,
// which still allows request ids to be stamped. With requestID set, the
// span's trace id is used as the id when valid, otherwise a random UUID.
// A caller supplied X-Request-ID header is never overwritten.
func NewRoundTripper(tracer trace.Tracer, requestID bool, next http.RoundTripper) http.RoundTripper {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}

	return &roundTripper{
		tracer:    tracer,
		requestID: requestID,
		next:      next,
	}
}

func (rt *roundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx, span := rt.tracer.Start(r.Context(), "qscrape."+r.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("url.full", r.URL.Redacted()),
			attribute.String("server.address", r.URL.Host),
		),
	)
	defer span.End()

	cpy := r.Clone(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(cpy.Header))

	if rt.requestID && cpy.Header.Get(RequestIDHeader) == "" {
		id := span.SpanContext().TraceID().String()
		if !span.SpanContext().TraceID().IsValid() {
			id = uuid.New().String()
		}
		cpy.Header.Set(RequestIDHeader, id)
		span.SetAttributes(attribute.String("http.request.id", id))
	}

	resp, err := rt.next.RoundTrip(cpy)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusBadRequest {
		span.SetStatus(codes.Error, resp.Status)
	}

	return resp, nil
}
