package tracing_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/adamwoolhether/qscrape/session/tracing"
)

func recorder(t *testing.T) (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })

	return sr, tp
}

func attr(kvs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range kvs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestRoundTripper_RecordsSpan(t *testing.T) {
	ids := make(chan string, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids <- r.Header.Get(tracing.RequestIDHeader)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	sr, tp := recorder(t)
	c := &http.Client{Transport: tracing.NewRoundTripper(tp.Tracer("test"), true, http.DefaultTransport)}

	resp, err := c.Get(ts.URL + "/missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	gotID := <-ids

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("exp 1 span, got %d", len(spans))
	}
	span := spans[0]

	if span.Name() != "qscrape.GET" {
		t.Errorf("exp span name qscrape.GET, got %q", span.Name())
	}
	if span.Status().Code != codes.Error {
		t.Errorf("exp error status for 404, got %v", span.Status().Code)
	}
	if v, ok := attr(span.Attributes(), "http.response.status_code"); !ok || v.AsInt64() != http.StatusNotFound {
		t.Errorf("exp status code attribute 404, got %v (present %t)", v.AsInt64(), ok)
	}
	if gotID != span.SpanContext().TraceID().String() {
		t.Errorf("exp request id to be trace id %s, got %q", span.SpanContext().TraceID(), gotID)
	}
}

func TestRoundTripper_NoopTracerUsesUUID(t *testing.T) {
	ids := make(chan string, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids <- r.Header.Get(tracing.RequestIDHeader)
	}))
	defer ts.Close()

	c := &http.Client{Transport: tracing.NewRoundTripper(nil, true, http.DefaultTransport)}

	resp, err := c.Get(ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	gotID := <-ids
	if _, err := uuid.Parse(gotID); err != nil {
		t.Errorf("exp uuid request id, got %q: %v", gotID, err)
	}
}

func TestRoundTripper_KeepsCallerRequestID(t *testing.T) {
	ids := make(chan string, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids <- r.Header.Get(tracing.RequestIDHeader)
	}))
	defer ts.Close()

	c := &http.Client{Transport: tracing.NewRoundTripper(nil, true, http.DefaultTransport)}

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, ts.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set(tracing.RequestIDHeader, "abc123")

	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	gotID := <-ids
	if gotID != "abc123" {
		t.Errorf("exp caller request id to be kept, got %q", gotID)
	}
}

func TestRoundTripper_RequestIDDisabled(t *testing.T) {
	ids := make(chan string, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids <- r.Header.Get(tracing.RequestIDHeader)
	}))
	defer ts.Close()

	c := &http.Client{Transport: tracing.NewRoundTripper(nil, false, http.DefaultTransport)}

	resp, err := c.Get(ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	gotID := <-ids
	if gotID != "" {
		t.Errorf("exp no request id, got %q", gotID)
	}
}

func TestRoundTripper_TransportError(t *testing.T) {
	wantErr := errors.New("dial failed")
	failing := roundTripFunc(func(*http.Request) (*http.Response, error) { return nil, wantErr })

	sr, tp := recorder(t)
	c := &http.Client{Transport: tracing.NewRoundTripper(tp.Tracer("test"), false, failing)}

	_, err := c.Get("http://example.invalid/")
	if !errors.Is(err, wantErr) {
		t.Fatalf("exp %v, got %v", wantErr, err)
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("exp 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("exp error status, got %v", spans[0].Status().Code)
	}
	if len(spans[0].Events()) == 0 {
		t.Error("exp recorded error event")
	}
}

// roundTripFunc adapts a function into an http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
