package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wayfind/Cortex/platform/logging"
)

func TestLoggingAssignsTraceIDWhenMissing(t *testing.T) {
	var gotTraceID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTraceID = logging.TraceID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := Logging(testLogger())(inner)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if gotTraceID == "" {
		t.Fatalf("expected a trace id to be generated when none is supplied")
	}
	if rec.Header().Get("X-Trace-ID") != gotTraceID {
		t.Fatalf("expected response X-Trace-ID header to match the context trace id")
	}
}

func TestLoggingPropagatesExistingTraceID(t *testing.T) {
	var gotTraceID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTraceID = logging.TraceID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := Logging(testLogger())(inner)

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Trace-ID", "existing-trace-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if gotTraceID != "existing-trace-id" {
		t.Fatalf("expected existing trace id to be reused, got %q", gotTraceID)
	}
}
