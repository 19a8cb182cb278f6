package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), "stealthbuddy-web", "")
	if err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown returned error: %v", err)
	}
}

func TestExporterOptionsCount(t *testing.T) {
	if got := len(exporterOptions("http://collector:4318/v1/traces")); got != 3 {
		t.Fatalf("expected endpoint, path and insecure options, got %d", got)
	}
	if got := len(exporterOptions("https://collector")); got != 1 {
		t.Fatalf("expected only the endpoint option, got %d", got)
	}
	if got := len(exporterOptions("collector:4318")); got != 2 {
		t.Fatalf("expected endpoint and insecure options for bare host, got %d", got)
	}
}

func TestNewHTTPClientKeepsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewHTTPClient(&http.Client{Timeout: 3 * time.Second})
	if client.Timeout != 3*time.Second {
		t.Fatalf("expected timeout to be preserved, got %s", client.Timeout)
	}

	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
}

func TestMiddlewarePassesThrough(t *testing.T) {
	handler := Middleware("test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
}
