package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin(nil)
	c.RecordLogin(errors.New("denied"))
	c.ObserveCreditsFetch(nil)
	c.ObserveCreditsFetch(nil)
	c.ObserveOrder(errors.New("boom"))
	c.ObserveCheckout("succeeded")
	c.ObserveCheckout("cancelled")
	c.ObserveCheckout("cancelled")

	if got := testutil.ToFloat64(c.logins.WithLabelValues("failure")); got != 1 {
		t.Errorf("login failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.creditsFetches.WithLabelValues("success")); got != 2 {
		t.Errorf("credits fetch successes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.orders.WithLabelValues("failure")); got != 1 {
		t.Errorf("order failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.checkouts.WithLabelValues("cancelled")); got != 2 {
		t.Errorf("cancelled checkouts = %v, want 2", got)
	}
}

func TestCollectorRecordsHTTPRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPRequest(http.MethodGet, http.StatusOK, 20*time.Millisecond)
	c.RecordHTTPRequest(http.MethodPost, http.StatusTooManyRequests, time.Millisecond)

	if got := testutil.ToFloat64(c.httpRequests.WithLabelValues("POST", "429")); got != 1 {
		t.Errorf("POST 429 count = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(c.requestDuration); got != 1 {
		t.Errorf("duration series = %d, want 1", got)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.ObserveCheckout("succeeded")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `stealthbuddy_checkouts_total{outcome="succeeded"} 1`) {
		t.Errorf("expected checkout counter in scrape output, got:\n%s", body)
	}
}
