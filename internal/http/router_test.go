package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"stealthbuddy/internal/account"
	"stealthbuddy/internal/auth"
	"stealthbuddy/internal/billing"
	"stealthbuddy/internal/config"
	"stealthbuddy/internal/metrics"
)

func newTestRouter(t *testing.T, session *auth.Session, backend *backendStub) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	orchestrator := billing.NewOrchestrator(backend, billing.WithRecorder(collector), billing.WithOrchestratorLogger(discardLogger()))

	authService := auth.NewService(&authRepoStub{}, &providerStub{}, auth.WithLogger(discardLogger()))
	if session != nil {
		authService = signedInService(session)
	}

	cfg := config.Config{
		Environment:    "development",
		AllowedOrigins: []string{"http://localhost:5173"},
		MetricsEnabled: true,
		Checkout:       config.CheckoutConfig{ScriptURL: "https://checkout.example.com/v1/checkout.js", RatePerMinute: 10},
	}
	deps := Dependencies{
		Auth:     authService,
		Accounts: account.NewService(orchestrator, discardLogger()),
		Notices:  account.NewNotices(),
		Checkout: orchestrator,
		Catalog:  mustCatalog(t),
		Metrics:  collector,
		Gatherer: registry,
	}

	router, err := NewRouter(ctx, cfg, deps, discardLogger())
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return router
}

func TestRouterHealth(t *testing.T) {
	router := newTestRouter(t, nil, &backendStub{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["environment"] != "development" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestRouterUnknownPathRedirectsHome(t *testing.T) {
	router := newTestRouter(t, nil, &backendStub{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pricing/old-page", nil))

	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect home, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestRouterServesMetrics(t *testing.T) {
	router := newTestRouter(t, nil, &backendStub{})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "stealthbuddy_http_requests_total") {
		t.Fatal("expected request counter in scrape output")
	}
}

func TestRouterCreditsRequiresSession(t *testing.T) {
	router := newTestRouter(t, nil, &backendStub{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/credits", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRouterSessionAndCreditsWithCookie(t *testing.T) {
	backend := &backendStub{balance: billing.Balance{UserID: "sub-123", Credits: billing.Count(7)}}
	router := newTestRouter(t, testSession(), backend)

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "token"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var session sessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&session); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !session.Authenticated || session.User == nil || session.User.Credits.Int() != 7 {
		t.Fatalf("unexpected session response %+v", session)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/credits", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "token"})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouterLogoutRequiresPost(t *testing.T) {
	router := newTestRouter(t, testSession(), &backendStub{})

	req := httptest.NewRequest(http.MethodGet, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "token"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET logout, got %d", rec.Code)
	}
	if cookie := rec.Header().Get("Set-Cookie"); strings.Contains(cookie, sessionCookieName) {
		t.Fatalf("expected session cookie untouched, got %q", cookie)
	}

	req = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "token"})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 for POST logout, got %d", rec.Code)
	}
}

func TestRouterCheckoutAnonymousRedirectsToLogin(t *testing.T) {
	backend := &backendStub{}
	router := newTestRouter(t, nil, backend)

	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader("plan=starter"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/auth/login?redirectTo=/account" {
		t.Fatalf("expected login redirect, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if backend.orderCalls != 0 {
		t.Fatal("expected no order request")
	}
}

func TestRouterSecurityHeaders(t *testing.T) {
	router := newTestRouter(t, nil, &backendStub{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("expected nosniff header")
	}
}
