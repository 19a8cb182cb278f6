package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"stealthbuddy/internal/auth"
)

func TestSessionMiddlewarePassesAnonymousRequests(t *testing.T) {
	authService := auth.NewService(&authRepoStub{}, &providerStub{}, auth.WithLogger(discardLogger()))
	var seen *auth.Session
	next := newSessionMiddleware(authService, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	next.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if seen != nil {
		t.Fatal("expected no session without a cookie")
	}
}

func TestSessionMiddlewareInjectsSession(t *testing.T) {
	session := testSession()
	var seen *auth.Session
	next := newSessionMiddleware(signedInService(session), discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "token"})
	next.ServeHTTP(httptest.NewRecorder(), req)

	if seen == nil || seen.ID != session.ID {
		t.Fatalf("expected session in context, got %+v", seen)
	}
}

func TestSessionMiddlewareIgnoresExpiredSession(t *testing.T) {
	session := testSession()
	session.ExpiresAt = time.Now().Add(-time.Minute)
	var deleted uuid.UUID
	repo := &authRepoStub{
		findSessionByHash: func(ctx context.Context, tokenHash string) (*auth.Session, error) {
			return session, nil
		},
		deleteSession: func(ctx context.Context, id uuid.UUID) error {
			deleted = id
			return nil
		},
	}
	authService := auth.NewService(repo, &providerStub{}, auth.WithLogger(discardLogger()))
	var seen *auth.Session
	next := newSessionMiddleware(authService, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "token"})
	next.ServeHTTP(httptest.NewRecorder(), req)

	if seen != nil {
		t.Fatal("expected expired session to be treated as anonymous")
	}
	if deleted != session.ID {
		t.Fatal("expected expired session to be deleted")
	}
}

func TestSessionMiddlewareSurvivesRepositoryError(t *testing.T) {
	repo := &authRepoStub{
		findSessionByHash: func(ctx context.Context, tokenHash string) (*auth.Session, error) {
			return nil, errors.New("db down")
		},
	}
	authService := auth.NewService(repo, &providerStub{}, auth.WithLogger(discardLogger()))
	next := newSessionMiddleware(authService, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "token"})
	rec := httptest.NewRecorder()
	next.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected request to continue anonymously, got %d", rec.Code)
	}
}

func TestRequireSessionJSONRejectsAnonymous(t *testing.T) {
	next := requireSessionJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	next.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/credits", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("expected WWW-Authenticate header")
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	next := newSecurityHeadersMiddleware("production")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	next.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatal("expected X-Frame-Options DENY")
	}
	if rec.Header().Get("Strict-Transport-Security") == "" {
		t.Fatal("expected HSTS outside development")
	}

	devRec := httptest.NewRecorder()
	newSecurityHeadersMiddleware("development")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(devRec, httptest.NewRequest(http.MethodGet, "/", nil))
	if devRec.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("expected no HSTS in development")
	}
}

type requestRecorderStub struct {
	method string
	status int
}

func (r *requestRecorderStub) RecordHTTPRequest(method string, status int, _ time.Duration) {
	r.method = method
	r.status = status
}

func TestSlogMiddlewareRecordsStatus(t *testing.T) {
	recorder := &requestRecorderStub{}
	next := newSlogMiddleware(discardLogger(), recorder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	next.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/checkout", nil))

	if recorder.method != http.MethodPost || recorder.status != http.StatusTeapot {
		t.Fatalf("unexpected recording %+v", recorder)
	}
}

func TestClientIPFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:4321"
	if got := clientIPFromRequest(req); got != "203.0.113.7" {
		t.Fatalf("expected host only, got %q", got)
	}

	req.RemoteAddr = "203.0.113.7"
	if got := clientIPFromRequest(req); got != "203.0.113.7" {
		t.Fatalf("expected raw address, got %q", got)
	}
}
