package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"stealthbuddy/internal/auth"
	"stealthbuddy/internal/billing"
)

type authRepoStub struct {
	createSession         func(ctx context.Context, session auth.Session, tokenHash string) error
	findSessionByHash     func(ctx context.Context, tokenHash string) (*auth.Session, error)
	deleteSession         func(ctx context.Context, id uuid.UUID) error
	deleteExpiredSessions func(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

func (r *authRepoStub) CreateSession(ctx context.Context, session auth.Session, tokenHash string) error {
	if r.createSession != nil {
		return r.createSession(ctx, session, tokenHash)
	}
	return nil
}

func (r *authRepoStub) FindSessionByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	if r.findSessionByHash != nil {
		return r.findSessionByHash(ctx, tokenHash)
	}
	return nil, nil
}

func (r *authRepoStub) DeleteSession(ctx context.Context, id uuid.UUID) error {
	if r.deleteSession != nil {
		return r.deleteSession(ctx, id)
	}
	return nil
}

func (r *authRepoStub) DeleteExpiredSessions(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	if r.deleteExpiredSessions != nil {
		return r.deleteExpiredSessions(ctx, now)
	}
	return nil, nil
}

type providerStub struct {
	exchange      func(ctx context.Context, code string) (*auth.TokenSet, error)
	decodeClaims  func(ctx context.Context, rawIDToken string) (auth.Claims, error)
	fetchUserInfo func(ctx context.Context, accessToken string) (auth.Claims, error)
}

func (p *providerStub) AuthURL(state string) string {
	return "https://auth.example.com/oauth2/authorize?state=" + state
}

func (p *providerStub) Exchange(ctx context.Context, code string) (*auth.TokenSet, error) {
	if p.exchange != nil {
		return p.exchange(ctx, code)
	}
	return nil, errors.New("exchange not configured")
}

func (p *providerStub) DecodeClaims(ctx context.Context, rawIDToken string) (auth.Claims, error) {
	if p.decodeClaims != nil {
		return p.decodeClaims(ctx, rawIDToken)
	}
	return auth.Claims{Subject: "sub-123", Name: "Ada Lovelace", Email: "ada@example.com"}, nil
}

func (p *providerStub) FetchUserInfo(ctx context.Context, accessToken string) (auth.Claims, error) {
	if p.fetchUserInfo != nil {
		return p.fetchUserInfo(ctx, accessToken)
	}
	return auth.Claims{}, auth.ErrUserInfoUnavailable
}

func (p *providerStub) LogoutURL() string {
	return "https://auth.example.com/logout?client_id=client"
}

type backendStub struct {
	mu          sync.Mutex
	balance     billing.Balance
	balanceErr  error
	order       billing.Order
	orderErr    error
	orderCalls  int
	lastRequest billing.OrderRequest
}

func (b *backendStub) FetchBalance(ctx context.Context, token string) (billing.Balance, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance, b.balanceErr
}

func (b *backendStub) CreateOrder(ctx context.Context, token string, req billing.OrderRequest) (billing.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orderCalls++
	b.lastRequest = req
	return b.order, b.orderErr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSession() *auth.Session {
	return &auth.Session{
		ID:          uuid.New(),
		AccessToken: "access-token",
		Claims:      auth.Claims{Subject: "sub-123", Name: "Ada Lovelace", Email: "ada@example.com"},
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

// signedInService returns an auth service that resolves the cookie "token" to session.
func signedInService(session *auth.Session) *auth.Service {
	repo := &authRepoStub{
		findSessionByHash: func(ctx context.Context, tokenHash string) (*auth.Session, error) {
			return session, nil
		},
	}
	return auth.NewService(repo, &providerStub{}, auth.WithLogger(discardLogger()))
}

func withTestSession(req *http.Request, session *auth.Session) *http.Request {
	return req.WithContext(withSession(req.Context(), session))
}

func mustRenderer(t *testing.T) *renderer {
	t.Helper()
	pages, err := newRenderer(discardLogger())
	if err != nil {
		t.Fatalf("newRenderer: %v", err)
	}
	return pages
}

func mustCatalog(t *testing.T) *billing.Catalog {
	t.Helper()
	catalog, err := billing.DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	return catalog
}
