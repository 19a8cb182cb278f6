package account

import (
	"context"
	"log/slog"
	"sync"

	"stealthbuddy/internal/auth"
	"stealthbuddy/internal/billing"
)

// Plan names shown on the account panel.
const (
	PlanFree = "free"
	PlanPro  = "pro"

	StatusActive = "active"
)

// User is the account panel view-model.
type User struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Email              string          `json:"email"`
	Plan               string          `json:"plan"`
	SubscriptionStatus string          `json:"subscriptionStatus"`
	Credits            billing.Credits `json:"credits"`
}

// CreditsFetcher is the part of the orchestrator the account service needs.
type CreditsFetcher interface {
	FetchCredits(ctx context.Context, id billing.Identity) (billing.Credits, error)
}

// Service composes session claims with the latest credit balance.
type Service struct {
	credits CreditsFetcher
	logger  *slog.Logger

	mu        sync.Mutex
	lastKnown map[string]billing.Credits
}

// NewService constructs an account Service.
func NewService(credits CreditsFetcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		credits:   credits,
		logger:    logger,
		lastKnown: make(map[string]billing.Credits),
	}
}

// Load builds the view-model for the session. When the balance cannot be
// fetched the last known value (zero if none) is used and the error is
// returned alongside the user.
func (s *Service) Load(ctx context.Context, session *auth.Session) (User, error) {
	credits, err := s.Refresh(ctx, session)
	return compose(session, credits), err
}

// Refresh fetches the balance and remembers it. On failure it returns the
// previous balance with the error.
func (s *Service) Refresh(ctx context.Context, session *auth.Session) (billing.Credits, error) {
	key := session.IdentityKey()

	credits, err := s.credits.FetchCredits(ctx, session)
	if err != nil {
		s.logger.Warn("failed to fetch credits", "error", err)
		return s.previous(key), err
	}

	s.mu.Lock()
	s.lastKnown[key] = credits
	s.mu.Unlock()
	return credits, nil
}

// Forget drops the cached balance for a session that ended.
func (s *Service) Forget(session *auth.Session) {
	if session == nil {
		return
	}
	s.Evict(session.IdentityKey())
}

// Evict drops the cached balance held under the session key.
func (s *Service) Evict(key string) {
	s.mu.Lock()
	delete(s.lastKnown, key)
	s.mu.Unlock()
}

func (s *Service) previous(key string) billing.Credits {
	s.mu.Lock()
	defer s.mu.Unlock()
	if credits, ok := s.lastKnown[key]; ok {
		return credits
	}
	return billing.Count(0)
}

func compose(session *auth.Session, credits billing.Credits) User {
	u := User{
		Plan:               PlanFree,
		SubscriptionStatus: StatusActive,
		Credits:            credits,
	}
	if session != nil {
		u.ID = session.Claims.Subject
		u.Name = session.Claims.Name
		u.Email = session.Claims.Email
	}
	if credits.IsUnlimited() {
		u.Plan = PlanPro
	}
	return u
}
