package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service owns the browser session lifecycle: login redirect, callback
// handling, lookups with lazy expiry, and logout.
type Service struct {
	repo           Repository
	provider       IdentityProvider
	defaultTTL     time.Duration
	providerLogout bool
	logger         *slog.Logger
	now            func() time.Time
	onEnd          []func(key string)
}

// Option customises a Service.
type Option func(*Service)

// WithDefaultTokenTTL sets the session lifetime used when the provider states none.
func WithDefaultTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

// WithLocalLogout makes Logout return the site root instead of the provider logout URL.
func WithLocalLogout() Option {
	return func(s *Service) {
		s.providerLogout = false
	}
}

// WithLogger sets the logger used for non-fatal repository failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSessionEndHook registers fn to run with a session's IdentityKey once the
// session is removed by logout, replacement, lazy expiry or cleanup.
func WithSessionEndHook(fn func(key string)) Option {
	return func(s *Service) {
		if fn != nil {
			s.onEnd = append(s.onEnd, fn)
		}
	}
}

// NewService creates a new auth Service.
func NewService(repo Repository, provider IdentityProvider, opts ...Option) *Service {
	s := &Service{
		repo:           repo,
		provider:       provider,
		defaultTTL:     time.Hour,
		providerLogout: true,
		logger:         slog.Default(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoginURL returns the provider's hosted login URL for the given CSRF state.
func (s *Service) LoginURL(state string) string {
	return s.provider.AuthURL(state)
}

// HandleCallback parses the callback URL (query and fragment) and completes the login.
func (s *Service) HandleCallback(ctx context.Context, currentURL string, meta ClientMeta) (*Session, string, error) {
	params, err := ParseCallback(currentURL)
	if err != nil {
		return nil, "", err
	}
	return s.CompleteLogin(ctx, params, meta)
}

// CompleteLogin turns callback parameters into a stored session and returns
// it with the opaque cookie token. Nothing is stored unless the session is complete.
func (s *Service) CompleteLogin(ctx context.Context, params CallbackParams, meta ClientMeta) (*Session, string, error) {
	if params.Error != "" {
		return nil, "", &ProviderError{Code: params.Error, Description: params.ErrorDescription}
	}

	now := s.now()
	tokens := TokenSet{AccessToken: params.AccessToken, IDToken: params.IDToken}
	if params.ExpiresIn > 0 {
		tokens.Expiry = now.Add(params.ExpiresIn)
	}

	if tokens.AccessToken == "" && params.Code != "" {
		exchanged, err := s.provider.Exchange(ctx, params.Code)
		if err != nil {
			return nil, "", fmt.Errorf("token exchange: %w", err)
		}
		tokens = *exchanged
	}

	if tokens.AccessToken == "" {
		return nil, "", ErrMissingToken
	}

	claims, err := s.resolveClaims(ctx, tokens)
	if err != nil {
		return nil, "", err
	}

	expiresAt := tokens.Expiry
	if expiresAt.IsZero() || !expiresAt.After(now) {
		expiresAt = now.Add(s.defaultTTL)
	}

	session := Session{
		ID:          uuid.New(),
		AccessToken: tokens.AccessToken,
		IDToken:     tokens.IDToken,
		Claims:      claims,
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
		UserAgent:   truncateString(meta.UserAgent, 512),
		IPAddress:   truncateString(meta.IPAddress, 45),
	}
	if err := session.validate(); err != nil {
		return nil, "", err
	}

	token, err := s.createSession(ctx, session)
	if err != nil {
		return nil, "", err
	}

	if meta.PreviousToken != "" {
		if err := s.deleteByToken(ctx, meta.PreviousToken); err != nil {
			s.logger.Warn("failed to delete replaced session", "error", err)
		}
	}

	return &session, token, nil
}

func (s *Service) resolveClaims(ctx context.Context, tokens TokenSet) (Claims, error) {
	if tokens.IDToken != "" {
		claims, err := s.provider.DecodeClaims(ctx, tokens.IDToken)
		if err != nil {
			return Claims{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		return requireSubject(claims)
	}

	claims, err := s.provider.FetchUserInfo(ctx, tokens.AccessToken)
	if err != nil {
		if errors.Is(err, ErrUserInfoUnavailable) {
			return Claims{}, fmt.Errorf("%w: no id token and no userinfo endpoint", ErrMalformedResponse)
		}
		return Claims{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return requireSubject(claims)
}

func requireSubject(claims Claims) (Claims, error) {
	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: claims carry no subject", ErrMalformedResponse)
	}
	return claims, nil
}

func (s *Service) createSession(ctx context.Context, session Session) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	token := base64.URLEncoding.EncodeToString(tokenBytes)

	if err := s.repo.CreateSession(ctx, session, hashToken(token)); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

// Lookup returns the live session for the cookie token, or nil. An expired
// session is deleted on sight.
func (s *Service) Lookup(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}

	session, err := s.repo.FindSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	if session.Expired(s.now()) {
		if err := s.repo.DeleteSession(ctx, session.ID); err != nil {
			s.logger.Warn("failed to delete expired session", "error", err)
		}
		s.ended(session.ID)
		return nil, nil
	}

	return session, nil
}

// IsAuthenticated reports whether the cookie token maps to a live session.
func (s *Service) IsAuthenticated(ctx context.Context, token string) bool {
	session, err := s.Lookup(ctx, token)
	return err == nil && session != nil
}

// UserInfo returns the profile for the cookie token, or nil when anonymous.
func (s *Service) UserInfo(ctx context.Context, token string) (*UserInfo, error) {
	session, err := s.Lookup(ctx, token)
	if err != nil || session == nil {
		return nil, err
	}
	info := session.UserInfo()
	return &info, nil
}

// AccessToken returns the bearer token for the cookie token, if still valid.
func (s *Service) AccessToken(ctx context.Context, token string) (string, bool) {
	session, err := s.Lookup(ctx, token)
	if err != nil || session == nil {
		return "", false
	}
	return session.AccessToken, true
}

// Logout destroys the session and returns where the browser should go next.
func (s *Service) Logout(ctx context.Context, token string) (string, error) {
	target := "/"
	if s.providerLogout {
		target = s.provider.LogoutURL()
	}

	if err := s.deleteByToken(ctx, token); err != nil {
		return target, err
	}
	return target, nil
}

func (s *Service) deleteByToken(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	session, err := s.repo.FindSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil
	}

	if err := s.repo.DeleteSession(ctx, session.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.ended(session.ID)
	return nil
}

// CleanupExpiredSessions removes all expired sessions from the store.
func (s *Service) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	ids, err := s.repo.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		s.ended(id)
	}
	return int64(len(ids)), nil
}

func (s *Service) ended(id uuid.UUID) {
	key := id.String()
	for _, fn := range s.onEnd {
		fn(key)
	}
}

// hashToken returns the SHA-256 hash of the token as a hex string.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
