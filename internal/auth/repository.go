package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for browser session persistence.
type Repository interface {
	CreateSession(ctx context.Context, session Session, tokenHash string) error
	FindSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}
