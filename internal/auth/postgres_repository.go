package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateSession inserts a new session into the database.
func (r *PostgresRepository) CreateSession(ctx context.Context, session Session, tokenHash string) error {
	const query = `
		INSERT INTO browser_sessions (
			id, session_token_hash, access_token, id_token, subject, name, email,
			email_verified, expires_at, created_at, user_agent, ip_address
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		tokenHash,
		session.AccessToken,
		session.IDToken,
		session.Claims.Subject,
		session.Claims.Name,
		session.Claims.Email,
		session.Claims.EmailVerified,
		session.ExpiresAt,
		session.CreatedAt,
		session.UserAgent,
		session.IPAddress,
	)
	return err
}

// FindSessionByTokenHash looks up a session by the hash of its cookie token.
func (r *PostgresRepository) FindSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error) {
	const query = `
		SELECT id, access_token, id_token, subject, name, email, email_verified,
			expires_at, created_at, user_agent, ip_address
		FROM browser_sessions
		WHERE session_token_hash = $1
	`

	var row sessionRow
	if err := r.db.GetContext(ctx, &row, query, tokenHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return row.toSession(), nil
}

// DeleteSession removes a session from the database.
func (r *PostgresRepository) DeleteSession(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM browser_sessions WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// DeleteExpiredSessions removes every session that expired before now and
// returns their IDs.
func (r *PostgresRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	const query = `DELETE FROM browser_sessions WHERE expires_at <= $1 RETURNING id`

	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, query, now); err != nil {
		return nil, err
	}
	return ids, nil
}

type sessionRow struct {
	ID            uuid.UUID `db:"id"`
	AccessToken   string    `db:"access_token"`
	IDToken       string    `db:"id_token"`
	Subject       string    `db:"subject"`
	Name          string    `db:"name"`
	Email         string    `db:"email"`
	EmailVerified bool      `db:"email_verified"`
	ExpiresAt     time.Time `db:"expires_at"`
	CreatedAt     time.Time `db:"created_at"`
	UserAgent     string    `db:"user_agent"`
	IPAddress     string    `db:"ip_address"`
}

func (r *sessionRow) toSession() *Session {
	return &Session{
		ID:          r.ID,
		AccessToken: r.AccessToken,
		IDToken:     r.IDToken,
		Claims: Claims{
			Subject:       r.Subject,
			Email:         r.Email,
			EmailVerified: r.EmailVerified,
			Name:          r.Name,
		},
		ExpiresAt: r.ExpiresAt,
		CreatedAt: r.CreatedAt,
		UserAgent: r.UserAgent,
		IPAddress: r.IPAddress,
	}
}
