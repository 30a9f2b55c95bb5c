package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSessionNotFound covers unknown and expired tokens alike; callers get no
// hint which one it was.
var ErrSessionNotFound = errors.New("session not found or expired")

// SessionRepository stores login sessions as token hashes. The raw token is
// only ever seen by the client; a database leak exposes nothing replayable.
type SessionRepository struct {
	db *pgxpool.Pool
}

func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, tokenHash, accountNumber string, ttl time.Duration) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO sessions (token_hash, account_number, expires_at)
		VALUES ($1, $2, $3)
	`, tokenHash, accountNumber, time.Now().Add(ttl))
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Resolve maps a token hash to the account it authenticates.
func (r *SessionRepository) Resolve(ctx context.Context, tokenHash string) (string, error) {
	var accountNumber string
	err := r.db.QueryRow(ctx, `
		SELECT account_number FROM sessions
		WHERE token_hash = $1 AND expires_at > NOW()
	`, tokenHash).Scan(&accountNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", err
	}
	return accountNumber, nil
}

// DeleteExpired prunes dead sessions; the janitor runs it periodically.
func (r *SessionRepository) DeleteExpired(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	return err
}
