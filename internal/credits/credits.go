// Package credits meters LLM-backed work per user.
//
// Every user starts with a configurable balance, provisioned lazily on first
// touch. Spending is a single conditional UPDATE so concurrent requests can
// never drive a balance negative.
package credits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrInsufficientCredits indicates the balance cannot cover the requested spend.
var ErrInsufficientCredits = errors.New("insufficient credits")

// Store manages per-user credit balances. Safe for concurrent use.
type Store struct {
	pool            *pgxpool.Pool
	startingBalance int
	logger          *slog.Logger
}

// NewStore creates a credit store. startingBalance is granted to each user on
// first touch. A nil logger falls back to slog.Default.
func NewStore(pool *pgxpool.Pool, startingBalance int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		pool:            pool,
		startingBalance: startingBalance,
		logger:          logger,
	}
}

const provisionSQL = `
INSERT INTO user_credits (user_id, balance)
VALUES ($1, $2)
ON CONFLICT (user_id) DO NOTHING`

func (s *Store) provision(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, provisionSQL, userID, s.startingBalance); err != nil {
		return fmt.Errorf("provisioning credits for %q: %w", userID, err)
	}
	return nil
}

// Balance returns the user's current balance, provisioning the starting
// balance if the user has never been seen.
func (s *Store) Balance(ctx context.Context, userID string) (int, error) {
	if err := s.provision(ctx, userID); err != nil {
		return 0, err
	}

	var balance int
	err := s.pool.QueryRow(ctx, `SELECT balance FROM user_credits WHERE user_id = $1`, userID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("reading balance for %q: %w", userID, err)
	}
	return balance, nil
}

// Spend deducts n credits atomically. Returns ErrInsufficientCredits when the
// balance cannot cover n; the balance is left untouched in that case.
func (s *Store) Spend(ctx context.Context, userID string, n int) error {
	if n <= 0 {
		return fmt.Errorf("spend amount must be positive, got %d", n)
	}
	if err := s.provision(ctx, userID); err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
UPDATE user_credits
SET balance = balance - $2, updated_at = now()
WHERE user_id = $1 AND balance >= $2`, userID, n)
	if err != nil {
		return fmt.Errorf("spending credits for %q: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %q needs %d", ErrInsufficientCredits, userID, n)
	}

	s.logger.Debug("credits spent", "user_id", userID, "amount", n)
	return nil
}

// Grant adds n credits to the user's balance.
func (s *Store) Grant(ctx context.Context, userID string, n int) error {
	if n <= 0 {
		return fmt.Errorf("grant amount must be positive, got %d", n)
	}
	if err := s.provision(ctx, userID); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, `
UPDATE user_credits
SET balance = balance + $2, updated_at = now()
WHERE user_id = $1`, userID, n)
	if err != nil {
		return fmt.Errorf("granting credits to %q: %w", userID, err)
	}

	s.logger.Debug("credits granted", "user_id", userID, "amount", n)
	return nil
}
