package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/oneirolabs/oneiro/internal/domain"
)

// PostgresCreditsStore implements CreditsStore on Postgres.
type PostgresCreditsStore struct {
	db *sql.DB
}

func NewPostgresCreditsStore(db *sql.DB) *PostgresCreditsStore {
	return &PostgresCreditsStore{db: db}
}

func (s *PostgresCreditsStore) Get(ctx context.Context, userID string) (*domain.ReflectCredits, error) {
	var c domain.ReflectCredits
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, total, used, reset_at FROM reflect_credits WHERE user_id = $1`,
		userID).Scan(&c.UserID, &c.Total, &c.Used, &c.ResetAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credits: %w", err)
	}
	return &c, nil
}

func (s *PostgresCreditsStore) Upsert(ctx context.Context, c *domain.ReflectCredits) error {
	query := `
		INSERT INTO reflect_credits (user_id, total, used, reset_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			total = EXCLUDED.total,
			used = EXCLUDED.used,
			reset_at = EXCLUDED.reset_at`

	_, err := s.db.ExecContext(ctx, query, c.UserID, c.Total, c.Used, c.ResetAt)
	if err != nil {
		return fmt.Errorf("upsert credits: %w", err)
	}
	return nil
}

// Consume spends n credits in a single guarded UPDATE. The WHERE clause
// rejects the spend when the remaining balance cannot cover it, so two
// concurrent consumers can never overdraw the balance.
func (s *PostgresCreditsStore) Consume(ctx context.Context, userID string, n int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reflect_credits
		SET used = used + $2
		WHERE user_id = $1 AND used + $2 <= total`, userID, n)
	if err != nil {
		return fmt.Errorf("consume credits: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Distinguish a missing row from an insufficient balance.
		if _, err := s.Get(ctx, userID); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrInsufficientCredits
	}
	return nil
}
