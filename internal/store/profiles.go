package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oneirolabs/oneiro/internal/domain"
)

const profileColumns = `id, user_id, email, name, tier, stripe_customer_id,
	dreams_analyzed_this_month, tts_characters_this_month, tts_cost_cents_this_month,
	transcriptions_this_month, dreams_analyzed_total, videos_generated_total,
	usage_reset_at, created_at, updated_at`

// PostgresProfileStore implements ProfileStore on Postgres.
//
// Usage counters are incremented with single UPDATE statements so concurrent
// requests never lose increments to read-modify-write races.
type PostgresProfileStore struct {
	db *sql.DB
}

func NewPostgresProfileStore(db *sql.DB) *PostgresProfileStore {
	return &PostgresProfileStore{db: db}
}

func (s *PostgresProfileStore) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE user_id = $1`
	return scanProfile(s.db.QueryRowContext(ctx, query, userID))
}

func (s *PostgresProfileStore) Upsert(ctx context.Context, p *domain.UserProfile) error {
	query := `
		INSERT INTO user_profiles (id, user_id, email, name, tier, stripe_customer_id,
			dreams_analyzed_this_month, tts_characters_this_month, tts_cost_cents_this_month,
			transcriptions_this_month, dreams_analyzed_total, videos_generated_total,
			usage_reset_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			tier = EXCLUDED.tier,
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			dreams_analyzed_this_month = EXCLUDED.dreams_analyzed_this_month,
			tts_characters_this_month = EXCLUDED.tts_characters_this_month,
			tts_cost_cents_this_month = EXCLUDED.tts_cost_cents_this_month,
			transcriptions_this_month = EXCLUDED.transcriptions_this_month,
			dreams_analyzed_total = EXCLUDED.dreams_analyzed_total,
			videos_generated_total = EXCLUDED.videos_generated_total,
			usage_reset_at = EXCLUDED.usage_reset_at,
			updated_at = now()`

	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.UserID, p.Email, p.Name, p.Tier, p.StripeCustomerID,
		p.DreamsAnalyzedThisMonth, p.TTSCharactersThisMonth, p.TTSCostCentsThisMonth,
		p.TranscriptionsThisMonth, p.DreamsAnalyzedTotal, p.VideosGeneratedTotal,
		p.UsageResetAt)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (s *PostgresProfileStore) GetByStripeCustomer(ctx context.Context, customerID string) (*domain.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE stripe_customer_id = $1`
	return scanProfile(s.db.QueryRowContext(ctx, query, customerID))
}

func (s *PostgresProfileStore) SetStripeCustomer(ctx context.Context, userID, customerID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_profiles SET stripe_customer_id = $2, updated_at = now() WHERE user_id = $1`,
		userID, customerID)
	if err != nil {
		return fmt.Errorf("set stripe customer: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresProfileStore) SetTier(ctx context.Context, userID string, tier domain.Tier) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_profiles SET tier = $2, updated_at = now() WHERE user_id = $1`,
		userID, tier)
	if err != nil {
		return fmt.Errorf("set tier: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresProfileStore) IncrementDreamAnalyses(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE user_profiles
		SET dreams_analyzed_this_month = dreams_analyzed_this_month + 1,
		    dreams_analyzed_total = dreams_analyzed_total + 1,
		    updated_at = now()
		WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("increment analyses: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresProfileStore) IncrementVideoCount(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE user_profiles
		SET videos_generated_total = videos_generated_total + 1,
		    updated_at = now()
		WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("increment videos: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresProfileStore) IncrementTranscriptions(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE user_profiles
		SET transcriptions_this_month = transcriptions_this_month + 1,
		    updated_at = now()
		WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("increment transcriptions: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresProfileStore) AddTTSUsage(ctx context.Context, userID string, chars, costCents int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE user_profiles
		SET tts_characters_this_month = tts_characters_this_month + $2,
		    tts_cost_cents_this_month = tts_cost_cents_this_month + $3,
		    updated_at = now()
		WHERE user_id = $1`, userID, chars, costCents)
	if err != nil {
		return fmt.Errorf("add tts usage: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresProfileStore) ResetMonthlyUsage(ctx context.Context, userID string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE user_profiles
		SET dreams_analyzed_this_month = 0,
		    tts_characters_this_month = 0,
		    tts_cost_cents_this_month = 0,
		    transcriptions_this_month = 0,
		    usage_reset_at = $2,
		    updated_at = now()
		WHERE user_id = $1`, userID, now)
	if err != nil {
		return fmt.Errorf("reset monthly usage: %w", err)
	}
	return requireRow(res)
}

func scanProfile(row rowScanner) (*domain.UserProfile, error) {
	var p domain.UserProfile
	var tier string
	err := row.Scan(
		&p.ID, &p.UserID, &p.Email, &p.Name, &tier, &p.StripeCustomerID,
		&p.DreamsAnalyzedThisMonth, &p.TTSCharactersThisMonth, &p.TTSCostCentsThisMonth,
		&p.TranscriptionsThisMonth, &p.DreamsAnalyzedTotal, &p.VideosGeneratedTotal,
		&p.UsageResetAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	p.Tier, _ = domain.ParseTier(tier)
	return &p, nil
}
