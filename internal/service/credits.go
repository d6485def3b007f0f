// This file implements the ReflectAI credit ledger with monthly rollover.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oneirolabs/oneiro/internal/domain"
	"github.com/oneirolabs/oneiro/internal/metrics"
	"github.com/oneirolabs/oneiro/internal/store"
)

// Balance reports a user's ReflectAI allowance. Unlimited balances carry
// Unlimited=true and meaningless counts.
type Balance struct {
	Total     int
	Used      int
	Remaining int
	Unlimited bool
	ResetAt   time.Time
}

// CreditsService manages ReflectAI message credits.
type CreditsService interface {
	// Balance returns the user's current allowance, rolling the record over
	// to the tier's full quota when a new calendar month has started.
	Balance(ctx context.Context, userID string) (*Balance, error)

	// Consume spends n credits.
	// Returns domain.ELIMIT when the balance cannot cover the spend and
	// domain.EFORBIDDEN when the tier has no ReflectAI access at all.
	Consume(ctx context.Context, userID string, n int) error
}

type creditsService struct {
	credits  store.CreditsStore
	profiles ProfileService
	logger   *slog.Logger
	now      func() time.Time
}

// NewCreditsService creates a CreditsService.
func NewCreditsService(credits store.CreditsStore, profiles ProfileService, logger *slog.Logger) CreditsService {
	return &creditsService{
		credits:  credits,
		profiles: profiles,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *creditsService) Balance(ctx context.Context, userID string) (*Balance, error) {
	const op = "credits.balance"

	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	caps := domain.GetCapabilities(profile.Tier)
	if caps.UnlimitedReflect {
		return &Balance{Unlimited: true}, nil
	}

	record, err := s.ensureFresh(ctx, userID, profile.Tier)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load credits")
	}
	return &Balance{
		Total:     record.Total,
		Used:      record.Used,
		Remaining: record.Remaining(),
		ResetAt:   record.ResetAt,
	}, nil
}

func (s *creditsService) Consume(ctx context.Context, userID string, n int) error {
	const op = "credits.consume"

	if n <= 0 {
		return domain.Invalid(op, "credit spend must be positive")
	}

	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return err
	}

	caps := domain.GetCapabilities(profile.Tier)
	if caps.UnlimitedReflect {
		metrics.ReflectCreditsConsumed.Add(float64(n))
		return nil
	}
	if caps.ReflectCredits == 0 {
		return domain.Forbidden(op, "Your plan does not include ReflectAI. Upgrade to start reflecting.")
	}

	record, err := s.ensureFresh(ctx, userID, profile.Tier)
	if err != nil {
		return domain.Internal(err, op, "failed to load credits")
	}

	err = s.credits.Consume(ctx, userID, n)
	if errors.Is(err, store.ErrInsufficientCredits) {
		metrics.ReflectCreditsDenied.Inc()
		return domain.QuotaExceeded(op, "ReflectAI credit", record.Used, record.Total)
	}
	if err != nil {
		return domain.Internal(err, op, "failed to consume credits")
	}

	metrics.ReflectCreditsConsumed.Add(float64(n))
	return nil
}

// ensureFresh returns the user's credit record, creating it on first use and
// replacing it with a full quota when a new calendar month has started.
func (s *creditsService) ensureFresh(ctx context.Context, userID string, tier domain.Tier) (*domain.ReflectCredits, error) {
	now := s.now()

	record, err := s.credits.Get(ctx, userID)
	if err == nil && !record.Stale(now) {
		return record, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	fresh := domain.NewReflectCredits(userID, tier, now)
	if err := s.credits.Upsert(ctx, fresh); err != nil {
		return nil, err
	}
	if record != nil {
		s.logger.Info("reflect credits rolled over",
			"user_id", userID, "tier", tier, "previous_used", record.Used)
	}
	return fresh, nil
}
