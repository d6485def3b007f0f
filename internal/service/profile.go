// Package service contains business logic for the Oneiro platform.
//
// This file implements the profile service, which owns monthly usage resets.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/oneirolabs/oneiro/internal/domain"
	"github.com/oneirolabs/oneiro/internal/store"
)

// ProfileService manages user profiles and their metered usage.
type ProfileService interface {
	// Get returns the user's profile, lazily resetting monthly counters when
	// the stored reset month differs from the current one.
	// Returns domain.ENOTFOUND if no profile exists in any store.
	Get(ctx context.Context, userID string) (*domain.UserProfile, error)

	// Ensure returns the user's profile, creating a free-tier profile on
	// first sign-in.
	Ensure(ctx context.Context, userID, email, name string) (*domain.UserProfile, error)

	// SetTier changes the user's subscription tier.
	SetTier(ctx context.Context, userID string, tier domain.Tier) error

	// RecordAnalysis bumps the monthly and lifetime analysis counters.
	RecordAnalysis(ctx context.Context, userID string) error

	// RecordVideo bumps the lifetime video counter.
	RecordVideo(ctx context.Context, userID string) error

	// RecordTranscription bumps the monthly transcription counter.
	RecordTranscription(ctx context.Context, userID string) error

	// RecordTTSUsage adds synthesized characters and their cost to the
	// monthly counters.
	RecordTTSUsage(ctx context.Context, userID string, chars, costCents int) error
}

type profileService struct {
	profiles store.ProfileStore
	logger   *slog.Logger
	now      func() time.Time
}

// NewProfileService creates a ProfileService.
func NewProfileService(profiles store.ProfileStore, logger *slog.Logger) ProfileService {
	return &profileService{
		profiles: profiles,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *profileService) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	const op = "profile.get"

	profile, err := s.profiles.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.NotFound(op, "profile", userID)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load profile")
	}

	now := s.now()
	if domain.ShouldResetMonthlyUsage(profile.UsageResetAt, now) {
		if err := s.profiles.ResetMonthlyUsage(ctx, userID, now); err != nil {
			return nil, domain.Internal(err, op, "failed to reset monthly usage")
		}
		s.logger.Info("monthly usage reset", "user_id", userID, "previous", profile.UsageResetAt)
		profile.DreamsAnalyzedThisMonth = 0
		profile.TTSCharactersThisMonth = 0
		profile.TTSCostCentsThisMonth = 0
		profile.TranscriptionsThisMonth = 0
		profile.UsageResetAt = now
	}
	return profile, nil
}

func (s *profileService) Ensure(ctx context.Context, userID, email, name string) (*domain.UserProfile, error) {
	const op = "profile.ensure"

	profile, err := s.Get(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if domain.ErrorCode(err) != domain.ENOTFOUND {
		return nil, err
	}

	fresh := &domain.UserProfile{
		ID:           uuid.New(),
		UserID:       userID,
		Email:        email,
		Name:         name,
		Tier:         domain.TierFree,
		UsageResetAt: s.now(),
	}
	if err := s.profiles.Upsert(ctx, fresh); err != nil {
		return nil, domain.Internal(err, op, "failed to create profile")
	}
	s.logger.Info("profile created", "user_id", userID, "tier", fresh.Tier)
	return s.Get(ctx, userID)
}

func (s *profileService) RecordAnalysis(ctx context.Context, userID string) error {
	if err := s.profiles.IncrementDreamAnalyses(ctx, userID); err != nil {
		return domain.Internal(err, "profile.record_analysis", "failed to record analysis")
	}
	return nil
}

func (s *profileService) RecordVideo(ctx context.Context, userID string) error {
	if err := s.profiles.IncrementVideoCount(ctx, userID); err != nil {
		return domain.Internal(err, "profile.record_video", "failed to record video")
	}
	return nil
}

func (s *profileService) RecordTranscription(ctx context.Context, userID string) error {
	if err := s.profiles.IncrementTranscriptions(ctx, userID); err != nil {
		return domain.Internal(err, "profile.record_transcription", "failed to record transcription")
	}
	return nil
}

func (s *profileService) RecordTTSUsage(ctx context.Context, userID string, chars, costCents int) error {
	if err := s.profiles.AddTTSUsage(ctx, userID, chars, costCents); err != nil {
		return domain.Internal(err, "profile.record_tts", "failed to record tts usage")
	}
	return nil
}

func (s *profileService) SetTier(ctx context.Context, userID string, tier domain.Tier) error {
	const op = "profile.set_tier"

	if !tier.Valid() {
		return domain.Invalid(op, "unknown subscription tier")
	}
	if err := s.profiles.SetTier(ctx, userID, tier); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.NotFound(op, "profile", userID)
		}
		return domain.Internal(err, op, "failed to update tier")
	}
	s.logger.Info("tier updated", "user_id", userID, "tier", tier)
	return nil
}
