// This file implements client-reported audio usage metering. Speech
// synthesis and transcription run on-device in the mobile apps; the backend
// meters them for cost tracking and tier gating.
package service

import (
	"context"
	"log/slog"

	"github.com/oneirolabs/oneiro/internal/domain"
	"github.com/oneirolabs/oneiro/internal/pricing"
)

// UsageService meters audio features against the user's profile.
type UsageService interface {
	// ReportTTS records synthesized characters and their cost.
	ReportTTS(ctx context.Context, userID string, chars int) error

	// ReportTranscription records one voice-note transcription.
	// Returns domain.EFORBIDDEN when the tier does not include transcription.
	ReportTranscription(ctx context.Context, userID string, seconds int) error
}

type usageService struct {
	profiles ProfileService
	logger   *slog.Logger
}

// NewUsageService creates a UsageService.
func NewUsageService(profiles ProfileService, logger *slog.Logger) UsageService {
	return &usageService{profiles: profiles, logger: logger}
}

func (s *usageService) ReportTTS(ctx context.Context, userID string, chars int) error {
	const op = "usage.tts"

	if chars <= 0 {
		return domain.Invalid(op, "character count must be positive")
	}
	if _, err := s.profiles.Get(ctx, userID); err != nil {
		return err
	}

	cost := pricing.TTSCost(chars)
	if err := s.profiles.RecordTTSUsage(ctx, userID, chars, cost); err != nil {
		return err
	}
	s.logger.Info("tts usage recorded", "user_id", userID, "chars", chars, "cost_cents", cost)
	return nil
}

func (s *usageService) ReportTranscription(ctx context.Context, userID string, seconds int) error {
	const op = "usage.transcription"

	if seconds <= 0 {
		return domain.Invalid(op, "duration must be positive")
	}

	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !domain.GetCapabilities(profile.Tier).Transcription {
		return domain.Forbidden(op, "Your plan does not include voice transcription. Upgrade to use it.")
	}

	if err := s.profiles.RecordTranscription(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("transcription recorded",
		"user_id", userID, "seconds", seconds, "cost_cents", pricing.TranscriptionCost(seconds))
	return nil
}
