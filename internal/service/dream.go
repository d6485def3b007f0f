// This file implements the dream journal service and the AI analysis
// quota boundary.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/oneirolabs/oneiro/internal/ai"
	"github.com/oneirolabs/oneiro/internal/domain"
	"github.com/oneirolabs/oneiro/internal/metrics"
	"github.com/oneirolabs/oneiro/internal/store"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 10000
	defaultPageSize      = 20
	maxPageSize          = 100
)

// DreamService manages the dream journal and AI interpretation.
type DreamService interface {
	// Create journals a new dream.
	// Returns domain.EINVALID for validation errors.
	Create(ctx context.Context, params domain.CreateDreamParams) (*domain.Dream, error)

	// Get returns one dream owned by the user.
	Get(ctx context.Context, userID string, id uuid.UUID) (*domain.Dream, error)

	// List returns a page of the user's dreams, newest first.
	List(ctx context.Context, userID string, limit, offset int) ([]domain.Dream, int, error)

	// Update edits a dream's user-editable fields.
	Update(ctx context.Context, userID string, id uuid.UUID, params domain.UpdateDreamParams) (*domain.Dream, error)

	// Delete removes a dream.
	Delete(ctx context.Context, userID string, id uuid.UUID) error

	// Interpret runs an AI analysis of the dream and attaches the result.
	// Returns domain.ELIMIT when the tier's analysis allowance is exhausted.
	Interpret(ctx context.Context, userID string, id uuid.UUID) (*domain.Interpretation, error)
}

type dreamService struct {
	dreams      store.DreamStore
	profiles    ProfileService
	interpreter ai.Interpreter
	logger      *slog.Logger
}

// NewDreamService creates a DreamService.
func NewDreamService(dreams store.DreamStore, profiles ProfileService, interpreter ai.Interpreter, logger *slog.Logger) DreamService {
	return &dreamService{
		dreams:      dreams,
		profiles:    profiles,
		interpreter: interpreter,
		logger:      logger,
	}
}

func (s *dreamService) Create(ctx context.Context, params domain.CreateDreamParams) (*domain.Dream, error) {
	const op = "dream.create"

	params.Title = strings.TrimSpace(params.Title)
	params.Description = strings.TrimSpace(params.Description)
	if params.Description == "" {
		return nil, domain.Invalid(op, "Dream description is required")
	}
	if len(params.Title) > maxTitleLength {
		return nil, domain.Invalid(op, "Title is too long")
	}
	if len(params.Description) > maxDescriptionLength {
		return nil, domain.Invalid(op, "Description is too long")
	}

	dream, err := s.dreams.Create(ctx, params)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to save dream")
	}

	metrics.DreamsCreated.Inc()
	s.logger.Info("dream created", "user_id", params.UserID, "dream_id", dream.ID)
	return dream, nil
}

func (s *dreamService) Get(ctx context.Context, userID string, id uuid.UUID) (*domain.Dream, error) {
	const op = "dream.get"

	dream, err := s.dreams.GetByID(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.NotFound(op, "dream", id.String())
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load dream")
	}
	return dream, nil
}

func (s *dreamService) List(ctx context.Context, userID string, limit, offset int) ([]domain.Dream, int, error) {
	const op = "dream.list"

	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	dreams, total, err := s.dreams.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, domain.Internal(err, op, "failed to list dreams")
	}
	return dreams, total, nil
}

func (s *dreamService) Update(ctx context.Context, userID string, id uuid.UUID, params domain.UpdateDreamParams) (*domain.Dream, error) {
	const op = "dream.update"

	if params.Title != nil && len(*params.Title) > maxTitleLength {
		return nil, domain.Invalid(op, "Title is too long")
	}
	if params.Description != nil {
		trimmed := strings.TrimSpace(*params.Description)
		if trimmed == "" {
			return nil, domain.Invalid(op, "Dream description cannot be empty")
		}
		if len(trimmed) > maxDescriptionLength {
			return nil, domain.Invalid(op, "Description is too long")
		}
		params.Description = &trimmed
	}

	dream, err := s.dreams.Update(ctx, userID, id, params)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.NotFound(op, "dream", id.String())
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to update dream")
	}
	return dream, nil
}

func (s *dreamService) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	const op = "dream.delete"

	err := s.dreams.Delete(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.NotFound(op, "dream", id.String())
	}
	if err != nil {
		return domain.Internal(err, op, "failed to delete dream")
	}
	return nil
}

// Interpret is the quota boundary for dream analyses. The check is against
// the lifetime counter on the free tier and the monthly counter on paid
// tiers; used == limit denies.
func (s *dreamService) Interpret(ctx context.Context, userID string, id uuid.UUID) (*domain.Interpretation, error) {
	const op = "dream.interpret"

	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	used := profile.AnalysesUsed()
	if !domain.CanCreateDreamAnalysis(profile.Tier, used) {
		metrics.QuotaDenials.WithLabelValues("dream_analysis", string(profile.Tier)).Inc()
		limit := domain.GetCapabilities(profile.Tier).DreamAnalyses
		return nil, domain.QuotaExceeded(op, "dream analysis", used, limit)
	}

	dream, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	result, err := s.interpreter.InterpretDream(ctx, ai.InterpretParams{
		DreamID:     dream.ID,
		UserID:      userID,
		Title:       dream.Title,
		Description: dream.Description,
		Tags:        dream.Tags,
	})
	if err != nil {
		if errors.Is(err, ai.EInvalidInput) {
			return nil, domain.Invalid(op, "This dream could not be interpreted")
		}
		return nil, domain.Internal(err, op, "interpretation failed")
	}

	raw, err := json.Marshal(result.Interpretation)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to encode interpretation")
	}
	encoded := string(raw)
	if err := s.dreams.AttachAssets(ctx, userID, id, store.AssetUpdate{Interpretation: &encoded}); err != nil {
		return nil, domain.Internal(err, op, "failed to save interpretation")
	}

	if err := s.profiles.RecordAnalysis(ctx, userID); err != nil {
		return nil, err
	}

	s.logger.Info("dream interpreted",
		"user_id", userID,
		"dream_id", id,
		"tier", profile.Tier,
		"analyses_used", used+1,
		"cost_cents", result.Usage.CostCents)

	return &result.Interpretation, nil
}
