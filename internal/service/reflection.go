// This file implements ReflectAI guided reflection sessions and the
// engagement streak.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oneirolabs/oneiro/internal/ai"
	"github.com/oneirolabs/oneiro/internal/domain"
	"github.com/oneirolabs/oneiro/internal/store"
)

const maxMessageLength = 4000

// ReflectionService manages ReflectAI conversations about journaled dreams.
type ReflectionService interface {
	// StartSession opens a conversation tied to a dream.
	// Returns domain.EFORBIDDEN when the tier has no ReflectAI access.
	StartSession(ctx context.Context, userID string, dreamID uuid.UUID) (*domain.ReflectionSession, error)

	// SendMessage appends the user's turn, spends one credit, and returns
	// the assistant's reply.
	SendMessage(ctx context.Context, userID string, sessionID uuid.UUID, content string) (*domain.ReflectionMessage, error)

	// Messages returns the session's conversation in order.
	Messages(ctx context.Context, userID string, sessionID uuid.UUID) ([]domain.ReflectionMessage, error)

	// Sessions returns the user's recent sessions, newest first.
	Sessions(ctx context.Context, userID string, limit, offset int) ([]domain.ReflectionSession, error)

	// Streak returns the user's current daily reflection streak.
	Streak(ctx context.Context, userID string) (int, error)
}

type reflectionService struct {
	reflections store.ReflectionStore
	dreams      store.DreamStore
	profiles    ProfileService
	credits     CreditsService
	reflector   ai.Reflector
	logger      *slog.Logger
	now         func() time.Time
}

// NewReflectionService creates a ReflectionService.
func NewReflectionService(
	reflections store.ReflectionStore,
	dreams store.DreamStore,
	profiles ProfileService,
	credits CreditsService,
	reflector ai.Reflector,
	logger *slog.Logger,
) ReflectionService {
	return &reflectionService{
		reflections: reflections,
		dreams:      dreams,
		profiles:    profiles,
		credits:     credits,
		reflector:   reflector,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *reflectionService) StartSession(ctx context.Context, userID string, dreamID uuid.UUID) (*domain.ReflectionSession, error) {
	const op = "reflection.start"

	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !domain.CanUseReflect(profile.Tier) {
		return nil, domain.Forbidden(op, "Your plan does not include ReflectAI. Upgrade to start reflecting.")
	}

	if _, err := s.dreams.GetByID(ctx, userID, dreamID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.NotFound(op, "dream", dreamID.String())
		}
		return nil, domain.Internal(err, op, "failed to load dream")
	}

	session := &domain.ReflectionSession{UserID: userID, DreamID: dreamID}
	if err := s.reflections.CreateSession(ctx, session); err != nil {
		return nil, domain.Internal(err, op, "failed to start session")
	}

	s.logger.Info("reflection session started",
		"user_id", userID, "dream_id", dreamID, "session_id", session.ID)
	return session, nil
}

func (s *reflectionService) SendMessage(ctx context.Context, userID string, sessionID uuid.UUID, content string) (*domain.ReflectionMessage, error) {
	const op = "reflection.message"

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.Invalid(op, "Message cannot be empty")
	}
	if len(content) > maxMessageLength {
		return nil, domain.Invalid(op, "Message is too long")
	}

	session, err := s.reflections.GetSession(ctx, userID, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.NotFound(op, "session", sessionID.String())
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load session")
	}

	// One credit per exchanged message pair, spent before the model call so
	// a crashed reply never yields a free retry loop.
	if err := s.credits.Consume(ctx, userID, 1); err != nil {
		return nil, err
	}

	userMsg := &domain.ReflectionMessage{
		SessionID: sessionID,
		Role:      domain.RoleUser,
		Content:   content,
	}
	if err := s.reflections.AppendMessage(ctx, userMsg); err != nil {
		return nil, domain.Internal(err, op, "failed to save message")
	}

	dream, err := s.dreams.GetByID(ctx, userID, session.DreamID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load dream")
	}
	history, err := s.reflections.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load conversation")
	}

	turns := make([]ai.Turn, 0, len(history))
	for _, m := range history {
		turns = append(turns, ai.Turn{Role: string(m.Role), Content: m.Content})
	}

	reply, err := s.reflector.Reply(ctx, ai.ReplyParams{
		UserID:         userID,
		DreamTitle:     dream.Title,
		DreamText:      dream.Description,
		Interpretation: dream.Interpretation,
		Turns:          turns,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "reflection reply failed")
	}

	assistantMsg := &domain.ReflectionMessage{
		SessionID: sessionID,
		Role:      domain.RoleAssistant,
		Content:   reply.Content,
	}
	if err := s.reflections.AppendMessage(ctx, assistantMsg); err != nil {
		return nil, domain.Internal(err, op, "failed to save reply")
	}

	s.logger.Info("reflection turn",
		"user_id", userID,
		"session_id", sessionID,
		"cost_cents", reply.Usage.CostCents)
	return assistantMsg, nil
}

func (s *reflectionService) Messages(ctx context.Context, userID string, sessionID uuid.UUID) ([]domain.ReflectionMessage, error) {
	const op = "reflection.messages"

	if _, err := s.reflections.GetSession(ctx, userID, sessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.NotFound(op, "session", sessionID.String())
		}
		return nil, domain.Internal(err, op, "failed to load session")
	}

	msgs, err := s.reflections.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load conversation")
	}
	return msgs, nil
}

func (s *reflectionService) Sessions(ctx context.Context, userID string, limit, offset int) ([]domain.ReflectionSession, error) {
	const op = "reflection.sessions"

	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	sessions, err := s.reflections.ListSessions(ctx, userID, limit, offset)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list sessions")
	}
	return sessions, nil
}

func (s *reflectionService) Streak(ctx context.Context, userID string) (int, error) {
	const op = "reflection.streak"

	dates, err := s.reflections.SessionDates(ctx, userID)
	if err != nil {
		return 0, domain.Internal(err, op, "failed to load session history")
	}
	return domain.ComputeStreak(dates, s.now()), nil
}
