package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/oneirolabs/oneiro/internal/auth"
	"github.com/oneirolabs/oneiro/internal/domain"
	"github.com/oneirolabs/oneiro/internal/service"
)

// ReflectionHandler serves the ReflectAI conversation endpoints.
type ReflectionHandler struct {
	reflections service.ReflectionService
	credits     service.CreditsService
	logger      *slog.Logger
}

// NewReflectionHandler creates a ReflectionHandler.
func NewReflectionHandler(reflections service.ReflectionService, credits service.CreditsService, logger *slog.Logger) *ReflectionHandler {
	return &ReflectionHandler{reflections: reflections, credits: credits, logger: logger}
}

// RegisterRoutes registers reflection routes with the provided mux.
//
// Routes:
// - POST /api/reflections/sessions                -> StartSession
// - GET  /api/reflections/sessions                -> Sessions
// - GET  /api/reflections/sessions/{id}/messages  -> Messages
// - POST /api/reflections/sessions/{id}/messages  -> SendMessage
// - GET  /api/reflections/streak                  -> Streak
// - GET  /api/credits                             -> Credits
func (h *ReflectionHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/reflections/sessions", requireUser(http.HandlerFunc(h.StartSession)))
	mux.Handle("GET /api/reflections/sessions", requireUser(http.HandlerFunc(h.Sessions)))
	mux.Handle("GET /api/reflections/sessions/{id}/messages", requireUser(http.HandlerFunc(h.Messages)))
	mux.Handle("POST /api/reflections/sessions/{id}/messages", requireUser(http.HandlerFunc(h.SendMessage)))
	mux.Handle("GET /api/reflections/streak", requireUser(http.HandlerFunc(h.Streak)))
	mux.Handle("GET /api/credits", requireUser(http.HandlerFunc(h.Credits)))
}

type sessionResponse struct {
	ID        uuid.UUID `json:"id"`
	DreamID   uuid.UUID `json:"dream_id"`
	CreatedAt time.Time `json:"created_at"`
}

type messageResponse struct {
	ID        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func toMessageResponse(m *domain.ReflectionMessage) messageResponse {
	return messageResponse{
		ID:        m.ID,
		Role:      string(m.Role),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

type startSessionRequest struct {
	DreamID uuid.UUID `json:"dream_id"`
}

// StartSession opens a conversation tied to a dream.
func (h *ReflectionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decode(r, &req); err != nil {
		Error(w, r, h.logger, err)
		return
	}
	if req.DreamID == uuid.Nil {
		Error(w, r, h.logger, domain.Invalid("handler.StartSession", "dream_id is required"))
		return
	}

	session, err := h.reflections.StartSession(r.Context(), auth.UserID(r.Context()), req.DreamID)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}
	JSON(w, http.StatusCreated, sessionResponse{
		ID:        session.ID,
		DreamID:   session.DreamID,
		CreatedAt: session.CreatedAt,
	})
}

// Sessions returns the user's recent sessions, newest first.
func (h *ReflectionHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	sessions, err := h.reflections.Sessions(r.Context(), auth.UserID(r.Context()), limit, offset)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}

	resp := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, sessionResponse{ID: s.ID, DreamID: s.DreamID, CreatedAt: s.CreatedAt})
	}
	JSON(w, http.StatusOK, map[string]any{"sessions": resp})
}

// Messages returns the session's conversation in order.
func (h *ReflectionHandler) Messages(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathID(r)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}

	messages, err := h.reflections.Messages(r.Context(), auth.UserID(r.Context()), sessionID)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}

	resp := make([]messageResponse, 0, len(messages))
	for i := range messages {
		resp = append(resp, toMessageResponse(&messages[i]))
	}
	JSON(w, http.StatusOK, map[string]any{"messages": resp})
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessage appends the user's turn, spends one credit, and returns the
// assistant's reply.
func (h *ReflectionHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathID(r)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}

	var req sendMessageRequest
	if err := decode(r, &req); err != nil {
		Error(w, r, h.logger, err)
		return
	}

	reply, err := h.reflections.SendMessage(r.Context(), auth.UserID(r.Context()), sessionID, req.Content)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}
	JSON(w, http.StatusCreated, toMessageResponse(reply))
}

// Streak returns the user's current daily reflection streak.
func (h *ReflectionHandler) Streak(w http.ResponseWriter, r *http.Request) {
	streak, err := h.reflections.Streak(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}
	JSON(w, http.StatusOK, map[string]int{"streak": streak})
}

type creditsResponse struct {
	Total     int       `json:"total"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	Unlimited bool      `json:"unlimited"`
	ResetAt   time.Time `json:"reset_at"`
}

// Credits returns the user's ReflectAI allowance for the current month.
func (h *ReflectionHandler) Credits(w http.ResponseWriter, r *http.Request) {
	balance, err := h.credits.Balance(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}
	JSON(w, http.StatusOK, creditsResponse{
		Total:     balance.Total,
		Used:      balance.Used,
		Remaining: balance.Remaining,
		Unlimited: balance.Unlimited,
		ResetAt:   balance.ResetAt,
	})
}
