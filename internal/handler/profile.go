package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/oneirolabs/oneiro/internal/auth"
	"github.com/oneirolabs/oneiro/internal/domain"
	"github.com/oneirolabs/oneiro/internal/service"
)

// ProfileHandler serves profile and usage-reporting endpoints.
type ProfileHandler struct {
	profiles service.ProfileService
	usage    service.UsageService
	logger   *slog.Logger
}

// NewProfileHandler creates a ProfileHandler.
func NewProfileHandler(profiles service.ProfileService, usage service.UsageService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, usage: usage, logger: logger}
}

// RegisterRoutes registers profile routes with the provided mux.
//
// Routes:
// - GET  /api/profile                 -> Show
// - POST /api/profile                 -> Ensure
// - POST /api/usage/tts               -> ReportTTS
// - POST /api/usage/transcription     -> ReportTranscription
func (h *ProfileHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET /api/profile", requireUser(http.HandlerFunc(h.Show)))
	mux.Handle("POST /api/profile", requireUser(http.HandlerFunc(h.Ensure)))
	mux.Handle("POST /api/usage/tts", requireUser(http.HandlerFunc(h.ReportTTS)))
	mux.Handle("POST /api/usage/transcription", requireUser(http.HandlerFunc(h.ReportTranscription)))
}

type capabilitiesResponse struct {
	DreamAnalyses    int            `json:"dream_analyses"`
	LifetimeAnalyses bool           `json:"lifetime_analyses"`
	ReflectCredits   int            `json:"reflect_credits"`
	UnlimitedReflect bool           `json:"unlimited_reflect"`
	Transcription    bool           `json:"transcription"`
	VideoQuality     string         `json:"video_quality"`
	VideoDurations   map[string]int `json:"video_durations"`
	Watermark        bool           `json:"watermark"`
}

type profileResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Tier   string `json:"tier"`

	DreamsAnalyzedThisMonth int `json:"dreams_analyzed_this_month"`
	DreamsAnalyzedTotal     int `json:"dreams_analyzed_total"`
	VideosGeneratedTotal    int `json:"videos_generated_total"`
	TranscriptionsThisMonth int `json:"transcriptions_this_month"`
	TTSCharactersThisMonth  int `json:"tts_characters_this_month"`
	TTSCostCentsThisMonth   int `json:"tts_cost_cents_this_month"`

	UsageResetAt time.Time `json:"usage_reset_at"`
	CreatedAt    time.Time `json:"created_at"`

	Capabilities capabilitiesResponse `json:"capabilities"`
}

func toProfileResponse(p *domain.UserProfile) profileResponse {
	caps := domain.GetCapabilities(p.Tier)

	durations := make(map[string]int, len(caps.VideoDurationSeconds))
	for vt, seconds := range caps.VideoDurationSeconds {
		durations[string(vt)] = seconds
	}

	return profileResponse{
		UserID:                  p.UserID,
		Email:                   p.Email,
		Name:                    p.Name,
		Tier:                    string(p.Tier),
		DreamsAnalyzedThisMonth: p.DreamsAnalyzedThisMonth,
		DreamsAnalyzedTotal:     p.DreamsAnalyzedTotal,
		VideosGeneratedTotal:    p.VideosGeneratedTotal,
		TranscriptionsThisMonth: p.TranscriptionsThisMonth,
		TTSCharactersThisMonth:  p.TTSCharactersThisMonth,
		TTSCostCentsThisMonth:   p.TTSCostCentsThisMonth,
		UsageResetAt:            p.UsageResetAt,
		CreatedAt:               p.CreatedAt,
		Capabilities: capabilitiesResponse{
			DreamAnalyses:    caps.DreamAnalyses,
			LifetimeAnalyses: caps.LifetimeAnalyses,
			ReflectCredits:   caps.ReflectCredits,
			UnlimitedReflect: caps.UnlimitedReflect,
			Transcription:    caps.Transcription,
			VideoQuality:     string(caps.VideoQuality),
			VideoDurations:   durations,
			Watermark:        domain.ShouldApplyWatermark(p.Tier),
		},
	}
}

// Show returns the user's profile with tier capabilities.
func (h *ProfileHandler) Show(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profiles.Get(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}
	JSON(w, http.StatusOK, toProfileResponse(profile))
}

type ensureProfileRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Ensure returns the user's profile, creating a free-tier one on first
// sign-in.
func (h *ProfileHandler) Ensure(w http.ResponseWriter, r *http.Request) {
	var req ensureProfileRequest
	if err := decode(r, &req); err != nil {
		Error(w, r, h.logger, err)
		return
	}

	profile, err := h.profiles.Ensure(r.Context(), auth.UserID(r.Context()), req.Email, req.Name)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}
	JSON(w, http.StatusOK, toProfileResponse(profile))
}

type reportTTSRequest struct {
	Characters int `json:"characters"`
}

// ReportTTS records client-side speech synthesis usage.
func (h *ProfileHandler) ReportTTS(w http.ResponseWriter, r *http.Request) {
	var req reportTTSRequest
	if err := decode(r, &req); err != nil {
		Error(w, r, h.logger, err)
		return
	}
	if req.Characters <= 0 {
		Error(w, r, h.logger, domain.Invalid("handler.ReportTTS", "characters must be positive"))
		return
	}

	if err := h.usage.ReportTTS(r.Context(), auth.UserID(r.Context()), req.Characters); err != nil {
		Error(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reportTranscriptionRequest struct {
	Seconds int `json:"seconds"`
}

// ReportTranscription records one voice-note transcription.
func (h *ProfileHandler) ReportTranscription(w http.ResponseWriter, r *http.Request) {
	var req reportTranscriptionRequest
	if err := decode(r, &req); err != nil {
		Error(w, r, h.logger, err)
		return
	}
	if req.Seconds <= 0 {
		Error(w, r, h.logger, domain.Invalid("handler.ReportTranscription", "seconds must be positive"))
		return
	}

	if err := h.usage.ReportTranscription(r.Context(), auth.UserID(r.Context()), req.Seconds); err != nil {
		Error(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
