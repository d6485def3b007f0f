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

// VideoHandler serves video generation and job status endpoints.
type VideoHandler struct {
	videos service.VideoService
	logger *slog.Logger
}

// NewVideoHandler creates a VideoHandler.
func NewVideoHandler(videos service.VideoService, logger *slog.Logger) *VideoHandler {
	return &VideoHandler{videos: videos, logger: logger}
}

// RegisterRoutes registers video routes with the provided mux.
//
// Routes:
// - POST /api/dreams/{id}/video  -> Generate
// - GET  /api/video/jobs         -> Jobs
// - GET  /api/video/jobs/{id}    -> Job
func (h *VideoHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/dreams/{id}/video", requireUser(http.HandlerFunc(h.Generate)))
	mux.Handle("GET /api/video/jobs", requireUser(http.HandlerFunc(h.Jobs)))
	mux.Handle("GET /api/video/jobs/{id}", requireUser(http.HandlerFunc(h.Job)))
}

type videoJobResponse struct {
	ID              uuid.UUID `json:"id"`
	DreamID         uuid.UUID `json:"dream_id"`
	Status          string    `json:"status"`
	FramesGenerated int       `json:"frames_generated"`
	VideoURL        string    `json:"video_url,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toVideoJobResponse(j *domain.VideoJob) videoJobResponse {
	return videoJobResponse{
		ID:              j.ID,
		DreamID:         j.DreamID,
		Status:          string(j.Status),
		FramesGenerated: j.FramesGenerated,
		VideoURL:        j.VideoURL,
		ErrorMessage:    j.ErrorMessage,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
	}
}

type generateVideoRequest struct {
	Type string `json:"type"`
}

// Generate submits a dream for video rendering. Responds 202 with the job,
// which may already be terminal if rendering completed synchronously.
func (h *VideoHandler) Generate(w http.ResponseWriter, r *http.Request) {
	dreamID, err := pathID(r)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}

	req := generateVideoRequest{Type: string(domain.VideoTypeStandard)}
	if r.ContentLength > 0 {
		if err := decode(r, &req); err != nil {
			Error(w, r, h.logger, err)
			return
		}
	}

	videoType := domain.VideoType(req.Type)
	switch videoType {
	case domain.VideoTypeStandard, domain.VideoTypeCinematic:
	default:
		Error(w, r, h.logger, domain.Invalid("handler.Generate", "unknown video type"))
		return
	}

	job, err := h.videos.Generate(r.Context(), auth.UserID(r.Context()), dreamID, videoType)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}
	JSON(w, http.StatusAccepted, toVideoJobResponse(job))
}

// Jobs returns the user's recent render jobs, newest first.
func (h *VideoHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	limit, _ := pagination(r)

	jobs, err := h.videos.Jobs(r.Context(), auth.UserID(r.Context()), limit)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}

	resp := make([]videoJobResponse, 0, len(jobs))
	for i := range jobs {
		resp = append(resp, toVideoJobResponse(&jobs[i]))
	}
	JSON(w, http.StatusOK, map[string]any{"jobs": resp})
}

// Job returns one render job.
func (h *VideoHandler) Job(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}

	job, err := h.videos.Job(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}
	JSON(w, http.StatusOK, toVideoJobResponse(job))
}
