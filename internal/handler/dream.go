package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/oneirolabs/oneiro/internal/auth"
	"github.com/oneirolabs/oneiro/internal/domain"
	"github.com/oneirolabs/oneiro/internal/service"
)

// DreamHandler serves the dream journal endpoints.
type DreamHandler struct {
	dreams service.DreamService
	logger *slog.Logger
}

// NewDreamHandler creates a DreamHandler.
func NewDreamHandler(dreams service.DreamService, logger *slog.Logger) *DreamHandler {
	return &DreamHandler{dreams: dreams, logger: logger}
}

// RegisterRoutes registers dream routes with the provided mux.
//
// Routes:
// - GET    /api/dreams                 -> List
// - POST   /api/dreams                 -> Create
// - GET    /api/dreams/{id}            -> Show
// - PATCH  /api/dreams/{id}            -> Update
// - DELETE /api/dreams/{id}            -> Delete
// - POST   /api/dreams/{id}/interpret  -> Interpret
func (h *DreamHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET /api/dreams", requireUser(http.HandlerFunc(h.List)))
	mux.Handle("POST /api/dreams", requireUser(http.HandlerFunc(h.Create)))
	mux.Handle("GET /api/dreams/{id}", requireUser(http.HandlerFunc(h.Show)))
	mux.Handle("PATCH /api/dreams/{id}", requireUser(http.HandlerFunc(h.Update)))
	mux.Handle("DELETE /api/dreams/{id}", requireUser(http.HandlerFunc(h.Delete)))
	mux.Handle("POST /api/dreams/{id}/interpret", requireUser(http.HandlerFunc(h.Interpret)))
}

type dreamResponse struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Tags           []string  `json:"tags"`
	ImageURL       string    `json:"image_url,omitempty"`
	ThumbnailURL   string    `json:"thumbnail_url,omitempty"`
	VideoURL       string    `json:"video_url,omitempty"`
	AudioURL       string    `json:"audio_url,omitempty"`
	Interpretation string    `json:"interpretation,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toDreamResponse(d *domain.Dream) dreamResponse {
	return dreamResponse{
		ID:             d.ID,
		Title:          d.Title,
		Description:    d.Description,
		Tags:           d.Tags,
		ImageURL:       d.ImageURL,
		ThumbnailURL:   d.ThumbnailURL,
		VideoURL:       d.VideoURL,
		AudioURL:       d.AudioURL,
		Interpretation: d.Interpretation,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type dreamListResponse struct {
	Dreams []dreamResponse `json:"dreams"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// List returns a page of the user's dreams, newest first.
func (h *DreamHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	dreams, total, err := h.dreams.List(r.Context(), auth.UserID(r.Context()), limit, offset)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}

	resp := dreamListResponse{
		Dreams: make([]dreamResponse, 0, len(dreams)),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for i := range dreams {
		resp.Dreams = append(resp.Dreams, toDreamResponse(&dreams[i]))
	}
	JSON(w, http.StatusOK, resp)
}

type createDreamRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Create journals a new dream.
func (h *DreamHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createDreamRequest
	if err := decode(r, &req); err != nil {
		Error(w, r, h.logger, err)
		return
	}

	dream, err := h.dreams.Create(r.Context(), domain.CreateDreamParams{
		UserID:      auth.UserID(r.Context()),
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
	})
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}

	JSON(w, http.StatusCreated, toDreamResponse(dream))
}

// Show returns one dream.
func (h *DreamHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}

	dream, err := h.dreams.Get(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}
	JSON(w, http.StatusOK, toDreamResponse(dream))
}

type updateDreamRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Tags        []string `json:"tags"`
}

// Update edits a dream's user-editable fields.
func (h *DreamHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}

	var req updateDreamRequest
	if err := decode(r, &req); err != nil {
		Error(w, r, h.logger, err)
		return
	}

	dream, err := h.dreams.Update(r.Context(), auth.UserID(r.Context()), id, domain.UpdateDreamParams{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
	})
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}
	JSON(w, http.StatusOK, toDreamResponse(dream))
}

// Delete removes a dream.
func (h *DreamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}

	if err := h.dreams.Delete(r.Context(), auth.UserID(r.Context()), id); err != nil {
		Error(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Interpret runs an AI analysis of the dream and returns the structured
// interpretation.
func (h *DreamHandler) Interpret(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}

	interpretation, err := h.dreams.Interpret(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}
	JSON(w, http.StatusOK, interpretation)
}

// pathID parses the {id} path segment as a UUID.
func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, domain.Invalid("handler.pathID", "invalid id")
	}
	return id, nil
}

// pagination parses limit/offset query parameters with sane bounds.
func pagination(r *http.Request) (limit, offset int) {
	limit = 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
