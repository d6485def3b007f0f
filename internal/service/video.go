// This file implements the video generation workflow: entitlement checks,
// base image bootstrap, job tracking, and render error mapping.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/oneirolabs/oneiro/internal/domain"
	"github.com/oneirolabs/oneiro/internal/store"
	"github.com/oneirolabs/oneiro/internal/video"
)

// VideoService turns journaled dreams into short rendered clips.
type VideoService interface {
	// Generate submits a dream for video rendering. A base image is
	// generated first when the dream has none. The returned job may already
	// be terminal if the rendering service completed synchronously.
	// Returns domain.ELIMIT when the rendering allowance is exhausted.
	Generate(ctx context.Context, userID string, dreamID uuid.UUID, videoType domain.VideoType) (*domain.VideoJob, error)

	// Job returns one job owned by the user.
	Job(ctx context.Context, userID string, id uuid.UUID) (*domain.VideoJob, error)

	// Jobs returns the user's recent jobs, newest first.
	Jobs(ctx context.Context, userID string, limit int) ([]domain.VideoJob, error)
}

type videoService struct {
	renderer video.Renderer
	dreams   store.DreamStore
	jobs     store.VideoJobStore
	profiles ProfileService
	media    MediaService
	logger   *slog.Logger
}

// NewVideoService creates a VideoService. media may be nil, in which case
// remote asset URLs are served as-is instead of being mirrored into our
// own storage.
func NewVideoService(renderer video.Renderer, dreams store.DreamStore, jobs store.VideoJobStore, profiles ProfileService, media MediaService, logger *slog.Logger) VideoService {
	return &videoService{
		renderer: renderer,
		dreams:   dreams,
		jobs:     jobs,
		profiles: profiles,
		media:    media,
		logger:   logger,
	}
}

func (s *videoService) Generate(ctx context.Context, userID string, dreamID uuid.UUID, videoType domain.VideoType) (*domain.VideoJob, error) {
	const op = "video.generate"

	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	dream, err := s.dreams.GetByID(ctx, userID, dreamID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.NotFound(op, "dream", dreamID.String())
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load dream")
	}

	if !dream.HasImage() {
		if err := s.ensureImage(ctx, profile.Tier, dream); err != nil {
			return nil, err
		}
	}

	job := &domain.VideoJob{
		DreamID: dream.ID,
		UserID:  userID,
		Status:  domain.VideoJobPending,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, domain.Internal(err, op, "failed to track render job")
	}

	result, err := s.renderer.GenerateVideo(ctx, video.GenerateParams{
		DreamID:         dream.ID,
		UserID:          userID,
		ImageURL:        dream.ImageURL,
		Prompt:          dream.Description,
		Tier:            profile.Tier,
		VideoType:       videoType,
		DurationSeconds: domain.VideoDuration(profile.Tier, videoType),
	})
	if err != nil {
		job.Status = domain.VideoJobFailed
		job.ErrorMessage = video.UserMessage(err)
		if uerr := s.jobs.Update(ctx, job); uerr != nil {
			s.logger.Error("failed to mark job failed", "job_id", job.ID, "error", uerr)
		}
		return nil, s.mapRenderError(op, err)
	}

	// Some renders complete synchronously; otherwise the queue poller
	// advances the job.
	if result.VideoURL != "" {
		job.Status = domain.VideoJobCompleted
		job.VideoURL = result.VideoURL
		job.FramesGenerated = result.FramesGenerated
		if err := s.jobs.Update(ctx, job); err != nil {
			return nil, domain.Internal(err, op, "failed to finalize render job")
		}
		if err := s.dreams.AttachAssets(ctx, userID, dream.ID, store.AssetUpdate{VideoURL: &result.VideoURL}); err != nil {
			return nil, domain.Internal(err, op, "failed to attach video")
		}
		if err := s.profiles.RecordVideo(ctx, userID); err != nil {
			return nil, err
		}
		// Mirroring is best-effort; the remote URL stays attached if it
		// fails.
		if s.media != nil {
			if err := s.media.MirrorVideo(ctx, userID, dream.ID, result.VideoURL); err != nil {
				s.logger.Warn("video mirror failed", "dream_id", dream.ID, "error", err)
			}
		}
	}

	s.logger.Info("video generation submitted",
		"user_id", userID,
		"dream_id", dream.ID,
		"job_id", job.ID,
		"tier", profile.Tier,
		"type", videoType,
		"status", job.Status)
	return job, nil
}

// ensureImage generates and attaches a base image, which rendering requires.
func (s *videoService) ensureImage(ctx context.Context, tier domain.Tier, dream *domain.Dream) error {
	const op = "video.ensure_image"

	result, err := s.renderer.GenerateImage(ctx, video.ImageParams{
		DreamID: dream.ID,
		UserID:  dream.UserID,
		Prompt:  dream.Description,
		Tier:    tier,
	})
	if err != nil {
		return s.mapRenderError(op, err)
	}

	if err := s.dreams.AttachAssets(ctx, dream.UserID, dream.ID, store.AssetUpdate{ImageURL: &result.ImageURL}); err != nil {
		return domain.Internal(err, op, "failed to attach image")
	}
	dream.ImageURL = result.ImageURL

	// Mirror the image into our own storage so the dream keeps working
	// after the renderer expires its URLs. Best-effort.
	if s.media != nil {
		if err := s.media.MirrorImage(ctx, dream.UserID, dream.ID, result.ImageURL); err != nil {
			s.logger.Warn("image mirror failed", "dream_id", dream.ID, "error", err)
		}
	}
	return nil
}

func (s *videoService) Job(ctx context.Context, userID string, id uuid.UUID) (*domain.VideoJob, error) {
	const op = "video.job"

	job, err := s.jobs.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.NotFound(op, "video job", id.String())
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load job")
	}
	if job.UserID != userID {
		return nil, domain.NotFound(op, "video job", id.String())
	}
	return job, nil
}

func (s *videoService) Jobs(ctx context.Context, userID string, limit int) ([]domain.VideoJob, error) {
	const op = "video.jobs"

	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	jobs, err := s.jobs.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list jobs")
	}
	return jobs, nil
}

// mapRenderError translates rendering sentinels into application errors.
func (s *videoService) mapRenderError(op string, err error) error {
	switch {
	case errors.Is(err, video.ErrLimitReached):
		return &domain.Error{Code: domain.ELIMIT, Op: op, Message: video.UserMessage(err), Err: err}
	case errors.Is(err, video.ErrTokenInvalid):
		return domain.Internal(err, op, video.UserMessage(err))
	default:
		return domain.Internal(err, op, video.UserMessage(err))
	}
}
