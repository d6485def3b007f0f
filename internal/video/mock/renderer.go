package mock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/oneirolabs/oneiro/internal/domain"
	"github.com/oneirolabs/oneiro/internal/video"
)

// Renderer is a mock rendering service for testing and development.
//
// GenerateVideo enqueues a job as pending; each subsequent ListJobs call
// advances it one step (pending -> processing -> completed), which exercises
// the status poller without a real render farm.
type Renderer struct {
	logger *slog.Logger

	// Configurable responses for testing
	GenerateVideoError error
	GenerateImageError error
	ListJobsError      error

	// Call tracking for testing
	GenerateVideoCalls int
	GenerateImageCalls int
	ListJobsCalls      int

	mu   sync.Mutex
	jobs map[string][]domain.VideoJob
}

// New creates a new mock renderer.
func New(logger *slog.Logger) *Renderer {
	return &Renderer{
		logger: logger,
		jobs:   make(map[string][]domain.VideoJob),
	}
}

// GenerateVideo enqueues a fake pending job and returns a placeholder URL.
func (r *Renderer) GenerateVideo(ctx context.Context, params video.GenerateParams) (*video.GenerateResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.GenerateVideoCalls++

	if r.GenerateVideoError != nil {
		return nil, r.GenerateVideoError
	}

	job := domain.VideoJob{
		ID:      uuid.New(),
		DreamID: params.DreamID,
		UserID:  params.UserID,
		Status:  domain.VideoJobPending,
	}
	r.jobs[params.UserID] = append(r.jobs[params.UserID], job)

	r.logger.Debug("Mock render job enqueued", "dream_id", params.DreamID, "user_id", params.UserID)

	return &video.GenerateResult{
		VideoURL:        fmt.Sprintf("https://mock.oneiro.dev/videos/%s.mp4", params.DreamID),
		Method:          "mock",
		Duration:        float64(params.DurationSeconds),
		Format:          "mp4",
		FramesGenerated: params.DurationSeconds * 24,
	}, nil
}

// GenerateImage returns a deterministic placeholder image URL.
func (r *Renderer) GenerateImage(ctx context.Context, params video.ImageParams) (*video.ImageResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.GenerateImageCalls++

	if r.GenerateImageError != nil {
		return nil, r.GenerateImageError
	}
	return &video.ImageResult{
		ImageURL: fmt.Sprintf("https://mock.oneiro.dev/images/%s.png", params.DreamID),
	}, nil
}

// ListJobs returns the user's fake jobs, advancing each non-terminal job one
// status step per call.
func (r *Renderer) ListJobs(ctx context.Context, userID string) ([]domain.VideoJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ListJobsCalls++

	if r.ListJobsError != nil {
		return nil, r.ListJobsError
	}

	jobs := r.jobs[userID]
	for i := range jobs {
		switch jobs[i].Status {
		case domain.VideoJobPending:
			jobs[i].Status = domain.VideoJobProcessing
			jobs[i].FramesGenerated = 24
		case domain.VideoJobProcessing:
			jobs[i].Status = domain.VideoJobCompleted
			jobs[i].FramesGenerated = 120
			jobs[i].VideoURL = fmt.Sprintf("https://mock.oneiro.dev/videos/%s.mp4", jobs[i].DreamID)
		}
	}

	out := make([]domain.VideoJob, len(jobs))
	copy(out, jobs)
	return out, nil
}

// SetJobs replaces the user's job list. For tests.
func (r *Renderer) SetJobs(userID string, jobs []domain.VideoJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[userID] = jobs
}
