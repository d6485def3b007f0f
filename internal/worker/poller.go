// Package worker runs the background poller that mirrors render queue
// status into the local job store.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oneirolabs/oneiro/internal/domain"
	"github.com/oneirolabs/oneiro/internal/metrics"
	"github.com/oneirolabs/oneiro/internal/store"
	"github.com/oneirolabs/oneiro/internal/video"
)

// AssetMirror copies a completed clip into our own storage. Satisfied by
// service.MediaService.
type AssetMirror interface {
	MirrorVideo(ctx context.Context, userID string, dreamID uuid.UUID, remoteURL string) error
}

// Poller periodically reconciles in-flight video jobs against the remote
// rendering queue. Status transitions are owned by the remote service; the
// poller only mirrors them and attaches the video URL on completion.
type Poller struct {
	renderer video.Renderer
	jobs     store.VideoJobStore
	dreams   store.DreamStore
	profiles store.ProfileStore
	mirror   AssetMirror
	config   Config
	logger   *slog.Logger

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// New creates a Poller. Start it with Start and stop it with Stop.
// mirror may be nil, in which case completed clips keep their remote URL.
func New(renderer video.Renderer, jobs store.VideoJobStore, dreams store.DreamStore, profiles store.ProfileStore, mirror AssetMirror, config Config, logger *slog.Logger) (*Poller, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Poller{
		renderer: renderer,
		jobs:     jobs,
		dreams:   dreams,
		profiles: profiles,
		mirror:   mirror,
		config:   config,
		logger:   logger.With("component", "queue_poller"),
		stopCh:   make(chan struct{}),
	}, nil
}

// Start begins polling in a background goroutine.
func (p *Poller) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.run(ctx)
	p.logger.Info("queue poller started", "interval", p.config.PollInterval)
}

// Stop signals the poller to stop and waits for the current pass to finish,
// up to ShutdownTimeout.
func (p *Poller) Stop() {
	p.logger.Info("stopping queue poller...")
	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("queue poller stopped gracefully")
	case <-time.After(p.config.ShutdownTimeout):
		p.logger.Warn("queue poller shutdown timeout exceeded")
	}
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			passCtx, cancel := context.WithTimeout(ctx, p.config.PollTimeout)
			if err := p.poll(passCtx); err != nil {
				p.logger.Error("polling pass failed", "error", err)
			}
			cancel()
		}
	}
}

// poll loads the in-flight jobs, groups them by user, and reconciles each
// user's jobs against one queue listing.
func (p *Poller) poll(ctx context.Context) error {
	active, err := p.jobs.ListActive(ctx, p.config.MaxActiveJobs)
	if err != nil {
		return fmt.Errorf("list active jobs: %w", err)
	}
	if len(active) == 0 {
		return nil
	}

	byUser := make(map[string][]domain.VideoJob)
	for _, job := range active {
		byUser[job.UserID] = append(byUser[job.UserID], job)
	}

	for userID, userJobs := range byUser {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := p.reconcileUser(ctx, userID, userJobs); err != nil {
			p.logger.Warn("failed to reconcile user jobs", "user_id", userID, "error", err)
		}
	}
	return nil
}

func (p *Poller) reconcileUser(ctx context.Context, userID string, local []domain.VideoJob) error {
	remote, err := p.renderer.ListJobs(ctx, userID)
	if err != nil {
		return fmt.Errorf("list remote jobs: %w", err)
	}

	remoteByID := make(map[uuid.UUID]domain.VideoJob, len(remote))
	for _, r := range remote {
		remoteByID[r.ID] = r
	}

	for _, job := range local {
		r, ok := remoteByID[job.ID]
		if !ok {
			// The remote queue no longer knows the job. Leave it; a
			// sustained absence is surfaced by the job age, not guessed at
			// here.
			continue
		}
		if err := p.apply(ctx, job, r); err != nil {
			p.logger.Warn("failed to apply job update", "job_id", job.ID, "error", err)
		}
	}
	return nil
}

// apply mirrors one remote status onto the local job.
func (p *Poller) apply(ctx context.Context, job, remote domain.VideoJob) error {
	if remote.Status == job.Status && remote.FramesGenerated == job.FramesGenerated {
		return nil
	}

	job.Status = remote.Status
	job.FramesGenerated = remote.FramesGenerated
	job.VideoURL = remote.VideoURL
	job.ErrorMessage = remote.ErrorMessage

	if err := p.jobs.Update(ctx, &job); err != nil {
		return fmt.Errorf("update job: %w", err)
	}

	if !job.Status.Terminal() {
		p.logger.Debug("job progressed",
			"job_id", job.ID, "status", job.Status, "frames", job.FramesGenerated)
		return nil
	}

	metrics.VideoJobsCompleted.WithLabelValues(string(job.Status)).Inc()
	metrics.VideoJobDuration.Observe(time.Since(job.CreatedAt).Seconds())

	if job.Status == domain.VideoJobCompleted && job.VideoURL != "" {
		if err := p.dreams.AttachAssets(ctx, job.UserID, job.DreamID, store.AssetUpdate{VideoURL: &job.VideoURL}); err != nil {
			return fmt.Errorf("attach video: %w", err)
		}
		if err := p.profiles.IncrementVideoCount(ctx, job.UserID); err != nil {
			p.logger.Warn("failed to bump video counter", "user_id", job.UserID, "error", err)
		}
		// Best-effort; the remote URL stays attached if mirroring fails.
		if p.mirror != nil {
			if err := p.mirror.MirrorVideo(ctx, job.UserID, job.DreamID, job.VideoURL); err != nil {
				p.logger.Warn("failed to mirror video", "job_id", job.ID, "error", err)
			}
		}
	}

	p.logger.Info("job finished",
		"job_id", job.ID,
		"user_id", job.UserID,
		"status", job.Status,
		"duration", time.Since(job.CreatedAt))
	return nil
}
