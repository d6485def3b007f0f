// Package video talks to the remote dream-video rendering service.
//
// The service exposes a generation endpoint that enqueues a rendering job and
// a queue-status endpoint the poller reads. Generation tolerates transient
// failures: the client retries up to two times with backoff, refreshing the
// bearer token between attempts.
package video

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oneirolabs/oneiro/internal/domain"
	"github.com/google/uuid"
)

// Renderer is the interface to the rendering service.
type Renderer interface {
	// GenerateVideo requests a short cinematic clip for a dream. Blocking:
	// the call returns once the service accepts or completes the request.
	GenerateVideo(ctx context.Context, params GenerateParams) (*GenerateResult, error)

	// GenerateImage requests a base image for a dream that has none yet.
	GenerateImage(ctx context.Context, params ImageParams) (*ImageResult, error)

	// ListJobs returns the user's rendering jobs as tracked by the remote
	// queue.
	ListJobs(ctx context.Context, userID string) ([]domain.VideoJob, error)
}

// GenerateParams describes one video-generation request.
type GenerateParams struct {
	DreamID         uuid.UUID
	UserID          string
	ImageURL        string
	Prompt          string
	Tier            domain.Tier
	VideoType       domain.VideoType
	DurationSeconds int
}

// GenerateResult is the success payload of a generation request.
type GenerateResult struct {
	VideoURL        string
	Method          string
	Duration        float64
	Format          string
	FramesGenerated int
}

// ImageParams describes a base-image generation request.
type ImageParams struct {
	DreamID uuid.UUID
	UserID  string
	Prompt  string
	Tier    domain.Tier
}

// ImageResult is the success payload of an image request.
type ImageResult struct {
	ImageURL string
}

// Sentinel errors for terminal failures of the rendering service. The small
// fixed set of remote error codes maps onto these.
var (
	// ErrTokenInvalid indicates the bearer token was rejected
	// (code TOKEN_INVALID or UNAUTHORIZED).
	ErrTokenInvalid = errors.New("render token rejected")

	// ErrLimitReached indicates the user's rendering allowance is exhausted
	// (code LIMIT_REACHED).
	ErrLimitReached = errors.New("video generation limit reached")

	// ErrUnavailable indicates the service is temporarily unreachable.
	ErrUnavailable = errors.New("rendering service unavailable")
)

// UserMessage maps a terminal rendering error to the message shown to the
// user.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrTokenInvalid):
		return "Your session expired. Please sign in again and retry."
	case errors.Is(err, ErrLimitReached):
		return "You've reached your video generation limit for this billing period."
	case errors.Is(err, ErrUnavailable):
		return "Video generation is temporarily unavailable. Please try again in a few minutes."
	default:
		return "Video generation failed. Please try again."
	}
}

// Config configures the HTTP render client.
type Config struct {
	// BaseURL of the rendering service, without a trailing slash.
	BaseURL string

	// MaxRetries caps retries after the first attempt. Default 2
	// (3 attempts total).
	MaxRetries int

	// RetryDelay is the default wait between attempts when the service gives
	// no Retry-After hint. Default 5s.
	RetryDelay time.Duration

	// RequestTimeout bounds each HTTP request. Default 60s.
	RequestTimeout time.Duration
}

func (c *Config) applyDefaults() error {
	if c.BaseURL == "" {
		return fmt.Errorf("render service base URL is required")
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 5 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 60 * time.Second
	}
	return nil
}
