package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/oneirolabs/oneiro/internal/auth"
	"github.com/oneirolabs/oneiro/internal/domain"
	"github.com/oneirolabs/oneiro/internal/metrics"
	"github.com/oneirolabs/oneiro/internal/retry"
)

// Client implements Renderer against the rendering service's HTTP API.
type Client struct {
	cfg    Config
	client *http.Client
	tokens auth.TokenSource
	logger *slog.Logger
}

// NewClient creates a render client.
func NewClient(cfg Config, tokens auth.TokenSource, logger *slog.Logger) (*Client, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}

	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
		tokens: tokens,
		logger: logger,
	}, nil
}

// GenerateVideo POSTs a generation request, retrying transient failures with
// backoff and a forced token refresh between attempts.
func (c *Client) GenerateVideo(ctx context.Context, params GenerateParams) (*GenerateResult, error) {
	body := generateRequest{
		ImageURL:         params.ImageURL,
		Prompt:           params.Prompt,
		UserID:           params.UserID,
		SubscriptionTier: string(params.Tier),
		VideoType:        string(params.VideoType),
		DurationSeconds:  params.DurationSeconds,
	}

	var result generateResponse
	err := c.withRetry(ctx, "video.generate", http.MethodPost, "/v1/videos", body, &result)
	if err != nil {
		metrics.RenderRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.RenderRequests.WithLabelValues("ok").Inc()
	return &GenerateResult{
		VideoURL:        result.VideoURL,
		Method:          result.Method,
		Duration:        result.Duration,
		Format:          result.Format,
		FramesGenerated: result.FramesGenerated,
	}, nil
}

// GenerateImage requests a base image for a dream.
func (c *Client) GenerateImage(ctx context.Context, params ImageParams) (*ImageResult, error) {
	body := imageRequest{
		Prompt:           params.Prompt,
		UserID:           params.UserID,
		SubscriptionTier: string(params.Tier),
	}

	var result imageResponse
	if err := c.withRetry(ctx, "video.image", http.MethodPost, "/v1/images", body, &result); err != nil {
		return nil, err
	}
	return &ImageResult{ImageURL: result.ImageURL}, nil
}

// ListJobs reads the user's queue state. Polling is cheap and read-only, so
// it goes out without the retry wrapper.
func (c *Client) ListJobs(ctx context.Context, userID string) ([]domain.VideoJob, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/queue?userId="+userID, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", ErrUnavailable)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.mapError(resp, respBody)
	}

	var payload queueResponse
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal queue response: %w", err)
	}

	jobs := make([]domain.VideoJob, 0, len(payload.Jobs))
	for _, j := range payload.Jobs {
		job := domain.VideoJob{
			UserID:          userID,
			Status:          domain.VideoJobStatus(j.Status),
			FramesGenerated: j.FramesGenerated,
			VideoURL:        j.VideoURL,
			ErrorMessage:    j.ErrorMessage,
		}
		if id, err := uuid.Parse(j.ID); err == nil {
			job.ID = id
		}
		if id, err := uuid.Parse(j.DreamID); err == nil {
			job.DreamID = id
		}
		if !job.Status.Valid() {
			c.logger.Warn("Unknown queue status from render service", "status", j.Status, "job_id", j.ID)
			job.Status = domain.VideoJobPending
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// withRetry runs one signed JSON request through the retry policy. The token
// is invalidated and re-fetched before every retry so a rejected token never
// gets reused.
func (c *Client) withRetry(ctx context.Context, op, method, path string, body, out any) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	policy := retry.Policy{
		MaxRetries: c.cfg.MaxRetries,
		BaseDelay:  c.cfg.RetryDelay,
		Logger:     c.logger,
	}

	return policy.Do(ctx, op, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			c.tokens.Invalidate()
			metrics.RenderRetries.Inc()
		}

		token, err := c.tokens.Token(ctx)
		if err != nil {
			// Token exchange failures are transient more often than not.
			return retry.Retryable(fmt.Errorf("fetch token: %w", err))
		}

		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bytes.NewReader(bodyBytes))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.client.Do(req)
		if err != nil {
			// Network errors are retryable.
			return retry.Retryable(ErrUnavailable)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.Retryable(fmt.Errorf("read response: %w", err))
		}

		if resp.StatusCode != http.StatusOK {
			mapped := c.mapError(resp, respBody)
			if retryable, after := retryHint(resp, respBody); retryable {
				return retry.RetryableAfter(mapped, after)
			}
			return mapped
		}

		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
		return nil
	})
}

// mapError converts an error response to a domain sentinel.
func (c *Client) mapError(resp *http.Response, body []byte) error {
	var er errorResponse
	_ = json.Unmarshal(body, &er)

	switch er.Code {
	case "TOKEN_INVALID", "UNAUTHORIZED":
		return fmt.Errorf("%w: %s", ErrTokenInvalid, er.Error)
	case "LIMIT_REACHED":
		return fmt.Errorf("%w: %s", ErrLimitReached, er.Error)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w (status %d)", ErrTokenInvalid, resp.StatusCode)
	case http.StatusTooManyRequests, http.StatusServiceUnavailable,
		http.StatusBadGateway, http.StatusGatewayTimeout:
		return fmt.Errorf("%w (status %d)", ErrUnavailable, resp.StatusCode)
	}

	if er.Error != "" {
		return fmt.Errorf("render service error (status %d): %s", resp.StatusCode, er.Error)
	}
	return fmt.Errorf("render service error (status %d)", resp.StatusCode)
}

// retryHint reads the response's retryable flag and Retry-After header.
func retryHint(resp *http.Response, body []byte) (bool, time.Duration) {
	var er errorResponse
	_ = json.Unmarshal(body, &er)
	if !er.Retryable {
		return false, 0
	}

	var after time.Duration
	if h := resp.Header.Get("Retry-After"); h != "" {
		if secs, err := strconv.Atoi(h); err == nil && secs > 0 {
			after = time.Duration(secs) * time.Second
		}
	}
	return true, after
}

// Wire types

type generateRequest struct {
	ImageURL         string `json:"imageUrl"`
	Prompt           string `json:"prompt"`
	UserID           string `json:"userId"`
	SubscriptionTier string `json:"subscriptionTier"`
	VideoType        string `json:"videoType"`
	DurationSeconds  int    `json:"durationSeconds"`
}

type generateResponse struct {
	Success         bool    `json:"success"`
	VideoURL        string  `json:"videoUrl"`
	Method          string  `json:"method"`
	Duration        float64 `json:"duration"`
	Format          string  `json:"format"`
	FramesGenerated int     `json:"framesGenerated"`
}

type imageRequest struct {
	Prompt           string `json:"prompt"`
	UserID           string `json:"userId"`
	SubscriptionTier string `json:"subscriptionTier"`
}

type imageResponse struct {
	Success  bool   `json:"success"`
	ImageURL string `json:"imageUrl"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

type queueResponse struct {
	Jobs []queueJob `json:"jobs"`
}

type queueJob struct {
	ID              string `json:"id"`
	DreamID         string `json:"dreamId"`
	Status          string `json:"status"`
	FramesGenerated int    `json:"framesGenerated"`
	VideoURL        string `json:"videoUrl,omitempty"`
	ErrorMessage    string `json:"errorMessage,omitempty"`
}
