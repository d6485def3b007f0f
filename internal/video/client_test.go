package video

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// countingTokens records Token/Invalidate calls.
type countingTokens struct {
	mu          sync.Mutex
	tokens      int
	invalidates int
}

func (c *countingTokens) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens++
	return "tok", nil
}

func (c *countingTokens) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidates++
}

func newTestClient(t *testing.T, url string, tokens *countingTokens) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:    url,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}, tokens, testLogger())
	require.NoError(t, err)
	return c
}

func genParams() GenerateParams {
	return GenerateParams{
		DreamID:         uuid.New(),
		UserID:          "user-1",
		ImageURL:        "https://cdn.example.com/dream.png",
		Prompt:          "a city floating above the sea",
		Tier:            "premium",
		VideoType:       "cinematic",
		DurationSeconds: 8,
	}
}

func TestGenerateVideo_RetriesThenSucceeds(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "user-1", req.UserID)
		assert.Equal(t, "premium", req.SubscriptionTier)

		if requests < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(errorResponse{
				Error:     "render farm busy",
				Retryable: true,
			})
			return
		}
		_ = json.NewEncoder(w).Encode(generateResponse{
			Success:         true,
			VideoURL:        "https://cdn.example.com/dream.mp4",
			Method:          "interpolation",
			Duration:        8.0,
			Format:          "mp4",
			FramesGenerated: 192,
		})
	}))
	defer srv.Close()

	tokens := &countingTokens{}
	client := newTestClient(t, srv.URL, tokens)

	result, err := client.GenerateVideo(context.Background(), genParams())
	require.NoError(t, err)

	assert.Equal(t, 3, requests, "two retryable failures then success must issue exactly 3 requests")
	assert.Equal(t, "https://cdn.example.com/dream.mp4", result.VideoURL)
	assert.Equal(t, 192, result.FramesGenerated)
	assert.Equal(t, 2, tokens.invalidates, "token must be refreshed before each retry")
}

func TestGenerateVideo_NonRetryableFailsImmediately(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(errorResponse{
			Error:     "monthly video limit reached",
			Code:      "LIMIT_REACHED",
			Retryable: false,
		})
	}))
	defer srv.Close()

	tokens := &countingTokens{}
	client := newTestClient(t, srv.URL, tokens)

	_, err := client.GenerateVideo(context.Background(), genParams())
	assert.ErrorIs(t, err, ErrLimitReached)
	assert.Equal(t, 1, requests, "non-retryable failure must issue exactly 1 request")
	assert.Equal(t, 0, tokens.invalidates)
}

func TestGenerateVideo_ExhaustsRetries(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(errorResponse{Error: "down", Retryable: true})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, &countingTokens{})

	_, err := client.GenerateVideo(context.Background(), genParams())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, requests)
}

func TestGenerateVideo_HonorsRetryAfterHeader(t *testing.T) {
	var requests int
	var gap time.Duration
	var last time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		now := time.Now()
		if requests == 2 {
			gap = now.Sub(last)
		}
		last = now

		if requests == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(errorResponse{Error: "slow down", Retryable: true})
			return
		}
		_ = json.NewEncoder(w).Encode(generateResponse{Success: true, VideoURL: "u"})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, &countingTokens{})

	_, err := client.GenerateVideo(context.Background(), genParams())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, gap, time.Second, "Retry-After hint must delay the retry")
}

func TestGenerateVideo_MapsAuthCodes(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{code: "TOKEN_INVALID", want: ErrTokenInvalid},
		{code: "UNAUTHORIZED", want: ErrTokenInvalid},
		{code: "LIMIT_REACHED", want: ErrLimitReached},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(errorResponse{Error: "nope", Code: tt.code})
			}))
			defer srv.Close()

			client := newTestClient(t, srv.URL, &countingTokens{})
			_, err := client.GenerateVideo(context.Background(), genParams())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestListJobs(t *testing.T) {
	dreamID := uuid.New()
	jobID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/queue", r.URL.Path)
		assert.Equal(t, "user-1", r.URL.Query().Get("userId"))
		_ = json.NewEncoder(w).Encode(queueResponse{Jobs: []queueJob{
			{ID: jobID.String(), DreamID: dreamID.String(), Status: "processing", FramesGenerated: 42},
			{ID: uuid.NewString(), DreamID: uuid.NewString(), Status: "completed", VideoURL: "https://cdn.example.com/v.mp4"},
		}})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, &countingTokens{})

	jobs, err := client.ListJobs(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, jobID, jobs[0].ID)
	assert.Equal(t, dreamID, jobs[0].DreamID)
	assert.Equal(t, 42, jobs[0].FramesGenerated)
	assert.True(t, jobs[1].Status.Terminal())
	assert.Equal(t, "https://cdn.example.com/v.mp4", jobs[1].VideoURL)
}

func TestUserMessage(t *testing.T) {
	assert.Contains(t, UserMessage(ErrTokenInvalid), "sign in")
	assert.Contains(t, UserMessage(ErrLimitReached), "limit")
	assert.Contains(t, UserMessage(ErrUnavailable), "temporarily unavailable")
	assert.NotEmpty(t, UserMessage(context.DeadlineExceeded))
}
