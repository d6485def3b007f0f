package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/oneirolabs/oneiro/internal/domain"
	"github.com/oneirolabs/oneiro/internal/metrics"
	"github.com/oneirolabs/oneiro/internal/pricing"
	"github.com/oneirolabs/oneiro/internal/retry"
)

const (
	anthropicAPIURL  = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
	defaultModel     = "claude-sonnet-4-20250514"
	maxOutputTokens  = 1500
)

// AnthropicConfig configures the Anthropic interpreter.
type AnthropicConfig struct {
	APIKey         string
	Model          string
	MaxRetries     int
	RetryDelay     time.Duration
	RequestTimeout time.Duration
}

func (c *AnthropicConfig) applyDefaults() {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 2 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 60 * time.Second
	}
}

// AnthropicInterpreter implements Interpreter using the Anthropic API.
type AnthropicInterpreter struct {
	cfg    AnthropicConfig
	client *http.Client
	logger *slog.Logger
}

// NewAnthropicInterpreter creates an interpreter backed by the Anthropic API.
func NewAnthropicInterpreter(cfg AnthropicConfig, logger *slog.Logger) (*AnthropicInterpreter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required")
	}
	cfg.applyDefaults()
	return &AnthropicInterpreter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
		logger: logger.With("component", "anthropic"),
	}, nil
}

// InterpretDream analyzes a dream via the Anthropic messages API.
func (a *AnthropicInterpreter) InterpretDream(ctx context.Context, params InterpretParams) (*InterpretResult, error) {
	if strings.TrimSpace(params.Description) == "" {
		return nil, WrapError("interpret", EInvalidInput)
	}

	start := time.Now()
	reqBody := messagesRequest{
		Model:     a.cfg.Model,
		MaxTokens: maxOutputTokens,
		System:    systemPrompt,
		Messages: []message{
			{Role: "user", Content: buildPrompt(params)},
		},
	}

	policy := retry.Policy{
		MaxRetries: a.cfg.MaxRetries,
		BaseDelay:  a.cfg.RetryDelay,
		MaxDelay:   30 * time.Second,
		Logger:     a.logger,
	}

	var resp messagesResponse
	err := policy.Do(ctx, "anthropic.messages", func(ctx context.Context, attempt int) error {
		return a.send(ctx, reqBody, &resp)
	})
	if err != nil {
		metrics.InterpretationRequests.WithLabelValues("error").Inc()
		return nil, WrapError("interpret", err)
	}

	interp, err := parseInterpretation(resp)
	if err != nil {
		metrics.InterpretationRequests.WithLabelValues("error").Inc()
		return nil, WrapError("interpret", err)
	}

	cost := pricing.InterpretationCost(resp.Usage.InputTokens, resp.Usage.OutputTokens)
	metrics.InterpretationRequests.WithLabelValues("ok").Inc()
	metrics.InterpretationCostCents.Add(float64(cost))

	a.logger.Info("dream interpreted",
		"dream_id", params.DreamID,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"cost_cents", cost,
		"duration", time.Since(start))

	return &InterpretResult{
		Interpretation: *interp,
		Usage: UsageInfo{
			Model:        a.cfg.Model,
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			CostCents:    cost,
			Duration:     time.Since(start),
		},
	}, nil
}

// Reply produces the next assistant turn in a reflection conversation.
func (a *AnthropicInterpreter) Reply(ctx context.Context, params ReplyParams) (*ReplyResult, error) {
	start := time.Now()

	msgs := make([]message, 0, len(params.Turns)+1)
	for _, turn := range params.Turns {
		msgs = append(msgs, message{Role: turn.Role, Content: turn.Content})
	}
	if len(msgs) == 0 {
		return nil, WrapError("reply", EInvalidInput)
	}

	reqBody := messagesRequest{
		Model:     a.cfg.Model,
		MaxTokens: maxOutputTokens,
		System:    reflectionPrompt(params),
		Messages:  msgs,
	}

	policy := retry.Policy{
		MaxRetries: a.cfg.MaxRetries,
		BaseDelay:  a.cfg.RetryDelay,
		MaxDelay:   30 * time.Second,
		Logger:     a.logger,
	}

	var resp messagesResponse
	err := policy.Do(ctx, "anthropic.reply", func(ctx context.Context, attempt int) error {
		return a.send(ctx, reqBody, &resp)
	})
	if err != nil {
		return nil, WrapError("reply", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text = strings.TrimSpace(block.Text)
			break
		}
	}
	if text == "" {
		return nil, WrapError("reply", fmt.Errorf("empty response content"))
	}

	return &ReplyResult{
		Content: text,
		Usage: UsageInfo{
			Model:        a.cfg.Model,
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			CostCents:    pricing.InterpretationCost(resp.Usage.InputTokens, resp.Usage.OutputTokens),
			Duration:     time.Since(start),
		},
	}, nil
}

func reflectionPrompt(params ReplyParams) string {
	var b strings.Builder
	b.WriteString("You are a warm, grounded reflection companion helping someone explore a dream they journaled. Ask gentle open questions, avoid clinical diagnoses, and keep replies under 150 words.\n\n")
	if params.DreamTitle != "" {
		fmt.Fprintf(&b, "Dream title: %s\n", params.DreamTitle)
	}
	fmt.Fprintf(&b, "Dream: %s\n", params.DreamText)
	if params.Interpretation != "" {
		fmt.Fprintf(&b, "\nPrior interpretation: %s\n", params.Interpretation)
	}
	return b.String()
}

func (a *AnthropicInterpreter) send(ctx context.Context, reqBody messagesRequest, out *messagesResponse) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicAPIURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		return retry.Retryable(EUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return retry.Retryable(fmt.Errorf("read response: %w", err))
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return retry.RetryableAfter(ERateLimit, retryAfterHint(resp))
	case http.StatusUnauthorized, http.StatusForbidden:
		return EUnauthorized
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", EInvalidInput, truncate(string(body), 200))
	default:
		if resp.StatusCode >= 500 {
			return retry.Retryable(EUnavailable)
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func retryAfterHint(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

const systemPrompt = `You are a thoughtful dream interpreter. Given a dream description, respond with a JSON object containing exactly these fields:
"summary": a 2-3 sentence overview of the dream's likely meaning,
"symbols": an array of objects with "name" and "meaning" for notable dream symbols,
"emotions": an array of emotion words present in the dream,
"guidance": a short paragraph of gentle, practical reflection guidance.
Respond with only the JSON object, no surrounding text.`

func buildPrompt(params InterpretParams) string {
	var b strings.Builder
	if params.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n\n", params.Title)
	}
	fmt.Fprintf(&b, "Dream: %s\n", params.Description)
	if len(params.Tags) > 0 {
		fmt.Fprintf(&b, "\nTags: %s\n", strings.Join(params.Tags, ", "))
	}
	return b.String()
}

func parseInterpretation(resp messagesResponse) (*domain.Interpretation, error) {
	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("empty response content")
	}

	// Models occasionally wrap JSON in a fenced code block.
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var interp domain.Interpretation
	if err := json.Unmarshal([]byte(text), &interp); err != nil {
		return nil, fmt.Errorf("parse interpretation: %w", err)
	}
	if interp.Summary == "" {
		return nil, fmt.Errorf("interpretation missing summary")
	}
	return &interp, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID      string         `json:"id"`
	Content []contentBlock `json:"content"`
	Usage   usage          `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
