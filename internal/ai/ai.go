// Package ai defines the interface for AI-powered dream interpretation.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oneirolabs/oneiro/internal/domain"
)

// Interpreter produces dream interpretations.
type Interpreter interface {
	// InterpretDream analyzes a dream description and returns a structured
	// interpretation.
	InterpretDream(ctx context.Context, params InterpretParams) (*InterpretResult, error)
}

// Reflector carries on a guided reflection conversation about a dream.
type Reflector interface {
	// Reply produces the assistant's next turn given the conversation so far.
	Reply(ctx context.Context, params ReplyParams) (*ReplyResult, error)
}

// ReplyParams contains the conversation context for a reflection turn.
type ReplyParams struct {
	UserID         string
	DreamTitle     string
	DreamText      string
	Interpretation string
	Turns          []Turn
}

// Turn is one prior message in the conversation.
type Turn struct {
	Role    string
	Content string
}

// ReplyResult contains the assistant's reply plus usage accounting.
type ReplyResult struct {
	Content string
	Usage   UsageInfo
}

// InterpretParams contains parameters for a dream interpretation.
type InterpretParams struct {
	DreamID     uuid.UUID
	UserID      string
	Title       string
	Description string
	Tags        []string
}

// InterpretResult contains the interpretation plus usage accounting.
type InterpretResult struct {
	Interpretation domain.Interpretation
	Usage          UsageInfo
}

// UsageInfo tracks API usage for billing and monitoring.
type UsageInfo struct {
	Model        string
	InputTokens  int
	OutputTokens int
	CostCents    int
	Duration     time.Duration
}

// Error codes for interpreter operations.
var (
	// ERateLimit indicates the API rate limit has been exceeded.
	ERateLimit = errors.New("interpreter rate limit exceeded")

	// EInvalidInput indicates the dream content could not be interpreted.
	EInvalidInput = errors.New("invalid dream content")

	// ETimeout indicates the request timed out.
	ETimeout = errors.New("interpretation request timed out")

	// EUnavailable indicates the AI service is temporarily unavailable.
	EUnavailable = errors.New("interpretation service temporarily unavailable")

	// EUnauthorized indicates invalid API credentials.
	EUnauthorized = errors.New("interpreter authentication failed")
)

// IsRetryable returns true for transient errors worth another attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ERateLimit) ||
		errors.Is(err, ETimeout) ||
		errors.Is(err, EUnavailable)
}

// WrapError wraps an error with context about the operation.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}
