// Package mock provides a mock Interpreter for testing and development.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oneirolabs/oneiro/internal/ai"
	"github.com/oneirolabs/oneiro/internal/domain"
)

// Interpreter is a configurable mock implementation of ai.Interpreter.
type Interpreter struct {
	mu sync.Mutex

	// InterpretError, if set, is returned from InterpretDream.
	InterpretError error

	// Result, if set, overrides the canned interpretation.
	Result *domain.Interpretation

	// Delay simulates API latency.
	Delay time.Duration

	calls int
}

// NewInterpreter creates a mock interpreter returning plausible canned output.
func NewInterpreter() *Interpreter {
	return &Interpreter{}
}

// InterpretDream returns a canned interpretation or the configured error.
func (m *Interpreter) InterpretDream(ctx context.Context, params ai.InterpretParams) (*ai.InterpretResult, error) {
	m.mu.Lock()
	m.calls++
	callErr := m.InterpretError
	result := m.Result
	delay := m.Delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if callErr != nil {
		return nil, callErr
	}

	interp := domain.Interpretation{
		Summary: fmt.Sprintf("This dream about %q suggests a period of transition and self-reflection.", params.Title),
		Symbols: []domain.Symbol{
			{Name: "water", Meaning: "emotional depth and the subconscious"},
			{Name: "door", Meaning: "new opportunities or choices ahead"},
		},
		Emotions: []string{"curiosity", "uncertainty"},
		Guidance: "Consider journaling about what changes feel imminent in your waking life.",
	}
	if result != nil {
		interp = *result
	}

	return &ai.InterpretResult{
		Interpretation: interp,
		Usage: ai.UsageInfo{
			Model:        "mock",
			InputTokens:  250,
			OutputTokens: 400,
			CostCents:    1,
		},
	}, nil
}

// Reply returns a canned reflection turn.
func (m *Interpreter) Reply(ctx context.Context, params ai.ReplyParams) (*ai.ReplyResult, error) {
	m.mu.Lock()
	m.calls++
	callErr := m.InterpretError
	m.mu.Unlock()

	if callErr != nil {
		return nil, callErr
	}
	return &ai.ReplyResult{
		Content: "That image seems significant. What feeling did it leave you with when you woke?",
		Usage:   ai.UsageInfo{Model: "mock", InputTokens: 120, OutputTokens: 40, CostCents: 1},
	}, nil
}

// Calls returns the number of InterpretDream invocations.
func (m *Interpreter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
