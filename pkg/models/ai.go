// Package models contains shared data models used across the medinventory codebase.
package models

import "context"

// CompletionProvider is the core interface that all completion-service integrations must implement.
// Callers depend on this interface, never on a concrete provider.
type CompletionProvider interface {
	// Complete sends one system/user exchange and returns the generated text.
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
	// Name returns the provider identifier (e.g., "ollama", "openai").
	Name() string
}

// CompletionRequest is the input to a single text-completion call.
type CompletionRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	// Model overrides the provider's configured model when non-empty.
	Model string
}

// Completion is the provider's answer plus token accounting.
type Completion struct {
	Text  string
	Model string
	Usage TokenUsage
}

// TokenUsage counts tokens consumed by one request.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Total returns input plus output tokens.
func (u TokenUsage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}
