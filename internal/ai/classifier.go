package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/medinventory/pkg/models"
)

// ClassifyRequest asks the model to pick one of Labels for Text.
type ClassifyRequest struct {
	Text    string
	Context []Field
	Labels  []string
	Prompt  PromptSpec
}

// Classifier wraps a completion provider with label validation.
// Errors are returned to the caller, which decides the fallback label.
type Classifier struct {
	provider models.CompletionProvider
	usage    *Usage
}

// NewClassifier creates a Classifier recording consumption into usage.
func NewClassifier(provider models.CompletionProvider, usage *Usage) *Classifier {
	if usage == nil {
		usage = NewUsage()
	}
	return &Classifier{provider: provider, usage: usage}
}

// Classify returns a member of req.Labels, or an error when the provider
// failed or answered with something that names no allowed label.
func (c *Classifier) Classify(ctx context.Context, req ClassifyRequest) (string, error) {
	completion, err := c.provider.Complete(ctx, models.CompletionRequest{
		System:      req.Prompt.System,
		User:        BuildUserMessage(req.Text, req.Context),
		Temperature: req.Prompt.Temperature,
		MaxTokens:   req.Prompt.MaxTokens,
		Model:       req.Prompt.Model,
	})
	if err != nil {
		return "", err
	}
	c.usage.Record(completion.Usage)

	return ParseLabel(completion.Text, req.Labels)
}

// Usage returns the counter this classifier records into.
func (c *Classifier) Usage() *Usage { return c.usage }

// ParseLabel extracts an allowed label from a model response.
// Text after the first colon is kept ("Category: X" → "X"). An exact match
// wins; otherwise the first allowed label contained in the response
// (case-insensitive) is returned.
func ParseLabel(response string, allowed []string) (string, error) {
	text := strings.TrimSpace(response)
	if i := strings.Index(text, ":"); i >= 0 {
		text = strings.TrimSpace(text[i+1:])
	}

	for _, label := range allowed {
		if text == label {
			return label, nil
		}
	}

	lower := strings.ToLower(text)
	for _, label := range allowed {
		if strings.Contains(lower, strings.ToLower(label)) {
			return label, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnrecognizedLabel, truncateString(response, 200))
}
