package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/kiranshivaraju/medinventory/pkg/models"
)

const (
	defaultDescribeAttempts = 3
	defaultRetryBaseDelay   = time.Second
	defaultRetryMaxDelay    = 60 * time.Second

	descriptionTemperature = 0.3
	descriptionMaxTokens   = 60
)

// DescriptionFailedPrefix starts the placeholder written when every attempt failed.
const DescriptionFailedPrefix = "Error generating description"

// DescribeRequest carries the item fields used to build a description prompt.
type DescribeRequest struct {
	Description string
	Vendor      string
	Category    string
	Subcategory string
}

// DescriberOptions tunes retries and request spacing.
type DescriberOptions struct {
	// Model overrides the provider's default model.
	Model string
	// MaxAttempts is the total number of requests per item, including the first.
	MaxAttempts int
	// BaseDelay is the first retry delay; each retry doubles it up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// MinInterval spaces consecutive items' first requests. Zero disables spacing.
	MinInterval time.Duration
}

// Describer generates plain-language item descriptions, retrying transport
// failures with capped exponential backoff.
type Describer struct {
	provider models.CompletionProvider
	usage    *Usage
	opts     DescriberOptions
	limiter  *rate.Limiter
}

// NewDescriber creates a Describer recording consumption into usage.
func NewDescriber(provider models.CompletionProvider, usage *Usage, opts DescriberOptions) *Describer {
	if usage == nil {
		usage = NewUsage()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultDescribeAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultRetryBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = defaultRetryMaxDelay
	}
	d := &Describer{provider: provider, usage: usage, opts: opts}
	if opts.MinInterval > 0 {
		d.limiter = rate.NewLimiter(rate.Every(opts.MinInterval), 1)
	}
	return d
}

// Describe returns a one-line description for req, or the last error once
// every attempt has failed.
func (d *Describer) Describe(ctx context.Context, req DescribeRequest) (string, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", err
		}
	}

	creq := models.CompletionRequest{
		System:      DescriptionSystem,
		User:        BuildDescriptionPrompt(req),
		Temperature: descriptionTemperature,
		MaxTokens:   descriptionMaxTokens,
		Model:       d.opts.Model,
	}

	b := retry.NewExponential(d.opts.BaseDelay)
	b = retry.WithCappedDuration(d.opts.MaxDelay, b)
	b = retry.WithMaxRetries(uint64(d.opts.MaxAttempts-1), b)

	attempt := 0
	var text string
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		completion, err := d.provider.Complete(ctx, creq)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("description request failed",
				"attempt", attempt,
				"max_attempts", d.opts.MaxAttempts,
				"error", err,
			)
			return retry.RetryableError(err)
		}
		d.usage.Record(completion.Usage)

		text = CleanDescription(completion.Text)
		if text == "" {
			return fmt.Errorf("%w: empty description", ErrInvalidResponse)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// Usage returns the counter this describer records into.
func (d *Describer) Usage() *Usage { return d.usage }

// FailedDescription is the placeholder written for an item whose description
// could not be generated.
func FailedDescription(err error) string {
	return fmt.Sprintf("%s: %v", DescriptionFailedPrefix, err)
}

// CleanDescription trims whitespace and any wrapping quote characters.
func CleanDescription(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'")
	return strings.TrimSpace(s)
}

// truncateString shortens s to at most n runes.
func truncateString(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
