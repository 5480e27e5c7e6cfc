package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kiranshivaraju/medinventory/internal/ai/aierr"
	"github.com/kiranshivaraju/medinventory/internal/config"
	"github.com/kiranshivaraju/medinventory/pkg/models"
)

const defaultMaxTokens = 256

// Provider implements models.CompletionProvider using the Anthropic Messages API.
type Provider struct {
	client sdk.Client
	model  string
}

func NewProvider(cfg config.AnthropicConfig, timeout time.Duration) *Provider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(timeout),
		// Retries are owned by the caller so pacing stays predictable.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Provider{
		client: sdk.NewClient(opts...),
		model:  cfg.Model,
	}
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) Complete(ctx context.Context, req models.CompletionRequest) (models.Completion, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	msg, err := p.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(model),
		MaxTokens:   maxTokens,
		Temperature: sdk.Float(req.Temperature),
		System: []sdk.TextBlockParam{
			{Text: req.System},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.User)),
		},
	})
	if err != nil {
		return models.Completion{}, classifyError(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return models.Completion{}, fmt.Errorf("%w: no text content", aierr.ErrInvalidResponse)
	}

	return models.Completion{
		Text:  text.String(),
		Model: string(msg.Model),
		Usage: models.TokenUsage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}, nil
}

func classifyError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
			return fmt.Errorf("%w: %v", aierr.ErrProviderUnavailable, err)
		}
		return fmt.Errorf("%w: %v", aierr.ErrInvalidResponse, err)
	}
	return aierr.Transport(err)
}

var _ models.CompletionProvider = (*Provider)(nil)
