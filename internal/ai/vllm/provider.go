package vllm

import (
	"strings"
	"time"

	"github.com/kiranshivaraju/medinventory/internal/ai/openai"
	"github.com/kiranshivaraju/medinventory/internal/config"
	"github.com/kiranshivaraju/medinventory/pkg/models"
)

// NewProvider returns a provider for a vLLM server. vLLM serves the OpenAI
// chat completions API under /v1.
func NewProvider(cfg config.VLLMConfig, timeout time.Duration) models.CompletionProvider {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return openai.NewCompatible("vllm", base, "", cfg.Model, timeout)
}
